package project

import (
	"github.com/billbatista/acasinha-spend/user"
	"github.com/google/uuid"
)

const unknownName = "Unknown"

// Roster is a snapshot of a project's membership taken for one request.
// Nothing derived from it is cached beyond that request.
type Roster struct {
	Project   Project
	users     map[uuid.UUID]user.User
	observers []uuid.UUID
}

func NewRoster(p Project, users []user.User, observers []uuid.UUID) *Roster {
	byID := make(map[uuid.UUID]user.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return &Roster{Project: p, users: byID, observers: observers}
}

func (r *Roster) isSuperAdmin(id uuid.UUID) bool {
	u, ok := r.users[id]
	return ok && u.IsSuperAdmin()
}

func (r *Roster) memberRole(id uuid.UUID) (MemberRole, bool) {
	if id == r.Project.CreatedBy {
		return RoleActive, true
	}
	for _, m := range r.Project.Members {
		if m.UserID == id {
			return m.Role, true
		}
	}
	return "", false
}

// EligibleVoters lists the users whose approval every spending needs: the
// creator and the active members, minus super admins.
func (r *Roster) EligibleVoters() []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var voters []uuid.UUID
	add := func(id uuid.UUID) {
		if seen[id] || r.isSuperAdmin(id) {
			return
		}
		seen[id] = true
		voters = append(voters, id)
	}

	add(r.Project.CreatedBy)
	for _, m := range r.Project.Members {
		if m.Role == RoleActive {
			add(m.UserID)
		}
	}
	return voters
}

// SuperAdminIDs lists the observers notified about spending activity.
func (r *Roster) SuperAdminIDs() []uuid.UUID {
	return append([]uuid.UUID(nil), r.observers...)
}

// Names maps every member and observer id to a display name.
func (r *Roster) Names() map[uuid.UUID]string {
	names := make(map[uuid.UUID]string)
	for _, id := range r.Project.MemberIDs() {
		names[id] = r.Name(id)
	}
	for _, id := range r.observers {
		names[id] = r.Name(id)
	}
	return names
}

func (r *Roster) Name(id uuid.UUID) string {
	if u, ok := r.users[id]; ok {
		return u.DisplayName()
	}
	return unknownName
}

func (r *Roster) IsMember(id uuid.UUID) bool {
	_, ok := r.memberRole(id)
	return ok
}

func (r *Roster) IsActiveInvestor(id uuid.UUID) bool {
	role, ok := r.memberRole(id)
	return ok && role == RoleActive && !r.isSuperAdmin(id)
}

func (r *Roster) CanAccess(actor user.User) bool {
	return actor.IsPrivileged() || r.IsMember(actor.ID)
}

// CanWriteLedgers excludes passive investors and observing super admins.
func (r *Roster) CanWriteLedgers(actor user.User) bool {
	if actor.IsSuperAdmin() {
		return false
	}
	if actor.Role == user.RoleAdmin {
		return true
	}
	return r.IsActiveInvestor(actor.ID)
}
