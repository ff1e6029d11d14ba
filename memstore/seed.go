package memstore

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/billbatista/acasinha-spend/project"
	"github.com/billbatista/acasinha-spend/user"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type seedUser struct {
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Password string    `json:"password"`
	Role     user.Role `json:"role"`
}

type seedMember struct {
	Email string             `json:"email"`
	Role  project.MemberRole `json:"role"`
}

type seedProject struct {
	Name         string          `json:"name"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	CreatedBy    string          `json:"created_by"`
	Members      []seedMember    `json:"members"`
}

type seed struct {
	Users    []seedUser    `json:"users"`
	Projects []seedProject `json:"projects"`
}

// Seed loads users and projects from a JSON document. Projects refer to
// users by email.
func (s *Store) Seed(r io.Reader) error {
	var doc seed
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("decoding seed: %w", err)
	}

	byEmail := make(map[string]uuid.UUID)
	for _, su := range doc.Users {
		u, err := user.NewUser(su.Name, su.Email, su.Password)
		if err != nil {
			return fmt.Errorf("seeding user %q: %w", su.Email, err)
		}
		if su.Role != "" {
			u.Role = su.Role
		}
		s.Users.Put(*u)
		byEmail[u.Email] = u.ID
	}

	lookup := func(email string) (uuid.UUID, error) {
		id, ok := byEmail[strings.ToLower(strings.TrimSpace(email))]
		if !ok {
			return uuid.Nil, fmt.Errorf("unknown seed user %q", email)
		}
		return id, nil
	}

	for _, sp := range doc.Projects {
		creator, err := lookup(sp.CreatedBy)
		if err != nil {
			return err
		}
		p := project.Project{
			ID:           uuid.New(),
			Name:         sp.Name,
			TargetAmount: sp.TargetAmount,
			Status:       "active",
			CreatedBy:    creator,
		}
		for _, m := range sp.Members {
			id, err := lookup(m.Email)
			if err != nil {
				return err
			}
			role := m.Role
			if role == "" {
				role = project.RoleActive
			}
			p.Members = append(p.Members, project.Member{UserID: id, Role: role})
		}
		s.Projects.Put(p)
	}
	return nil
}
