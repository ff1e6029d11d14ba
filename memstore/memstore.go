// Package memstore keeps every repository in process memory. It backs the
// "memory" store setting and the service tests.
package memstore

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/billbatista/acasinha-spend/ledger"
	"github.com/billbatista/acasinha-spend/notify"
	"github.com/billbatista/acasinha-spend/project"
	"github.com/billbatista/acasinha-spend/session"
	"github.com/billbatista/acasinha-spend/spending"
	"github.com/billbatista/acasinha-spend/user"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

type Store struct {
	Users     *Users
	Sessions  *Sessions
	Projects  *Projects
	Ledgers   *Ledgers
	Spendings *Spendings
	Inbox     *Inbox
}

func New(sessionTTL time.Duration) *Store {
	return &Store{
		Users:     &Users{byID: make(map[uuid.UUID]user.User)},
		Sessions:  &Sessions{byToken: make(map[string]session.Session), ttl: sessionTTL},
		Projects:  &Projects{byID: make(map[uuid.UUID]project.Project)},
		Ledgers:   &Ledgers{byID: make(map[uuid.UUID]ledger.Ledger)},
		Spendings: &Spendings{byID: make(map[uuid.UUID]spending.Spending)},
		Inbox:     &Inbox{},
	}
}

type Users struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]user.User
	order []uuid.UUID
}

func (s *Users) Put(u user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[u.ID]; !ok {
		s.order = append(s.order, u.ID)
	}
	s.byID[u.ID] = u
}

func (s *Users) Register(_ context.Context, name, email, password string) (*user.User, error) {
	u, err := user.NewUser(name, email, password)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Email == u.Email {
			return nil, user.ErrEmailExists
		}
	}
	s.byID[u.ID] = *u
	s.order = append(s.order, u.ID)
	return u, nil
}

func (s *Users) GetByEmail(_ context.Context, email string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.byID {
		if u.Email == strings.ToLower(email) {
			return &u, nil
		}
	}
	return nil, nil
}

func (s *Users) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Users) GetByIDs(_ context.Context, ids []uuid.UUID) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []user.User
	for _, id := range ids {
		if u, ok := s.byID[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (s *Users) ListIDsByRole(_ context.Context, role user.Role) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []uuid.UUID
	for _, id := range s.order {
		if s.byID[id].Role == role {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *Users) VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func (s *Users) UpdateName(_ context.Context, userID uuid.UUID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return nil
	}
	u.Name = name
	s.byID[userID] = u
	return nil
}

type Sessions struct {
	mu      sync.Mutex
	byToken map[string]session.Session
	ttl     time.Duration
}

func (s *Sessions) Create(_ context.Context, userID uuid.UUID) (*session.Session, error) {
	sess, err := session.New(userID, s.ttl)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byToken[sess.Token] = *sess
	return sess, nil
}

func (s *Sessions) GetByToken(_ context.Context, token string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byToken[token]
	if !ok {
		return nil, session.ErrInvalidSession
	}
	if sess.Expired(time.Now()) {
		return nil, session.ErrExpiredSession
	}
	return &sess, nil
}

func (s *Sessions) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byToken, token)
	return nil
}

func (s *Sessions) DeleteByUserID(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, sess := range s.byToken {
		if sess.UserID == userID {
			delete(s.byToken, token)
		}
	}
	return nil
}

type Projects struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]project.Project
	order []uuid.UUID
}

func (s *Projects) Put(p project.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[p.ID]; !ok {
		s.order = append(s.order, p.ID)
	}
	p.Members = slices.Clone(p.Members)
	s.byID[p.ID] = p
}

func (s *Projects) GetByID(_ context.Context, id uuid.UUID) (*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	p.Members = slices.Clone(p.Members)
	return &p, nil
}

func (s *Projects) ListAll(_ context.Context) ([]project.Project, error) {
	return s.list(func(project.Project) bool { return true }), nil
}

func (s *Projects) ListForMember(_ context.Context, userID uuid.UUID) ([]project.Project, error) {
	return s.list(func(p project.Project) bool {
		return slices.Contains(p.MemberIDs(), userID)
	}), nil
}

func (s *Projects) list(keep func(project.Project) bool) []project.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	projects := make([]project.Project, 0, len(s.order))
	for _, id := range s.order {
		p := s.byID[id]
		if keep(p) {
			p.Members = slices.Clone(p.Members)
			projects = append(projects, p)
		}
	}
	return projects
}

type Ledgers struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]ledger.Ledger
}

func (s *Ledgers) Create(_ context.Context, l ledger.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.SubLedgers = slices.Clone(l.SubLedgers)
	s.byID[l.ID] = l
	return nil
}

func (s *Ledgers) Update(ctx context.Context, l ledger.Ledger) error {
	return s.Create(ctx, l)
}

func (s *Ledgers) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
	return nil
}

func (s *Ledgers) GetByID(_ context.Context, id uuid.UUID) (*ledger.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	l.SubLedgers = slices.Clone(l.SubLedgers)
	return &l, nil
}

func (s *Ledgers) GetByIDs(_ context.Context, ids []uuid.UUID) ([]ledger.Ledger, error) {
	return s.list(func(l ledger.Ledger) bool { return slices.Contains(ids, l.ID) }), nil
}

func (s *Ledgers) ListByProjects(_ context.Context, projectIDs []uuid.UUID) ([]ledger.Ledger, error) {
	return s.list(func(l ledger.Ledger) bool { return slices.Contains(projectIDs, l.ProjectID) }), nil
}

func (s *Ledgers) ListAll(_ context.Context) ([]ledger.Ledger, error) {
	return s.list(func(ledger.Ledger) bool { return true }), nil
}

func (s *Ledgers) list(keep func(ledger.Ledger) bool) []ledger.Ledger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ledgers := make([]ledger.Ledger, 0)
	for _, l := range s.byID {
		if keep(l) {
			l.SubLedgers = slices.Clone(l.SubLedgers)
			ledgers = append(ledgers, l)
		}
	}
	sort.Slice(ledgers, func(i, j int) bool { return ledgers[i].Name < ledgers[j].Name })
	return ledgers
}

type Spendings struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]spending.Spending
}

func clone(s spending.Spending) spending.Spending {
	s.Votes = slices.Clone(s.Votes)
	return s
}

func (s *Spendings) Create(_ context.Context, sp spending.Spending) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[sp.ID] = clone(sp)
	return nil
}

func (s *Spendings) GetByID(_ context.Context, id uuid.UUID) (*spending.Spending, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	sp = clone(sp)
	return &sp, nil
}

func (s *Spendings) AppendVote(_ context.Context, id uuid.UUID, v spending.Vote, status spending.Status, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, err := s.bump(id, status, expectedVersion)
	if err != nil {
		return err
	}
	sp.Votes = append(sp.Votes, v)
	s.byID[id] = sp
	return nil
}

func (s *Spendings) UpdateStatus(_ context.Context, id uuid.UUID, status spending.Status, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, err := s.bump(id, status, expectedVersion)
	if err != nil {
		return err
	}
	s.byID[id] = sp
	return nil
}

func (s *Spendings) bump(id uuid.UUID, status spending.Status, expectedVersion int64) (spending.Spending, error) {
	sp, ok := s.byID[id]
	if !ok || sp.Version != expectedVersion {
		return sp, spending.ErrConcurrentUpdate
	}
	sp = clone(sp)
	sp.Status = status
	sp.Version++
	sp.UpdatedAt = time.Now().UTC()
	return sp, nil
}

func (s *Spendings) Find(_ context.Context, f spending.Filter) ([]spending.Spending, error) {
	matched := s.match(f)
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].SpentAt.Equal(matched[j].SpentAt) {
			return matched[i].SpentAt.After(matched[j].SpentAt)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return []spending.Spending{}, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

func (s *Spendings) Count(_ context.Context, f spending.Filter) (int, error) {
	return len(s.match(f)), nil
}

func (s *Spendings) match(f spending.Filter) []spending.Spending {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]spending.Spending, 0)
	for _, sp := range s.byID {
		if f.Match(sp) {
			matched = append(matched, clone(sp))
		}
	}
	return matched
}

func (s *Spendings) SumAmount(_ context.Context, projectID uuid.UUID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := decimal.Zero
	for _, sp := range s.byID {
		if sp.ProjectID == projectID {
			sum = sum.Add(sp.Amount)
		}
	}
	return sum, nil
}

func (s *Spendings) TotalsByProject(_ context.Context, projectIDs []uuid.UUID) ([]spending.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		project uuid.UUID
		status  spending.Status
	}
	grouped := make(map[key]*spending.Totals)
	var keys []key
	for _, sp := range s.byID {
		if !slices.Contains(projectIDs, sp.ProjectID) {
			continue
		}
		k := key{sp.ProjectID, sp.Status}
		t, ok := grouped[k]
		if !ok {
			t = &spending.Totals{ProjectID: sp.ProjectID, Status: sp.Status, Amount: decimal.Zero}
			grouped[k] = t
			keys = append(keys, k)
		}
		t.Amount = t.Amount.Add(sp.Amount)
		t.Count++
	}

	totals := make([]spending.Totals, 0, len(keys))
	for _, k := range keys {
		totals = append(totals, *grouped[k])
	}
	return totals, nil
}

// Inbox records notifications. Err, when set, is returned from Send after
// recording.
type Inbox struct {
	mu   sync.Mutex
	sent []notify.Notification
	Err  error
}

func (i *Inbox) Send(_ context.Context, n notify.Notification) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.sent = append(i.sent, n)
	return i.Err
}

// Notify delivers synchronously, which keeps tests deterministic.
func (i *Inbox) Notify(ctx context.Context, n notify.Notification) {
	_ = i.Send(ctx, n)
}

func (i *Inbox) Sent() []notify.Notification {
	i.mu.Lock()
	defer i.mu.Unlock()
	return slices.Clone(i.sent)
}

func (i *Inbox) Recipients() []uuid.UUID {
	var ids []uuid.UUID
	for _, n := range i.Sent() {
		ids = append(ids, n.RecipientID)
	}
	return ids
}

func (i *Inbox) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.sent = nil
}

// ListForRecipient returns the newest notifications first.
func (i *Inbox) ListForRecipient(_ context.Context, recipient uuid.UUID, limit int) ([]notify.Notification, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]notify.Notification, 0)
	for j := len(i.sent) - 1; j >= 0 && len(out) < limit; j-- {
		if i.sent[j].RecipientID == recipient {
			out = append(out, i.sent[j])
		}
	}
	return out, nil
}
