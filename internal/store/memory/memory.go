// Package memory holds an in-memory implementation of the store interfaces.
// It mirrors the conditional-update semantics of the Postgres stores (guarded
// seat increments, pending-only invitation transitions) so service and
// scenario tests exercise the same state machine without a database.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"sproutlog.app/api/internal/model"
	"sproutlog.app/api/internal/store"
)

type state struct {
	organizations map[int64]model.Organization
	subscriptions map[int64]model.Subscription // keyed by organization ID
	members       map[int64]model.Member
	invitations   map[int64]model.Invitation
	users         map[int64]model.User
	sessions      map[int64]model.Session
}

func newState() *state {
	return &state{
		organizations: make(map[int64]model.Organization),
		subscriptions: make(map[int64]model.Subscription),
		members:       make(map[int64]model.Member),
		invitations:   make(map[int64]model.Invitation),
		users:         make(map[int64]model.User),
		sessions:      make(map[int64]model.Session),
	}
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (s *state) clone() *state {
	return &state{
		organizations: cloneMap(s.organizations),
		subscriptions: cloneMap(s.subscriptions),
		members:       cloneMap(s.members),
		invitations:   cloneMap(s.invitations),
		users:         cloneMap(s.users),
		sessions:      cloneMap(s.sessions),
	}
}

// Store is the in-memory root. Every operation takes the store-wide mutex,
// and WithTx holds it across the whole callback, so transactions are
// serialized exactly like conflicting row locks would serialize them.
type Store struct {
	mu   sync.Mutex
	data *state
}

func New() *Store {
	return &Store{data: newState()}
}

// WithTx runs fn against a snapshot-backed view. On error the pre-transaction
// state is restored, so partial writes never become visible.
func (s *Store) WithTx(ctx context.Context, fn func(view *Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	// The view shares s.data but carries its own (uncontended) mutex, so
	// callback operations lock the view instead of deadlocking on s.mu.
	view := &Store{data: s.data}

	err := fn(view)
	if err != nil {
		s.data = snapshot
	}
	return err
}

func (s *Store) Organizations() store.OrganizationStore { return orgStore{s} }
func (s *Store) Subscriptions() store.SubscriptionStore { return subStore{s} }
func (s *Store) Members() store.MemberStore             { return memberStore{s} }
func (s *Store) Invitations() store.InvitationStore     { return invStore{s} }
func (s *Store) Users() store.UserStore                 { return userStore{s} }
func (s *Store) Sessions() store.SessionStore           { return sessionStore{s} }

type orgStore struct{ s *Store }

func (o orgStore) GetByID(_ context.Context, id int64) (*model.Organization, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	org, ok := o.s.data.organizations[id]
	if !ok || org.IsDeleted {
		return nil, store.ErrNotFound
	}
	return &org, nil
}

func (o orgStore) GetBySlug(_ context.Context, slug string) (*model.Organization, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	for _, org := range o.s.data.organizations {
		if org.Slug == slug && !org.IsDeleted {
			return &org, nil
		}
	}
	return nil, store.ErrNotFound
}

func (o orgStore) Create(_ context.Context, org *model.Organization) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	for _, existing := range o.s.data.organizations {
		if existing.Slug == org.Slug {
			return store.ErrAlreadyExists
		}
	}
	now := time.Now()
	org.CreatedAt = now
	org.UpdatedAt = now
	o.s.data.organizations[org.ID] = *org
	return nil
}

func (o orgStore) Delete(_ context.Context, id int64) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	org, ok := o.s.data.organizations[id]
	if !ok {
		return store.ErrNotFound
	}
	org.IsDeleted = true
	org.UpdatedAt = time.Now()
	o.s.data.organizations[id] = org
	return nil
}

type subStore struct{ s *Store }

func (st subStore) GetByOrganization(_ context.Context, orgID int64) (*model.Subscription, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	sub, ok := st.s.data.subscriptions[orgID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sub, nil
}

func (st subStore) Create(_ context.Context, sub *model.Subscription) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	if _, exists := st.s.data.subscriptions[sub.OrganizationID]; exists {
		return store.ErrAlreadyExists
	}
	now := time.Now()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	st.s.data.subscriptions[sub.OrganizationID] = *sub
	return nil
}

// IncrementActiveSeats applies the same guard as the SQL store: status must
// admit members and there must be headroom, checked and written under the
// same lock.
func (st subStore) IncrementActiveSeats(_ context.Context, orgID int64) (*model.Subscription, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	sub, ok := st.s.data.subscriptions[orgID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !sub.CanAdmitMembers() || sub.ActiveSeats >= sub.MaxSeats {
		return nil, store.ErrSeatLimitExceeded
	}
	sub.ActiveSeats++
	sub.UpdatedAt = time.Now()
	st.s.data.subscriptions[orgID] = sub
	return &sub, nil
}

func (st subStore) DecrementActiveSeats(_ context.Context, orgID int64) (*model.Subscription, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	sub, ok := st.s.data.subscriptions[orgID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if sub.ActiveSeats <= 0 {
		return nil, store.ErrSeatUnderflow
	}
	sub.ActiveSeats--
	sub.UpdatedAt = time.Now()
	st.s.data.subscriptions[orgID] = sub
	return &sub, nil
}

type memberStore struct{ s *Store }

func (m memberStore) GetByID(_ context.Context, id int64) (*model.Member, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	member, ok := m.s.data.members[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &member, nil
}

func (m memberStore) GetByOrgAndUser(_ context.Context, orgID, userID int64) (*model.Member, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, member := range m.s.data.members {
		if member.OrganizationID == orgID && member.UserID == userID {
			return &member, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m memberStore) GetOwner(_ context.Context, orgID int64) (*model.Member, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, member := range m.s.data.members {
		if member.OrganizationID == orgID && member.Role == model.RoleOwner {
			return &member, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m memberStore) ExistsByOrgAndEmail(_ context.Context, orgID int64, email string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, member := range m.s.data.members {
		if member.OrganizationID != orgID {
			continue
		}
		user, ok := m.s.data.users[member.UserID]
		if ok && strings.EqualFold(user.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m memberStore) Create(_ context.Context, member *model.Member) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.data.members {
		if existing.OrganizationID == member.OrganizationID && existing.UserID == member.UserID {
			return store.ErrAlreadyExists
		}
	}
	now := time.Now()
	member.JoinedAt = now
	member.UpdatedAt = now
	m.s.data.members[member.ID] = *member
	return nil
}

func (m memberStore) UpdateRole(_ context.Context, id int64, role model.OrganizationRole) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	member, ok := m.s.data.members[id]
	if !ok {
		return store.ErrNotFound
	}
	member.Role = role
	member.UpdatedAt = time.Now()
	m.s.data.members[id] = member
	return nil
}

func (m memberStore) Delete(_ context.Context, id int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.data.members[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.s.data.members, id)
	return nil
}

func (m memberStore) ListProfilesByOrganization(_ context.Context, orgID int64) ([]model.MemberProfile, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var profiles []model.MemberProfile
	for _, member := range m.s.data.members {
		if member.OrganizationID != orgID {
			continue
		}
		user := m.s.data.users[member.UserID]
		profiles = append(profiles, model.MemberProfile{
			MemberID:         member.ID,
			UserID:           member.UserID,
			Name:             user.Name,
			Email:            user.Email,
			Role:             member.Role,
			OnboardingStatus: member.OnboardingStatus,
			JoinedAt:         member.JoinedAt,
		})
	}
	sortProfiles(profiles)
	return profiles, nil
}

func (m memberStore) ListByUser(_ context.Context, userID int64) ([]model.Member, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var members []model.Member
	for _, member := range m.s.data.members {
		if member.UserID == userID {
			members = append(members, member)
		}
	}
	return members, nil
}

func sortProfiles(profiles []model.MemberProfile) {
	for i := 1; i < len(profiles); i++ {
		for j := i; j > 0 && profiles[j].JoinedAt.Before(profiles[j-1].JoinedAt); j-- {
			profiles[j], profiles[j-1] = profiles[j-1], profiles[j]
		}
	}
}

type invStore struct{ s *Store }

func (iv invStore) Create(_ context.Context, inv *model.Invitation) error {
	iv.s.mu.Lock()
	defer iv.s.mu.Unlock()
	for _, existing := range iv.s.data.invitations {
		if existing.Token == inv.Token {
			return store.ErrAlreadyExists
		}
	}
	inv.CreatedAt = time.Now()
	iv.s.data.invitations[inv.ID] = *inv
	return nil
}

func (iv invStore) GetByID(_ context.Context, id int64) (*model.Invitation, error) {
	iv.s.mu.Lock()
	defer iv.s.mu.Unlock()
	inv, ok := iv.s.data.invitations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &inv, nil
}

func (iv invStore) GetByToken(_ context.Context, token string) (*model.Invitation, error) {
	iv.s.mu.Lock()
	defer iv.s.mu.Unlock()
	for _, inv := range iv.s.data.invitations {
		if inv.Token == token {
			return &inv, nil
		}
	}
	return nil, store.ErrNotFound
}

func (iv invStore) GetPendingByOrgAndEmail(_ context.Context, orgID int64, email string) (*model.Invitation, error) {
	iv.s.mu.Lock()
	defer iv.s.mu.Unlock()
	for _, inv := range iv.s.data.invitations {
		if inv.OrganizationID == orgID && inv.Status == model.InvitationStatusPending &&
			strings.EqualFold(inv.Email, email) && time.Now().Before(inv.ExpiresAt) {
			return &inv, nil
		}
	}
	return nil, store.ErrNotFound
}

// Accept transitions pending -> accepted. The pending guard runs under the
// same lock as the write, so of two concurrent accepts exactly one wins.
func (iv invStore) Accept(_ context.Context, id, userID int64) (*model.Invitation, error) {
	iv.s.mu.Lock()
	defer iv.s.mu.Unlock()
	inv, ok := iv.s.data.invitations[id]
	if !ok || inv.Status != model.InvitationStatusPending {
		return nil, store.ErrNotFound
	}
	now := time.Now()
	inv.Status = model.InvitationStatusAccepted
	inv.AcceptedBy = &userID
	inv.AcceptedAt = &now
	iv.s.data.invitations[id] = inv
	return &inv, nil
}

func (iv invStore) MarkExpired(_ context.Context, id int64) error {
	iv.s.mu.Lock()
	defer iv.s.mu.Unlock()
	inv, ok := iv.s.data.invitations[id]
	if !ok || inv.Status != model.InvitationStatusPending {
		return store.ErrNotFound
	}
	inv.Status = model.InvitationStatusExpired
	iv.s.data.invitations[id] = inv
	return nil
}

func (iv invStore) Cancel(_ context.Context, id int64) (*model.Invitation, error) {
	iv.s.mu.Lock()
	defer iv.s.mu.Unlock()
	inv, ok := iv.s.data.invitations[id]
	if !ok || inv.Status != model.InvitationStatusPending {
		return nil, store.ErrNotFound
	}
	inv.Status = model.InvitationStatusCanceled
	iv.s.data.invitations[id] = inv
	return &inv, nil
}

func (iv invStore) ListByOrganization(_ context.Context, orgID int64) ([]model.Invitation, error) {
	iv.s.mu.Lock()
	defer iv.s.mu.Unlock()
	var invs []model.Invitation
	for _, inv := range iv.s.data.invitations {
		if inv.OrganizationID == orgID {
			invs = append(invs, inv)
		}
	}
	return invs, nil
}

func (iv invStore) ListPendingByOrganization(_ context.Context, orgID int64) ([]model.Invitation, error) {
	iv.s.mu.Lock()
	defer iv.s.mu.Unlock()
	var invs []model.Invitation
	for _, inv := range iv.s.data.invitations {
		if inv.OrganizationID == orgID && inv.Status == model.InvitationStatusPending {
			invs = append(invs, inv)
		}
	}
	return invs, nil
}

func (iv invStore) ExpireOld(_ context.Context) (int64, error) {
	iv.s.mu.Lock()
	defer iv.s.mu.Unlock()
	var n int64
	now := time.Now()
	for id, inv := range iv.s.data.invitations {
		if inv.Status == model.InvitationStatusPending && inv.ExpiresAt.Before(now) {
			inv.Status = model.InvitationStatusExpired
			iv.s.data.invitations[id] = inv
			n++
		}
	}
	return n, nil
}

type userStore struct{ s *Store }

func (u userStore) GetByID(_ context.Context, id int64) (*model.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.data.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (u userStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, user := range u.s.data.users {
		if strings.EqualFold(user.Email, email) {
			return &user, nil
		}
	}
	return nil, store.ErrNotFound
}

func (u userStore) Create(_ context.Context, user *model.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, existing := range u.s.data.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return store.ErrAlreadyExists
		}
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	u.s.data.users[user.ID] = *user
	return nil
}

func (u userStore) UpsertByWorkOSID(_ context.Context, user *model.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if user.WorkOSID != nil {
		for id, existing := range u.s.data.users {
			if existing.WorkOSID != nil && *existing.WorkOSID == *user.WorkOSID {
				existing.Name = user.Name
				existing.Email = user.Email
				existing.AvatarURL = user.AvatarURL
				existing.UpdatedAt = time.Now()
				u.s.data.users[id] = existing
				*user = existing
				return nil
			}
		}
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	u.s.data.users[user.ID] = *user
	return nil
}

type sessionStore struct{ s *Store }

func (ss sessionStore) GetValid(_ context.Context, id int64) (*model.Session, error) {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	session, ok := ss.s.data.sessions[id]
	if !ok || time.Now().After(session.ExpiresAt) {
		return nil, store.ErrNotFound
	}
	return &session, nil
}

func (ss sessionStore) Create(_ context.Context, session *model.Session) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	session.CreatedAt = time.Now()
	ss.s.data.sessions[session.ID] = *session
	return nil
}

func (ss sessionStore) Delete(_ context.Context, id int64) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	delete(ss.s.data.sessions, id)
	return nil
}

func (ss sessionStore) DeleteExpired(_ context.Context) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	now := time.Now()
	for id, session := range ss.s.data.sessions {
		if now.After(session.ExpiresAt) {
			delete(ss.s.data.sessions, id)
		}
	}
	return nil
}
