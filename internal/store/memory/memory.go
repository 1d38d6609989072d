// Package memory is a process-local Store. State is lost on restart; it
// backs degraded mode and the tests.
package memory

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sudo-init-do/tradeexchange/internal/store"
)

var _ store.Store = (*Store)(nil)

// table keeps rows addressable by id while preserving insertion order.
type table[T any] struct {
	rows  map[string]T
	order []string
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T)}
}

func (t *table[T]) put(id string, v T) {
	if _, ok := t.rows[id]; !ok {
		t.order = append(t.order, id)
	}
	t.rows[id] = v
}

func (t *table[T]) get(id string) (T, bool) {
	v, ok := t.rows[id]
	return v, ok
}

func (t *table[T]) del(id string) bool {
	if _, ok := t.rows[id]; !ok {
		return false
	}
	delete(t.rows, id)
	t.order = slices.DeleteFunc(t.order, func(s string) bool { return s == id })
	return true
}

func (t *table[T]) all() []T {
	out := make([]T, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.rows[id])
	}
	return out
}

type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	users         *table[store.User]
	providers     *table[store.Provider]
	listings      *table[store.Listing]
	interactions  *table[store.Interaction]
	orders        *table[store.Order]
	conversations *table[store.Conversation]
	members       map[string][]string
	messages      map[string][]store.Message
	reviews       *table[store.Review]
}

func New() *Store {
	return &Store{
		now:           func() time.Time { return time.Now().UTC() },
		users:         newTable[store.User](),
		providers:     newTable[store.Provider](),
		listings:      newTable[store.Listing](),
		interactions:  newTable[store.Interaction](),
		orders:        newTable[store.Order](),
		conversations: newTable[store.Conversation](),
		members:       make(map[string][]string),
		messages:      make(map[string][]store.Message),
		reviews:       newTable[store.Review](),
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close()                     {}

func (s *Store) stamp(id *string, created *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if created.IsZero() {
		*created = s.now()
	}
}

// ---- users

func (s *Store) CreateUser(_ context.Context, u *store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range s.users.rows {
		if existing.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	s.stamp(&u.ID, &u.CreatedAt)
	s.users.put(u.ID, *u)
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users.get(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users.rows {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsers(context.Context) ([]store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users.all(), nil
}

func (s *Store) UpdateUser(_ context.Context, u *store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users.get(u.ID); !ok {
		return store.ErrNotFound
	}
	s.users.put(u.ID, *u)
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.users.del(id) {
		return store.ErrNotFound
	}
	return nil
}

// ---- providers

func (s *Store) CreateProvider(_ context.Context, p *store.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&p.ID, &p.CreatedAt)
	p.UpdatedAt = p.CreatedAt
	s.providers.put(p.ID, cloneProvider(*p))
	return nil
}

func (s *Store) GetProvider(_ context.Context, id string) (*store.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers.get(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	p = cloneProvider(p)
	return &p, nil
}

func (s *Store) ListProviders(context.Context) ([]store.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.providers.all()
	for i := range out {
		out[i] = cloneProvider(out[i])
	}
	return out, nil
}

func (s *Store) UpdateProvider(_ context.Context, p *store.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.providers.get(p.ID); !ok {
		return store.ErrNotFound
	}
	p.UpdatedAt = s.now()
	s.providers.put(p.ID, cloneProvider(*p))
	return nil
}

func (s *Store) DeleteProvider(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.providers.del(id) {
		return store.ErrNotFound
	}
	for _, l := range s.listings.all() {
		if l.ProviderID == id {
			s.listings.del(l.ID)
		}
	}
	for _, r := range s.reviews.all() {
		if r.ProviderID == id {
			s.reviews.del(r.ID)
		}
	}
	for _, o := range s.orders.all() {
		if o.ProviderID == id {
			s.orders.del(o.ID)
		}
	}
	for _, u := range s.users.all() {
		if u.ProviderID == id {
			u.ProviderID = ""
			s.users.put(u.ID, u)
		}
	}
	return nil
}

// ---- listings

func (s *Store) CreateListing(_ context.Context, l *store.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&l.ID, &l.CreatedAt)
	l.UpdatedAt = l.CreatedAt
	l.Version = 1
	s.listings.put(l.ID, *l)
	return nil
}

func (s *Store) GetListing(_ context.Context, id string) (*store.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings.get(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &l, nil
}

func (s *Store) ListListings(_ context.Context, f store.ListingFilter) ([]store.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tag := strings.ToLower(strings.TrimSpace(f.Tag))
	out := []store.Listing{}
	for _, l := range s.listings.all() {
		if f.ProviderID != "" && l.ProviderID != f.ProviderID {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if tag != "" && !slices.Contains(l.TagSet(), tag) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *Store) UpdateListing(_ context.Context, l *store.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.listings.get(l.ID)
	if !ok {
		return store.ErrNotFound
	}
	if cur.Version != l.Version {
		return store.ErrConflict
	}
	l.Version++
	l.UpdatedAt = s.now()
	s.listings.put(l.ID, *l)
	return nil
}

func (s *Store) DeleteListing(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.listings.del(id) {
		return store.ErrNotFound
	}
	return nil
}

// ---- interactions

func (s *Store) CreateInteraction(_ context.Context, i *store.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&i.ID, &i.At)
	s.interactions.put(i.ID, *i)
	return nil
}

// ListInteractions returns newest first.
func (s *Store) ListInteractions(_ context.Context, f store.InteractionFilter) ([]store.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []store.Interaction{}
	for _, i := range s.interactions.all() {
		if f.UserID != "" && i.UserID != f.UserID {
			continue
		}
		if f.ProviderID != "" && i.ProviderID != f.ProviderID {
			continue
		}
		out = append(out, i)
	}
	slices.Reverse(out)
	return out, nil
}

// ---- orders

func (s *Store) CreateOrder(_ context.Context, o *store.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&o.ID, &o.CreatedAt)
	o.UpdatedAt = o.CreatedAt
	o.Version = 1
	s.orders.put(o.ID, cloneOrder(*o))
	return nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*store.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders.get(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

// ListOrders returns newest first.
func (s *Store) ListOrders(_ context.Context, f store.OrderFilter) ([]store.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []store.Order{}
	for _, o := range s.orders.all() {
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		if f.ProviderID != "" && o.ProviderID != f.ProviderID {
			continue
		}
		if f.ConversationID != "" && o.Request.ConversationID != f.ConversationID {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	slices.Reverse(out)
	return out, nil
}

func (s *Store) FindLatestOrder(_ context.Context, customerID, providerID, listingID string) (*store.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *store.Order
	for _, o := range s.orders.all() {
		if o.CustomerID != customerID || o.ProviderID != providerID {
			continue
		}
		if listingID != "" && o.ListingID != listingID {
			continue
		}
		c := cloneOrder(o)
		found = &c
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

func (s *Store) UpdateOrder(_ context.Context, o *store.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.orders.get(o.ID)
	if !ok {
		return store.ErrNotFound
	}
	if cur.Version != o.Version {
		return store.ErrConflict
	}
	o.Version++
	o.UpdatedAt = s.now()
	s.orders.put(o.ID, cloneOrder(*o))
	return nil
}

// ---- conversations

func (s *Store) CreateConversation(_ context.Context, c *store.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&c.ID, &c.CreatedAt)
	c.UpdatedAt = c.CreatedAt
	s.conversations.put(c.ID, *c)
	return nil
}

func (s *Store) GetConversation(_ context.Context, id string) (*store.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations.get(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) FindConversations(_ context.Context, title, memberID string) ([]store.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []store.Conversation{}
	for _, c := range s.conversations.all() {
		if c.Title == title && slices.Contains(s.members[c.ID], memberID) {
			out = append(out, c)
		}
	}
	return out, nil
}

// ListConversations returns the member's conversations, most recently active first.
func (s *Store) ListConversations(_ context.Context, memberID string) ([]store.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []store.Conversation{}
	for _, c := range s.conversations.all() {
		if slices.Contains(s.members[c.ID], memberID) {
			out = append(out, c)
		}
	}
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b store.Conversation) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return out, nil
}

func (s *Store) AddMember(_ context.Context, conversationID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations.get(conversationID); !ok {
		return store.ErrNotFound
	}
	if !slices.Contains(s.members[conversationID], userID) {
		s.members[conversationID] = append(s.members[conversationID], userID)
	}
	return nil
}

func (s *Store) IsMember(_ context.Context, conversationID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.members[conversationID], userID), nil
}

func (s *Store) ListMembers(_ context.Context, conversationID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.members[conversationID]), nil
}

func (s *Store) AppendMessage(_ context.Context, m *store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations.get(m.ConversationID)
	if !ok {
		return store.ErrNotFound
	}
	s.stamp(&m.ID, &m.CreatedAt)
	s.messages[m.ConversationID] = append(s.messages[m.ConversationID], *m)
	c.LastMessage = m.Content
	c.UpdatedAt = m.CreatedAt
	s.conversations.put(c.ID, c)
	return nil
}

func (s *Store) ListMessages(_ context.Context, conversationID string) ([]store.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.messages[conversationID])
	if out == nil {
		out = []store.Message{}
	}
	return out, nil
}

// ---- reviews

func (s *Store) CreateReview(_ context.Context, r *store.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&r.ID, &r.CreatedAt)
	s.reviews.put(r.ID, *r)
	return nil
}

func (s *Store) ListReviews(_ context.Context, providerID string) ([]store.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []store.Review{}
	for _, r := range s.reviews.all() {
		if r.ProviderID == providerID {
			out = append(out, r)
		}
	}
	slices.Reverse(out)
	return out, nil
}

func cloneProvider(p store.Provider) store.Provider {
	p.Attributes = maps.Clone(p.Attributes)
	return p
}

func cloneOrder(o store.Order) store.Order {
	o.Request.Updates = slices.Clone(o.Request.Updates)
	return o
}
