package services

import (
	"context"
	"sort"
	"sync"

	"github.com/mymiscarriage/apiserver/internal/storage"
	"github.com/mymiscarriage/apiserver/internal/store"
	"github.com/mymiscarriage/apiserver/types"
)

type memoryTestimonies struct {
	mu          sync.Mutex
	items       map[string]types.Testimony
	createCalls int
	updateCalls int
	err         error
}

func newMemoryTestimonies() *memoryTestimonies {
	return &memoryTestimonies{items: map[string]types.Testimony{}}
}

func (m *memoryTestimonies) sorted(keep func(types.Testimony) bool) []types.Testimony {
	out := make([]types.Testimony, 0, len(m.items))
	for _, t := range m.items {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (m *memoryTestimonies) List(ctx context.Context, filter types.TestimonyFilter, offset, limit int) ([]types.Testimony, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, 0, m.err
	}
	matched := m.sorted(func(t types.Testimony) bool {
		if filter.Status != nil && t.Status != *filter.Status {
			return false
		}
		if filter.WhenWeeks != nil && t.WhenWeeks != *filter.WhenWeeks {
			return false
		}
		return true
	})
	total := len(matched)
	if offset >= total {
		return []types.Testimony{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (m *memoryTestimonies) ListByStatus(ctx context.Context, status types.Status, limit int) ([]types.Testimony, error) {
	items, _, err := m.List(ctx, types.TestimonyFilter{Status: &status}, 0, limit)
	return items, err
}

func (m *memoryTestimonies) Get(ctx context.Context, id string) (types.Testimony, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return types.Testimony{}, m.err
	}
	t, ok := m.items[id]
	if !ok {
		return types.Testimony{}, store.ErrNotFound
	}
	return t, nil
}

func (m *memoryTestimonies) Create(ctx context.Context, t types.Testimony) (types.Testimony, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.err != nil {
		return types.Testimony{}, m.err
	}
	m.items[t.ID] = t
	return t, nil
}

func (m *memoryTestimonies) Update(ctx context.Context, id string, patch types.TestimonyPatch) (types.Testimony, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.err != nil {
		return types.Testimony{}, m.err
	}
	t, ok := m.items[id]
	if !ok {
		return types.Testimony{}, store.ErrNotFound
	}
	if patch.Name != nil {
		t.Name = *patch.Name
	}
	if patch.Story != nil {
		t.Story = *patch.Story
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	m.items[id] = t
	return t, nil
}

type recordedEvent struct {
	kind     string
	id       string
	status   types.Status
	previous types.Status
}

type recordingPublisher struct {
	events []recordedEvent
}

func (p *recordingPublisher) TestimonySubmitted(ctx context.Context, t types.Testimony) {
	p.events = append(p.events, recordedEvent{kind: "submitted", id: t.ID, status: t.Status})
}

func (p *recordingPublisher) TestimonyModerated(ctx context.Context, t types.Testimony, previous types.Status) {
	p.events = append(p.events, recordedEvent{kind: "moderated", id: t.ID, status: t.Status, previous: previous})
}

type memoryModerators struct {
	mu      sync.Mutex
	byEmail map[string]types.Moderator
	err     error
}

func newMemoryModerators() *memoryModerators {
	return &memoryModerators{byEmail: map[string]types.Moderator{}}
}

func (m *memoryModerators) Create(ctx context.Context, moderator types.Moderator) (types.Moderator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return types.Moderator{}, m.err
	}
	if _, exists := m.byEmail[moderator.Email]; exists {
		return types.Moderator{}, store.ErrConflict
	}
	m.byEmail[moderator.Email] = moderator
	return moderator, nil
}

func (m *memoryModerators) GetByEmail(ctx context.Context, email string) (types.Moderator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return types.Moderator{}, m.err
	}
	moderator, ok := m.byEmail[email]
	if !ok {
		return types.Moderator{}, store.ErrNotFound
	}
	return moderator, nil
}

func (m *memoryModerators) GetByToken(ctx context.Context, token string) (types.Moderator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return types.Moderator{}, m.err
	}
	for _, moderator := range m.byEmail {
		if moderator.AccessToken == token {
			return moderator, nil
		}
	}
	return types.Moderator{}, store.ErrNotFound
}

type memorySignupKeys struct {
	keys     map[string]bool // "email|key" -> consumed
	consumed int
}

func newMemorySignupKeys(pairs ...string) *memorySignupKeys {
	keys := map[string]bool{}
	for _, p := range pairs {
		keys[p] = false
	}
	return &memorySignupKeys{keys: keys}
}

func (m *memorySignupKeys) GetUnconsumed(ctx context.Context, email, key string) (types.SignupKey, error) {
	consumed, ok := m.keys[email+"|"+key]
	if !ok || consumed {
		return types.SignupKey{}, store.ErrNotFound
	}
	return types.SignupKey{Email: email, Key: key}, nil
}

func (m *memorySignupKeys) Consume(ctx context.Context, email, key string) error {
	k := email + "|" + key
	if consumed, ok := m.keys[k]; !ok || consumed {
		return store.ErrNotFound
	}
	m.keys[k] = true
	m.consumed++
	return nil
}

type memoryObjects struct {
	objects map[string]storage.Object
}

func (m *memoryObjects) Write(ctx context.Context, obj storage.Object) error {
	if m.objects == nil {
		m.objects = map[string]storage.Object{}
	}
	m.objects[obj.Key] = obj
	return nil
}
