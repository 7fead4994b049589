package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mymiscarriage/apiserver/internal/store"
	"github.com/mymiscarriage/apiserver/types"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// TestimonyRepository defines persistence operations for testimonies.
type TestimonyRepository interface {
	List(ctx context.Context, filter types.TestimonyFilter, offset, limit int) ([]types.Testimony, int, error)
	ListByStatus(ctx context.Context, status types.Status, limit int) ([]types.Testimony, error)
	Get(ctx context.Context, id string) (types.Testimony, error)
	Create(ctx context.Context, testimony types.Testimony) (types.Testimony, error)
	Update(ctx context.Context, id string, patch types.TestimonyPatch) (types.Testimony, error)
}

// EventPublisher receives testimony lifecycle notifications.
type EventPublisher interface {
	TestimonySubmitted(ctx context.Context, testimony types.Testimony)
	TestimonyModerated(ctx context.Context, testimony types.Testimony, previous types.Status)
}

// TestimonyService encapsulates submission and moderation use-cases.
type TestimonyService struct {
	repo   TestimonyRepository
	events EventPublisher
	now    func() time.Time
	newID  func() string
}

// NewTestimonyService builds the service. events may be nil.
func NewTestimonyService(repo TestimonyRepository, events EventPublisher) *TestimonyService {
	return &TestimonyService{
		repo:   repo,
		events: events,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Create validates a visitor submission and stores it as pending.
func (s *TestimonyService) Create(ctx context.Context, in types.TestimonyInput) (types.Testimony, error) {
	testimony, err := ValidateTestimonyInput(in)
	if err != nil {
		return types.Testimony{}, err
	}

	testimony.ID = s.newID()
	testimony.Status = types.StatusPending
	testimony.CreatedAt = s.now().UTC()

	created, err := s.repo.Create(ctx, testimony)
	if err != nil {
		return types.Testimony{}, err
	}
	if s.events != nil {
		s.events.TestimonySubmitted(ctx, created)
	}
	return created, nil
}

// List returns one page of testimonies matching filter. page starts at 1.
func (s *TestimonyService) List(ctx context.Context, filter types.TestimonyFilter, page, limit int) (types.TestimonyPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	items, total, err := s.repo.List(ctx, filter, (page-1)*limit, limit)
	if err != nil {
		return types.TestimonyPage{}, err
	}
	if items == nil {
		items = []types.Testimony{}
	}

	return types.TestimonyPage{
		Items:       items,
		TotalPages:  (total + limit - 1) / limit,
		CurrentPage: page,
	}, nil
}

// ListPublished is List restricted to approved testimonies, whatever
// status the filter asked for.
func (s *TestimonyService) ListPublished(ctx context.Context, filter types.TestimonyFilter, page, limit int) (types.TestimonyPage, error) {
	approved := types.StatusApproved
	filter.Status = &approved
	return s.List(ctx, filter, page, limit)
}

func (s *TestimonyService) Get(ctx context.Context, id string) (types.Testimony, error) {
	return s.repo.Get(ctx, id)
}

// GetPublished hides testimonies that are not approved behind ErrNotFound.
func (s *TestimonyService) GetPublished(ctx context.Context, id string) (types.Testimony, error) {
	testimony, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Testimony{}, err
	}
	if testimony.Status != types.StatusApproved {
		return types.Testimony{}, store.ErrNotFound
	}
	return testimony, nil
}

// ListPending returns the moderation queue, newest first.
func (s *TestimonyService) ListPending(ctx context.Context, limit int) ([]types.Testimony, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	items, err := s.repo.ListByStatus(ctx, types.StatusPending, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []types.Testimony{}
	}
	return items, nil
}

// Update applies a moderator patch. Any status may be set from any status.
func (s *TestimonyService) Update(ctx context.Context, id string, patch types.TestimonyPatch) (types.Testimony, error) {
	patch, err := ValidateTestimonyPatch(patch)
	if err != nil {
		return types.Testimony{}, err
	}

	var previous types.Status
	if patch.Status != nil {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return types.Testimony{}, err
		}
		previous = current.Status
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return types.Testimony{}, err
	}
	if s.events != nil && patch.Status != nil && updated.Status != previous {
		s.events.TestimonyModerated(ctx, updated, previous)
	}
	return updated, nil
}
