package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"prospector/internal/domain"
)

// --- AuditRepository ---

func (s *Store) CreateAudit(ctx context.Context, a *domain.Audit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.clock.Now()
	}
	cp := *a
	s.audits[a.ProspectID] = append(s.audits[a.ProspectID], &cp)
	return nil
}

func (s *Store) LatestByProspect(ctx context.Context, prospectID string) (domain.Audit, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.audits[prospectID]
	if len(list) == 0 {
		return domain.Audit{}, false, nil
	}
	latest := list[0]
	for _, a := range list[1:] {
		if a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	return *latest, true, nil
}

// --- AreaRepository ---

func (s *Store) CreateArea(ctx context.Context, a *domain.Area) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := s.clock.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	cp := *a
	s.areas[a.ID] = &cp
	return nil
}

func (s *Store) NextIncomplete(ctx context.Context) (domain.Area, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pool []*domain.Area
	for _, a := range s.areas {
		if !a.Complete {
			pool = append(pool, a)
		}
	}
	if len(pool) == 0 {
		return domain.Area{}, false, nil
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].CreatedAt.Before(pool[j].CreatedAt) })
	return *pool[0], true, nil
}

func (s *Store) Advance(ctx context.Context, id string, offset int, complete bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.areas[id]
	if !ok {
		return ErrNotFound
	}
	a.LastOffset = offset
	a.Complete = complete
	a.UpdatedAt = s.clock.Now()
	return nil
}

// AllProspects snapshots every prospect. Debug/test helper, not part of the
// repository port.
func (s *Store) AllProspects(ctx context.Context) []domain.Prospect {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Prospect, 0, len(s.prospects))
	for _, p := range s.prospects {
		out = append(out, *p)
	}
	return out
}

// AllMessages snapshots every message. Debug/test helper.
func (s *Store) AllMessages(ctx context.Context) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, *m)
	}
	return out
}
