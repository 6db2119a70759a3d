package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"prospector/internal/domain"
)

// --- MessageRepository ---

func (s *Store) CreateMessage(ctx context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ex := range s.messages {
		if ex.ProspectID == m.ProspectID && ex.Step == m.Step && !ex.Status.Terminal() {
			return ErrDuplicateStep
		}
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := s.clock.Now()
	m.CreatedAt, m.UpdatedAt = now, now
	cp := *m
	s.messages[m.ID] = &cp
	return nil
}

func (s *Store) GetMessage(ctx context.Context, id string) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return domain.Message{}, ErrNotFound
	}
	return *m, nil
}

func (s *Store) GetByToken(ctx context.Context, token string) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.TrackingToken == token {
			return *m, nil
		}
	}
	return domain.Message{}, ErrNotFound
}

func (s *Store) ListByProspect(ctx context.Context, prospectID string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Message
	for _, m := range s.messages {
		if m.ProspectID == prospectID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out, nil
}

func (s *Store) HasLiveStep(ctx context.Context, prospectID string, step int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ProspectID == prospectID && m.Step == step && !m.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) DueApproved(ctx context.Context, now time.Time, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Message
	for _, m := range s.messages {
		if m.Status == domain.MsgApproved && !m.ScheduledAt.After(now) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SetMessageStatus(ctx context.Context, id string, to domain.MessageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	if !m.Status.CanTransition(to) {
		return &domain.ErrBadTransition{Kind: "message", From: string(m.Status), To: string(to)}
	}
	m.Status = to
	m.UpdatedAt = s.clock.Now()
	return nil
}

func (s *Store) MarkSent(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	if !m.Status.CanTransition(domain.MsgSent) {
		return &domain.ErrBadTransition{Kind: "message", From: string(m.Status), To: string(domain.MsgSent)}
	}
	m.Status = domain.MsgSent
	m.SentAt = &at
	m.UpdatedAt = s.clock.Now()
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	m.Status = domain.MsgFailed
	m.LastError = &reason
	m.UpdatedAt = s.clock.Now()
	return nil
}

func (s *Store) CancelUnsent(ctx context.Context, prospectID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages {
		if m.ProspectID != prospectID {
			continue
		}
		switch m.Status {
		case domain.MsgDraft, domain.MsgPendingApproval, domain.MsgApproved:
			m.Status = domain.MsgCancelled
			m.UpdatedAt = s.clock.Now()
			n++
		}
	}
	return n, nil
}

func (s *Store) Stuck(ctx context.Context, cutoff time.Time) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Message
	for _, m := range s.messages {
		if (m.Status == domain.MsgSending || m.Status == domain.MsgFailed) && m.UpdatedAt.Before(cutoff) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (s *Store) SentToday(ctx context.Context, day time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	y, mo, d := day.UTC().Date()
	n := 0
	for _, m := range s.messages {
		if m.SentAt == nil {
			continue
		}
		sy, smo, sd := m.SentAt.UTC().Date()
		if sy == y && smo == mo && sd == d {
			n++
		}
	}
	return n, nil
}
