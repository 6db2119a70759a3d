// Package memory implements the repository ports on in-process maps. It
// backs STORE=memory local runs and is the shared fake for service tests.
// Transition validation matches the Postgres adapter so tests exercise the
// same rules the real store enforces.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"prospector/internal/domain"
)

var ErrNotFound = errors.New("not found")

// ErrDuplicateStep is returned when a second live message would be created
// for the same (prospect, step).
var ErrDuplicateStep = errors.New("live message already exists for step")

type Store struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	prospects map[string]*domain.Prospect
	messages  map[string]*domain.Message
	audits    map[string][]*domain.Audit
	areas     map[string]*domain.Area
}

func New(clock clockwork.Clock) *Store {
	return &Store{
		clock:     clock,
		prospects: map[string]*domain.Prospect{},
		messages:  map[string]*domain.Message{},
		audits:    map[string][]*domain.Audit{},
		areas:     map[string]*domain.Area{},
	}
}

// --- ProspectRepository ---

func (s *Store) Create(ctx context.Context, p *domain.Prospect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = domain.StatusDiscovered
	}
	if !domain.ValidProspectStatus(p.Status) {
		return &domain.ErrBadTransition{Kind: "prospect", From: "", To: string(p.Status)}
	}
	now := s.clock.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	s.prospects[p.ID] = &cp
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.Prospect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prospects[id]
	if !ok {
		return domain.Prospect{}, ErrNotFound
	}
	return *p, nil
}

func (s *Store) SetStatus(ctx context.Context, id string, to domain.ProspectStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prospects[id]
	if !ok {
		return ErrNotFound
	}
	if !p.Status.CanTransition(to) {
		return &domain.ErrBadTransition{Kind: "prospect", From: string(p.Status), To: string(to)}
	}
	p.Status = to
	p.UpdatedAt = s.clock.Now()
	return nil
}

func (s *Store) SetContact(ctx context.Context, id string, owner *string, email, source string, verified bool, confidence int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prospects[id]
	if !ok {
		return ErrNotFound
	}
	p.OwnerName = owner
	p.Email = &email
	p.EmailSource = source
	p.EmailVerified = verified
	p.EmailConfidence = confidence
	p.UpdatedAt = s.clock.Now()
	return nil
}

func (s *Store) ClearContact(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prospects[id]
	if !ok {
		return ErrNotFound
	}
	p.OwnerName = nil
	p.Email = nil
	p.EmailSource = ""
	p.EmailVerified = false
	p.EmailConfidence = 0
	p.UpdatedAt = s.clock.Now()
	return nil
}

func (s *Store) SetAuditScores(ctx context.Context, id string, a domain.Audit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prospects[id]
	if !ok {
		return ErrNotFound
	}
	p.SpeedScore = intp(a.Speed)
	p.MobileScore = intp(a.Mobile)
	p.SEOScore = intp(a.SEO)
	p.SecurityScore = intp(a.Security)
	p.AccessibilityScore = intp(a.Access)
	p.OverallScore = intp(a.Overall)
	p.UpdatedAt = s.clock.Now()
	return nil
}

func (s *Store) SetScore(ctx context.Context, id string, b domain.ScoreBreakdown) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prospects[id]
	if !ok {
		return ErrNotFound
	}
	p.Score = b.Total
	p.Need = b.Need
	p.Ability = b.Ability
	p.Timing = b.Timing
	p.Tier = b.Tier
	p.Signals = append([]string(nil), b.Signals...)
	p.UpdatedAt = s.clock.Now()
	return nil
}

func (s *Store) RecordSend(ctx context.Context, id string) error {
	return s.bump(id, func(p *domain.Prospect) { p.EmailsSent++ })
}

func (s *Store) RecordOpen(ctx context.Context, id string) error {
	return s.bump(id, func(p *domain.Prospect) { p.Opens++ })
}

func (s *Store) RecordClick(ctx context.Context, id string) error {
	return s.bump(id, func(p *domain.Prospect) { p.Clicks++ })
}

func (s *Store) RecordReply(ctx context.Context, id string, sentiment string, at time.Time) error {
	return s.bump(id, func(p *domain.Prospect) {
		p.ReplySentiment = &sentiment
		p.RepliedAt = &at
	})
}

func (s *Store) bump(id string, f func(*domain.Prospect)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prospects[id]
	if !ok {
		return ErrNotFound
	}
	f(p)
	p.UpdatedAt = s.clock.Now()
	return nil
}

func (s *Store) ClaimForAudit(ctx context.Context, claimedBy string, limit int) ([]domain.Prospect, error) {
	return s.claim(claimedBy, limit, func(p *domain.Prospect) bool {
		return p.Status == domain.StatusDiscovered && p.HasWebsite
	}, byPriority)
}

func (s *Store) ClaimForRecon(ctx context.Context, claimedBy string, limit int) ([]domain.Prospect, error) {
	return s.claim(claimedBy, limit, func(p *domain.Prospect) bool {
		if p.Status == domain.StatusAudited && p.Email == nil {
			return true
		}
		// No-website prospects skip the audit phase entirely.
		return p.Status == domain.StatusDiscovered && !p.HasWebsite
	}, byPriority)
}

func (s *Store) ClaimForEnqueue(ctx context.Context, claimedBy string, limit int) ([]domain.Prospect, error) {
	return s.claim(claimedBy, limit, func(p *domain.Prospect) bool {
		return p.Status == domain.StatusEnriched && p.Email != nil
	}, byScore)
}

func byPriority(a, b *domain.Prospect) bool { return a.Priority > b.Priority }
func byScore(a, b *domain.Prospect) bool    { return a.Score > b.Score }

func (s *Store) claim(claimedBy string, limit int, match func(*domain.Prospect) bool, less func(a, b *domain.Prospect) bool) ([]domain.Prospect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pool []*domain.Prospect
	for _, p := range s.prospects {
		if p.ClaimedBy == nil && match(p) {
			pool = append(pool, p)
		}
	}
	sort.Slice(pool, func(i, j int) bool { return less(pool[i], pool[j]) })
	if len(pool) > limit {
		pool = pool[:limit]
	}
	now := s.clock.Now()
	out := make([]domain.Prospect, 0, len(pool))
	for _, p := range pool {
		by := claimedBy
		at := now
		p.ClaimedBy = &by
		p.ClaimedAt = &at
		out = append(out, *p)
	}
	return out, nil
}

func (s *Store) Release(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if p, ok := s.prospects[id]; ok {
			p.ClaimedBy = nil
			p.ClaimedAt = nil
		}
	}
	return nil
}

func (s *Store) ReleaseStale(ctx context.Context, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.clock.Now().Add(-maxAge)
	n := 0
	for _, p := range s.prospects {
		if p.ClaimedAt != nil && p.ClaimedAt.Before(cutoff) {
			p.ClaimedBy = nil
			p.ClaimedAt = nil
			n++
		}
	}
	return n, nil
}

func (s *Store) OrphanedQueued(ctx context.Context) ([]domain.Prospect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := map[string]bool{}
	for _, m := range s.messages {
		if !m.Status.Terminal() {
			live[m.ProspectID] = true
		}
	}
	var out []domain.Prospect
	for _, p := range s.prospects {
		if p.Status == domain.StatusQueued && !live[p.ID] {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *Store) StrandedBounced(ctx context.Context) ([]domain.Prospect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bounced := map[string]bool{}
	live := map[string]bool{}
	for _, m := range s.messages {
		if m.Status == domain.MsgBounced {
			bounced[m.ProspectID] = true
		}
		if !m.Status.Terminal() {
			live[m.ProspectID] = true
		}
	}
	var out []domain.Prospect
	for _, p := range s.prospects {
		switch p.Status {
		case domain.StatusContacted, domain.StatusFollowUp1, domain.StatusFollowUp2, domain.StatusFollowUp3:
		default:
			continue
		}
		if bounced[p.ID] && !live[p.ID] {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *Store) CountByStatus(ctx context.Context) (map[domain.ProspectStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[domain.ProspectStatus]int{}
	for _, p := range s.prospects {
		out[p.Status]++
	}
	return out, nil
}

func intp(v int) *int { return &v }
