package cadence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"prospector/internal/domain"
	"prospector/internal/ports"
)

// Sequence shape: up to 5 steps, each drafted only after the previous one
// settled, with a fixed delay before the next send window is consulted.
const MaxStep = 5

// stepDelays is the wait after step N settles before step N+1 may go out.
var stepDelays = map[int]time.Duration{
	1: 0,
	2: 3 * 24 * time.Hour,
	3: 7 * 24 * time.Hour,
	4: 14 * 24 * time.Hour,
	5: 90 * 24 * time.Hour,
}

var (
	// ErrNotContactable means the prospect is past the initial states.
	ErrNotContactable = errors.New("prospect not in a contactable state")
	// ErrNoContact means recon never produced an address.
	ErrNoContact = errors.New("prospect has no contact address")
	// ErrBlocked means the prospect matched the outreach blocklist.
	ErrBlocked = errors.New("prospect is blocklisted")
)

// Config tunes the engine.
type Config struct {
	// DailyCap is the hard limit on sends per UTC day across all workers.
	DailyCap int
	// BounceRescuePriority: bounced prospects at or above this value get
	// their contact cleared and go back through recon instead of dying.
	BounceRescuePriority int
	// BaseURL prefixes tracking endpoints (open pixel, redirect, unsubscribe).
	BaseURL string
}

// Service owns the outreach-message lifecycle.
type Service struct {
	prospects ports.ProspectRepository
	messages  ports.MessageRepository
	renderer  ports.Renderer
	transport ports.Transport
	notifier  ports.Notifier
	clock     clockwork.Clock
	cfg       Config
	log       *zap.Logger
}

func New(prospects ports.ProspectRepository, messages ports.MessageRepository, renderer ports.Renderer, transport ports.Transport, notifier ports.Notifier, clock clockwork.Clock, cfg Config, log *zap.Logger) *Service {
	if cfg.DailyCap == 0 {
		cfg.DailyCap = 50
	}
	if cfg.BounceRescuePriority == 0 {
		cfg.BounceRescuePriority = 35
	}
	return &Service{
		prospects: prospects,
		messages:  messages,
		renderer:  renderer,
		transport: transport,
		notifier:  notifier,
		clock:     clock,
		cfg:       cfg,
		log:       log,
	}
}

// Enqueue drafts the step-1 message for an enriched prospect and moves it to
// queued. Calling it again for the same prospect is a no-op.
func (s *Service) Enqueue(ctx context.Context, p domain.Prospect) error {
	// The idempotency check comes first: a prospect already holding a step-1
	// message has been enqueued (and is typically queued, which the
	// contactable refusal below would otherwise reject).
	existing, err := s.messages.ListByProspect(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	for _, m := range existing {
		if m.Step == 1 {
			return nil
		}
	}

	if !p.Status.Contactable() {
		return fmt.Errorf("%w: %s", ErrNotContactable, p.Status)
	}
	if p.Email == nil || *p.Email == "" {
		return ErrNoContact
	}
	if reason := BlockReason(p.BusinessName, *p.Email); reason != "" {
		if err := s.prospects.SetStatus(ctx, p.ID, domain.StatusDead); err != nil {
			return fmt.Errorf("mark blocked prospect dead: %w", err)
		}
		s.log.Info("prospect blocklisted", zap.String("prospect", p.ID), zap.String("reason", reason))
		return fmt.Errorf("%w: %s", ErrBlocked, reason)
	}

	if err := s.draftStep(ctx, p, 1, s.clock.Now()); err != nil {
		return err
	}
	if err := s.prospects.SetStatus(ctx, p.ID, domain.StatusQueued); err != nil {
		return fmt.Errorf("enter queued: %w", err)
	}
	return nil
}

// ScheduleNextStep drafts step completedStep+1 unless an exit condition
// holds: sequence exhausted, prospect already converted or excluded, or the
// final step's open requirement is unmet.
func (s *Service) ScheduleNextStep(ctx context.Context, prospectID string, completedStep int) error {
	next := completedStep + 1
	if next > MaxStep {
		return nil
	}
	p, err := s.prospects.Get(ctx, prospectID)
	if err != nil {
		return fmt.Errorf("get prospect: %w", err)
	}
	switch p.Status {
	case domain.StatusReplied, domain.StatusBooked, domain.StatusDead, domain.StatusOptedOut:
		return nil
	}
	// The breakup email only goes to people who showed a pulse.
	if next == MaxStep && p.Opens == 0 {
		return nil
	}
	live, err := s.messages.HasLiveStep(ctx, p.ID, next)
	if err != nil {
		return fmt.Errorf("check live step: %w", err)
	}
	if live {
		return nil
	}
	earliest := s.clock.Now().Add(stepDelays[next])
	return s.draftStep(ctx, p, next, earliest)
}

func (s *Service) draftStep(ctx context.Context, p domain.Prospect, step int, earliest time.Time) error {
	subject, body, err := s.renderer.Render(ctx, p, step)
	if err != nil {
		return fmt.Errorf("render step %d: %w", step, err)
	}
	msg := domain.Message{
		ID:            uuid.NewString(),
		ProspectID:    p.ID,
		Step:          step,
		Subject:       subject,
		Body:          body,
		TrackingToken: uuid.NewString(),
		Status:        domain.MsgPendingApproval,
		ScheduledAt:   NextSendTime(earliest, p.BusinessType),
	}
	if err := s.messages.CreateMessage(ctx, &msg); err != nil {
		return fmt.Errorf("create step %d message: %w", step, err)
	}
	s.log.Info("message drafted",
		zap.String("prospect", p.ID),
		zap.Int("step", step),
		zap.Time("scheduled_at", msg.ScheduledAt))
	return nil
}

// SendDue delivers operator-approved messages whose slot has arrived,
// bounded by the daily cap. A transport failure marks that message failed
// with its error retained and moves on; nothing is retried in-line.
func (s *Service) SendDue(ctx context.Context) (sent int, err error) {
	now := s.clock.Now()
	already, err := s.messages.SentToday(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("count sent today: %w", err)
	}
	room := s.cfg.DailyCap - already
	if room <= 0 {
		return 0, nil
	}
	due, err := s.messages.DueApproved(ctx, now, room)
	if err != nil {
		return 0, fmt.Errorf("list due: %w", err)
	}
	for _, m := range due {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if err := s.sendOne(ctx, m); err != nil {
			s.log.Warn("send failed", zap.String("message", m.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}

func (s *Service) sendOne(ctx context.Context, m domain.Message) error {
	p, err := s.prospects.Get(ctx, m.ProspectID)
	if err != nil {
		return fmt.Errorf("get prospect: %w", err)
	}
	if p.Email == nil {
		_ = s.messages.SetMessageStatus(ctx, m.ID, domain.MsgCancelled)
		return fmt.Errorf("prospect %s lost its contact address", p.ID)
	}
	if err := s.messages.SetMessageStatus(ctx, m.ID, domain.MsgSending); err != nil {
		return fmt.Errorf("enter sending: %w", err)
	}
	email := ports.OutboundEmail{
		To:      *p.Email,
		Subject: m.Subject,
		HTML:    s.injectTracking(m.Body, m.TrackingToken),
	}
	if err := s.transport.Send(ctx, email); err != nil {
		if mfErr := s.messages.MarkFailed(ctx, m.ID, err.Error()); mfErr != nil {
			s.log.Error("mark failed", zap.String("message", m.ID), zap.Error(mfErr))
		}
		return fmt.Errorf("transport: %w", err)
	}
	now := s.clock.Now()
	if err := s.messages.MarkSent(ctx, m.ID, now); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if err := s.prospects.RecordSend(ctx, p.ID); err != nil {
		return fmt.Errorf("record send: %w", err)
	}
	target := domain.FollowUpStatus(m.Step)
	if p.Status.CanTransition(target) {
		if err := s.prospects.SetStatus(ctx, p.ID, target); err != nil {
			return fmt.Errorf("advance prospect: %w", err)
		}
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, "message.sent", map[string]any{"prospect": p.ID, "step": m.Step})
	}
	return s.ScheduleNextStep(ctx, p.ID, m.Step)
}
