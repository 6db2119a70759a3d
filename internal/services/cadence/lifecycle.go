package cadence

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"prospector/internal/domain"
)

// Approve releases a drafted message for sending at its scheduled slot.
func (s *Service) Approve(ctx context.Context, messageID string) error {
	return s.messages.SetMessageStatus(ctx, messageID, domain.MsgApproved)
}

// Regenerate sends a failed message back to pending approval for another
// attempt; the original error stays on the record.
func (s *Service) Regenerate(ctx context.Context, messageID string) error {
	return s.messages.SetMessageStatus(ctx, messageID, domain.MsgPendingApproval)
}

// HandleOpen records an open-pixel hit for a tracking token.
func (s *Service) HandleOpen(ctx context.Context, token string) error {
	m, err := s.messages.GetByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("token lookup: %w", err)
	}
	if m.Status.CanTransition(domain.MsgOpened) {
		if err := s.messages.SetMessageStatus(ctx, m.ID, domain.MsgOpened); err != nil {
			return err
		}
	}
	return s.prospects.RecordOpen(ctx, m.ProspectID)
}

// HandleClick records a link click for a tracking token.
func (s *Service) HandleClick(ctx context.Context, token string) error {
	m, err := s.messages.GetByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("token lookup: %w", err)
	}
	if m.Status.CanTransition(domain.MsgClicked) {
		if err := s.messages.SetMessageStatus(ctx, m.ID, domain.MsgClicked); err != nil {
			return err
		}
	}
	return s.prospects.RecordClick(ctx, m.ProspectID)
}

// HandleReply marks the message and prospect replied and cancels any unsent
// future steps; the sequence is over.
func (s *Service) HandleReply(ctx context.Context, token, sentiment string) error {
	m, err := s.messages.GetByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("token lookup: %w", err)
	}
	if m.Status.CanTransition(domain.MsgReplied) {
		if err := s.messages.SetMessageStatus(ctx, m.ID, domain.MsgReplied); err != nil {
			return err
		}
	}
	if _, err := s.messages.CancelUnsent(ctx, m.ProspectID); err != nil {
		return fmt.Errorf("cancel unsent: %w", err)
	}
	if err := s.prospects.RecordReply(ctx, m.ProspectID, sentiment, s.clock.Now()); err != nil {
		return err
	}
	p, err := s.prospects.Get(ctx, m.ProspectID)
	if err != nil {
		return err
	}
	if p.Status.CanTransition(domain.StatusReplied) {
		if err := s.prospects.SetStatus(ctx, p.ID, domain.StatusReplied); err != nil {
			return err
		}
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, "prospect.replied", map[string]any{"prospect": p.ID, "sentiment": sentiment})
	}
	return nil
}

// HandleBounce terminates the address. High-value prospects get their
// contact cleared and go back through recon; the rest are marked dead.
// Future unsent steps are cancelled either way.
func (s *Service) HandleBounce(ctx context.Context, token string) error {
	m, err := s.messages.GetByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("token lookup: %w", err)
	}
	if m.Status.CanTransition(domain.MsgBounced) {
		if err := s.messages.SetMessageStatus(ctx, m.ID, domain.MsgBounced); err != nil {
			return err
		}
	}
	if _, err := s.messages.CancelUnsent(ctx, m.ProspectID); err != nil {
		return fmt.Errorf("cancel unsent: %w", err)
	}
	p, err := s.prospects.Get(ctx, m.ProspectID)
	if err != nil {
		return err
	}
	return s.RouteBounced(ctx, p)
}

// RouteBounced applies the bounce disposition to a prospect whose sequence
// ended in a bounce: high-value prospects get their contact cleared and go
// back through recon, the rest are marked dead. Recovery also calls it for
// prospects whose bounce landed but whose routing never did.
func (s *Service) RouteBounced(ctx context.Context, p domain.Prospect) error {
	if p.Priority >= s.cfg.BounceRescuePriority {
		if err := s.prospects.ClearContact(ctx, p.ID); err != nil {
			return fmt.Errorf("clear contact: %w", err)
		}
		if err := s.prospects.SetStatus(ctx, p.ID, domain.StatusAudited); err != nil {
			return fmt.Errorf("route back to recon: %w", err)
		}
		s.log.Info("bounce rescued", zap.String("prospect", p.ID), zap.Int("priority", p.Priority))
		return nil
	}
	if err := s.prospects.SetStatus(ctx, p.ID, domain.StatusDead); err != nil {
		return fmt.Errorf("mark dead: %w", err)
	}
	s.log.Info("bounce killed prospect", zap.String("prospect", p.ID), zap.Int("priority", p.Priority))
	return nil
}

// HandleUnsubscribe permanently excludes the prospect and cancels all
// pending messages.
func (s *Service) HandleUnsubscribe(ctx context.Context, token string) error {
	m, err := s.messages.GetByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("token lookup: %w", err)
	}
	if _, err := s.messages.CancelUnsent(ctx, m.ProspectID); err != nil {
		return fmt.Errorf("cancel unsent: %w", err)
	}
	return s.prospects.SetStatus(ctx, m.ProspectID, domain.StatusOptedOut)
}

// Resubscribe is the operator-driven reversal of an opt-out, re-entering
// the lifecycle at audited.
func (s *Service) Resubscribe(ctx context.Context, prospectID string) error {
	return s.prospects.SetStatus(ctx, prospectID, domain.StatusAudited)
}

var hrefPattern = regexp.MustCompile(`href="(https?://[^"]+)"`)

// injectTracking rewrites outbound links through the click redirect, appends
// the open pixel, and adds the unsubscribe footer.
func (s *Service) injectTracking(body, token string) string {
	base := strings.TrimSuffix(s.cfg.BaseURL, "/")
	out := hrefPattern.ReplaceAllStringFunc(body, func(match string) string {
		target := hrefPattern.FindStringSubmatch(match)[1]
		return fmt.Sprintf(`href="%s/t/%s/click?u=%s"`, base, token, url.QueryEscape(target))
	})
	out += fmt.Sprintf(`<img src="%s/t/%s/open.gif" width="1" height="1" alt="">`, base, token)
	out += fmt.Sprintf(`<p style="font-size:11px;color:#999"><a href="%s/t/%s/unsubscribe">Unsubscribe</a></p>`, base, token)
	return out
}
