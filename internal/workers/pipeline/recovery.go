package pipeline

import (
	"context"

	"go.uber.org/zap"

	"prospector/internal/domain"
)

// recoverPhase repairs the damage a crashed or wedged worker leaves behind.
// It runs first in every cycle so the rest of the pipeline only ever sees
// consistent state.
func (w *Worker) recoverPhase(ctx context.Context, c *Counters) error {
	n, err := w.Recover(ctx)
	c.Recovered += n
	return err
}

// Recover performs one repair pass and reports how many records it touched.
// Also exposed on the control surface as a one-shot operation.
func (w *Worker) Recover(ctx context.Context) (int, error) {
	repaired := 0
	now := w.deps.Clock.Now()

	// Messages stuck mid-send or failed past the staleness threshold go back
	// to pending approval. The original transport error stays on the record
	// for manual review.
	stuck, err := w.deps.Messages.Stuck(ctx, now.Add(-w.cfg.StuckAfter))
	if err != nil {
		return repaired, err
	}
	for _, m := range stuck {
		if err := w.deps.Messages.SetMessageStatus(ctx, m.ID, domain.MsgPendingApproval); err != nil {
			w.log.Warn("unstick message failed", zap.String("message", m.ID), zap.Error(err))
			continue
		}
		repaired++
		w.log.Info("message unstuck",
			zap.String("message", m.ID),
			zap.String("was", string(m.Status)))
	}

	// Queued prospects with no live message cannot progress; the nearest
	// safe upstream state is enriched, where the enqueue phase finds them.
	orphans, err := w.deps.Prospects.OrphanedQueued(ctx)
	if err != nil {
		return repaired, err
	}
	for _, p := range orphans {
		if err := w.deps.Prospects.SetStatus(ctx, p.ID, domain.StatusEnriched); err != nil {
			w.log.Warn("orphan repair failed", zap.String("prospect", p.ID), zap.Error(err))
			continue
		}
		repaired++
		w.log.Info("orphaned queue entry repaired", zap.String("prospect", p.ID))
	}

	// Prospects whose bounce landed but whose routing never did (a crash
	// between the two writes) get the same priority-gated disposition the
	// bounce handler applies.
	if w.deps.Cadence != nil {
		stranded, err := w.deps.Prospects.StrandedBounced(ctx)
		if err != nil {
			return repaired, err
		}
		for _, p := range stranded {
			if err := w.deps.Cadence.RouteBounced(ctx, p); err != nil {
				w.log.Warn("bounce reroute failed", zap.String("prospect", p.ID), zap.Error(err))
				continue
			}
			repaired++
			w.log.Info("stranded bounce rerouted",
				zap.String("prospect", p.ID),
				zap.Int("priority", p.Priority))
		}
	}

	// Claims abandoned by a dead worker get released so another worker can
	// pick the items up.
	released, err := w.deps.Prospects.ReleaseStale(ctx, w.cfg.ClaimTTL)
	if err != nil {
		return repaired, err
	}
	if released > 0 {
		repaired += released
		w.log.Info("stale claims released", zap.Int("count", released))
	}
	return repaired, nil
}
