// Package pipeline drives prospects through the outreach lifecycle. Each
// Worker is a timer loop executing the phases of one cycle in fixed order;
// a Manager supervises several named workers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"prospector/internal/domain"
	"prospector/internal/ports"
	"prospector/internal/services/cadence"
	"prospector/internal/services/recon"
	"prospector/internal/services/scoring"
)

// Config bounds each cycle. Batch caps and the per-item delay keep external
// call rates and cycle latency predictable.
type Config struct {
	CycleInterval time.Duration
	ItemDelay     time.Duration
	CrawlBatch    int
	AuditBatch    int
	ReconBatch    int
	EnqueueBatch  int
	// StuckAfter is how long a message may sit in sending/failed before
	// recovery repairs it.
	StuckAfter time.Duration
	// ClaimTTL is how long a claim stamp may survive before it is presumed
	// abandoned by a crashed worker.
	ClaimTTL time.Duration
	// Stagger delays this worker's first cycle to spread workers out.
	Stagger time.Duration
}

func (c *Config) fillDefaults() {
	if c.CycleInterval == 0 {
		c.CycleInterval = 5 * time.Minute
	}
	if c.ItemDelay == 0 {
		c.ItemDelay = 2 * time.Second
	}
	if c.CrawlBatch == 0 {
		c.CrawlBatch = 20
	}
	if c.AuditBatch == 0 {
		c.AuditBatch = 10
	}
	if c.ReconBatch == 0 {
		c.ReconBatch = 10
	}
	if c.EnqueueBatch == 0 {
		c.EnqueueBatch = 15
	}
	if c.StuckAfter == 0 {
		c.StuckAfter = 15 * time.Minute
	}
	if c.ClaimTTL == 0 {
		c.ClaimTTL = 30 * time.Minute
	}
}

// Deps bundles everything a worker touches.
type Deps struct {
	Prospects ports.ProspectRepository
	Messages  ports.MessageRepository
	Audits    ports.AuditRepository
	Areas     ports.AreaRepository
	Crawler   ports.Crawler
	Auditor   ports.Auditor
	Recon     *recon.Service
	Cadence   *cadence.Service
	Clock     clockwork.Clock
	Log       *zap.Logger
}

// Counters are one worker's lifetime totals.
type Counters struct {
	Cycles    int
	Crawled   int
	Audited   int
	Enriched  int
	Enqueued  int
	Sent      int
	Recovered int
	Errors    int
}

func (c Counters) add(o Counters) Counters {
	c.Cycles += o.Cycles
	c.Crawled += o.Crawled
	c.Audited += o.Audited
	c.Enriched += o.Enriched
	c.Enqueued += o.Enqueued
	c.Sent += o.Sent
	c.Recovered += o.Recovered
	c.Errors += o.Errors
	return c
}

// Worker runs the pipeline cycle on a fixed interval until its context is
// cancelled. All state lives in the store; a worker killed mid-cycle leaves
// every completed transition committed.
type Worker struct {
	name string
	deps Deps
	cfg  Config
	log  *zap.Logger

	mu       sync.Mutex
	counters Counters
}

func NewWorker(name string, deps Deps, cfg Config) *Worker {
	cfg.fillDefaults()
	return &Worker{
		name: name,
		deps: deps,
		cfg:  cfg,
		log:  deps.Log.With(zap.String("worker", name)),
	}
}

func (w *Worker) Name() string { return w.name }

// Counters returns a snapshot of the worker's totals.
func (w *Worker) Counters() Counters {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.counters
}

// Run is the worker loop. Cycle errors are logged and the loop continues on
// the next tick; only context cancellation stops it.
func (w *Worker) Run(ctx context.Context) {
	if w.cfg.Stagger > 0 {
		if !w.sleep(ctx, w.cfg.Stagger) {
			return
		}
	}
	w.log.Info("worker started", zap.Duration("interval", w.cfg.CycleInterval))
	for {
		w.Cycle(ctx)
		if !w.sleep(ctx, w.cfg.CycleInterval) {
			w.log.Info("worker stopped")
			return
		}
	}
}

// Cycle executes one full pass: recovery, crawl continuation, audit, recon,
// enqueue, send. Phases run strictly in that order; a failing phase is
// logged and the cycle moves on so one flaky collaborator cannot starve the
// rest of the pipeline.
func (w *Worker) Cycle(ctx context.Context) Counters {
	var c Counters
	c.Cycles = 1

	phases := []struct {
		name string
		run  func(context.Context, *Counters) error
	}{
		{"recovery", w.recoverPhase},
		{"crawl", w.crawlPhase},
		{"audit", w.auditPhase},
		{"recon", w.reconPhase},
		{"enqueue", w.enqueuePhase},
		{"send", w.sendPhase},
	}
	for _, ph := range phases {
		if ctx.Err() != nil {
			break
		}
		if err := ph.run(ctx, &c); err != nil && !errors.Is(err, context.Canceled) {
			c.Errors++
			w.log.Warn("phase failed", zap.String("phase", ph.name), zap.Error(err))
		}
	}

	w.mu.Lock()
	w.counters = w.counters.add(c)
	w.mu.Unlock()

	w.log.Info("cycle complete",
		zap.Int("crawled", c.Crawled),
		zap.Int("audited", c.Audited),
		zap.Int("enriched", c.Enriched),
		zap.Int("enqueued", c.Enqueued),
		zap.Int("sent", c.Sent),
		zap.Int("recovered", c.Recovered),
		zap.Int("errors", c.Errors))
	return c
}

func (w *Worker) crawlPhase(ctx context.Context, c *Counters) error {
	if w.deps.Crawler == nil {
		return nil
	}
	area, found, err := w.deps.Areas.NextIncomplete(ctx)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	n, done, err := w.deps.Crawler.Continue(ctx, area, w.cfg.CrawlBatch)
	if err != nil {
		return err
	}
	c.Crawled += n
	return w.deps.Areas.Advance(ctx, area.ID, area.LastOffset+n, done)
}

func (w *Worker) auditPhase(ctx context.Context, c *Counters) error {
	if w.deps.Auditor == nil {
		return nil
	}
	batch, err := w.deps.Prospects.ClaimForAudit(ctx, w.name, w.cfg.AuditBatch)
	if err != nil {
		return err
	}
	defer w.release(batch)
	for _, p := range batch {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.auditOne(ctx, p); err != nil {
			c.Errors++
			w.log.Warn("audit failed", zap.String("prospect", p.ID), zap.Error(err))
		} else {
			c.Audited++
		}
		if !w.sleep(ctx, w.cfg.ItemDelay) {
			return ctx.Err()
		}
	}
	return nil
}

func (w *Worker) auditOne(ctx context.Context, p domain.Prospect) error {
	audit, err := w.deps.Auditor.Audit(ctx, p)
	if err != nil {
		return err
	}
	audit.ProspectID = p.ID
	if err := w.deps.Audits.CreateAudit(ctx, &audit); err != nil {
		return err
	}
	if err := w.deps.Prospects.SetAuditScores(ctx, p.ID, audit); err != nil {
		return err
	}
	if err := w.deps.Prospects.SetStatus(ctx, p.ID, domain.StatusAudited); err != nil {
		return err
	}
	return w.rescore(ctx, p.ID)
}

func (w *Worker) reconPhase(ctx context.Context, c *Counters) error {
	if w.deps.Recon == nil {
		return nil
	}
	batch, err := w.deps.Prospects.ClaimForRecon(ctx, w.name, w.cfg.ReconBatch)
	if err != nil {
		return err
	}
	defer w.release(batch)
	for _, p := range batch {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.deps.Recon.Enrich(ctx, p); err != nil {
			c.Errors++
			w.log.Warn("recon failed", zap.String("prospect", p.ID), zap.Error(err))
		} else {
			c.Enriched++
			if err := w.rescore(ctx, p.ID); err != nil {
				w.log.Warn("rescore failed", zap.String("prospect", p.ID), zap.Error(err))
			}
		}
		if !w.sleep(ctx, w.cfg.ItemDelay) {
			return ctx.Err()
		}
	}
	return nil
}

func (w *Worker) enqueuePhase(ctx context.Context, c *Counters) error {
	if w.deps.Cadence == nil {
		return nil
	}
	batch, err := w.deps.Prospects.ClaimForEnqueue(ctx, w.name, w.cfg.EnqueueBatch)
	if err != nil {
		return err
	}
	defer w.release(batch)
	for _, p := range batch {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := w.deps.Cadence.Enqueue(ctx, p)
		switch {
		case err == nil:
			c.Enqueued++
		case errors.Is(err, cadence.ErrBlocked):
			// Permanent classification; the prospect is already dead.
			w.log.Info("enqueue blocked", zap.String("prospect", p.ID), zap.Error(err))
		default:
			c.Errors++
			w.log.Warn("enqueue failed", zap.String("prospect", p.ID), zap.Error(err))
		}
	}
	return nil
}

func (w *Worker) sendPhase(ctx context.Context, c *Counters) error {
	if w.deps.Cadence == nil {
		return nil
	}
	sent, err := w.deps.Cadence.SendDue(ctx)
	c.Sent += sent
	return err
}

// rescore recomputes the composite score from persisted fields and the
// latest audit. Idempotent, safe to run after any audit or recon change.
func (w *Worker) rescore(ctx context.Context, prospectID string) error {
	p, err := w.deps.Prospects.Get(ctx, prospectID)
	if err != nil {
		return err
	}
	var latest *domain.Audit
	if a, found, err := w.deps.Audits.LatestByProspect(ctx, p.ID); err != nil {
		return err
	} else if found {
		latest = &a
	}
	b := scoring.Compute(p, latest, w.deps.Clock.Now())
	return w.deps.Prospects.SetScore(ctx, p.ID, b)
}

// AuditProspect audits a single prospect on demand, outside the cycle.
func (w *Worker) AuditProspect(ctx context.Context, id string) error {
	p, err := w.deps.Prospects.Get(ctx, id)
	if err != nil {
		return err
	}
	return w.auditOne(ctx, p)
}

// ReconProspect runs the contact waterfall for a single prospect on demand.
func (w *Worker) ReconProspect(ctx context.Context, id string) error {
	p, err := w.deps.Prospects.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := w.deps.Recon.Enrich(ctx, p); err != nil {
		return err
	}
	return w.rescore(ctx, id)
}

// EnqueueProspect drafts step 1 for a single prospect on demand.
func (w *Worker) EnqueueProspect(ctx context.Context, id string) error {
	p, err := w.deps.Prospects.Get(ctx, id)
	if err != nil {
		return err
	}
	return w.deps.Cadence.Enqueue(ctx, p)
}

// RunPhase executes one named phase once and reports the counters it moved.
func (w *Worker) RunPhase(ctx context.Context, name string) (Counters, error) {
	var c Counters
	var err error
	switch name {
	case "recovery":
		err = w.recoverPhase(ctx, &c)
	case "crawl":
		err = w.crawlPhase(ctx, &c)
	case "audit":
		err = w.auditPhase(ctx, &c)
	case "recon":
		err = w.reconPhase(ctx, &c)
	case "enqueue":
		err = w.enqueuePhase(ctx, &c)
	case "send":
		err = w.sendPhase(ctx, &c)
	default:
		return c, fmt.Errorf("unknown phase %q", name)
	}
	return c, err
}

func (w *Worker) release(batch []domain.Prospect) {
	if len(batch) == 0 {
		return
	}
	ids := make([]string, len(batch))
	for i, p := range batch {
		ids[i] = p.ID
	}
	// Release must survive a cancelled cycle context.
	if err := w.deps.Prospects.Release(context.Background(), ids); err != nil {
		w.log.Warn("release failed", zap.Error(err))
	}
}

// sleep waits for d on the injected clock; false means the context died.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-w.deps.Clock.After(d):
		return true
	}
}
