package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"prospector/internal/adapters/memory"
	"prospector/internal/domain"
	"prospector/internal/ports"
	"prospector/internal/services/cadence"
	"prospector/internal/services/recon"
)

var testNow = time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)

type fakeCrawler struct {
	store *memory.Store
	made  int
}

func (f *fakeCrawler) Continue(ctx context.Context, area domain.Area, batch int) (int, bool, error) {
	sites := []struct {
		name string
		url  string
	}{
		{"Acme Plumbing", "https://acmeplumbing.com"},
		{"Cash Only Diner", ""},
	}
	n := 0
	for _, s := range sites {
		p := domain.Prospect{
			BusinessName: s.name,
			BusinessType: area.BusinessType,
			City:         area.City,
			AreaRef:      &area.ID,
			HasWebsite:   s.url != "",
			Priority:     50,
			Status:       domain.StatusDiscovered,
		}
		if s.url != "" {
			u := s.url
			p.WebsiteURL = &u
		}
		if err := f.store.Create(ctx, &p); err != nil {
			return n, false, err
		}
		n++
	}
	f.made += n
	return n, true, nil
}

type fakeAuditor struct{}

func (fakeAuditor) Audit(_ context.Context, p domain.Prospect) (domain.Audit, error) {
	return domain.Audit{
		ProspectID: p.ID,
		Speed:      40, Mobile: 30, SEO: 35, Security: 20, Access: 50,
		Overall:  30,
		SSLValid: false,
	}, nil
}

type fakeWhois struct{}

func (fakeWhois) Registrant(_ context.Context, d string) (ports.Registrant, error) {
	return ports.Registrant{Name: "Jim Kowalski", Email: "jim@" + d}, nil
}

type acceptProber struct{}

func (acceptProber) Probe(_ context.Context, _ string) (ports.ProbeResult, error) {
	return ports.ProbeResult{Deliverable: true}, nil
}

type mxResolver struct{}

func (mxResolver) LookupMX(_ context.Context, d string) ([]string, error) {
	return []string{"mx." + d}, nil
}

type fakeRenderer struct{}

func (fakeRenderer) Render(_ context.Context, p domain.Prospect, step int) (string, string, error) {
	return fmt.Sprintf("step %d", step), "<p>hello</p>", nil
}

type fakeTransport struct{ sent int }

func (f *fakeTransport) Send(_ context.Context, _ ports.OutboundEmail) error {
	f.sent++
	return nil
}

type fixture struct {
	worker    *Worker
	store     *memory.Store
	clock     *clockwork.FakeClock
	transport *fakeTransport
	crawler   *fakeCrawler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testNow)
	store := memory.New(clock)
	log := zap.NewNop()
	tr := &fakeTransport{}
	crawler := &fakeCrawler{store: store}

	reconSvc := recon.New(store, recon.Config{
		Whois:    fakeWhois{},
		Prober:   acceptProber{},
		Resolver: mxResolver{},
	}, log)
	cadenceSvc := cadence.New(store, store, fakeRenderer{}, tr, nil, clock,
		cadence.Config{DailyCap: 50, BaseURL: "https://track.test"}, log)

	deps := Deps{
		Prospects: store,
		Messages:  store,
		Audits:    store,
		Areas:     store,
		Crawler:   crawler,
		Auditor:   fakeAuditor{},
		Recon:     reconSvc,
		Cadence:   cadenceSvc,
		Clock:     clock,
		Log:       log,
	}
	w := NewWorker("worker-test", deps, Config{
		ItemDelay:  -1, // no pacing against the fake clock
		CrawlBatch: 10, AuditBatch: 10, ReconBatch: 10, EnqueueBatch: 10,
	})
	return &fixture{worker: w, store: store, clock: clock, transport: tr, crawler: crawler}
}

func TestCycleRunsPhasesInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	area := domain.Area{City: "Riverside", BusinessType: "plumber"}
	require.NoError(t, f.store.CreateArea(ctx, &area))

	c := f.worker.Cycle(ctx)

	assert.Equal(t, 2, c.Crawled)
	assert.Equal(t, 1, c.Audited, "only the website prospect is auditable")
	assert.Equal(t, 2, c.Enriched, "audited prospect plus the no-website fast track")
	assert.Equal(t, 1, c.Enqueued, "only the prospect with a contact address")
	assert.Zero(t, c.Errors)

	counts, err := f.store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.StatusQueued])
	// With no enrichment vendor configured, the no-website prospect has no
	// possible address and is retired rather than parked.
	assert.Equal(t, 1, counts[domain.StatusDead])

	// The crawled area is done and not re-crawled next cycle.
	_, found, err := f.store.NextIncomplete(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	c = f.worker.Cycle(ctx)
	assert.Zero(t, c.Crawled)
	assert.Zero(t, c.Audited)
}

func TestCycleSendsApprovedMail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	area := domain.Area{City: "Riverside", BusinessType: "plumber"}
	require.NoError(t, f.store.CreateArea(ctx, &area))

	f.worker.Cycle(ctx)
	require.Zero(t, f.transport.sent, "nothing approved yet")

	counts, _ := f.store.CountByStatus(ctx)
	require.Equal(t, 1, counts[domain.StatusQueued])
	approveAll(t, f.store)

	c := f.worker.Cycle(ctx)
	assert.Equal(t, 1, c.Sent)
	assert.Equal(t, 1, f.transport.sent)
	counts, _ = f.store.CountByStatus(ctx)
	assert.Equal(t, 1, counts[domain.StatusContacted])

	// Step 2 is drafted for three days out, awaiting approval.
	step2 := false
	for _, m := range f.store.AllMessages(ctx) {
		if m.Step == 2 {
			step2 = true
			assert.Equal(t, domain.MsgPendingApproval, m.Status)
			assert.False(t, m.ScheduledAt.Before(testNow.Add(3*24*time.Hour)))
		}
	}
	assert.True(t, step2)
}

func approveAll(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	for _, m := range store.AllMessages(ctx) {
		if m.Status == domain.MsgPendingApproval {
			require.NoError(t, store.SetMessageStatus(ctx, m.ID, domain.MsgApproved))
		}
	}
}
