package recon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"prospector/internal/adapters/memory"
	"prospector/internal/domain"
	"prospector/internal/ports"
)

type fakeFetcher struct {
	pages map[string]string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	if body, ok := f.pages[url]; ok {
		return body, nil
	}
	return "", errors.New("404")
}

type fakeWhois struct {
	reg ports.Registrant
	err error
}

func (f *fakeWhois) Registrant(_ context.Context, _ string) (ports.Registrant, error) {
	return f.reg, f.err
}

type fakeResolver struct{ noMX map[string]bool }

func (f *fakeResolver) LookupMX(_ context.Context, domain string) ([]string, error) {
	if f.noMX[domain] {
		return nil, nil
	}
	return []string{"mx1." + domain}, nil
}

type fakeProber struct {
	results map[string]ports.ProbeResult
	def     ports.ProbeResult
	calls   []string
}

func (f *fakeProber) Probe(_ context.Context, email string) (ports.ProbeResult, error) {
	f.calls = append(f.calls, email)
	if r, ok := f.results[email]; ok {
		return r, nil
	}
	return f.def, nil
}

type fakeEnrichment struct {
	rec        ports.EnrichmentRecord
	found      bool
	calls      int
	lastDomain string
	lastName   string
}

func (f *fakeEnrichment) Lookup(_ context.Context, domain, name string) (ports.EnrichmentRecord, bool, error) {
	f.calls++
	f.lastDomain = domain
	f.lastName = name
	return f.rec, f.found, nil
}

func website(u string) *string { return &u }

func testService(t *testing.T, cfg Config) (*Service, *memory.Store) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC))
	store := memory.New(clock)
	return New(store, cfg, zap.NewNop()), store
}

func TestScrapeWinsFirst(t *testing.T) {
	accept := ports.ProbeResult{Deliverable: true}
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://acmeplumbing.com/contact": `<html><body>
			<p>Jim Kowalski, Owner</p>
			<a href="mailto:jim@acmeplumbing.com">Email us</a>
		</body></html>`,
	}}
	enrich := &fakeEnrichment{}
	svc, _ := testService(t, Config{
		Fetcher:    fetcher,
		Whois:      &fakeWhois{err: errors.New("unreachable")},
		Enrichment: enrich,
		Prober:     &fakeProber{def: accept},
		Resolver:   &fakeResolver{},
	})
	p := domain.Prospect{ID: "p1", HasWebsite: true, WebsiteURL: website("https://acmeplumbing.com"), Priority: 80}

	res := svc.Resolve(context.Background(), &p)
	assert.Equal(t, "jim@acmeplumbing.com", res.Email)
	assert.Equal(t, "scrape", res.Source)
	assert.True(t, res.Verified)
	require.NotNil(t, res.OwnerName)
	assert.Equal(t, "Jim Kowalski", *res.OwnerName)
	// Nothing further down the chain ran.
	assert.Zero(t, enrich.calls)
}

func TestWhoisPrivacyProxyRejected(t *testing.T) {
	svc, _ := testService(t, Config{
		Whois: &fakeWhois{reg: ports.Registrant{
			Name:  "Domains By Proxy, LLC",
			Email: "acmeplumbing.com@domainsbyproxy.com",
		}},
		Prober:   &fakeProber{def: ports.ProbeResult{Deliverable: true}},
		Resolver: &fakeResolver{},
	})
	p := domain.Prospect{ID: "p1", HasWebsite: true, WebsiteURL: website("https://acmeplumbing.com")}

	res := svc.Resolve(context.Background(), &p)
	// Only the fallback remains, so the proxy address never leaks through.
	assert.Equal(t, "fallback", res.Source)
	assert.Equal(t, "info@acmeplumbing.com", res.Email)
}

func TestWhoisNameFeedsPatternGeneration(t *testing.T) {
	prober := &fakeProber{
		def: ports.ProbeResult{},
		results: map[string]ports.ProbeResult{
			"maria.santos@bellacafe.com": {Deliverable: true},
		},
	}
	svc, _ := testService(t, Config{
		// Registrant has a name but no usable address.
		Whois:    &fakeWhois{reg: ports.Registrant{Name: "Maria Santos"}},
		Prober:   prober,
		Resolver: &fakeResolver{},
	})
	p := domain.Prospect{ID: "p1", HasWebsite: true, WebsiteURL: website("https://bellacafe.com")}

	res := svc.Resolve(context.Background(), &p)
	assert.Equal(t, "maria.santos@bellacafe.com", res.Email)
	assert.Equal(t, "pattern", res.Source)
	assert.True(t, res.Verified)
	// Patterns are tried in order; maria@ came first and was rejected.
	assert.Contains(t, prober.calls, "maria@bellacafe.com")
}

func TestPatternIgnoresCatchAllAccepts(t *testing.T) {
	prober := &fakeProber{def: ports.ProbeResult{Deliverable: true, CatchAll: true}}
	m := &patternMethod{prober: prober}
	owner := "Maria Santos"
	p := domain.Prospect{OwnerName: &owner, HasWebsite: true, WebsiteURL: website("https://bellacafe.com")}

	cand, err := m.Attempt(context.Background(), &p)
	require.NoError(t, err)
	assert.Nil(t, cand)
}

func TestEnrichmentGates(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC))
	enrich := &fakeEnrichment{found: true, rec: ports.EnrichmentRecord{OwnerName: "Pat Lee", Email: "pat@leelandscaping.com"}}
	budget := NewBudget(1, clock)
	m := &enrichmentMethod{client: enrich, budget: budget, minPriority: 35}
	ctx := context.Background()

	// Below the value threshold: no spend.
	low := domain.Prospect{Priority: 10, HasWebsite: true, WebsiteURL: website("https://leelandscaping.com")}
	cand, err := m.Attempt(ctx, &low)
	require.NoError(t, err)
	assert.Nil(t, cand)
	assert.Zero(t, enrich.calls)

	// Chain domain: skipped regardless of value.
	chain := domain.Prospect{Priority: 90, HasWebsite: true, WebsiteURL: website("https://supercuts.com")}
	cand, err = m.Attempt(ctx, &chain)
	require.NoError(t, err)
	assert.Nil(t, cand)
	assert.Zero(t, enrich.calls)

	// Worth it: one budgeted call.
	high := domain.Prospect{Priority: 60, HasWebsite: true, WebsiteURL: website("https://leelandscaping.com")}
	cand, err = m.Attempt(ctx, &high)
	require.NoError(t, err)
	require.NotNil(t, cand)
	assert.Equal(t, "pat@leelandscaping.com", cand.Email)
	assert.Equal(t, 1, enrich.calls)

	// Budget exhausted for the day.
	cand, err = m.Attempt(ctx, &high)
	require.NoError(t, err)
	assert.Nil(t, cand)
	assert.Equal(t, 1, enrich.calls)
}

func TestEnrichAdvancesToEnrichedOnTotalFailure(t *testing.T) {
	svc, store := testService(t, Config{
		// Every method strikes out; probe rejects everything.
		Prober:   &fakeProber{def: ports.ProbeResult{}},
		Resolver: &fakeResolver{},
	})
	ctx := context.Background()
	p := domain.Prospect{
		BusinessName: "Acme Plumbing",
		HasWebsite:   true,
		WebsiteURL:   website("https://acmeplumbing.com"),
		Status:       domain.StatusAudited,
	}
	require.NoError(t, store.Create(ctx, &p))
	got, _ := store.Get(ctx, p.ID)

	require.NoError(t, svc.Enrich(ctx, got))

	got, err := store.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnriched, got.Status)
	require.NotNil(t, got.Email)
	assert.Equal(t, "info@acmeplumbing.com", *got.Email)
	assert.Equal(t, "fallback", got.EmailSource)
	assert.False(t, got.EmailVerified)
}

func TestEnrichNoWebsiteProspectByNameLookup(t *testing.T) {
	enrich := &fakeEnrichment{found: true, rec: ports.EnrichmentRecord{OwnerName: "Dana Wu", Email: "dana@cashonlydiner.com"}}
	svc, store := testService(t, Config{
		Enrichment: enrich,
		Prober:     &fakeProber{def: ports.ProbeResult{Deliverable: true}},
		Resolver:   &fakeResolver{},
	})
	ctx := context.Background()
	p := domain.Prospect{BusinessName: "Cash Only Diner", Status: domain.StatusDiscovered, Priority: 60}
	require.NoError(t, store.Create(ctx, &p))
	got, _ := store.Get(ctx, p.ID)

	require.NoError(t, svc.Enrich(ctx, got))

	got, err := store.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnriched, got.Status)
	require.NotNil(t, got.Email)
	assert.Equal(t, "dana@cashonlydiner.com", *got.Email)
	assert.Equal(t, "enrichment", got.EmailSource)
	// The vendor was asked by business name, there being no domain.
	assert.Equal(t, 1, enrich.calls)
	assert.Empty(t, enrich.lastDomain)
	assert.Equal(t, "Cash Only Diner", enrich.lastName)
}

func TestEnrichRetiresProspectWithNoPossibleAddress(t *testing.T) {
	svc, store := testService(t, Config{
		Prober:   &fakeProber{def: ports.ProbeResult{}},
		Resolver: &fakeResolver{},
	})
	ctx := context.Background()
	p := domain.Prospect{BusinessName: "Cash Only Diner", Status: domain.StatusDiscovered}
	require.NoError(t, store.Create(ctx, &p))
	got, _ := store.Get(ctx, p.ID)

	require.NoError(t, svc.Enrich(ctx, got))

	got, err := store.Get(ctx, p.ID)
	require.NoError(t, err)
	// No domain and no vendor hit: nothing will ever pick this prospect up
	// again, so it leaves the pipeline instead of idling in enriched.
	assert.Equal(t, domain.StatusDead, got.Status)
	assert.Nil(t, got.Email)
}
