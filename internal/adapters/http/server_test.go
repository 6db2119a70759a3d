package httpadapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"prospector/internal/adapters/collab"
	"prospector/internal/adapters/memory"
	"prospector/internal/domain"
	"prospector/internal/services/cadence"
	"prospector/internal/workers/pipeline"
)

var testNow = time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	clock   *clockwork.FakeClock
	router  http.Handler
	manager *pipeline.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testNow)
	store := memory.New(clock)
	log := zap.NewNop()

	renderer, err := collab.NewStepRenderer()
	require.NoError(t, err)
	cad := cadence.New(store, store, renderer, &collab.LogTransport{Log: log}, nil, clock,
		cadence.Config{BaseURL: "http://localhost:8080"}, log)

	deps := pipeline.Deps{
		Prospects: store,
		Messages:  store,
		Audits:    store,
		Areas:     store,
		Cadence:   cad,
		Clock:     clock,
		Log:       log,
	}
	cfg := pipeline.Config{CycleInterval: time.Hour, ItemDelay: -1}
	manager := pipeline.NewManager(deps, cfg)
	t.Cleanup(manager.Stop)
	ops := pipeline.NewWorker("operator", deps, cfg)

	srv := New(context.Background(), manager, ops, cad, store, store, log)
	return &fixture{store: store, clock: clock, router: srv.Routes(), manager: manager}
}

func (f *fixture) do(method, target string, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

// sentMessage seeds a contacted prospect with one sent message.
func sentMessage(t *testing.T, f *fixture, token string) (domain.Prospect, domain.Message) {
	t.Helper()
	ctx := context.Background()
	email := "owner@acmeplumbing.com"
	p := domain.Prospect{BusinessName: "Acme Plumbing", Status: domain.StatusContacted, Email: &email}
	require.NoError(t, f.store.Create(ctx, &p))
	m := domain.Message{
		ProspectID:    p.ID,
		Step:          1,
		Status:        domain.MsgApproved,
		TrackingToken: token,
		Body:          `<p>Hi Jim,</p><p><a href="https://acmeplumbing.com/report">See your report</a></p>`,
		ScheduledAt:   testNow,
	}
	require.NoError(t, f.store.CreateMessage(ctx, &m))
	require.NoError(t, f.store.SetMessageStatus(ctx, m.ID, domain.MsgSending))
	require.NoError(t, f.store.MarkSent(ctx, m.ID, testNow))
	return p, m
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestAgentsScale(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/agents/scale?count=2", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, f.manager.Count())

	w = f.do(http.MethodPost, "/agents/stop", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, f.manager.Count())

	w = f.do(http.MethodPost, "/agents/scale", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsIncludeProspectCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := domain.Prospect{BusinessName: "Acme Plumbing"}
	require.NoError(t, f.store.Create(ctx, &p))

	w := f.do(http.MethodGet, "/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"discovered":1`)
}

func TestOpenPixelRecordsOpen(t *testing.T) {
	f := newFixture(t)
	p, m := sentMessage(t, f, "tok-open")

	w := f.do(http.MethodGet, "/t/tok-open/open.gif", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/gif", w.Header().Get("Content-Type"))

	got, _ := f.store.Get(context.Background(), p.ID)
	assert.Equal(t, 1, got.Opens)
	msg, _ := f.store.GetMessage(context.Background(), m.ID)
	assert.Equal(t, domain.MsgOpened, msg.Status)

	// Unknown tokens still get a pixel back.
	w = f.do(http.MethodGet, "/t/no-such-token/open.gif", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClickRedirects(t *testing.T) {
	f := newFixture(t)
	p, _ := sentMessage(t, f, "tok-click")

	w := f.do(http.MethodGet, "/t/tok-click/click?u=https%3A%2F%2Facmeplumbing.com%2Freport", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://acmeplumbing.com/report", w.Header().Get("Location"))

	got, _ := f.store.Get(context.Background(), p.ID)
	assert.Equal(t, 1, got.Clicks)
}

func TestClickRejectsForeignTargets(t *testing.T) {
	f := newFixture(t)
	p, _ := sentMessage(t, f, "tok-click")

	// Only links present in the message body may be redirected to.
	w := f.do(http.MethodGet, "/t/tok-click/click?u=https%3A%2F%2Fevil.example%2Fphish", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, w.Header().Get("Location"))

	w = f.do(http.MethodGet, "/t/tok-click/click", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/t/no-such-token/click?u=https%3A%2F%2Facmeplumbing.com%2Freport", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	got, _ := f.store.Get(context.Background(), p.ID)
	assert.Zero(t, got.Clicks)
}

func TestUnsubscribeOptsOutAndCancels(t *testing.T) {
	f := newFixture(t)
	p, _ := sentMessage(t, f, "tok-unsub")
	ctx := context.Background()
	next := domain.Message{ProspectID: p.ID, Step: 2, Status: domain.MsgPendingApproval, TrackingToken: "tok-unsub-2", ScheduledAt: testNow}
	require.NoError(t, f.store.CreateMessage(ctx, &next))

	w := f.do(http.MethodGet, "/t/tok-unsub/unsubscribe", "")
	assert.Equal(t, http.StatusOK, w.Code)

	got, _ := f.store.Get(ctx, p.ID)
	assert.Equal(t, domain.StatusOptedOut, got.Status)
	nm, _ := f.store.GetMessage(ctx, next.ID)
	assert.Equal(t, domain.MsgCancelled, nm.Status)
}

func TestReplyWebhook(t *testing.T) {
	f := newFixture(t)
	p, m := sentMessage(t, f, "tok-reply")

	w := f.do(http.MethodPost, "/webhooks/reply", `{"token":"tok-reply","sentiment":"positive"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	ctx := context.Background()
	got, _ := f.store.Get(ctx, p.ID)
	assert.Equal(t, domain.StatusReplied, got.Status)
	require.NotNil(t, got.ReplySentiment)
	assert.Equal(t, "positive", *got.ReplySentiment)
	msg, _ := f.store.GetMessage(ctx, m.ID)
	assert.Equal(t, domain.MsgReplied, msg.Status)

	w = f.do(http.MethodPost, "/webhooks/reply", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBounceWebhookKillsLowValueProspect(t *testing.T) {
	f := newFixture(t)
	p, _ := sentMessage(t, f, "tok-bounce")

	w := f.do(http.MethodPost, "/webhooks/bounce", `{"token":"tok-bounce"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	got, _ := f.store.Get(context.Background(), p.ID)
	assert.Equal(t, domain.StatusDead, got.Status)
}

func TestApproveRejectsSentMessage(t *testing.T) {
	f := newFixture(t)
	_, m := sentMessage(t, f, "tok-approve")

	w := f.do(http.MethodPost, "/messages/"+m.ID+"/approve", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestResubscribeTrigger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := domain.Prospect{BusinessName: "Acme Plumbing", Status: domain.StatusOptedOut}
	require.NoError(t, f.store.Create(ctx, &p))

	w := f.do(http.MethodPost, "/prospects/"+p.ID+"/resubscribe", "")
	assert.Equal(t, http.StatusOK, w.Code)

	got, _ := f.store.Get(ctx, p.ID)
	assert.Equal(t, domain.StatusAudited, got.Status)
}

func TestProspectDetail(t *testing.T) {
	f := newFixture(t)
	p, _ := sentMessage(t, f, "tok-detail")

	w := f.do(http.MethodGet, "/prospects/"+p.ID+"/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Acme Plumbing")

	w = f.do(http.MethodGet, "/prospects/missing/", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
