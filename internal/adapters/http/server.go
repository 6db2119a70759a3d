// Package httpadapter is the operator control surface: pool management,
// manual pipeline triggers, message approval, and the public tracking
// endpoints embedded in outbound mail.
package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"prospector/internal/domain"
	"prospector/internal/ports"
	"prospector/internal/services/cadence"
	"prospector/internal/workers/pipeline"
)

type Server struct {
	// runCtx outlives any single request; workers started over HTTP are
	// parented here, not on the request context.
	runCtx    context.Context
	manager   *pipeline.Manager
	ops       *pipeline.Worker
	cadence   *cadence.Service
	prospects ports.ProspectRepository
	messages  ports.MessageRepository
	log       *zap.Logger
}

func New(runCtx context.Context, manager *pipeline.Manager, ops *pipeline.Worker, cad *cadence.Service, prospects ports.ProspectRepository, messages ports.MessageRepository, log *zap.Logger) *Server {
	return &Server{
		runCtx:    runCtx,
		manager:   manager,
		ops:       ops,
		cadence:   cad,
		prospects: prospects,
		messages:  messages,
		log:       log.Named("http"),
	}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealthz)

	r.Route("/agents", func(r chi.Router) {
		r.Get("/", s.handleAgents)
		r.Post("/start", s.handleAgentsStart)
		r.Post("/stop", s.handleAgentsStop)
		r.Post("/scale", s.handleAgentsScale)
	})

	r.Get("/stats", s.handleStats)
	r.Post("/recovery", s.handleRecovery)
	r.Post("/phases/{name}", s.handlePhase)

	r.Route("/prospects/{id}", func(r chi.Router) {
		r.Get("/", s.handleProspect)
		r.Post("/audit", s.trigger(s.ops.AuditProspect))
		r.Post("/recon", s.trigger(s.ops.ReconProspect))
		r.Post("/enqueue", s.trigger(s.ops.EnqueueProspect))
		r.Post("/resubscribe", s.trigger(s.cadence.Resubscribe))
	})

	r.Post("/messages/{id}/approve", s.trigger(s.cadence.Approve))
	r.Post("/messages/{id}/regenerate", s.trigger(s.cadence.Regenerate))

	// Tracking endpoints referenced from message bodies.
	r.Get("/t/{token}/open.gif", s.handleOpen)
	r.Get("/t/{token}/click", s.handleClick)
	r.Get("/t/{token}/unsubscribe", s.handleUnsubscribe)

	r.Post("/webhooks/reply", s.handleReplyWebhook)
	r.Post("/webhooks/bounce", s.handleBounceWebhook)

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   s.manager.Count(),
		"workers": s.manager.Workers(),
	})
}

func (s *Server) handleAgentsStart(w http.ResponseWriter, r *http.Request) {
	n := intParam(r, "count", 1)
	s.manager.Start(s.runCtx, n)
	writeJSON(w, http.StatusOK, map[string]int{"count": s.manager.Count()})
}

func (s *Server) handleAgentsStop(w http.ResponseWriter, r *http.Request) {
	s.manager.Stop()
	writeJSON(w, http.StatusOK, map[string]int{"count": 0})
}

func (s *Server) handleAgentsScale(w http.ResponseWriter, r *http.Request) {
	n := intParam(r, "count", -1)
	if n < 0 {
		writeError(w, http.StatusBadRequest, "count required")
		return
	}
	s.manager.ScaleTo(s.runCtx, n)
	writeJSON(w, http.StatusOK, map[string]int{"count": s.manager.Count()})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	byStatus, err := s.prospects.CountByStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workers":   s.manager.Count(),
		"counters":  s.manager.Stats(),
		"prospects": byStatus,
	})
}

func (s *Server) handleRecovery(w http.ResponseWriter, r *http.Request) {
	n, err := s.ops.Recover(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"recovered": n})
}

func (s *Server) handlePhase(w http.ResponseWriter, r *http.Request) {
	c, err := s.ops.RunPhase(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleProspect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := s.prospects.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "prospect not found")
		return
	}
	msgs, err := s.messages.ListByProspect(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prospect": p, "messages": msgs})
}

// trigger adapts a single-id operation into a handler with uniform error
// mapping: bad transitions are the caller's fault, everything else is ours.
func (s *Server) trigger(op func(ctx context.Context, id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := op(r.Context(), id); err != nil {
			var bad *domain.ErrBadTransition
			switch {
			case errors.As(err, &bad):
				writeError(w, http.StatusConflict, err.Error())
			case errors.Is(err, cadence.ErrBlocked),
				errors.Is(err, cadence.ErrNoContact),
				errors.Is(err, cadence.ErrNotContactable):
				writeError(w, http.StatusUnprocessableEntity, err.Error())
			default:
				s.log.Warn("trigger failed", zap.String("id", id), zap.Error(err))
				writeError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// pixel is a 1x1 transparent GIF.
var pixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := s.cadence.HandleOpen(r.Context(), token); err != nil {
		s.log.Debug("open hit on unknown token", zap.String("token", token), zap.Error(err))
	}
	// The pixel always renders; mail clients retry broken images.
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(pixel)
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	m, err := s.messages.GetByToken(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown token")
		return
	}
	// Only links that were actually in the message may be redirected to;
	// anything else would make this endpoint an open redirect.
	target := r.URL.Query().Get("u")
	if target == "" || !strings.Contains(m.Body, `href="`+target+`"`) {
		writeError(w, http.StatusBadRequest, "unknown redirect target")
		return
	}
	if err := s.cadence.HandleClick(r.Context(), token); err != nil {
		s.log.Debug("click record failed", zap.String("token", token), zap.Error(err))
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := s.cadence.HandleUnsubscribe(r.Context(), token); err != nil {
		writeError(w, http.StatusNotFound, "unknown token")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte("<p>You have been unsubscribed and will not be contacted again.</p>"))
}

func (s *Server) handleReplyWebhook(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token     string `json:"token"`
		Sentiment string `json:"sentiment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token == "" {
		writeError(w, http.StatusBadRequest, "token required")
		return
	}
	if err := s.cadence.HandleReply(r.Context(), body.Token, body.Sentiment); err != nil {
		writeError(w, http.StatusNotFound, "unknown token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBounceWebhook(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token == "" {
		writeError(w, http.StatusBadRequest, "token required")
		return
	}
	if err := s.cadence.HandleBounce(r.Context(), body.Token); err != nil {
		writeError(w, http.StatusNotFound, "unknown token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func intParam(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
