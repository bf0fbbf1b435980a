// Package webhook receives provider callbacks. Every request is answered
// with 200 so providers stop retrying; failures are logged and left to the
// reconciler.
package webhook

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/campuspay/campuspay-api/internal/pkg/metrics"
	"github.com/campuspay/campuspay-api/internal/pkg/paystack"
	"github.com/campuspay/campuspay-api/internal/pkg/remita"
	"github.com/campuspay/campuspay-api/internal/pkg/response"
	"github.com/campuspay/campuspay-api/internal/pkg/storage"
)

const maxBody = 1 << 20

const (
	resultRejected = "rejected"
	unparsed       = "unparsed"
	remitaEvent    = "payment_notification"
)

// Processor applies verified notifications. The settlement orchestrator implements it.
type Processor interface {
	HandlePaystack(ctx context.Context, ev *paystack.Event) (string, error)
	HandleRemita(ctx context.Context, n remita.Notification, raw []byte) (string, error)
}

type Verifier interface {
	VerifySignature(payload []byte, signature string) bool
}

type Config struct {
	Paystack Verifier
	Remita   Verifier
	Dedup    Deduper
	Archive  storage.Archive
	Now      func() time.Time
}

type Handler struct {
	proc     Processor
	paystack Verifier
	remita   Verifier
	dedup    Deduper
	archive  storage.Archive
	now      func() time.Time
}

func NewHandler(proc Processor, cfg Config) *Handler {
	h := &Handler{
		proc:     proc,
		paystack: cfg.Paystack,
		remita:   cfg.Remita,
		dedup:    cfg.Dedup,
		archive:  cfg.Archive,
		now:      cfg.Now,
	}
	if h.dedup == nil {
		h.dedup = noDedup{}
	}
	if h.archive == nil {
		h.archive = storage.NoopArchive{}
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Routes returns the webhook router (no auth, signature verification instead)
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/paystack", h.Paystack)
	r.Post("/remita", h.Remita)
	return r
}

// Paystack handles POST /webhooks/paystack
// @Summary Paystack charge and transfer events
func (h *Handler) Paystack(w http.ResponseWriter, r *http.Request) {
	const provider = "paystack"
	body, ok := h.accept(w, r, provider, h.paystack, r.Header.Get(paystack.SignatureHeader))
	if !ok {
		return
	}

	ev, err := paystack.ParseEvent(body)
	if err != nil {
		log.Warn().Err(err).Msg("malformed paystack webhook")
		h.done(w, provider, unparsed, resultRejected)
		return
	}

	key := payloadKey(provider, body)
	if h.duplicate(r.Context(), key) {
		h.done(w, provider, ev.Event, "duplicate")
		return
	}
	h.store(r.Context(), provider, body)

	result, err := h.proc.HandlePaystack(r.Context(), ev)
	if err != nil {
		log.Error().Err(err).Str("event", ev.Event).Str("reference", ev.Data.Reference).Msg("paystack webhook not applied")
		h.forget(r.Context(), key)
	}
	h.done(w, provider, ev.Event, result)
}

// Remita handles POST /webhooks/remita
func (h *Handler) Remita(w http.ResponseWriter, r *http.Request) {
	const provider = "remita"
	body, ok := h.accept(w, r, provider, h.remita, r.Header.Get(remita.SignatureHeader))
	if !ok {
		return
	}

	items, err := remita.ParseNotifications(body)
	if err != nil {
		log.Warn().Err(err).Msg("malformed remita webhook")
		h.done(w, provider, unparsed, resultRejected)
		return
	}

	key := payloadKey(provider, body)
	if h.duplicate(r.Context(), key) {
		h.done(w, provider, remitaEvent, "duplicate")
		return
	}
	h.store(r.Context(), provider, body)

	failed := false
	for _, n := range items {
		result, err := h.proc.HandleRemita(r.Context(), n, body)
		if err != nil {
			failed = true
			log.Error().Err(err).Str("rrr", n.RRR).Str("order_ref", n.OrderRef).Msg("remita notification not applied")
		}
		metrics.WebhookEvents.WithLabelValues(provider, remitaEvent, result).Inc()
	}
	if failed {
		h.forget(r.Context(), key)
	}
	response.OK(w, map[string]string{"status": "ok"})
}

// accept reads the body and checks the signature before anything else.
func (h *Handler) accept(w http.ResponseWriter, r *http.Request, provider string, v Verifier, signature string) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		log.Warn().Err(err).Str("provider", provider).Msg("failed to read webhook body")
		h.done(w, provider, unparsed, resultRejected)
		return nil, false
	}
	if v == nil || !v.VerifySignature(body, signature) {
		log.Warn().Str("provider", provider).Str("remote_addr", r.RemoteAddr).Msg("webhook signature rejected")
		h.done(w, provider, unparsed, "bad_signature")
		return nil, false
	}
	return body, true
}

func (h *Handler) duplicate(ctx context.Context, key string) bool {
	seen, err := h.dedup.Seen(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("webhook dedup unavailable")
		return false
	}
	return seen
}

func (h *Handler) forget(ctx context.Context, key string) {
	if err := h.dedup.Forget(ctx, key); err != nil {
		log.Warn().Err(err).Msg("failed to clear webhook dedup key")
	}
}

func (h *Handler) store(ctx context.Context, provider string, body []byte) {
	key := storage.WebhookKey(provider, h.now(), uuid.NewString())
	if err := h.archive.Put(ctx, key, body); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to archive webhook payload")
	}
}

func (h *Handler) done(w http.ResponseWriter, provider, event, result string) {
	metrics.WebhookEvents.WithLabelValues(provider, event, result).Inc()
	response.OK(w, map[string]string{"status": "ok"})
}
