package webhook

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/campuspay/campuspay-api/internal/pkg/paystack"
	"github.com/campuspay/campuspay-api/internal/pkg/remita"
)

type fakeProcessor struct {
	mu       sync.Mutex
	paystack []*paystack.Event
	remita   []remita.Notification
	err      error
}

func (p *fakeProcessor) HandlePaystack(ctx context.Context, ev *paystack.Event) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paystack = append(p.paystack, ev)
	if p.err != nil {
		return "error", p.err
	}
	return "applied", nil
}

func (p *fakeProcessor) HandleRemita(ctx context.Context, n remita.Notification, raw []byte) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remita = append(p.remita, n)
	if p.err != nil {
		return "error", p.err
	}
	return "applied", nil
}

type secretVerifier string

func (s secretVerifier) VerifySignature(payload []byte, signature string) bool {
	return paystack.VerifySignature(payload, signature, string(s))
}

type memDedup struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (d *memDedup) Seen(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.keys == nil {
		d.keys = map[string]bool{}
	}
	seen := d.keys[key]
	d.keys[key] = true
	return seen, nil
}

func (d *memDedup) Forget(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.keys, key)
	return nil
}

type memArchive struct {
	mu   sync.Mutex
	puts map[string][]byte
}

func (a *memArchive) Put(ctx context.Context, key string, body []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.puts == nil {
		a.puts = map[string][]byte{}
	}
	a.puts[key] = body
	return nil
}

func (a *memArchive) Get(ctx context.Context, key string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.puts[key], nil
}

func (a *memArchive) Exists(ctx context.Context, key string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.puts[key]
	return ok, nil
}

const secret = "sk_test_webhook"

var chargeBody = []byte(`{"event":"charge.success","data":{"reference":"FND-1","status":"success","amount":500000}}`)

func newTestHandler(proc *fakeProcessor) (*Handler, *memArchive) {
	archive := &memArchive{}
	return NewHandler(proc, Config{
		Paystack: secretVerifier(secret),
		Remita:   secretVerifier(secret),
		Dedup:    &memDedup{},
		Archive:  archive,
	}), archive
}

func postPaystack(h *Handler, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/paystack", bytes.NewReader(body))
	req.Header.Set(paystack.SignatureHeader, signature)
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}

func TestPaystackBadSignatureIgnored(t *testing.T) {
	proc := &fakeProcessor{}
	h, archive := newTestHandler(proc)

	rr := postPaystack(h, chargeBody, "deadbeef")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(proc.paystack) != 0 {
		t.Fatalf("processor called for unsigned payload")
	}
	if len(archive.puts) != 0 {
		t.Fatalf("unsigned payload was archived")
	}
}

func TestPaystackValidEventProcessedOnce(t *testing.T) {
	proc := &fakeProcessor{}
	h, archive := newTestHandler(proc)
	sig := paystack.GenerateSignature(chargeBody, secret)

	for i := 0; i < 3; i++ {
		if rr := postPaystack(h, chargeBody, sig); rr.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i, rr.Code)
		}
	}
	if len(proc.paystack) != 1 {
		t.Fatalf("processor calls = %d, want 1", len(proc.paystack))
	}
	if got := proc.paystack[0].Data.Reference; got != "FND-1" {
		t.Fatalf("reference = %s, want FND-1", got)
	}
	if len(archive.puts) != 1 {
		t.Fatalf("archived = %d, want 1", len(archive.puts))
	}
}

func TestPaystackFailureAllowsRedelivery(t *testing.T) {
	proc := &fakeProcessor{err: errors.New("db down")}
	h, _ := newTestHandler(proc)
	sig := paystack.GenerateSignature(chargeBody, secret)

	if rr := postPaystack(h, chargeBody, sig); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 even on failure, got %d", rr.Code)
	}
	proc.err = nil
	postPaystack(h, chargeBody, sig)
	if len(proc.paystack) != 2 {
		t.Fatalf("processor calls = %d, want 2 after a failed first attempt", len(proc.paystack))
	}
}

func TestPaystackMalformedBody(t *testing.T) {
	proc := &fakeProcessor{}
	h, _ := newTestHandler(proc)
	body := []byte(`{"event":"charge.success"}`)

	if rr := postPaystack(h, body, paystack.GenerateSignature(body, secret)); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(proc.paystack) != 0 {
		t.Fatalf("processor called for malformed payload")
	}
}

func TestRemitaNotificationsDispatched(t *testing.T) {
	proc := &fakeProcessor{}
	h, _ := newTestHandler(proc)
	body := []byte(`[{"rrr":"280007021192","orderRef":"RRR-1","amount":1500},{"rrr":"280007021193","orderRef":"RRR-2","amount":2500}]`)

	req := httptest.NewRequest(http.MethodPost, "/remita", bytes.NewReader(body))
	req.Header.Set(remita.SignatureHeader, paystack.GenerateSignature(body, secret))
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(proc.remita) != 2 {
		t.Fatalf("notifications = %d, want 2", len(proc.remita))
	}
	if proc.remita[1].OrderRef != "RRR-2" {
		t.Fatalf("second order ref = %s", proc.remita[1].OrderRef)
	}
}

func TestMissingVerifierRejects(t *testing.T) {
	proc := &fakeProcessor{}
	h := NewHandler(proc, Config{})

	rr := postPaystack(h, chargeBody, paystack.GenerateSignature(chargeBody, secret))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(proc.paystack) != 0 {
		t.Fatalf("processor called without a configured verifier")
	}
}
