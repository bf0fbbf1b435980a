package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuspay/campuspay-api/internal/domain/user"
	"github.com/campuspay/campuspay-api/internal/domain/wallet"
	"github.com/campuspay/campuspay-api/internal/middleware"
	"github.com/campuspay/campuspay-api/internal/pkg/jwt"
)

type fakeUsers struct {
	banned map[uuid.UUID]bool
}

func (f *fakeUsers) Create(context.Context, sqlx.ExecerContext, *user.User) error { return nil }
func (f *fakeUsers) GetByID(context.Context, uuid.UUID) (*user.User, error)       { return nil, nil }
func (f *fakeUsers) GetByEmail(context.Context, string) (*user.User, error)       { return nil, nil }
func (f *fakeUsers) FindByIdentifier(context.Context, string) (*user.User, error) {
	return nil, nil
}
func (f *fakeUsers) SetBanned(ctx context.Context, id uuid.UUID, banned bool) error {
	if f.banned == nil {
		f.banned = map[uuid.UUID]bool{}
	}
	f.banned[id] = banned
	return nil
}

type fakeAudit struct {
	entries []wallet.AuditEntry
}

func (f *fakeAudit) AuditChain(context.Context, uuid.UUID) ([]wallet.AuditEntry, error) {
	return f.entries, nil
}

type stubRegistrar struct{}

func (stubRegistrar) RegisterAdmin(r chi.Router) {
	r.Post("/reconcile", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func withRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithIdentity(r.Context(), uuid.New(), uuid.Nil, role)))
		})
	}
}

func TestRoutesRequireAdminRole(t *testing.T) {
	h := NewHandler(&fakeUsers{}, &fakeAudit{})
	r := h.Routes(withRole(jwt.RoleStudent), stubRegistrar{})

	req := httptest.NewRequest(http.MethodPost, "/reconcile", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for student, got %d", rr.Code)
	}
}

func TestRoutesMountDomainRegistrars(t *testing.T) {
	h := NewHandler(&fakeUsers{}, &fakeAudit{})
	r := h.Routes(withRole(jwt.RoleAdmin), stubRegistrar{})

	patterns := map[string]bool{}
	if err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		patterns[method+" "+route] = true
		return nil
	}); err != nil {
		t.Fatalf("walk routes: %v", err)
	}
	for _, want := range []string{"POST /reconcile", "POST /users/{id}/ban", "GET /wallets/{id}/audit/verify"} {
		if !patterns[want] {
			t.Fatalf("expected %s to be registered", want)
		}
	}
}

func TestBanMarksUser(t *testing.T) {
	users := &fakeUsers{}
	r := NewHandler(users, &fakeAudit{}).Routes(withRole(jwt.RoleAdmin))
	id := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/users/"+id.String()+"/ban", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !users.banned[id] {
		t.Fatalf("user was not banned")
	}
}

func TestVerifyAuditDetectsBreak(t *testing.T) {
	first := wallet.AuditEntry{Seq: 1, Type: wallet.AuditCredit}
	first.Hash = wallet.ComputeHash("", first)
	second := wallet.AuditEntry{Seq: 2, Type: wallet.AuditReserve, PrevHash: first.Hash, Hash: "tampered"}

	r := NewHandler(&fakeUsers{}, &fakeAudit{entries: []wallet.AuditEntry{first, second}}).Routes(withRole(jwt.RoleAdmin))
	req := httptest.NewRequest(http.MethodGet, "/wallets/"+uuid.NewString()+"/audit/verify", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body struct {
		Data AuditVerifyResponse `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Intact || body.Data.BrokenAt == nil || *body.Data.BrokenAt != 2 {
		t.Fatalf("expected break at seq 2, got %+v", body.Data)
	}
}
