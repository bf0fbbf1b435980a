package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/domain/wallet"
	"github.com/campuspay/campuspay-api/internal/middleware"
	jwtpkg "github.com/campuspay/campuspay-api/internal/pkg/jwt"
)

func startHub(t *testing.T, h *Hub) {
	t.Helper()
	go h.Run()
	t.Cleanup(h.Shutdown)
}

func waitConnections(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ConnectionCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("connections = %d, want %d", h.ConnectionCount(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func waitFrame(t *testing.T, ch <-chan []byte) Event {
	t.Helper()
	select {
	case msg := <-ch:
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return Event{}
}

func userWallet(userID uuid.UUID, balance string) *wallet.Wallet {
	return &wallet.Wallet{
		ID:               uuid.New(),
		UserID:           uuid.NullUUID{UUID: userID, Valid: true},
		Balance:          decimal.RequireFromString(balance),
		AvailableBalance: decimal.RequireFromString(balance),
		UpdatedAt:        time.Now().UTC(),
	}
}

func TestWalletUpdatedReachesOwner(t *testing.T) {
	h := NewHubWithInstanceID(nil, "a")
	startHub(t, h)

	owner, other := uuid.New(), uuid.New()
	ownerConn := &Connection{UserID: owner, Send: make(chan []byte, 4)}
	otherConn := &Connection{UserID: other, Send: make(chan []byte, 4)}
	h.Register(ownerConn)
	h.Register(otherConn)
	waitConnections(t, h, 2)

	h.WalletUpdated(context.Background(), userWallet(owner, "1500.50"))

	ev := waitFrame(t, ownerConn.Send)
	if ev.Type != EventWalletUpdated {
		t.Fatalf("type = %s, want %s", ev.Type, EventWalletUpdated)
	}
	if !ev.Wallet.Balance.Equal(decimal.RequireFromString("1500.50")) {
		t.Fatalf("balance = %s", ev.Wallet.Balance)
	}
	select {
	case <-otherConn.Send:
		t.Fatalf("event leaked to another user")
	default:
	}
}

func TestWalletUpdatedSkipsOwnerlessWallets(t *testing.T) {
	h := NewHubWithInstanceID(nil, "a")
	var published int
	h.publishFn = func(ctx context.Context, channel string, payload []byte) error {
		published++
		return nil
	}

	h.WalletUpdated(context.Background(), &wallet.Wallet{ID: wallet.PlatformWalletID})
	h.WalletUpdated(context.Background(), nil)
	if published != 0 {
		t.Fatalf("published %d events for ownerless wallets", published)
	}
}

func TestRegisterAfterShutdownReturns(t *testing.T) {
	h := NewHubWithInstanceID(nil, "a")
	go h.Run()
	h.Shutdown()

	conn := &Connection{UserID: uuid.New(), Send: make(chan []byte, 1)}
	done := make(chan struct{})
	go func() {
		h.Register(conn)
		h.Unregister(conn)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Register/Unregister blocked after Shutdown")
	}
}

func TestRelayFromOtherInstance(t *testing.T) {
	h := NewHubWithInstanceID(nil, "local")
	startHub(t, h)

	userID := uuid.New()
	conn := &Connection{UserID: userID, Send: make(chan []byte, 4)}
	h.Register(conn)
	waitConnections(t, h, 1)

	frame, _ := json.Marshal(Event{Type: EventWalletUpdated})
	own, _ := json.Marshal(userEventMessage{UserID: userID.String(), Payload: frame, SenderInstanceID: "local"})
	h.handleUserEventPayload(string(own))
	select {
	case <-conn.Send:
		t.Fatalf("own publication should not be delivered twice")
	default:
	}

	remote, _ := json.Marshal(userEventMessage{UserID: userID.String(), Payload: frame, SenderInstanceID: "remote"})
	h.handleUserEventPayload(string(remote))
	if ev := waitFrame(t, conn.Send); ev.Type != EventWalletUpdated {
		t.Fatalf("type = %s", ev.Type)
	}
}

func TestSendToUserPublishesForOtherInstances(t *testing.T) {
	h := NewHubWithInstanceID(nil, "a")
	var got userEventMessage
	h.publishFn = func(ctx context.Context, channel string, payload []byte) error {
		if channel != userEventsChannel {
			t.Fatalf("channel = %s", channel)
		}
		return json.Unmarshal(payload, &got)
	}

	userID := uuid.New()
	if err := h.SendToUser(context.Background(), userID, Event{Type: EventWalletUpdated}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.UserID != userID.String() || got.SenderInstanceID != "a" {
		t.Fatalf("unexpected publication %+v", got)
	}
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestWebSocketEndToEnd(t *testing.T) {
	jwtService := jwtpkg.NewService("test-secret", time.Hour, 2*time.Hour)
	hub := NewHubWithInstanceID(nil, "e2e")
	startHub(t, hub)

	r := chi.NewRouter()
	r.With(middleware.Auth(jwtService)).Get("/ws", NewHandler(hub, nil).WebSocket)
	ts := httptest.NewServer(r)
	defer ts.Close()

	userID := uuid.New()
	token, err := jwtService.GenerateAccessToken(userID, uuid.New(), jwtpkg.RoleStudent)
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s/ws?token=%s", wsURL(ts.URL), token), nil)
	if err != nil {
		t.Fatalf("dial: %v (resp=%v)", err, resp)
	}
	defer conn.Close()
	waitConnections(t, hub, 1)

	hub.WalletUpdated(context.Background(), userWallet(userID, "42"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != EventWalletUpdated || !ev.Wallet.Balance.Equal(decimal.RequireFromString("42")) {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestWebSocketRequiresToken(t *testing.T) {
	jwtService := jwtpkg.NewService("test-secret", time.Hour, 2*time.Hour)
	hub := NewHubWithInstanceID(nil, "e2e")
	startHub(t, hub)

	r := chi.NewRouter()
	r.With(middleware.Auth(jwtService)).Get("/ws", NewHandler(hub, nil).WebSocket)
	ts := httptest.NewServer(r)
	defer ts.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL)+"/ws", nil)
	if err == nil {
		t.Fatalf("expected dial to fail without a token")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %v", resp)
	}
}
