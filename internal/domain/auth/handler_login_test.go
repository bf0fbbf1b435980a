package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func postJSON(t *testing.T, h http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func TestLoginHandlerWrongPasswordReturns401(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)

	rr := postJSON(t, h.Login, LoginRequest{Identifier: "ada", Password: "not-it-99"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestLoginHandlerReturnsTokens(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)

	rr := postJSON(t, h.Login, LoginRequest{Identifier: "ada@unilag.edu.ng", Password: "campus123"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var out struct {
		Success bool `json:"success"`
		Data    struct {
			Tokens struct {
				AccessToken  string `json:"access_token"`
				RefreshToken string `json:"refresh_token"`
				TokenType    string `json:"token_type"`
			} `json:"tokens"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Success || out.Data.Tokens.AccessToken == "" || out.Data.Tokens.TokenType != "Bearer" {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestLoginHandlerValidatesBody(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)

	rr := postJSON(t, h.Login, map[string]string{"password": "x"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}
