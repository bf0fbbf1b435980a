package response

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Amount string `json:"amount"`
	}

	if err := DecodeJSON(io.NopCloser(strings.NewReader(`{"amount":"500.00"}`)), &v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Amount != "500.00" {
		t.Fatalf("expected 500.00, got %q", v.Amount)
	}

	if err := DecodeJSON(io.NopCloser(strings.NewReader(`{"amount":"1"}{"amount":"2"}`)), &v); err == nil {
		t.Fatal("expected trailing object to be rejected")
	}
}

func TestEnvelope(t *testing.T) {
	t.Run("accepted is a success", func(t *testing.T) {
		rr := httptest.NewRecorder()
		Accepted(rr, map[string]string{"status": "PROCESSING"})

		var resp Response
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if rr.Code != http.StatusAccepted || !resp.Success || resp.Error != nil {
			t.Fatalf("unexpected envelope: %d %+v", rr.Code, resp)
		}
	})

	t.Run("validation carries details", func(t *testing.T) {
		rr := httptest.NewRecorder()
		ValidationError(rr, map[string]string{"amount": "must be positive"})

		var resp Response
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if rr.Code != http.StatusUnprocessableEntity || resp.Success {
			t.Fatalf("unexpected envelope: %d %+v", rr.Code, resp)
		}
		if resp.Error == nil || resp.Error.Details["amount"] != "must be positive" {
			t.Fatalf("expected amount detail, got %+v", resp.Error)
		}
	})

	t.Run("meta pages", func(t *testing.T) {
		m := NewMeta(41, 2, 20)
		if m.Pages != 3 || !m.HasNext || !m.HasPrev {
			t.Fatalf("unexpected meta %+v", m)
		}
	})
}
