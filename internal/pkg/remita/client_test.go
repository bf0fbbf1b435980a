package remita

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/pkg/gateway"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAdapter(NewClient(Config{
		BaseURL:       srv.URL,
		MerchantID:    "2547916",
		APIKey:        "1946",
		ServiceTypeID: "4430731",
		Timeout:       time.Second,
	}))
}

func TestInitiateParsesJSONPResponse(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/merchant/api/paymentinit" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		wantHash := sha512Hex("2547916" + "4430731" + "RRR-REF-1" + "15000.00" + "1946")
		if got := r.Header.Get("Authorization"); !strings.Contains(got, "remitaConsumerToken="+wantHash) {
			t.Errorf("unexpected authorization header %q", got)
		}
		var body InvoiceRequest
		json.NewDecoder(r.Body).Decode(&body)
		if body.OrderID != "RRR-REF-1" {
			t.Errorf("unexpected order id %q", body.OrderID)
		}
		w.Write([]byte(`jsonp ({"statuscode":"025","RRR":"280007021192","status":"Payment Reference generated"})`))
	})

	init, err := adapter.Initiate(context.Background(), gateway.Request{
		Reference: "RRR-REF-1",
		Amount:    decimal.NewFromInt(15000),
		Payer:     gateway.Payer{Name: "Ada Obi", Email: "ada@school.edu"},
		Narration: "School fees",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if init.ExternalReference != "280007021192" {
		t.Fatalf("unexpected rrr %q", init.ExternalReference)
	}
}

func TestInitiateRejectsMissingRRR(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"statuscode":"012","status":"Invalid service type"}`))
	})

	_, err := adapter.Initiate(context.Background(), gateway.Request{Reference: "x", Amount: decimal.NewFromInt(100)})
	if err == nil || gateway.IsAmbiguous(err) {
		t.Fatalf("expected definite rejection, got %v", err)
	}
}

func TestCheckStatusByRRR(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/status.reg") || !strings.Contains(r.URL.Path, "/280007021192/") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"amount":15000,"RRR":"280007021192","orderId":"RRR-REF-1","message":"Approved","status":"00","transactiontime":"2026-03-01 10:00:00"}`))
	})

	ev, err := adapter.CheckStatus(context.Background(), gateway.Lookup{Reference: "RRR-REF-1", ExternalReference: "280007021192"})
	if err != nil {
		t.Fatalf("check status: %v", err)
	}
	if ev.Outcome != gateway.OutcomeSuccess || !ev.Amount.Equal(decimal.NewFromInt(15000)) {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.ExternalTimestamp.IsZero() {
		t.Fatal("expected transaction time to be parsed")
	}
}

func TestStatusOutcome(t *testing.T) {
	cases := map[string]gateway.Outcome{
		"00":  gateway.OutcomeSuccess,
		"01":  gateway.OutcomeSuccess,
		"021": gateway.OutcomePending,
		"025": gateway.OutcomePending,
		"02":  gateway.OutcomeFailure,
	}
	for code, want := range cases {
		if got := StatusOutcome(code); got != want {
			t.Fatalf("%s: expected %s, got %s", code, want, got)
		}
	}
}

func TestParseNotifications(t *testing.T) {
	items, err := ParseNotifications([]byte(`[{"rrr":"280007021192","orderRef":"RRR-REF-1","amount":15000,"transactiondate":"2026-03-01 10:00:00"}]`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(items) != 1 || items[0].OrderRef != "RRR-REF-1" {
		t.Fatalf("unexpected items %+v", items)
	}
	ev := items[0].Settlement(nil)
	if ev.Outcome != gateway.OutcomeSuccess || ev.ExternalReference != "280007021192" {
		t.Fatalf("unexpected settlement %+v", ev)
	}
}
