package settlement_test

import (
	"io"
	"strings"
	"testing"

	"github.com/campuspay/campuspay-api/internal/domain/settlement"
	"github.com/campuspay/campuspay-api/internal/pkg/response"
	"github.com/campuspay/campuspay-api/internal/pkg/validator"
)

func decodeWithdraw(t *testing.T, body string) (settlement.WithdrawRequest, map[string]string) {
	t.Helper()
	var req settlement.WithdrawRequest
	if err := response.DecodeJSON(io.NopCloser(strings.NewReader(body)), &req); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return req, validator.Validate(&req)
}

func TestWithdrawRequestNestsBankAccount(t *testing.T) {
	req, errs := decodeWithdraw(t, `{"amount":"400","bank_account":{"account_number":"0123456789","bank_code":"058"}}`)
	if errs != nil {
		t.Fatalf("expected valid request, got %v", errs)
	}
	if req.BankAccount.AccountNumber != "0123456789" || req.BankAccount.BankCode != "058" {
		t.Fatalf("bank account = %+v", req.BankAccount)
	}
	if !req.Amount.Equal(dec("400")) {
		t.Fatalf("amount = %s", req.Amount)
	}
}

func TestWithdrawRequestRejectsFlatAccount(t *testing.T) {
	_, errs := decodeWithdraw(t, `{"amount":"400","account_number":"0123456789","bank_code":"058"}`)
	if errs["account_number"] == "" || errs["bank_code"] == "" {
		t.Fatalf("expected nested account fields to be required, got %v", errs)
	}

	_, errs = decodeWithdraw(t, `{"amount":"400","bank_account":{"account_number":"12345","bank_code":"x"}}`)
	if errs["account_number"] == "" || errs["bank_code"] == "" {
		t.Fatalf("expected malformed account to be rejected, got %v", errs)
	}
}
