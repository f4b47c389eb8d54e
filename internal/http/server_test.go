package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"zelar/internal/reports"
	"zelar/internal/services"
	"zelar/internal/storage/memory"
)

func newTestServer() *Server {
	store := memory.NewStore()
	svc := services.NewLedgerService(store, nil)
	return NewServer(":0", svc, reports.New(store))
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func createTransaction(t *testing.T, srv *Server, req transactionRequest) transactionResponse {
	t.Helper()

	rec := doJSON(t, srv, http.MethodPost, "/transactions", req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp transactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestCreateTransaction(t *testing.T) {
	srv := newTestServer()

	resp := createTransaction(t, srv, transactionRequest{
		User:      "ana",
		Category:  "cash_in",
		Amount:    "1.234,56",
		Origin:    "own",
		Timestamp: "2025-03-01 09:00:00",
	})

	if resp.ID == "" {
		t.Fatalf("expected generated id")
	}
	if resp.Amount != 1234.56 {
		t.Fatalf("expected normalized amount 1234.56, got %v", resp.Amount)
	}
	if resp.SessionTag == nil || *resp.SessionTag != "2025-03-01" {
		t.Fatalf("expected session tag 2025-03-01, got %v", resp.SessionTag)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	srv := newTestServer()

	cases := []struct {
		name string
		req  transactionRequest
		code int
	}{
		{"bad amount", transactionRequest{User: "ana", Category: "lunch", Amount: "abc", Origin: "own", Timestamp: "2025-03-01 12:00:00"}, http.StatusUnprocessableEntity},
		{"bad category", transactionRequest{User: "ana", Category: "snack", Amount: "10", Origin: "own", Timestamp: "2025-03-01 12:00:00"}, http.StatusUnprocessableEntity},
		{"bad origin", transactionRequest{User: "ana", Category: "lunch", Amount: "10", Origin: "stolen", Timestamp: "2025-03-01 12:00:00"}, http.StatusUnprocessableEntity},
		{"empty user", transactionRequest{User: "", Category: "lunch", Amount: "10", Origin: "own", Timestamp: "2025-03-01 12:00:00"}, http.StatusUnprocessableEntity},
		{"bad timestamp", transactionRequest{User: "ana", Category: "lunch", Amount: "10", Origin: "own", Timestamp: "yesterday"}, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, "/transactions", tc.req)
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestListTransactionsByUser(t *testing.T) {
	srv := newTestServer()

	createTransaction(t, srv, transactionRequest{User: "ana", Category: "cash_in", Amount: "100", Origin: "own", Timestamp: "2025-03-01 09:00:00"})
	createTransaction(t, srv, transactionRequest{User: "bia", Category: "cash_in", Amount: "50", Origin: "own", Timestamp: "2025-03-01 10:00:00"})

	rec := doJSON(t, srv, http.MethodGet, "/transactions?user=ana", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var txs []transactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &txs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(txs) != 1 || txs[0].User != "ana" {
		t.Fatalf("expected only ana's transactions, got %+v", txs)
	}

	rec = doJSON(t, srv, http.MethodGet, "/transactions", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &txs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions for all users, got %d", len(txs))
	}
}

func TestUpdateAndDeleteTransaction(t *testing.T) {
	srv := newTestServer()

	created := createTransaction(t, srv, transactionRequest{User: "ana", Category: "lunch", Amount: "10", Origin: "own", Timestamp: "2025-03-01 12:00:00"})

	rec := doJSON(t, srv, http.MethodPut, "/transactions/"+created.ID, transactionRequest{
		Category: "dinner", Amount: "25", Timestamp: "2025-03-01 20:00:00",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var updated transactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if updated.Category != "dinner" || updated.Amount != 25 {
		t.Fatalf("update not applied: %+v", updated)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/transactions/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/transactions/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestBalancesEndpoint(t *testing.T) {
	srv := newTestServer()

	createTransaction(t, srv, transactionRequest{User: "ana", Category: "cash_in", Amount: "100", Origin: "own", Timestamp: "2025-03-01 09:00:00"})
	createTransaction(t, srv, transactionRequest{User: "ana", Category: "lunch", Amount: "30,50", Origin: "own", Timestamp: "2025-03-02 12:00:00"})

	rec := doJSON(t, srv, http.MethodGet, "/balances?user=ana", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var b balanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if b.Own != 69.50 {
		t.Fatalf("expected own 69.50, got %v", b.Own)
	}

	// A mutation must invalidate the cached balance.
	createTransaction(t, srv, transactionRequest{User: "ana", Category: "dinner", Amount: "9,50", Origin: "own", Timestamp: "2025-03-02 20:00:00"})
	rec = doJSON(t, srv, http.MethodGet, "/balances?user=ana", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if b.Own != 60 {
		t.Fatalf("expected own 60 after new expense, got %v", b.Own)
	}
}

func TestDeleteInvalidatesBalanceCache(t *testing.T) {
	srv := newTestServer()

	createTransaction(t, srv, transactionRequest{User: "ana", Category: "cash_in", Amount: "100", Origin: "own", Timestamp: "2025-03-01 09:00:00"})
	expense := createTransaction(t, srv, transactionRequest{User: "ana", Category: "lunch", Amount: "30", Origin: "own", Timestamp: "2025-03-02 12:00:00"})

	rec := doJSON(t, srv, http.MethodGet, "/balances?user=ana", nil)
	var b balanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if b.Own != 70 {
		t.Fatalf("expected own 70, got %v", b.Own)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/transactions/"+expense.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/balances?user=ana", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if b.Own != 100 {
		t.Fatalf("expected own 100 after the delete, got %v", b.Own)
	}
}

func TestBalanceAsOfEndpoint(t *testing.T) {
	srv := newTestServer()

	createTransaction(t, srv, transactionRequest{User: "ana", Category: "cash_in", Amount: "100", Origin: "own", Timestamp: "2025-03-01 09:00:00"})
	createTransaction(t, srv, transactionRequest{User: "ana", Category: "lunch", Amount: "40", Origin: "own", Timestamp: "2025-03-03 12:00:00"})

	rec := doJSON(t, srv, http.MethodGet, "/balance-asof?user=ana&date=2025-03-03", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Balance float64 `json:"balance"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Balance != 100 {
		t.Fatalf("expected 100 before March 3rd, got %v", resp.Balance)
	}

	rec = doJSON(t, srv, http.MethodGet, "/balance-asof?user=ana&date=notadate", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rec.Code)
	}
}

func TestSessionStatusEndpoint(t *testing.T) {
	srv := newTestServer()

	createTransaction(t, srv, transactionRequest{User: "ana", Category: "cash_in", Amount: "100", Origin: "own", Timestamp: "2025-03-01 09:00:00"})

	rec := doJSON(t, srv, http.MethodGet, "/session-status?user=ana", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var status sessionStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !status.Open {
		t.Fatalf("expected open session, got %+v", status)
	}
	if status.OpenedOn == nil || *status.OpenedOn != "2025-03-01" {
		t.Fatalf("expected opened on 2025-03-01, got %v", status.OpenedOn)
	}
	if status.ProjectedCloseOn == nil || *status.ProjectedCloseOn != "2025-03-31" {
		t.Fatalf("expected projected close 2025-03-31, got %v", status.ProjectedCloseOn)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer()

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, srv, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestRateLimitOnMutations(t *testing.T) {
	srv := newTestServer()

	var lastCode int
	for i := 0; i < 70; i++ {
		rec := doJSON(t, srv, http.MethodPost, "/transactions", transactionRequest{
			User: "ana", Category: "lunch", Amount: "1", Origin: "own",
			Timestamp: fmt.Sprintf("2025-03-01 12:%02d:00", i%60),
		})
		lastCode = rec.Code
	}
	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after the rate limit, got %d", lastCode)
	}
}
