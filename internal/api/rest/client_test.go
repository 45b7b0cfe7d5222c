package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"borsa/internal/api"
	"borsa/internal/core"
	"borsa/internal/middleware/trace"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func writeOK(t *testing.T, w http.ResponseWriter, data any) {
	t.Helper()
	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Message: "ok", Data: payload}); err != nil {
		t.Fatalf("write envelope: %v", err)
	}
}

func TestListWalletsDecodesEnvelope(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wallets" || r.Method != http.MethodGet {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Fatalf("missing X-Request-ID")
		}
		writeOK(t, w, []core.Wallet{
			{ID: 1, Name: "Cash", IsEnabled: true, Balance: core.Money{Cents: 1500}},
		})
	}))

	wallets, err := c.ListWallets(context.Background())
	if err != nil {
		t.Fatalf("list wallets: %v", err)
	}
	if len(wallets) != 1 || wallets[0].Name != "Cash" || wallets[0].Balance.Cents != 1500 {
		t.Fatalf("unexpected wallets: %+v", wallets)
	}
}

func TestForwardsRequestIDFromContext(t *testing.T) {
	var got string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-ID")
		writeOK(t, w, []core.Wallet{})
	}))

	ctx := context.WithValue(context.Background(), trace.RequestIDKey, "trace-abc-123")
	if _, err := c.ListWallets(ctx); err != nil {
		t.Fatalf("list wallets: %v", err)
	}
	if got != "trace-abc-123" {
		t.Fatalf("X-Request-ID = %q, want the context id", got)
	}
}

func TestBaseURLWithPathPrefix(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.Path
		writeOK(t, w, []core.Person{})
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/api/", time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.ListPersons(context.Background()); err != nil {
		t.Fatalf("list persons: %v", err)
	}
	if seen != "/api/persons" {
		t.Fatalf("expected /api/persons, got %s", seen)
	}
}

func TestEnvelopeRefusalIsRemoteError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false,"message":"","data":null,"error":"wallet name taken"}`))
	}))

	_, err := c.CreateWallet(context.Background(), core.Wallet{Name: "Cash"})
	if err == nil {
		t.Fatalf("expected error")
	}
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected api.Error, got %T", err)
	}
	if apiErr.Kind != api.ErrRemote || apiErr.Message != "wallet name taken" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestHTTPErrorStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := c.ListUsers(context.Background())
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected api.Error, got %v", err)
	}
	if apiErr.Kind != api.ErrRemote || apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestMalformedEnvelopeIsDecodeError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))

	_, err := c.ListPersons(context.Background())
	if api.KindOf(err) != api.ErrDecode {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestUnreachableBackendIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c, err := New(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	srv.Close() // nothing listens anymore

	_, err = c.ListWallets(context.Background())
	if api.KindOf(err) != api.ErrTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestCreateTransactionSendsJSONBody(t *testing.T) {
	var got core.Transaction
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/transactions" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		got.ID = 42
		writeOK(t, w, got)
	}))

	created, err := c.CreateTransaction(context.Background(), core.Transaction{
		WalletID: 1, CategoryID: 3, Amount: core.Money{Cents: -750}, Note: "bus",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != 42 || got.Amount.Cents != -750 || got.Note != "bus" {
		t.Fatalf("round trip lost fields: sent %+v, got back %+v", got, created)
	}
}

func TestCategoryTreePath(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wallets/7/categories/tree" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		writeOK(t, w, []core.CategoryNode{
			{Category: core.Category{ID: 1, Name: "Income", WalletID: 7}},
		})
	}))

	tree, err := c.CategoryTree(context.Background(), 7)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	if len(tree) != 1 || tree[0].Name != "Income" {
		t.Fatalf("unexpected tree: %+v", tree)
	}
}

func TestDeleteUsesDeleteMethod(t *testing.T) {
	var method, path string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		writeOK(t, w, nil)
	}))

	if err := c.DeleteTransaction(context.Background(), 9); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if method != http.MethodDelete || path != "/transactions/9" {
		t.Fatalf("unexpected request: %s %s", method, path)
	}
}

func TestEncodeQueryOmitsEmptyFilters(t *testing.T) {
	if got := encodeQuery(api.TransactionQuery{}); len(got) != 0 {
		t.Fatalf("empty query must encode to nothing, got %v", got)
	}

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	v := encodeQuery(api.TransactionQuery{
		WalletID:            3,
		CategoryIDs:         []int64{4, 5},
		TransactionTimeFrom: from,
		AmountOp:            api.AmountGe,
		AmountValue:         -1000,
		FuzzyNote:           "pizza",
	})
	cases := []struct{ key, want string }{
		{"wallet_id", "3"},
		{"category_ids", "4,5"},
		{"transaction_time_from", "2026-03-01T00:00:00Z"},
		{"amount_op", "ge"},
		{"amount_value", "-1000"},
		{"fuzzy_note", "pizza"},
	}
	for i, tc := range cases {
		if got := v.Get(tc.key); got != tc.want {
			t.Fatalf("case %d %s expected %q, got %q", i, tc.key, tc.want, got)
		}
	}
	for _, absent := range []string{"user_id", "person_id", "entry_time_from", "modified_time_to"} {
		if v.Has(absent) {
			t.Fatalf("%s must be omitted when unset", absent)
		}
	}

	// An op without validity must not leak half a filter.
	v = encodeQuery(api.TransactionQuery{AmountOp: api.AmountOp("between"), AmountValue: 5})
	if v.Has("amount_op") || v.Has("amount_value") {
		t.Fatalf("invalid amount op must be dropped entirely")
	}
}

func TestInitFlowEndpoints(t *testing.T) {
	var initBody core.InitRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/initdone":
			writeOK(t, w, core.InitStatus{InitDone: false, IsNewDB: true})
		case "/init":
			if err := json.NewDecoder(r.Body).Decode(&initBody); err != nil {
				t.Fatalf("decode init: %v", err)
			}
			writeOK(t, w, nil)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	status, err := c.InitStatus(context.Background())
	if err != nil {
		t.Fatalf("initdone: %v", err)
	}
	if status.InitDone || !status.IsNewDB {
		t.Fatalf("unexpected status: %+v", status)
	}

	req := core.InitRequest{
		AdminUser:   core.User{Username: "ada", Role: core.RoleAdmin},
		FirstWallet: core.Wallet{Name: "Main", IsEnabled: true},
	}
	if err := c.Initialize(context.Background(), req); err != nil {
		t.Fatalf("init: %v", err)
	}
	if initBody.AdminUser.Username != "ada" || initBody.FirstWallet.Name != "Main" {
		t.Fatalf("init body lost fields: %+v", initBody)
	}
}
