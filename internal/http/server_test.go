package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"borsa/internal/api"
	"borsa/internal/api/memory"
	"borsa/internal/config"
	"borsa/internal/log"
	"borsa/internal/state"
)

func newTestServer(t *testing.T, mem *memory.Store, refresh bool) (*Server, *state.Store) {
	t.Helper()
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	st := state.New(mem, logger)
	if refresh {
		if err := st.RefreshAll(context.Background()); err != nil {
			t.Fatalf("RefreshAll: %v", err)
		}
	}
	cfg := &config.Config{
		Port:               "8080",
		DataBackend:        "memory",
		Currency:           "EUR",
		RateLimitPerMinute: 100000,
		APITimeout:         10 * time.Second,
	}
	srv := NewServer(cfg, st, logger)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, st
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func postForm(t *testing.T, srv *Server, method, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func triggersOf(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	raw := rec.Header().Get("HX-Trigger")
	if raw == "" {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("HX-Trigger not JSON: %v (%s)", err, raw)
	}
	return m
}

func TestIndexRendersDashboardWhenInitialized(t *testing.T) {
	srv, _ := newTestServer(t, memory.NewSeeded(), true)
	rec := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `id="topbar"`) {
		t.Error("dashboard shell missing from index")
	}
	if strings.Contains(body, "Benvenuto in Borsa") {
		t.Error("setup screen shown although already initialized")
	}
}

func TestIndexRendersSetupOnFreshBackend(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), false)
	rec := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Benvenuto in Borsa") {
		t.Error("setup screen missing on uninitialized backend")
	}
	if !strings.Contains(body, "Il database è vuoto") {
		t.Error("new-database hint missing")
	}
}

func TestIndexHoldsWhenBackendUnreachable(t *testing.T) {
	mem := memory.New()
	mem.SetHook(func(ctx context.Context, op string) error {
		return api.Transport("connection refused", nil)
	})
	srv, _ := newTestServer(t, mem, false)
	rec := get(t, srv, "/")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "non è raggiungibile") {
		t.Error("holding page missing")
	}
	// The setup screen must never show while the init status is unknown.
	if strings.Contains(rec.Body.String(), "Benvenuto") {
		t.Error("setup screen shown without a known init status")
	}
}

func TestSetupCompletesIntoDashboard(t *testing.T) {
	srv, st := newTestServer(t, memory.New(), false)

	rec := postForm(t, srv, http.MethodPost, "/setup", url.Values{
		"username":    {"ada"},
		"wallet_name": {"Principale"},
		"wallet_icon": {"💰"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	trig := triggersOf(t, rec)
	if _, ok := trig["setup:completed"]; !ok {
		t.Error("setup:completed trigger missing")
	}
	if got := rec.Header().Get("HX-Retarget"); got != "#app" {
		t.Errorf("HX-Retarget = %q, want #app", got)
	}
	if !strings.Contains(rec.Body.String(), `id="topbar"`) {
		t.Error("response does not carry the dashboard")
	}

	snap := st.Snapshot()
	if !snap.InitDone {
		t.Error("store still reports init pending")
	}
	if snap.SelectedWalletID == 0 || snap.SelectedUserID == 0 {
		t.Errorf("selection not established: wallet %d user %d", snap.SelectedWalletID, snap.SelectedUserID)
	}
}

func TestSetupValidationReRendersForm(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), false)
	rec := postForm(t, srv, http.MethodPost, "/setup", url.Values{
		"username":    {""},
		"wallet_name": {"Principale"},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Campo obbligatorio") {
		t.Error("field error missing")
	}
	if !strings.Contains(body, `value="Principale"`) {
		t.Error("entered wallet name not echoed back")
	}
}

func TestTopbarListsOnlyEnabledWallets(t *testing.T) {
	srv, _ := newTestServer(t, memory.NewSeeded(), true)
	rec := get(t, srv, "/ui/topbar")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"Main", "Savings", "Ada", "Sam"} {
		if !strings.Contains(body, name) {
			t.Errorf("topbar missing %q", name)
		}
	}
	if strings.Contains(body, "Old card") {
		t.Error("disabled wallet listed in switcher")
	}
}

func TestTransactionListSearchFilter(t *testing.T) {
	srv, _ := newTestServer(t, memory.NewSeeded(), true)
	rec := get(t, srv, "/ui/transactions?search=train")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Train to Milan") {
		t.Error("matching transaction missing")
	}
	if strings.Contains(body, "Weekly groceries") {
		t.Error("non-matching transaction leaked through the filter")
	}
}

func TestTransactionCreateHappyPath(t *testing.T) {
	srv, st := newTestServer(t, memory.NewSeeded(), true)
	before := len(st.Snapshot().Transactions)

	rec := postForm(t, srv, http.MethodPost, "/transactions", url.Values{
		"amount":      {"3.50"},
		"direction":   {"out"},
		"category_id": {"3"},
		"note":        {"Caffè al volo"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("HX-Reswap"); got != "none" {
		t.Errorf("HX-Reswap = %q, want none", got)
	}
	trig := triggersOf(t, rec)
	if _, ok := trig["transactions:changed"]; !ok {
		t.Error("transactions:changed trigger missing")
	}
	if _, ok := trig["form:reset"]; !ok {
		t.Error("form:reset trigger missing")
	}

	snap := st.Snapshot()
	if len(snap.Transactions) != before+1 {
		t.Fatalf("transactions = %d, want %d", len(snap.Transactions), before+1)
	}
	var found bool
	for _, tx := range snap.Transactions {
		if tx.Note == "Caffè al volo" {
			found = true
			if tx.Amount.Cents != -350 {
				t.Errorf("amount = %d, want -350", tx.Amount.Cents)
			}
			if tx.WalletID != snap.SelectedWalletID {
				t.Errorf("wallet = %d, want selected %d", tx.WalletID, snap.SelectedWalletID)
			}
		}
	}
	if !found {
		t.Error("created transaction not in snapshot")
	}
}

func TestTransactionCreateRejectsBadAmount(t *testing.T) {
	srv, _ := newTestServer(t, memory.NewSeeded(), true)
	rec := postForm(t, srv, http.MethodPost, "/transactions", url.Values{
		"amount":      {"tre euro"},
		"direction":   {"out"},
		"category_id": {"3"},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Importo non valido") {
		t.Error("amount error missing")
	}
	if !strings.Contains(body, `value="tre euro"`) {
		t.Error("entered amount not echoed back for correction")
	}
}

func TestWalletSelectSwitchesScopedData(t *testing.T) {
	srv, st := newTestServer(t, memory.NewSeeded(), true)

	rec := postForm(t, srv, http.MethodPost, "/wallets/2/select", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if _, ok := triggersOf(t, rec)["wallet:selected"]; !ok {
		t.Error("wallet:selected trigger missing")
	}
	if got := st.Snapshot().SelectedWalletID; got != 2 {
		t.Fatalf("selected wallet = %d, want 2", got)
	}

	cats := get(t, srv, "/ui/categories")
	if !strings.Contains(cats.Body.String(), "Fees") {
		t.Error("wallet 2 categories not loaded after switch")
	}
	if strings.Contains(cats.Body.String(), "Groceries") {
		t.Error("wallet 1 categories still shown after switch")
	}
}

func TestWalletSelectUnknownID(t *testing.T) {
	srv, _ := newTestServer(t, memory.NewSeeded(), true)
	rec := postForm(t, srv, http.MethodPost, "/wallets/999/select", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Portafoglio non trovato") {
		t.Error("error message missing")
	}
}

func TestUserSelect(t *testing.T) {
	srv, st := newTestServer(t, memory.NewSeeded(), true)
	rec := postForm(t, srv, http.MethodPost, "/users/102/select", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if _, ok := triggersOf(t, rec)["user:selected"]; !ok {
		t.Error("user:selected trigger missing")
	}
	if got := st.Snapshot().SelectedUserID; got != 102 {
		t.Errorf("selected user = %d, want 102", got)
	}
}

func TestCategoryTreeExpandRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, memory.NewSeeded(), true)

	collapsed := get(t, srv, "/ui/categories").Body.String()
	if !strings.Contains(collapsed, "Groceries") {
		t.Fatal("root category missing")
	}
	if strings.Contains(collapsed, "Vegetables") {
		t.Error("child visible while parent collapsed")
	}

	expanded := get(t, srv, "/ui/categories?expanded=3").Body.String()
	if !strings.Contains(expanded, "Vegetables") {
		t.Error("child hidden although parent expanded")
	}
	// The toggle link for the open node must encode the set without it.
	if !strings.Contains(expanded, `expanded=`) {
		t.Error("toggle links missing")
	}
}

func TestPersonSuggest(t *testing.T) {
	srv, _ := newTestServer(t, memory.NewSeeded(), true)
	rec := get(t, srv, "/ui/persons/suggest?q=mario")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Mario Rossi") {
		t.Error("suggestion missing")
	}

	// The transaction form sends its own field name.
	rec = get(t, srv, "/ui/persons/suggest?counterparty=acme")
	if !strings.Contains(rec.Body.String(), "ACME") {
		t.Error("counterparty param not accepted")
	}
}

func TestBackendRejectionSurfacesToClient(t *testing.T) {
	mem := memory.NewSeeded()
	srv, _ := newTestServer(t, mem, true)
	mem.SetHook(func(ctx context.Context, op string) error {
		if op == "CreateWallet" {
			return api.Remote(http.StatusConflict, "nome già in uso")
		}
		return nil
	})

	rec := postForm(t, srv, http.MethodPost, "/wallets", url.Values{
		"name":    {"Main"},
		"enabled": {"true"},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "nome già in uso") {
		t.Error("backend message not passed through")
	}
}

func TestFragmentCacheHitsCountedInMetrics(t *testing.T) {
	srv, _ := newTestServer(t, memory.NewSeeded(), true)
	get(t, srv, "/ui/topbar")
	get(t, srv, "/ui/topbar")

	rec := get(t, srv, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("metrics not JSON: %v", err)
	}
	hits, ok := m["fragment_cache_hits"].(float64)
	if !ok || hits < 1 {
		t.Errorf("fragment_cache_hits = %v, want at least 1", m["fragment_cache_hits"])
	}
}

func TestMutationInvalidatesFragmentCache(t *testing.T) {
	srv, _ := newTestServer(t, memory.NewSeeded(), true)

	before := get(t, srv, "/ui/persons").Body.String()
	if strings.Contains(before, "Lia Bianchi") {
		t.Fatal("person present before creation")
	}

	rec := postForm(t, srv, http.MethodPost, "/persons", url.Values{"name": {"Lia Bianchi"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d (body %s)", rec.Code, rec.Body.String())
	}

	after := get(t, srv, "/ui/persons").Body.String()
	if !strings.Contains(after, "Lia Bianchi") {
		t.Error("stale fragment served after mutation")
	}
}

func TestReadyzReflectsStoreState(t *testing.T) {
	srv, st := newTestServer(t, memory.NewSeeded(), false)
	if rec := get(t, srv, "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz before refresh = %d, want 503", rec.Code)
	}
	if err := st.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	if rec := get(t, srv, "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("readyz after refresh = %d, want 200", rec.Code)
	}
}

func TestMethodGuards(t *testing.T) {
	srv, _ := newTestServer(t, memory.NewSeeded(), true)

	req := httptest.NewRequest(http.MethodDelete, "/transactions", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE on collection = %d, want 405", rec.Code)
	}

	rec = postForm(t, srv, http.MethodPost, "/transactions/abc", nil)
	if rec.Code != http.StatusBadRequest && rec.Code != http.StatusNotFound {
		t.Errorf("garbage id = %d, want 400 or 404", rec.Code)
	}
}
