package state

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"borsa/internal/api"
	"borsa/internal/api/memory"
	"borsa/internal/core"
	"borsa/internal/log"
)

func testStore(t *testing.T) (*Store, *memory.Store) {
	t.Helper()
	mem := memory.NewSeeded()
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	return New(mem, logger), mem
}

func mustRefresh(t *testing.T, s *Store) {
	t.Helper()
	if err := s.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
}

func TestRefreshAllPopulatesAndSelectsDefaults(t *testing.T) {
	st, _ := testStore(t)
	if st.Ready() {
		t.Fatal("store ready before first refresh")
	}
	mustRefresh(t, st)

	snap := st.Snapshot()
	if !snap.InitDone || snap.IsNewDB {
		t.Errorf("init status = %v/%v, want done and not new", snap.InitDone, snap.IsNewDB)
	}
	if got := len(snap.Wallets); got != 3 {
		t.Errorf("wallets = %d, want 3", got)
	}
	if got := len(snap.Users); got != 2 {
		t.Errorf("users = %d, want 2", got)
	}
	if got := len(snap.Persons); got != 3 {
		t.Errorf("persons = %d, want 3", got)
	}
	if got := len(snap.Groups); got != 1 {
		t.Errorf("groups = %d, want 1", got)
	}
	// ada's default wallet and ada herself
	if snap.SelectedWalletID != 1 {
		t.Errorf("selected wallet = %d, want 1", snap.SelectedWalletID)
	}
	if snap.SelectedUserID != 101 {
		t.Errorf("selected user = %d, want 101", snap.SelectedUserID)
	}
	if got := len(snap.Categories); got != 6 {
		t.Errorf("categories = %d, want 6", got)
	}
	if got := len(snap.Tree); got != 3 {
		t.Errorf("tree roots = %d, want 3", got)
	}
	if got := len(snap.Transactions); got != 4 {
		t.Errorf("transactions = %d, want 4", got)
	}
	if !st.Ready() {
		t.Error("store not ready after refresh")
	}
	if snap.Version == 0 {
		t.Error("version still zero after refresh")
	}
}

func TestRefreshAllSettlesPerResource(t *testing.T) {
	st, mem := testStore(t)
	mustRefresh(t, st)
	before := st.Snapshot()

	mem.SetHook(func(_ context.Context, op string) error {
		if op == "ListPersons" {
			return api.Remote(http.StatusInternalServerError, "persons endpoint down")
		}
		return nil
	})

	err := st.RefreshAll(context.Background())
	if err == nil {
		t.Fatal("expected an error from the failing resource")
	}
	if !strings.Contains(err.Error(), "persons endpoint down") {
		t.Errorf("error %q does not mention the failed resource", err)
	}
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusInternalServerError {
		t.Errorf("joined error lost the api error: %v", err)
	}

	snap := st.Snapshot()
	if got := len(snap.Persons); got != len(before.Persons) {
		t.Errorf("persons = %d after failed fetch, want previous %d", got, len(before.Persons))
	}
	if got := len(snap.Wallets); got != 3 {
		t.Errorf("wallets = %d, want 3 despite the persons failure", got)
	}
	if snap.Version <= before.Version {
		t.Error("version did not advance on partial refresh")
	}
	if !snap.RefreshedAt.After(before.RefreshedAt) {
		t.Error("RefreshedAt did not advance on partial refresh")
	}
}

func TestSelectWalletSwitchesData(t *testing.T) {
	st, _ := testStore(t)
	mustRefresh(t, st)
	ctx := context.Background()

	if err := st.SelectWallet(ctx, 2); err != nil {
		t.Fatalf("SelectWallet: %v", err)
	}
	snap := st.Snapshot()
	if snap.SelectedWalletID != 2 {
		t.Fatalf("selected wallet = %d, want 2", snap.SelectedWalletID)
	}
	// two globals plus Fees
	if got := len(snap.Categories); got != 3 {
		t.Errorf("categories = %d, want 3", got)
	}
	if got := len(snap.Tree); got != 2 {
		t.Errorf("tree roots = %d, want 2", got)
	}
	if len(snap.Transactions) != 1 || snap.Transactions[0].ID != 405 {
		t.Errorf("transactions = %+v, want just 405", snap.Transactions)
	}

	if err := st.SelectWallet(ctx, 99); !errors.Is(err, ErrUnknownWallet) {
		t.Errorf("SelectWallet(99) = %v, want ErrUnknownWallet", err)
	}

	// reselecting the current wallet is a no-op
	v := st.Version()
	if err := st.SelectWallet(ctx, 2); err != nil {
		t.Fatalf("reselect: %v", err)
	}
	if st.Version() != v {
		t.Error("reselecting the same wallet bumped the version")
	}
}

func TestSelectUser(t *testing.T) {
	st, _ := testStore(t)
	mustRefresh(t, st)

	if err := st.SelectUser(102); err != nil {
		t.Fatalf("SelectUser: %v", err)
	}
	if got := st.Snapshot().SelectedUserID; got != 102 {
		t.Errorf("selected user = %d, want 102", got)
	}
	if err := st.SelectUser(999); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("SelectUser(999) = %v, want ErrUnknownUser", err)
	}
}

// A slow wallet switch must never overwrite the data of a later one.
func TestSelectWalletDiscardsStaleLoad(t *testing.T) {
	st, mem := testStore(t)
	mustRefresh(t, st)
	ctx := context.Background()

	var treeCalls atomic.Int64
	firstEntered := make(chan struct{})
	release := make(chan struct{})
	mem.SetHook(func(_ context.Context, op string) error {
		if op != "CategoryTree" {
			return nil
		}
		if treeCalls.Add(1) == 1 {
			close(firstEntered)
			<-release
		}
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- st.SelectWallet(ctx, 2) }()

	<-firstEntered
	if err := st.SelectWallet(ctx, 3); err != nil {
		t.Fatalf("second select: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("stale select returned error: %v", err)
	}

	snap := st.Snapshot()
	if snap.SelectedWalletID != 3 {
		t.Fatalf("selected wallet = %d, want 3", snap.SelectedWalletID)
	}
	// wallet 3 sees only the two global categories and no transactions;
	// wallet 2's slower payload must have been dropped
	if got := len(snap.Categories); got != 2 {
		t.Errorf("categories = %d, want 2", got)
	}
	if got := len(snap.Transactions); got != 0 {
		t.Errorf("transactions = %d, want 0", got)
	}
}

func TestRefreshAllDeduplicatesConcurrentCallers(t *testing.T) {
	st, mem := testStore(t)

	var walletLists atomic.Int64
	var once sync.Once
	entered := make(chan struct{})
	release := make(chan struct{})
	mem.SetHook(func(_ context.Context, op string) error {
		switch op {
		case "ListWallets":
			walletLists.Add(1)
		case "InitStatus":
			once.Do(func() { close(entered) })
			<-release
		}
		return nil
	})

	errs := make(chan error, 2)
	go func() { errs <- st.RefreshAll(context.Background()) }()
	<-entered
	go func() { errs <- st.RefreshAll(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	close(release)

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("RefreshAll: %v", err)
		}
	}
	if got := walletLists.Load(); got != 1 {
		t.Errorf("ListWallets hit %d times, want the shared sweep to run once", got)
	}
}

func TestMutationsRefreshSnapshot(t *testing.T) {
	st, _ := testStore(t)
	mustRefresh(t, st)
	ctx := context.Background()

	created, err := st.CreateTransaction(ctx, core.Transaction{
		WalletID:        1,
		CategoryID:      3,
		Amount:          core.Money{Cents: -990},
		Note:            "Snacks",
		UserID:          101,
		TransactionTime: time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("created transaction has no id")
	}
	snap := st.Snapshot()
	if _, ok := snap.TransactionByID(created.ID); !ok {
		t.Error("snapshot does not contain the new transaction")
	}
	if got := len(snap.Transactions); got != 5 {
		t.Errorf("transactions = %d, want 5", got)
	}

	if _, err := st.CreatePerson(ctx, core.Person{Name: "Luigi"}); err != nil {
		t.Fatalf("CreatePerson: %v", err)
	}
	if got := len(st.Snapshot().Persons); got != 4 {
		t.Errorf("persons = %d, want 4", got)
	}

	newUser, err := st.CreateUser(ctx, core.User{Username: "gio", Role: core.RoleRegular})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if got := len(st.Snapshot().Users); got != 3 {
		t.Errorf("users = %d, want 3", got)
	}
	newUser.DisplayName = "Giovanna"
	if _, err := st.UpdateUser(ctx, newUser); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if u, ok := st.Snapshot().UserByID(newUser.ID); !ok || u.DisplayName != "Giovanna" {
		t.Errorf("user after update = %+v/%v, want display name Giovanna", u, ok)
	}
}

// Deleting the selected wallet moves the selection to the next enabled one.
func TestDeleteSelectedWalletMovesSelection(t *testing.T) {
	st, _ := testStore(t)
	mustRefresh(t, st)
	ctx := context.Background()

	if err := st.DeleteWallet(ctx, 1); err != nil {
		t.Fatalf("DeleteWallet: %v", err)
	}
	snap := st.Snapshot()
	if got := len(snap.Wallets); got != 2 {
		t.Fatalf("wallets = %d, want 2", got)
	}
	if snap.SelectedWalletID != 2 {
		t.Errorf("selected wallet = %d, want 2", snap.SelectedWalletID)
	}
	if len(snap.Transactions) != 1 || snap.Transactions[0].ID != 405 {
		t.Errorf("transactions = %+v, want wallet 2's single entry", snap.Transactions)
	}
}

func TestInitializeLoadsDashboardData(t *testing.T) {
	mem := memory.New()
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	st := New(mem, logger)
	ctx := context.Background()

	mustRefresh(t, st)
	snap := st.Snapshot()
	if snap.InitDone || !snap.IsNewDB {
		t.Fatalf("fresh store init status = %v/%v, want pending setup", snap.InitDone, snap.IsNewDB)
	}
	if snap.SelectedWalletID != 0 || snap.SelectedUserID != 0 {
		t.Fatalf("fresh store has selections: wallet %d user %d", snap.SelectedWalletID, snap.SelectedUserID)
	}

	err := st.Initialize(ctx, core.InitRequest{
		AdminUser:   core.User{Username: "ada", Role: core.RoleAdmin},
		FirstWallet: core.Wallet{Name: "Main"},
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	snap = st.Snapshot()
	if !snap.InitDone {
		t.Error("init still pending after setup")
	}
	if len(snap.Wallets) != 1 || len(snap.Users) != 1 {
		t.Fatalf("got %d wallets and %d users, want 1 and 1", len(snap.Wallets), len(snap.Users))
	}
	if snap.SelectedWalletID != snap.Wallets[0].ID {
		t.Errorf("selected wallet = %d, want the new wallet %d", snap.SelectedWalletID, snap.Wallets[0].ID)
	}
	if snap.SelectedUserID != snap.Users[0].ID {
		t.Errorf("selected user = %d, want the admin %d", snap.SelectedUserID, snap.Users[0].ID)
	}
}

func TestSnapshotHelpers(t *testing.T) {
	st, _ := testStore(t)
	mustRefresh(t, st)
	snap := st.Snapshot()

	if w, ok := snap.SelectedWallet(); !ok || w.Name != "Main" {
		t.Errorf("SelectedWallet = %+v/%v, want Main", w, ok)
	}
	if got := len(snap.EnabledWallets()); got != 2 {
		t.Errorf("enabled wallets = %d, want 2", got)
	}
	if name := snap.CategoryNames()[3]; name != "Groceries" {
		t.Errorf("category 3 = %q, want Groceries", name)
	}
	if name := snap.PersonNames()[203]; name != "Trenitalia" {
		t.Errorf("person 203 = %q, want Trenitalia", name)
	}
	if _, ok := snap.UserByID(101); !ok {
		t.Error("user 101 missing")
	}
	if _, ok := snap.GroupByID(301); !ok {
		t.Error("group 301 missing")
	}
}

func TestSubscribeNotifiesOnChange(t *testing.T) {
	st, _ := testStore(t)

	var mu sync.Mutex
	var versions []uint64
	cancel := st.Subscribe(func(c Change) {
		mu.Lock()
		versions = append(versions, c.Version)
		mu.Unlock()
	})

	mustRefresh(t, st)
	ctx := context.Background()
	if _, err := st.CreatePerson(ctx, core.Person{Name: "Bar Roma"}); err != nil {
		t.Fatalf("CreatePerson: %v", err)
	}

	mu.Lock()
	got := append([]uint64(nil), versions...)
	mu.Unlock()
	if len(got) < 2 {
		t.Fatalf("got %d notifications, want at least 2", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("versions not increasing: %v", got)
		}
	}

	cancel()
	before := len(got)
	if err := st.SelectUser(102); err != nil {
		t.Fatalf("SelectUser: %v", err)
	}
	mu.Lock()
	after := len(versions)
	mu.Unlock()
	if after != before {
		t.Errorf("got %d notifications after cancel, want %d", after, before)
	}
}
