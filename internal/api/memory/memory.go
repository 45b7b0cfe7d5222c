// Package memory implements every backend port against process memory.
// It doubles as the DATA_BACKEND=memory demo mode and as the test double:
// the hook lets tests shape latency and inject failures per operation.
package memory

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"borsa/internal/api"
	"borsa/internal/core"
)

type Store struct {
	mu       sync.Mutex
	nextID   int64
	initDone bool
	isNewDB  bool

	users        []core.User
	wallets      []core.Wallet
	categories   []core.Category
	transactions []core.Transaction
	persons      []core.Person
	groups       []core.WalletGroup

	hook Hook
}

// Hook runs at the start of every operation with its name. Returning an
// error aborts the call with that error; sleeping inside delays it.
type Hook func(ctx context.Context, op string) error

// Ensure interface conformance
var (
	_ api.UserDirectory    = (*Store)(nil)
	_ api.WalletStore      = (*Store)(nil)
	_ api.CategoryStore    = (*Store)(nil)
	_ api.TransactionStore = (*Store)(nil)
	_ api.PersonDirectory  = (*Store)(nil)
	_ api.GroupStore       = (*Store)(nil)
	_ api.Initializer      = (*Store)(nil)
)

// New returns an empty store still waiting for first-run setup.
func New() *Store {
	return &Store{isNewDB: true}
}

// NewSeeded returns a store preloaded with a small demo dataset: three
// wallets (one disabled), a category tree with a global income subtree,
// a week of transactions, persons and one group. Ids are fixed so tests
// can reference them.
func NewSeeded() *Store {
	now := time.Now()
	at := func(daysAgo int, hour int) time.Time {
		d := now.AddDate(0, 0, -daysAgo)
		return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, d.Location())
	}
	pid := func(id int64) *int64 { return &id }
	wid := func(id int64) *int64 { return &id }

	s := &Store{initDone: true, nextID: 500}
	s.users = []core.User{
		{ID: 101, Username: "ada", DisplayName: "Ada", Email: "ada@example.net", Role: core.RoleAdmin, DefaultWalletID: wid(1), CreatedAt: at(90, 9)},
		{ID: 102, Username: "sam", DisplayName: "Sam", Role: core.RoleRegular, CreatedAt: at(60, 9)},
	}
	s.wallets = []core.Wallet{
		{ID: 1, Name: "Main", Icon: "💰", IsEnabled: true, Balance: core.Money{Cents: 245049}, ModifiedTime: at(0, 8)},
		{ID: 2, Name: "Savings", Icon: "🏦", IsEnabled: true, Balance: core.Money{Cents: 1200000}, ModifiedTime: at(7, 8)},
		{ID: 3, Name: "Old card", Icon: "💳", IsEnabled: false, Balance: core.Money{Cents: 3150}, ModifiedTime: at(200, 8)},
	}
	s.categories = []core.Category{
		{ID: 1, Name: "Income", Icon: "📈", IsGlobal: true, RootID: 1},
		{ID: 2, Name: "Salary", Icon: "💼", ParentID: pid(1), IsGlobal: true, RootID: 1},
		{ID: 3, Name: "Groceries", Icon: "🛒", WalletID: 1, RootID: 3},
		{ID: 4, Name: "Vegetables", ParentID: pid(3), WalletID: 1, RootID: 3},
		{ID: 5, Name: "Transport", Icon: "🚗", WalletID: 1, RootID: 5},
		{ID: 6, Name: "Train", ParentID: pid(5), WalletID: 1, RootID: 5},
		{ID: 7, Name: "Fees", Icon: "🏦", WalletID: 2, RootID: 7},
	}
	s.persons = []core.Person{
		{ID: 201, Name: "Mario Rossi", Alias: "mario"},
		{ID: 202, Name: "ACME S.p.A.", Alias: "acme"},
		{ID: 203, Name: "Trenitalia"},
	}
	s.groups = []core.WalletGroup{
		{ID: 301, Name: "Everyday", WalletIDs: []int64{1, 2}},
	}
	s.transactions = []core.Transaction{
		{ID: 401, WalletID: 1, CategoryID: 2, Amount: core.Money{Cents: 250000}, Note: "March salary", PersonID: pid(202), UserID: 101, TransactionTime: at(10, 9), EntryTime: at(10, 9), ModifiedTime: at(10, 9)},
		{ID: 402, WalletID: 1, CategoryID: 4, Amount: core.Money{Cents: -4521}, Note: "Weekly groceries", UserID: 101, TransactionTime: at(3, 18), EntryTime: at(3, 19), ModifiedTime: at(3, 19)},
		{ID: 403, WalletID: 1, CategoryID: 6, Amount: core.Money{Cents: -1250}, Note: "Train to Milan", Counterparty: "Trenitalia", PersonID: pid(203), UserID: 101, TransactionTime: at(1, 7), EntryTime: at(1, 8), ModifiedTime: at(1, 8)},
		{ID: 404, WalletID: 1, CategoryID: 3, Amount: core.Money{Cents: -350}, Note: "Coffee", UserID: 102, TransactionTime: at(0, 10), EntryTime: at(0, 10), ModifiedTime: at(0, 10)},
		{ID: 405, WalletID: 2, CategoryID: 7, Amount: core.Money{Cents: -200}, Note: "Account fee", UserID: 101, TransactionTime: at(15, 12), EntryTime: at(15, 12), ModifiedTime: at(15, 12)},
	}
	return s
}

// Seed is the JSON shape accepted by NewFromFile.
type Seed struct {
	Users        []core.User        `json:"users"`
	Wallets      []core.Wallet      `json:"wallets"`
	Categories   []core.Category    `json:"categories"`
	Transactions []core.Transaction `json:"transactions"`
	Persons      []core.Person      `json:"persons"`
	Groups       []core.WalletGroup `json:"walletgroups"`
}

// NewFromFile loads a seed file; any read or parse problem falls back to
// the built-in demo dataset.
func NewFromFile(path string) *Store {
	raw, err := os.ReadFile(path)
	if err != nil {
		return NewSeeded()
	}
	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return NewSeeded()
	}
	s := &Store{
		users:        seed.Users,
		wallets:      seed.Wallets,
		categories:   seed.Categories,
		transactions: seed.Transactions,
		persons:      seed.Persons,
		groups:       seed.Groups,
	}
	s.initDone = len(seed.Users) > 0 && len(seed.Wallets) > 0
	s.isNewDB = !s.initDone
	s.nextID = maxSeedID(&seed) + 1
	return s
}

func maxSeedID(seed *Seed) int64 {
	var m int64
	bump := func(id int64) {
		if id > m {
			m = id
		}
	}
	for _, u := range seed.Users {
		bump(u.ID)
	}
	for _, w := range seed.Wallets {
		bump(w.ID)
	}
	for _, c := range seed.Categories {
		bump(c.ID)
	}
	for _, t := range seed.Transactions {
		bump(t.ID)
	}
	for _, p := range seed.Persons {
		bump(p.ID)
	}
	for _, g := range seed.Groups {
		bump(g.ID)
	}
	return m
}

// SetHook installs the test hook. Pass nil to remove it.
func (s *Store) SetHook(h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = h
}

// enter runs the hook outside the store lock so a sleeping hook delays
// only its own operation, not every other caller.
func (s *Store) enter(ctx context.Context, op string) error {
	s.mu.Lock()
	h := s.hook
	s.mu.Unlock()
	if h == nil {
		return nil
	}
	return h(ctx, op)
}

func (s *Store) assign() int64 {
	s.nextID++
	return s.nextID
}

// dedupeIDs drops duplicates while preserving first-seen order.
func dedupeIDs(in []int64) []int64 {
	seen := map[int64]struct{}{}
	out := make([]int64, 0, len(in))
	for _, id := range in {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
