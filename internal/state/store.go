// Package state keeps the whole remote dataset in one in-memory snapshot.
// Reads render from the snapshot without touching the backend; mutations go
// through the backend and then pull fresh copies of whatever they touched.
// Snapshots are replaced wholesale, never edited in place, so a handler
// that grabbed one keeps a consistent view for the length of a render.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"borsa/internal/backend"
	"borsa/internal/core"
	"borsa/internal/log"
)

var (
	ErrUnknownWallet = errors.New("unknown wallet")
	ErrUnknownUser   = errors.New("unknown user")
)

// Snapshot is one immutable view of the dataset. The slices are shared
// with the store; treat them as read-only.
type Snapshot struct {
	Users        []core.User
	Wallets      []core.Wallet
	Categories   []core.Category
	Tree         []core.CategoryNode
	Transactions []core.Transaction
	Persons      []core.Person
	Groups       []core.WalletGroup

	InitDone bool
	IsNewDB  bool

	SelectedWalletID int64
	SelectedUserID   int64

	// Version increases on every applied change; rendered fragments are
	// memoized against it.
	Version     uint64
	RefreshedAt time.Time
}

// Change describes one applied snapshot update.
type Change struct {
	Version uint64
}

// Store owns the snapshot and coordinates refreshes against the backend.
type Store struct {
	backend backend.Backend
	logger  *log.Logger

	mu   sync.RWMutex
	snap Snapshot
	subs map[int]func(Change)
	next int

	// walletGen invalidates in-flight wallet loads: a load started under an
	// older generation is discarded instead of applied.
	walletGen atomic.Uint64

	loading atomic.Bool
	flight  singleflight.Group
}

func New(b backend.Backend, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentState)
	}
	return &Store{backend: b, logger: logger, subs: make(map[int]func(Change))}
}

// Subscribe registers a callback invoked after every applied change. The
// callback runs on the goroutine that made the change and must not block.
// The returned cancel function removes the subscription.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// bumpLocked advances the version and returns the notification call to run
// once the lock is released.
func (s *Store) bumpLocked() func() {
	s.snap.Version++
	if len(s.subs) == 0 {
		return func() {}
	}
	change := Change{Version: s.snap.Version}
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	return func() {
		for _, fn := range fns {
			fn(change)
		}
	}
}

// Snapshot returns the current view. Cheap; copies the struct head only.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Version reports the current snapshot version without copying it.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Version
}

// Loading reports whether a full refresh is in flight.
func (s *Store) Loading() bool {
	return s.loading.Load()
}

// Ready reports whether at least one refresh has brought data in.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.snap.RefreshedAt.IsZero()
}

// RefreshAll reloads every collection. Concurrent callers share a single
// underlying sweep. Each resource settles on its own: one failing endpoint
// keeps its previous data while the rest land, and the combined error
// reports everything that went wrong.
func (s *Store) RefreshAll(ctx context.Context) error {
	_, err, _ := s.flight.Do("refresh", func() (any, error) {
		return nil, s.refreshAll(ctx)
	})
	return err
}

func (s *Store) refreshAll(ctx context.Context) error {
	s.loading.Store(true)
	defer s.loading.Store(false)

	var (
		users   []core.User
		wallets []core.Wallet
		persons []core.Person
		groups  []core.WalletGroup
		status  core.InitStatus

		errUsers, errWallets, errPersons, errGroups, errStatus error
	)

	var wg sync.WaitGroup
	wg.Add(5)
	go func() { defer wg.Done(); users, errUsers = s.backend.ListUsers(ctx) }()
	go func() { defer wg.Done(); wallets, errWallets = s.backend.ListWallets(ctx) }()
	go func() { defer wg.Done(); persons, errPersons = s.backend.ListPersons(ctx) }()
	go func() { defer wg.Done(); groups, errGroups = s.backend.ListGroups(ctx) }()
	go func() { defer wg.Done(); status, errStatus = s.backend.InitStatus(ctx) }()
	wg.Wait()

	s.mu.Lock()
	if errUsers == nil {
		s.snap.Users = users
	}
	if errWallets == nil {
		s.snap.Wallets = wallets
	}
	if errPersons == nil {
		s.snap.Persons = persons
	}
	if errGroups == nil {
		s.snap.Groups = groups
	}
	if errStatus == nil {
		s.snap.InitDone = status.InitDone
		s.snap.IsNewDB = status.IsNewDB
	}
	gen := s.walletGen.Load()
	if s.fixSelectionLocked() {
		gen = s.walletGen.Add(1)
	}
	selected := s.snap.SelectedWalletID
	initDone := s.snap.InitDone
	anyOK := errUsers == nil || errWallets == nil || errPersons == nil || errGroups == nil || errStatus == nil
	if anyOK {
		s.snap.RefreshedAt = time.Now()
	}
	notify := s.bumpLocked()
	s.mu.Unlock()
	notify()

	errs := []error{errUsers, errWallets, errPersons, errGroups, errStatus}

	if initDone && selected > 0 {
		if err := s.loadWalletData(ctx, selected, gen); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.WarnContext(ctx, "refresh finished with failures", log.FieldError, err.Error())
		return err
	}
	return nil
}

// SelectWallet switches the active wallet and loads its categories, tree
// and transactions. If another switch lands while this one is loading, the
// slower response is thrown away so the snapshot always belongs to the
// wallet picked last.
func (s *Store) SelectWallet(ctx context.Context, id int64) error {
	s.mu.Lock()
	if !s.hasWalletLocked(id) {
		s.mu.Unlock()
		return fmt.Errorf("select wallet %d: %w", id, ErrUnknownWallet)
	}
	if s.snap.SelectedWalletID == id {
		s.mu.Unlock()
		return nil
	}
	s.snap.SelectedWalletID = id
	gen := s.walletGen.Add(1)
	notify := s.bumpLocked()
	s.mu.Unlock()
	notify()

	return s.loadWalletData(ctx, id, gen)
}

// SelectUser switches the acting user, the one stamped on transactions
// recorded through the forms. Pure client state, no backend round trip.
func (s *Store) SelectUser(id int64) error {
	s.mu.Lock()
	if !s.hasUserLocked(id) {
		s.mu.Unlock()
		return fmt.Errorf("select user %d: %w", id, ErrUnknownUser)
	}
	if s.snap.SelectedUserID == id {
		s.mu.Unlock()
		return nil
	}
	s.snap.SelectedUserID = id
	notify := s.bumpLocked()
	s.mu.Unlock()
	notify()
	return nil
}

// loadWalletData fetches the wallet-scoped collections together so the flat
// list, the tree and the transactions always describe the same wallet.
func (s *Store) loadWalletData(ctx context.Context, walletID int64, gen uint64) error {
	var (
		cats []core.Category
		tree []core.CategoryNode
		txs  []core.Transaction
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cats, err = s.backend.ListCategories(gctx, walletID)
		return err
	})
	g.Go(func() error {
		var err error
		tree, err = s.backend.CategoryTree(gctx, walletID)
		return err
	})
	g.Go(func() error {
		var err error
		txs, err = s.backend.WalletTransactions(gctx, walletID)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load wallet %d: %w", walletID, err)
	}

	s.mu.Lock()
	if gen != s.walletGen.Load() {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "discarding stale wallet load", log.FieldWalletID, walletID)
		return nil
	}
	s.snap.Categories = cats
	s.snap.Tree = tree
	s.snap.Transactions = txs
	notify := s.bumpLocked()
	s.mu.Unlock()
	notify()
	return nil
}

// fixSelectionLocked repairs dangling selections after collections change.
// Reports whether the wallet selection moved.
func (s *Store) fixSelectionLocked() bool {
	moved := false
	if len(s.snap.Wallets) == 0 {
		moved = s.snap.SelectedWalletID != 0
		s.snap.SelectedWalletID = 0
	} else if !s.hasWalletLocked(s.snap.SelectedWalletID) {
		s.snap.SelectedWalletID = s.defaultWalletLocked()
		moved = true
	}

	if len(s.snap.Users) == 0 {
		s.snap.SelectedUserID = 0
	} else if !s.hasUserLocked(s.snap.SelectedUserID) {
		s.snap.SelectedUserID = s.snap.Users[0].ID
	}
	return moved
}

// defaultWalletLocked picks the first user's default wallet when it still
// exists, otherwise the first enabled wallet, otherwise the first one.
func (s *Store) defaultWalletLocked() int64 {
	if len(s.snap.Users) > 0 {
		if def := s.snap.Users[0].DefaultWalletID; def != nil && s.hasWalletLocked(*def) {
			return *def
		}
	}
	for _, w := range s.snap.Wallets {
		if w.IsEnabled {
			return w.ID
		}
	}
	return s.snap.Wallets[0].ID
}

func (s *Store) hasWalletLocked(id int64) bool {
	for _, w := range s.snap.Wallets {
		if w.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) hasUserLocked(id int64) bool {
	for _, u := range s.snap.Users {
		if u.ID == id {
			return true
		}
	}
	return false
}

// SelectedWallet returns the wallet the snapshot is scoped to.
func (sn Snapshot) SelectedWallet() (core.Wallet, bool) {
	return sn.WalletByID(sn.SelectedWalletID)
}

func (sn Snapshot) WalletByID(id int64) (core.Wallet, bool) {
	for _, w := range sn.Wallets {
		if w.ID == id {
			return w, true
		}
	}
	return core.Wallet{}, false
}

func (sn Snapshot) UserByID(id int64) (core.User, bool) {
	for _, u := range sn.Users {
		if u.ID == id {
			return u, true
		}
	}
	return core.User{}, false
}

func (sn Snapshot) PersonByID(id int64) (core.Person, bool) {
	for _, p := range sn.Persons {
		if p.ID == id {
			return p, true
		}
	}
	return core.Person{}, false
}

func (sn Snapshot) GroupByID(id int64) (core.WalletGroup, bool) {
	for _, g := range sn.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return core.WalletGroup{}, false
}

func (sn Snapshot) CategoryByID(id int64) (core.Category, bool) {
	for _, c := range sn.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return core.Category{}, false
}

func (sn Snapshot) TransactionByID(id int64) (core.Transaction, bool) {
	for _, t := range sn.Transactions {
		if t.ID == id {
			return t, true
		}
	}
	return core.Transaction{}, false
}

// CategoryNames maps category id to name for view lookups.
func (sn Snapshot) CategoryNames() map[int64]string {
	out := make(map[int64]string, len(sn.Categories))
	for _, c := range sn.Categories {
		out[c.ID] = c.Name
	}
	return out
}

// PersonNames maps person id to name for view lookups.
func (sn Snapshot) PersonNames() map[int64]string {
	out := make(map[int64]string, len(sn.Persons))
	for _, p := range sn.Persons {
		out[p.ID] = p.Name
	}
	return out
}

// EnabledWallets lists the wallets shown in the switcher.
func (sn Snapshot) EnabledWallets() []core.Wallet {
	var out []core.Wallet
	for _, w := range sn.Wallets {
		if w.IsEnabled {
			out = append(out, w)
		}
	}
	return out
}
