package memory

import (
	"context"
	"net/http"
	"strings"
	"time"

	"borsa/internal/api"
	"borsa/internal/core"
)

func (s *Store) ListUsers(ctx context.Context) ([]core.User, error) {
	if err := s.enter(ctx, "ListUsers"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.User(nil), s.users...), nil
}

func (s *Store) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	if err := s.enter(ctx, "CreateUser"); err != nil {
		return core.User{}, err
	}
	if err := u.Validate(); err != nil {
		return core.User{}, api.Remote(http.StatusUnprocessableEntity, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.assign()
	u.CreatedAt = time.Now()
	s.users = append(s.users, u)
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u core.User) (core.User, error) {
	if err := s.enter(ctx, "UpdateUser"); err != nil {
		return core.User{}, err
	}
	if err := u.Validate(); err != nil {
		return core.User{}, api.Remote(http.StatusUnprocessableEntity, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.users {
		if existing.ID == u.ID {
			u.CreatedAt = existing.CreatedAt
			s.users[i] = u
			return u, nil
		}
	}
	return core.User{}, api.Remote(http.StatusNotFound, "user not found")
}

func (s *Store) ListWallets(ctx context.Context) ([]core.Wallet, error) {
	if err := s.enter(ctx, "ListWallets"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Wallet(nil), s.wallets...), nil
}

func (s *Store) CreateWallet(ctx context.Context, w core.Wallet) (core.Wallet, error) {
	if err := s.enter(ctx, "CreateWallet"); err != nil {
		return core.Wallet{}, err
	}
	if err := w.Validate(); err != nil {
		return core.Wallet{}, api.Remote(http.StatusUnprocessableEntity, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	w.ID = s.assign()
	w.ModifiedTime = time.Now()
	s.wallets = append(s.wallets, w)
	return w, nil
}

func (s *Store) UpdateWallet(ctx context.Context, w core.Wallet) (core.Wallet, error) {
	if err := s.enter(ctx, "UpdateWallet"); err != nil {
		return core.Wallet{}, err
	}
	if err := w.Validate(); err != nil {
		return core.Wallet{}, api.Remote(http.StatusUnprocessableEntity, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.wallets {
		if existing.ID == w.ID {
			w.ModifiedTime = time.Now()
			s.wallets[i] = w
			return w, nil
		}
	}
	return core.Wallet{}, api.Remote(http.StatusNotFound, "wallet not found")
}

// DeleteWallet cascades to the wallet's categories and transactions, the
// way the real backend does.
func (s *Store) DeleteWallet(ctx context.Context, id int64) error {
	if err := s.enter(ctx, "DeleteWallet"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, w := range s.wallets {
		if w.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return api.Remote(http.StatusNotFound, "wallet not found")
	}
	s.wallets = append(s.wallets[:idx], s.wallets[idx+1:]...)

	kept := s.categories[:0]
	for _, c := range s.categories {
		if c.WalletID != id || c.IsGlobal {
			kept = append(kept, c)
		}
	}
	s.categories = kept

	keptTx := s.transactions[:0]
	for _, t := range s.transactions {
		if t.WalletID != id {
			keptTx = append(keptTx, t)
		}
	}
	s.transactions = keptTx

	for i := range s.groups {
		ids := s.groups[i].WalletIDs[:0]
		for _, wid := range s.groups[i].WalletIDs {
			if wid != id {
				ids = append(ids, wid)
			}
		}
		s.groups[i].WalletIDs = ids
	}
	return nil
}

// ListCategories returns the wallet's own categories plus the global
// ones, in stored order.
func (s *Store) ListCategories(ctx context.Context, walletID int64) ([]core.Category, error) {
	if err := s.enter(ctx, "ListCategories"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categoriesOf(walletID), nil
}

func (s *Store) categoriesOf(walletID int64) []core.Category {
	var out []core.Category
	for _, c := range s.categories {
		if c.IsGlobal || c.WalletID == walletID {
			out = append(out, c)
		}
	}
	return out
}

func (s *Store) CategoryTree(ctx context.Context, walletID int64) ([]core.CategoryNode, error) {
	if err := s.enter(ctx, "CategoryTree"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.BuildTree(s.categoriesOf(walletID)), nil
}

func (s *Store) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := s.enter(ctx, "CreateCategory"); err != nil {
		return core.Category{}, err
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, api.Remote(http.StatusUnprocessableEntity, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ParentID != nil {
		parent, ok := s.findCategory(*c.ParentID)
		if !ok {
			return core.Category{}, api.Remote(http.StatusUnprocessableEntity, "parent category not found")
		}
		if !parent.IsGlobal && parent.WalletID != c.WalletID {
			return core.Category{}, api.Remote(http.StatusUnprocessableEntity, "parent belongs to another wallet")
		}
		c.ID = s.assign()
		c.RootID = parent.RootID
	} else {
		c.ID = s.assign()
		c.RootID = c.ID
	}
	s.categories = append(s.categories, c)
	return c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := s.enter(ctx, "UpdateCategory"); err != nil {
		return core.Category{}, err
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, api.Remote(http.StatusUnprocessableEntity, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, existing := range s.categories {
		if existing.ID == c.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return core.Category{}, api.Remote(http.StatusNotFound, "category not found")
	}
	if c.ParentID != nil {
		parent, ok := s.findCategory(*c.ParentID)
		if !ok {
			return core.Category{}, api.Remote(http.StatusUnprocessableEntity, "parent category not found")
		}
		if !parent.IsGlobal && parent.WalletID != c.WalletID {
			return core.Category{}, api.Remote(http.StatusUnprocessableEntity, "parent belongs to another wallet")
		}
		if core.WouldCreateCycle(s.categories, c.ID, *c.ParentID) {
			return core.Category{}, api.Remote(http.StatusUnprocessableEntity, "parent would create a cycle")
		}
		c.RootID = parent.RootID
	} else {
		c.RootID = c.ID
	}
	s.categories[idx] = c
	s.reRoot(c.ID, c.RootID)
	return c, nil
}

// reRoot pushes a recomputed root id down a reparented subtree.
func (s *Store) reRoot(id, rootID int64) {
	for i := range s.categories {
		p := s.categories[i].ParentID
		if p != nil && *p == id {
			s.categories[i].RootID = rootID
			s.reRoot(s.categories[i].ID, rootID)
		}
	}
}

// DeleteCategory cascades to the whole subtree and to transactions that
// reference any node of it.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.enter(ctx, "DeleteCategory"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.findCategory(id); !ok {
		return api.Remote(http.StatusNotFound, "category not found")
	}
	gone := core.Descendants(s.categories, id)
	gone[id] = struct{}{}

	kept := s.categories[:0]
	for _, c := range s.categories {
		if !gone.Has(c.ID) {
			kept = append(kept, c)
		}
	}
	s.categories = kept

	keptTx := s.transactions[:0]
	for _, t := range s.transactions {
		if !gone.Has(t.CategoryID) {
			keptTx = append(keptTx, t)
		}
	}
	s.transactions = keptTx
	return nil
}

func (s *Store) findCategory(id int64) (core.Category, bool) {
	for _, c := range s.categories {
		if c.ID == id {
			return c, true
		}
	}
	return core.Category{}, false
}

func (s *Store) ListTransactions(ctx context.Context, q api.TransactionQuery) ([]core.Transaction, error) {
	if err := s.enter(ctx, "ListTransactions"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.transactions {
		if matchQuery(t, q) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) WalletTransactions(ctx context.Context, walletID int64) ([]core.Transaction, error) {
	return s.ListTransactions(ctx, api.TransactionQuery{WalletID: walletID})
}

func (s *Store) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := s.enter(ctx, "CreateTransaction"); err != nil {
		return core.Transaction{}, err
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, api.Remote(http.StatusUnprocessableEntity, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.assign()
	now := time.Now()
	if t.EntryTime.IsZero() {
		t.EntryTime = now
	}
	t.ModifiedTime = now
	s.transactions = append(s.transactions, t)
	return t, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := s.enter(ctx, "UpdateTransaction"); err != nil {
		return core.Transaction{}, err
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, api.Remote(http.StatusUnprocessableEntity, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.transactions {
		if existing.ID == t.ID {
			t.EntryTime = existing.EntryTime
			t.ModifiedTime = time.Now()
			s.transactions[i] = t
			return t, nil
		}
	}
	return core.Transaction{}, api.Remote(http.StatusNotFound, "transaction not found")
}

func (s *Store) DeleteTransaction(ctx context.Context, id int64) error {
	if err := s.enter(ctx, "DeleteTransaction"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.transactions {
		if t.ID == id {
			s.transactions = append(s.transactions[:i], s.transactions[i+1:]...)
			return nil
		}
	}
	return api.Remote(http.StatusNotFound, "transaction not found")
}

func (s *Store) ListPersons(ctx context.Context) ([]core.Person, error) {
	if err := s.enter(ctx, "ListPersons"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Person(nil), s.persons...), nil
}

func (s *Store) CreatePerson(ctx context.Context, p core.Person) (core.Person, error) {
	if err := s.enter(ctx, "CreatePerson"); err != nil {
		return core.Person{}, err
	}
	if err := p.Validate(); err != nil {
		return core.Person{}, api.Remote(http.StatusUnprocessableEntity, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.assign()
	s.persons = append(s.persons, p)
	return p, nil
}

func (s *Store) UpdatePerson(ctx context.Context, p core.Person) (core.Person, error) {
	if err := s.enter(ctx, "UpdatePerson"); err != nil {
		return core.Person{}, err
	}
	if err := p.Validate(); err != nil {
		return core.Person{}, api.Remote(http.StatusUnprocessableEntity, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.persons {
		if existing.ID == p.ID {
			s.persons[i] = p
			return p, nil
		}
	}
	return core.Person{}, api.Remote(http.StatusNotFound, "person not found")
}

func (s *Store) DeletePerson(ctx context.Context, id int64) error {
	if err := s.enter(ctx, "DeletePerson"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.persons {
		if p.ID == id {
			s.persons = append(s.persons[:i], s.persons[i+1:]...)
			for j := range s.transactions {
				if s.transactions[j].PersonID != nil && *s.transactions[j].PersonID == id {
					s.transactions[j].PersonID = nil
				}
			}
			return nil
		}
	}
	return api.Remote(http.StatusNotFound, "person not found")
}

func (s *Store) ListGroups(ctx context.Context) ([]core.WalletGroup, error) {
	if err := s.enter(ctx, "ListGroups"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.WalletGroup(nil), s.groups...), nil
}

func (s *Store) CreateGroup(ctx context.Context, g core.WalletGroup) (core.WalletGroup, error) {
	if err := s.enter(ctx, "CreateGroup"); err != nil {
		return core.WalletGroup{}, err
	}
	if err := g.Validate(); err != nil {
		return core.WalletGroup{}, api.Remote(http.StatusUnprocessableEntity, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = s.assign()
	g.WalletIDs = dedupeIDs(g.WalletIDs)
	s.groups = append(s.groups, g)
	return g, nil
}

func (s *Store) UpdateGroup(ctx context.Context, g core.WalletGroup) (core.WalletGroup, error) {
	if err := s.enter(ctx, "UpdateGroup"); err != nil {
		return core.WalletGroup{}, err
	}
	if err := g.Validate(); err != nil {
		return core.WalletGroup{}, api.Remote(http.StatusUnprocessableEntity, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.groups {
		if existing.ID == g.ID {
			g.WalletIDs = dedupeIDs(g.WalletIDs)
			s.groups[i] = g
			return g, nil
		}
	}
	return core.WalletGroup{}, api.Remote(http.StatusNotFound, "wallet group not found")
}

func (s *Store) DeleteGroup(ctx context.Context, id int64) error {
	if err := s.enter(ctx, "DeleteGroup"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, g := range s.groups {
		if g.ID == id {
			s.groups = append(s.groups[:i], s.groups[i+1:]...)
			return nil
		}
	}
	return api.Remote(http.StatusNotFound, "wallet group not found")
}

func (s *Store) InitStatus(ctx context.Context) (core.InitStatus, error) {
	if err := s.enter(ctx, "InitStatus"); err != nil {
		return core.InitStatus{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.InitStatus{InitDone: s.initDone, IsNewDB: s.isNewDB}, nil
}

// Initialize performs the first-run bootstrap exactly once: the admin
// user and the first wallet come to exist together.
func (s *Store) Initialize(ctx context.Context, req core.InitRequest) error {
	if err := s.enter(ctx, "Initialize"); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return api.Remote(http.StatusUnprocessableEntity, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initDone {
		return api.Remote(http.StatusConflict, "already initialized")
	}
	now := time.Now()

	w := req.FirstWallet
	w.ID = s.assign()
	w.IsEnabled = true
	w.ModifiedTime = now
	s.wallets = append(s.wallets, w)

	u := req.AdminUser
	u.ID = s.assign()
	u.Role = core.RoleAdmin
	u.CreatedAt = now
	u.DefaultWalletID = &w.ID
	s.users = append(s.users, u)

	s.initDone = true
	s.isNewDB = false
	return nil
}

func matchQuery(t core.Transaction, q api.TransactionQuery) bool {
	if q.WalletID > 0 && t.WalletID != q.WalletID {
		return false
	}
	if q.UserID > 0 && t.UserID != q.UserID {
		return false
	}
	if q.PersonID > 0 && (t.PersonID == nil || *t.PersonID != q.PersonID) {
		return false
	}
	if len(q.CategoryIDs) > 0 {
		found := false
		for _, id := range q.CategoryIDs {
			if t.CategoryID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !inWindow(t.TransactionTime, q.TransactionTimeFrom, q.TransactionTimeTo) {
		return false
	}
	if !inWindow(t.EntryTime, q.EntryTimeFrom, q.EntryTimeTo) {
		return false
	}
	if !inWindow(t.ModifiedTime, q.ModifiedTimeFrom, q.ModifiedTimeTo) {
		return false
	}
	if q.AmountOp.Valid() && !amountMatches(t.Amount.Cents, q.AmountOp, q.AmountValue) {
		return false
	}
	if q.FuzzyNote != "" && !strings.Contains(strings.ToLower(t.Note), strings.ToLower(q.FuzzyNote)) {
		return false
	}
	return true
}

func inWindow(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

func amountMatches(cents int64, op api.AmountOp, value int64) bool {
	switch op {
	case api.AmountEq:
		return cents == value
	case api.AmountGt:
		return cents > value
	case api.AmountLt:
		return cents < value
	case api.AmountGe:
		return cents >= value
	case api.AmountLe:
		return cents <= value
	}
	return false
}
