package state

import (
	"context"

	"borsa/internal/core"
	"borsa/internal/log"
)

// Mutations call the backend first and refresh the snapshot on success.
// A refresh failure after a successful write is logged, not returned: the
// write happened, the snapshot just stays one beat behind until the next
// sweep picks it up.

func (s *Store) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	created, err := s.backend.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, err
	}
	s.afterTransactionChange(ctx)
	return created, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	updated, err := s.backend.UpdateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, err
	}
	s.afterTransactionChange(ctx)
	return updated, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id int64) error {
	if err := s.backend.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.afterTransactionChange(ctx)
	return nil
}

func (s *Store) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	created, err := s.backend.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, err
	}
	s.reloadSelected(ctx)
	return created, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	updated, err := s.backend.UpdateCategory(ctx, c)
	if err != nil {
		return core.Category{}, err
	}
	s.reloadSelected(ctx)
	return updated, nil
}

// DeleteCategory removes a category with its whole subtree; the reload also
// drops the cascaded transactions from the snapshot.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.backend.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.afterTransactionChange(ctx)
	return nil
}

func (s *Store) CreateWallet(ctx context.Context, w core.Wallet) (core.Wallet, error) {
	created, err := s.backend.CreateWallet(ctx, w)
	if err != nil {
		return core.Wallet{}, err
	}
	s.refreshAfterWalletChange(ctx)
	return created, nil
}

func (s *Store) UpdateWallet(ctx context.Context, w core.Wallet) (core.Wallet, error) {
	updated, err := s.backend.UpdateWallet(ctx, w)
	if err != nil {
		return core.Wallet{}, err
	}
	s.refreshAfterWalletChange(ctx)
	return updated, nil
}

func (s *Store) DeleteWallet(ctx context.Context, id int64) error {
	if err := s.backend.DeleteWallet(ctx, id); err != nil {
		return err
	}
	s.refreshAfterWalletChange(ctx)
	return nil
}

func (s *Store) CreatePerson(ctx context.Context, p core.Person) (core.Person, error) {
	created, err := s.backend.CreatePerson(ctx, p)
	if err != nil {
		return core.Person{}, err
	}
	s.refreshPersons(ctx)
	return created, nil
}

func (s *Store) UpdatePerson(ctx context.Context, p core.Person) (core.Person, error) {
	updated, err := s.backend.UpdatePerson(ctx, p)
	if err != nil {
		return core.Person{}, err
	}
	s.refreshPersons(ctx)
	return updated, nil
}

// DeletePerson detaches the person from their transactions, so the wallet
// data reloads along with the person list.
func (s *Store) DeletePerson(ctx context.Context, id int64) error {
	if err := s.backend.DeletePerson(ctx, id); err != nil {
		return err
	}
	s.refreshPersons(ctx)
	s.reloadSelected(ctx)
	return nil
}

func (s *Store) CreateGroup(ctx context.Context, g core.WalletGroup) (core.WalletGroup, error) {
	created, err := s.backend.CreateGroup(ctx, g)
	if err != nil {
		return core.WalletGroup{}, err
	}
	s.refreshGroups(ctx)
	return created, nil
}

func (s *Store) UpdateGroup(ctx context.Context, g core.WalletGroup) (core.WalletGroup, error) {
	updated, err := s.backend.UpdateGroup(ctx, g)
	if err != nil {
		return core.WalletGroup{}, err
	}
	s.refreshGroups(ctx)
	return updated, nil
}

func (s *Store) DeleteGroup(ctx context.Context, id int64) error {
	if err := s.backend.DeleteGroup(ctx, id); err != nil {
		return err
	}
	s.refreshGroups(ctx)
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	created, err := s.backend.CreateUser(ctx, u)
	if err != nil {
		return core.User{}, err
	}
	s.refreshUsers(ctx)
	return created, nil
}

func (s *Store) UpdateUser(ctx context.Context, u core.User) (core.User, error) {
	updated, err := s.backend.UpdateUser(ctx, u)
	if err != nil {
		return core.User{}, err
	}
	s.refreshUsers(ctx)
	return updated, nil
}

// Initialize runs first-time setup and then loads everything, so the caller
// can render the dashboard straight from the snapshot.
func (s *Store) Initialize(ctx context.Context, req core.InitRequest) error {
	if err := s.backend.Initialize(ctx, req); err != nil {
		return err
	}
	if err := s.RefreshAll(ctx); err != nil {
		s.logger.WarnContext(ctx, "refresh after setup failed", log.FieldError, err.Error())
	}
	return nil
}

// afterTransactionChange refreshes balances and the selected wallet's data.
func (s *Store) afterTransactionChange(ctx context.Context) {
	wallets, err := s.backend.ListWallets(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "wallet refresh after write failed", log.FieldError, err.Error())
	} else {
		s.mu.Lock()
		s.snap.Wallets = wallets
		notify := s.bumpLocked()
		s.mu.Unlock()
		notify()
	}
	s.reloadSelected(ctx)
}

// refreshAfterWalletChange runs a full sweep because the selection may have
// to move off a deleted or disabled wallet.
func (s *Store) refreshAfterWalletChange(ctx context.Context) {
	if err := s.RefreshAll(ctx); err != nil {
		s.logger.WarnContext(ctx, "refresh after wallet change failed", log.FieldError, err.Error())
	}
}

// reloadSelected pulls the selected wallet's collections again.
func (s *Store) reloadSelected(ctx context.Context) {
	s.mu.RLock()
	selected := s.snap.SelectedWalletID
	s.mu.RUnlock()
	if selected == 0 {
		return
	}
	gen := s.walletGen.Load()
	if err := s.loadWalletData(ctx, selected, gen); err != nil {
		s.logger.WarnContext(ctx, "wallet reload after write failed", log.FieldError, err.Error())
	}
}

func (s *Store) refreshPersons(ctx context.Context) {
	persons, err := s.backend.ListPersons(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "person refresh failed", log.FieldError, err.Error())
		return
	}
	s.mu.Lock()
	s.snap.Persons = persons
	notify := s.bumpLocked()
	s.mu.Unlock()
	notify()
}

func (s *Store) refreshGroups(ctx context.Context) {
	groups, err := s.backend.ListGroups(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "group refresh failed", log.FieldError, err.Error())
		return
	}
	s.mu.Lock()
	s.snap.Groups = groups
	notify := s.bumpLocked()
	s.mu.Unlock()
	notify()
}

func (s *Store) refreshUsers(ctx context.Context) {
	users, err := s.backend.ListUsers(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "user refresh failed", log.FieldError, err.Error())
		return
	}
	s.mu.Lock()
	s.snap.Users = users
	notify := s.bumpLocked()
	s.mu.Unlock()
	notify()
}
