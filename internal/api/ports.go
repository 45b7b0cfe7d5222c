// Package api declares the ports every backend implementation satisfies.
// The rest adapter speaks to the remote wallet service, the memory adapter
// seeds fixtures for demos and tests; callers only ever see these
// interfaces.
package api

import (
	"context"
	"time"

	"borsa/internal/core"
)

type (
	UserDirectory interface {
		ListUsers(ctx context.Context) ([]core.User, error)
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		UpdateUser(ctx context.Context, u core.User) (core.User, error)
	}

	WalletStore interface {
		ListWallets(ctx context.Context) ([]core.Wallet, error)
		CreateWallet(ctx context.Context, w core.Wallet) (core.Wallet, error)
		UpdateWallet(ctx context.Context, w core.Wallet) (core.Wallet, error)
		DeleteWallet(ctx context.Context, id int64) error
	}

	CategoryStore interface {
		// ListCategories returns the wallet's categories flat, global
		// ones included.
		ListCategories(ctx context.Context, walletID int64) ([]core.Category, error)
		// CategoryTree returns the same set already nested.
		CategoryTree(ctx context.Context, walletID int64) ([]core.CategoryNode, error)
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
		DeleteCategory(ctx context.Context, id int64) error
	}

	TransactionStore interface {
		ListTransactions(ctx context.Context, q TransactionQuery) ([]core.Transaction, error)
		WalletTransactions(ctx context.Context, walletID int64) ([]core.Transaction, error)
		CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, id int64) error
	}

	PersonDirectory interface {
		ListPersons(ctx context.Context) ([]core.Person, error)
		CreatePerson(ctx context.Context, p core.Person) (core.Person, error)
		UpdatePerson(ctx context.Context, p core.Person) (core.Person, error)
		DeletePerson(ctx context.Context, id int64) error
	}

	GroupStore interface {
		ListGroups(ctx context.Context) ([]core.WalletGroup, error)
		CreateGroup(ctx context.Context, g core.WalletGroup) (core.WalletGroup, error)
		UpdateGroup(ctx context.Context, g core.WalletGroup) (core.WalletGroup, error)
		DeleteGroup(ctx context.Context, id int64) error
	}

	// Initializer covers the first-run flow: probe whether the backend
	// has been set up and perform the bootstrap when it has not.
	Initializer interface {
		InitStatus(ctx context.Context) (core.InitStatus, error)
		Initialize(ctx context.Context, req core.InitRequest) error
	}
)

const (
	AmountEq AmountOp = "eq"
	AmountGt AmountOp = "gt"
	AmountLt AmountOp = "lt"
	AmountGe AmountOp = "ge"
	AmountLe AmountOp = "le"
)

type (
	AmountOp string

	// TransactionQuery carries the server-side list filters. Zero-valued
	// fields are left out of the request entirely.
	TransactionQuery struct {
		WalletID            int64
		UserID              int64
		CategoryIDs         []int64
		PersonID            int64
		TransactionTimeFrom time.Time
		TransactionTimeTo   time.Time
		EntryTimeFrom       time.Time
		EntryTimeTo         time.Time
		ModifiedTimeFrom    time.Time
		ModifiedTimeTo      time.Time
		AmountOp            AmountOp
		AmountValue         int64
		FuzzyNote           string
	}
)

func (op AmountOp) Valid() bool {
	switch op {
	case AmountEq, AmountGt, AmountLt, AmountGe, AmountLe:
		return true
	}
	return false
}
