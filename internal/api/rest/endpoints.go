package rest

import (
	"context"
	"fmt"
	"net/http"

	"borsa/internal/api"
	"borsa/internal/core"
)

func (c *Client) ListUsers(ctx context.Context) ([]core.User, error) {
	var out []core.User
	if err := c.call(ctx, http.MethodGet, "users", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	var out core.User
	if err := c.call(ctx, http.MethodPost, "users", nil, u, &out); err != nil {
		return core.User{}, err
	}
	return out, nil
}

func (c *Client) UpdateUser(ctx context.Context, u core.User) (core.User, error) {
	var out core.User
	if err := c.call(ctx, http.MethodPut, fmt.Sprintf("users/%d", u.ID), nil, u, &out); err != nil {
		return core.User{}, err
	}
	return out, nil
}

func (c *Client) ListWallets(ctx context.Context) ([]core.Wallet, error) {
	var out []core.Wallet
	if err := c.call(ctx, http.MethodGet, "wallets", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateWallet(ctx context.Context, w core.Wallet) (core.Wallet, error) {
	var out core.Wallet
	if err := c.call(ctx, http.MethodPost, "wallets", nil, w, &out); err != nil {
		return core.Wallet{}, err
	}
	return out, nil
}

func (c *Client) UpdateWallet(ctx context.Context, w core.Wallet) (core.Wallet, error) {
	var out core.Wallet
	if err := c.call(ctx, http.MethodPut, fmt.Sprintf("wallets/%d", w.ID), nil, w, &out); err != nil {
		return core.Wallet{}, err
	}
	return out, nil
}

// DeleteWallet removes the wallet; the backend cascades to its
// transactions.
func (c *Client) DeleteWallet(ctx context.Context, id int64) error {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("wallets/%d", id), nil, nil, nil)
}

func (c *Client) ListCategories(ctx context.Context, walletID int64) ([]core.Category, error) {
	var out []core.Category
	path := fmt.Sprintf("wallets/%d/categories", walletID)
	if err := c.call(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CategoryTree(ctx context.Context, walletID int64) ([]core.CategoryNode, error) {
	var out []core.CategoryNode
	path := fmt.Sprintf("wallets/%d/categories/tree", walletID)
	if err := c.call(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateCategory(ctx context.Context, cat core.Category) (core.Category, error) {
	var out core.Category
	if err := c.call(ctx, http.MethodPost, "categories", nil, cat, &out); err != nil {
		return core.Category{}, err
	}
	return out, nil
}

func (c *Client) UpdateCategory(ctx context.Context, cat core.Category) (core.Category, error) {
	var out core.Category
	if err := c.call(ctx, http.MethodPut, fmt.Sprintf("categories/%d", cat.ID), nil, cat, &out); err != nil {
		return core.Category{}, err
	}
	return out, nil
}

// DeleteCategory removes the category; the backend decides what happens
// to children and referencing transactions.
func (c *Client) DeleteCategory(ctx context.Context, id int64) error {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("categories/%d", id), nil, nil, nil)
}

func (c *Client) ListTransactions(ctx context.Context, q api.TransactionQuery) ([]core.Transaction, error) {
	var out []core.Transaction
	if err := c.call(ctx, http.MethodGet, "transactions", encodeQuery(q), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) WalletTransactions(ctx context.Context, walletID int64) ([]core.Transaction, error) {
	var out []core.Transaction
	path := fmt.Sprintf("wallets/%d/transactions", walletID)
	if err := c.call(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	var out core.Transaction
	if err := c.call(ctx, http.MethodPost, "transactions", nil, t, &out); err != nil {
		return core.Transaction{}, err
	}
	return out, nil
}

func (c *Client) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	var out core.Transaction
	if err := c.call(ctx, http.MethodPut, fmt.Sprintf("transactions/%d", t.ID), nil, t, &out); err != nil {
		return core.Transaction{}, err
	}
	return out, nil
}

func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("transactions/%d", id), nil, nil, nil)
}

func (c *Client) ListPersons(ctx context.Context) ([]core.Person, error) {
	var out []core.Person
	if err := c.call(ctx, http.MethodGet, "persons", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreatePerson(ctx context.Context, p core.Person) (core.Person, error) {
	var out core.Person
	if err := c.call(ctx, http.MethodPost, "persons", nil, p, &out); err != nil {
		return core.Person{}, err
	}
	return out, nil
}

func (c *Client) UpdatePerson(ctx context.Context, p core.Person) (core.Person, error) {
	var out core.Person
	if err := c.call(ctx, http.MethodPut, fmt.Sprintf("persons/%d", p.ID), nil, p, &out); err != nil {
		return core.Person{}, err
	}
	return out, nil
}

func (c *Client) DeletePerson(ctx context.Context, id int64) error {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("persons/%d", id), nil, nil, nil)
}

func (c *Client) ListGroups(ctx context.Context) ([]core.WalletGroup, error) {
	var out []core.WalletGroup
	if err := c.call(ctx, http.MethodGet, "walletgroups", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateGroup(ctx context.Context, g core.WalletGroup) (core.WalletGroup, error) {
	var out core.WalletGroup
	if err := c.call(ctx, http.MethodPost, "walletgroups", nil, g, &out); err != nil {
		return core.WalletGroup{}, err
	}
	return out, nil
}

func (c *Client) UpdateGroup(ctx context.Context, g core.WalletGroup) (core.WalletGroup, error) {
	var out core.WalletGroup
	if err := c.call(ctx, http.MethodPut, fmt.Sprintf("walletgroups/%d", g.ID), nil, g, &out); err != nil {
		return core.WalletGroup{}, err
	}
	return out, nil
}

func (c *Client) DeleteGroup(ctx context.Context, id int64) error {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("walletgroups/%d", id), nil, nil, nil)
}

func (c *Client) InitStatus(ctx context.Context) (core.InitStatus, error) {
	var out core.InitStatus
	if err := c.call(ctx, http.MethodGet, "initdone", nil, nil, &out); err != nil {
		return core.InitStatus{}, err
	}
	return out, nil
}

func (c *Client) Initialize(ctx context.Context, req core.InitRequest) error {
	return c.call(ctx, http.MethodPost, "init", nil, req, nil)
}
