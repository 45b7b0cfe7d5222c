package core

import (
	"errors"
	"strings"
	"time"
)

const (
	RoleAdmin   Role = "admin"
	RoleRegular Role = "regular"
)

// IncomeRootID is the category root that holds income categories by
// convention. It only drives badges and labels; the transaction amount
// sign is authoritative for income/expense classification.
const IncomeRootID int64 = 1

type (
	Role string

	User struct {
		ID              int64     `json:"id"`
		Username        string    `json:"username"`
		DisplayName     string    `json:"display_name"`
		Email           string    `json:"email"`
		Role            Role      `json:"role"`
		DefaultWalletID *int64    `json:"default_wallet_id,omitempty"`
		CreatedAt       time.Time `json:"created_at"`
	}

	Wallet struct {
		ID           int64     `json:"id"`
		Name         string    `json:"name"`
		Icon         string    `json:"icon"`
		IsEnabled    bool      `json:"is_enabled"`
		Balance      Money     `json:"balance"`
		ModifiedTime time.Time `json:"modified_time"`
	}

	Category struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		Icon     string `json:"icon"`
		ParentID *int64 `json:"parent_id,omitempty"` // nil = root category
		WalletID int64  `json:"wallet_id"`
		IsGlobal bool   `json:"is_global"`
		RootID   int64  `json:"root_id"`
	}

	Transaction struct {
		ID              int64     `json:"id"`
		WalletID        int64     `json:"wallet_id"`
		CategoryID      int64     `json:"category_id"`
		Amount          Money     `json:"amount"`
		Note            string    `json:"note"`
		PersonID        *int64    `json:"person_id,omitempty"`
		Counterparty    string    `json:"counterparty"`
		UserID          int64     `json:"user_id"`
		TransactionTime time.Time `json:"transaction_time"`
		EntryTime       time.Time `json:"entry_time"`
		ModifiedTime    time.Time `json:"modified_time"`
	}

	Person struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Alias string `json:"alias"`
	}

	WalletGroup struct {
		ID        int64   `json:"id"`
		Name      string  `json:"name"`
		WalletIDs []int64 `json:"wallet_ids"`
	}

	InitStatus struct {
		InitDone bool `json:"init_done"`
		IsNewDB  bool `json:"is_new_db"`
	}

	InitRequest struct {
		AdminUser   User   `json:"admin_user"`
		FirstWallet Wallet `json:"first_wallet"`
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyName     = errors.New("empty name")
	ErrEmptyUsername = errors.New("empty username")
	ErrInvalidRole   = errors.New("invalid role")
	ErrUnknownIcon   = errors.New("unknown icon")
	ErrNoWallet      = errors.New("missing wallet")
	ErrNoCategory    = errors.New("missing category")
)

func (u User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return ErrEmptyUsername
	}
	if len(u.Username) > 60 {
		return errors.New("username too long (max 60 characters)")
	}
	if len(u.DisplayName) > 100 {
		return errors.New("display name too long (max 100 characters)")
	}
	if u.Email != "" && !strings.Contains(u.Email, "@") {
		return errors.New("invalid email")
	}
	switch u.Role {
	case RoleAdmin, RoleRegular:
	default:
		return ErrInvalidRole
	}
	return nil
}

func (w Wallet) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return ErrEmptyName
	}
	if len(w.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if w.Icon != "" && !ValidIcon(w.Icon) {
		return ErrUnknownIcon
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if c.Icon != "" && !ValidIcon(c.Icon) {
		return ErrUnknownIcon
	}
	if c.WalletID <= 0 && !c.IsGlobal {
		return ErrNoWallet
	}
	return nil
}

// IsRoot reports whether the category sits at the top of its tree.
func (c Category) IsRoot() bool {
	return c.ParentID == nil
}

// IsIncome reports whether the category belongs to the income subtree.
func (c Category) IsIncome() bool {
	return c.RootID == IncomeRootID
}

func (t Transaction) Validate() error {
	if t.WalletID <= 0 {
		return ErrNoWallet
	}
	if t.CategoryID <= 0 {
		return ErrNoCategory
	}
	if t.Amount.Cents == 0 {
		return ErrInvalidAmount
	}
	if len(t.Note) > 500 {
		return errors.New("note too long (max 500 characters)")
	}
	if len(t.Counterparty) > 100 {
		return errors.New("counterparty too long (max 100 characters)")
	}
	return nil
}

// IsExpense reports whether the transaction moves money out. The signed
// amount decides, never the category.
func (t Transaction) IsExpense() bool {
	return t.Amount.Cents < 0
}

func (t Transaction) IsIncome() bool {
	return t.Amount.Cents >= 0
}

// EffectiveTime is the instant used for filtering, sorting and grouping.
// TransactionTime wins, EntryTime covers rows recorded without one, and
// rows carrying neither sort together at the zero time rather than being
// dropped from views.
func (t Transaction) EffectiveTime() time.Time {
	if !t.TransactionTime.IsZero() {
		return t.TransactionTime
	}
	if !t.EntryTime.IsZero() {
		return t.EntryTime
	}
	return time.Time{}
}

func (p Person) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if len(p.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if len(p.Alias) > 100 {
		return errors.New("alias too long (max 100 characters)")
	}
	return nil
}

func (g WalletGroup) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if len(g.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	return nil
}

func (r InitRequest) Validate() error {
	if err := r.AdminUser.Validate(); err != nil {
		return errors.New("admin user: " + err.Error())
	}
	if r.AdminUser.Role != RoleAdmin {
		return errors.New("first user must be an admin")
	}
	if err := r.FirstWallet.Validate(); err != nil {
		return errors.New("first wallet: " + err.Error())
	}
	return nil
}
