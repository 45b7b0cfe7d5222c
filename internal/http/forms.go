package http

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// newFormValidator builds the validator shared by all form handlers. Error
// messages are keyed by the form tag so they map straight onto input names.
func newFormValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return strings.ToLower(fld.Name)
		}
		return name
	})
	return v
}

// fieldErrors flattens a validation failure into per-input messages. A nil
// error or a non-validator error yields an empty map.
func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return out
	}
	for _, fe := range verrs {
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Campo obbligatorio"
	case "max":
		return "Troppo lungo"
	case "oneof":
		return "Scelta non valida"
	case "email":
		return "Email non valida"
	default:
		return "Valore non valido"
	}
}

type transactionForm struct {
	Amount       string `form:"amount" validate:"required,max=20"`
	Direction    string `form:"direction" validate:"required,oneof=in out"`
	CategoryID   int64  `form:"category_id" validate:"required,gt=0"`
	When         string `form:"when" validate:"omitempty,max=20"`
	Note         string `form:"note" validate:"max=500"`
	Counterparty string `form:"counterparty" validate:"max=100"`
	PersonID     int64  `form:"person_id" validate:"omitempty,gte=0"`
}

func readTransactionForm(r *http.Request) transactionForm {
	return transactionForm{
		Amount:       strings.TrimSpace(r.Form.Get("amount")),
		Direction:    formValue(r, "direction"),
		CategoryID:   formInt64(r, "category_id"),
		When:         formValue(r, "when"),
		Note:         formValue(r, "note"),
		Counterparty: formValue(r, "counterparty"),
		PersonID:     formInt64(r, "person_id"),
	}
}

type categoryForm struct {
	Name     string `form:"name" validate:"required,max=100"`
	Icon     string `form:"icon" validate:"omitempty,max=4"`
	ParentID int64  `form:"parent_id" validate:"omitempty,gte=0"`
	IsGlobal bool   `form:"is_global"`
}

func readCategoryForm(r *http.Request) categoryForm {
	return categoryForm{
		Name:     formValue(r, "name"),
		Icon:     formValue(r, "icon"),
		ParentID: formInt64(r, "parent_id"),
		IsGlobal: formChecked(r, "is_global"),
	}
}

type walletForm struct {
	Name    string `form:"name" validate:"required,max=100"`
	Icon    string `form:"icon" validate:"omitempty,max=4"`
	Enabled bool   `form:"enabled"`
}

func readWalletForm(r *http.Request) walletForm {
	return walletForm{
		Name:    formValue(r, "name"),
		Icon:    formValue(r, "icon"),
		Enabled: formChecked(r, "enabled"),
	}
}

type personForm struct {
	Name  string `form:"name" validate:"required,max=100"`
	Alias string `form:"alias" validate:"max=100"`
}

func readPersonForm(r *http.Request) personForm {
	return personForm{
		Name:  formValue(r, "name"),
		Alias: formValue(r, "alias"),
	}
}

type groupForm struct {
	Name      string  `form:"name" validate:"required,max=100"`
	WalletIDs []int64 `form:"wallet_ids" validate:"dive,gt=0"`
}

func readGroupForm(r *http.Request) groupForm {
	f := groupForm{Name: formValue(r, "name")}
	for _, raw := range r.Form["wallet_ids"] {
		if id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil && id > 0 {
			f.WalletIDs = append(f.WalletIDs, id)
		}
	}
	return f
}

type setupForm struct {
	Username    string `form:"username" validate:"required,max=60"`
	DisplayName string `form:"display_name" validate:"max=100"`
	Email       string `form:"email" validate:"omitempty,email,max=100"`
	WalletName  string `form:"wallet_name" validate:"required,max=100"`
	WalletIcon  string `form:"wallet_icon" validate:"omitempty,max=4"`
}

func readSetupForm(r *http.Request) setupForm {
	return setupForm{
		Username:    formValue(r, "username"),
		DisplayName: formValue(r, "display_name"),
		Email:       formValue(r, "email"),
		WalletName:  formValue(r, "wallet_name"),
		WalletIcon:  formValue(r, "wallet_icon"),
	}
}
