package http

import (
	"errors"
	"fmt"
	"net/http"

	"borsa/internal/core"
	"borsa/internal/log"
	"borsa/internal/state"
)

type walletFormData struct {
	Action string
	IsEdit bool
	Form   walletForm
	Errors map[string]string
	Icons  []string
}

type walletRow struct {
	ID       int64
	Name     string
	Icon     string
	Balance  string
	Enabled  bool
	Selected bool
	Form     walletFormData
}

type walletListData struct {
	Rows []walletRow
	Form walletFormData
}

// handleWalletList renders the management panel: every wallet, disabled
// ones included, each with its inline edit form.
func (s *Server) handleWalletList(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	snap := s.store.Snapshot()
	key := fragmentKey("wallets", snap.Version)
	s.renderCached(w, r, key, "wallets.html", func() any { return s.walletListView(snap) })
}

func (s *Server) walletListView(snap state.Snapshot) walletListData {
	data := walletListData{
		Form: walletFormView(walletForm{Enabled: true}, nil, 0),
	}
	for _, wlt := range snap.Wallets {
		form := walletForm{Name: wlt.Name, Icon: wlt.Icon, Enabled: wlt.IsEnabled}
		data.Rows = append(data.Rows, walletRow{
			ID:       wlt.ID,
			Name:     wlt.Name,
			Icon:     wlt.Icon,
			Balance:  s.fmtMoney(wlt.Balance),
			Enabled:  wlt.IsEnabled,
			Selected: wlt.ID == snap.SelectedWalletID,
			Form:     walletFormView(form, nil, wlt.ID),
		})
	}
	return data
}

func walletFormView(form walletForm, errs map[string]string, id int64) walletFormData {
	data := walletFormData{
		Action: "/wallets",
		Form:   form,
		Errors: errs,
		Icons:  core.IconPalette,
	}
	if id > 0 {
		data.Action = fmt.Sprintf("/wallets/%d", id)
		data.IsEdit = true
	}
	return data
}

func (s *Server) checkWalletForm(form walletForm) map[string]string {
	errs := fieldErrors(s.validate.Struct(form))
	if form.Icon != "" && !core.ValidIcon(form.Icon) {
		errs["icon"] = "Icona non valida"
	}
	return errs
}

func (s *Server) handleWalletCreate(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	form := readWalletForm(r)
	if errs := s.checkWalletForm(form); len(errs) > 0 {
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "wallet_form.html",
			walletFormView(form, errs, 0))
		return
	}

	wlt := core.Wallet{Name: form.Name, Icon: form.Icon, IsEnabled: form.Enabled}
	if err := wlt.Validate(); err != nil {
		UnprocessableEntityError("Dati non validi: " + err.Error()).Write(w)
		return
	}

	created, err := s.store.CreateWallet(r.Context(), wlt)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Wallet create failed", log.FieldError, err.Error())
		BackendErrorResponse(err).Write(w)
		return
	}
	s.logger.InfoContext(r.Context(), "Wallet created", log.FieldWalletID, created.ID)

	NewHTMXResponse().
		SwapNone().
		TriggerWalletsChanged().
		TriggerFormReset().
		TriggerSuccessNotification("Portafoglio creato").
		BodyHTML(`<div class="success">Portafoglio creato</div>`).
		Write(w)
}

func (s *Server) handleWalletWrite(w http.ResponseWriter, r *http.Request) {
	if resp := RequireUpdateOrDelete(r); resp != nil {
		resp.Write(w)
		return
	}
	id, resp := PathID(r)
	if resp != nil {
		resp.Write(w)
		return
	}

	snap := s.store.Snapshot()
	existing, ok := snap.WalletByID(id)
	if !ok {
		NotFoundError("Portafoglio non trovato").Write(w)
		return
	}

	if r.Method == http.MethodDelete {
		if err := s.store.DeleteWallet(r.Context(), id); err != nil {
			s.logger.ErrorContext(r.Context(), "Wallet delete failed",
				log.FieldWalletID, id, log.FieldError, err.Error())
			BackendErrorResponse(err).Write(w)
			return
		}
		// Deleting can move the selection, so everything reloads.
		NewHTMXResponse().
			SwapNone().
			TriggerDataRefreshed().
			TriggerSuccessNotification("Portafoglio eliminato").
			Write(w)
		return
	}

	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	form := readWalletForm(r)
	if errs := s.checkWalletForm(form); len(errs) > 0 {
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "wallet_form.html",
			walletFormView(form, errs, id))
		return
	}

	wlt := existing
	wlt.Name = form.Name
	wlt.Icon = form.Icon
	wlt.IsEnabled = form.Enabled
	if err := wlt.Validate(); err != nil {
		UnprocessableEntityError("Dati non validi: " + err.Error()).Write(w)
		return
	}

	if _, err := s.store.UpdateWallet(r.Context(), wlt); err != nil {
		s.logger.ErrorContext(r.Context(), "Wallet update failed",
			log.FieldWalletID, id, log.FieldError, err.Error())
		BackendErrorResponse(err).Write(w)
		return
	}

	NewHTMXResponse().
		SwapNone().
		TriggerWalletsChanged().
		TriggerSuccessNotification("Portafoglio aggiornato").
		BodyHTML(`<div class="success">Portafoglio aggiornato</div>`).
		Write(w)
}

// handleWalletSelect switches the active wallet. When the selection lands
// but its data fails to load, the panels still move over and the failure
// surfaces as a notification; a manual refresh recovers.
func (s *Server) handleWalletSelect(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	id, resp := PathID(r)
	if resp != nil {
		resp.Write(w)
		return
	}

	if err := s.store.SelectWallet(r.Context(), id); err != nil {
		if errors.Is(err, state.ErrUnknownWallet) {
			NotFoundError("Portafoglio non trovato").Write(w)
			return
		}
		s.logger.ErrorContext(r.Context(), "Wallet data load failed",
			log.FieldWalletID, id, log.FieldError, err.Error())
		NewHTMXResponse().
			Status(http.StatusBadGateway).
			TriggerWalletSelected(id).
			TriggerErrorNotification("Impossibile caricare i dati del portafoglio").
			BodyHTML(`<div class="error">Impossibile caricare i dati del portafoglio</div>`).
			Write(w)
		return
	}

	name := ""
	if wlt, ok := s.store.Snapshot().WalletByID(id); ok {
		name = wlt.Name
	}
	NewHTMXResponse().
		SwapNone().
		TriggerWalletSelected(id).
		TriggerSuccessNotification("Portafoglio attivo: " + name).
		Write(w)
}

func (s *Server) handleUserSelect(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	id, resp := PathID(r)
	if resp != nil {
		resp.Write(w)
		return
	}

	if err := s.store.SelectUser(id); err != nil {
		if errors.Is(err, state.ErrUnknownUser) {
			NotFoundError("Utente non trovato").Write(w)
			return
		}
		InternalServerError("Errore interno").Write(w)
		return
	}

	name := ""
	if u, ok := s.store.Snapshot().UserByID(id); ok {
		name = u.DisplayName
		if name == "" {
			name = u.Username
		}
	}
	NewHTMXResponse().
		SwapNone().
		TriggerUserSelected(id).
		TriggerSuccessNotification("Utente attivo: " + name).
		Write(w)
}
