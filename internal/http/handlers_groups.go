package http

import (
	"fmt"
	"net/http"
	"strings"

	"borsa/internal/core"
	"borsa/internal/log"
	"borsa/internal/state"
)

type groupWalletOption struct {
	ID      int64
	Label   string
	Checked bool
}

type groupFormData struct {
	Action  string
	IsEdit  bool
	Form    groupForm
	Errors  map[string]string
	Wallets []groupWalletOption
}

type groupRow struct {
	ID      int64
	Name    string
	Members string
	Missing int
	Balance string
	Form    groupFormData
}

type groupListData struct {
	Rows       []groupRow
	HasWallets bool
	Form       groupFormData
}

func (s *Server) handleGroupList(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	snap := s.store.Snapshot()
	key := fragmentKey("walletgroups", snap.Version)
	s.renderCached(w, r, key, "walletgroups.html", func() any { return s.groupListView(snap) })
}

// groupListView tolerates member ids that no longer resolve: the group
// still renders with the wallets that remain, and the missing ones are
// only counted.
func (s *Server) groupListView(snap state.Snapshot) groupListData {
	data := groupListData{
		HasWallets: len(snap.Wallets) > 0,
		Form:       groupFormView(snap, groupForm{}, nil, 0),
	}
	for _, g := range snap.Groups {
		var names []string
		var total core.Money
		missing := 0
		for _, wid := range g.WalletIDs {
			wlt, ok := snap.WalletByID(wid)
			if !ok {
				missing++
				continue
			}
			names = append(names, strings.TrimSpace(wlt.Icon+" "+wlt.Name))
			total.Cents += wlt.Balance.Cents
		}
		form := groupForm{Name: g.Name, WalletIDs: g.WalletIDs}
		data.Rows = append(data.Rows, groupRow{
			ID:      g.ID,
			Name:    g.Name,
			Members: strings.Join(names, ", "),
			Missing: missing,
			Balance: s.fmtMoney(total),
			Form:    groupFormView(snap, form, nil, g.ID),
		})
	}
	return data
}

func groupFormView(snap state.Snapshot, form groupForm, errs map[string]string, id int64) groupFormData {
	checked := make(map[int64]bool, len(form.WalletIDs))
	for _, wid := range form.WalletIDs {
		checked[wid] = true
	}
	data := groupFormData{Action: "/walletgroups", Form: form, Errors: errs}
	if id > 0 {
		data.Action = fmt.Sprintf("/walletgroups/%d", id)
		data.IsEdit = true
	}
	for _, wlt := range snap.Wallets {
		data.Wallets = append(data.Wallets, groupWalletOption{
			ID:      wlt.ID,
			Label:   strings.TrimSpace(wlt.Icon + " " + wlt.Name),
			Checked: checked[wlt.ID],
		})
	}
	return data
}

// checkGroupForm drops member ids the snapshot does not know instead of
// rejecting the whole form; the backend is the authority on membership.
func (s *Server) checkGroupForm(snap state.Snapshot, form *groupForm) map[string]string {
	errs := fieldErrors(s.validate.Struct(*form))
	kept := form.WalletIDs[:0]
	for _, wid := range form.WalletIDs {
		if _, ok := snap.WalletByID(wid); ok {
			kept = append(kept, wid)
		}
	}
	form.WalletIDs = kept
	return errs
}

func (s *Server) handleGroupCreate(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	snap := s.store.Snapshot()
	form := readGroupForm(r)
	if errs := s.checkGroupForm(snap, &form); len(errs) > 0 {
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "walletgroup_form.html",
			groupFormView(snap, form, errs, 0))
		return
	}

	g := core.WalletGroup{Name: form.Name, WalletIDs: form.WalletIDs}
	if err := g.Validate(); err != nil {
		UnprocessableEntityError("Dati non validi: " + err.Error()).Write(w)
		return
	}

	if _, err := s.store.CreateGroup(r.Context(), g); err != nil {
		s.logger.ErrorContext(r.Context(), "Group create failed", log.FieldError, err.Error())
		BackendErrorResponse(err).Write(w)
		return
	}

	NewHTMXResponse().
		SwapNone().
		TriggerGroupsChanged().
		TriggerFormReset().
		TriggerSuccessNotification("Gruppo creato").
		BodyHTML(`<div class="success">Gruppo creato</div>`).
		Write(w)
}

func (s *Server) handleGroupWrite(w http.ResponseWriter, r *http.Request) {
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
	existing, ok := snap.GroupByID(id)
	if !ok {
		NotFoundError("Gruppo non trovato").Write(w)
		return
	}

	if r.Method == http.MethodDelete {
		if err := s.store.DeleteGroup(r.Context(), id); err != nil {
			s.logger.ErrorContext(r.Context(), "Group delete failed",
				log.FieldGroupID, id, log.FieldError, err.Error())
			BackendErrorResponse(err).Write(w)
			return
		}
		NewHTMXResponse().
			SwapNone().
			TriggerGroupsChanged().
			TriggerSuccessNotification("Gruppo eliminato").
			Write(w)
		return
	}

	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	form := readGroupForm(r)
	if errs := s.checkGroupForm(snap, &form); len(errs) > 0 {
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "walletgroup_form.html",
			groupFormView(snap, form, errs, id))
		return
	}

	g := existing
	g.Name = form.Name
	g.WalletIDs = form.WalletIDs
	if err := g.Validate(); err != nil {
		UnprocessableEntityError("Dati non validi: " + err.Error()).Write(w)
		return
	}

	if _, err := s.store.UpdateGroup(r.Context(), g); err != nil {
		s.logger.ErrorContext(r.Context(), "Group update failed",
			log.FieldGroupID, id, log.FieldError, err.Error())
		BackendErrorResponse(err).Write(w)
		return
	}

	NewHTMXResponse().
		SwapNone().
		TriggerGroupsChanged().
		TriggerSuccessNotification("Gruppo aggiornato").
		BodyHTML(`<div class="success">Gruppo aggiornato</div>`).
		Write(w)
}
