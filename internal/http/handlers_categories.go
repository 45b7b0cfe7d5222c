package http

import (
	"fmt"
	"net/http"

	"borsa/internal/core"
	"borsa/internal/log"
	"borsa/internal/state"
)

type catRow struct {
	ID          int64
	Name        string
	Icon        string
	Depth       int
	HasChildren bool
	Expanded    bool
	IsGlobal    bool
	IsChild     bool
	IsIncome    bool
	ToggleQuery string
}

type catListData struct {
	Rows      []catRow
	Count     int
	HasWallet bool
	Expanded  string
}

type parentOption struct {
	ID    int64
	Label string
}

type catFormData struct {
	Action  string
	IsEdit  bool
	Form    categoryForm
	Errors  map[string]string
	Parents []parentOption
	Icons   []string
}

// handleCategoryList renders the tree with the caller's expand state. The
// expanded-id set lives only in the fragment's own links, never on the
// server.
func (s *Server) handleCategoryList(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	snap := s.store.Snapshot()
	expanded := parseExpandedIDs(r.URL.Query().Get("expanded"))
	encoded := encodeExpandedIDs(expanded)
	key := fragmentKey("categories", snap.Version, encoded)
	s.renderCached(w, r, key, "categories.html", func() any {
		return catListView(snap, expanded, encoded)
	})
}

func catListView(snap state.Snapshot, expanded core.IDSet, encoded string) catListData {
	data := catListData{
		Count:     core.CountNodes(snap.Tree),
		HasWallet: snap.SelectedWalletID != 0,
		Expanded:  encoded,
	}
	for _, row := range core.FlattenTree(snap.Tree, expanded) {
		out := catRow{
			ID:          row.ID,
			Name:        row.Name,
			Icon:        row.Icon,
			Depth:       row.Depth,
			HasChildren: row.HasChildren,
			Expanded:    row.Expanded,
			IsGlobal:    row.IsGlobal,
			IsChild:     !row.IsRoot(),
			IsIncome:    row.IsIncome(),
		}
		if row.HasChildren {
			next := core.NewIDSet(expanded.IDs()...)
			next.Toggle(row.ID)
			out.ToggleQuery = encodeExpandedIDs(next)
		}
		data.Rows = append(data.Rows, out)
	}
	return data
}

func (s *Server) handleCategoryNew(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	snap := s.store.Snapshot()
	form := categoryForm{ParentID: queryInt64(r, "parent_id")}
	s.render(w, r, "category_form.html", catFormView(snap, form, nil, 0))
}

func (s *Server) handleCategoryEdit(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	id, resp := PathID(r)
	if resp != nil {
		resp.Write(w)
		return
	}
	snap := s.store.Snapshot()
	cat, ok := snap.CategoryByID(id)
	if !ok {
		NotFoundError("Categoria non trovata").Write(w)
		return
	}
	form := categoryForm{Name: cat.Name, Icon: cat.Icon, IsGlobal: cat.IsGlobal}
	if cat.ParentID != nil {
		form.ParentID = *cat.ParentID
	}
	s.render(w, r, "category_form.html", catFormView(snap, form, nil, id))
}

// catFormView assembles the form with the parent choices legal for the
// node being edited: roots only, minus itself and its subtree.
func catFormView(snap state.Snapshot, form categoryForm, errs map[string]string, id int64) catFormData {
	data := catFormData{
		Action: "/categories",
		Form:   form,
		Errors: errs,
		Icons:  core.IconPalette,
	}
	if id > 0 {
		data.Action = fmt.Sprintf("/categories/%d", id)
		data.IsEdit = true
	}
	for _, c := range core.ParentCandidates(snap.Categories, id) {
		label := c.Name
		if c.Icon != "" {
			label = c.Icon + " " + c.Name
		}
		data.Parents = append(data.Parents, parentOption{ID: c.ID, Label: label})
	}
	return data
}

// checkCategoryForm validates the form against the snapshot. editing is 0
// on create.
func (s *Server) checkCategoryForm(snap state.Snapshot, form categoryForm, editing int64) map[string]string {
	errs := fieldErrors(s.validate.Struct(form))
	if form.Icon != "" && !core.ValidIcon(form.Icon) {
		errs["icon"] = "Icona non valida"
	}
	if form.ParentID > 0 {
		if _, ok := snap.CategoryByID(form.ParentID); !ok {
			errs["parent_id"] = "Categoria padre non valida"
		} else if editing > 0 && core.WouldCreateCycle(snap.Categories, editing, form.ParentID) {
			errs["parent_id"] = "Creerebbe un ciclo"
		}
	}
	return errs
}

func (s *Server) handleCategoryCreate(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	snap := s.store.Snapshot()
	if snap.SelectedWalletID == 0 {
		UnprocessableEntityError("Nessun portafoglio selezionato").Write(w)
		return
	}

	form := readCategoryForm(r)
	if errs := s.checkCategoryForm(snap, form, 0); len(errs) > 0 {
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "category_form.html",
			catFormView(snap, form, errs, 0))
		return
	}

	cat := core.Category{
		Name:     form.Name,
		Icon:     form.Icon,
		IsGlobal: form.IsGlobal,
	}
	if !form.IsGlobal {
		cat.WalletID = snap.SelectedWalletID
	}
	if form.ParentID > 0 {
		pid := form.ParentID
		cat.ParentID = &pid
	}
	if err := cat.Validate(); err != nil {
		UnprocessableEntityError("Dati non validi: " + err.Error()).Write(w)
		return
	}

	created, err := s.store.CreateCategory(r.Context(), cat)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Category create failed",
			log.FieldWalletID, cat.WalletID, log.FieldError, err.Error())
		BackendErrorResponse(err).Write(w)
		return
	}

	NewHTMXResponse().
		SwapNone().
		TriggerCategoriesChanged(created.WalletID).
		TriggerFormReset().
		TriggerSuccessNotification("Categoria creata").
		BodyHTML(`<div class="success">Categoria creata</div>`).
		Write(w)
}

func (s *Server) handleCategoryWrite(w http.ResponseWriter, r *http.Request) {
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
	existing, ok := snap.CategoryByID(id)
	if !ok {
		NotFoundError("Categoria non trovata").Write(w)
		return
	}

	if r.Method == http.MethodDelete {
		if err := s.store.DeleteCategory(r.Context(), id); err != nil {
			s.logger.ErrorContext(r.Context(), "Category delete failed",
				log.FieldCategoryID, id, log.FieldError, err.Error())
			BackendErrorResponse(err).Write(w)
			return
		}
		// The server cascades to subcategories and their transactions.
		NewHTMXResponse().
			SwapNone().
			TriggerCategoriesChanged(existing.WalletID).
			TriggerTransactionsChanged(existing.WalletID).
			TriggerFormReset().
			TriggerSuccessNotification("Categoria eliminata").
			Write(w)
		return
	}

	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	form := readCategoryForm(r)
	if errs := s.checkCategoryForm(snap, form, id); len(errs) > 0 {
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "category_form.html",
			catFormView(snap, form, errs, id))
		return
	}

	cat := existing
	cat.Name = form.Name
	cat.Icon = form.Icon
	cat.IsGlobal = form.IsGlobal
	cat.ParentID = nil
	if form.ParentID > 0 {
		pid := form.ParentID
		cat.ParentID = &pid
	}
	if !form.IsGlobal && cat.WalletID == 0 {
		cat.WalletID = snap.SelectedWalletID
	}
	if err := cat.Validate(); err != nil {
		UnprocessableEntityError("Dati non validi: " + err.Error()).Write(w)
		return
	}

	updated, err := s.store.UpdateCategory(r.Context(), cat)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Category update failed",
			log.FieldCategoryID, id, log.FieldError, err.Error())
		BackendErrorResponse(err).Write(w)
		return
	}

	NewHTMXResponse().
		SwapNone().
		TriggerCategoriesChanged(updated.WalletID).
		TriggerFormReset().
		TriggerSuccessNotification("Categoria aggiornata").
		BodyHTML(`<div class="success">Categoria aggiornata</div>`).
		Write(w)
}
