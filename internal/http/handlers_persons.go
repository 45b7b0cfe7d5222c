package http

import (
	"fmt"
	"net/http"

	"borsa/internal/core"
	"borsa/internal/log"
	"borsa/internal/state"
	"borsa/internal/views"
)

type personFormData struct {
	Action string
	IsEdit bool
	Form   personForm
	Errors map[string]string
}

type personRow struct {
	ID       int64
	Name     string
	Alias    string
	UseCount int
	Form     personFormData
}

type personListData struct {
	Rows []personRow
	Form personFormData
}

type personSuggestion struct {
	ID    int64
	Name  string
	Alias string
}

func (s *Server) handlePersonList(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	snap := s.store.Snapshot()
	key := fragmentKey("persons", snap.Version)
	s.renderCached(w, r, key, "persons.html", func() any { return personListView(snap) })
}

func personListView(snap state.Snapshot) personListData {
	uses := make(map[int64]int)
	for _, tx := range snap.Transactions {
		if tx.PersonID != nil {
			uses[*tx.PersonID]++
		}
	}
	data := personListData{Form: personFormView(personForm{}, nil, 0)}
	for _, p := range snap.Persons {
		form := personForm{Name: p.Name, Alias: p.Alias}
		data.Rows = append(data.Rows, personRow{
			ID:       p.ID,
			Name:     p.Name,
			Alias:    p.Alias,
			UseCount: uses[p.ID],
			Form:     personFormView(form, nil, p.ID),
		})
	}
	return data
}

func personFormView(form personForm, errs map[string]string, id int64) personFormData {
	data := personFormData{Action: "/persons", Form: form, Errors: errs}
	if id > 0 {
		data.Action = fmt.Sprintf("/persons/%d", id)
		data.IsEdit = true
	}
	return data
}

// handlePersonSuggest backs the counterparty autocomplete. Results depend
// on every keystroke, so this endpoint skips the fragment cache.
func (s *Server) handlePersonSuggest(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		// The transaction form sends the field under its own name.
		q = r.URL.Query().Get("counterparty")
	}
	snap := s.store.Snapshot()
	matches := views.SuggestPersons(snap.Persons, q, 5)
	items := make([]personSuggestion, 0, len(matches))
	for _, p := range matches {
		items = append(items, personSuggestion{ID: p.ID, Name: p.Name, Alias: p.Alias})
	}
	s.render(w, r, "persons_suggest.html", items)
}

func (s *Server) handlePersonCreate(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	form := readPersonForm(r)
	if errs := fieldErrors(s.validate.Struct(form)); len(errs) > 0 {
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "person_form.html",
			personFormView(form, errs, 0))
		return
	}

	p := core.Person{Name: form.Name, Alias: form.Alias}
	if err := p.Validate(); err != nil {
		UnprocessableEntityError("Dati non validi: " + err.Error()).Write(w)
		return
	}

	if _, err := s.store.CreatePerson(r.Context(), p); err != nil {
		s.logger.ErrorContext(r.Context(), "Person create failed", log.FieldError, err.Error())
		BackendErrorResponse(err).Write(w)
		return
	}

	NewHTMXResponse().
		SwapNone().
		TriggerPersonsChanged().
		TriggerFormReset().
		TriggerSuccessNotification("Persona aggiunta").
		BodyHTML(`<div class="success">Persona aggiunta</div>`).
		Write(w)
}

func (s *Server) handlePersonWrite(w http.ResponseWriter, r *http.Request) {
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
	existing, ok := snap.PersonByID(id)
	if !ok {
		NotFoundError("Persona non trovata").Write(w)
		return
	}

	if r.Method == http.MethodDelete {
		if err := s.store.DeletePerson(r.Context(), id); err != nil {
			s.logger.ErrorContext(r.Context(), "Person delete failed",
				log.FieldPersonID, id, log.FieldError, err.Error())
			BackendErrorResponse(err).Write(w)
			return
		}
		// Rows that pointed at the person fall back to their free-text
		// counterparty, so the list re-renders too.
		NewHTMXResponse().
			SwapNone().
			TriggerPersonsChanged().
			TriggerTransactionsChanged(snap.SelectedWalletID).
			TriggerSuccessNotification("Persona eliminata").
			Write(w)
		return
	}

	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	form := readPersonForm(r)
	if errs := fieldErrors(s.validate.Struct(form)); len(errs) > 0 {
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "person_form.html",
			personFormView(form, errs, id))
		return
	}

	p := existing
	p.Name = form.Name
	p.Alias = form.Alias
	if err := p.Validate(); err != nil {
		UnprocessableEntityError("Dati non validi: " + err.Error()).Write(w)
		return
	}

	if _, err := s.store.UpdatePerson(r.Context(), p); err != nil {
		s.logger.ErrorContext(r.Context(), "Person update failed",
			log.FieldPersonID, id, log.FieldError, err.Error())
		BackendErrorResponse(err).Write(w)
		return
	}

	NewHTMXResponse().
		SwapNone().
		TriggerPersonsChanged().
		TriggerTransactionsChanged(snap.SelectedWalletID).
		TriggerSuccessNotification("Persona aggiornata").
		BodyHTML(`<div class="success">Persona aggiornata</div>`).
		Write(w)
}
