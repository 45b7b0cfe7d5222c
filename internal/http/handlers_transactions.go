package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"borsa/internal/core"
	"borsa/internal/log"
	"borsa/internal/state"
	"borsa/internal/views"
)

type txRow struct {
	ID           int64
	Time         string
	CategoryName string
	CategoryIcon string
	Note         string
	Counterparty string
	Amount       string
	AmountClass  string
}

type txDayGroup struct {
	Label   string
	Income  string
	Expense string
	Net     string
	Rows    []txRow
}

type txListData struct {
	Search        string
	Kind          string
	Range         string
	From          string
	To            string
	Sort          string
	Dir           string
	Groups        []txDayGroup
	Count         int
	TotalIncome   string
	TotalExpense  string
	TotalNet      string
	TotalNetClass string
	Empty         bool
}

type categoryOption struct {
	ID    int64
	Label string
}

type txFormData struct {
	Action     string
	IsEdit     bool
	Form       transactionForm
	Errors     map[string]string
	Categories []categoryOption
	HasWallet  bool
}

// txControls normalizes the list query parameters. Unknown values fall
// back to the defaults instead of erroring.
func txControls(r *http.Request) (views.Filter, views.SortKey, bool) {
	q := r.URL.Query()
	f := views.Filter{
		Search: strings.TrimSpace(q.Get("search")),
		Kind:   views.KindAll,
		Range:  views.RangeAll,
		From:   strings.TrimSpace(q.Get("from")),
		To:     strings.TrimSpace(q.Get("to")),
	}
	switch views.Kind(q.Get("kind")) {
	case views.KindIncome:
		f.Kind = views.KindIncome
	case views.KindExpense:
		f.Kind = views.KindExpense
	}
	switch views.Range(q.Get("range")) {
	case views.RangeToday:
		f.Range = views.RangeToday
	case views.RangeWeek:
		f.Range = views.RangeWeek
	case views.RangeMonth:
		f.Range = views.RangeMonth
	case views.RangeCustom:
		f.Range = views.RangeCustom
	}
	sortKey := views.SortByDate
	if views.SortKey(q.Get("sort")) == views.SortByAmount {
		sortKey = views.SortByAmount
	}
	asc := q.Get("dir") == "asc"
	return f, sortKey, asc
}

// handleTransactionList runs the filter/sort/group pipeline over the
// snapshot and renders the day-bucketed list.
func (s *Server) handleTransactionList(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	snap := s.store.Snapshot()
	filter, sortKey, asc := txControls(r)
	dir := "desc"
	if asc {
		dir = "asc"
	}
	key := fragmentKey("transactions", snap.Version,
		filter.Search, string(filter.Kind), string(filter.Range),
		filter.From, filter.To, string(sortKey), dir)
	s.renderCached(w, r, key, "transactions.html", func() any {
		return s.txListView(snap, filter, sortKey, asc, time.Now())
	})
}

func (s *Server) txListView(snap state.Snapshot, filter views.Filter, sortKey views.SortKey, asc bool, now time.Time) txListData {
	lk := views.Lookup{CategoryName: snap.CategoryNames(), PersonName: snap.PersonNames()}

	filtered := views.Apply(snap.Transactions, filter, lk, now)
	views.Sort(filtered, sortKey, asc)
	totals := views.Totals(filtered)

	data := txListData{
		Search:        filter.Search,
		Kind:          string(filter.Kind),
		Range:         string(filter.Range),
		From:          filter.From,
		To:            filter.To,
		Sort:          string(sortKey),
		Dir:           "desc",
		Count:         len(filtered),
		TotalIncome:   s.fmtMoney(totals.Income),
		TotalExpense:  s.fmtMoney(totals.Expense),
		TotalNet:      s.fmtMoney(totals.Net),
		TotalNetClass: amountClass(totals.Net),
		Empty:         len(filtered) == 0,
	}
	if asc {
		data.Dir = "asc"
	}

	icons := make(map[int64]string, len(snap.Categories))
	for _, c := range snap.Categories {
		icons[c.ID] = c.Icon
	}

	for _, g := range views.GroupByDay(filtered) {
		group := txDayGroup{
			Label:   fmtDay(g.Day),
			Income:  s.fmtMoney(g.Income),
			Expense: s.fmtMoney(g.Expense),
			Net:     s.fmtMoney(g.Net),
		}
		for _, tx := range g.Items {
			group.Rows = append(group.Rows, txRow{
				ID:           tx.ID,
				Time:         fmtTime(tx.EffectiveTime()),
				CategoryName: lk.CategoryName[tx.CategoryID],
				CategoryIcon: icons[tx.CategoryID],
				Note:         tx.Note,
				Counterparty: counterpartyLabel(tx, lk),
				Amount:       s.fmtMoney(tx.Amount),
				AmountClass:  amountClass(tx.Amount),
			})
		}
		data.Groups = append(data.Groups, group)
	}
	return data
}

// counterpartyLabel prefers the registry name; rows pointing at a person
// that no longer exists fall back to the free-text counterparty.
func counterpartyLabel(tx core.Transaction, lk views.Lookup) string {
	if tx.PersonID != nil {
		if name := lk.PersonName[*tx.PersonID]; name != "" {
			return name
		}
	}
	return tx.Counterparty
}

func (s *Server) handleTransactionNew(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	snap := s.store.Snapshot()
	s.render(w, r, "transaction_form.html",
		s.txFormView(snap, transactionForm{Direction: "out"}, nil, 0))
}

func (s *Server) handleTransactionEdit(w http.ResponseWriter, r *http.Request) {
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
	tx, ok := snap.TransactionByID(id)
	if !ok {
		NotFoundError("Movimento non trovato").Write(w)
		return
	}

	form := transactionForm{
		Amount:       centsToInput(tx.Amount),
		Direction:    "in",
		CategoryID:   tx.CategoryID,
		When:         fmtInputTime(tx.TransactionTime),
		Note:         tx.Note,
		Counterparty: tx.Counterparty,
	}
	if tx.IsExpense() {
		form.Direction = "out"
	}
	if tx.PersonID != nil {
		form.PersonID = *tx.PersonID
	}
	s.render(w, r, "transaction_form.html", s.txFormView(snap, form, nil, id))
}

func (s *Server) txFormView(snap state.Snapshot, form transactionForm, errs map[string]string, id int64) txFormData {
	data := txFormData{
		Action:     "/transactions",
		Form:       form,
		Errors:     errs,
		Categories: categoryOptions(snap),
		HasWallet:  snap.SelectedWalletID != 0,
	}
	if id > 0 {
		data.Action = fmt.Sprintf("/transactions/%d", id)
		data.IsEdit = true
	}
	return data
}

// categoryOptions flattens the whole tree into indented select options.
func categoryOptions(snap state.Snapshot) []categoryOption {
	ids := make([]int64, 0, len(snap.Categories))
	for _, c := range snap.Categories {
		ids = append(ids, c.ID)
	}
	rows := core.FlattenTree(snap.Tree, core.NewIDSet(ids...))
	out := make([]categoryOption, 0, len(rows))
	for _, row := range rows {
		label := strings.Repeat("— ", row.Depth)
		if row.Icon != "" {
			label += row.Icon + " "
		}
		label += row.Name
		out = append(out, categoryOption{ID: row.ID, Label: label})
	}
	return out
}

// centsToInput renders a magnitude for the amount input box.
func centsToInput(m core.Money) string {
	a := m.Abs().Cents
	return fmt.Sprintf("%d.%02d", a/100, a%100)
}

// checkTransactionForm runs schema validation plus the parsing the schema
// cannot express. Returns the parsed pieces alongside any field messages.
func (s *Server) checkTransactionForm(snap state.Snapshot, form transactionForm) (core.Money, time.Time, map[string]string) {
	errs := fieldErrors(s.validate.Struct(form))

	var amount core.Money
	if _, seen := errs["amount"]; !seen {
		var err error
		amount, err = parseAmountField(form.Amount, form.Direction)
		if err != nil {
			errs["amount"] = "Importo non valido"
		}
	}

	when, err := parseTimeField(form.When)
	if err != nil {
		errs["when"] = "Data non valida"
	}

	if _, seen := errs["category_id"]; !seen {
		if _, ok := snap.CategoryByID(form.CategoryID); !ok {
			errs["category_id"] = "Categoria non valida"
		}
	}
	return amount, when, errs
}

func (s *Server) handleTransactionCreate(w http.ResponseWriter, r *http.Request) {
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

	form := readTransactionForm(r)
	amount, when, errs := s.checkTransactionForm(snap, form)
	if len(errs) > 0 {
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "transaction_form.html",
			s.txFormView(snap, form, errs, 0))
		return
	}

	tx := core.Transaction{
		WalletID:        snap.SelectedWalletID,
		CategoryID:      form.CategoryID,
		Amount:          amount,
		Note:            form.Note,
		Counterparty:    form.Counterparty,
		UserID:          snap.SelectedUserID,
		TransactionTime: when,
	}
	if form.PersonID > 0 {
		id := form.PersonID
		tx.PersonID = &id
	}
	if err := tx.Validate(); err != nil {
		UnprocessableEntityError("Dati non validi: " + err.Error()).Write(w)
		return
	}

	created, err := s.store.CreateTransaction(r.Context(), tx)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Transaction create failed",
			log.FieldWalletID, tx.WalletID, log.FieldError, err.Error())
		BackendErrorResponse(err).Write(w)
		return
	}

	NewHTMXResponse().
		SwapNone().
		TriggerTransactionsChanged(created.WalletID).
		TriggerFormReset().
		TriggerSuccessNotification("Movimento registrato").
		BodyHTML(`<div class="success">Movimento registrato</div>`).
		Write(w)
}

// handleTransactionWrite covers update and delete on one row.
func (s *Server) handleTransactionWrite(w http.ResponseWriter, r *http.Request) {
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
	existing, ok := snap.TransactionByID(id)
	if !ok {
		NotFoundError("Movimento non trovato").Write(w)
		return
	}

	if r.Method == http.MethodDelete {
		if err := s.store.DeleteTransaction(r.Context(), id); err != nil {
			s.logger.ErrorContext(r.Context(), "Transaction delete failed",
				log.FieldTransactionID, id, log.FieldError, err.Error())
			BackendErrorResponse(err).Write(w)
			return
		}
		NewHTMXResponse().
			SwapNone().
			TriggerTransactionsChanged(existing.WalletID).
			TriggerFormReset().
			TriggerSuccessNotification("Movimento eliminato").
			Write(w)
		return
	}

	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	form := readTransactionForm(r)
	amount, when, errs := s.checkTransactionForm(snap, form)
	if len(errs) > 0 {
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "transaction_form.html",
			s.txFormView(snap, form, errs, id))
		return
	}

	tx := existing
	tx.CategoryID = form.CategoryID
	tx.Amount = amount
	tx.Note = form.Note
	tx.Counterparty = form.Counterparty
	tx.TransactionTime = when
	tx.PersonID = nil
	if form.PersonID > 0 {
		pid := form.PersonID
		tx.PersonID = &pid
	}
	if err := tx.Validate(); err != nil {
		UnprocessableEntityError("Dati non validi: " + err.Error()).Write(w)
		return
	}

	updated, err := s.store.UpdateTransaction(r.Context(), tx)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Transaction update failed",
			log.FieldTransactionID, id, log.FieldError, err.Error())
		BackendErrorResponse(err).Write(w)
		return
	}

	NewHTMXResponse().
		SwapNone().
		TriggerTransactionsChanged(updated.WalletID).
		TriggerFormReset().
		TriggerSuccessNotification("Movimento aggiornato").
		BodyHTML(`<div class="success">Movimento aggiornato</div>`).
		Write(w)
}
