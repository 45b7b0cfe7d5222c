package http

import (
	"encoding/json"
	"net/http"
	"time"

	"borsa/internal/core"
	"borsa/internal/log"
	"borsa/internal/state"
	"borsa/internal/views"
)

type shellData struct {
	InitDone bool
	Setup    setupViewData
}

type setupViewData struct {
	Form    setupForm
	Errors  map[string]string
	Icons   []string
	IsNewDB bool
}

type walletOption struct {
	ID       int64
	Name     string
	Icon     string
	Balance  string
	Selected bool
}

type userOption struct {
	ID       int64
	Name     string
	Selected bool
}

type topbarData struct {
	Wallets   []walletOption
	Users     []userOption
	HasWallet bool
}

type summaryData struct {
	HasWallet     bool
	WalletName    string
	WalletIcon    string
	WalletBalance string
	TotalBalance  string
	ActiveWallets int
	MonthIncome   string
	MonthExpense  string
	MonthNet      string
	MonthNetClass string
}

// handleIndex serves the page shell. Until the backend has answered the
// init probe we cannot know whether to show the dashboard or the setup
// screen, so an unreachable backend gets a holding page instead.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	if !s.store.Ready() {
		if err := s.store.RefreshAll(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "Refresh on first paint failed", log.FieldError, err.Error())
		}
	}
	if !s.store.Ready() {
		s.renderStatus(w, r, http.StatusServiceUnavailable, "unavailable.html", nil)
		return
	}
	snap := s.store.Snapshot()
	s.render(w, r, "index.html", shellData{
		InitDone: snap.InitDone,
		Setup:    s.setupView(setupForm{}, nil, snap.IsNewDB),
	})
}

func (s *Server) setupView(form setupForm, errs map[string]string, isNewDB bool) setupViewData {
	return setupViewData{Form: form, Errors: errs, Icons: core.IconPalette, IsNewDB: isNewDB}
}

// handleSetup performs the first-run bootstrap: admin user plus first
// wallet. On success it answers with the dashboard content so the shell
// swaps over without a page reload.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	form := readSetupForm(r)
	errs := fieldErrors(s.validate.Struct(form))
	if form.WalletIcon != "" && !core.ValidIcon(form.WalletIcon) {
		errs["wallet_icon"] = "Icona non valida"
	}
	if len(errs) > 0 {
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "setup_form.html",
			s.setupView(form, errs, s.store.Snapshot().IsNewDB))
		return
	}

	req := core.InitRequest{
		AdminUser: core.User{
			Username:    form.Username,
			DisplayName: form.DisplayName,
			Email:       form.Email,
			Role:        core.RoleAdmin,
		},
		FirstWallet: core.Wallet{
			Name:      form.WalletName,
			Icon:      form.WalletIcon,
			IsEnabled: true,
		},
	}
	if err := req.Validate(); err != nil {
		UnprocessableEntityError("Dati non validi: " + err.Error()).Write(w)
		return
	}

	if err := s.store.Initialize(r.Context(), req); err != nil {
		s.logger.ErrorContext(r.Context(), "Initialization failed", log.FieldError, err.Error())
		BackendErrorResponse(err).Write(w)
		return
	}
	s.logger.InfoContext(r.Context(), "First-run setup completed",
		"username", form.Username, "wallet", form.WalletName)

	body, err := s.execute("dashboard.html", nil)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			"template", "dashboard.html", log.FieldError, err.Error())
		InternalServerError("Errore di rendering").Write(w)
		return
	}
	// The dashboard replaces the whole setup screen, not the form box
	// the request was wired to.
	NewHTMXResponse().
		TriggerSetupCompleted().
		TriggerSuccessNotification("Configurazione completata").
		Header("HX-Retarget", "#app").
		Header("HX-Reswap", "innerHTML").
		Body(body).
		Header("Content-Type", "text/html; charset=utf-8").
		Write(w)
}

// handleTopbar renders the wallet and user switchers.
func (s *Server) handleTopbar(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	snap := s.store.Snapshot()
	key := fragmentKey("topbar", snap.Version)
	s.renderCached(w, r, key, "topbar.html", func() any { return s.topbarView(snap) })
}

func (s *Server) topbarView(snap state.Snapshot) topbarData {
	data := topbarData{}
	for _, wlt := range snap.EnabledWallets() {
		data.Wallets = append(data.Wallets, walletOption{
			ID:       wlt.ID,
			Name:     wlt.Name,
			Icon:     wlt.Icon,
			Balance:  s.fmtMoney(wlt.Balance),
			Selected: wlt.ID == snap.SelectedWalletID,
		})
	}
	data.HasWallet = snap.SelectedWalletID != 0
	for _, u := range snap.Users {
		name := u.DisplayName
		if name == "" {
			name = u.Username
		}
		data.Users = append(data.Users, userOption{
			ID:       u.ID,
			Name:     name,
			Selected: u.ID == snap.SelectedUserID,
		})
	}
	return data
}

// handleSummary renders the balance cards: selected wallet, all enabled
// wallets, and the running month.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	snap := s.store.Snapshot()
	key := fragmentKey("summary", snap.Version)
	s.renderCached(w, r, key, "summary.html", func() any { return s.summaryView(snap, time.Now()) })
}

func (s *Server) summaryView(snap state.Snapshot, now time.Time) summaryData {
	data := summaryData{}
	if wlt, ok := snap.SelectedWallet(); ok {
		data.HasWallet = true
		data.WalletName = wlt.Name
		data.WalletIcon = wlt.Icon
		data.WalletBalance = s.fmtMoney(wlt.Balance)
	}

	ws := views.SummarizeWallets(snap.Wallets)
	data.TotalBalance = s.fmtMoney(ws.Balance)
	data.ActiveWallets = ws.Active

	lk := views.Lookup{CategoryName: snap.CategoryNames(), PersonName: snap.PersonNames()}
	month := views.Apply(snap.Transactions, views.Filter{Kind: views.KindAll, Range: views.RangeMonth}, lk, now)
	totals := views.Totals(month)
	data.MonthIncome = s.fmtMoney(totals.Income)
	data.MonthExpense = s.fmtMoney(totals.Expense)
	data.MonthNet = s.fmtMoney(totals.Net)
	data.MonthNetClass = amountClass(totals.Net)
	return data
}

// handleRefresh re-fetches everything on demand.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if err := s.store.RefreshAll(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "Manual refresh failed", log.FieldError, err.Error())
		NewHTMXResponse().
			Status(http.StatusBadGateway).
			TriggerErrorNotification("Aggiornamento non riuscito").
			BodyHTML(`<div class="error">Aggiornamento non riuscito</div>`).
			Write(w)
		return
	}
	NewHTMXResponse().
		SwapNone().
		TriggerDataRefreshed().
		TriggerSuccessNotification("Dati aggiornati").
		Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports whether the first full fetch has landed, which also
// proves the backend was reachable at least once.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.store.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	reqMetrics := s.tracer.GetMetrics()
	limitMetrics := s.limiter.GetMetrics()
	secMetrics := s.detector.GetMetrics()
	payload := map[string]any{
		"requests_total":        reqMetrics.TotalRequests,
		"response_time_us":      reqMetrics.AverageResponseTime,
		"rate_limit_hits":       limitMetrics.TotalHits,
		"rate_limit_clients":    limitMetrics.ClientCount,
		"suspicious_requests":   secMetrics.SuspiciousRequests,
		"fragment_cache_hits":   s.cacheHits.Load(),
		"fragment_cache_misses": s.cacheMisses.Load(),
		"fragment_cache_size":   s.fragments.Size(),
		"snapshot_version":      s.store.Version(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
