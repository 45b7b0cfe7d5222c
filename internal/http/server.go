// Package http serves the htmx UI: full page shell plus the fragment
// endpoints the page swaps in. Handlers render from the state snapshot and
// never call the backend for reads; mutations go through the store.
package http

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"borsa/internal/cache"
	"borsa/internal/config"
	"borsa/internal/log"
	"borsa/internal/middleware/ratelimit"
	"borsa/internal/middleware/security"
	"borsa/internal/middleware/trace"
	"borsa/internal/state"
	appweb "borsa/web"
)

type Server struct {
	http.Server

	store     *state.Store
	templates *template.Template
	validate  *validator.Validate
	logger    *log.Logger
	currency  string

	// fragments memoizes rendered partials keyed by snapshot version plus
	// request parameters. Purged on every store change.
	fragments    *cache.LRUCache[[]byte]
	cacheManager *cache.Manager
	cacheHits    atomic.Int64
	cacheMisses  atomic.Int64

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	unsubscribe  func()
	shutdownOnce sync.Once
}

// NewServer configures routes, templates and middleware, returning a
// ready-to-run server.
func NewServer(cfg *config.Config, store *state.Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}

	s := &Server{
		store:        store,
		validate:     newFormValidator(),
		logger:       logger,
		currency:     cfg.Currency,
		fragments:    cache.NewLRUCache[[]byte](256, 5*time.Minute),
		cacheManager: cache.NewManager(),
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		detector:     security.NewDetector(),
	}
	s.cacheManager.Register(s.fragments)
	s.cacheManager.StartCleanup(10 * time.Minute)
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)
	s.unsubscribe = store.Subscribe(func(state.Change) { s.fragments.Purge() })

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Error("Failed parsing templates", log.FieldError, err.Error())
	}
	s.templates = t

	mux := http.NewServeMux()
	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, nil)(handler)
	handler = s.suspicionMiddleware(handler)
	handler = headers.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Error("Failed to mount embedded static FS", log.FieldError, err.Error())
	}

	mux.HandleFunc("/{$}", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/refresh", s.handleRefresh)
	mux.HandleFunc("/setup", s.handleSetup)

	mux.HandleFunc("/ui/topbar", s.handleTopbar)
	mux.HandleFunc("/ui/summary", s.handleSummary)

	mux.HandleFunc("/ui/transactions", s.handleTransactionList)
	mux.HandleFunc("/ui/transactions/new", s.handleTransactionNew)
	mux.HandleFunc("/ui/transactions/{id}/edit", s.handleTransactionEdit)
	mux.HandleFunc("/transactions", s.handleTransactionCreate)
	mux.HandleFunc("/transactions/{id}", s.handleTransactionWrite)

	mux.HandleFunc("/ui/categories", s.handleCategoryList)
	mux.HandleFunc("/ui/categories/new", s.handleCategoryNew)
	mux.HandleFunc("/ui/categories/{id}/edit", s.handleCategoryEdit)
	mux.HandleFunc("/categories", s.handleCategoryCreate)
	mux.HandleFunc("/categories/{id}", s.handleCategoryWrite)

	mux.HandleFunc("/ui/wallets", s.handleWalletList)
	mux.HandleFunc("/wallets", s.handleWalletCreate)
	mux.HandleFunc("/wallets/{id}", s.handleWalletWrite)
	mux.HandleFunc("/wallets/{id}/select", s.handleWalletSelect)
	mux.HandleFunc("/users/{id}/select", s.handleUserSelect)

	mux.HandleFunc("/ui/persons", s.handlePersonList)
	mux.HandleFunc("/ui/persons/suggest", s.handlePersonSuggest)
	mux.HandleFunc("/persons", s.handlePersonCreate)
	mux.HandleFunc("/persons/{id}", s.handlePersonWrite)

	mux.HandleFunc("/ui/walletgroups", s.handleGroupList)
	mux.HandleFunc("/walletgroups", s.handleGroupCreate)
	mux.HandleFunc("/walletgroups/{id}", s.handleGroupWrite)
}

// suspicionMiddleware logs requests matching known probe patterns without
// blocking them; the rate limiter downstream handles actual abuse.
func (s *Server) suspicionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			s.logger.WarnContext(r.Context(), "Suspicious request detected",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.detector.ExtractClientIP(r))
		}
		next.ServeHTTP(w, r)
	})
}

// Start blocks serving requests until Shutdown. A closed-server error is
// the normal way out, not a failure.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.Addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server and every background routine it owns. Safe to
// call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
