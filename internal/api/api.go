package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"

	"github.com/susu3304/dagsplit/internal/config"
	"github.com/susu3304/dagsplit/internal/ledger"
	"github.com/susu3304/dagsplit/internal/notify"
)

// Store is the persistence the mirror API runs on.
type Store interface {
	Ping(ctx context.Context) error

	CreateGroup(ctx context.Context, g ledger.NewGroup) (*ledger.Group, error)
	GetGroup(ctx context.Context, id string) (*ledger.Group, error)
	ListGroups(ctx context.Context, member string) ([]ledger.Group, error)

	AddExpense(ctx context.Context, e ledger.NewExpense) (*ledger.Expense, error)
	ListExpenses(ctx context.Context, groupID string) ([]ledger.Expense, error)

	RecordSettlement(ctx context.Context, s ledger.NewSettlement) (*ledger.Settlement, error)
	ListSettlements(ctx context.Context, groupID string) ([]ledger.Settlement, error)

	Balances(ctx context.Context, groupID string) ([]ledger.Balance, error)

	PutNonce(ctx context.Context, address, nonce string, expiresAt time.Time) error
	ConsumeNonce(ctx context.Context, address string) (string, error)
}

type API struct {
	router    *mux.Router
	server    *http.Server
	store     Store
	config    *config.Config
	notifier  notify.Notifier
	limiter   *rateLimiter
	metrics   *metrics
	jwtSecret []byte
	log       *log.Entry
}

type Option func(*API)

func WithNotifier(n notify.Notifier) Option {
	return func(a *API) { a.notifier = n }
}

func New(cfg *config.Config, store Store, opts ...Option) *API {
	api := &API{
		router:    mux.NewRouter(),
		store:     store,
		config:    cfg,
		notifier:  notify.Nop{},
		limiter:   newRateLimiter(cfg.RequestsPerSecond),
		metrics:   newMetrics(),
		jwtSecret: []byte(cfg.JWTSecret),
		log:       log.WithField("component", "api"),
	}
	for _, opt := range opts {
		opt(api)
	}

	api.setupRoutes()
	api.server = &http.Server{
		Addr:              cfg.WebBind,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return api
}

func (a *API) setupRoutes() {
	a.router.Use(a.metrics.instrument)

	a.router.HandleFunc("/healthz", a.handleHealth).Methods("GET")
	a.router.Handle("/metrics", promhttp.HandlerFor(a.metrics.registry, promhttp.HandlerOpts{})).Methods("GET")

	// Public endpoints
	public := a.router.PathPrefix("/api").Subrouter()
	public.Use(a.limiter.Handler)

	public.HandleFunc("/auth/nonce", a.handleNonce).Methods("POST")
	public.HandleFunc("/auth/verify", a.handleVerify).Methods("POST")

	public.HandleFunc("/groups", a.handleListGroups).Methods("GET")
	public.HandleFunc("/groups", a.handleCreateGroup).Methods("POST")
	public.HandleFunc("/groups/{id}/balances", a.handleBalances).Methods("GET")
	public.HandleFunc("/groups/{id}/plan", a.handlePlan).Methods("GET")
	public.HandleFunc("/expenses", a.handleListExpenses).Methods("GET")
	public.HandleFunc("/expenses", a.handleAddExpense).Methods("POST")
	public.HandleFunc("/settlements", a.handleListSettlements).Methods("GET")
	public.HandleFunc("/settlements", a.handleRecordSettlement).Methods("POST")

	// Protected endpoints
	protected := public.PathPrefix("/me").Subrouter()
	protected.Use(a.authMiddleware)

	protected.HandleFunc("/groups", a.handleMyGroups).Methods("GET")
}

// Handler is the router wrapped with CORS handling.
func (a *API) Handler() http.Handler {
	// Credentials cannot be combined with a wildcard origin.
	allowCredentials := true
	for _, o := range a.config.AllowedOrigins {
		if o == "*" {
			allowCredentials = false
		}
	}
	corsOptions := cors.Options{
		AllowedOrigins:   a.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: allowCredentials,
	}
	return cors.New(corsOptions).Handler(a.router)
}

func (a *API) Start() error {
	a.log.Infof("API server listening on http://%s", a.config.WebBind)
	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *API) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}
