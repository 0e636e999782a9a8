// Package app wires the sync core together and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/akilamadhufin/lets-donate-mobile-app/internal/api"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/config"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/db"
	apperrors "github.com/akilamadhufin/lets-donate-mobile-app/internal/errors"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/logging"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/models"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/network"
	syncpkg "github.com/akilamadhufin/lets-donate-mobile-app/internal/sync"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/sync/conflict"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/sync/scheduler"
)

// State is what the UI shows in its status banner.
type State struct {
	Initialized bool `json:"initialized"`
	IsOnline    bool `json:"is_online"`
	IsSyncing   bool `json:"is_syncing"`
}

// Option customizes New.
type Option func(*options)

type options struct {
	prober network.Prober
	log    *logging.Logger
}

// WithProber replaces the HTTP reachability probe.
func WithProber(p network.Prober) Option {
	return func(o *options) {
		o.prober = p
	}
}

// WithLogger sets the logger of the engine.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// App is the single owner of the store, engine and scheduler.
type App struct {
	cfg       *config.Config
	database  *db.DB
	store     *db.Repository
	client    *api.Client
	monitor   *network.Monitor
	engine    *syncpkg.SyncEngine
	scheduler *scheduler.Scheduler

	initialized atomic.Bool
	closeOnce   sync.Once
	closeErr    error
}

// New opens and migrates the local store and builds the sync services.
// Nothing touches the network until Start.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	o := options{log: logging.Get()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.prober == nil {
		o.prober = network.NewNetProber(cfg.Network.ProbeURL, cfg.Network.ProbeTimeout)
	}

	database, err := db.Open(cfg.DB.Dir)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database.DB); err != nil {
		database.Close()
		return nil, apperrors.Wrap(apperrors.ErrMigration, "migrate local store", err)
	}

	store := db.NewRepository(database.DB, db.WithMaxRetries(cfg.Sync.MaxRetries))
	client := api.NewClient(cfg.Server.URL, cfg.Server.RequestTimeout)
	monitor := network.NewMonitor(o.prober)
	engine := syncpkg.NewSyncEngine(store, client, monitor,
		syncpkg.WithStrategy(conflict.StrategyFor(cfg.Sync.PreserveUnsynced)),
		syncpkg.WithLogger(o.log),
	)
	sched := scheduler.NewScheduler(engine, monitor, &scheduler.SchedulerConfig{
		PollInterval: cfg.Sync.PollInterval,
	})

	o.log.Info("Local store ready", map[string]interface{}{
		"dir":    cfg.DB.Dir,
		"server": cfg.Server.URL,
	})

	return &App{
		cfg:       cfg,
		database:  database,
		store:     store,
		client:    client,
		monitor:   monitor,
		engine:    engine,
		scheduler: sched,
	}, nil
}

// Start checks connectivity once, syncs when online and starts the
// background poller. A failed first sync is logged, not returned.
func (a *App) Start(ctx context.Context) error {
	if a.initialized.Load() {
		return nil
	}
	if a.monitor.CheckOnlineStatus(ctx) {
		if _, err := a.engine.SyncAll(ctx); err != nil {
			logging.Warn("Initial sync failed", map[string]interface{}{"error": err.Error()})
		}
	}
	a.scheduler.Start(ctx)
	a.initialized.Store(true)
	return nil
}

// State returns the current status snapshot.
func (a *App) State() State {
	return State{
		Initialized: a.initialized.Load(),
		IsOnline:    a.monitor.IsOnline(),
		IsSyncing:   a.engine.IsSyncing(),
	}
}

// TriggerSync runs a full pass now and waits for it.
func (a *App) TriggerSync(ctx context.Context) (*syncpkg.SyncResult, error) {
	return a.scheduler.SyncNow(ctx)
}

// Login authenticates against the server and caches the account.
func (a *App) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "email and password are required")
	}
	u, err := a.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := a.store.SaveUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Register creates the account on the server and caches it. Sign-up needs
// the server, so it is never queued.
func (a *App) Register(ctx context.Context, reg models.Registration) (*models.User, error) {
	reg.Email = strings.TrimSpace(reg.Email)
	if reg.Email == "" || reg.Password == "" || strings.TrimSpace(reg.Firstname) == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "firstname, email and password are required")
	}
	u, err := a.client.Register(ctx, reg)
	if err != nil {
		return nil, err
	}
	if u.Email == "" {
		u.Email = reg.Email
	}
	if err := a.store.SaveUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Logout wipes every cached row, including unsent queue entries.
func (a *App) Logout(ctx context.Context) error {
	return a.store.ClearAllData(ctx)
}

// Engine returns the sync engine.
func (a *App) Engine() *syncpkg.SyncEngine { return a.engine }

// Store returns the local store.
func (a *App) Store() *db.Repository { return a.store }

// Monitor returns the connectivity monitor.
func (a *App) Monitor() *network.Monitor { return a.monitor }

// Client returns the REST client.
func (a *App) Client() *api.Client { return a.client }

// Scheduler returns the background scheduler.
func (a *App) Scheduler() *scheduler.Scheduler { return a.scheduler }

// Config returns the configuration the app was built with.
func (a *App) Config() *config.Config { return a.cfg }

// Close stops the scheduler and closes the store. Safe to call twice.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.scheduler.Stop()
		if err := a.store.Close(); err != nil {
			a.closeErr = fmt.Errorf("close statements: %w", err)
		}
		if err := a.database.Close(); err != nil && a.closeErr == nil {
			a.closeErr = fmt.Errorf("close database: %w", err)
		}
		a.initialized.Store(false)
	})
	return a.closeErr
}
