package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/akilamadhufin/lets-donate-mobile-app/internal/app"
	apperrors "github.com/akilamadhufin/lets-donate-mobile-app/internal/errors"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/logging"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/metrics"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/models"
	syncpkg "github.com/akilamadhufin/lets-donate-mobile-app/internal/sync"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/sync/scheduler"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run background sync and serve its status to a local UI",
		Long: `Start the sync scheduler and an HTTP server on localhost. The server
exposes the sync state, the queue, cart booking and Prometheus metrics, and
pushes sync and connectivity events over a WebSocket at /ws.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				opts.cfg.Serve.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return opts.withApp(ctx, serve)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default serve.addr)")
	return cmd
}

// serve runs the app and the status server until ctx is done.
func serve(ctx context.Context, a *app.App) error {
	metrics.Register()

	hub := NewWSHub(a.Config().Serve.AllowedOrigins)
	defer hub.Close()
	defer a.Engine().Subscribe(hub.PublishSyncEvent)()
	defer a.Monitor().OnChange(hub.PublishConnectivity)()

	srv := &http.Server{
		Addr:              a.Config().Serve.Addr,
		Handler:           newRouter(a, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info("Status server listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := a.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logging.Info("Shutting down status server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// statusHandler serves the local status API.
type statusHandler struct {
	app *app.App
}

type statusResponse struct {
	app.State
	Scheduler      scheduler.SchedulerStatus `json:"scheduler"`
	PendingChanges int                       `json:"pending_changes"`
	LastSync       *time.Time                `json:"last_sync,omitempty"`
	LastError      string                    `json:"last_error,omitempty"`
}

func newRouter(a *app.App, hub *WSHub) http.Handler {
	h := &statusHandler{app: a}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", h.Health)
	mux.HandleFunc("GET /api/status", h.Status)
	mux.HandleFunc("POST /api/sync", h.Sync)
	mux.HandleFunc("GET /api/queue", h.Queue)
	mux.HandleFunc("GET /api/cart/{userID}", h.Cart)
	mux.HandleFunc("POST /api/cart/{userID}/items/{itemID}", h.Book)
	mux.HandleFunc("DELETE /api/cart/{userID}/items/{itemID}", h.Unbook)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/ws", hub.HandleWebSocket)

	return cors.New(cors.Options{
		AllowedOrigins: a.Config().Serve.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(mux)
}

// Health handles GET /api/health
func (h *statusHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Status handles GET /api/status
func (h *statusHandler) Status(w http.ResponseWriter, r *http.Request) {
	engine := h.app.Engine()
	pending, err := engine.PendingChanges(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	resp := statusResponse{
		State:          h.app.State(),
		Scheduler:      h.app.Scheduler().GetStatus(),
		PendingChanges: pending,
		LastSync:       engine.LastSync(),
	}
	if err := engine.LastError(); err != nil {
		resp.LastError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Sync handles POST /api/sync and waits for the pass to finish.
func (h *statusHandler) Sync(w http.ResponseWriter, r *http.Request) {
	result, err := h.app.TriggerSync(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, struct {
			Error  string              `json:"error"`
			Result *syncpkg.SyncResult `json:"result,omitempty"`
		}{err.Error(), result})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Queue handles GET /api/queue?status=
func (h *statusHandler) Queue(w http.ResponseWriter, r *http.Request) {
	status := models.QueueStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.QueueStatusPending, models.QueueStatusFailed, models.QueueStatusCompleted:
	default:
		writeError(w, http.StatusBadRequest, errors.New("unknown status "+string(status)))
		return
	}
	items, err := h.app.Store().ListSyncItems(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if items == nil {
		items = []*models.SyncQueueEntry{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Cart handles GET /api/cart/{userID}
func (h *statusHandler) Cart(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Engine().GetCart(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if items == nil {
		items = []*models.CartItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Book handles POST /api/cart/{userID}/items/{itemID}
func (h *statusHandler) Book(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.Engine().BookItem(r.Context(), r.PathValue("userID"), r.PathValue("itemID"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Unbook handles DELETE /api/cart/{userID}/items/{itemID}
func (h *statusHandler) Unbook(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.Engine().RemoveFromCart(r.Context(), r.PathValue("userID"), r.PathValue("itemID"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func statusFor(err error) int {
	if apperrors.Is(err, apperrors.ErrValidation) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
