package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akilamadhufin/lets-donate-mobile-app/internal/config"
	apperrors "github.com/akilamadhufin/lets-donate-mobile-app/internal/errors"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/logging"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/models"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/network"
)

// fakeBackend serves the donation list and login of the REST API.
func fakeBackend(t *testing.T, listed *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/donations", func(w http.ResponseWriter, r *http.Request) {
		listed.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"_id":"d1","title":"Chair","category":"Furniture","userId":"u1","available":true}]`))
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"user":{"_id":"u1","firstname":"Ada","email":"ada@example.com"}}`))
	})
	mux.HandleFunc("POST /users", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true,"user":{"_id":"u2","firstname":"` + r.FormValue("firstname") + `"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, serverURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Server:  config.ServerConfig{URL: serverURL, RequestTimeout: 5 * time.Second},
		DB:      config.DBConfig{Dir: t.TempDir()},
		Sync:    config.SyncConfig{PollInterval: time.Hour, MaxRetries: 3},
		Network: config.NetworkConfig{ProbeURL: serverURL, ProbeTimeout: time.Second},
	}
}

func onlineProber(online *atomic.Bool) network.Prober {
	return network.ProberFunc(func(context.Context) (bool, error) {
		return online.Load(), nil
	})
}

func TestApp_StartSyncsWhenOnline(t *testing.T) {
	var listed atomic.Int32
	srv := fakeBackend(t, &listed)
	var online atomic.Bool
	online.Store(true)

	a, err := New(testConfig(t, srv.URL), WithProber(onlineProber(&online)), WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer a.Close()

	assert.False(t, a.State().Initialized)
	require.NoError(t, a.Start(context.Background()))

	state := a.State()
	assert.True(t, state.Initialized)
	assert.True(t, state.IsOnline)
	assert.False(t, state.IsSyncing)
	assert.EqualValues(t, 1, listed.Load())

	got, err := a.Store().GetDonationByServerID(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "Chair", got.Title)
}

func TestApp_StartOffline(t *testing.T) {
	var listed atomic.Int32
	srv := fakeBackend(t, &listed)
	var online atomic.Bool

	a, err := New(testConfig(t, srv.URL), WithProber(onlineProber(&online)), WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Start(context.Background()))
	assert.True(t, a.State().Initialized)
	assert.False(t, a.State().IsOnline)
	assert.Zero(t, listed.Load())

	online.Store(true)
	result, err := a.TriggerSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Downloaded)
}

func TestApp_LoginLogout(t *testing.T) {
	var listed atomic.Int32
	srv := fakeBackend(t, &listed)
	var online atomic.Bool
	online.Store(true)

	a, err := New(testConfig(t, srv.URL), WithProber(onlineProber(&online)), WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer a.Close()
	ctx := context.Background()

	_, err = a.Login(ctx, " ", "pw")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	u, err := a.Login(ctx, "ada@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ServerID)

	cached, err := a.Store().GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada", cached.Firstname)

	require.NoError(t, a.Logout(ctx))
	users, err := a.Store().ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestApp_Register(t *testing.T) {
	var listed atomic.Int32
	srv := fakeBackend(t, &listed)
	var online atomic.Bool
	online.Store(true)

	a, err := New(testConfig(t, srv.URL), WithProber(onlineProber(&online)), WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer a.Close()
	ctx := context.Background()

	_, err = a.Register(ctx, models.Registration{Email: "grace@example.com", Password: "pw"})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	u, err := a.Register(ctx, models.Registration{Firstname: "Grace", Email: " grace@example.com ", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "u2", u.ServerID)

	cached, err := a.Store().GetUserByServerID(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", cached.Email)
	assert.Equal(t, "Grace", cached.Firstname)
}

func TestApp_CloseTwice(t *testing.T) {
	var online atomic.Bool
	a, err := New(testConfig(t, "http://127.0.0.1:1"), WithProber(onlineProber(&online)), WithLogger(logging.Discard()))
	require.NoError(t, err)

	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.False(t, a.State().Initialized)
}
