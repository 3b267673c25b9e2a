package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jrsteele09/airdrop-session/auth"
	"github.com/jrsteele09/airdrop-session/authctx"
	"github.com/jrsteele09/airdrop-session/backend"
	"github.com/jrsteele09/airdrop-session/internal/config"
	"github.com/jrsteele09/airdrop-session/navigation"
	"github.com/jrsteele09/airdrop-session/session"
	"github.com/jrsteele09/airdrop-session/storage"
	"github.com/jrsteele09/airdrop-session/storage/filestore"
	"github.com/jrsteele09/airdrop-session/storage/memstore"
	"github.com/jrsteele09/airdrop-session/storage/redisstore"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// App is everything a command needs, built once per invocation
type App struct {
	cfg      config.Config
	out      Formatter
	store    storage.Store
	api      *backend.Client
	manager  *authctx.Manager
	sessions *session.Store
	nav      *navigation.Recorder
	auth     *auth.Service
	logger   zerolog.Logger
}

// NewApp wires the client stack over store
func NewApp(cfg config.Config, store storage.Store, out Formatter) (*App, error) {
	logger := log.Logger
	api := backend.New(cfg.GetAPIURL(), backend.WithTimeout(cfg.GetHTTPTimeout()), backend.WithLogger(logger))

	manager, err := authctx.New(store, api, authctx.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("[cli NewApp] %w", err)
	}

	nav := navigation.NewRecorder()
	sessions := session.NewStore(store)
	svc, err := auth.NewService(api, manager, nav, auth.WithOAuthSessions(sessions), auth.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("[cli NewApp] %w", err)
	}

	return &App{
		cfg:      cfg,
		out:      out,
		store:    store,
		api:      api,
		manager:  manager,
		sessions: sessions,
		nav:      nav,
		auth:     svc,
		logger:   logger,
	}, nil
}

// Close releases the storage backend if it holds a connection
func (a *App) Close() error {
	if c, ok := a.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// OpenStore opens the configured storage driver. driver overrides the config when set.
func OpenStore(ctx context.Context, cfg config.StorageConfig, driver string) (storage.Store, error) {
	if driver == "" {
		driver = cfg.GetStorageDriver()
	}
	return storage.Open(strings.ToLower(driver), map[string]storage.Opener{
		"memory": func() (storage.Store, error) {
			return memstore.New(), nil
		},
		"file": func() (storage.Store, error) {
			var options []filestore.Option
			if key := cfg.GetStorageKey(); key != "" {
				options = append(options, filestore.WithHexKey(key))
			}
			fs, err := filestore.New(cfg.GetStoragePath(), options...)
			if err != nil {
				return nil, err
			}
			return fs, nil
		},
		"redis": func() (storage.Store, error) {
			rs, err := redisstore.Dial(ctx, cfg.GetRedisAddr(), cfg.GetRedisPassword(), cfg.GetRedisDB(), cfg.GetRedisPrefix())
			if err != nil {
				return nil, err
			}
			return rs, nil
		},
	})
}

// setupLogging configures the global zerolog logger. DEV gets a console writer.
func setupLogging(cfg config.EnvConfig, w io.Writer) {
	level, err := zerolog.ParseLevel(cfg.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if w == nil {
		w = os.Stderr
	}
	if cfg.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})
		return
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// navigated reports where the last flow would have taken the browser
func (a *App) navigated() string {
	return a.nav.Last()
}
