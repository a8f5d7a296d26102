package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/api"
	"github.com/MrEthical07/goSession/events"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// credentialsKey holds the access token between invocations. It lives next
// to the session projections and is removed on logout.
const credentialsKey = "cli-credentials"

type credentials struct {
	AccessToken string `json:"accessToken"`
}

// app is the per-invocation wiring shared by every subcommand.
type app struct {
	cfg     *cliConfig
	logger  zerolog.Logger
	out     io.Writer
	client  *api.Client
	manager *goSession.Manager
	backend session.Backend
	creds   *session.Store

	closers []func()
}

func newLogger(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: newLogger(cfg.LogLevel, cmd.ErrOrStderr()),
		out:    cmd.OutOrStdout(),
	}

	// -------- STORAGE --------
	addr := cfg.RedisAddr
	if cfg.Ephemeral {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start ephemeral redis: %w", err)
		}
		a.closers = append(a.closers, mr.Close)
		addr = mr.Addr()
		a.logger.Debug().Str("addr", addr).Msg("using ephemeral redis")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	a.closers = append(a.closers, func() { _ = rdb.Close() })

	backend := session.NewRedisBackend(rdb)
	pctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
	defer cancel()
	if _, err := backend.Ping(pctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	a.backend = backend
	a.creds = session.NewStore(backend, cfg.Prefix, 0)

	// -------- TRANSPORT --------
	bridge := events.NewBridge()
	client, err := api.NewClient(cfg.APIURL, api.Options{
		Transport: &middleware.FeatureGateTransport{Publisher: bridge},
		Timeout:   cfg.RequestTimeout(),
		Logger:    &a.logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.client = client

	// -------- MANAGER --------
	sessionCfg := goSession.DefaultConfig()
	sessionCfg.Persistence.Prefix = cfg.Prefix
	sessionCfg.Permission.FetchTimeout = cfg.RequestTimeout()
	m, err := goSession.New().
		WithConfig(sessionCfg).
		WithAuthAPI(client).
		WithBackend(backend).
		WithEventBridge(bridge).
		WithLogger(a.logger).
		Build()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.manager = m
	a.closers = append(a.closers, m.Close)

	return a, nil
}

// restore loads the persisted session and the stored access token.
func (a *app) restore(ctx context.Context) error {
	if err := a.manager.Load(ctx); err != nil {
		return err
	}
	var c credentials
	if _, err := a.creds.Load(ctx, credentialsKey, &c); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load credentials: %w", err)
	}
	a.client.SetAccessToken(c.AccessToken)
	return nil
}

// saveCredentials stores the access token held by the client. The key
// expires with the token when its expiry can be read.
func (a *app) saveCredentials(ctx context.Context) error {
	token := a.client.AccessToken()
	if token == "" {
		return a.creds.Delete(ctx, credentialsKey)
	}
	store := a.creds
	if claims, err := jwt.Inspect(token); err == nil && !claims.ExpiresAt.IsZero() {
		ttl := time.Until(claims.ExpiresAt)
		if ttl <= 0 {
			return a.creds.Delete(ctx, credentialsKey)
		}
		store = session.NewStore(a.backend, a.cfg.Prefix, ttl)
	}
	return store.Save(ctx, credentialsKey, credentials{AccessToken: token})
}

func (a *app) clearCredentials(ctx context.Context) error {
	return a.creds.Delete(ctx, credentialsKey)
}

// Close releases everything newApp opened, in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
