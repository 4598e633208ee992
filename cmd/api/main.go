package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Mug56-sys/dashboard/internal/auth"
	"github.com/Mug56-sys/dashboard/internal/config"
	"github.com/Mug56-sys/dashboard/internal/data"
	"github.com/Mug56-sys/dashboard/internal/db"
	"github.com/Mug56-sys/dashboard/internal/logging"
	"github.com/Mug56-sys/dashboard/internal/notify"
	"github.com/Mug56-sys/dashboard/internal/session"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env, cfg.LogLevel)

	if cfg.MongoURI == "" {
		logger.Fatal().Msg("MONGODB_URI must be set")
	}
	if cfg.JWTKeys == "" && cfg.JWTSecret == "" {
		logger.Fatal().Msg("either JWT_SECRET or JWT_KEYS must be set")
	}

	ctx := context.Background()

	// Initialize database
	dbClient, err := db.New(ctx, cfg.MongoURI)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to DB")
	}
	defer func() {
		_ = dbClient.Close(context.Background())
	}()

	// Ensure indexes exist
	if err := dbClient.CreateIndexes(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to create indexes")
	}

	// Initialize the token manager. If JWT_KEYS is supplied we parse
	// kid:secret pairs so rotation is possible; otherwise fall back to
	// the single JWT_SECRET value.
	var jwtMgr *auth.JWTManager
	if cfg.JWTKeys != "" {
		keyMap := map[string]string{}
		for _, p := range strings.Split(cfg.JWTKeys, ",") {
			if p == "" {
				continue
			}
			parts := strings.SplitN(p, ":", 2)
			if len(parts) != 2 {
				logger.Fatal().Str("entry", p).Msg("invalid JWT_KEYS entry")
			}
			keyMap[parts[0]] = parts[1]
		}
		jwtMgr = auth.NewJWTManagerFromKeys(keyMap, cfg.JWTActiveKid, cfg.TokenTTL)
	} else {
		jwtMgr = auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	}

	// Session store in Redis
	sessions, err := session.NewRedisStore(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer func() {
		_ = sessions.Close()
	}()

	// Stores and the identity provider
	usersStore := data.NewUsersStore(dbClient.UsersCollection())
	chatsStore := data.NewChatsStore(dbClient.ChatsCollection())
	provider := session.NewProvider(usersStore, jwtMgr, sessions)

	// Notification fan-out: per-user alert throttling, the recency
	// gate, and the hub connected clients register their sinks with.
	limiterStore := notify.NewLimiterStore(cfg.RateLimitRPM, 3, 1*time.Minute)
	defer limiterStore.Stop()
	hub := notify.NewHub()
	alerter := notify.NewAlerter(cfg.NotifyRecentWindow, limiterStore)
	observer := notify.NewObserver(logger, dbClient.MessagesCollection(), usersStore, chatsStore, hub, alerter)

	runCtx, stopObserver := context.WithCancel(ctx)
	defer stopObserver()

	// When a session ends, drop that user's alert sinks so the hub does
	// not keep pushing to clients whose identity has logged out.
	events, cancelEvents := provider.Subscribe()
	defer cancelEvents()
	go func() {
		for ev := range events {
			if !ev.LoggedIn {
				hub.DisconnectUser(ev.Identity.ID)
				logger.Info().Str("user", ev.Identity.ID).Msg("session ended, sinks dropped")
			}
		}
	}()

	go func() {
		if err := observer.Run(runCtx); err != nil {
			logger.Error().Err(err).Msg("notification observer exited")
		}
	}()

	logger.Info().Msg("dashboard core running")

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")
	stopObserver()
}
