package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/trelloplus/bot-server-go/internal/alert"
	"github.com/trelloplus/bot-server-go/internal/audit"
	"github.com/trelloplus/bot-server-go/internal/bot"
	"github.com/trelloplus/bot-server-go/internal/config"
	"github.com/trelloplus/bot-server-go/internal/database"
	"github.com/trelloplus/bot-server-go/internal/dispatch"
	"github.com/trelloplus/bot-server-go/internal/handler"
	"github.com/trelloplus/bot-server-go/internal/lock"
	"github.com/trelloplus/bot-server-go/internal/redis"
	"github.com/trelloplus/bot-server-go/internal/repository"
	"github.com/trelloplus/bot-server-go/internal/repository/memory"
	"github.com/trelloplus/bot-server-go/internal/service"
	"github.com/trelloplus/bot-server-go/internal/session"
	"github.com/trelloplus/bot-server-go/internal/telegram"
	"github.com/trelloplus/bot-server-go/internal/trello"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg        *config.Config
	db         *database.DB
	redis      *redis.Client
	store      repository.Store
	telegram   *telegram.Client
	reporter   *alert.Reporter
	env        *session.Env
	pairing    *service.PairingService
	limiter    service.RateLimiter
	dispatcher *dispatch.Dispatcher
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setLogLevel(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newApp connects to the database and redis when configured and falls back
// to the in-memory store and process-local locks otherwise.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	if cfg.DatabaseURL != "" {
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db

		pingCtx, cancel := context.WithTimeout(ctx, config.DBPingTimeout)
		defer cancel()
		if err := db.Ping(pingCtx); err != nil {
			a.close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		a.store = repository.NewStore(db)
		log.Info().Msg("database connected")
	} else {
		a.store = memory.NewStore()
		log.Warn().Msg("DATABASE_URL is empty: using the in-memory store")
	}

	var locker lock.Locker
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		locker = lock.NewRedisLocker(client.Client)
		a.limiter = service.NewRedisRateLimiter(client.Client)
		log.Info().Msg("redis connected")
	} else {
		locker = lock.NewLocalLocker()
		a.limiter = service.NewLocalRateLimiter()
	}

	// Long polls share the client, so its timeout covers the poll window.
	tg, err := telegram.NewClient(cfg.TelegramAPIURL, cfg.TelegramBotToken,
		telegram.WithHTTPClient(&http.Client{Timeout: cfg.PollTimeout() + config.APIRequestTimeout}),
		telegram.WithRateLimit(cfg.TelegramRatePerSec),
		telegram.WithRetryPolicy(config.APIMaxRetries, config.APIMaxRetryWait),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	a.telegram = tg

	botName := cfg.TelegramBotName
	if botName == "" {
		botName = a.telegram.Self().UserName
	}

	a.reporter = alert.NewReporter(a.telegram, cfg.ErrorLogGroupID, botName)
	a.env = &session.Env{
		Messenger:      a.telegram,
		Alerter:        a.reporter,
		Admins:         cfg.Admins,
		FeedbackChatID: cfg.FeedbackGroupID,
		Debug:          cfg.Debug,
	}
	a.pairing = service.NewPairingService(a.store.PairingTokens(), botName)

	b, err := bot.New(
		trello.NewClient(cfg.TrelloAPIKey, cfg.TrelloAppName),
		service.NewTrelloTokens(cfg.EncryptionKey),
		a.pairing,
		cfg.TokenReturnURL(),
	)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create bot: %w", err)
	}

	a.dispatcher = dispatch.New(
		b.Registry(),
		session.NewResolver(a.env),
		a.store,
		locker,
		audit.NewExecutionLogger(cfg.Testing),
		dispatch.WithChecks(b.Checks),
		dispatch.WithLockTimeout(cfg.LockTimeout()),
		dispatch.WithUnderConstruction(cfg.UnderConstruction),
	)
	return a, nil
}

func (a *app) healthChecks() map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{}
	if a.db != nil {
		checks["database"] = a.db.Ping
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		}
	}
	return checks
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close redis")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close database")
		}
	}
}
