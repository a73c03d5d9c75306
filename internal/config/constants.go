package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerWriteTimeout    = 75 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Dispatch
const (
	MaxDispatchRestarts = 10
	LockTTL             = 2 * time.Minute
	LockRetryInterval   = 50 * time.Millisecond
	LastActiveInterval  = time.Minute
)

// Pairing tokens handed over from the Trello authorization page
const (
	PairingTokenTTL       = 24 * time.Hour
	PairingTokenMaxLength = 100
)

// Telegram Bot API and HTTP surfaces
const (
	WebhookHashLength    = 32
	MaxMessageLength     = 4096
	APIMaxRetries        = 3
	APIMaxRetryWait      = 30 * time.Second
	APIRequestTimeout    = 40 * time.Second
	PollErrorBackoff     = 3 * time.Second
	BroadcastBatchSize   = 100
	CleanupTimeout       = 30 * time.Second
	TokenRateLimit       = 20
	TokenRateLimitWindow = time.Minute
)

// Admin API
const (
	AdminUsername         = "admin"
	AdminLoginMaxAttempts = 5
	AdminLoginWindow      = time.Minute
	AdminPageDefaultLimit = 50
	AdminPageMaxLimit     = 500
)

const MaxWebhookBodySize = 1 << 20
