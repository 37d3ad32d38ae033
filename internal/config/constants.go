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
	ServerRequestTimeout  = 90 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const (
	CleanupJobInterval    = 1 * time.Hour
	NotificationRetention = 90 * 24 * time.Hour
	ReminderGuardTTL      = 36 * time.Hour
	ReminderSweepTimeout  = 30 * time.Minute
)

// Connection status waits
const (
	FirstConnectWait = 30 * time.Second
	ReconnectWait    = 60 * time.Second
)

// Inbound handling
const (
	InboundHandleTimeout = 90 * time.Second
	ActivationCodeTTL    = 5 * time.Minute
)

// Default rate limiting
const (
	DefaultRateLimitPerMin  = 60
	ActivationAttemptLimit  = 5
	ActivationAttemptWindow = 10 * time.Minute
)

// SharedIdentityKey is the registry key used in shared mode.
const SharedIdentityKey = "default"
