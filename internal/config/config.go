package config

// Header constants.
const (
	HEADER_KEY_X_SESSION_TOKEN = "X-Session-Token"
)

// Cookie constants.
const (
	COOKIE_KEY_SESSION_TOKEN = "session_token"
)

const (
	ENV_KEY_APP_ENV   = "APP_ENV"
	ENV_KEY_PORT      = "PORT"
	ENV_KEY_LOG_LEVEL = "LOG_LEVEL"

	ENV_KEY_DB_DATABASE             = "DB_DATABASE"
	ENV_KEY_DB_PASSWORD             = "DB_PASSWORD"
	ENV_KEY_DB_USER                 = "DB_USER"
	ENV_KEY_DB_PORT                 = "DB_PORT"
	ENV_KEY_DB_HOST                 = "DB_HOST"
	ENV_KEY_DB_MAX_OPEN_CONNECTIONS = "DB_MAX_OPEN_CONNECTIONS"

	ENV_KEY_REDIS_HOST     = "REDIS_HOST"
	ENV_KEY_REDIS_PORT     = "REDIS_PORT"
	ENV_KEY_REDIS_PASSWORD = "REDIS_PASSWORD"

	ENV_KEY_WORKER_CONCURRENCY = "WORKER_CONCURRENCY"

	// Overrides the default 5 minute reservation lease, in seconds.
	ENV_KEY_RESERVATION_LEASE_SECONDS = "RESERVATION_LEASE_SECONDS"
)

type ContextKey uint

const (
	_ ContextKey = iota
	CTX_KEY_SESSION_TOKEN
)
