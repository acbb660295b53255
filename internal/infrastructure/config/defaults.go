package config

import "time"

const (
	DefaultHTTPPort        = "8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultRequestTimeout  = 10 * time.Second
	DefaultPGMaxConns      = 5
	DefaultPGMinConns      = 1
	DefaultHistoryLimit    = 24
	MaxHistoryLimit        = 500
	DefaultCacheMaxCost    = 1 << 10
)
