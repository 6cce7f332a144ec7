package config

import "errors"

// Sentinel errors returned by Validate and the loaders
var (
	ErrConfigNotFound      = errors.New("configuration file not found")
	ErrInvalidBaseURL      = errors.New("base URL must be an absolute http(s) URL")
	ErrInvalidTimeout      = errors.New("timeout must be positive")
	ErrInvalidDelay        = errors.New("request delay cannot be negative")
	ErrInvalidRetries      = errors.New("retries cannot be negative")
	ErrInvalidConcurrency  = errors.New("concurrency must be at least 1")
	ErrInvalidMaxDetails   = errors.New("max details cannot be negative")
	ErrInvalidMaxPages     = errors.New("max pages cannot be negative")
	ErrInvalidGridPageSize = errors.New("grid page size must be at least 1")
	ErrInvalidMode         = errors.New("mode must be one of auto, html, grid")
	ErrInvalidFormat       = errors.New("format must be one of xlsx, csv")
	ErrInvalidCacheTTL     = errors.New("filter cache TTL cannot be negative")
)
