package config

// SentryConfig defines settings for Sentry error reporting. An empty DSN
// leaves reporting disabled.
type SentryConfig struct {
	DSN              string  `json:"dsn"`
	Environment      string  `json:"environment"`
	Release          string  `json:"release"`
	TracesSampleRate float64 `json:"traces_sample_rate"`
}
