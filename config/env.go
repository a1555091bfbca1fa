package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by the binaries.
const (
	EnvDatasetTTL            = "SHOPPERINSIGHTS_DATASET_TTL"
	EnvMaxOpenDatasets       = "SHOPPERINSIGHTS_MAX_OPEN_DATASETS"
	EnvMaxConcurrentRequests = "SHOPPERINSIGHTS_MAX_CONCURRENT_REQUESTS"
	EnvModel                 = "SHOPPERINSIGHTS_MODEL"
	EnvLogLevel              = "SHOPPERINSIGHTS_LOG_LEVEL"
)

// Duration parses name as a Go duration ("10m", "90s"); unset, malformed or
// non-positive values yield def.
func Duration(name string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Int parses name as a positive integer, falling back to def.
func Int(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// String returns the trimmed value of name or def when unset.
func String(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}
