package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

func LookupEnvString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func LookupEnvInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("can't parse env, using default", slog.String("key", key), slog.Any("error", err))
		return def
	}
	return i
}

func LookupEnvBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("can't parse env, using default", slog.String("key", key), slog.Any("error", err))
		return def
	}
	return b
}

func LookupEnvDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("can't parse env, using default", slog.String("key", key), slog.Any("error", err))
		return def
	}
	return d
}
