package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"
)

// Chain applies middlewares in order: the first one is the outermost.
type Chain []func(http.Handler) http.Handler

func (c Chain) Then(h http.Handler) http.Handler {
	for i := len(c) - 1; i >= 0; i-- {
		h = c[i](h)
	}
	return h
}

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}

				slog.Error("panic caught",
					slog.String("method", r.Method),
					slog.String("request_uri", r.URL.RequestURI()),
					slog.Any("panic", p),
					slog.String("stacktrace", string(debug.Stack())),
				)

				w.WriteHeader(http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter

	status  int
	written int
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.status = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
			next.ServeHTTP(w, r)
			return
		}

		schema := "http"
		if r.TLS != nil {
			schema = "https"
		}

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		now := time.Now()

		next.ServeHTTP(rw, r)

		slog.Debug("request served",
			slog.Duration("delay", time.Since(now)),
			slog.String("method", r.Method),
			slog.String("schema", schema),
			slog.String("uri", r.URL.RequestURI()),
			slog.String("request_id", r.Header.Get("X-Request-ID")),
			slog.Int("status", rw.status),
			slog.Int("response_length", rw.written),
		)
	})
}
