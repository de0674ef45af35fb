package main

// Upstream local para testar o gateway sem a aplicação real: responde com o
// path e a action que chegaram depois da reescrita.
//
//	LISTEN_ADDR=:3000 go run ./cmd/example-server
//	UPSTREAM_URL=http://localhost:3000 go run ./cmd/gateway

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admission-gateway/internal/logging"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type echoBody struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Action   string `json:"action,omitempty"`
	Query    string `json:"query,omitempty"`
	ClientIP string `json:"clientIp,omitempty"`
}

func echoHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := echoBody{
			Method:   r.Method,
			Path:     r.URL.Path,
			Action:   r.URL.Query().Get("action"),
			Query:    r.URL.RawQuery,
			ClientIP: r.Header.Get("X-Forwarded-For"),
		}
		logger.Debug("request received", zap.String("path", body.Path), zap.String("action", body.Action))

		out, err := sonic.Marshal(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(out)
	}
}

func newRouter(logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Handle("/*", echoHandler(logger))
	return r
}

func main() {
	logger, err := logging.New(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	addr := ":3000"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(logger.Named("example-server")),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("example server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
