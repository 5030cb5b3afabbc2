// Command gated runs a demonstration server with the request gate in front
// of a handful of sample routes.
//
// Configuration comes from GATE_* environment variables (see gatekit.FromEnv)
// plus:
//
//	PORT                 listen port (default 8080)
//	GATE_SESSION_SECRET  required; signing secret for session tokens
//	GATE_SESSION_DB      sqlite file for session storage; empty uses memory
//	GATE_STORE           "memory" forces the in-process counter store,
//	                     "off" disables rate limiting even with a Redis URL
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vidkb/gatekit"
	"github.com/vidkb/gatekit/session"
	"github.com/vidkb/gatekit/store"
)

func main() {
	cfg, err := gatekit.FromEnv()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	sessions, closeSessions, err := initSessions()
	if err != nil {
		log.Fatalf("failed to init session storage: %v", err)
	}
	defer closeSessions()

	counters, closeCounters, err := initCounters(cfg)
	if err != nil {
		log.Fatalf("failed to init counter store: %v", err)
	}
	defer closeCounters()

	opts := []gatekit.Option{gatekit.WithSessions(sessions)}
	if counters != nil {
		opts = append(opts, gatekit.WithStore(counters))
	} else {
		log.Println("rate limiting disabled: no counter store configured")
	}

	gate, err := gatekit.New(cfg, opts...)
	if err != nil {
		log.Fatalf("failed to create gate: %v", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(gate.Handler)

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"status":"ok"}`)
	})
	r.Get("/api/videos", func(w http.ResponseWriter, r *http.Request) {
		sess, _ := session.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"owner":%q,"videos":[]}`+"\n", sess.UserID)
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "welcome")
	})
	r.Get("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		sess, _ := session.FromContext(r.Context())
		fmt.Fprintf(w, "dashboard for %s\n", sess.Email)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Println("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

func initSessions() (*session.Manager, func(), error) {
	secret := os.Getenv("GATE_SESSION_SECRET")
	if secret == "" {
		return nil, nil, errors.New("GATE_SESSION_SECRET is required")
	}

	var backend session.Store
	if path := os.Getenv("GATE_SESSION_DB"); path != "" {
		db, err := session.NewSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		backend = db
	} else {
		backend = session.NewMemory()
	}

	closeFn := func() {
		if err := backend.Close(); err != nil {
			log.Printf("failed to close session storage: %v", err)
		}
	}
	return session.NewManager([]byte(secret), backend), closeFn, nil
}

func initCounters(cfg gatekit.Config) (store.Store, func(), error) {
	noop := func() {}

	switch os.Getenv("GATE_STORE") {
	case "off":
		return nil, noop, nil
	case "memory":
		mem := store.NewMemory()
		return mem, func() {
			if err := mem.Close(); err != nil {
				log.Printf("failed to close counter store: %v", err)
			}
		}, nil
	}

	if cfg.RedisURL == "" {
		return nil, noop, nil
	}

	rdb, err := store.NewRedis(store.RedisConfig{
		URL:      cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, nil, err
	}
	return rdb, func() {
		if err := rdb.Close(); err != nil {
			log.Printf("failed to close counter store: %v", err)
		}
	}, nil
}
