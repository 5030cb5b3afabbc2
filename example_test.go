package gatekit_test

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vidkb/gatekit"
	"github.com/vidkb/gatekit/session"
	"github.com/vidkb/gatekit/store"
)

func ExampleNew() {
	sessions := session.NewManager([]byte("signing-secret"), session.NewMemory())

	counters := store.NewMemory()
	defer counters.Close()

	gate, err := gatekit.New(gatekit.DefaultConfig(),
		gatekit.WithSessions(sessions),
		gatekit.WithStore(counters),
	)
	if err != nil {
		panic(err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer) // the gate re-raises infrastructure failures
	r.Use(gate.Handler)

	r.Get("/api/videos", func(w http.ResponseWriter, r *http.Request) {
		// Only reached with a valid session attached.
		sess, _ := session.FromContext(r.Context())
		_ = sess.UserID
	})
}

func ExampleNew_failOpen() {
	sessions := session.NewManager([]byte("signing-secret"), session.NewMemory())

	// No counter store: authentication still enforced, rate limiting off.
	gate, err := gatekit.New(gatekit.DefaultConfig(),
		gatekit.WithSessions(sessions),
	)
	if err != nil {
		panic(err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(gate.Handler)
}

func ExampleNew_customRules() {
	sessions := session.NewManager([]byte("signing-secret"), session.NewMemory())

	// Extra rules ahead of the stock table; first match wins.
	rules := append([]gatekit.Rule{
		{Exact: "/api/status", Class: gatekit.ClassPublicAPI},
		{Prefix: "/docs/", Class: gatekit.ClassPublicPage},
	}, gatekit.DefaultRules()...)

	cfg := gatekit.DefaultConfig()
	cfg.Limits.API = gatekit.Limit{MaxRequests: 100, Window: time.Minute}

	gate, err := gatekit.New(cfg,
		gatekit.WithSessions(sessions),
		gatekit.WithClassifier(gatekit.NewClassifier(rules)),
	)
	if err != nil {
		panic(err)
	}

	r := chi.NewRouter()
	r.Use(gate.Handler)
}
