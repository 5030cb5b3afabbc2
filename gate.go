// The edge request gate. Runs once per inbound request, ahead of every
// business route handler, and decides in strict order: correlation id,
// public short-circuit, authentication, non-API pass-through, rate limit.
//
// Basic usage:
//
//	gate, err := gatekit.New(gatekit.DefaultConfig(),
//	    gatekit.WithSessions(sessions),
//	    gatekit.WithStore(counters),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	r := chi.NewRouter()
//	r.Use(middleware.Recoverer) // the gate re-raises infrastructure failures
//	r.Use(gate.Handler)
//
// The gate resolves authentication and rate-limit decisions itself, writing
// terminal 401/302/429 responses. Anything else that goes wrong (session
// storage down, counter store timing out) is logged with full context and
// then re-raised as a panic: pair the gate with a recovery middleware so the
// host framework's default error handling produces the 500. The gate never
// synthesizes a 500 body and never continues past a failure it cannot
// classify.
package gatekit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nhalm/canonlog"

	"github.com/vidkb/gatekit/session"
	"github.com/vidkb/gatekit/store"
)

// Rate-limit response headers. Reset is epoch seconds.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

const apiPrefix = "/api/"

// Gate is the edge request gate middleware.
type Gate struct {
	cfg      Config
	rules    *Classifier
	sessions session.Validator
	counters store.Store
	now      func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithSessions sets the authoritative session validator. Required unless
// every route in the rule table is public.
func WithSessions(v session.Validator) Option {
	return func(g *Gate) {
		g.sessions = v
	}
}

// WithStore sets the rate-limit counter store. A gate without a store fails
// open: all traffic passes unthrottled and no X-RateLimit-* headers are set.
// This is the explicit "rate limiting disabled" state, not an error path.
func WithStore(st store.Store) Option {
	return func(g *Gate) {
		g.counters = st
	}
}

// WithClassifier replaces the default route classification table.
func WithClassifier(c *Classifier) Option {
	return func(g *Gate) {
		g.rules = c
	}
}

// New creates a Gate with the given configuration.
// Returns an error when the configuration is invalid or when no session
// validator was provided.
func New(cfg Config, opts ...Option) (*Gate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Gate{
		cfg:   cfg,
		rules: NewClassifier(DefaultRules()),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.sessions == nil {
		return nil, errors.New("gatekit: a session validator is required (WithSessions)")
	}

	return g, nil
}

// Handler returns the gate middleware. Wrap the whole router with it; static
// assets and other paths that never reach the router never reach the gate
// either.
func (g *Gate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := requestID(r)
		w.Header().Set(RequestIDHeader, reqID)

		ctx := withRequestID(r.Context(), reqID)

		path := r.URL.Path
		class := g.rules.Classify(path)
		isAPI := strings.HasPrefix(path, apiPrefix)

		// Structured access logging covers API traffic only. One canonical
		// line per request, flushed after the gate's decision or during
		// unwind when a collaborator fails.
		outcome := "ok"
		if isAPI {
			ctx = canonlog.NewContext(ctx)
			start := g.now()

			canonlog.InfoAddMany(ctx, map[string]any{
				"method":     r.Method,
				"path":       path,
				"request_id": reqID,
				"client_ip":  ClientIP(r),
				"user_agent": r.UserAgent(),
			})

			defer func() {
				canonlog.InfoAddMany(ctx, map[string]any{
					"class":       class.String(),
					"outcome":     outcome,
					"duration_ms": time.Since(start).Milliseconds(),
				})
				canonlog.Flush(ctx)
			}()
		}

		r = r.WithContext(ctx)

		if class.public() {
			outcome = "public"
			next.ServeHTTP(w, r)
			return
		}

		// Auth flows are the one non-public class exempt from the session
		// gate: they exist to establish the session in the first place.
		if class != ClassAuthAPI {
			sess, err := g.validateCookie(r)
			if errors.Is(err, session.ErrInvalid) {
				outcome = "unauthorized"
				g.unauthorized(w, r, isAPI)
				return
			}
			if err != nil {
				// Session storage failure, not an authentication failure.
				// Masking it as a 401 would lock out every user for the
				// duration of an outage.
				outcome = "error"
				g.logFailure(ctx, isAPI, r, reqID, fmt.Errorf("session validation failed: %w", err))
				panic(err)
			}
			ctx = session.NewContext(ctx, sess)
			r = r.WithContext(ctx)
		}

		// Pages are done once authenticated; rate limiting and access-log
		// detail apply to API traffic only.
		if !isAPI {
			next.ServeHTTP(w, r)
			return
		}

		if g.counters == nil {
			// Counter store not configured: fail open. Availability of the
			// application outranks quota enforcement when the store itself
			// is absent.
			next.ServeHTTP(w, r)
			return
		}

		lim := g.cfg.Limits.forClass(class)
		key := class.String() + ":" + ClientIP(r)

		res, err := g.counters.Allow(ctx, key, lim.MaxRequests, lim.Window)
		if err != nil {
			outcome = "error"
			g.logFailure(ctx, isAPI, r, reqID, fmt.Errorf("rate limit check failed: %w", err))
			panic(err)
		}

		w.Header().Set(HeaderRateLimitLimit, strconv.FormatInt(lim.MaxRequests, 10))
		w.Header().Set(HeaderRateLimitRemaining, strconv.FormatInt(res.Remaining, 10))
		w.Header().Set(HeaderRateLimitReset, strconv.FormatInt(res.Reset.Unix(), 10))

		if !res.Allowed {
			retryAfter := int(res.Reset.Sub(g.now()).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set(HeaderRetryAfter, strconv.Itoa(retryAfter))

			outcome = "rate_limited"
			writeError(w, rateLimited(retryAfter))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// validateCookie runs the two-phase session check: a cheap cookie-presence
// check first, then the authoritative validation against session storage.
// The cheap check spares a storage round-trip for fully anonymous requests;
// a present cookie is still never trusted on its own, since cookies can be
// stale or forged.
func (g *Gate) validateCookie(r *http.Request) (*session.Session, error) {
	cookie, err := r.Cookie(g.cfg.SessionCookie)
	if err != nil || cookie.Value == "" {
		return nil, session.ErrInvalid
	}
	return g.sessions.Validate(r.Context(), cookie.Value)
}

// unauthorized writes the terminal response for a missing or invalid
// session: 401 JSON for API paths, a login redirect for pages with the
// original path preserved so the user lands back where they started.
func (g *Gate) unauthorized(w http.ResponseWriter, r *http.Request, isAPI bool) {
	if isAPI {
		writeError(w, ErrUnauthorized)
		return
	}

	login := g.cfg.LoginPath + "?callbackUrl=" + url.QueryEscape(r.URL.Path)
	http.Redirect(w, r, login, http.StatusFound)
}

// logFailure records an infrastructure failure at error severity before the
// caller re-raises it. API requests already carry a canonical log context
// that flushes during unwind; page requests get a dedicated line here since
// nothing else will flush for them.
func (g *Gate) logFailure(ctx context.Context, haveLogCtx bool, r *http.Request, reqID string, err error) {
	if haveLogCtx {
		canonlog.ErrorAdd(ctx, err)
		return
	}

	logCtx := canonlog.NewContext(ctx)
	canonlog.InfoAddMany(logCtx, map[string]any{
		"method":     r.Method,
		"path":       r.URL.Path,
		"request_id": reqID,
	})
	canonlog.ErrorAdd(logCtx, err)
	canonlog.Flush(logCtx)
}
