package gatekit

// Route classification. Every request path is sorted into exactly one class,
// which drives both the authentication gate and the rate-limit policy for
// that request. Matching is an ordered table of exact and prefix rules with
// first match winning; rules are expected to be mutually exclusive, and an
// overlap between two classes is a bug in the rule table, not a feature.

import "strings"

// Class is the policy bucket a request path belongs to.
type Class int

const (
	// ClassPublicPage is a browser-facing page requiring no session.
	ClassPublicPage Class = iota

	// ClassPublicAPI is an API route open without a session: health checks,
	// public share links, auth-provider-owned infrastructure routes, and
	// inbound webhook endpoints.
	ClassPublicAPI

	// ClassAuthAPI covers sign-in, sign-up, sign-out and credential
	// recovery flows. Exempt from the session gate, but rate limited on its
	// own budget since these endpoints are the ones worth brute-forcing.
	ClassAuthAPI

	// ClassSensitiveAPI covers password changes and account deletion.
	ClassSensitiveAPI

	// ClassUploadAPI covers media upload endpoints.
	ClassUploadAPI

	// ClassProtected is the default for everything else: a session is
	// required, and API traffic runs on the general api budget.
	ClassProtected
)

// String returns the class name used in rate-limit keys and log fields.
func (c Class) String() string {
	switch c {
	case ClassPublicPage:
		return "public-page"
	case ClassPublicAPI:
		return "public-api"
	case ClassAuthAPI:
		return "auth-api"
	case ClassSensitiveAPI:
		return "sensitive-api"
	case ClassUploadAPI:
		return "upload-api"
	default:
		return "protected"
	}
}

// public reports whether the class skips both authentication and rate
// limiting.
func (c Class) public() bool {
	return c == ClassPublicPage || c == ClassPublicAPI
}

// Rule maps a path pattern to a class. Set exactly one of Exact or Prefix.
type Rule struct {
	Exact  string
	Prefix string
	Class  Class
}

func (r Rule) matches(path string) bool {
	if r.Exact != "" {
		return path == r.Exact
	}
	return strings.HasPrefix(path, r.Prefix)
}

// Classifier sorts request paths into classes using an ordered rule table.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier from an ordered rule table.
// Paths matching no rule classify as ClassProtected, so classification is a
// total function over all paths.
func NewClassifier(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Classify returns the class of path. First matching rule wins.
func (c *Classifier) Classify(path string) Class {
	for _, rule := range c.rules {
		if rule.matches(path) {
			return rule.Class
		}
	}
	return ClassProtected
}

// DefaultRules is the rule table for the platform's route layout. Order
// matters: the specific auth flows sit above the catch-all auth-provider
// prefix, and every /api rule sits above the generic /api/ fallthrough.
func DefaultRules() []Rule {
	return []Rule{
		{Exact: "/api/health", Class: ClassPublicAPI},
		{Prefix: "/api/public/", Class: ClassPublicAPI},
		{Prefix: "/api/webhooks/", Class: ClassPublicAPI},

		{Prefix: "/api/auth/sign-in", Class: ClassAuthAPI},
		{Prefix: "/api/auth/sign-up", Class: ClassAuthAPI},
		{Prefix: "/api/auth/sign-out", Class: ClassAuthAPI},
		{Prefix: "/api/auth/forget-password", Class: ClassAuthAPI},
		{Prefix: "/api/auth/reset-password", Class: ClassAuthAPI},
		{Prefix: "/api/auth/verify-email", Class: ClassAuthAPI},
		// Remaining auth-provider routes (callbacks, session introspection)
		// are owned by the provider and open by design.
		{Prefix: "/api/auth/", Class: ClassPublicAPI},

		{Exact: "/api/account/password", Class: ClassSensitiveAPI},
		{Exact: "/api/account/delete", Class: ClassSensitiveAPI},

		{Prefix: "/api/upload", Class: ClassUploadAPI},

		{Prefix: "/api/", Class: ClassProtected},

		{Exact: "/", Class: ClassPublicPage},
		{Prefix: "/login", Class: ClassPublicPage},
		{Prefix: "/signup", Class: ClassPublicPage},
		{Prefix: "/share/", Class: ClassPublicPage},
		{Prefix: "/pricing", Class: ClassPublicPage},
	}
}
