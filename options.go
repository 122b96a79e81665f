package aiodt

import "log"

// LogFunc is a printf-style logging func, the convention carried over from
// chromedp's own options.go (`type LogFunc func(string, ...interface{})`).
type LogFunc func(string, ...interface{})

func defaultLogf(format string, args ...interface{}) { log.Printf(format, args...) }

func noopLogf(string, ...interface{}) {}

// ConnectionOption configures a Connection at construction time.
type ConnectionOption func(*Connection)

// WithLogf sets the func Connection uses for general logging.
func WithLogf(f LogFunc) ConnectionOption {
	return func(c *Connection) { c.logf = f }
}

// WithErrorf sets the func Connection uses for error-level logging.
func WithErrorf(f LogFunc) ConnectionOption {
	return func(c *Connection) { c.errf = f }
}

// WithDebugf sets the func Connection uses to trace every CDP frame sent
// and received, grounded in transport.Conn's own dbgf convention. Passing
// nil (the default) disables wire tracing.
func WithDebugf(f LogFunc) ConnectionOption {
	return func(c *Connection) { c.debugf = f }
}

// WithVerbose turns on Connection's own verbose diagnostics (malformed
// console.info payloads, detach notices), mirroring the Python original's
// `verbose` constructor flag.
func WithVerbose(v bool) ConnectionOption {
	return func(c *Connection) { c.verbose = v }
}

// WithHeadless records whether the owning browser is running headless, a
// passthrough flag the registry fills in from the launcher (out of scope)
// and the Connection merely carries for callers that branch on it.
func WithHeadless(v bool) ConnectionOption {
	return func(c *Connection) { c.isHeadless = v }
}

// WithBrowserFamily records the browser family tag ("chrome", "brave", ...)
// the registry derives from its discovery endpoint.
func WithBrowserFamily(family string) ConnectionOption {
	return func(c *Connection) { c.browserFamily = family }
}

// WithGenericCallback registers a callback invoked with every raw inbound
// CDP envelope (spec.md §4.1 "generic callback"). Registering one makes
// Activate enable the Runtime domain eagerly.
func WithGenericCallback(cb GenericCallback) ConnectionOption {
	return func(c *Connection) { c.generic = cb }
}

// RegistryOption configures a Registry at construction time.
type RegistryOption func(*Registry)

// WithRegistryLogf sets the func Registry uses for logging and passes
// through to every Connection it constructs.
func WithRegistryLogf(f LogFunc) RegistryOption {
	return func(r *Registry) { r.logf = f }
}

// WithRegistryVerbose passes WithVerbose through to every Connection the
// Registry constructs.
func WithRegistryVerbose(v bool) RegistryOption {
	return func(r *Registry) { r.verbose = v }
}

// WithBrowserFamilyTag records the browser family tag the Registry passes
// to every Connection it constructs.
func WithBrowserFamilyTag(family string) RegistryOption {
	return func(r *Registry) { r.browserFamily = family }
}

// WithHeadlessHint records whether the browser behind this Registry is
// headless, passed through to every Connection it constructs.
func WithHeadlessHint(v bool) RegistryOption {
	return func(r *Registry) { r.isHeadless = v }
}

// FetchOption configures an Interceptor at Enable time.
type FetchOption func(*fetchConfig)

type fetchConfig struct {
	patterns  []pattern
	handleAuth bool
}

type pattern struct {
	urlPattern   string
	resourceType string
	stage        string
}

// WithPattern adds a URL pattern (optionally scoped to a resource type and
// request stage) to the set Fetch.enable installs.
func WithPattern(urlPattern, resourceType, stage string) FetchOption {
	return func(c *fetchConfig) {
		c.patterns = append(c.patterns, pattern{urlPattern: urlPattern, resourceType: resourceType, stage: stage})
	}
}

// WithHandleAuth additionally registers an auth-required handler.
func WithHandleAuth() FetchOption {
	return func(c *fetchConfig) { c.handleAuth = true }
}
