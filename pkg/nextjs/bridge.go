// Package nextjs renders pages served by a Next.js server for a Go web
// application. Pages are fetched on behalf of the inbound request and may be
// wrapped by a local template before being returned.
package nextjs

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultServerURL      = "http://127.0.0.1:3000"
	DefaultCSRFCookieName = "csrf_"
	DefaultTimeout        = 15
)

// Config holds the settings a Bridge is built from.
type Config struct {
	ServerURL      string
	CSRFCookieName string
	// Timeout for a single page fetch, in seconds.
	Timeout      int
	RulesetPath  string
	TemplatesDir string
	LogURLs      bool
}

// ConfigFromEnv reads the bridge configuration from the environment.
func ConfigFromEnv() Config {
	timeout := DefaultTimeout
	if timeoutStr := os.Getenv("HTTP_TIMEOUT"); timeoutStr != "" {
		t, err := strconv.Atoi(timeoutStr)
		if err != nil {
			log.Printf("WARN: Ignoring invalid HTTP_TIMEOUT %q: %v", timeoutStr, err)
		} else {
			timeout = t
		}
	}

	return Config{
		ServerURL:      getenv("NEXTJS_SERVER_URL", DefaultServerURL),
		CSRFCookieName: getenv("CSRF_COOKIE_NAME", DefaultCSRFCookieName),
		Timeout:        timeout,
		RulesetPath:    os.Getenv("RULESET"),
		TemplatesDir:   os.Getenv("TEMPLATES_DIR"),
		LogURLs:        os.Getenv("LOG_URLS") == "true",
	}
}

// Bridge fetches pages from a Next.js server and renders them for the caller.
type Bridge struct {
	ServerURL      string
	CSRFCookieName string
	Client         *http.Client
	Views          Views
	Rules          RuleSet
	LogURLs        bool
}

// New creates a Bridge from cfg, loading its templates and rules.
func New(cfg Config) (*Bridge, error) {
	rules, err := LoadRuleSet(cfg.RulesetPath)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	b := &Bridge{
		ServerURL:      cfg.ServerURL,
		CSRFCookieName: cfg.CSRFCookieName,
		Client:         &http.Client{Timeout: time.Second * time.Duration(timeout)},
		Rules:          rules,
		LogURLs:        cfg.LogURLs,
	}
	if b.ServerURL == "" {
		b.ServerURL = DefaultServerURL
	}

	if cfg.TemplatesDir != "" {
		views := NewTemplates(os.DirFS(cfg.TemplatesDir))
		if err := views.Load(); err != nil {
			return nil, err
		}
		b.Views = views
	}

	return b, nil
}

func (b *Bridge) cookieName() string {
	if b.CSRFCookieName == "" {
		return DefaultCSRFCookieName
	}
	return b.CSRFCookieName
}

func (b *Bridge) client() *http.Client {
	if b.Client == nil {
		return http.DefaultClient
	}
	return b.Client
}

func (b *Bridge) baseURL() string {
	return strings.TrimSuffix(b.ServerURL, "/")
}

func getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
