// Package config loads the provider configuration: a YAML file, then a .env
// file, then OAIPMH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"sigs.k8s.io/yaml"
)

const EnvPrefix = "OAIPMH_"

type KV struct {
	// Backend is pebble, memory or tikv.
	Backend     string   `json:"backend"`
	Path        string   `json:"path"`
	PDEndpoints []string `json:"pdEndpoints,omitempty"`
}

type Config struct {
	RepositoryName string `json:"repositoryName"`
	AdminEmail     string `json:"adminEmail"`
	NamespaceID    string `json:"namespaceId"`

	// BaseURL is the absolute URL harvesters use. Empty means it is taken
	// from each request.
	BaseURL string `json:"baseURL,omitempty"`
	Route   string `json:"route"`
	SiteURL string `json:"siteURL"`

	PageLimit       int `json:"pageLimit"`
	TokenTTLMinutes int `json:"tokenTtlMinutes"`

	ExposeFiles            bool `json:"exposeFiles"`
	ExposeItemType         bool `json:"exposeItemType"`
	ExposeEmptyCollections bool `json:"exposeEmptyCollections"`

	Listen          string `json:"listen"`
	StatsListen     string `json:"statsListen"`
	Database        string `json:"database"`
	KV              KV     `json:"kv"`
	CacheTTLSeconds int    `json:"cacheTtlSeconds"`
	OtelEndpoint    string `json:"otelEndpoint,omitempty"`
}

func Default() Config {
	host, _ := os.Hostname()
	return Config{
		RepositoryName:         "OAI-PMH Repository",
		AdminEmail:             "admin@example.org",
		NamespaceID:            DefaultNamespace(host),
		Route:                  "/oai-pmh-repository/request",
		SiteURL:                "http://localhost:8080",
		PageLimit:              50,
		TokenTTLMinutes:        10,
		ExposeFiles:            true,
		ExposeItemType:         false,
		ExposeEmptyCollections: true,
		Listen:                 ":8080",
		StatsListen:            ":27667",
		Database:               "records.db",
		KV:                     KV{Backend: "pebble", Path: "pebble-db"},
		CacheTTLSeconds:        60,
	}
}

var namespaceJunk = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// DefaultNamespace derives a namespace identifier from a host name.
// localhost gets a placeholder that is obviously meant to be replaced.
func DefaultNamespace(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, found := strings.Cut(host, ":"); found {
		host = h
	}
	host = namespaceJunk.ReplaceAllString(host, "")
	if host == "" || host == "localhost" || host == "127.0.0.1" {
		return "default.must.change"
	}
	return host
}

// Load reads path (optional), .env in the working directory (optional) and
// the environment, in that order, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	slog.Debug("loaded config", "file", path, "namespace", cfg.NamespaceID, "kv", cfg.KV.Backend)
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	var errs []error
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("REPOSITORY_NAME", &c.RepositoryName)
	str("ADMIN_EMAIL", &c.AdminEmail)
	str("NAMESPACE_ID", &c.NamespaceID)
	str("BASE_URL", &c.BaseURL)
	str("ROUTE", &c.Route)
	str("SITE_URL", &c.SiteURL)
	num("PAGE_LIMIT", &c.PageLimit)
	num("TOKEN_TTL_MINUTES", &c.TokenTTLMinutes)
	flag("EXPOSE_FILES", &c.ExposeFiles)
	flag("EXPOSE_ITEM_TYPE", &c.ExposeItemType)
	flag("EXPOSE_EMPTY_COLLECTIONS", &c.ExposeEmptyCollections)
	str("LISTEN", &c.Listen)
	str("STATS_LISTEN", &c.StatsListen)
	str("DATABASE", &c.Database)
	str("KV_BACKEND", &c.KV.Backend)
	str("KV_PATH", &c.KV.Path)
	if v, ok := lookup(EnvPrefix + "KV_PD_ENDPOINTS"); ok {
		c.KV.PDEndpoints = strings.Split(v, ",")
	}
	num("CACHE_TTL_SECONDS", &c.CacheTTLSeconds)
	str("OTEL_ENDPOINT", &c.OtelEndpoint)

	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	var errs []error
	if c.NamespaceID == "" {
		errs = append(errs, errors.New("namespaceId must not be empty"))
	}
	if strings.Contains(c.NamespaceID, ":") {
		errs = append(errs, fmt.Errorf("namespaceId %q must not contain ':'", c.NamespaceID))
	}
	if c.PageLimit <= 0 {
		errs = append(errs, fmt.Errorf("pageLimit must be positive, got %d", c.PageLimit))
	}
	if c.TokenTTLMinutes <= 0 {
		errs = append(errs, fmt.Errorf("tokenTtlMinutes must be positive, got %d", c.TokenTTLMinutes))
	}
	if !strings.HasPrefix(c.Route, "/") {
		errs = append(errs, fmt.Errorf("route %q must start with '/'", c.Route))
	}
	switch c.KV.Backend {
	case "", "pebble", "memory", "tikv":
	default:
		errs = append(errs, fmt.Errorf("unknown kv backend %q", c.KV.Backend))
	}
	return errors.Join(errs...)
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}
