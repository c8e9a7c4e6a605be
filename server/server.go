package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/aep/oairepo/config"
	"github.com/aep/oairepo/kv"
	"github.com/aep/oairepo/metadata"
	"github.com/aep/oairepo/oai"
	"github.com/aep/oairepo/repo"
	"github.com/aep/oairepo/token"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// maxBodySize bounds POSTed argument lists.
const maxBodySize = 64 << 10

type server struct {
	cfg       config.Config
	kv        kv.KV
	store     repo.Store
	tokens    *token.Store
	responder *oai.Responder
}

func newServer(cfg config.Config, k kv.KV, store repo.Store) *server {
	tokens := token.NewStore(k)

	formats := metadata.Default(metadata.Options{
		Identifier: func(id int64) string {
			return oai.RecordToOAIID(id, cfg.NamespaceID)
		},
		ExposeFiles:    cfg.ExposeFiles,
		ExposeItemType: cfg.ExposeItemType,
	})

	responder := oai.NewResponder(oai.Config{
		RepositoryName:         cfg.RepositoryName,
		AdminEmail:             cfg.AdminEmail,
		NamespaceID:            cfg.NamespaceID,
		PageLimit:              cfg.PageLimit,
		TokenTTL:               cfg.TokenTTL(),
		ExposeEmptyCollections: cfg.ExposeEmptyCollections,
	}, store, meteredTokens{tokens}, formats)

	return &server{
		cfg:       cfg,
		kv:        k,
		store:     store,
		tokens:    tokens,
		responder: responder,
	}
}

func (s *server) echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(TracingMiddleware)
	e.Use(PrometheusMiddleware)

	e.GET(s.cfg.Route, s.handleRequest)
	e.POST(s.cfg.Route, s.handleRequest)

	return e
}

// readArguments returns the raw argument string and its parsed form. POST
// requests carry them form encoded in the body.
func readArguments(req *http.Request) (string, url.Values, error) {
	raw := req.URL.RawQuery
	if req.Method == http.MethodPost {
		body, err := io.ReadAll(io.LimitReader(req.Body, maxBodySize))
		if err != nil {
			return "", nil, err
		}
		raw = string(body)
	}

	// malformed pairs are dropped like url.URL.Query does
	values, _ := url.ParseQuery(raw)
	return raw, values, nil
}

func (s *server) baseURL(c echo.Context) string {
	if s.cfg.BaseURL != "" {
		return s.cfg.BaseURL
	}
	req := c.Request()
	return c.Scheme() + "://" + req.Host + req.URL.Path
}

func (s *server) handleRequest(c echo.Context) error {
	raw, values, err := readArguments(c.Request())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read request body")
	}

	args := make(map[string]string, len(values))
	for k, v := range values {
		args[k] = v[0]
	}

	resp, err := s.responder.Respond(c.Request().Context(), oai.Request{
		Args:     args,
		RawQuery: raw,
		BaseURL:  s.baseURL(c),
	})
	if err != nil {
		slog.Error("oai request failed", "verb", args["verb"], "err", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	observeResponse(resp)

	body, err := resp.Bytes()
	if err != nil {
		slog.Error("serializing oai response", "err", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.Blob(http.StatusOK, "text/xml; charset=UTF-8", body)
}

func Main(cfg config.Config, serverCertPath string, serverKeyPath string) {
	ctx := context.Background()

	if cfg.OtelEndpoint != "" {
		shutdown, err := InitTracer(ctx, cfg.OtelEndpoint)
		if err != nil {
			panic(err)
		}
		defer shutdown(ctx)
	}

	k, err := kv.Open(cfg.KV.Backend, cfg.KV.Path, cfg.KV.PDEndpoints)
	if err != nil {
		panic(err)
	}
	defer k.Close()

	sqlStore, err := repo.OpenSQLite(ctx, cfg.Database, cfg.SiteURL)
	if err != nil {
		panic(err)
	}
	defer sqlStore.Close()

	var store repo.Store = sqlStore
	if cfg.CacheTTLSeconds > 0 {
		cached, err := repo.NewCached(sqlStore, 100000, cfg.CacheTTL())
		if err != nil {
			panic(err)
		}
		defer cached.Close()
		store = cached
	}

	s := newServer(cfg, k, store)
	s.startup(ctx)
	go s.statsd(cfg.StatsListen)

	e := s.echo()
	slog.Info("serving OAI-PMH", "addr", cfg.Listen, "route", cfg.Route, "namespace", cfg.NamespaceID)

	if serverCertPath != "" || serverKeyPath != "" {
		e.Logger.Fatal(e.StartTLS(cfg.Listen, serverCertPath, serverKeyPath))
	} else {
		e.Logger.Fatal(e.Start(cfg.Listen))
	}
}
