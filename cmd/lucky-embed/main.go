// lucky-embed serves the game-launch page: it resolves a provider launch URL
// for the logged-in player and embeds it in an iframe shell.
package main

import (
	"context"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"lucky/internal/apiclient"
	"lucky/internal/config"
	"lucky/internal/envelope"
	"lucky/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

var playPage = template.Must(template.New("play").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>lucky</title>
<style>
  html, body { margin: 0; height: 100%; background: #000; }
  iframe { border: 0; width: 100%; height: 100%; }
</style>
</head>
<body>
<iframe src="{{.URL}}" allow="fullscreen" allowfullscreen></iframe>
</body>
</html>
`))

type server struct {
	cfg   config.EmbedConfig
	api   *apiclient.Client
	log   *slog.Logger
	mux   *chi.Mux
	token func() string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.LoadEmbedFromEnv()
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}
	codec, err := newCodec(cfg)
	if err != nil {
		logger.Error("envelope codec", "err", err)
		os.Exit(1)
	}

	srv := newServer(cfg, apiclient.New(cfg.APIBaseURL, codec), logger)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("lucky-embed listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func newCodec(cfg config.EmbedConfig) (*envelope.Codec, error) {
	if cfg.EnvelopeKey != "" {
		return envelope.NewCodec([]byte(cfg.EnvelopeKey), []byte(cfg.EnvelopeIV))
	}
	return envelope.DeriveCodec(cfg.EnvelopePass, cfg.EnvelopeSalt, []byte(cfg.EnvelopeIV))
}

func newServer(cfg config.EmbedConfig, api *apiclient.Client, logger *slog.Logger) *server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &server{
		cfg: cfg,
		api: api,
		log: logger,
		mux: chi.NewRouter(),
	}
	// the CLI owns login; this server reads whatever session it persisted
	s.token = func() string {
		snap, err := session.LoadSnapshot(cfg.DataDir)
		if err != nil || !snap.Identity.Authenticated() {
			return ""
		}
		return snap.Identity.Token
	}
	s.routes()
	return s
}

func (s *server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Get("/play/{gameID}", s.handlePlay)
}

func (s *server) handlePlay(w http.ResponseWriter, r *http.Request) {
	gameID, err := strconv.ParseInt(chi.URLParam(r, "gameID"), 10, 64)
	if err != nil || gameID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid game id"})
		return
	}
	token := s.token()
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "no active session, login with the lky CLI first"})
		return
	}

	info, err := s.api.GameInit(r.Context(), token, gameID)
	if err != nil {
		s.log.Error("game init failed", "game_id", gameID, "err", err)
		status := http.StatusBadGateway
		if apiclient.IsUnauthorized(err) {
			status = http.StatusUnauthorized
		}
		writeJSON(w, status, map[string]any{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := playPage.Execute(w, info); err != nil {
		s.log.Error("render play page", "err", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
