package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"lifesync-server/config"
	"lifesync-server/domain"
	"lifesync-server/game"
	"lifesync-server/hub"
	"lifesync-server/protocol"
	ws "lifesync-server/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func main() {
	cmd := &cobra.Command{
		Use:           "lifesync",
		Short:         "Relays a shared Game of Life grid to websocket clients.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return errors.Wrap(err, "load config")
			}
			setupLogger(cfg.SlogLevel())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	config.Flags(cmd.Flags())

	if err := cmd.Execute(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level slog.Level) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

type server struct {
	hub     *hub.Hub
	game    *game.Game
	handler *protocol.Handler
	cfg     *config.Config
}

func newServer(cfg *config.Config) (*server, error) {
	s := &server{hub: hub.New(), cfg: cfg}
	handler, err := protocol.NewHandler(s.hub, func(onUpdate domain.UpdateFunc) (domain.Simulation, error) {
		g, err := game.New(game.Config{
			Width:  cfg.Grid.Width,
			Height: cfg.Grid.Height,
			Rule:   cfg.Grid.Rule,
			Seed:   cfg.Grid.Seed,
			Tick:   cfg.Grid.Tick,
		}, onUpdate)
		if err != nil {
			return nil, err
		}
		s.game = g
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	s.handler = handler
	return s, nil
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.wsHandler)
	mux.HandleFunc("/ws", s.wsHandler)
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/stats", s.statsHandler)
	return mux
}

func run(ctx context.Context, cfg *config.Config) error {
	s, err := newServer(cfg)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Port),
		Handler: s.routes(),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "port", cfg.Port, "width", cfg.Grid.Width, "height", cfg.Grid.Height, "rule", cfg.Grid.Rule)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		return s.game.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownWait)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *server) wsHandler(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.NotFound(w, r)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("upgrade error", "error", err)
		return
	}

	token := r.URL.Query().Get("token")
	wsConn := ws.NewConn(uuid.New().String(), token, conn, s.handler, s.cfg.MaxMessageSize)
	wsConn.Start()
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *server) statsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"clients":    s.hub.Count(),
		"generation": s.game.Generation(),
		"at":         time.Now().UTC().Format(time.RFC3339),
	})
}
