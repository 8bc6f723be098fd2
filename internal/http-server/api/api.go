package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"coinfarm/internal/config"
	"coinfarm/internal/http-server/handlers/errors"
	"coinfarm/internal/http-server/handlers/status"
	"coinfarm/internal/http-server/middleware/timeout"
	"coinfarm/lib/sl"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

// NewRouter builds the HTTP surface: a bare liveness endpoint at / for
// process supervisors, and a JSON status snapshot under /v1.
func NewRouter(log *slog.Logger, core status.Core) http.Handler {
	router := chi.NewRouter()
	router.Use(timeout.Timeout(5))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Get("/", status.Alive(log))
	router.Route("/v1", func(rootApi chi.Router) {
		rootApi.Get("/status", status.Status(log, core))
	})
	return router
}

func New(conf *config.Config, log *slog.Logger, core status.Core) error {
	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      NewRouter(log, core),
		ErrorLog:     httpLog,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIp, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
