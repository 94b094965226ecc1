package httpapi

import (
	"net/http"
	"time"

	"github.com/DoyleJ11/dexrush-backend/internal/engine"
	"github.com/DoyleJ11/dexrush-backend/internal/hub"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Options struct {
	Logger     *zap.Logger
	Clock      engine.Clock
	GuessRate  float64
	GuessBurst int
	Profile    bool
	Version    string
}

func SetupRoutes(h *hub.Hub, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = engine.SystemClock{}
	}
	log := opts.Logger.Named("http")

	hd := &handlers{
		hub:       h,
		log:       log,
		clock:     opts.Clock,
		limiter:   newGuessLimiter(opts.GuessRate, opts.GuessBurst),
		startedAt: opts.Clock.Now(),
		version:   opts.Version,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(recoverer(log))
	r.Use(middleware.Timeout(10 * time.Second))

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/version", hd.serveVersion)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", hd.health)
		r.Get("/health/live", hd.liveness)
		r.Get("/health/ready", hd.readiness)

		r.Post("/lobbies", hd.createLobby)
		r.Route("/lobbies/{code}", func(r chi.Router) {
			r.Get("/", hd.getLobby)
			r.Delete("/", hd.closeLobby)
			r.Post("/join", hd.joinLobby)
			r.Get("/players", hd.listPlayers)
			r.Get("/state", hd.getState)
			r.Post("/start", hd.start)
			r.Post("/pause", hd.pause)
			r.Post("/reset", hd.reset)
			r.Post("/guess", hd.guess)
			r.Get("/qr", hd.qr)
		})
	})

	if opts.Profile {
		r.Mount("/debug", middleware.Profiler())
	}
	return r
}
