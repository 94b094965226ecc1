package httpapi

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// recoverer logs panics through zap instead of stderr and answers 500.
func recoverer(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("panic serving request",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path),
						zap.String("request_id", middleware.GetReqID(r.Context())),
						zap.Stack("stack"),
					)
					w.WriteHeader(http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

const limiterIdle = 10 * time.Minute

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// guessLimiter throttles guesses per lobby and player. A nil limiter, or one
// built with a non-positive rate, allows everything.
type guessLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	entries map[string]*limiterEntry
	calls   int
}

func newGuessLimiter(perSecond float64, burst int) *guessLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &guessLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		entries: make(map[string]*limiterEntry),
	}
}

// allow keys on the trimmed player name, the same name the session matches.
func (g *guessLimiter) allow(code, player string, now time.Time) bool {
	if g == nil {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := code + "\x00" + strings.TrimSpace(player)
	e, ok := g.entries[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(g.limit, g.burst)}
		g.entries[key] = e
	}
	e.lastSeen = now

	g.calls++
	if g.calls%1024 == 0 {
		g.pruneLocked(now)
	}
	return e.lim.AllowN(now, 1)
}

func (g *guessLimiter) pruneLocked(now time.Time) {
	for key, e := range g.entries {
		if now.Sub(e.lastSeen) > limiterIdle {
			delete(g.entries, key)
		}
	}
}
