package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/DoyleJ11/dexrush-backend/internal/engine"
	"github.com/DoyleJ11/dexrush-backend/internal/hub"
	"github.com/DoyleJ11/dexrush-backend/internal/lobby"
	"github.com/DoyleJ11/dexrush-backend/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// Gateway-level reason codes; the engine never produces these.
const (
	reasonBadRequest  engine.Reason = "bad_request"
	reasonRateLimited engine.Reason = "rate_limited"
)

const (
	maxBodyBytes = 1 << 16
	qrSize       = 320
)

type handlers struct {
	hub       *hub.Hub
	log       *zap.Logger
	clock     engine.Clock
	limiter   *guessLimiter
	startedAt time.Time
	version   string
}

func (h *handlers) createLobby(w http.ResponseWriter, r *http.Request) {
	var req types.CreateLobbyRequest
	if !decode(w, r, &req) {
		return
	}

	lb, err := h.hub.Create(req.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.lobbyResponse(lb, lb.Host))
}

func (h *handlers) joinLobby(w http.ResponseWriter, r *http.Request) {
	var req types.JoinLobbyRequest
	if !decode(w, r, &req) {
		return
	}

	lb, p, err := h.hub.Join(chi.URLParam(r, "code"), req.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.lobbyResponse(lb, p.Name))
}

func (h *handlers) getLobby(w http.ResponseWriter, r *http.Request) {
	lb, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, lb.View())
}

func (h *handlers) closeLobby(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !h.hub.Remove(code) {
		h.writeError(w, hub.ErrNotFound)
		return
	}
	h.log.Info("lobby closed", zap.String("code", hub.NormalizeCode(code)))
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listPlayers(w http.ResponseWriter, r *http.Request) {
	lb, ok := h.lookup(w, r)
	if !ok {
		return
	}

	players := lb.Players()
	total := 0
	for _, p := range players {
		total += p.Score
	}
	writeJSON(w, http.StatusOK, types.PlayersResponse{
		Code:        lb.Code,
		Players:     players,
		PlayerCount: len(players),
		ScoreTotal:  total,
	})
}

func (h *handlers) getState(w http.ResponseWriter, r *http.Request) {
	lb, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.state(lb, lb.Session().Snapshot()))
}

func (h *handlers) start(w http.ResponseWriter, r *http.Request) {
	lb, ok := h.lookup(w, r)
	if !ok {
		return
	}

	snap, err := lb.Session().Start()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.log.Info("session started", zap.String("code", lb.Code), zap.Int("timeLeft", snap.TimeLeft))
	writeJSON(w, http.StatusOK, h.state(lb, snap))
}

func (h *handlers) pause(w http.ResponseWriter, r *http.Request) {
	lb, ok := h.lookup(w, r)
	if !ok {
		return
	}

	snap, err := lb.Session().Pause()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.log.Info("session paused", zap.String("code", lb.Code), zap.Int("timeLeft", snap.TimeLeft))
	writeJSON(w, http.StatusOK, h.state(lb, snap))
}

func (h *handlers) reset(w http.ResponseWriter, r *http.Request) {
	lb, ok := h.lookup(w, r)
	if !ok {
		return
	}

	snap := lb.Session().Reset()
	h.log.Info("session reset", zap.String("code", lb.Code))
	writeJSON(w, http.StatusOK, h.state(lb, snap))
}

func (h *handlers) guess(w http.ResponseWriter, r *http.Request) {
	lb, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req types.GuessRequest
	if !decode(w, r, &req) {
		return
	}

	if !h.limiter.allow(lb.Code, req.Player, h.clock.Now()) {
		writeJSON(w, http.StatusTooManyRequests, types.ErrorResponse{Error: reasonRateLimited})
		return
	}

	res, err := lb.Session().SubmitGuess(req.Player, req.Guess)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if res.Accepted {
		h.log.Debug("guess accepted",
			zap.String("code", lb.Code),
			zap.String("player", req.Player),
			zap.Ints("ranks", res.Ranks),
		)
	}
	writeJSON(w, http.StatusOK, res)
}

// qr renders a PNG that links to the lobby's join page.
func (h *handlers) qr(w http.ResponseWriter, r *http.Request) {
	lb, ok := h.lookup(w, r)
	if !ok {
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	url := scheme + "://" + r.Host + "/lobby/" + lb.Code

	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now()
	uptime := now.Sub(h.startedAt)
	secs := int64(uptime / time.Second)

	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:        "ok",
		Live:          "ok",
		Ready:         true,
		Lobbies:       h.hub.Len(),
		UptimeSeconds: secs,
		Uptime: types.Uptime{
			Days:    int(secs / 86400),
			Hours:   int(secs/3600) % 24,
			Minutes: int(secs/60) % 60,
			Seconds: int(secs % 60),
		},
		ProcessStart: h.startedAt.Unix(),
		Now:          now.Unix(),
	})
}

func (h *handlers) liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) readiness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ready": true})
}

func (h *handlers) serveVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("dexrush v" + h.version + "\n"))
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *handlers) lookup(w http.ResponseWriter, r *http.Request) (*lobby.Lobby, bool) {
	lb, err := h.hub.Get(chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return lb, true
}

func (h *handlers) state(lb *lobby.Lobby, snap engine.Snapshot) types.StateResponse {
	return types.StateResponse{
		Code:      lb.Code,
		Host:      lb.Host,
		FetchedAt: h.clock.Now().UTC().Truncate(time.Millisecond),
		Snapshot:  snap,
	}
}

func (h *handlers) lobbyResponse(lb *lobby.Lobby, player string) types.LobbyResponse {
	snap := lb.Session().Snapshot()
	return types.LobbyResponse{
		Code:    lb.Code,
		Player:  player,
		Players: snap.Players,
		State:   h.state(lb, snap),
	}
}

// writeError sends only the reason code; error text stays in the logs.
func (h *handlers) writeError(w http.ResponseWriter, err error) {
	reason := engine.ReasonOf(err)
	status := statusFor(reason)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, types.ErrorResponse{Error: reason})
}

func statusFor(reason engine.Reason) int {
	switch reason {
	case engine.ReasonNotFound:
		return http.StatusNotFound
	case engine.ReasonNameTaken, engine.ReasonGameOver, engine.ReasonInvalidState:
		return http.StatusConflict
	case engine.ReasonEmpty, reasonBadRequest:
		return http.StatusBadRequest
	case reasonRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	// An empty body decodes as the zero request.
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: reasonBadRequest})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
