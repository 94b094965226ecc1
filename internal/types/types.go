// Package types holds the JSON shapes exchanged between the HTTP gateway and
// polling clients. There is exactly one shape per response.
package types

import (
	"time"

	"github.com/DoyleJ11/dexrush-backend/internal/engine"
)

type CreateLobbyRequest struct {
	Name string `json:"name"`
}

type JoinLobbyRequest struct {
	Name string `json:"name"`
}

type GuessRequest struct {
	Player string `json:"player"`
	Guess  string `json:"guess"`
}

// StateResponse is the session snapshot plus lobby identity and the moment
// the server read it.
type StateResponse struct {
	Code      string    `json:"code"`
	Host      string    `json:"host"`
	FetchedAt time.Time `json:"fetchedAt"`
	engine.Snapshot
}

type LobbyResponse struct {
	Code    string          `json:"code"`
	Player  string          `json:"player"`
	Players []engine.Player `json:"players"`
	State   StateResponse   `json:"state"`
}

type PlayersResponse struct {
	Code        string          `json:"code"`
	Players     []engine.Player `json:"players"`
	PlayerCount int             `json:"playerCount"`
	ScoreTotal  int             `json:"scoreTotal"`
}

type ErrorResponse struct {
	Error engine.Reason `json:"error"`
}

type Uptime struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	Live          string `json:"live"`
	Ready         bool   `json:"ready"`
	Lobbies       int    `json:"lobbies"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	Uptime        Uptime `json:"uptime"`
	ProcessStart  int64  `json:"processStart"`
	Now           int64  `json:"now"`
}
