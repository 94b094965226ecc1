package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DoyleJ11/dexrush-backend/internal/countdown"
	"github.com/DoyleJ11/dexrush-backend/internal/engine"
	"github.com/DoyleJ11/dexrush-backend/internal/hub"
	"github.com/DoyleJ11/dexrush-backend/internal/types"
	"github.com/spf13/cobra"
)

type watchOptions struct {
	server   string
	interval time.Duration
	once     bool
}

func newWatchCmd() *cobra.Command {
	opts := watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch CODE",
		Short: "Poll a lobby and print its countdown.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.interval <= 0 {
				return fmt.Errorf("invalid interval (must be positive): %s", opts.interval)
			}
			return watch(cmd.Context(), cmd.OutOrStdout(), opts, hub.NormalizeCode(args[0]))
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&opts.server, "server", "s", "http://localhost:8080", "dexrush server base URL")
	fs.DurationVarP(&opts.interval, "interval", "i", time.Second, "time between polls")
	fs.BoolVar(&opts.once, "once", false, "print a single reading and exit")
	return cmd
}

func watch(ctx context.Context, out io.Writer, opts watchOptions, code string) error {
	endpoint, err := url.JoinPath(opts.server, "api", "lobbies", code, "state")
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: timeout}

	var cd countdown.Countdown
	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	for {
		state, err := fetchState(ctx, client, endpoint)
		if err != nil {
			return err
		}
		now := time.Now()
		cd = cd.Observe(state.Run, state.Status, state.TimeLeft, now)

		fmt.Fprintf(out, "%s  %-11s  %s  %d/%d\n",
			state.Code,
			state.Status,
			countdown.Format(cd.Project(now)),
			state.GuessedCount,
			state.Total,
		)

		if opts.once || state.Status == engine.StatusEnded {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func fetchState(ctx context.Context, client *http.Client, endpoint string) (types.StateResponse, error) {
	var state types.StateResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return state, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return state, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e types.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		reason := strings.TrimSpace(string(e.Error))
		if reason == "" {
			reason = resp.Status
		}
		return state, fmt.Errorf("fetch %s: %s", endpoint, reason)
	}

	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return state, fmt.Errorf("decode state: %w", err)
	}
	return state, nil
}
