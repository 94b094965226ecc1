// Package config holds the server's runtime options. Every flag can also be
// set through a DEXRUSH_ environment variable or a .env file.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DoyleJ11/dexrush-backend/internal/engine"
	"github.com/DoyleJ11/dexrush-backend/internal/hub"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const EnvPrefix = "DEXRUSH"

const (
	minCodeLength = 4
	maxCodeLength = 12
)

type Config struct {
	Bind        string
	Port        int
	Duration    time.Duration
	IdleTimeout time.Duration
	MaxLog      int
	CodeLength  int
	Catalog     string
	GuessRate   float64
	GuessBurst  int
	LogLevel    string
	Dev         bool
	Profile     bool
}

// RegisterFlags adds every option to fs with its default.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&c.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: DEXRUSH_BIND)")
	fs.IntVarP(&c.Port, "port", "p", 8080, "port to listen on (env: DEXRUSH_PORT)")
	fs.DurationVar(&c.Duration, "duration", engine.DefaultDuration, "round length for new lobbies (env: DEXRUSH_DURATION)")
	fs.DurationVar(&c.IdleTimeout, "idle-timeout", 60*time.Minute, "evict lobbies nobody has polled for this long, 0 disables (env: DEXRUSH_IDLE_TIMEOUT)")
	fs.IntVar(&c.MaxLog, "max-log", engine.DefaultMaxLog, "guess log entries kept per lobby (env: DEXRUSH_MAX_LOG)")
	fs.IntVar(&c.CodeLength, "code-length", hub.DefaultCodeLength, "join code length (env: DEXRUSH_CODE_LENGTH)")
	fs.StringVar(&c.Catalog, "catalog", "", "species list file, one name per line; empty uses the built-in list (env: DEXRUSH_CATALOG)")
	fs.Float64Var(&c.GuessRate, "guess-rate", 5, "guesses per second per player, 0 disables limiting (env: DEXRUSH_GUESS_RATE)")
	fs.IntVar(&c.GuessBurst, "guess-burst", 10, "guess limiter burst (env: DEXRUSH_GUESS_BURST)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug, info, warn or error (env: DEXRUSH_LOG_LEVEL)")
	fs.BoolVar(&c.Dev, "dev", false, "human-readable development logging (env: DEXRUSH_DEV)")
	fs.BoolVar(&c.Profile, "profile", false, "register pprof handlers under /debug/pprof (env: DEXRUSH_PROFILE)")
}

// BindEnv copies environment values into any flag not set on the command
// line. Flags keep precedence over the environment.
func BindEnv(fs *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		if err := v.BindEnv(f.Name); err != nil {
			errs = append(errs, err)
			return
		}
		if !f.Changed && v.IsSet(f.Name) {
			if err := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", EnvPrefix, envName(f.Name), err))
			}
		}
	})
	return errors.Join(errs...)
}

// LoadDotEnv reads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is fine.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("invalid duration (must be positive): %s", c.Duration)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("invalid idle timeout (must not be negative): %s", c.IdleTimeout)
	}
	if c.MaxLog < 1 {
		return fmt.Errorf("invalid max log (must be at least 1): %d", c.MaxLog)
	}
	if c.CodeLength < minCodeLength || c.CodeLength > maxCodeLength {
		return fmt.Errorf("invalid code length (must be between %d-%d inclusive): %d", minCodeLength, maxCodeLength, c.CodeLength)
	}
	if c.GuessRate < 0 {
		return fmt.Errorf("invalid guess rate (must not be negative): %v", c.GuessRate)
	}
	if c.GuessRate > 0 && c.GuessBurst < 1 {
		return fmt.Errorf("invalid guess burst (must be at least 1): %d", c.GuessBurst)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// NewLogger builds the process logger: JSON in production, console with --dev.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if c.Dev {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func envName(flag string) string {
	return strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}
