package server

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/kingrea/jobprep/internal/config"
)

const (
	// DefaultMaxBodyBytes limits run requests to 2 MB, resume included.
	DefaultMaxBodyBytes int64 = 2 << 20
	// DefaultReadTimeout guards hung clients.
	DefaultReadTimeout = 15 * time.Second
	// DefaultWriteTimeout must outlast a full crew run.
	DefaultWriteTimeout = 20 * time.Minute
	// DefaultIdleTimeout bounds keep-alive connections.
	DefaultIdleTimeout = 60 * time.Second
)

// Settings captures runtime configuration for the HTTP API.
type Settings struct {
	Host         string
	Port         int
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// RunTimeout bounds a single crew run; zero leaves it to the client.
	RunTimeout time.Duration
}

// SettingsFromConfig builds Settings from the project config and environment
// overrides.
func SettingsFromConfig(cfg *config.Config) Settings {
	settings := Settings{
		Host:         config.DefaultServerHost,
		Port:         config.DefaultServerPort,
		MaxBodyBytes: DefaultMaxBodyBytes,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
	}
	if cfg != nil {
		raw := cfg.Project.Server
		if host := strings.TrimSpace(raw.Host); host != "" {
			settings.Host = host
		}
		if isValidPort(raw.Port) {
			settings.Port = raw.Port
		}
	}
	settings.applyEnvOverrides(cfg.Getenv)
	settings.normalize()
	return settings
}

func (s *Settings) applyEnvOverrides(getenv func(string) string) {
	if host := strings.TrimSpace(getenv("JOBPREP_SERVER_HOST")); host != "" {
		s.Host = host
	}
	if value := strings.TrimSpace(getenv("JOBPREP_RUN_TIMEOUT")); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			s.RunTimeout = parsed
		}
	}
}

func (s *Settings) normalize() {
	s.Host = strings.TrimSpace(s.Host)
	if s.Host == "" {
		s.Host = config.DefaultServerHost
	}
	if !isValidPort(s.Port) {
		s.Port = config.DefaultServerPort
	}
	if s.MaxBodyBytes <= 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
}

// Address returns the TCP bind address in host:port form.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the HTTP base URL for the server.
func (s Settings) URL() string {
	return "http://" + s.Address()
}

func isValidPort(port int) bool {
	return port > 0 && port <= 65535
}
