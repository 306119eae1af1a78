package server

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/Tiliavir/trivial-study-tracker/internal/config"
)

const (
	// DefaultMaxBodyBytes limits request payloads to 1 MB.
	DefaultMaxBodyBytes int64 = 1 << 20
	// DefaultReadTimeout guards hung clients.
	DefaultReadTimeout = 15 * time.Second
	// DefaultWriteTimeout bounds handler writes. The stream endpoint lifts it
	// per request.
	DefaultWriteTimeout = 15 * time.Second
	// DefaultIdleTimeout bounds keep-alive connections.
	DefaultIdleTimeout = 60 * time.Second
)

// Settings captures runtime configuration for the HTTP server.
type Settings struct {
	Host         string
	Port         int
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SettingsFromConfig builds Settings from the server section of cfg.
// Environment overrides have already been applied by config.Load.
func SettingsFromConfig(cfg config.Config) Settings {
	s := Settings{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}
	s.normalize()
	return s
}

func (s *Settings) normalize() {
	s.Host = strings.TrimSpace(s.Host)
	if s.Host == "" {
		s.Host = config.DefaultHost
	}
	if s.Port < 0 || s.Port > 65535 {
		s.Port = config.DefaultPort
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

// Address returns the TCP bind address in host:port form. Port 0 picks a
// free port.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the HTTP base URL for the server.
func (s Settings) URL() string {
	return "http://" + s.Address()
}
