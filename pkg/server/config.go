package server

import (
	"errors"
	"net/http"
	"time"
)

// Config holds server and session settings.
type Config struct {
	// Addr is the listen address.
	// Default: ":8080".
	Addr string

	// ReadBufferSize and WriteBufferSize size the websocket buffers.
	// Default: 4096.
	ReadBufferSize  int
	WriteBufferSize int

	// CheckOrigin validates the websocket Origin header. Nil accepts
	// same-host origins only.
	CheckOrigin func(r *http.Request) bool

	// WriteTimeout is the maximum time to write one frame.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// PongTimeout is how long a connection may stay silent before it is
	// dropped. Pings are sent at 9/10 of this interval.
	// Default: 60 seconds.
	PongTimeout time.Duration

	// MaxMessageSize is the maximum size of an incoming frame.
	// Default: 64KB.
	MaxMessageSize int64

	// HistorySize is the number of recent batch frames kept for resync.
	// Default: 100.
	HistorySize int

	// SendQueue is the number of frames buffered per session before the
	// widget reports a failed apply.
	// Default: 256.
	SendQueue int

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// ReadHeaderTimeout guards against slowloris.
	// Default: 5 seconds.
	ReadHeaderTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:              ":8080",
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		WriteTimeout:      10 * time.Second,
		PongTimeout:       60 * time.Second,
		MaxMessageSize:    64 * 1024,
		HistorySize:       100,
		SendQueue:         256,
		ShutdownTimeout:   30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// withDefaults fills unset fields.
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.Addr == "" {
		out.Addr = d.Addr
	}
	if out.ReadBufferSize == 0 {
		out.ReadBufferSize = d.ReadBufferSize
	}
	if out.WriteBufferSize == 0 {
		out.WriteBufferSize = d.WriteBufferSize
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.PongTimeout == 0 {
		out.PongTimeout = d.PongTimeout
	}
	if out.MaxMessageSize == 0 {
		out.MaxMessageSize = d.MaxMessageSize
	}
	if out.HistorySize == 0 {
		out.HistorySize = d.HistorySize
	}
	if out.SendQueue == 0 {
		out.SendQueue = d.SendQueue
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = d.ShutdownTimeout
	}
	if out.ReadHeaderTimeout == 0 {
		out.ReadHeaderTimeout = d.ReadHeaderTimeout
	}
	return &out
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []error
	if c.WriteTimeout < 0 || c.PongTimeout < 0 || c.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server: timeouts must not be negative"))
	}
	if c.MaxMessageSize < 0 {
		errs = append(errs, errors.New("server: MaxMessageSize must not be negative"))
	}
	if c.HistorySize < 0 || c.SendQueue < 0 {
		errs = append(errs, errors.New("server: HistorySize and SendQueue must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) pingInterval() time.Duration {
	return c.PongTimeout * 9 / 10
}
