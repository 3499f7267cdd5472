package client

import (
	"crypto/tls"
	"time"

	"github.com/rs/zerolog"

	imap "github.com/meszmate/imap-codec"
)

// Option is a functional option for configuring the client.
type Option func(*Options)

// Options holds all client configuration.
type Options struct {
	// TLSConfig is the TLS configuration used by DialTLS.
	TLSConfig *tls.Config

	// Logger is the structured logger.
	Logger zerolog.Logger

	// DebugLog enables wire-level protocol logging. Outgoing commands are
	// logged in redacted form.
	DebugLog bool

	// LiteralPlus and LiteralMinus force non-synchronizing literals even if
	// the server did not advertise LITERAL+ or LITERAL-.
	LiteralPlus  bool
	LiteralMinus bool

	// MaxLiteralSize bounds literals accepted from the server.
	MaxLiteralSize int64

	// ReadBufferSize is the size of each read from the connection.
	ReadBufferSize int

	// WriteTimeout bounds each write to the connection. Zero disables it.
	WriteTimeout time.Duration

	// TagPrefix is prepended to the command counter to form tags.
	TagPrefix string

	// Metrics receives codec counters. Nil disables metrics.
	Metrics *Metrics

	// UnilateralDataHandler is called from the reader goroutine for every
	// untagged response.
	UnilateralDataHandler func(*imap.Response)
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() *Options {
	return &Options{
		Logger:         zerolog.Nop(),
		ReadBufferSize: 4096,
		WriteTimeout:   1 * time.Minute,
		TagPrefix:      "A",
	}
}

// WithTLSConfig sets the TLS configuration.
func WithTLSConfig(config *tls.Config) Option {
	return func(o *Options) {
		o.TLSConfig = config
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithDebugLog enables wire-level protocol logging.
func WithDebugLog(enable bool) Option {
	return func(o *Options) {
		o.DebugLog = enable
	}
}

// WithLiteralPlus forces {n+} literals.
func WithLiteralPlus(enable bool) Option {
	return func(o *Options) {
		o.LiteralPlus = enable
	}
}

// WithLiteralMinus forces {n+} for literals up to 4096 bytes.
func WithLiteralMinus(enable bool) Option {
	return func(o *Options) {
		o.LiteralMinus = enable
	}
}

// WithMaxLiteralSize bounds literals accepted from the server.
func WithMaxLiteralSize(n int64) Option {
	return func(o *Options) {
		o.MaxLiteralSize = n
	}
}

// WithReadBufferSize sets the size of each read from the connection.
func WithReadBufferSize(n int) Option {
	return func(o *Options) {
		o.ReadBufferSize = n
	}
}

// WithWriteTimeout sets the write timeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.WriteTimeout = d
	}
}

// WithTagPrefix sets the tag prefix.
func WithTagPrefix(prefix string) Option {
	return func(o *Options) {
		o.TagPrefix = prefix
	}
}

// WithMetrics enables codec metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *Options) {
		o.Metrics = m
	}
}

// WithUnilateralDataHandler sets the handler for untagged responses.
func WithUnilateralDataHandler(h func(*imap.Response)) Option {
	return func(o *Options) {
		o.UnilateralDataHandler = h
	}
}
