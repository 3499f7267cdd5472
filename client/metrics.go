package client

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/meszmate/imap-codec/wire"
)

// Metrics holds the codec counters of a client. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// Payloads counts framed server responses.
	Payloads prometheus.Counter
	// LiteralBytes counts literal bytes received.
	LiteralBytes prometheus.Counter
	// ParseErrors counts responses that failed to parse, by category:
	// "syntax", "fatal" or "internal".
	ParseErrors *prometheus.CounterVec
	// Commands observes command duration in seconds, by command and result.
	Commands *prometheus.HistogramVec
	// CommandBytes counts bytes written for commands.
	CommandBytes prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Payloads: f.NewCounter(prometheus.CounterOpts{
			Name: "imapwire_payloads_total",
			Help: "Number of server responses framed.",
		}),
		LiteralBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "imapwire_literal_bytes_total",
			Help: "Number of literal bytes received from the server.",
		}),
		ParseErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "imapwire_parse_errors_total",
			Help: "Number of server responses that could not be parsed.",
		}, []string{"category"}),
		Commands: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imapwire_command_duration_seconds",
			Help:    "Command round trip duration.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.100, 0.5, 1, 5, 10, 20, 30, 60},
		}, []string{"command", "result"}),
		CommandBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "imapwire_command_bytes_total",
			Help: "Number of bytes written for commands.",
		}),
	}
}

// ObservePayload counts one framed response and its literal bytes.
func (m *Metrics) ObservePayload(p *wire.Payload) {
	if m == nil {
		return
	}
	m.Payloads.Inc()
	m.LiteralBytes.Add(float64(p.LiteralBytes()))
}

// ObserveParseError counts a failed parse by error category.
func (m *Metrics) ObserveParseError(err error) {
	if m == nil {
		return
	}
	m.ParseErrors.WithLabelValues(errorCategory(err)).Inc()
}

func (m *Metrics) command(name, result string, start time.Time, n int) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(name, result).Observe(float64(time.Since(start)) / float64(time.Second))
	m.CommandBytes.Add(float64(n))
}

func errorCategory(err error) string {
	var fe *wire.FatalError
	var ie *wire.InternalError
	switch {
	case errors.As(err, &fe):
		return "fatal"
	case errors.As(err, &ie):
		return "internal"
	default:
		return "syntax"
	}
}
