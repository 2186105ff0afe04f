package observability

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danmuck/jdwpctl/internal/protocol"
)

// Outcome labels.
const (
	OutcomeOK         = "ok"
	OutcomeReplyError = "reply_error"
	OutcomeHandshake  = "handshake"
	OutcomeTransport  = "transport"
	OutcomeMalformed  = "malformed"
	OutcomeUnknown    = "unknown_command"
	OutcomeCodecState = "codec_state"
	OutcomeError      = "error"
)

var (
	registerOnce sync.Once

	commandRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jdwpctl",
			Subsystem: "command",
			Name:      "requests_total",
			Help:      "JDWP commands sent, by outcome.",
		},
		[]string{"command", "outcome"},
	)
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jdwpctl",
			Subsystem: "command",
			Name:      "duration_seconds",
			Help:      "JDWP command round trip duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	commandReplyBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jdwpctl",
			Subsystem: "command",
			Name:      "reply_bytes",
			Help:      "JDWP reply body size in bytes.",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 10),
		},
		[]string{"command"},
	)
	handshakes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jdwpctl",
			Name:      "handshakes_total",
			Help:      "JDWP handshakes attempted, by outcome.",
		},
		[]string{"outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(commandRequests, commandDuration, commandReplyBytes, handshakes)
	})
}

// Outcome maps an error onto its metric label.
func Outcome(err error) string {
	var replyErr *protocol.ReplyError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &replyErr):
		return OutcomeReplyError
	case errors.Is(err, protocol.ErrHandshake):
		return OutcomeHandshake
	case errors.Is(err, protocol.ErrMalformedPacket):
		return OutcomeMalformed
	case errors.Is(err, protocol.ErrTransport):
		return OutcomeTransport
	case errors.Is(err, protocol.ErrUnknownCommand):
		return OutcomeUnknown
	case errors.Is(err, protocol.ErrCodecState):
		return OutcomeCodecState
	default:
		return OutcomeError
	}
}

func RecordCommand(command string, err error, duration time.Duration, replyBytes int) {
	RegisterMetrics()
	commandRequests.WithLabelValues(command, Outcome(err)).Inc()
	if errors.Is(err, protocol.ErrUnknownCommand) {
		return
	}
	commandDuration.WithLabelValues(command).Observe(duration.Seconds())
	if replyBytes > 0 {
		commandReplyBytes.WithLabelValues(command).Observe(float64(replyBytes))
	}
}

func RecordHandshake(err error) {
	RegisterMetrics()
	handshakes.WithLabelValues(Outcome(err)).Inc()
}

// WriteTextfile dumps the default registry in the node-exporter textfile
// format. The file is replaced atomically.
func WriteTextfile(path string) error {
	RegisterMetrics()
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
