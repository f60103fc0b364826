package broadcast

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "remoteid"

type metrics struct {
	framesSent        *prometheus.CounterVec
	framesSkipped     *prometheus.CounterVec
	advertiseFailures prometheus.Counter
	signingFailures   prometheus.Counter
	sessions          prometheus.Counter
	radioLost         prometheus.Counter
	state             prometheus.Gauge
}

// newMetrics creates the controller collectors. A nil registerer leaves them unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	kind := []string{"kind"}

	return &metrics{
		framesSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_sent_total",
			Help: "Number of frames handed to the radio.",
		}, kind),
		framesSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_skipped_total",
			Help: "Number of ticks skipped because the frame could not be encoded.",
		}, kind),
		advertiseFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "advertise_failures_total",
			Help: "Number of failed advertise or stop advertising calls.",
		}),
		signingFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "signing_failures_total",
			Help: "Number of authentication frames sent with the placeholder signature.",
		}),
		sessions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sessions_total",
			Help: "Number of broadcast sessions started.",
		}),
		radioLost: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "radio_lost_total",
			Help: "Number of sessions ended by the radio powering off.",
		}),
		state: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "controller_state",
			Help: "Controller state: 0 idle, 1 starting, 2 broadcasting, 3 stopping.",
		}),
	}
}
