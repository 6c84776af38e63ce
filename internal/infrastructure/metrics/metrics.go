package metrics

import (
	"strings"

	"pulseboard/internal/application/port"
	"pulseboard/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FetchesTotal 上游拉取次数（按数据源和结果）
var FetchesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "pulseboard",
		Subsystem: "fetch",
		Name:      "requests_total",
		Help:      "Upstream fetches by source and result",
	},
	[]string{"source", "result"},
)

var FetchRetries = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "pulseboard",
		Subsystem: "fetch",
		Name:      "retries_total",
		Help:      "Retried upstream requests by source",
	},
	[]string{"source"},
)

var CacheLookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "pulseboard",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Cache lookups by key and outcome (miss, fresh, stale)",
	},
	[]string{"key", "outcome"},
)

var NotificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "pulseboard",
		Subsystem: "ledger",
		Name:      "notifications_total",
		Help:      "Notifications appended to the ledger by category",
	},
	[]string{"category"},
)

var UnreadNotifications = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "pulseboard",
		Subsystem: "ledger",
		Name:      "unread",
		Help:      "Unread notifications currently held by the ledger",
	},
)

// StreamState is 1 for the current state label, 0 for the others.
var StreamState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "pulseboard",
		Subsystem: "stream",
		Name:      "state",
		Help:      "Current push connection state",
	},
	[]string{"state"},
)

// Recorder implements port.Metrics on the package collectors.
type Recorder struct{}

var _ port.Metrics = Recorder{}

func (Recorder) FetchCompleted(source string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	FetchesTotal.WithLabelValues(source, result).Inc()
}

func (Recorder) FetchRetried(source string) {
	FetchRetries.WithLabelValues(source).Inc()
}

func (Recorder) CacheLookup(key string, hit, fresh bool) {
	outcome := "miss"
	switch {
	case hit && fresh:
		outcome = "fresh"
	case hit:
		outcome = "stale"
	}
	CacheLookups.WithLabelValues(key, outcome).Inc()
}

// NotificationCounter counts appended notifications; unread is sampled
// from the ledger on each one.
type NotificationCounter struct {
	Unread func() int
}

func (c NotificationCounter) OnNotification(n model.Notification) {
	NotificationsTotal.WithLabelValues(string(n.Category)).Inc()
	if c.Unread != nil {
		UnreadNotifications.Set(float64(c.Unread()))
	}
}

var streamStates = []string{"idle", "connecting", "open", "reconnecting", "failed"}

// SetStreamState flips the state gauge to the given state name.
func SetStreamState(state string) {
	state = strings.ToLower(state)
	for _, s := range streamStates {
		v := 0.0
		if s == state {
			v = 1
		}
		StreamState.WithLabelValues(s).Set(v)
	}
}
