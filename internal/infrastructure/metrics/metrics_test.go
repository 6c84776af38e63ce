package metrics

import (
	"errors"
	"testing"

	"pulseboard/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	switch {
	case out.Counter != nil:
		return out.GetCounter().GetValue()
	case out.Gauge != nil:
		return out.GetGauge().GetValue()
	}
	t.Fatalf("unsupported metric type")
	return 0
}

func TestRecorderCounts(t *testing.T) {
	r := Recorder{}
	before := value(t, FetchesTotal.WithLabelValues("news", "error"))
	r.FetchCompleted("news", errors.New("boom"))
	if got := value(t, FetchesTotal.WithLabelValues("news", "error")); got != before+1 {
		t.Fatalf("fetch error counter = %v, want %v", got, before+1)
	}

	staleBefore := value(t, CacheLookups.WithLabelValues("cachedNews", "stale"))
	r.CacheLookup("cachedNews", true, false)
	if got := value(t, CacheLookups.WithLabelValues("cachedNews", "stale")); got != staleBefore+1 {
		t.Fatalf("stale counter = %v", got)
	}
}

func TestNotificationCounterAndStreamState(t *testing.T) {
	c := NotificationCounter{Unread: func() int { return 7 }}
	c.OnNotification(model.Notification{Category: model.CategoryPriceAlert})
	if got := value(t, UnreadNotifications); got != 7 {
		t.Fatalf("unread gauge = %v, want 7", got)
	}

	SetStreamState("Open")
	if value(t, StreamState.WithLabelValues("open")) != 1 ||
		value(t, StreamState.WithLabelValues("idle")) != 0 {
		t.Fatalf("stream state gauge not flipped")
	}
}
