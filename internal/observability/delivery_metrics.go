package observability

import (
	"sync/atomic"
	"time"
)

// DeliveryMetrics keeps in-process email delivery counters for the readiness report
// and mirrors them to Prometheus when a Prom is attached.
type DeliveryMetrics struct {
	prom *Prom

	sent     atomic.Uint64
	failed   atomic.Uint64
	rejected atomic.Uint64

	// duration stats (nanoseconds)
	durationCount atomic.Uint64
	durationTotal atomic.Int64
	durationMax   atomic.Int64
}

func NewDeliveryMetrics(prom *Prom) *DeliveryMetrics {
	return &DeliveryMetrics{prom: prom}
}

// ObserveDelivery implements notifications.DeliveryObserver.
func (m *DeliveryMetrics) ObserveDelivery(result string, d time.Duration) {
	switch result {
	case "sent":
		m.sent.Add(1)
	case "rejected":
		m.rejected.Add(1)
	default:
		result = "failed"
		m.failed.Add(1)
	}

	if m.prom != nil {
		m.prom.EmailDeliveries.WithLabelValues(result).Inc()
	}

	// breaker rejections never reach the provider
	if result == "rejected" {
		return
	}

	ns := d.Nanoseconds()
	m.durationCount.Add(1)
	m.durationTotal.Add(ns)

	for {
		curr := m.durationMax.Load()

		if ns <= curr {
			return
		}

		if m.durationMax.CompareAndSwap(curr, ns) {
			return
		}
	}
}

type DeliverySnapshot struct {
	Sent            uint64        `json:"sent"`
	Failed          uint64        `json:"failed"`
	Rejected        uint64        `json:"rejected"`
	AverageDuration time.Duration `json:"average_duration_ns"`
	MaxDuration     time.Duration `json:"max_duration_ns"`
}

func (m *DeliveryMetrics) Snapshot() DeliverySnapshot {
	count := m.durationCount.Load()
	total := m.durationTotal.Load()

	var avg time.Duration

	if count > 0 {
		avg = time.Duration(total / int64(count))
	}

	return DeliverySnapshot{
		Sent:            m.sent.Load(),
		Failed:          m.failed.Load(),
		Rejected:        m.rejected.Load(),
		AverageDuration: avg,
		MaxDuration:     time.Duration(m.durationMax.Load()),
	}
}
