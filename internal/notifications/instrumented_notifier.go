package notifications

import (
	"context"
	"errors"
	"time"
)

// DeliveryObserver is told the outcome of every send: "sent", "failed" or "rejected".
type DeliveryObserver interface {
	ObserveDelivery(result string, d time.Duration)
}

type InstrumentedNotifier struct {
	inner    Notifier
	observer DeliveryObserver
}

func NewInstrumentedNotifier(inner Notifier, observer DeliveryObserver) *InstrumentedNotifier {
	return &InstrumentedNotifier{inner: inner, observer: observer}
}

func (n *InstrumentedNotifier) Send(ctx context.Context, msg Message) error {
	start := time.Now()
	err := n.inner.Send(ctx, msg)

	result := "sent"
	switch {
	case errors.Is(err, ErrCircuitOpen):
		result = "rejected"
	case err != nil:
		result = "failed"
	}

	n.observer.ObserveDelivery(result, time.Since(start))
	return err
}
