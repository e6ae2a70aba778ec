package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/infrastructure/resilience"
)

// delivery says how hard a publish should try.
type delivery int

const (
	// deliveryRequired is used for reprocess requests: a lost key is a lost rebuild.
	deliveryRequired delivery = iota
	// deliveryBestEffort is used for classified events: one attempt, no breaker trips.
	deliveryBestEffort
)

func (d delivery) String() string {
	if d == deliveryBestEffort {
		return "best_effort"
	}
	return "required"
}

var (
	transportErrors = []error{
		nats.ErrNoServers,
		nats.ErrTimeout,
		nats.ErrConnectionClosed,
		nats.ErrDisconnected,
		nats.ErrReconnectBufExceeded,
	}
	// Caller mistakes; the broker is healthy, so they neither retry nor count.
	malformedErrors = []error{
		nats.ErrMaxPayload,
		nats.ErrBadSubject,
		nats.ErrInvalidMsg,
	}
)

func (d delivery) classifier() resilience.ErrorClassifier {
	return func(err error) resilience.ErrorClassification {
		return classifyPublishError(d, err)
	}
}

func classifyPublishError(d delivery, err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case isAny(err, malformedErrors):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err), isAny(err, transportErrors):
		if d == deliveryBestEffort {
			return resilience.ErrorClassification{}
		}
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: d == deliveryRequired}
	}
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
