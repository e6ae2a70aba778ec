package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/infrastructure/resilience"
)

const workerQueueGroup = "reprocess-workers"

// Queue publishes classified events and carries reprocess requests
// (incoming artifact keys) to a worker queue group.
type Queue struct {
	conn             *nats.Conn
	eventsSubject    string
	reprocessSubject string
	executor         *resilience.Executor
	logger           *slog.Logger
}

type Options struct {
	EventsSubject        string
	ReprocessSubject     string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("doc-classifier"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:             conn,
		eventsSubject:    subjectOr(options.EventsSubject, "documents.classified"),
		reprocessSubject: subjectOr(options.ReprocessSubject, "documents.reprocess"),
		executor:         options.ResilienceExecutor,
		logger:           logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishClassified(ctx context.Context, event domain.ClassifiedEvent) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}
	return q.publish(ctx, "nats.publish_classified", q.eventsSubject, payload, deliveryBestEffort)
}

func (q *Queue) PublishReprocess(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.WrapError(domain.ErrValidation, "nats publish reprocess", errors.New("key is required"))
	}
	return q.publish(ctx, "nats.publish_reprocess", q.reprocessSubject, []byte(key), deliveryRequired)
}

func (q *Queue) publish(ctx context.Context, operation, subject string, payload []byte, mode delivery) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("%s %s: %w", operation, subject, err)
		}
		return nil
	}

	classify := mode.classifier()
	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, operation, call, classify)
	} else {
		err = call(ctx)
	}
	if err != nil {
		q.logger.Warn("nats_publish_failed", "operation", operation, "delivery", mode.String(), "error", err)
		return resilience.WrapTemporaryIfNeeded(operation, err, classify)
	}
	return nil
}

// SubscribeReprocess blocks until ctx is done, then drains the subscription.
func (q *Queue) SubscribeReprocess(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.reprocessSubject, workerQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		key := string(msg.Data)
		if err := handler(handlerCtx, key); err != nil {
			q.logger.Error("reprocess_handler_failed", "key", key, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeEvent(event domain.ClassifiedEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode classified event: %w", err)
	}
	return payload, nil
}

func subjectOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
