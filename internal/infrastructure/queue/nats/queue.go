package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/infrastructure/chunking"
	"github.com/kirillkom/legal-intake/internal/infrastructure/resilience"
)

const workerQueueGroup = "intake-workers"

// Queue carries batch events from the API to workers and redacted text to
// downstream consumers over core NATS.
type Queue struct {
	conn            *nats.Conn
	subject         string
	redactedSubject string
	executor        *resilience.Executor
	splitter        *chunking.Splitter
	logger          *slog.Logger
}

type Options struct {
	RedactedSubject      string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	// Splitter, when set, attaches search-sized chunks to handed-off text.
	Splitter *chunking.Splitter
	Logger   *slog.Logger
}

func New(url, subject string, options Options) (*Queue, error) {
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
		nats.Name("legal-intake"),
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
		conn:            conn,
		subject:         subject,
		redactedSubject: options.RedactedSubject,
		executor:        options.ResilienceExecutor,
		splitter:        options.Splitter,
		logger:          logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishBatchIngested(ctx context.Context, event domain.BatchEvent) error {
	payload, err := encodeBatchEvent(event)
	if err != nil {
		return err
	}
	return q.publish(ctx, "nats.publish.batch", q.subject, payload)
}

// HandOffRedacted publishes redacted text for downstream collaborators. It is
// a no-op when no subject is configured.
func (q *Queue) HandOffRedacted(ctx context.Context, event domain.RedactedTextEvent) error {
	if q.redactedSubject == "" {
		return nil
	}
	payload, err := q.encodeRedactedEvent(event)
	if err != nil {
		return err
	}
	return q.publish(ctx, "nats.publish.redacted", q.redactedSubject, payload)
}

func (q *Queue) encodeRedactedEvent(event domain.RedactedTextEvent) ([]byte, error) {
	if q.splitter != nil && len(event.Chunks) == 0 {
		event.Chunks = q.splitter.Split(event.Text)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal redacted event: %w", err)
	}
	return payload, nil
}

func (q *Queue) publish(ctx context.Context, operation, subject string, payload []byte) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, payload); err != nil {
			return wrapTemporaryIfNeeded(fmt.Errorf("nats publish: %w", err))
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, operation, call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(err)
}

// SubscribeBatchIngested blocks until ctx is done, handing each decoded batch
// event to handler. Undecodable messages are logged and dropped.
func (q *Queue) SubscribeBatchIngested(ctx context.Context, handler func(context.Context, domain.BatchEvent) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		event, err := decodeBatchEvent(msg.Data)
		if err != nil {
			q.logger.Error("batch_event_decode_failed", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, event); err != nil {
			q.logger.Error("batch_handler_failed", "batch_id", event.BatchID, "error", err)
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

func encodeBatchEvent(event domain.BatchEvent) ([]byte, error) {
	if event.BatchID == "" || len(event.JobIDs) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode batch event", errors.New("batch id and job ids are required"))
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal batch event: %w", err)
	}
	return payload, nil
}

func decodeBatchEvent(data []byte) (domain.BatchEvent, error) {
	var event domain.BatchEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.BatchEvent{}, fmt.Errorf("unmarshal batch event: %w", err)
	}
	if event.BatchID == "" || len(event.JobIDs) == 0 {
		return domain.BatchEvent{}, domain.WrapError(domain.ErrInvalidInput, "decode batch event", errors.New("batch id and job ids are required"))
	}
	return event, nil
}
