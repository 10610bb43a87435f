// Package pipeline chains the broker, blob and API clients: Ingest moves an
// API response onto a topic and Forward drains a topic into a blob.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360/exchange/broker"
	"github.com/c360/exchange/config"
	"github.com/c360/exchange/errors"
	"github.com/c360/exchange/metric"
	"github.com/c360/exchange/storage"
)

// DefaultForwardTTL is the poll window used by Forward when none is given.
const DefaultForwardTTL = 2 * time.Second

// ForwardWriteTimeout bounds the blob write once messages are committed.
// The write runs even when the caller's context is cancelled.
const ForwardWriteTimeout = 30 * time.Second

// Pipeline names used as metric labels.
const (
	NameIngest  = "ingest"
	NameForward = "forward"
)

// Run outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// Fetcher returns the JSON document served by an API. *requester.Requester
// implements it.
type Fetcher interface {
	Request(ctx context.Context, api config.APIDetails, name string) (json.RawMessage, error)
}

// Producer writes one message. *broker.Producer implements it.
type Producer interface {
	Produce(ctx context.Context, topic string, payload []byte) (broker.ProduceResult, error)
}

// Consumer drains its topic. *broker.Consumer implements it.
type Consumer interface {
	Consume(ctx context.Context, ttl time.Duration) (broker.ConsumeResult, error)
}

// Options carries the ambient dependencies of a run.
type Options struct {
	Logger  *slog.Logger
	Metrics *metric.Metrics
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// IngestRequest names the API to call and the topic to produce to.
type IngestRequest struct {
	APIName string
	API     config.APIDetails
	Topic   string
}

// IngestResult reports the produced message.
type IngestResult struct {
	Produce broker.ProduceResult `json:"produce"`
	Bytes   int                  `json:"bytes"`
}

// Ingest requests the API and produces the compacted JSON body to the topic.
// Nothing is produced when the request fails.
func Ingest(ctx context.Context, fetcher Fetcher, producer Producer, req IngestRequest, opts Options) (_ IngestResult, err error) {
	logger := opts.logger().With("pipeline", NameIngest, "api", req.APIName, "topic", req.Topic)
	defer func() { opts.Metrics.RecordPipelineRun(NameIngest, outcome(err, false)) }()

	body, err := fetcher.Request(ctx, req.API, req.APIName)
	if err != nil {
		return IngestResult{}, errors.Wrap(err, "pipeline", "Ingest", "request "+req.APIName)
	}

	var compact bytes.Buffer
	if err = json.Compact(&compact, body); err != nil {
		return IngestResult{}, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrInvalidData, err), "pipeline", "Ingest", "compact response")
	}

	produced, err := producer.Produce(ctx, req.Topic, compact.Bytes())
	if err != nil {
		return IngestResult{}, errors.Wrap(err, "pipeline", "Ingest", "produce to "+req.Topic)
	}

	logger.Info("API response produced", "bytes", compact.Len(), "key", produced.Key)
	return IngestResult{Produce: produced, Bytes: compact.Len()}, nil
}

// ForwardRequest names the topic to drain and the blob to write.
type ForwardRequest struct {
	Topic     string
	Container string
	Blob      string
	TTL       time.Duration
}

// ForwardResult reports what was consumed and written.
type ForwardResult struct {
	Container  string `json:"container"`
	Blob       string `json:"blob"`
	Count      int    `json:"count"`
	TotalBytes int    `json:"total_bytes"`
	Written    int    `json:"written_bytes"`
	Skipped    bool   `json:"skipped"`
}

// Forward drains the topic and writes the messages as a JSON object keyed
// "1".."n" to the blob, creating the container when needed. When nothing
// arrives the write is skipped so an existing blob is kept.
func Forward(ctx context.Context, consumer Consumer, store storage.Store, req ForwardRequest, opts Options) (_ ForwardResult, err error) {
	logger := opts.logger().With("pipeline", NameForward, "topic", req.Topic)
	result := ForwardResult{Container: req.Container, Blob: req.Blob}
	defer func() { opts.Metrics.RecordPipelineRun(NameForward, outcome(err, result.Skipped)) }()

	if err = storage.ValidateContainerName(req.Container); err != nil {
		return result, err
	}
	if req.Blob == "" {
		return result, errors.WrapInvalid(
			fmt.Errorf("%w: blob name is empty", errors.ErrInvalidData), "pipeline", "Forward", "validate blob name")
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = DefaultForwardTTL
	}

	consumed, err := consumer.Consume(ctx, ttl)
	if err != nil {
		return result, errors.Wrap(err, "pipeline", "Forward", "consume "+req.Topic)
	}
	result.Count = consumed.Count
	result.TotalBytes = consumed.TotalBytes

	if consumed.Count == 0 {
		logger.Warn("no data received, skipping write", "container", req.Container, "blob", req.Blob)
		result.Skipped = true
		return result, nil
	}

	data, err := consumed.JSON()
	if err != nil {
		return result, errors.Wrap(err, "pipeline", "Forward", "encode messages")
	}

	// Consumed messages are already committed; losing the write loses them.
	if ctx.Err() != nil {
		logger.Warn("Cancelled after consuming, writing collected messages", "count", consumed.Count)
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ForwardWriteTimeout)
	defer cancel()

	err = storage.PutEnsuringContainer(writeCtx, store, logger, req.Container, req.Blob, data, storage.ContentTypeJSON)
	if err != nil {
		return result, errors.Wrap(err, "pipeline", "Forward", fmt.Sprintf("write %s/%s", req.Container, req.Blob))
	}
	result.Written = len(data)

	logger.Info("Messages forwarded",
		"count", consumed.Count, "container", req.Container, "blob", req.Blob, "bytes", len(data))
	return result, nil
}

func outcome(err error, skipped bool) string {
	switch {
	case err != nil:
		return OutcomeError
	case skipped:
		return OutcomeSkipped
	default:
		return OutcomeOK
	}
}
