// Package loop implements the Message Loop: poll the input queue,
// process each message through the submission state machine, and
// publish a verified result before deleting the input.
package loop

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/MITLibraries/dspace-submission-service/internal/errors"
	"github.com/MITLibraries/dspace-submission-service/internal/message"
	"github.com/MITLibraries/dspace-submission-service/internal/metrics"
	"github.com/MITLibraries/dspace-submission-service/internal/objectstore"
	"github.com/MITLibraries/dspace-submission-service/internal/queue"
	"github.com/MITLibraries/dspace-submission-service/internal/repository"
	"github.com/MITLibraries/dspace-submission-service/internal/submission"
)

// RepositoryResolver maps a submission's destination name to the
// repository.Client that should handle it, along with the connection
// details used to annotate a DSpaceTimeoutError should one occur.
type RepositoryResolver func(destination string) (repo repository.Client, baseURL string, timeout float64, err error)

// Loop is the single-worker, sequential message loop. It never fans out
// across messages or bitstreams: ordering is required for compensation
// correctness.
type Loop struct {
	Queue             queue.Adapter
	InputQueue        string
	AllowedQueues     []string
	WaitSeconds       int32
	VisibilitySeconds int32
	SkipProcessing    bool

	Reader       objectstore.Reader
	Repositories RepositoryResolver

	Logger zerolog.Logger
}

// Run drains the input queue batch by batch until a receive returns no
// messages, then returns nil. A halt-class error escaping submission
// processing is returned immediately, without deleting the message that
// caused it; the caller (the CLI's start command) exits non-zero on it.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		processed, err := l.RunOnce(ctx)
		if err != nil {
			return err
		}
		if processed == 0 {
			return nil
		}
	}
}

// RunOnce receives and processes one batch (up to 10 messages, per the
// queue adapter's own cap) and reports how many it processed. It is the
// unit exercised directly by tests.
func (l *Loop) RunOnce(ctx context.Context) (int, error) {
	messages, err := l.Queue.Receive(ctx, l.InputQueue, l.WaitSeconds, l.VisibilitySeconds)
	if err != nil {
		return 0, fmt.Errorf("failed to receive from queue '%s': %w", l.InputQueue, err)
	}

	for i, msg := range messages {
		metrics.RecordMessageReceived(l.InputQueue)
		if err := l.processMessage(ctx, msg); err != nil {
			return i, err
		}
	}
	return len(messages), nil
}

// processMessage runs one message through the full pipeline. A returned
// error is always halt class (report-continue outcomes are resolved to
// a published result and a deleted input message inside this function).
func (l *Loop) processMessage(ctx context.Context, msg queue.Message) error {
	logger := l.Logger.With().Str("message_id", msg.ID).Logger()
	start := time.Now()

	if l.SkipProcessing {
		logger.Info().Msg("skip_processing is enabled, discarding message without submitting it")
		return l.Queue.Delete(ctx, l.InputQueue, msg)
	}

	sub, err := submission.FromMessage(msg, l.InputQueue, l.AllowedQueues)
	if err != nil {
		logClassified(logger, err)
		return err
	}

	var (
		repo    repository.Client
		baseURL string
		timeout float64
	)
	// A nonconforming body already carries its error result: Submit never
	// calls the repository for it, so no destination is resolved.
	if _, conforming := message.ParseSubmissionBody([]byte(msg.Body)); conforming {
		repo, baseURL, timeout, err = l.Repositories(sub.Destination)
		if err != nil {
			return fmt.Errorf("no repository configured for destination '%s': %w", sub.Destination, err)
		}
	}

	result, err := sub.Submit(ctx, repo, l.Reader, baseURL, timeout)
	if err != nil {
		logClassified(logger, err)
		return err
	}
	metrics.RecordSubmission(result.ResultType, time.Since(start))

	bodyJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result message: %w", err)
	}

	sent, err := l.Queue.Send(ctx, sub.ResultQueue, sub.ResultAttributes, string(bodyJSON))
	if err != nil {
		return fmt.Errorf("failed to send result to queue '%s': %w", sub.ResultQueue, err)
	}

	if !queue.VerifySent(string(bodyJSON), sent) {
		publishErr := &apperrors.ResultPublishError{
			ResultQueue:     sub.ResultQueue,
			SubmitMessageID: msg.ID,
			Attributes:      stringifyAttributes(sub.ResultAttributes),
		}
		logClassified(logger, publishErr)
		return publishErr
	}

	logger.Info().Str("result_type", result.ResultType).Msg("submission processed")
	return l.Queue.Delete(ctx, l.InputQueue, msg)
}

func logClassified(logger zerolog.Logger, err error) {
	policy := "unclassified"
	if classified, ok := err.(apperrors.Classified); ok {
		policy = classified.Policy().String()
	}
	metrics.RecordHalt(policy)
	logger.Error().Str("policy", policy).Err(err).Msg("submission processing failed")
}

func stringifyAttributes(attrs map[string]queue.Attribute) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v.StringValue
	}
	return out
}
