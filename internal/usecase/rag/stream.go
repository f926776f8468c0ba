package rag

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/kailas-cloud/autorag/internal/domain"
	"github.com/kailas-cloud/autorag/internal/logger"
	"github.com/kailas-cloud/autorag/internal/metrics"
)

// Stream runs the pipeline and writes the answer to sink as it is generated:
// text fragments in arrival order, then one cars frame when records were hydrated.
//
// Validation and configuration errors are returned before sink is touched, so the caller
// can still answer with a plain error response. Once streaming starts every failure is
// reported as a single error frame, sink is closed exactly once, and Stream returns nil.
func (s *Service) Stream(ctx context.Context, q domain.Query, sink Sink) error {
	if err := s.precheck(q); err != nil {
		metrics.RAGRequestsTotal.WithLabelValues(ModeStream, outcomeFailed).Inc()
		return err
	}

	log := logger.FromContext(ctx)
	defer func() {
		if err := sink.Close(); err != nil {
			log.Debug("Closing stream sink failed", zap.Error(err))
		}
	}()

	outcome, err := s.stream(ctx, q, sink)
	if err != nil {
		log.Error("Streaming answer failed", zap.Error(err))
		if ferr := sink.Fail(failureMessage(err)); ferr != nil {
			log.Debug("Writing error frame failed", zap.Error(ferr))
		}
		outcome = outcomeFailed
	}
	metrics.RAGRequestsTotal.WithLabelValues(ModeStream, outcome).Inc()
	return nil
}

func (s *Service) stream(ctx context.Context, q domain.Query, sink Sink) (string, error) {
	if !Classify(q.Text(), "") {
		if err := s.pipe(ctx, sink, directInstruction, q.Conversation()); err != nil {
			return "", err
		}
		return outcomeDirect, nil
	}

	r := s.retrieve(ctx, q)
	contextText := s.buildContext(r)
	if contextText == "" {
		if err := sink.Text(noContextAnswer); err != nil {
			return "", fmt.Errorf("rag: write fragment: %w", err)
		}
		return outcomeNoContext, nil
	}

	if err := s.pipe(ctx, sink, answerInstruction, groundedConversation(q, contextText)); err != nil {
		return "", err
	}
	if len(r.records) > 0 {
		if err := sink.Cars(r.records); err != nil {
			return "", fmt.Errorf("rag: write cars: %w", err)
		}
	}
	return outcomeAnswered, nil
}

// pipe forwards generated fragments to sink in arrival order.
func (s *Service) pipe(ctx context.Context, sink Sink, instruction string, msgs []domain.Message) (err error) {
	ctx, end := startStage(ctx, "completion")
	defer func() { end(err) }()

	stream, err := s.completer.Stream(ctx, instruction, msgs)
	if err != nil {
		return fmt.Errorf("rag: open stream: %w: %w", domain.ErrCompletionFailed, err)
	}
	defer func() { _ = stream.Close() }()

	emitted := 0
	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("rag: receive fragment: %w: %w", domain.ErrCompletionFailed, err)
		}
		if fragment == "" {
			continue
		}
		if err := sink.Text(fragment); err != nil {
			// The client is gone; stop pulling from the provider.
			return fmt.Errorf("rag: write fragment: %w", err)
		}
		emitted++
	}

	if emitted == 0 {
		if err := sink.Text(emptyModelAnswer); err != nil {
			return fmt.Errorf("rag: write fragment: %w", err)
		}
	}
	return nil
}

// failureMessage is the text of the terminal error frame. Upstream details stay in the logs.
func failureMessage(err error) string {
	if errors.Is(err, domain.ErrCompletionFailed) {
		return "language model request failed"
	}
	return "internal error"
}
