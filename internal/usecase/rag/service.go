// Package rag answers inventory questions: it classifies the query, retrieves and hydrates
// matching cars, and asks the language model to phrase a grounded recommendation.
package rag

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/kailas-cloud/autorag/internal/domain"
	"github.com/kailas-cloud/autorag/internal/domain/inventory"
	"github.com/kailas-cloud/autorag/internal/logger"
	"github.com/kailas-cloud/autorag/internal/metrics"
)

// Delivery modes, used as metric labels.
const (
	ModeBatch  = "batch"
	ModeStream = "stream"
)

// Run outcomes, used as metric labels.
const (
	outcomeAnswered  = "answered"
	outcomeNoContext = "no_context"
	outcomeDirect    = "direct"
	outcomeFailed    = "failed"
)

// Options tunes the pipeline.
type Options struct {
	TopK            int
	Namespace       string
	MaxContextItems int
	// Preflight reports missing required configuration before any upstream call.
	Preflight func() error
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		TopK:            8,
		Namespace:       "ns1",
		MaxContextItems: MaxContextItems,
	}
}

// Response is the batch answer payload.
type Response struct {
	Answer        string             `json:"answer"`
	ContextChunks []Match            `json:"contextChunks"`
	CarIDs        []inventory.ID     `json:"carIds"`
	Cars          []inventory.Record `json:"cars"`
}

// Service orchestrates one RAG run per call. It keeps no per-request state.
type Service struct {
	retriever Retriever
	store     RecordStore
	completer Completer
	opts      Options
}

// New creates a Service. store may be nil, in which case hydration is skipped.
func New(retriever Retriever, store RecordStore, completer Completer, opts Options) *Service {
	def := DefaultOptions()
	if opts.TopK <= 0 {
		opts.TopK = def.TopK
	}
	if opts.Namespace == "" {
		opts.Namespace = def.Namespace
	}
	if opts.MaxContextItems <= 0 {
		opts.MaxContextItems = def.MaxContextItems
	}
	return &Service{retriever: retriever, store: store, completer: completer, opts: opts}
}

// Answer runs the batch pipeline. Retrieval, hydration and hint failures degrade to empty data;
// validation, configuration and final completion failures are returned.
func (s *Service) Answer(ctx context.Context, q domain.Query) (*Response, error) {
	if err := s.precheck(q); err != nil {
		metrics.RAGRequestsTotal.WithLabelValues(ModeBatch, outcomeFailed).Inc()
		return nil, err
	}

	resp, outcome, err := s.answer(ctx, q)
	if err != nil {
		metrics.RAGRequestsTotal.WithLabelValues(ModeBatch, outcomeFailed).Inc()
		return nil, err
	}
	metrics.RAGRequestsTotal.WithLabelValues(ModeBatch, outcome).Inc()
	return resp, nil
}

func (s *Service) answer(ctx context.Context, q domain.Query) (*Response, string, error) {
	log := logger.FromContext(ctx)
	resp := &Response{
		ContextChunks: []Match{},
		CarIDs:        []inventory.ID{},
		Cars:          []inventory.Record{},
	}

	decision, hintErr := s.complete(ctx, "decision", decisionInstruction, q.Conversation())
	if hintErr != nil {
		log.Warn("Decision completion failed, classifying on query only", zap.Error(hintErr))
		metrics.RAGDegradationsTotal.WithLabelValues("hint").Inc()
	}

	ready := Classify(q.Text(), decision.Text)
	log.Debug("Query classified", zap.Bool("retrieve", ready), zap.Int("decision_len", len(decision.Text)))

	if !ready {
		resp.Answer = firstNonEmpty(decision.Text, fallbackDirectAnswer)
		return resp, outcomeDirect, nil
	}

	r := s.retrieve(ctx, q)
	resp.ContextChunks = r.matches
	resp.CarIDs = r.ids
	resp.Cars = r.records

	contextText := s.buildContext(r)
	if contextText == "" {
		log.Info("No context for query, skipping final completion")
		resp.Answer = noContextAnswer
		return resp, outcomeNoContext, nil
	}

	final, err := s.complete(ctx, "completion", answerInstruction, groundedConversation(q, contextText))
	if err != nil {
		return nil, "", fmt.Errorf("rag: final completion: %w", err)
	}
	resp.Answer = firstNonEmpty(final.Text, decision.Text, emptyModelAnswer)
	return resp, outcomeAnswered, nil
}

// retrieval is the intermediate data of one run; any part may be empty after a degradation.
type retrieval struct {
	matches []Match
	ids     []inventory.ID
	records []inventory.Record
}

func (s *Service) retrieve(ctx context.Context, q domain.Query) retrieval {
	log := logger.FromContext(ctx)

	sctx, end := startStage(ctx, "retrieval")
	hits, err := s.retriever.Search(sctx, q.Text(), s.opts.TopK, s.opts.Namespace)
	end(err)
	if err != nil {
		log.Warn("Vector search failed, continuing without context", zap.Error(err))
		metrics.RAGDegradationsTotal.WithLabelValues("retrieval").Inc()
		hits = nil
	}
	metrics.RAGRetrievalHits.Observe(float64(len(hits)))

	matches := Normalize(hits)
	ids := ExtractIDs(matches)
	log.Debug("Retrieval normalized",
		zap.Int("hits", len(hits)),
		zap.Stringers("car_ids", ids),
	)

	return retrieval{
		matches: matches,
		ids:     ids,
		records: s.hydrate(ctx, ids),
	}
}

// hydrate never calls the store with an empty id set.
func (s *Service) hydrate(ctx context.Context, ids []inventory.ID) []inventory.Record {
	records := []inventory.Record{}
	if len(ids) == 0 {
		return records
	}
	log := logger.FromContext(ctx)
	if s.store == nil {
		log.Warn("Record store not configured, skipping hydration")
		metrics.RAGDegradationsTotal.WithLabelValues("hydration").Inc()
		return records
	}

	sctx, end := startStage(ctx, "hydration")
	rows, err := s.store.FetchByIDs(sctx, ids)
	end(err)
	if err != nil {
		log.Warn("Record hydration failed, continuing without records", zap.Error(err))
		metrics.RAGDegradationsTotal.WithLabelValues("hydration").Inc()
		return records
	}

	log.Debug("Records hydrated", zap.Int("requested", len(ids)), zap.Int("found", len(rows)))
	return orderByRelevance(rows, ids)
}

// buildContext prefers hydrated records and falls back to the raw matches.
func (s *Service) buildContext(r retrieval) string {
	if len(r.records) > 0 {
		return BuildRecordContext(r.records, s.opts.MaxContextItems)
	}
	return BuildMatchContext(r.matches, s.opts.MaxContextItems)
}

func (s *Service) complete(
	ctx context.Context, stage, instruction string, msgs []domain.Message,
) (Completion, error) {
	sctx, end := startStage(ctx, stage)
	c, err := s.completer.Complete(sctx, instruction, msgs)
	end(err)
	if err != nil {
		return Completion{}, fmt.Errorf("%w: %w", domain.ErrCompletionFailed, err)
	}
	return c, nil
}

func (s *Service) precheck(q domain.Query) error {
	if q.Text() == "" {
		return &domain.ValidationError{Field: "query", Reason: "Missing 'query' in request body"}
	}
	if s.opts.Preflight != nil {
		if err := s.opts.Preflight(); err != nil {
			return fmt.Errorf("rag: preflight: %w", err)
		}
	}
	return nil
}

// groundedConversation appends the context turn to the prior conversation.
func groundedConversation(q domain.Query, contextText string) []domain.Message {
	msgs := q.History()
	return append(msgs,
		domain.Message{Role: domain.RoleDeveloper, Content: contextRole},
		domain.Message{Role: domain.RoleUser, Content: contextMessage(q.Text(), contextText)},
	)
}

// orderByRelevance returns rows in the order their ids were retrieved.
func orderByRelevance(rows []inventory.Record, ids []inventory.ID) []inventory.Record {
	rank := make(map[inventory.ID]int, len(ids))
	for i, id := range ids {
		rank[id] = i
	}
	out := make([]inventory.Record, 0, len(rows))
	buckets := make([][]inventory.Record, len(ids))
	for _, r := range rows {
		i, ok := rank[r.ID]
		if !ok {
			out = append(out, r)
			continue
		}
		buckets[i] = append(buckets[i], r)
	}
	ordered := make([]inventory.Record, 0, len(rows))
	for _, b := range buckets {
		ordered = append(ordered, b...)
	}
	return append(ordered, out...)
}

var tracer = otel.Tracer("github.com/kailas-cloud/autorag/internal/usecase/rag")

// startStage opens a span for one pipeline stage. The returned func records the stage
// duration and error and ends the span.
func startStage(ctx context.Context, stage string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "rag."+stage)
	return ctx, func(err error) {
		metrics.RAGStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
