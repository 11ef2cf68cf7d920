// Package pipeline sequences text extraction, redaction, the model call and
// record normalization for one document.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"medextract/extraction"
	"medextract/logging"
	"medextract/pdfprocessor"
	"medextract/record"
	"medextract/redaction"
)

// DefaultModelTimeout bounds one model call when Options leaves it unset.
const DefaultModelTimeout = 90 * time.Second

// Stage names a checkpoint in the flow.
type Stage string

const (
	StageRawText          Stage = "raw_text"
	StageRedactedText     Stage = "redacted_text"
	StageModelResponse    Stage = "model_response"
	StageNormalizedRecord Stage = "normalized_record"
)

// Stages lists the checkpoints in flow order.
var Stages = []Stage{StageRawText, StageRedactedText, StageModelResponse, StageNormalizedRecord}

// ModelClient sends an extraction request and returns the raw reply text.
type ModelClient interface {
	Complete(ctx context.Context, req *extraction.Request) (string, error)
}

// Checkpointer receives intermediate artifacts for diagnostics.
// Implementations must return promptly; panics are recovered and logged.
type Checkpointer interface {
	Checkpoint(requestID string, stage Stage, data []byte)
}

// RunRecorder receives a metadata-only summary after every request.
// Implementations must return promptly; panics are recovered and logged.
type RunRecorder interface {
	RecordRun(summary RunSummary)
}

// RunSummary describes one request without any document content.
type RunSummary struct {
	RequestID       string
	StartedAt       time.Time
	Duration        time.Duration
	Source          string
	Pages           int
	InputChars      int
	Truncated       bool
	Redactions      int
	RedactionsBy    map[string]int
	Counts          map[string]int
	DroppedItems    int
	UnknownStatuses int
	Success         bool
	ErrorCategory   string
	ErrorStage      string
}

// Options configures a Pipeline. Every field is optional.
type Options struct {
	ModelTimeout  time.Duration
	MaxInputChars int
	Checkpointer  Checkpointer
	Recorder      RunRecorder
	Logger        *logging.Logger
}

// Pipeline processes documents. It is safe for concurrent use: the
// extractor, redaction engine and builder hold no per-request state.
type Pipeline struct {
	extractor    *pdfprocessor.Extractor
	redactor     *redaction.Engine
	builder      *extraction.Builder
	model        ModelClient
	timeout      time.Duration
	checkpointer Checkpointer
	recorder     RunRecorder
	logger       *logging.Logger
}

// New creates a Pipeline. model may be nil for callers that only use
// Sanitize.
func New(extractor *pdfprocessor.Extractor, redactor *redaction.Engine, model ModelClient, opts Options) *Pipeline {
	if opts.ModelTimeout <= 0 {
		opts.ModelTimeout = DefaultModelTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if extractor == nil {
		extractor = pdfprocessor.NewDefaultExtractor()
	}
	return &Pipeline{
		extractor:    extractor,
		redactor:     redactor,
		builder:      extraction.NewBuilder(opts.MaxInputChars),
		model:        model,
		timeout:      opts.ModelTimeout,
		checkpointer: opts.Checkpointer,
		recorder:     opts.Recorder,
		logger:       opts.Logger.Named("pipeline"),
	}
}

// Sanitized is a document after extraction and redaction.
type Sanitized struct {
	RequestID  string
	Pages      int
	Text       string
	Redactions map[string]int
}

// Result is a successfully processed document.
type Result struct {
	RequestID   string
	Record      *record.Record
	Degradation *record.Degradation
	// RedactedText is the text that was sent to the model
	RedactedText string
	Summary      RunSummary
}

type run struct {
	summary RunSummary
	logger  *logging.Logger
}

type requestIDKey struct{}

// WithRequestID makes runs started with ctx use id instead of a generated
// one, so callers can correlate their own logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func (p *Pipeline) newRun(ctx context.Context, source string) *run {
	id, _ := ctx.Value(requestIDKey{}).(string)
	if id == "" {
		id = uuid.NewString()
	}
	return &run{
		summary: RunSummary{RequestID: id, StartedAt: time.Now(), Source: source},
		logger:  p.logger.ForRequest(id),
	}
}

// Sanitize extracts and redacts a PDF without calling the model.
func (p *Pipeline) Sanitize(ctx context.Context, pdf []byte) (res *Sanitized, err error) {
	r := p.newRun(ctx, "pdf")
	defer p.finish(r, &err)
	defer p.recoverPanic(r, &err)

	return p.sanitize(ctx, r, pdf)
}

// Process runs the full flow on a PDF and returns the normalized record or
// a *Failure.
func (p *Pipeline) Process(ctx context.Context, pdf []byte) (res *Result, err error) {
	r := p.newRun(ctx, "pdf")
	defer p.finishResult(r, &res, &err)
	defer p.recoverPanic(r, &err)

	s, err := p.sanitize(ctx, r, pdf)
	if err != nil {
		return nil, err
	}
	return p.analyze(ctx, r, s)
}

// ProcessText runs the flow from redaction onwards on already extracted
// text.
func (p *Pipeline) ProcessText(ctx context.Context, text string) (res *Result, err error) {
	r := p.newRun(ctx, "text")
	defer p.finishResult(r, &res, &err)
	defer p.recoverPanic(r, &err)

	p.checkpoint(r, StageRawText, []byte(text))
	s := p.redact(r, text)
	return p.analyze(ctx, r, s)
}

func (p *Pipeline) sanitize(ctx context.Context, r *run, pdf []byte) (*Sanitized, error) {
	doc, err := p.extractor.ExtractBytes(ctx, pdf)
	if err != nil {
		return nil, classify("extract", err)
	}
	r.summary.Pages = doc.TotalPages
	r.logger.Debug("Text extracted",
		zap.Int("pages", doc.TotalPages),
		zap.Int("text_length", len(doc.Text)))
	p.checkpoint(r, StageRawText, []byte(doc.Text))

	s := p.redact(r, doc.Text)
	s.Pages = doc.TotalPages
	return s, nil
}

func (p *Pipeline) redact(r *run, text string) *Sanitized {
	res := p.redactor.Redact(text)
	r.summary.Redactions = res.Total()
	r.summary.RedactionsBy = res.Matches
	r.logger.Debug("Text redacted",
		zap.Int("redactions", res.Total()),
		zap.Int("text_length", len(res.Text)))
	p.checkpoint(r, StageRedactedText, []byte(res.Text))

	return &Sanitized{RequestID: r.summary.RequestID, Text: res.Text, Redactions: res.Matches}
}

func (p *Pipeline) analyze(ctx context.Context, r *run, s *Sanitized) (*Result, error) {
	if p.model == nil {
		return nil, classify("model", errors.New("no model client configured"))
	}

	req, err := p.builder.Build(s.Text)
	if err != nil {
		return nil, classify("build", err)
	}
	r.summary.InputChars = req.InputChars
	r.summary.Truncated = req.Truncated
	if req.Truncated {
		r.logger.Warn("Document text truncated for the model", zap.Int("input_chars", req.InputChars))
	}

	raw, err := p.callModel(ctx, req)
	if err != nil {
		return nil, err
	}
	p.checkpoint(r, StageModelResponse, []byte(raw))

	in, err := extraction.Parse(raw)
	if err != nil {
		return nil, classify("parse", err)
	}

	rec, deg := record.Transform(in)
	r.summary.Counts = rec.Counts()
	r.summary.DroppedItems = deg.TotalDropped()
	r.summary.UnknownStatuses = deg.UnknownStatuses
	if !deg.IsZero() {
		r.logger.Info("Record degraded",
			zap.Any("dropped", deg.Dropped),
			zap.Int("unknown_statuses", deg.UnknownStatuses),
			zap.Strings("unrecognized", deg.Unrecognized),
			zap.Strings("contract_errors", deg.ContractErrors))
	}
	if b, err := json.MarshalIndent(rec, "", "  "); err == nil {
		p.checkpoint(r, StageNormalizedRecord, b)
	}

	return &Result{
		RequestID:    r.summary.RequestID,
		Record:       rec,
		Degradation:  deg,
		RedactedText: s.Text,
	}, nil
}

// callModel runs the model call under its own deadline. Running out of that
// deadline is a retryable timeout whatever error the client reports.
func (p *Pipeline) callModel(ctx context.Context, req *extraction.Request) (string, error) {
	mctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	raw, err := p.model.Complete(mctx, req)
	if err == nil {
		return raw, nil
	}
	if errors.Is(mctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return "", &Failure{
			Category:  CategoryTimeout,
			Retryable: true,
			Stage:     "model",
			Message:   "The extraction service timed out. Please try again.",
			Err:       fmt.Errorf("model call exceeded %s: %w", p.timeout, err),
		}
	}
	return "", classify("model", err)
}

func (p *Pipeline) checkpoint(r *run, stage Stage, data []byte) {
	if p.checkpointer == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("Checkpoint panicked", zap.String("stage", string(stage)), zap.Any("panic", rec))
		}
	}()
	p.checkpointer.Checkpoint(r.summary.RequestID, stage, data)
}

func (p *Pipeline) recoverPanic(r *run, err *error) {
	if rec := recover(); rec != nil {
		r.logger.Error("Pipeline panicked", zap.Any("panic", rec))
		*err = &Failure{
			Category: CategoryInternal,
			Stage:    "pipeline",
			Message:  "An unexpected error occurred while processing the document.",
			Err:      fmt.Errorf("panic: %v", rec),
		}
	}
}

func (p *Pipeline) finishResult(r *run, res **Result, err *error) {
	p.finish(r, err)
	if *err != nil {
		*res = nil
		return
	}
	(*res).Summary = r.summary
}

// finish logs the outcome and hands the summary to the recorder.
func (p *Pipeline) finish(r *run, err *error) {
	r.summary.Duration = time.Since(r.summary.StartedAt)
	if *err != nil {
		f := classify("pipeline", *err)
		*err = f
		r.summary.ErrorCategory = string(f.Category)
		r.summary.ErrorStage = f.Stage
		r.logger.Warn("Document processing failed",
			zap.String("category", string(f.Category)),
			zap.String("stage", f.Stage),
			zap.Bool("retryable", f.Retryable),
			zap.Error(f.Err),
			zap.Duration("duration", r.summary.Duration))
	} else {
		r.summary.Success = true
		r.logger.Info("Document processed",
			zap.Int("pages", r.summary.Pages),
			zap.Int("redactions", r.summary.Redactions),
			zap.Any("counts", r.summary.Counts),
			zap.Duration("duration", r.summary.Duration))
	}

	if p.recorder == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("Run recorder panicked", zap.Any("panic", rec))
		}
	}()
	p.recorder.RecordRun(r.summary)
}
