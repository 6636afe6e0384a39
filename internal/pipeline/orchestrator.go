// Package pipeline runs the model-generation stages against a session:
// research, analysis, planning, build, QA and delivery. Stages execute in a
// background goroutine per session; callers observe progress through the
// session log and phase.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fintrustlabs/modeld/internal/analysis"
	"github.com/fintrustlabs/modeld/internal/logging"
	"github.com/fintrustlabs/modeld/internal/marketdata"
	"github.com/fintrustlabs/modeld/internal/provider"
	"github.com/fintrustlabs/modeld/internal/qa"
	"github.com/fintrustlabs/modeld/internal/render"
	"github.com/fintrustlabs/modeld/internal/session"
)

const instrumentationName = "github.com/fintrustlabs/modeld/internal/pipeline"

// ErrRunInFlight is returned when a stage trigger races an active run on the
// same session.
var ErrRunInFlight = errors.New("a pipeline run is already in flight for this session")

// Options configures the orchestrator.
type Options struct {
	// ReasoningAdapters answer structured questions (model-type selection).
	ReasoningAdapters []provider.Adapter

	// NarrativeAdapters produce free-text analysis and chat replies.
	NarrativeAdapters []provider.Adapter

	// AttemptTimeout bounds each provider attempt inside a cascade.
	AttemptTimeout time.Duration

	// AutoConfirm skips the confirmation wait state and builds the
	// recommended model immediately after research.
	AutoConfirm bool

	// LogWindow is how many trailing log entries status snapshots carry.
	LogWindow int
}

// Orchestrator coordinates the stages for all sessions.
type Orchestrator struct {
	store    *session.Store
	fetcher  marketdata.Fetcher
	renderer *render.Renderer
	auditor  *qa.Auditor
	opts     Options
	logger   *zap.Logger

	tracer trace.Tracer
	meter  metric.Meter

	runCounter      metric.Int64Counter
	attemptCounter  metric.Int64Counter
	fallbackCounter metric.Int64Counter
	stageDuration   metric.Float64Histogram
}

// New creates an orchestrator. Adapters may be empty, in which case every
// cascade resolves through its deterministic fallback.
func New(store *session.Store, fetcher marketdata.Fetcher, renderer *render.Renderer, auditor *qa.Auditor, opts Options, logger *zap.Logger) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if fetcher == nil {
		return nil, errors.New("market data fetcher is required")
	}
	if renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if auditor == nil {
		return nil, errors.New("auditor is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 30 * time.Second
	}

	o := &Orchestrator{
		store:    store,
		fetcher:  fetcher,
		renderer: renderer,
		auditor:  auditor,
		opts:     opts,
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
		meter:    otel.Meter(instrumentationName),
	}
	o.initMetrics()
	return o, nil
}

// initMetrics initializes OpenTelemetry metrics.
func (o *Orchestrator) initMetrics() {
	var err error

	o.runCounter, err = o.meter.Int64Counter(
		"modeld.pipeline.runs_total",
		metric.WithDescription("Total number of pipeline stage runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		o.logger.Warn("failed to create run counter", zap.Error(err))
	}

	o.attemptCounter, err = o.meter.Int64Counter(
		"modeld.provider.attempts_total",
		metric.WithDescription("Total number of provider attempts across cascades"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		o.logger.Warn("failed to create attempt counter", zap.Error(err))
	}

	o.fallbackCounter, err = o.meter.Int64Counter(
		"modeld.provider.fallbacks_total",
		metric.WithDescription("Total number of cascades resolved by the deterministic fallback"),
		metric.WithUnit("{fallback}"),
	)
	if err != nil {
		o.logger.Warn("failed to create fallback counter", zap.Error(err))
	}

	o.stageDuration, err = o.meter.Float64Histogram(
		"modeld.pipeline.stage_duration_seconds",
		metric.WithDescription("Stage execution duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		o.logger.Warn("failed to create stage duration histogram", zap.Error(err))
	}
}

// LogWindow returns the configured status log window.
func (o *Orchestrator) LogWindow() int { return o.opts.LogWindow }

// StartResearch begins the research stage for a session. The stage runs in
// the background; the call returns once the phase transition is committed.
// With AutoConfirm set the run continues through build and delivery.
func (o *Orchestrator) StartResearch(s *session.Session, userRequest string) error {
	if !s.TryBeginRun() {
		return ErrRunInFlight
	}
	if err := s.SetPhase(session.PhaseResearching); err != nil {
		s.EndRun()
		return err
	}
	s.SetQuery(marketdata.CleanQuery(userRequest), userRequest)

	go func() {
		defer s.EndRun()
		ctx := logging.WithSessionID(context.Background(), s.ID())
		o.runResearch(ctx, s)
	}()
	return nil
}

// Confirm resolves a session awaiting confirmation. When confirmed it starts
// the planning and build stages in the background; an empty modelType accepts
// the recommendation as-is. A declined confirmation records the decision and
// leaves the session parked so the requester can confirm again later.
func (o *Orchestrator) Confirm(s *session.Session, modelType string, confirmed bool) error {
	rec := s.Recommendation()
	if rec == nil {
		return errors.New("session has no recommendation to confirm")
	}
	if !confirmed {
		log := session.NewAgentLog(s, agentPlanning)
		log.Info("Build declined by the requester; staying parked until a model type is confirmed.")
		return nil
	}
	if modelType != "" {
		chosen := analysis.ModelType(modelType)
		if !chosen.Valid() {
			return errors.New("unknown model type: " + modelType)
		}
		if chosen != rec.ModelType {
			updated := *rec
			if chosen == analysis.ModelFPA {
				updated = analysis.OverrideFPA(*rec)
			} else {
				updated.ModelType = chosen
				updated.Reasoning = "Model type chosen explicitly by the requester."
				updated.Confidence = "high"
			}
			s.SetRecommendation(updated)
		}
	}

	if !s.TryBeginRun() {
		return ErrRunInFlight
	}
	if err := s.SetPhase(session.PhasePlanning); err != nil {
		s.EndRun()
		return err
	}

	go func() {
		defer s.EndRun()
		ctx := logging.WithSessionID(context.Background(), s.ID())
		o.runPlanningAndBuild(ctx, s)
	}()
	return nil
}

// ProvideData records a user-supplied financial figure on the session.
func (o *Orchestrator) ProvideData(s *session.Session, field string, value float64) {
	s.ProvideField(field, value)
	log := session.NewAgentLog(s, agentPlanning)
	log.Info("Received " + field + " from the requester; assumptions will use it.")
}

func (o *Orchestrator) recordStage(ctx context.Context, stage string, start time.Time, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	o.logger.With(logging.ContextFields(ctx)...).Debug("pipeline stage finished",
		zap.String("stage", stage),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", time.Since(start)),
	)
	if o.runCounter != nil {
		o.runCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("outcome", outcome),
		))
	}
	if o.stageDuration != nil {
		o.stageDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("stage", stage),
		))
	}
}

// observeAttempts returns a cascade observer that mirrors provider attempts
// into metrics and the session log.
func (o *Orchestrator) observeAttempts(ctx context.Context, log *session.AgentLog) func(provider.Attempt) {
	return func(at provider.Attempt) {
		if o.attemptCounter != nil {
			o.attemptCounter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("provider", at.Provider),
				attribute.String("outcome", at.Outcome),
			))
		}
		if at.Outcome == provider.OutcomeSuccess {
			return
		}
		log.Warning("Provider " + at.Provider + " failed (" + at.Outcome + "), trying the next one.")
	}
}

func (o *Orchestrator) recordFallback(ctx context.Context, cascade string) {
	if o.fallbackCounter != nil {
		o.fallbackCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("cascade", cascade),
		))
	}
}
