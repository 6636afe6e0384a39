package pipeline

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fintrustlabs/modeld/internal/analysis"
	"github.com/fintrustlabs/modeld/internal/marketdata"
	"github.com/fintrustlabs/modeld/internal/provider"
	"github.com/fintrustlabs/modeld/internal/qa"
	"github.com/fintrustlabs/modeld/internal/render"
	"github.com/fintrustlabs/modeld/internal/session"
)

type stubFetcher struct {
	data *marketdata.CompanyData
	hold chan struct{}
}

func (f *stubFetcher) Fetch(ctx context.Context, query string) (*marketdata.CompanyData, error) {
	if f.hold != nil {
		select {
		case <-f.hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.data == nil {
		return &marketdata.CompanyData{Found: false, CompanyName: marketdata.CleanQuery(query)}, nil
	}
	return f.data, nil
}

type stubAdapter struct {
	name  string
	reply string
	err   error
}

func (a *stubAdapter) Name() string { return a.name }

func (a *stubAdapter) Generate(ctx context.Context, prompt provider.Prompt) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	return a.reply, nil
}

func fixtureCompany() *marketdata.CompanyData {
	return &marketdata.CompanyData{
		Found:             true,
		CompanyName:       "Infosys Limited",
		Ticker:            "INFY.NS",
		Sector:            "Technology",
		Industry:          "IT Services",
		Currency:          "INR",
		IsIndian:          true,
		Source:            "Yahoo Finance",
		MarketCap:         600000,
		Beta:              0.85,
		TotalDebt:         8000,
		Cash:              25000,
		SharesOutstanding: 4150,
		RevenueHistory:    []float64{150000, 138000, 123000},
		EBITDAHistory:     []float64{33000, 31000, 28000},
	}
}

func newOrchestrator(t *testing.T, fetcher marketdata.Fetcher, opts Options) (*Orchestrator, *session.Store) {
	t.Helper()
	logger := zap.NewNop()

	store := session.NewStore()
	renderer, err := render.NewRenderer(t.TempDir(), logger)
	require.NoError(t, err)

	if opts.AttemptTimeout == 0 {
		opts.AttemptTimeout = time.Second
	}
	orch, err := New(store, fetcher, renderer, qa.NewAuditor(logger), opts, logger)
	require.NoError(t, err)
	return orch, store
}

func awaitPhase(t *testing.T, ses *session.Session, phase session.Phase) {
	t.Helper()
	require.Eventually(t, func() bool {
		return ses.Phase() == phase
	}, 10*time.Second, 20*time.Millisecond, "session never reached %s, last phase %s", phase, ses.Phase())
}

func TestAutoConfirmRunsToDelivery(t *testing.T) {
	orch, store := newOrchestrator(t, &stubFetcher{data: fixtureCompany()}, Options{AutoConfirm: true})
	ses := store.New()

	require.NoError(t, orch.StartResearch(ses, "build a DCF for Infosys"))
	awaitPhase(t, ses, session.PhaseDelivered)

	require.NotEmpty(t, ses.Artifact())
	_, err := os.Stat(ses.Artifact())
	require.NoError(t, err)

	require.NotNil(t, ses.Recommendation())
	require.NotNil(t, ses.Assumptions())
	require.NotNil(t, ses.QAReport())
	assert.NotEmpty(t, ses.DeepAnalysis())
}

func TestResearchParksForConfirmation(t *testing.T) {
	orch, store := newOrchestrator(t, &stubFetcher{data: fixtureCompany()}, Options{})
	ses := store.New()

	require.NoError(t, orch.StartResearch(ses, "Infosys"))
	awaitPhase(t, ses, session.PhaseAwaitingConfirmation)

	require.NotNil(t, ses.Recommendation())
	assert.Empty(t, ses.Artifact())

	require.NoError(t, orch.Confirm(ses, "", true))
	awaitPhase(t, ses, session.PhaseDelivered)
	assert.NotEmpty(t, ses.Artifact())
}

func TestConfirmOverridesModelType(t *testing.T) {
	orch, store := newOrchestrator(t, &stubFetcher{data: fixtureCompany()}, Options{})
	ses := store.New()

	require.NoError(t, orch.StartResearch(ses, "Infosys"))
	awaitPhase(t, ses, session.PhaseAwaitingConfirmation)

	require.NoError(t, orch.Confirm(ses, string(analysis.ModelLBO), true))
	awaitPhase(t, ses, session.PhaseDelivered)

	rec := ses.Recommendation()
	require.NotNil(t, rec)
	assert.Equal(t, analysis.ModelLBO, rec.ModelType)
}

func TestStageLogsCarrySessionID(t *testing.T) {
	core, observed := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	store := session.NewStore()
	renderer, err := render.NewRenderer(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	orch, err := New(store, &stubFetcher{data: fixtureCompany()}, renderer, qa.NewAuditor(zap.NewNop()),
		Options{AutoConfirm: true, AttemptTimeout: time.Second}, logger)
	require.NoError(t, err)

	ses := store.New()
	require.NoError(t, orch.StartResearch(ses, "Infosys"))
	awaitPhase(t, ses, session.PhaseDelivered)

	entries := observed.FilterMessage("pipeline stage finished").All()
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Equal(t, ses.ID(), e.ContextMap()["session.id"], e.Message)
	}
}

func TestConfirmDeclinedKeepsSessionParked(t *testing.T) {
	orch, store := newOrchestrator(t, &stubFetcher{data: fixtureCompany()}, Options{})
	ses := store.New()

	require.NoError(t, orch.StartResearch(ses, "Infosys"))
	awaitPhase(t, ses, session.PhaseAwaitingConfirmation)

	require.NoError(t, orch.Confirm(ses, "", false))
	assert.Equal(t, session.PhaseAwaitingConfirmation, ses.Phase())
	assert.Empty(t, ses.Artifact())

	// The session can still be confirmed afterwards.
	require.NoError(t, orch.Confirm(ses, "", true))
	awaitPhase(t, ses, session.PhaseDelivered)
	assert.NotEmpty(t, ses.Artifact())
}

func TestConfirmRejectsUnknownModelType(t *testing.T) {
	orch, store := newOrchestrator(t, &stubFetcher{data: fixtureCompany()}, Options{})
	ses := store.New()

	require.NoError(t, orch.StartResearch(ses, "Infosys"))
	awaitPhase(t, ses, session.PhaseAwaitingConfirmation)

	err := orch.Confirm(ses, "Monte Carlo", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model type")
	assert.Equal(t, session.PhaseAwaitingConfirmation, ses.Phase())
}

func TestConfirmWithoutRecommendation(t *testing.T) {
	orch, store := newOrchestrator(t, &stubFetcher{data: fixtureCompany()}, Options{})
	ses := store.New()

	err := orch.Confirm(ses, "", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recommendation")
}

func TestStartResearchRejectsConcurrentRun(t *testing.T) {
	hold := make(chan struct{})
	orch, store := newOrchestrator(t, &stubFetcher{data: fixtureCompany(), hold: hold}, Options{})
	defer close(hold)
	ses := store.New()

	require.NoError(t, orch.StartResearch(ses, "Infosys"))
	err := orch.StartResearch(ses, "Infosys")
	assert.ErrorIs(t, err, ErrRunInFlight)
}

func TestResearchNotFoundFailsSession(t *testing.T) {
	orch, store := newOrchestrator(t, &stubFetcher{data: nil}, Options{})
	ses := store.New()

	require.NoError(t, orch.StartResearch(ses, "Acme Rocket Skates"))
	awaitPhase(t, ses, session.PhaseError)

	assert.Contains(t, ses.Err(), "Could not find financial data")
	assert.True(t, ses.Phase().Terminal())
}

func TestFPAOverrideFromRequest(t *testing.T) {
	orch, store := newOrchestrator(t, &stubFetcher{data: fixtureCompany()}, Options{AutoConfirm: true})
	ses := store.New()

	require.NoError(t, orch.StartResearch(ses, "build a budget variance analysis for Infosys"))
	awaitPhase(t, ses, session.PhaseDelivered)

	rec := ses.Recommendation()
	require.NotNil(t, rec)
	assert.Equal(t, analysis.ModelFPA, rec.ModelType)
}

func TestReasoningAdapterDrivesRecommendation(t *testing.T) {
	adapter := &stubAdapter{
		name:  "stub",
		reply: `{"model_type": "LBO", "reasoning": "Leverage dominates the profile.", "confidence": "high"}`,
	}
	orch, store := newOrchestrator(t, &stubFetcher{data: fixtureCompany()}, Options{
		ReasoningAdapters: []provider.Adapter{adapter},
	})
	ses := store.New()

	require.NoError(t, orch.StartResearch(ses, "Infosys"))
	awaitPhase(t, ses, session.PhaseAwaitingConfirmation)

	rec := ses.Recommendation()
	require.NotNil(t, rec)
	assert.Equal(t, analysis.ModelLBO, rec.ModelType)
	assert.Equal(t, "Leverage dominates the profile.", rec.Reasoning)
	assert.Equal(t, "high", rec.Confidence)
	// Key metrics always come from the deterministic computation.
	assert.NotEmpty(t, rec.KeyMetrics)
}

func TestBrokenAdapterFallsBackToRules(t *testing.T) {
	adapter := &stubAdapter{
		name: "stub",
		err:  provider.NewError("stub", provider.KindUnavailable, assert.AnError),
	}
	orch, store := newOrchestrator(t, &stubFetcher{data: fixtureCompany()}, Options{
		ReasoningAdapters: []provider.Adapter{adapter},
		NarrativeAdapters: []provider.Adapter{adapter},
		AutoConfirm:       true,
	})
	ses := store.New()

	require.NoError(t, orch.StartResearch(ses, "Infosys"))
	awaitPhase(t, ses, session.PhaseDelivered)

	rec := ses.Recommendation()
	require.NotNil(t, rec)
	assert.True(t, rec.ModelType.Valid())
	assert.NotEmpty(t, ses.DeepAnalysis())
	assert.NotEmpty(t, ses.Artifact())
}

func TestProvideDataFlowsIntoWorkbook(t *testing.T) {
	orch, store := newOrchestrator(t, &stubFetcher{data: fixtureCompany()}, Options{})
	ses := store.New()

	require.NoError(t, orch.StartResearch(ses, "Infosys"))
	awaitPhase(t, ses, session.PhaseAwaitingConfirmation)

	orch.ProvideData(ses, "revenue_growth", 0.33)
	assert.InDelta(t, 0.33, ses.ProvidedFields()["revenue_growth"], 0.001)

	require.NoError(t, orch.Confirm(ses, "", true))
	awaitPhase(t, ses, session.PhaseDelivered)
}

func TestChatFallbackSummarizesSession(t *testing.T) {
	orch, store := newOrchestrator(t, &stubFetcher{data: fixtureCompany()}, Options{})
	ses := store.New()

	reply := orch.Chat(context.Background(), ses, "where are we?")
	assert.NotEmpty(t, reply)

	require.NoError(t, orch.StartResearch(ses, "Infosys"))
	awaitPhase(t, ses, session.PhaseAwaitingConfirmation)

	reply = orch.Chat(context.Background(), ses, "what did you find?")
	assert.Contains(t, reply, "Infosys")
}

func TestChatUsesNarrativeAdapter(t *testing.T) {
	orch, store := newOrchestrator(t, &stubFetcher{data: fixtureCompany()}, Options{
		NarrativeAdapters: []provider.Adapter{&stubAdapter{name: "stub", reply: "All good here."}},
	})
	ses := store.New()

	reply := orch.Chat(context.Background(), ses, "status?")
	assert.Equal(t, "All good here.", reply)
}
