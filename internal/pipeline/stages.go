package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/fintrustlabs/modeld/internal/analysis"
	"github.com/fintrustlabs/modeld/internal/planning"
	"github.com/fintrustlabs/modeld/internal/render"
	"github.com/fintrustlabs/modeld/internal/session"
)

// Agent names shown in the session log. These match the stage that emits
// them, not internal package names.
const (
	agentResearch = "Research Agent"
	agentAnalyst  = "Analyst Agent"
	agentPlanning = "Planning Agent"
	agentBuild    = "Build Agent"
	agentQA       = "QA Agent"
	agentDelivery = "Delivery Agent"
)

// runResearch executes research and analysis, then either parks the session
// for confirmation or continues straight into the build.
func (o *Orchestrator) runResearch(ctx context.Context, s *session.Session) {
	ctx, span := o.tracer.Start(ctx, "pipeline.research")
	defer span.End()
	start := time.Now()

	log := session.NewAgentLog(s, agentResearch)
	log.Thinking(fmt.Sprintf("Looking up %q in market data sources...", s.Query()))

	data, err := o.fetcher.Fetch(ctx, s.UserRequest())
	if err != nil || data == nil || !data.Found {
		msg := fmt.Sprintf("Could not find financial data for %q. Try a ticker symbol or the full company name.", s.Query())
		log.Error(msg)
		s.Fail(msg)
		o.recordStage(ctx, "research", start, true)
		return
	}
	s.SetCompanyData(data)
	span.SetAttributes(attribute.String("ticker", data.Ticker))
	log.Success(fmt.Sprintf("Found %s (%s) on %s. Market cap %s %.0fM, %d years of revenue history.",
		data.CompanyName, data.Ticker, data.Source, data.Currency, data.MarketCap, len(data.RevenueHistory)))

	// Narrative company analysis. Advisory, so a fallback summary is fine.
	if narrative := o.deepAnalysis(ctx, s, data); narrative != "" {
		s.SetDeepAnalysis(narrative)
	}
	o.recordStage(ctx, "research", start, false)

	o.runAnalysis(ctx, s)
}

// runAnalysis decides the model type and records the recommendation.
func (o *Orchestrator) runAnalysis(ctx context.Context, s *session.Session) {
	ctx, span := o.tracer.Start(ctx, "pipeline.analysis")
	defer span.End()
	start := time.Now()

	data := s.CompanyData()
	log := session.NewAgentLog(s, agentAnalyst)
	log.Thinking("Weighing growth, margins and leverage to pick the right model...")

	ruleRec := analysis.Recommend(data)
	rec := o.recommendModel(ctx, s, data, ruleRec)

	if wantsFPA(s.UserRequest()) {
		rec = analysis.OverrideFPA(rec)
	}
	s.SetRecommendation(rec)
	span.SetAttributes(attribute.String("model_type", string(rec.ModelType)))

	missing := planning.MissingFields(data, rec.ModelType)
	s.SetMissingFields(missing)

	log.Success(fmt.Sprintf("Recommendation: %s model (%s confidence). %s",
		rec.ModelType, rec.Confidence, rec.Reasoning))
	for _, m := range missing {
		log.Warning("Missing input: " + m)
	}
	o.recordStage(ctx, "analysis", start, false)

	if o.opts.AutoConfirm {
		if err := s.SetPhase(session.PhaseBuilding); err != nil {
			s.Fail(err.Error())
			return
		}
		o.runPlanning(ctx, s)
		o.runBuild(ctx, s)
		return
	}

	if err := s.SetPhase(session.PhaseAwaitingConfirmation); err != nil {
		s.Fail(err.Error())
		return
	}
	log.Info("Waiting for you to confirm the model type before building.")
}

// runPlanningAndBuild is the confirm path: plan, then build.
func (o *Orchestrator) runPlanningAndBuild(ctx context.Context, s *session.Session) {
	o.runPlanning(ctx, s)
	if s.Phase().Terminal() {
		return
	}
	if err := s.SetPhase(session.PhaseBuilding); err != nil {
		s.Fail(err.Error())
		return
	}
	o.runBuild(ctx, s)
}

// runPlanning derives assumptions, scenarios and their explanations. It does
// not transition phases; the callers own the phase graph.
func (o *Orchestrator) runPlanning(ctx context.Context, s *session.Session) {
	ctx, span := o.tracer.Start(ctx, "pipeline.planning")
	defer span.End()
	start := time.Now()

	data := s.CompanyData()
	rec := s.Recommendation()
	log := session.NewAgentLog(s, agentPlanning)
	log.Thinking(fmt.Sprintf("Deriving %s assumptions from %d years of history...",
		rec.ModelType, len(data.RevenueHistory)))

	set := planning.Build(data, *rec)
	s.SetAssumptions(set)

	log.Success(fmt.Sprintf("Locked %d drivers with bear, base and bull scenarios.", len(set.Values)))
	for _, note := range set.Notes {
		log.Info(note.Explanation)
	}
	o.recordStage(ctx, "planning", start, false)
}

// runBuild renders the workbook, audits it and delivers the artifact.
func (o *Orchestrator) runBuild(ctx context.Context, s *session.Session) {
	ctx, span := o.tracer.Start(ctx, "pipeline.build")
	defer span.End()
	start := time.Now()

	data := s.CompanyData()
	rec := s.Recommendation()
	set := s.Assumptions()
	log := session.NewAgentLog(s, agentBuild)
	log.Thinking(fmt.Sprintf("Building the %s workbook...", rec.ModelType))

	path, err := o.renderer.Render(render.Input{
		Company:     data,
		Rec:         *rec,
		Assumptions: *set,
		Provided:    s.ProvidedFields(),
	})
	if err != nil {
		msg := "Workbook build failed: " + err.Error()
		log.Error(msg)
		s.Fail(msg)
		o.recordStage(ctx, "build", start, true)
		return
	}
	s.SetArtifact(path)
	log.Success("Workbook rendered with cover, assumptions, model, scenario and dashboard sheets.")
	o.recordStage(ctx, "build", start, false)

	o.runQA(ctx, s, path)
	if s.Phase().Terminal() {
		return
	}

	dlog := session.NewAgentLog(s, agentDelivery)
	if err := s.SetPhase(session.PhaseDelivered); err != nil {
		s.Fail(err.Error())
		return
	}
	dlog.Success(fmt.Sprintf("%s model for %s is ready to download.", rec.ModelType, data.CompanyName))
}

// runQA audits the workbook and applies the fixable findings. QA is
// advisory: findings never fail the session.
func (o *Orchestrator) runQA(ctx context.Context, s *session.Session, path string) {
	ctx, span := o.tracer.Start(ctx, "pipeline.qa")
	defer span.End()
	start := time.Now()

	log := session.NewAgentLog(s, agentQA)
	log.Thinking("Auditing formulas, charts, formatting and structure...")

	report, err := o.auditor.Audit(path)
	if err != nil {
		log.Warning("Audit could not run: " + err.Error() + ". Delivering unaudited workbook.")
		o.recordStage(ctx, "qa", start, true)
		return
	}

	if report.Passed {
		log.Success(fmt.Sprintf("All %d checks passed.", report.ChecksRun))
	} else {
		log.Warning(fmt.Sprintf("%d of %d checks passed with %d findings (%d errors).",
			report.ChecksPassed, report.ChecksRun, len(report.Issues), report.ErrorCount()))
		for _, issue := range report.Issues {
			log.Info(fmt.Sprintf("[%s/%s] %s: %s", issue.Category, issue.Severity, issue.Sheet, issue.Message))
		}
	}

	if report.FixableCount() > 0 {
		fixedPath, fixed, fixErr := o.auditor.AutoFix(path, report)
		if fixErr != nil {
			log.Warning("Auto-fix failed: " + fixErr.Error())
		} else if fixedPath != "" {
			log.Success(fmt.Sprintf("Auto-fixed %d formatting findings; repaired copy saved.", fixed))
			s.SetArtifact(fixedPath)
		}
	}

	s.SetQAReport(report)
	span.SetAttributes(attribute.Bool("passed", report.Passed))
	o.recordStage(ctx, "qa", start, false)
}

// wantsFPA reports whether the request explicitly asks for a budgeting model.
func wantsFPA(request string) bool {
	r := strings.ToLower(request)
	return strings.Contains(r, "fp&a") || strings.Contains(r, "fpa ") ||
		strings.Contains(r, "budget") || strings.Contains(r, "variance analysis")
}
