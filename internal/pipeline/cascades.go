package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fintrustlabs/modeld/internal/analysis"
	"github.com/fintrustlabs/modeld/internal/logging"
	"github.com/fintrustlabs/modeld/internal/marketdata"
	"github.com/fintrustlabs/modeld/internal/provider"
	"github.com/fintrustlabs/modeld/internal/session"
)

// recommendModel asks the reasoning providers to pick a model type, falling
// back to the rule-based recommendation when every provider fails. Key
// metrics always come from the deterministic computation so the workbook
// never depends on provider arithmetic.
func (o *Orchestrator) recommendModel(ctx context.Context, s *session.Session, data *marketdata.CompanyData, ruleRec analysis.Recommendation) analysis.Recommendation {
	log := session.NewAgentLog(s, agentAnalyst)

	type payload struct {
		ModelType  string `json:"model_type"`
		Reasoning  string `json:"reasoning"`
		Confidence string `json:"confidence"`
	}

	cascade := provider.Cascade[analysis.Recommendation]{
		Name:     "model_recommendation",
		Adapters: o.opts.ReasoningAdapters,
		Timeout:  o.opts.AttemptTimeout,
		Logger:   o.logger.With(logging.ContextFields(ctx)...),
		Observer: o.observeAttempts(ctx, log),
		Decode: func(completion string) (analysis.Recommendation, error) {
			var p payload
			if err := provider.DecodeJSON(completion, &p); err != nil {
				return analysis.Recommendation{}, err
			}
			mt := analysis.ModelType(p.ModelType)
			if !mt.Valid() {
				return analysis.Recommendation{}, fmt.Errorf("unknown model type %q", p.ModelType)
			}
			if strings.TrimSpace(p.Reasoning) == "" {
				return analysis.Recommendation{}, errors.New("recommendation has no reasoning")
			}
			conf := strings.ToLower(p.Confidence)
			if conf != "high" && conf != "medium" && conf != "low" {
				conf = "medium"
			}
			return analysis.Recommendation{
				ModelType:  mt,
				Reasoning:  strings.TrimSpace(p.Reasoning),
				KeyMetrics: ruleRec.KeyMetrics,
				Confidence: conf,
			}, nil
		},
		Fallback: func() analysis.Recommendation { return ruleRec },
	}

	result := cascade.Run(ctx, provider.Prompt{
		System: "You are a financial modeling analyst. Answer with a single JSON object " +
			`{"model_type": "DCF"|"LBO"|"3-Statement", "reasoning": "...", "confidence": "high"|"medium"|"low"} and nothing else.`,
		User: recommendPrompt(data, ruleRec),
	})
	if result.FromFallback {
		o.recordFallback(ctx, "model_recommendation")
		log.Info("Providers unavailable; using the rule-based recommendation.")
	}
	return result.Value
}

// deepAnalysis produces the narrative company read. Falls back to a
// deterministic summary built from the fundamentals.
func (o *Orchestrator) deepAnalysis(ctx context.Context, s *session.Session, data *marketdata.CompanyData) string {
	log := session.NewAgentLog(s, agentResearch)

	cascade := provider.Cascade[string]{
		Name:     "deep_analysis",
		Adapters: o.opts.NarrativeAdapters,
		Timeout:  o.opts.AttemptTimeout,
		Logger:   o.logger.With(logging.ContextFields(ctx)...),
		Observer: o.observeAttempts(ctx, log),
		Decode: func(completion string) (string, error) {
			text := strings.TrimSpace(completion)
			if text == "" {
				return "", errors.New("empty analysis")
			}
			return text, nil
		},
		Fallback: func() string { return fallbackNarrative(data) },
	}

	result := cascade.Run(ctx, provider.Prompt{
		System: "You are an equity research analyst. Write a concise prose analysis, no markdown headings.",
		User:   narrativePrompt(data),
	})
	if result.FromFallback {
		o.recordFallback(ctx, "deep_analysis")
	} else {
		log.Info("Company analysis drafted by " + result.Provider + ".")
	}
	return result.Value
}

// Chat answers a free-form question about the session using the narrative
// providers, with a deterministic status summary as the fallback.
func (o *Orchestrator) Chat(ctx context.Context, s *session.Session, message string) string {
	cascade := provider.Cascade[string]{
		Name:     "chat",
		Adapters: o.opts.NarrativeAdapters,
		Timeout:  o.opts.AttemptTimeout,
		Logger:   o.logger.With(logging.ContextFields(ctx)...),
		Decode: func(completion string) (string, error) {
			text := strings.TrimSpace(completion)
			if text == "" {
				return "", errors.New("empty reply")
			}
			return text, nil
		},
		Fallback: func() string { return statusSummary(s) },
	}

	result := cascade.Run(ctx, provider.Prompt{
		System: "You are a financial modeling assistant. Answer briefly using only the provided session context.",
		User:   chatPrompt(s, message),
	})
	if result.FromFallback {
		o.recordFallback(ctx, "chat")
	}
	return result.Value
}

func recommendPrompt(data *marketdata.CompanyData, ruleRec analysis.Recommendation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s (%s), sector %s, industry %s.\n",
		data.CompanyName, data.Ticker, data.Sector, data.Industry)
	fmt.Fprintf(&b, "Market cap %.0fM %s, total debt %.0fM, cash %.0fM.\n",
		data.MarketCap, data.Currency, data.TotalDebt, data.Cash)
	fmt.Fprintf(&b, "Revenue CAGR %.1f%%, EBITDA margin %.1f%%, debt/EBITDA %.1fx.\n",
		ruleRec.KeyMetrics["revenue_cagr"]*100,
		ruleRec.KeyMetrics["ebitda_margin"]*100,
		ruleRec.KeyMetrics["debt_to_ebitda"])
	b.WriteString("Which financial model type fits best?")
	return b.String()
}

func narrativePrompt(data *marketdata.CompanyData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze %s (%s) in the %s sector.\n", data.CompanyName, data.Ticker, data.Sector)
	fmt.Fprintf(&b, "Market cap %.0fM %s, beta %.2f, P/E %.1f, P/B %.1f.\n",
		data.MarketCap, data.Currency, data.Beta, data.PERatio, data.PBRatio)
	if len(data.RevenueHistory) > 0 {
		fmt.Fprintf(&b, "Revenue history (latest first, millions): %v.\n", data.RevenueHistory)
	}
	if len(data.EBITDAHistory) > 0 {
		fmt.Fprintf(&b, "EBITDA history (latest first, millions): %v.\n", data.EBITDAHistory)
	}
	b.WriteString("Cover growth trajectory, profitability, balance sheet risk and what to watch.")
	return b.String()
}

func chatPrompt(s *session.Session, message string) string {
	var b strings.Builder
	b.WriteString("Session context:\n")
	b.WriteString(statusSummary(s))
	if deep := s.DeepAnalysis(); deep != "" {
		b.WriteString("\nAnalysis notes:\n")
		b.WriteString(deep)
	}
	b.WriteString("\n\nQuestion: ")
	b.WriteString(message)
	return b.String()
}

// fallbackNarrative is the deterministic company read used when no provider
// responds. It only states what the fundamentals support.
func fallbackNarrative(data *marketdata.CompanyData) string {
	growth := analysis.CAGR(data.RevenueHistory)
	margin := analysis.EBITDAMargin(data.RevenueHistory, data.EBITDAHistory)
	leverage := analysis.DebtToEBITDA(data.TotalDebt, data.EBITDAHistory)

	var b strings.Builder
	fmt.Fprintf(&b, "%s operates in the %s sector with a market capitalization of %.0fM %s. ",
		data.CompanyName, data.Sector, data.MarketCap, data.Currency)
	fmt.Fprintf(&b, "Revenue has compounded at roughly %.1f%% annually with EBITDA margins around %.1f%%. ",
		growth*100, margin*100)
	switch {
	case leverage > 3.0:
		fmt.Fprintf(&b, "Leverage is elevated at %.1fx EBITDA, so debt service is the first thing to watch.", leverage)
	case leverage > 0:
		fmt.Fprintf(&b, "Leverage is manageable at %.1fx EBITDA.", leverage)
	default:
		b.WriteString("The balance sheet carries little or no net debt.")
	}
	return b.String()
}

// statusSummary is a deterministic description of where the session stands.
func statusSummary(s *session.Session) string {
	snap := s.Snapshot(0)
	var b strings.Builder
	fmt.Fprintf(&b, "Phase: %s.", snap.Phase)
	if snap.CompanyData != nil {
		fmt.Fprintf(&b, " Company: %s (%s).", snap.CompanyData.CompanyName, snap.CompanyData.Ticker)
	}
	if snap.Rec != nil {
		fmt.Fprintf(&b, " Recommended model: %s (%s confidence).", snap.Rec.ModelType, snap.Rec.Confidence)
	}
	if len(snap.Missing) > 0 {
		fmt.Fprintf(&b, " Outstanding inputs: %s.", strings.Join(snap.Missing, "; "))
	}
	if snap.Artifact != "" {
		b.WriteString(" The workbook is ready to download.")
	}
	if snap.Error != "" {
		fmt.Fprintf(&b, " The session failed: %s", snap.Error)
	}
	return b.String()
}
