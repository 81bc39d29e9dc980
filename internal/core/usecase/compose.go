package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/agrisense/agrisense-engine/internal/core/domain"
	"github.com/agrisense/agrisense-engine/internal/core/ports"
)

const (
	// contextCharBudget bounds the grounding context handed to the generator.
	contextCharBudget = 4000

	answerMaxTokens = 512
	policyMaxTokens = 384

	// degradedConfidenceCap is the ceiling for extractive answers produced
	// when the generator is unavailable.
	degradedConfidenceCap = 0.40

	retrievalWeight    = 0.55
	completenessWeight = 0.45

	// unresolvedPenalty scales confidence down when the question mentioned
	// entities that could not be resolved to canonical names.
	unresolvedPenalty = 0.85
)

// AnswerComposer grounds a generated answer in retrieved passages and fusion
// output, and attaches a calibrated confidence.
type AnswerComposer struct {
	generator ports.Generator
	logger    *slog.Logger
}

func NewAnswerComposer(generator ports.Generator, logger *slog.Logger) *AnswerComposer {
	return &AnswerComposer{generator: generator, logger: logger}
}

type ComposeInput struct {
	Query      string
	Intent     domain.QueryIntent
	Retrieved  []domain.ScoredDocument
	Fusion     domain.FusionResult
	PolicyMode bool
}

func (c *AnswerComposer) Compose(ctx context.Context, in ComposeInput) domain.Answer {
	answer := domain.Answer{
		Sources:    collectSources(in.Retrieved, in.Fusion),
		Confidence: c.confidence(in),
	}

	prompt := c.buildPrompt(in)
	text, err := c.generator.Generate(ctx, prompt, answerMaxTokens)
	if err != nil {
		c.logger.Warn("generation_failed, composing extractive answer",
			slog.String("error", err.Error()))
		answer.Text = extractiveAnswer(in)
		answer.Degraded = true
		if answer.Confidence > degradedConfidenceCap {
			answer.Confidence = degradedConfidenceCap
		}
		return answer
	}
	answer.Text = strings.TrimSpace(text)
	if answer.Text == "" {
		answer.Text = extractiveAnswer(in)
		answer.Degraded = true
		if answer.Confidence > degradedConfidenceCap {
			answer.Confidence = degradedConfidenceCap
		}
	}

	if in.PolicyMode || in.Intent.Category == domain.IntentPolicy {
		answer.PolicyInsights = c.policyInsights(ctx, in, answer.Text)
	}
	return answer
}

// policyInsights runs a second generation pass framed for recommendations. A
// failure here never degrades the main answer.
func (c *AnswerComposer) policyInsights(ctx context.Context, in ComposeInput, answerText string) string {
	var b strings.Builder
	b.WriteString("You are an agricultural policy advisor for India.\n")
	b.WriteString("Based on the analysis below, give 2-4 concise, actionable policy recommendations. ")
	b.WriteString("Mention the states, crops or metrics involved. Do not repeat the analysis.\n\n")
	b.WriteString("Question: ")
	b.WriteString(in.Query)
	b.WriteString("\n\nAnalysis:\n")
	b.WriteString(answerText)
	if summary := fusionSummary(in.Fusion); summary != "" {
		b.WriteString("\n\nNumeric findings:\n")
		b.WriteString(summary)
	}
	b.WriteString("\n\nRecommendations:")

	text, err := c.generator.Generate(ctx, b.String(), policyMaxTokens)
	if err != nil {
		c.logger.Warn("policy_generation_failed", slog.String("error", err.Error()))
		return ""
	}
	return strings.TrimSpace(text)
}

func (c *AnswerComposer) buildPrompt(in ComposeInput) string {
	var b strings.Builder
	b.WriteString("You are an agricultural data analyst answering questions about Indian agriculture and climate.\n")
	b.WriteString("Answer using ONLY the context and numeric findings below. ")
	b.WriteString("If they do not contain the answer, say so plainly. Cite figures exactly as given.\n\n")

	b.WriteString("Context:\n")
	budget := contextCharBudget
	for i, doc := range in.Retrieved {
		passage := fmt.Sprintf("[%d] %s\n", i+1, doc.Document.Text)
		if len(passage) > budget {
			break
		}
		b.WriteString(passage)
		budget -= len(passage)
	}

	if summary := fusionSummary(in.Fusion); summary != "" {
		b.WriteString("\nNumeric findings:\n")
		b.WriteString(summary)
		b.WriteString("\n")
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(in.Query)
	b.WriteString("\nAnswer:")
	return b.String()
}

// confidence blends mean retrieval score with structured completeness and
// penalizes unresolved mentions. Always in [0, 1].
func (c *AnswerComposer) confidence(in ComposeInput) float64 {
	var retrieval float64
	if len(in.Retrieved) > 0 {
		for _, doc := range in.Retrieved {
			retrieval += doc.Score
		}
		retrieval /= float64(len(in.Retrieved))
	}
	conf := retrievalWeight*retrieval + completenessWeight*in.Fusion.Completeness
	if len(in.Intent.UnresolvedEntities) > 0 {
		conf *= unresolvedPenalty
	}
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}

// extractiveAnswer synthesizes a plain answer from evidence alone, used when
// generation is unavailable.
func extractiveAnswer(in ComposeInput) string {
	var parts []string
	if summary := fusionSummary(in.Fusion); summary != "" {
		parts = append(parts, summary)
	}
	if len(in.Retrieved) > 0 {
		parts = append(parts, "Most relevant passage: "+in.Retrieved[0].Document.Text)
	}
	if len(parts) == 0 {
		return "No grounded answer is available for this question with the currently ingested data."
	}
	return strings.Join(parts, "\n")
}

// fusionSummary renders the numeric result as short factual lines for the
// prompt and the extractive fallback.
func fusionSummary(fr domain.FusionResult) string {
	if fr.Empty() {
		return ""
	}
	var lines []string

	if fr.Statistic != nil {
		switch fr.Statistic.Kind {
		case domain.StatCorrelation:
			lines = append(lines, fmt.Sprintf("Pearson correlation between %s: %.3f over %d aligned observations.",
				strings.Join(fr.Measures, " and "), fr.Statistic.Value, fr.Statistic.SampleSize))
		case domain.StatTrendSlope:
			direction := "increasing"
			if fr.Statistic.Value < 0 {
				direction = "decreasing"
			}
			lines = append(lines, fmt.Sprintf("Trend in %s is %s at %.3f per year over %d observed years.",
				strings.Join(fr.Measures, ", "), direction, fr.Statistic.Value, fr.Statistic.SampleSize))
		}
	}

	if len(fr.Timeseries) > 0 {
		var pts []string
		for _, p := range fr.Timeseries {
			if p.Gap {
				continue
			}
			pts = append(pts, fmt.Sprintf("%d=%.2f", p.Period, p.Value))
		}
		if len(pts) > 0 {
			lines = append(lines, fmt.Sprintf("Yearly %s: %s.", strings.Join(fr.Measures, ", "), strings.Join(pts, ", ")))
		}
	}

	if len(fr.GroupKeys) > 0 && len(fr.Timeseries) == 0 {
		for _, rec := range fr.Rows {
			var dims []string
			for _, d := range rec.Dimensions {
				dims = append(dims, d.Value)
			}
			var vals []string
			for _, m := range rec.MeasureNames() {
				vals = append(vals, fmt.Sprintf("%s=%.2f", m, rec.Measures[m]))
			}
			lines = append(lines, fmt.Sprintf("%s: %s.", strings.Join(dims, " "), strings.Join(vals, ", ")))
		}
	}

	if fr.Note != "" {
		lines = append(lines, "Caveat: "+fr.Note+".")
	}
	return strings.Join(lines, "\n")
}

// collectSources dedupes citations across the retrieval and fusion legs,
// ordered by dataset then row.
func collectSources(retrieved []domain.ScoredDocument, fr domain.FusionResult) []domain.SourceRef {
	seen := map[domain.SourceRef]bool{}
	var refs []domain.SourceRef
	add := func(ref domain.SourceRef) {
		if ref.Dataset == "" && ref.RowID == "" {
			return
		}
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	for _, doc := range retrieved {
		add(domain.SourceRef{Dataset: doc.Document.Metadata.Dataset, RowID: doc.Document.Metadata.RowRef})
	}
	for _, rec := range fr.Rows {
		add(domain.SourceRef{Dataset: rec.Dataset})
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Dataset != refs[j].Dataset {
			return refs[i].Dataset < refs[j].Dataset
		}
		return refs[i].RowID < refs[j].RowID
	})
	return refs
}
