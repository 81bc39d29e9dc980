package usecase

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/agrisense/agrisense-engine/internal/core/domain"
)

// Router classifies a raw question into an intent through an ordered list of
// pure keyword rules combined with entity extraction. It never fails on
// malformed input beyond empty-query rejection; anything unmatched degrades
// to the retrieval-only general intent.
type Router struct {
	rules []routerRule
}

type routerRule struct {
	category domain.IntentCategory
	match    func(lower string, entities domain.QueryEntities) bool
}

func NewRouter() *Router {
	return &Router{rules: []routerRule{
		{domain.IntentPolicy, matchAnyWord("policy", "policies", "recommend", "recommendation", "recommendations", "intervention", "subsidy")},
		{domain.IntentCorrelation, matchCorrelation},
		{domain.IntentTrend, matchTrend},
		{domain.IntentComparison, matchComparison},
		{domain.IntentGeographic, matchGeographic},
	}}
}

// Classify routes a raw question. policyMode forces the policy intent the
// way an explicit request flag would.
func (r *Router) Classify(rawQuery string, policyMode bool) (domain.QueryIntent, error) {
	query := strings.TrimSpace(rawQuery)
	if query == "" {
		return domain.QueryIntent{}, domain.WrapError(domain.ErrInvalidQuery, "classify", errEmptyQuery)
	}

	lower := strings.ToLower(query)
	states, crops, metrics, unresolved := resolveEntities(query)
	entities := domain.QueryEntities{
		States:  states,
		Crops:   crops,
		Metrics: metrics,
		Years:   extractYearRange(lower),
	}

	intent := domain.QueryIntent{
		Category:           domain.IntentGeneral,
		Entities:           entities,
		UnresolvedEntities: unresolved,
	}
	if policyMode {
		intent.Category = domain.IntentPolicy
		return intent, nil
	}
	for _, rule := range r.rules {
		if rule.match(lower, entities) {
			intent.Category = rule.category
			return intent, nil
		}
	}
	return intent, nil
}

var errEmptyQuery = errors.New("empty query")

func matchAnyWord(words ...string) func(string, domain.QueryEntities) bool {
	return func(lower string, _ domain.QueryEntities) bool {
		for _, w := range words {
			if containsWord(lower, w) {
				return true
			}
		}
		return false
	}
}

func matchCorrelation(lower string, _ domain.QueryEntities) bool {
	for _, w := range []string{"correlation", "correlate", "relationship", "affect", "affects", "impact", "influence"} {
		if containsWord(lower, w) {
			return true
		}
	}
	return false
}

func matchTrend(lower string, entities domain.QueryEntities) bool {
	for _, w := range []string{"trend", "trends", "temporal", "timeline", "evolution"} {
		if containsWord(lower, w) {
			return true
		}
	}
	if strings.Contains(lower, "over time") || strings.Contains(lower, "over the years") {
		return true
	}
	// A year range with a single metric reads as a trend question.
	return entities.Years.Span() > 1 && len(entities.Metrics) == 1 && len(entities.States) <= 1
}

func matchComparison(lower string, entities domain.QueryEntities) bool {
	for _, w := range []string{"compare", "comparison", "versus", "vs"} {
		if containsWord(lower, w) {
			return true
		}
	}
	return strings.Contains(lower, "between") && len(entities.States) >= 2
}

func matchGeographic(lower string, entities domain.QueryEntities) bool {
	for _, w := range []string{"map", "geography", "geographic", "region", "regions", "district", "districts", "statewise"} {
		if containsWord(lower, w) {
			return true
		}
	}
	if strings.Contains(lower, "across states") || strings.Contains(lower, "by state") {
		return true
	}
	// Naming several states without a comparison cue still reads geographic.
	return len(entities.States) >= 3
}

var yearRangePattern = regexp.MustCompile(`\b((?:19|20)\d{2})\s*(?:-|–|to)\s*((?:19|20)\d{2})\b`)
var yearPattern = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
var sincePattern = regexp.MustCompile(`\b(?:since|from|after)\s+((?:19|20)\d{2})\b`)

// extractYearRange parses "2015-2020", "2015 to 2020", "since 2015" and bare
// years. An open upper bound is left at zero; the fusion engine closes it
// against the data.
func extractYearRange(lower string) domain.YearRange {
	if m := yearRangePattern.FindStringSubmatch(lower); m != nil {
		from, _ := strconv.Atoi(m[1])
		to, _ := strconv.Atoi(m[2])
		if to >= from {
			return domain.YearRange{From: from, To: to}
		}
	}
	if m := sincePattern.FindStringSubmatch(lower); m != nil {
		from, _ := strconv.Atoi(m[1])
		return domain.YearRange{From: from}
	}
	if m := yearPattern.FindStringSubmatch(lower); m != nil {
		year, _ := strconv.Atoi(m[1])
		return domain.YearRange{From: year, To: year}
	}
	return domain.YearRange{}
}
