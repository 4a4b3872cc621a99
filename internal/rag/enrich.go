package rag

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// EnrichmentSuggestion pairs a detected gap with a remediation action.
type EnrichmentSuggestion struct {
	Gap    string `json:"gap"`
	Action string `json:"action"`
}

// EnrichmentAdvisor turns missing-info entries into actionable suggestions.
// Pure and deterministic; an unrecognized gap yields a generic suggestion
// rather than an error.
type EnrichmentAdvisor struct{}

func (EnrichmentAdvisor) Suggest(missingInfo []string, query string) []EnrichmentSuggestion {
	if len(missingInfo) == 0 {
		return nil
	}
	suggestions := make([]EnrichmentSuggestion, 0, len(missingInfo))
	seen := make(map[string]struct{}, len(missingInfo))
	for _, gap := range missingInfo {
		gap = strings.TrimSpace(gap)
		topic := gap
		if topic == "" {
			topic = strings.TrimSpace(query)
		}
		action := "Add a document covering: " + topic
		if _, dup := seen[action]; dup {
			continue
		}
		seen[action] = struct{}{}
		suggestions = append(suggestions, EnrichmentSuggestion{Gap: gap, Action: action})
	}
	return suggestions
}

// SourceCatalogEntry is one known external source the auto-enricher can draw
// from.
type SourceCatalogEntry struct {
	Name     string
	Keywords []string
	Content  string
}

// Matcher selects a catalog entry for a token set. Pluggable so the matching
// policy can change without touching pipeline orchestration.
type Matcher interface {
	Match(tokens map[string]struct{}, catalog []SourceCatalogEntry) (*SourceCatalogEntry, bool)
}

// KeywordMatcher picks the catalog entry whose keyword set overlaps the token
// set the most, requiring at least MinOverlap shared tokens. Ties keep
// catalog order.
type KeywordMatcher struct {
	MinOverlap int
}

func (m KeywordMatcher) Match(tokens map[string]struct{}, catalog []SourceCatalogEntry) (*SourceCatalogEntry, bool) {
	minOverlap := m.MinOverlap
	if minOverlap <= 0 {
		minOverlap = 1
	}
	bestIdx := -1
	bestCount := 0
	for i := range catalog {
		count := 0
		for _, kw := range catalog[i].Keywords {
			if _, ok := tokens[strings.ToLower(strings.TrimSpace(kw))]; ok {
				count++
			}
		}
		if count >= minOverlap && count > bestCount {
			bestIdx = i
			bestCount = count
		}
	}
	if bestIdx < 0 {
		return nil, false
	}
	return &catalog[bestIdx], true
}

// AutoEnricher attempts to close detected gaps from a known-source catalog.
// Strictly best effort: timeouts, errors and panics all collapse into a
// result with an explanatory note and never reach the caller.
type AutoEnricher struct {
	catalog []SourceCatalogEntry
	matcher Matcher
	timeout time.Duration
}

func NewAutoEnricher(catalog []SourceCatalogEntry, matcher Matcher, timeout time.Duration) *AutoEnricher {
	if matcher == nil {
		matcher = KeywordMatcher{MinOverlap: 1}
	}
	if timeout <= 0 {
		timeout = 1500 * time.Millisecond
	}
	return &AutoEnricher{catalog: catalog, matcher: matcher, timeout: timeout}
}

// Enrich matches the query and missing-info entries against the catalog.
// A miss is a terminal, non-error outcome.
func (e *AutoEnricher) Enrich(ctx context.Context, query string, missingInfo []string) *AutoEnrichmentResult {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		entry  *SourceCatalogEntry
		ok     bool
		failed interface{}
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{failed: r}
			}
		}()
		tokens := tokenize(append([]string{query}, missingInfo...))
		entry, ok := e.matcher.Match(tokens, e.catalog)
		done <- outcome{entry: entry, ok: ok}
	}()

	select {
	case <-ctx.Done():
		return &AutoEnrichmentResult{
			Matched: false,
			Snippet: nil,
			Note:    fmt.Sprintf("auto-enrichment abandoned: %v", ctx.Err()),
		}
	case out := <-done:
		if out.failed != nil {
			return &AutoEnrichmentResult{
				Matched: false,
				Snippet: nil,
				Note:    fmt.Sprintf("auto-enrichment failed: %v", out.failed),
			}
		}
		if !out.ok || out.entry == nil {
			return &AutoEnrichmentResult{
				Matched: false,
				Snippet: nil,
				Note:    "no matching source found in the enrichment catalog",
			}
		}
		content := out.entry.Content
		return &AutoEnrichmentResult{
			Matched: true,
			Source:  out.entry.Name,
			Snippet: &content,
			Note:    "matched catalog source " + out.entry.Name,
		}
	}
}

// tokenize normalizes texts into a lowercase keyword token set, stripping
// punctuation.
func tokenize(texts []string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, text := range texts {
		for _, field := range strings.Fields(strings.ToLower(text)) {
			field = strings.Trim(field, ".,;:!?\"'()[]{}")
			if field != "" {
				tokens[field] = struct{}{}
			}
		}
	}
	return tokens
}
