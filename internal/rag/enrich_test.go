package rag

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() []SourceCatalogEntry {
	return []SourceCatalogEntry{
		{Name: "hr-handbook", Keywords: []string{"vacation", "leave", "policy"}, Content: "Vacation policy: 25 days per year."},
		{Name: "sla-doc", Keywords: []string{"sla", "onboarding", "days"}, Content: "Onboarding SLA reference sheet."},
	}
}

func TestAdvisorSuggestions(t *testing.T) {
	var advisor EnrichmentAdvisor

	suggestions := advisor.Suggest([]string{"escalation policy", "escalation policy", ""}, "what is the sla?")
	require.Len(t, suggestions, 2)
	assert.Equal(t, "Add a document covering: escalation policy", suggestions[0].Action)
	// A blank gap falls back to the query topic instead of failing.
	assert.Equal(t, "Add a document covering: what is the sla?", suggestions[1].Action)
	assert.Empty(t, suggestions[1].Gap)

	assert.Nil(t, advisor.Suggest(nil, "q"))
}

func TestKeywordMatcher(t *testing.T) {
	m := KeywordMatcher{MinOverlap: 2}

	entry, ok := m.Match(tokenize([]string{"what is the onboarding sla?"}), testCatalog())
	require.True(t, ok)
	assert.Equal(t, "sla-doc", entry.Name)

	// One shared token is below the overlap requirement.
	_, ok = m.Match(tokenize([]string{"vacation balance"}), testCatalog())
	assert.False(t, ok)

	_, ok = m.Match(tokenize([]string{"unrelated question entirely"}), testCatalog())
	assert.False(t, ok)
}

func TestAutoEnricherMatch(t *testing.T) {
	e := NewAutoEnricher(testCatalog(), KeywordMatcher{MinOverlap: 2}, time.Second)

	result := e.Enrich(context.Background(), "what is the onboarding sla?", []string{"sla details"})
	require.True(t, result.Matched)
	assert.Equal(t, "sla-doc", result.Source)
	require.NotNil(t, result.Snippet)
	assert.Equal(t, "Onboarding SLA reference sheet.", *result.Snippet)
}

func TestAutoEnricherNoMatchIsTerminal(t *testing.T) {
	e := NewAutoEnricher(testCatalog(), KeywordMatcher{MinOverlap: 2}, time.Second)

	result := e.Enrich(context.Background(), "completely unrelated", []string{"nothing shared"})
	assert.False(t, result.Matched)
	assert.Nil(t, result.Snippet)
	assert.NotEmpty(t, result.Note)
}

type panicMatcher struct{}

func (panicMatcher) Match(map[string]struct{}, []SourceCatalogEntry) (*SourceCatalogEntry, bool) {
	panic("catalog adapter exploded")
}

func TestAutoEnricherPanicIsolation(t *testing.T) {
	e := NewAutoEnricher(testCatalog(), panicMatcher{}, time.Second)

	result := e.Enrich(context.Background(), "q", []string{"gap"})
	require.NotNil(t, result)
	assert.False(t, result.Matched)
	assert.Nil(t, result.Snippet)
	assert.Contains(t, result.Note, "auto-enrichment failed")
}

type slowMatcher struct{ delay time.Duration }

func (m slowMatcher) Match(map[string]struct{}, []SourceCatalogEntry) (*SourceCatalogEntry, bool) {
	time.Sleep(m.delay)
	return nil, false
}

func TestAutoEnricherTimeout(t *testing.T) {
	e := NewAutoEnricher(testCatalog(), slowMatcher{delay: 500 * time.Millisecond}, 20*time.Millisecond)

	started := time.Now()
	result := e.Enrich(context.Background(), "q", []string{"gap"})
	assert.Less(t, time.Since(started), 200*time.Millisecond, "timeout must not delay the response")
	require.NotNil(t, result)
	assert.False(t, result.Matched)
	assert.Contains(t, result.Note, "abandoned")
}
