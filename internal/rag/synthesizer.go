package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const noEvidenceAnswer = "I don't have enough information in the knowledge base to answer this question."

// AnswerSynthesizer builds a grounding prompt from retrieved chunks and asks
// the generation service for a structured result. It always produces a valid
// StructuredAnswer: generation failures and malformed output degrade, they
// never propagate.
type AnswerSynthesizer struct {
	generator Generator
}

func NewAnswerSynthesizer(generator Generator) *AnswerSynthesizer {
	return &AnswerSynthesizer{generator: generator}
}

// structuredPayload is the shape the model is asked to return.
type structuredPayload struct {
	Answer                string   `json:"answer"`
	Confidence            string   `json:"confidence"`
	MissingInfo           []string `json:"missing_info"`
	EnrichmentSuggestions []string `json:"enrichment_suggestions"`
	Reasoning             string   `json:"reasoning"`
}

// Synthesize produces an answer grounded on hits. With no evidence it skips
// the external call entirely and returns a deterministic low-confidence
// answer naming the query topic.
func (s *AnswerSynthesizer) Synthesize(ctx context.Context, query string, hits []Hit) *StructuredAnswer {
	if len(hits) == 0 {
		return &StructuredAnswer{
			Answer:      noEvidenceAnswer,
			Confidence:  ConfidenceLow,
			MissingInfo: []string{"no indexed content found for: " + query},
			Sources:     []SourceRef{},
		}
	}

	prompt := buildGroundingPrompt(query, hits)
	raw, err := s.generator.Complete(ctx, prompt)
	if err != nil {
		return &StructuredAnswer{
			Answer:      "The answer could not be generated from the retrieved passages.",
			Confidence:  ConfidenceLow,
			MissingInfo: []string{fmt.Sprintf("generation failed: %v", err)},
			Sources:     sourceRefs(hits),
			Degraded:    true,
		}
	}

	answer := parseStructuredCompletion(raw)
	answer.Sources = sourceRefs(hits)
	return answer
}

func buildGroundingPrompt(query string, hits []Hit) string {
	var sb strings.Builder

	sb.WriteString("You are a question answering assistant. Answer the question using only the sources below. ")
	sb.WriteString("If the sources do not fully answer the question, say what is missing instead of guessing.\n\n")
	sb.WriteString("## Sources\n")
	for i, h := range hits {
		sb.WriteString(fmt.Sprintf("### [Source %d] document %d, chunk %d (similarity %.3f)\n",
			i+1, h.Entry.DocumentID, h.Entry.Ordinal, h.Score))
		sb.WriteString(h.Entry.Content)
		sb.WriteString("\n\n")
	}
	sb.WriteString("## Question\n")
	sb.WriteString(query)
	sb.WriteString("\n\n")
	sb.WriteString("Respond with a single JSON object, no surrounding prose:\n")
	sb.WriteString(`{"answer": "...", "confidence": "high|medium|low", "missing_info": ["..."], "enrichment_suggestions": ["..."], "reasoning": "..."}`)
	sb.WriteString("\n")
	return sb.String()
}

// parseStructuredCompletion tolerates models that ignore the format request.
// If no usable JSON payload is found, the whole response becomes the answer
// text at low confidence, with a missing_info entry noting the parse failure.
func parseStructuredCompletion(raw string) *StructuredAnswer {
	payloadText, ok := extractJSONObject(raw)
	if ok {
		var payload structuredPayload
		if err := json.Unmarshal([]byte(payloadText), &payload); err == nil && strings.TrimSpace(payload.Answer) != "" {
			return &StructuredAnswer{
				Answer:                strings.TrimSpace(payload.Answer),
				Confidence:            normalizeConfidence(payload.Confidence),
				MissingInfo:           cleanList(payload.MissingInfo),
				EnrichmentSuggestions: cleanList(payload.EnrichmentSuggestions),
				Reasoning:             strings.TrimSpace(payload.Reasoning),
			}
		}
	}

	return &StructuredAnswer{
		Answer:      strings.TrimSpace(raw),
		Confidence:  ConfidenceLow,
		MissingInfo: []string{"the model response was not in the expected structured format"},
		Degraded:    true,
	}
}

// extractJSONObject returns the first balanced top-level JSON object in s.
// Models often wrap the payload in code fences or prose.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func normalizeConfidence(raw string) Confidence {
	switch Confidence(strings.ToLower(strings.TrimSpace(raw))) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceMedium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func cleanList(items []string) []string {
	var out []string
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func sourceRefs(hits []Hit) []SourceRef {
	refs := make([]SourceRef, len(hits))
	for i, h := range hits {
		refs[i] = SourceRef{
			ChunkID:    h.Entry.ChunkID,
			DocumentID: h.Entry.DocumentID,
			Ordinal:    h.Entry.Ordinal,
			Score:      h.Score,
			Snippet:    snippet(h.Entry.Content, 160),
		}
	}
	return refs
}

func snippet(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}
