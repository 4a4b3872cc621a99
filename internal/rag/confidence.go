package rag

// ConfidenceClassifier reconciles the model's self-reported confidence with
// retrieval strength. The self-report is a ceiling: weak grounding pulls the
// final level down, strong grounding never raises it. Thresholds are
// configuration, tuned per embedding model.
type ConfidenceClassifier struct {
	WeakThreshold   float64
	StrongThreshold float64
}

func NewConfidenceClassifier(weak, strong float64) ConfidenceClassifier {
	if strong < weak {
		strong = weak
	}
	return ConfidenceClassifier{WeakThreshold: weak, StrongThreshold: strong}
}

// Classify returns the final confidence for a self-reported level and the top
// retrieval similarity. No evidence at all always classifies as low.
func (c ConfidenceClassifier) Classify(selfReported Confidence, topScore float64, hasEvidence bool) Confidence {
	if !hasEvidence || topScore < c.WeakThreshold {
		return ConfidenceLow
	}
	if topScore < c.StrongThreshold {
		return capAt(selfReported, ConfidenceMedium)
	}
	if selfReported.rank() == 0 {
		return ConfidenceLow
	}
	return selfReported
}

func capAt(level, ceiling Confidence) Confidence {
	if level.rank() == 0 {
		return ConfidenceLow
	}
	if level.rank() > ceiling.rank() {
		return ceiling
	}
	return level
}
