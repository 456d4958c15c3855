package credits

import (
	"math"

	"textlens/internal/types"
)

// SummarizeFallbackChars is the character count assumed for URL-only
// summarization input, where there is no local text to measure.
const SummarizeFallbackChars = 1000

// DetectCost prices a detection-by-text call: one credit per word, scaled
// by the plan's multiplier, floor 1.
func DetectCost(words int, policy types.PlanPolicy) int {
	multiplier := policy.CreditsPerWordDetect
	if multiplier <= 0 {
		multiplier = 1
	}
	return atLeastOne(int(math.Ceil(float64(words) * multiplier)))
}

// PlagiarismEstimate is the pre-check estimate used before calling the
// provider: two credits per word, floor 1. The pre-check avoids paying for
// a provider call the caller clearly cannot afford.
func PlagiarismEstimate(words int) int {
	return atLeastOne(words * 2)
}

// PlagiarismCost is the post-hoc charge: the greater of the estimate and
// the provider-reported usage, floor 1. Provider-side tokenization may
// disagree with the client-side estimate; charging the max means the
// operator never under-recovers.
func PlagiarismCost(estimate, reported int) int {
	if reported > estimate {
		return atLeastOne(reported)
	}
	return atLeastOne(estimate)
}

// HumanizeCost prices a humanization call: half a credit per word, rounded
// up, floor 1.
func HumanizeCost(words int) int {
	return atLeastOne(int(math.Ceil(float64(words) * 0.5)))
}

// SummarizeCost prices a summarization call: one credit per hundred
// characters, rounded up, floor 1. Pass SummarizeFallbackChars for
// URL-only input.
func SummarizeCost(chars int) int {
	return atLeastOne(int(math.Ceil(float64(chars) * 0.01)))
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
