package match

import (
	"fmt"
	"strings"
)

// Transition classifies how an update changed the final score of a match.
type Transition string

const (
	TransitionNoChange    Transition = "no_change"
	TransitionFinalized   Transition = "finalized"
	TransitionCorrected   Transition = "corrected"
	TransitionUnfinalized Transition = "unfinalized"
)

// RescorePolicy decides which transitions re-run aggregation.
type RescorePolicy string

const (
	// PolicyFinalizeOnly triggers only when a result appears for the first time.
	PolicyFinalizeOnly RescorePolicy = "finalize-only"
	// PolicyOnCorrection also triggers when an already final score is edited.
	PolicyOnCorrection RescorePolicy = "on-correction"
)

func ParseRescorePolicy(v string) (RescorePolicy, error) {
	switch RescorePolicy(strings.ToLower(strings.TrimSpace(v))) {
	case "", PolicyFinalizeOnly:
		return PolicyFinalizeOnly, nil
	case PolicyOnCorrection:
		return PolicyOnCorrection, nil
	default:
		return "", fmt.Errorf("invalid rescore policy %q: valid values are %s, %s", v, PolicyFinalizeOnly, PolicyOnCorrection)
	}
}

func ClassifyTransition(before, after Match) Transition {
	beforeResult, beforeFinal := before.Result()
	afterResult, afterFinal := after.Result()

	switch {
	case !beforeFinal && afterFinal:
		return TransitionFinalized
	case beforeFinal && !afterFinal:
		return TransitionUnfinalized
	case beforeFinal && afterFinal && beforeResult != afterResult:
		return TransitionCorrected
	default:
		return TransitionNoChange
	}
}

// IsNewlyFinalized is true only when before had no complete score and after has one.
func IsNewlyFinalized(before, after Match) bool {
	return ClassifyTransition(before, after) == TransitionFinalized
}

func (p RescorePolicy) ShouldAggregate(t Transition) bool {
	switch t {
	case TransitionFinalized:
		return true
	case TransitionCorrected:
		return p == PolicyOnCorrection
	default:
		return false
	}
}

// Decision is the detector verdict for one update event.
type Decision struct {
	Transition Transition
	Triggered  bool
}

func Detect(policy RescorePolicy, before, after Match) Decision {
	transition := ClassifyTransition(before, after)
	return Decision{
		Transition: transition,
		Triggered:  policy.ShouldAggregate(transition),
	}
}
