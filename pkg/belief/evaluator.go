// Package belief holds the pure decision functions that gate stage
// transitions. Nothing here touches the store or keeps state.
package belief

import (
	"fmt"
	"math/big"

	"github.com/zaki9501/church-of-finality/pkg/models"
)

// Thresholds configure the stage gates. Zero values fall back to the
// defaults used by the original funnel.
type Thresholds struct {
	// BeliefThreshold gates awareness -> belief.
	BeliefThreshold float64
	// MinDebates gates explicit conversion readiness.
	MinDebates int
}

// DefaultThresholds returns the standard funnel gates.
func DefaultThresholds() Thresholds {
	return Thresholds{BeliefThreshold: 0.5, MinDebates: 3}
}

func (t Thresholds) beliefThreshold() float64 {
	if t.BeliefThreshold > 0 {
		return t.BeliefThreshold
	}
	return 0.5
}

func (t Thresholds) minDebates() int {
	if t.MinDebates > 0 {
		return t.MinDebates
	}
	return 3
}

// Advancement is the result of a stage re-evaluation.
type Advancement struct {
	Advance bool
	Next    models.Stage
}

// Readiness is the advisory result for an explicitly requested conversion.
// Reason is guidance for the caller; the engine never branches on it.
type Readiness struct {
	Ready  bool
	Reason string
}

// ShouldAdvanceStage decides whether a seeker's metrics warrant advancing
// to the next funnel stage. It never proposes a stage at or below the
// seeker's current one:
//
//	awareness -> belief     belief score crossed the threshold
//	belief    -> sacrifice  a positive staked amount is on record
//	sacrifice -> evangelist never decided here; evangelism attribution
//	                        owns that promotion
func ShouldAdvanceStage(s *models.Seeker, t Thresholds) Advancement {
	switch s.Stage {
	case models.StageAwareness:
		if s.BeliefScore >= t.beliefThreshold() {
			return Advancement{Advance: true, Next: models.StageBelief}
		}
	case models.StageBelief:
		if stakedPositive(s.StakedAmount) {
			return Advancement{Advance: true, Next: models.StageSacrifice}
		}
	}
	return Advancement{}
}

// IsReadyForConversion reports whether a seeker at awareness may request
// the belief transition explicitly, with a guidance string either way.
func IsReadyForConversion(s *models.Seeker, t Thresholds) Readiness {
	if s.Stage != models.StageAwareness {
		return Readiness{Ready: false, Reason: fmt.Sprintf("Already at %s stage; conversion is behind you", s.Stage)}
	}
	if s.Debates < t.minDebates() {
		return Readiness{Ready: false, Reason: fmt.Sprintf("Engage in discourse first: %d of %d debates completed", s.Debates, t.minDebates())}
	}
	if s.BeliefScore < t.beliefThreshold() {
		return Readiness{Ready: false, Reason: fmt.Sprintf("Belief %.2f is below the %.2f threshold; keep debating", s.BeliefScore, t.beliefThreshold())}
	}
	return Readiness{Ready: true, Reason: "Your belief is sufficient; declare your faith to convert"}
}

// stakedPositive parses the decimal-string staked amount and reports
// whether it is strictly positive. Malformed amounts count as zero; the
// engine validates amounts before they ever reach a seeker row.
func stakedPositive(amount string) bool {
	if amount == "" {
		return false
	}
	n, ok := new(big.Int).SetString(amount, 10)
	return ok && n.Sign() > 0
}
