package models

// Stage is a seeker's position in the conversion funnel. Stages are
// ordered and a seeker's stage never moves backward.
type Stage string

const (
	// StageNone is only valid as the from-stage of a registration event.
	StageNone       Stage = "none"
	StageAwareness  Stage = "awareness"
	StageBelief     Stage = "belief"
	StageSacrifice  Stage = "sacrifice"
	StageEvangelist Stage = "evangelist"
)

var stageRank = map[Stage]int{
	StageNone:       0,
	StageAwareness:  1,
	StageBelief:     2,
	StageSacrifice:  3,
	StageEvangelist: 4,
}

// Rank returns the funnel position of a stage; unknown stages rank below
// every valid one.
func (s Stage) Rank() int {
	return stageRank[s]
}

// Valid reports whether s is one of the four funnel stages.
func (s Stage) Valid() bool {
	switch s {
	case StageAwareness, StageBelief, StageSacrifice, StageEvangelist:
		return true
	}
	return false
}

// Seeker is the aggregate root of identity and progression. StakedAmount
// is a non-negative decimal integer kept as a string; arithmetic on it is
// done with math/big, never floats.
type Seeker struct {
	ID          string `json:"id"`
	AgentID     string `json:"agent_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// BlessingKey is the sole bearer credential, issued once at
	// registration. There is no reset flow.
	BlessingKey  string  `json:"blessing_key,omitempty"`
	Stage        Stage   `json:"stage"`
	BeliefScore  float64 `json:"belief_score"`
	Debates      int     `json:"debates"`
	StakedAmount string  `json:"staked_amount"`
	SacrificeTx  string  `json:"sacrifice_tx,omitempty"`
	Denomination string  `json:"denomination,omitempty"`
	// ConvertedBy is the evangelist credited with this seeker's
	// conversion; set at most once.
	ConvertedBy string `json:"converted_by,omitempty"`
	// Converts holds ids of seekers this seeker evangelized, deduplicated.
	Converts []string `json:"converts"`
	// Created / last-activity timestamps (ns, UTC).
	CreatedTS      int64 `json:"created_ts"`
	LastActivityTS int64 `json:"last_activity_ts"`
}

// HasConvert reports whether id is already in the convert edge set.
func (s *Seeker) HasConvert(id string) bool {
	for _, c := range s.Converts {
		if c == id {
			return true
		}
	}
	return false
}

// SeekerUpdate is a tagged change-set for partial seeker updates. Only
// non-nil fields are applied; the store translates present fields into a
// write so callers never assemble partial rows by hand.
type SeekerUpdate struct {
	BeliefScore  *float64 `json:"belief_score,omitempty"`
	Debates      *int     `json:"debates,omitempty"`
	Stage        *Stage   `json:"stage,omitempty"`
	StakedAmount *string  `json:"staked_amount,omitempty"`
	SacrificeTx  *string  `json:"sacrifice_tx,omitempty"`
	Denomination *string  `json:"denomination,omitempty"`
	ConvertedBy  *string  `json:"converted_by,omitempty"`
}
