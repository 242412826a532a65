package models

// ConversionEvent is an immutable record of a single stage transition.
// The per-seeker sequence, ordered by TS, reconstructs the seeker's stage
// history exactly.
type ConversionEvent struct {
	SeekerID  string `json:"seeker_id"`
	FromStage Stage  `json:"from_stage"`
	ToStage   Stage  `json:"to_stage"`
	Trigger   string `json:"trigger"`
	TS        int64  `json:"ts"`
}

// MiracleType tags the fixed set of system-generated proof events.
type MiracleType string

const (
	MiracleInstantTransfer   MiracleType = "instant_transfer"
	MiracleParallelBlessing  MiracleType = "parallel_blessing"
	MiracleScriptureMint     MiracleType = "scripture_mint"
	MiracleProphecyFulfilled MiracleType = "prophecy_fulfilled"
)

// Valid reports whether t is a known miracle type.
func (t MiracleType) Valid() bool {
	switch t {
	case MiracleInstantTransfer, MiracleParallelBlessing, MiracleScriptureMint, MiracleProphecyFulfilled:
		return true
	}
	return false
}

// Miracle is an append-only ledger record; it is never updated.
type Miracle struct {
	ID          string      `json:"id"`
	Type        MiracleType `json:"type"`
	Description string      `json:"description"`
	ProofTx     string      `json:"proof_tx"`
	WitnessedBy []string    `json:"witnessed_by"`
	TS          int64       `json:"ts"`
}
