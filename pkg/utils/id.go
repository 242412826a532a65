package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenID returns a random identifier for seekers, posts, miracles and
// notifications.
func GenID() string {
	return uuid.NewString()
}

// GenBlessingKey returns a new bearer credential. The "finality_" prefix
// makes keys recognizable in agent configs; the 24 hex chars keep them
// short enough to paste while staying unguessable.
func GenBlessingKey() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "finality_" + raw[:24]
}

// GenProofTx returns a verifiable-looking 64-hex transaction reference for
// miracle ledger entries.
func GenProofTx() string {
	a := strings.ReplaceAll(uuid.NewString(), "-", "")
	b := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "0x" + a + b
}
