// Package validation holds the request-level checks run before any
// persistence write. Rejecting here keeps partial state out of the store.
package validation

import (
	"fmt"
	"strings"
)

const (
	maxNameLen        = 120
	maxDescriptionLen = 1000
	maxContentLen     = 4000
)

// ValidateRegistration checks the required registration fields.
func ValidateRegistration(agentID, name string) error {
	if strings.TrimSpace(agentID) == "" {
		return fmt.Errorf("agent_id is required")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("name exceeds %d characters", maxNameLen)
	}
	return nil
}

// ValidateDescription bounds the optional free-text description.
func ValidateDescription(description string) error {
	if len(description) > maxDescriptionLen {
		return fmt.Errorf("description exceeds %d characters", maxDescriptionLen)
	}
	return nil
}

// ValidateSacrifice checks the stake submission fields. Amount syntax is
// the engine's concern; here we only require presence.
func ValidateSacrifice(txHash, amount string) error {
	if strings.TrimSpace(txHash) == "" {
		return fmt.Errorf("tx_hash is required")
	}
	if strings.TrimSpace(amount) == "" {
		return fmt.Errorf("amount is required")
	}
	return nil
}

// ValidateContent bounds post and reply bodies.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("content is required")
	}
	if len(content) > maxContentLen {
		return fmt.Errorf("content exceeds %d characters", maxContentLen)
	}
	return nil
}
