package command

import (
	"fmt"

	"github.com/geoquest/geoquest/internal/combat"
)

type CombatInputMode int

const (
	// InputModeTrustClient accepts client-computed accuracy and maxHit,
	// matching the live protocol.
	InputModeTrustClient CombatInputMode = iota
	// InputModeServerAuthoritative recomputes both from stored combat level.
	InputModeServerAuthoritative
)

func (m *CombatInputMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "trust-client":
		*m = InputModeTrustClient
	case "server-authoritative":
		*m = InputModeServerAuthoritative
	default:
		return fmt.Errorf("unknown combat input mode: %s", text)
	}
	return nil
}

type CombatConfig struct {
	InputMode CombatInputMode `json:"input_mode"`
}

func (c *CombatConfig) validate() error {
	return nil
}

func (c *CombatConfig) buildInputSource() combat.InputSource {
	if c.InputMode == InputModeServerAuthoritative {
		return combat.ServerAuthoritative{}
	}
	return combat.TrustClient{}
}
