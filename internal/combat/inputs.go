package combat

import "github.com/geoquest/geoquest/internal/game"

// Attack input bounds. Client-supplied numbers outside these are clamped
// rather than rejected.
const (
	MaxAccuracy = 100.0
	MaxHitCap   = 500
)

// InputSource decides the accuracy and damage ceiling of a player's attack.
// The client computes both from skill level, item, and equipment bonuses;
// whether the server believes it is a deployment choice.
type InputSource interface {
	AttackInputs(attacker game.Player, clientAccuracy float64, clientMaxHit int) (accuracy float64, maxHit int)
}

// TrustClient accepts the client's numbers, clamped to sane bounds. This
// matches the live protocol: clients with equipment bonuses the server never
// sees would hit a wall under server-side recomputation.
type TrustClient struct{}

func (TrustClient) AttackInputs(_ game.Player, accuracy float64, maxHit int) (float64, int) {
	if accuracy < 0 {
		accuracy = 0
	}
	if accuracy > MaxAccuracy {
		accuracy = MaxAccuracy
	}
	if maxHit < 0 {
		maxHit = 0
	}
	if maxHit > MaxHitCap {
		maxHit = MaxHitCap
	}
	return accuracy, maxHit
}

// ServerAuthoritative ignores the client's numbers and recomputes both from
// the stored combat level. Equipment bonuses are not modeled server-side, so
// hardened installs trade fidelity for trust.
type ServerAuthoritative struct{}

func (ServerAuthoritative) AttackInputs(attacker game.Player, _ float64, _ int) (float64, int) {
	level := attacker.CombatLevel
	if level < 1 {
		level = 1
	}

	accuracy := 55 + float64(level)
	if accuracy > 95 {
		accuracy = 95
	}

	maxHit := 1 + level/2
	if maxHit > MaxHitCap {
		maxHit = MaxHitCap
	}
	return accuracy, maxHit
}
