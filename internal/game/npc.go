package game

import (
	"time"

	"github.com/geoquest/geoquest/internal/geo"
)

// Tier controls how long a defeated NPC stays down before respawning.
type Tier int

const (
	TierCommon Tier = iota
	TierBoss
)

// RespawnDelay returns how long an NPC of this tier stays defeated.
func (t Tier) RespawnDelay() time.Duration {
	if t == TierBoss {
		return 3 * time.Minute
	}
	return 30 * time.Second
}

// DropTable is an NPC's reward metadata: candidate item keys and the chance
// that defeating the NPC yields any of them.
type DropTable struct {
	Items  []string `json:"items"`
	Chance float64  `json:"chance"`
}

// NPC is a server-owned combatant anchored to a city. NPCs are created once
// at startup and never removed, only depleted and respawned.
type NPC struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Title string `json:"title"`
	Icon  string `json:"icon"`

	Position geo.Coordinate `json:"position"`

	Health    int `json:"health"`
	MaxHealth int `json:"maxHealth"`

	// MaxHit is the damage ceiling for this NPC's own attacks.
	MaxHit int `json:"maxHit"`

	// AttackItems are the item keys the NPC attacks with.
	AttackItems []string `json:"attackItems"`

	Drops DropTable `json:"drops"`
	Tier  Tier      `json:"tier"`
}

// DefaultNPCs builds the fixed NPC set from the template table. Each call
// returns fresh instances at full health.
func DefaultNPCs() []*NPC {
	npcs := make([]*NPC, 0, len(npcTemplates))
	for _, tpl := range npcTemplates {
		n := tpl
		n.Health = n.MaxHealth
		npcs = append(npcs, &n)
	}
	return npcs
}

// npcTemplates is the fixed template table the world is seeded from.
var npcTemplates = []NPC{
	{
		ID:          "sewer-rat-nyc",
		Name:        "Sewer Rat",
		Title:       "Scourge of the Subway",
		Icon:        "rat",
		Position:    geo.Coordinate{Lat: 40.7306, Lng: -73.9866},
		MaxHealth:   50,
		MaxHit:      5,
		AttackItems: []string{"rusty-dagger"},
		Drops:       DropTable{Items: []string{"cheese", "subway-token"}, Chance: 0.5},
		Tier:        TierCommon,
	},
	{
		ID:          "thames-serpent",
		Name:        "Thames Serpent",
		Title:       "Terror of the River",
		Icon:        "serpent",
		Position:    geo.Coordinate{Lat: 51.5055, Lng: -0.0754},
		MaxHealth:   120,
		MaxHit:      12,
		AttackItems: []string{"water-jet"},
		Drops:       DropTable{Items: []string{"serpent-scale", "old-coin"}, Chance: 0.35},
		Tier:        TierCommon,
	},
	{
		ID:          "oni-tokyo",
		Name:        "Neon Oni",
		Title:       "Demon of the Crossing",
		Icon:        "oni",
		Position:    geo.Coordinate{Lat: 35.6684, Lng: 139.6993},
		MaxHealth:   200,
		MaxHit:      18,
		AttackItems: []string{"kanabo"},
		Drops:       DropTable{Items: []string{"oni-mask", "lantern"}, Chance: 0.4},
		Tier:        TierCommon,
	},
	{
		ID:          "catacomb-wraith",
		Name:        "Catacomb Wraith",
		Title:       "Keeper of the Bones",
		Icon:        "wraith",
		Position:    geo.Coordinate{Lat: 48.834, Lng: 2.3324},
		MaxHealth:   350,
		MaxHit:      25,
		AttackItems: []string{"soul-drain"},
		Drops:       DropTable{Items: []string{"wraith-cloak", "bone-charm", "candle"}, Chance: 0.25},
		Tier:        TierBoss,
	},
	{
		ID:          "fog-kraken-sf",
		Name:        "Fog Kraken",
		Title:       "Horror Beneath the Bay",
		Icon:        "kraken",
		Position:    geo.Coordinate{Lat: 37.8083, Lng: -122.4098},
		MaxHealth:   500,
		MaxHit:      35,
		AttackItems: []string{"tentacle-slam", "ink-cloud"},
		Drops:       DropTable{Items: []string{"kraken-ink", "golden-anchor"}, Chance: 0.2},
		Tier:        TierBoss,
	},
}
