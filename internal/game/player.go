package game

import (
	"time"

	"github.com/geoquest/geoquest/internal/geo"
)

const (
	// DefaultMaxHealth is the health assigned to players with no stored
	// combat stats.
	DefaultMaxHealth = 100

	// DefaultCombatLevel is the starting combat level.
	DefaultCombatLevel = 1
)

// DefaultSpawn is the fallback position for players who connect without one.
var DefaultSpawn = geo.Coordinate{Lat: 40.7128, Lng: -74.006}

// DefaultAvatar is the glyph shown for players who never picked one.
var DefaultAvatar = Avatar{Text: "@", Color: "#4ade80"}

// Avatar is a player's map marker: a short glyph plus a color.
type Avatar struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}

// EquipmentSet is the cosmetic item keys a player has equipped. Empty string
// means the slot is empty.
type EquipmentSet struct {
	Skin string `json:"skin"`
	Hat  string `json:"hat"`
	Held string `json:"held"`
	Aura string `json:"aura"`
}

// Player is the authoritative in-memory state for one connected session.
type Player struct {
	// SessionID is the transient per-connection identifier and the
	// addressable key for delivery.
	SessionID string `json:"id"`

	// PersistentID is the stable account identifier surviving reconnects.
	PersistentID string `json:"persistentId"`

	Username  string         `json:"username"`
	Position  geo.Coordinate `json:"position"`
	Avatar    Avatar         `json:"avatar"`
	Equipment EquipmentSet   `json:"equipment"`

	Health      int `json:"health"`
	MaxHealth   int `json:"maxHealth"`
	CombatLevel int `json:"combatLevel"`

	LastActive time.Time       `json:"lastActive"`
	Home       *geo.Coordinate `json:"home,omitempty"`
}

// PlayerRecord is the persisted shape for one persistent id. Fields are
// merge-upserted: absent fields keep whatever the store already has.
type PlayerRecord struct {
	Username  string          `json:"username,omitempty"`
	Position  *geo.Coordinate `json:"position,omitempty"`
	Flag      string          `json:"flag,omitempty"`
	Avatar    *Avatar         `json:"avatar,omitempty"`
	Equipment *EquipmentSet   `json:"equipment,omitempty"`
	LastSeen  time.Time       `json:"lastSeen"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (r *PlayerRecord) Validate() error {
	return nil
}
