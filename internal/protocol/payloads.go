package protocol

import (
	"github.com/geoquest/geoquest/internal/game"
	"github.com/geoquest/geoquest/internal/geo"
)

// Identity methods accepted by player:authenticate.
const (
	AuthTypeFirebase = "firebase"
	AuthTypeWallet   = "wallet"
)

// --- client → server payloads ---

type AuthenticatePayload struct {
	AuthType      string       `json:"authType"`
	Token         string       `json:"token,omitempty"`
	WalletAddress string       `json:"walletAddress,omitempty"`
	Username      string       `json:"username,omitempty"`
	Avatar        *game.Avatar `json:"avatar,omitempty"`
}

type MovePayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type UpdateAvatarPayload struct {
	Avatar game.Avatar `json:"avatar"`
}

type UpdateNamePayload struct {
	Username string `json:"username"`
}

type UpdateEquipmentPayload struct {
	Equipment game.EquipmentSet `json:"equipment"`
}

type SetHomePayload struct {
	Position geo.Coordinate `json:"position"`
}

type UpdateCombatStatsPayload struct {
	Health      int `json:"health"`
	MaxHealth   int `json:"maxHealth"`
	CombatLevel int `json:"combatLevel"`
}

// CombatAttackPayload is the legacy PvP path: damage is computed client-side.
type CombatAttackPayload struct {
	TargetID string `json:"targetId"`
	ItemKey  string `json:"itemKey"`
	Damage   int    `json:"damage"`
}

type PvPAttackPayload struct {
	TargetID string  `json:"targetId"`
	ItemKey  string  `json:"itemKey"`
	Accuracy float64 `json:"accuracy"`
	MaxHit   int     `json:"maxHit"`
}

type NPCAttackPayload struct {
	NPCID    string  `json:"npcId"`
	ItemKey  string  `json:"itemKey"`
	Accuracy float64 `json:"accuracy"`
	MaxHit   int     `json:"maxHit"`
}

type ChatSendPayload struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// --- server → client payloads ---

type AuthSuccessPayload struct {
	Player game.Player `json:"player"`
}

type AuthErrorPayload struct {
	Message string `json:"message"`
}

type WorldStatePayload struct {
	Players []game.Player `json:"players"`
	NPCs    []game.NPC    `json:"npcs"`
}

type PlayerJoinedPayload struct {
	Player game.Player `json:"player"`
}

type PlayerLeftPayload struct {
	ID string `json:"id"`
}

type PlayerMovedPayload struct {
	ID       string         `json:"id"`
	Position geo.Coordinate `json:"position"`
}

type AvatarUpdatedPayload struct {
	ID     string      `json:"id"`
	Avatar game.Avatar `json:"avatar"`
}

type NameUpdatedPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type EquipmentUpdatedPayload struct {
	ID        string            `json:"id"`
	Equipment game.EquipmentSet `json:"equipment"`
}

type HomeUpdatedPayload struct {
	Position geo.Coordinate `json:"position"`
}

type HealthUpdatedPayload struct {
	ID        string `json:"id"`
	Health    int    `json:"health"`
	MaxHealth int    `json:"maxHealth"`
}

type CombatBlockedPayload struct {
	Reason string `json:"reason"`
}

type CombatAttackedPayload struct {
	TargetID string `json:"targetId"`
	ItemKey  string `json:"itemKey"`
	Damage   int    `json:"damage"`
}

type CombatHitPayload struct {
	AttackerID   string `json:"attackerId"`
	AttackerName string `json:"attackerName"`
	ItemKey      string `json:"itemKey"`
	Damage       int    `json:"damage"`
	Health       int    `json:"health"`
}

type PvPAttackResultPayload struct {
	TargetID     string `json:"targetId"`
	ItemKey      string `json:"itemKey"`
	Hit          bool   `json:"hit"`
	Damage       int    `json:"damage"`
	TargetHealth int    `json:"targetHealth"`
}

type PvPDamagedPayload struct {
	AttackerID   string `json:"attackerId"`
	AttackerName string `json:"attackerName"`
	ItemKey      string `json:"itemKey"`
	Damage       int    `json:"damage"`
	Health       int    `json:"health"`
}

type PvPDefeatedPayload struct {
	KillerName string `json:"killerName"`
}

type PvPCombatEffectPayload struct {
	AttackerID string `json:"attackerId"`
	TargetID   string `json:"targetId"`
	ItemKey    string `json:"itemKey"`
	Hit        bool   `json:"hit"`
	Damage     int    `json:"damage"`
}

type NPCAttackResultPayload struct {
	NPCID   string `json:"npcId"`
	ItemKey string `json:"itemKey"`
	Hit     bool   `json:"hit"`
	Damage  int    `json:"damage"`
	Health  int    `json:"health"`
}

type NPCHealthUpdatePayload struct {
	NPCID     string `json:"npcId"`
	Health    int    `json:"health"`
	MaxHealth int    `json:"maxHealth"`
}

type NPCDefeatedPayload struct {
	NPCID  string `json:"npcId"`
	Reward string `json:"reward,omitempty"`
}

type NPCRespawnedPayload struct {
	NPCID string `json:"npcId"`
}

type ChatMessagePayload struct {
	ID        string          `json:"id"`
	SenderID  string          `json:"senderId"`
	Sender    string          `json:"sender"`
	Message   string          `json:"message"`
	Type      string          `json:"type"`
	Position  *geo.Coordinate `json:"position,omitempty"`
	Timestamp int64           `json:"timestamp"`
}
