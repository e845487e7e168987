// Package protocol defines the real-time wire protocol: event names, payload
// shapes, the envelope framing, and the delivery primitives the transport
// offers to the rest of the server.
package protocol

// Client → server events.
const (
	EventAuthenticate      = "player:authenticate"
	EventMove              = "player:move"
	EventUpdateAvatar      = "player:updateAvatar"
	EventUpdateName        = "player:updateName"
	EventUpdateEquipment   = "player:updateEquipment"
	EventSetHome           = "player:setHome"
	EventUpdateCombatStats = "player:updateCombatStats"
	EventCombatAttack      = "combat:attack"
	EventPvPAttack         = "pvp:attack"
	EventNPCAttack         = "npc:attack"
	EventChatSend          = "chat:send"
)

// Server → client events.
const (
	EventAuthSuccess      = "auth:success"
	EventAuthError        = "auth:error"
	EventWorldState       = "world:state"
	EventPlayerJoined     = "player:joined"
	EventPlayerLeft       = "player:left"
	EventPlayerMoved      = "player:moved"
	EventAvatarUpdated    = "player:avatarUpdated"
	EventNameUpdated      = "player:nameUpdated"
	EventEquipmentUpdated = "player:equipmentUpdated"
	EventHomeUpdated      = "player:homeUpdated"
	EventHealthUpdated    = "player:healthUpdated"
	EventChatMessage      = "chat:message"
	EventCombatAttacked   = "combat:attacked"
	EventCombatHit        = "combat:hit"
	EventCombatBlocked    = "combat:blocked"
	EventPvPAttackResult  = "pvp:attackResult"
	EventPvPDamaged       = "pvp:damaged"
	EventPvPDefeated      = "pvp:defeated"
	EventPvPCombatEffect  = "pvp:combatEffect"
	EventNPCAttackResult  = "npc:attackResult"
	EventNPCHealthUpdate  = "npc:healthUpdate"
	EventNPCDefeated      = "npc:defeated"
	EventNPCRespawned     = "npc:respawned"
)

// Delivery is the transport contract: every call site either addresses one
// session, a computed subset, or the whole world. Implementations must not
// block on slow receivers.
type Delivery interface {
	Unicast(sessionID, event string, payload any) error
	Multicast(sessionIDs []string, event string, payload any) error
	Broadcast(event string, payload any) error
	BroadcastExcept(sessionID, event string, payload any) error
}
