package gateway

import (
	"log/slog"
	"sync"

	"github.com/geoquest/geoquest/internal/auth"
	"github.com/geoquest/geoquest/internal/chat"
	"github.com/geoquest/geoquest/internal/game"
	"github.com/geoquest/geoquest/internal/geo"
	"github.com/geoquest/geoquest/internal/messaging"
	"github.com/geoquest/geoquest/internal/protocol"
)

// Subscriber creates a subscription on a subject. Satisfied by the embedded
// NATS server.
type Subscriber interface {
	Subscribe(subject string, handler func(data []byte)) (func(), error)
}

// AttackResolver resolves the three attack flows. Satisfied by the combat
// resolver.
type AttackResolver interface {
	AttackNPC(attackerID, npcID, itemKey string, accuracy float64, maxHit int)
	AttackPlayer(attackerID, targetID, itemKey string, accuracy float64, maxHit int)
	LegacyAttack(attackerID, targetID, itemKey string, damage int)
}

// IdentityResolver turns an authenticate payload into a durable identity.
type IdentityResolver interface {
	Resolve(p *protocol.AuthenticatePayload) (auth.Identity, error)
}

// Handler owns the session lifecycle: authentication, inbound event
// dispatch, and disconnect cleanup.
type Handler struct {
	reg      *game.Registry
	delivery protocol.Delivery
	chat     *chat.Router
	combat   AttackResolver
	ids      IdentityResolver
	subs     Subscriber

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewHandler(reg *game.Registry, delivery protocol.Delivery, chatRouter *chat.Router, combat AttackResolver, ids IdentityResolver, subs Subscriber) *Handler {
	return &Handler{
		reg:      reg,
		delivery: delivery,
		chat:     chatRouter,
		combat:   combat,
		ids:      ids,
		subs:     subs,
		sessions: make(map[string]*Session),
	}
}

// Run services one connection until it drops or is evicted. It blocks for
// the life of the connection.
func (h *Handler) Run(conn Conn) {
	s := newSession(conn)

	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()

	go s.writePump()
	defer h.teardown(s)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.dispatch(s, data)
	}
}

func (h *Handler) teardown(s *Session) {
	s.Kick()
	if s.unsub != nil {
		s.unsub()
	}

	h.mu.Lock()
	delete(h.sessions, s.ID)
	h.mu.Unlock()

	if !s.authenticated {
		return
	}
	if _, ok := h.reg.RemovePlayer(s.ID); ok {
		h.send(h.delivery.Broadcast(protocol.EventPlayerLeft, protocol.PlayerLeftPayload{ID: s.ID}), protocol.EventPlayerLeft)
	}
}

// dispatch decodes one inbound frame and routes it. Malformed frames and
// events from unauthenticated sessions are dropped silently; a bad frame
// only ever affects its own session.
func (h *Handler) dispatch(s *Session, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		slog.Debug("dropping malformed frame", "sessionId", s.ID, "error", err)
		return
	}

	if !s.authenticated {
		if env.Event == protocol.EventAuthenticate {
			h.authenticate(s, env)
		}
		return
	}

	h.reg.Touch(s.ID)

	switch env.Event {
	case protocol.EventAuthenticate:
		// Already authenticated; re-auth is dropped.
	case protocol.EventMove:
		h.move(s, env)
	case protocol.EventUpdateAvatar:
		h.updateAvatar(s, env)
	case protocol.EventUpdateName:
		h.updateName(s, env)
	case protocol.EventUpdateEquipment:
		h.updateEquipment(s, env)
	case protocol.EventSetHome:
		h.setHome(s, env)
	case protocol.EventUpdateCombatStats:
		h.updateCombatStats(s, env)
	case protocol.EventChatSend:
		h.chatSend(s, env)
	case protocol.EventNPCAttack:
		h.npcAttack(s, env)
	case protocol.EventPvPAttack:
		h.pvpAttack(s, env)
	case protocol.EventCombatAttack:
		h.legacyAttack(s, env)
	default:
		slog.Debug("dropping unknown event", "sessionId", s.ID, "event", env.Event)
	}
}

func (h *Handler) authenticate(s *Session, env *protocol.Envelope) {
	var p protocol.AuthenticatePayload
	if err := env.Payload(&p); err != nil {
		slog.Info("authentication failed", "sessionId", s.ID, "error", err)
		h.reply(s, protocol.EventAuthError, protocol.AuthErrorPayload{Message: "malformed authenticate payload"})
		return
	}

	identity, err := h.ids.Resolve(&p)
	if err != nil {
		slog.Info("authentication failed", "sessionId", s.ID, "error", err)
		h.reply(s, protocol.EventAuthError, protocol.AuthErrorPayload{Message: err.Error()})
		return
	}

	unsub, err := h.subs.Subscribe(messaging.SubjectForSession(s.ID), s.enqueue)
	if err != nil {
		slog.Warn("failed to subscribe session", "sessionId", s.ID, "error", err)
		h.reply(s, protocol.EventAuthError, protocol.AuthErrorPayload{Message: "internal error"})
		return
	}
	s.unsub = unsub

	// One live session per identity. The registry swaps out any older
	// session in the same critical section as the insert, so two racing
	// logins can never both stay admitted.
	player, evicted := h.reg.AdmitPlayer(s.ID, identity.PersistentID, identity.Username, p.Avatar, nil)
	s.authenticated = true

	if evicted != "" {
		h.send(h.delivery.Broadcast(protocol.EventPlayerLeft, protocol.PlayerLeftPayload{ID: evicted}), protocol.EventPlayerLeft)
		h.kick(evicted)
	}

	h.reply(s, protocol.EventAuthSuccess, protocol.AuthSuccessPayload{Player: player})

	players, npcs := h.reg.Snapshot()
	h.reply(s, protocol.EventWorldState, protocol.WorldStatePayload{Players: players, NPCs: npcs})

	h.send(h.delivery.BroadcastExcept(s.ID, protocol.EventPlayerJoined, protocol.PlayerJoinedPayload{Player: player}), protocol.EventPlayerJoined)
}

func (h *Handler) move(s *Session, env *protocol.Envelope) {
	var p protocol.MovePayload
	if err := env.Payload(&p); err != nil {
		return
	}
	pos := geo.Coordinate{Lat: p.Lat, Lng: p.Lng}
	if _, ok := h.reg.UpdatePosition(s.ID, pos); !ok {
		return
	}
	h.send(h.delivery.BroadcastExcept(s.ID, protocol.EventPlayerMoved, protocol.PlayerMovedPayload{ID: s.ID, Position: pos}), protocol.EventPlayerMoved)
}

func (h *Handler) updateAvatar(s *Session, env *protocol.Envelope) {
	var p protocol.UpdateAvatarPayload
	if err := env.Payload(&p); err != nil {
		return
	}
	if _, ok := h.reg.UpdateAvatar(s.ID, p.Avatar); !ok {
		return
	}
	h.send(h.delivery.BroadcastExcept(s.ID, protocol.EventAvatarUpdated, protocol.AvatarUpdatedPayload{ID: s.ID, Avatar: p.Avatar}), protocol.EventAvatarUpdated)
}

func (h *Handler) updateName(s *Session, env *protocol.Envelope) {
	var p protocol.UpdateNamePayload
	if err := env.Payload(&p); err != nil {
		return
	}
	if _, ok := h.reg.UpdateUsername(s.ID, p.Username); !ok {
		return
	}
	h.send(h.delivery.BroadcastExcept(s.ID, protocol.EventNameUpdated, protocol.NameUpdatedPayload{ID: s.ID, Username: p.Username}), protocol.EventNameUpdated)
}

func (h *Handler) updateEquipment(s *Session, env *protocol.Envelope) {
	var p protocol.UpdateEquipmentPayload
	if err := env.Payload(&p); err != nil {
		return
	}
	if _, ok := h.reg.UpdateEquipment(s.ID, p.Equipment); !ok {
		return
	}
	h.send(h.delivery.BroadcastExcept(s.ID, protocol.EventEquipmentUpdated, protocol.EquipmentUpdatedPayload{ID: s.ID, Equipment: p.Equipment}), protocol.EventEquipmentUpdated)
}

func (h *Handler) setHome(s *Session, env *protocol.Envelope) {
	var p protocol.SetHomePayload
	if err := env.Payload(&p); err != nil {
		return
	}
	if _, ok := h.reg.SetHome(s.ID, p.Position); !ok {
		return
	}
	// Home is private; only the owner hears about it.
	h.send(h.delivery.Unicast(s.ID, protocol.EventHomeUpdated, protocol.HomeUpdatedPayload{Position: p.Position}), protocol.EventHomeUpdated)
}

func (h *Handler) updateCombatStats(s *Session, env *protocol.Envelope) {
	var p protocol.UpdateCombatStatsPayload
	if err := env.Payload(&p); err != nil {
		return
	}
	player, ok := h.reg.UpdateCombatStats(s.ID, p.Health, p.MaxHealth, p.CombatLevel)
	if !ok {
		return
	}
	h.send(h.delivery.Broadcast(protocol.EventHealthUpdated, protocol.HealthUpdatedPayload{
		ID:        s.ID,
		Health:    player.Health,
		MaxHealth: player.MaxHealth,
	}), protocol.EventHealthUpdated)
}

func (h *Handler) chatSend(s *Session, env *protocol.Envelope) {
	var p protocol.ChatSendPayload
	if err := env.Payload(&p); err != nil {
		return
	}
	player, ok := h.reg.GetPlayer(s.ID)
	if !ok {
		return
	}

	kind := chat.KindGlobal
	var pos *geo.Coordinate
	if p.Type == string(chat.KindLocal) {
		kind = chat.KindLocal
		position := player.Position
		pos = &position
	}

	msg := h.chat.NewMessage(s.ID, player.Username, p.Message, kind, pos)
	h.send(h.delivery.Multicast(h.chat.Recipients(msg), protocol.EventChatMessage, protocol.ChatMessagePayload{
		ID:        msg.ID,
		SenderID:  msg.SenderSession,
		Sender:    msg.SenderName,
		Message:   msg.Text,
		Type:      string(msg.Kind),
		Position:  msg.Position,
		Timestamp: msg.Timestamp.UnixMilli(),
	}), protocol.EventChatMessage)
}

func (h *Handler) npcAttack(s *Session, env *protocol.Envelope) {
	var p protocol.NPCAttackPayload
	if err := env.Payload(&p); err != nil {
		return
	}
	h.combat.AttackNPC(s.ID, p.NPCID, p.ItemKey, p.Accuracy, p.MaxHit)
}

func (h *Handler) pvpAttack(s *Session, env *protocol.Envelope) {
	var p protocol.PvPAttackPayload
	if err := env.Payload(&p); err != nil {
		return
	}
	h.combat.AttackPlayer(s.ID, p.TargetID, p.ItemKey, p.Accuracy, p.MaxHit)
}

func (h *Handler) legacyAttack(s *Session, env *protocol.Envelope) {
	var p protocol.CombatAttackPayload
	if err := env.Payload(&p); err != nil {
		return
	}
	h.combat.LegacyAttack(s.ID, p.TargetID, p.ItemKey, p.Damage)
}

// kick evicts another live session by id.
func (h *Handler) kick(sessionID string) {
	h.mu.Lock()
	s, ok := h.sessions[sessionID]
	h.mu.Unlock()
	if ok {
		s.Kick()
	}
}

// reply writes directly to the session, bypassing the message bus. Used for
// the authenticate exchange, which must reach the caller even before its
// subscription exists.
func (h *Handler) reply(s *Session, event string, payload any) {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		slog.Warn("failed to encode reply", "event", event, "error", err)
		return
	}
	s.enqueue(data)
}

func (h *Handler) send(err error, event string) {
	if err != nil {
		slog.Warn("failed to deliver event", "event", event, "error", err)
	}
}
