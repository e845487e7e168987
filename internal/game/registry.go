// Package game owns the authoritative world state: the registry of connected
// players and the fixed NPC set. It performs no networking; the gateway and
// resolvers mutate the world exclusively through Registry methods.
package game

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/geoquest/geoquest/internal/geo"
	"github.com/geoquest/geoquest/internal/storage"
)

var ErrUnknownNPC = errors.New("unknown npc")

// Registry is the single source of truth for live players and NPCs.
// All access goes through its methods; handlers run on separate goroutines
// per connection, so every method takes the lock.
type Registry struct {
	mu      sync.RWMutex
	players map[string]*Player // session id → player
	npcs    map[string]*NPC

	npcOrder []string // stable iteration order for snapshots

	records storage.Storer[*PlayerRecord]
}

// NewRegistry creates a registry over the given record store, seeded with the
// given NPC set.
func NewRegistry(records storage.Storer[*PlayerRecord], npcs []*NPC) *Registry {
	r := &Registry{
		players: make(map[string]*Player),
		npcs:    make(map[string]*NPC, len(npcs)),
		records: records,
	}
	for _, n := range npcs {
		r.npcs[n.ID] = n
		r.npcOrder = append(r.npcOrder, n.ID)
	}
	return r
}

// AdmitPlayer admits a session into the world, merging any persisted record
// for persistentID. A persistent id holds at most one live session: any other
// session bound to it is removed in the same critical section as the insert,
// and its session id is returned so the caller can notify and disconnect it.
// Explicitly provided fields win over the stored record, except that a stored
// username always wins over the one supplied by the login transport. Missing
// fields fall back to defaults. The merged record is persisted best-effort.
func (r *Registry) AdmitPlayer(sessionID, persistentID, username string, avatar *Avatar, pos *geo.Coordinate) (Player, string) {
	now := time.Now()
	rec := r.records.Get(persistentID)

	p := &Player{
		SessionID:    sessionID,
		PersistentID: persistentID,
		Username:     username,
		Position:     DefaultSpawn,
		Avatar:       DefaultAvatar,
		Health:       DefaultMaxHealth,
		MaxHealth:    DefaultMaxHealth,
		CombatLevel:  DefaultCombatLevel,
		LastActive:   now,
	}

	if rec != nil {
		if rec.Username != "" {
			p.Username = rec.Username
		}
		if rec.Position != nil {
			p.Position = *rec.Position
		}
		if rec.Avatar != nil {
			p.Avatar = *rec.Avatar
		}
		if rec.Equipment != nil {
			p.Equipment = *rec.Equipment
		}
	}
	if pos != nil {
		p.Position = *pos
	}
	if avatar != nil {
		p.Avatar = *avatar
	}

	r.mu.Lock()
	evictedID := ""
	var evicted Player
	for sid, other := range r.players {
		if sid != sessionID && other.PersistentID == persistentID {
			evictedID = sid
			evicted = *other
			delete(r.players, sid)
			break
		}
	}
	r.players[sessionID] = p
	snapshot := *p
	r.mu.Unlock()

	if evictedID != "" {
		r.persist(evicted, rec, now)
	}
	r.persist(snapshot, rec, now)
	return snapshot, evictedID
}

// AddPlayer is AdmitPlayer for callers that know no other session holds the
// persistent id.
func (r *Registry) AddPlayer(sessionID, persistentID, username string, avatar *Avatar, pos *geo.Coordinate) Player {
	p, _ := r.AdmitPlayer(sessionID, persistentID, username, avatar, pos)
	return p
}

// FindExistingSession returns the session id of any other live session bound
// to the same persistent id, or "" if there is none.
func (r *Registry) FindExistingSession(persistentID, excludingSessionID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for sid, p := range r.players {
		if sid != excludingSessionID && p.PersistentID == persistentID {
			return sid
		}
	}
	return ""
}

// RemovePlayer takes a session out of the world and fires a best-effort
// persistence touch. Returns false if the session was not present.
func (r *Registry) RemovePlayer(sessionID string) (Player, bool) {
	r.mu.Lock()
	p, ok := r.players[sessionID]
	if !ok {
		r.mu.Unlock()
		return Player{}, false
	}
	delete(r.players, sessionID)
	snapshot := *p
	r.mu.Unlock()

	r.persist(snapshot, nil, time.Now())
	return snapshot, true
}

// GetPlayer returns a copy of the player bound to sessionID.
func (r *Registry) GetPlayer(sessionID string) (Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.players[sessionID]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Touch refreshes the player's last-active timestamp.
func (r *Registry) Touch(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.players[sessionID]; ok {
		p.LastActive = time.Now()
	}
}

// UpdatePosition moves a player. Returns false if the session is gone, which
// callers treat as a no-op rather than an error.
func (r *Registry) UpdatePosition(sessionID string, pos geo.Coordinate) (Player, bool) {
	return r.mutate(sessionID, func(p *Player) {
		p.Position = pos
	})
}

// UpdateAvatar replaces a player's avatar.
func (r *Registry) UpdateAvatar(sessionID string, avatar Avatar) (Player, bool) {
	return r.mutate(sessionID, func(p *Player) {
		p.Avatar = avatar
	})
}

// UpdateUsername replaces a player's display name.
func (r *Registry) UpdateUsername(sessionID, username string) (Player, bool) {
	return r.mutate(sessionID, func(p *Player) {
		p.Username = username
	})
}

// UpdateEquipment replaces a player's cosmetic equipment set.
func (r *Registry) UpdateEquipment(sessionID string, eq EquipmentSet) (Player, bool) {
	return r.mutate(sessionID, func(p *Player) {
		p.Equipment = eq
	})
}

// SetHome records a player's home position. Home is session-scoped and not
// part of the persisted record.
func (r *Registry) SetHome(sessionID string, home geo.Coordinate) (Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[sessionID]
	if !ok {
		return Player{}, false
	}
	h := home
	p.Home = &h
	return *p, true
}

// UpdateCombatStats overwrites a player's combat numbers with client-supplied
// values. The server does not recompute these; see the combat package for the
// trust boundary.
func (r *Registry) UpdateCombatStats(sessionID string, health, maxHealth, combatLevel int) (Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[sessionID]
	if !ok {
		return Player{}, false
	}
	if maxHealth > 0 {
		p.MaxHealth = maxHealth
	}
	if health >= 0 {
		p.Health = min(health, p.MaxHealth)
	}
	if combatLevel > 0 {
		p.CombatLevel = combatLevel
	}
	return *p, true
}

// ApplyPlayerDamage reduces a player's health, clamped at zero.
func (r *Registry) ApplyPlayerDamage(sessionID string, damage int) (Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[sessionID]
	if !ok {
		return Player{}, false
	}
	p.Health = max(0, p.Health-damage)
	return *p, true
}

// RestorePlayerHealth resets a player to full health.
func (r *Registry) RestorePlayerHealth(sessionID string) (Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[sessionID]
	if !ok {
		return Player{}, false
	}
	p.Health = p.MaxHealth
	return *p, true
}

// PlayersNearby returns copies of all live players within radiusMeters of pos
// by great-circle distance.
func (r *Registry) PlayersNearby(pos geo.Coordinate, radiusMeters float64) []Player {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Player
	for _, p := range r.players {
		if geo.DistanceMeters(pos, p.Position) <= radiusMeters {
			result = append(result, *p)
		}
	}
	return result
}

// SessionIDs returns the session ids of every live player.
func (r *Registry) SessionIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.players))
	for sid := range r.players {
		ids = append(ids, sid)
	}
	return ids
}

// PlayerCount returns the number of live players.
func (r *Registry) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// Snapshot returns a fresh read-only composite of all players and NPCs, in a
// stable NPC order. Handed to newly joined connections.
func (r *Registry) Snapshot() ([]Player, []NPC) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	players := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, *p)
	}
	npcs := make([]NPC, 0, len(r.npcOrder))
	for _, id := range r.npcOrder {
		npcs = append(npcs, *r.npcs[id])
	}
	return players, npcs
}

// --- NPC accessors ---

// GetNPC returns a copy of the NPC with the given id.
func (r *Registry) GetNPC(id string) (NPC, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.npcs[id]
	if !ok {
		return NPC{}, false
	}
	return *n, true
}

// DamageNPC reduces an NPC's health by amount, clamped at zero, and returns
// the new health.
func (r *Registry) DamageNPC(id string, amount int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.npcs[id]
	if !ok {
		return 0, ErrUnknownNPC
	}
	n.Health = max(0, n.Health-amount)
	return n.Health, nil
}

// ResetNPCHealth restores an NPC to full health. Idempotent: resetting an
// already-full NPC is harmless.
func (r *Registry) ResetNPCHealth(id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.npcs[id]
	if !ok {
		return 0, ErrUnknownNPC
	}
	n.Health = n.MaxHealth
	return n.Health, nil
}

// IsDefeated reports whether the NPC's health has reached zero.
func (r *Registry) IsDefeated(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.npcs[id]
	return ok && n.Health <= 0
}

// mutate applies fn to the player under the lock, refreshes lastActive, and
// persists the result best-effort.
func (r *Registry) mutate(sessionID string, fn func(*Player)) (Player, bool) {
	r.mu.Lock()
	p, ok := r.players[sessionID]
	if !ok {
		r.mu.Unlock()
		return Player{}, false
	}
	fn(p)
	p.LastActive = time.Now()
	snapshot := *p
	r.mu.Unlock()

	r.persist(snapshot, nil, snapshot.LastActive)
	return snapshot, true
}

// persist writes the player's record asynchronously. Failure is logged and
// never retried; the in-memory state stays authoritative regardless
// (last-writer-wins per field, acceptable because field groups are
// independent). Takes a copy so the save never races in-world mutation.
func (r *Registry) persist(p Player, prev *PlayerRecord, now time.Time) {
	if prev == nil {
		prev = r.records.Get(p.PersistentID)
	}

	rec := &PlayerRecord{
		Username:  p.Username,
		Position:  &geo.Coordinate{Lat: p.Position.Lat, Lng: p.Position.Lng},
		Avatar:    &Avatar{Text: p.Avatar.Text, Color: p.Avatar.Color},
		Equipment: &EquipmentSet{Skin: p.Equipment.Skin, Hat: p.Equipment.Hat, Held: p.Equipment.Held, Aura: p.Equipment.Aura},
		LastSeen:  now,
		CreatedAt: now,
	}
	if prev != nil {
		rec.Flag = prev.Flag
		if !prev.CreatedAt.IsZero() {
			rec.CreatedAt = prev.CreatedAt
		}
	}

	persistentID := p.PersistentID
	go func() {
		if err := r.records.Save(persistentID, rec); err != nil {
			slog.Warn("failed to persist player record", "persistentId", persistentID, "error", err)
		}
	}()
}
