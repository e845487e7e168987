// Package combat resolves single attacks: accuracy roll, damage roll,
// safe-zone policy, health mutation, and defeat/respawn scheduling.
package combat

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/geoquest/geoquest/internal/game"
	"github.com/geoquest/geoquest/internal/geo"
	"github.com/geoquest/geoquest/internal/protocol"
)

// ReviveDelay is how long a defeated player stays at zero health.
const ReviveDelay = 5 * time.Second

// Scheduler runs a delayed task keyed by entity id, replacing any pending
// task under the same key.
type Scheduler interface {
	After(key string, d time.Duration, fn func())
}

// Resolver resolves attacks against the registry and fans results out over
// the delivery layer. Ids reference live sessions and NPCs; anything that
// vanished mid-flight is dropped silently.
type Resolver struct {
	reg      *game.Registry
	delivery protocol.Delivery
	sched    Scheduler
	inputs   InputSource

	mu  sync.Mutex
	rng *rand.Rand
}

func NewResolver(reg *game.Registry, delivery protocol.Delivery, sched Scheduler, inputs InputSource, opts ...ResolverOpt) *Resolver {
	r := &Resolver{
		reg:      reg,
		delivery: delivery,
		sched:    sched,
		inputs:   inputs,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type ResolverOpt func(*Resolver)

// WithRand replaces the roll source. Used by tests for determinism.
func WithRand(rng *rand.Rand) ResolverOpt {
	return func(r *Resolver) {
		r.rng = rng
	}
}

// rollHit draws uniform [0,100); accuracy 100 always hits.
func (r *Resolver) rollHit(accuracy float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()*100 < accuracy
}

// rollDamage draws a uniform integer in [0, maxHit].
func (r *Resolver) rollDamage(maxHit int) int {
	if maxHit <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(maxHit + 1)
}

// rollReward returns one drop table item with the given chance, or "".
func (r *Resolver) rollReward(drops game.DropTable) string {
	if len(drops.Items) == 0 {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rng.Float64() >= drops.Chance {
		return ""
	}
	return drops.Items[r.rng.IntN(len(drops.Items))]
}

// AttackNPC resolves one player attack against an NPC. The outcome goes to
// the attacker; the NPC's new health goes to everyone.
func (r *Resolver) AttackNPC(attackerID, npcID, itemKey string, clientAccuracy float64, clientMaxHit int) {
	attacker, ok := r.reg.GetPlayer(attackerID)
	if !ok {
		return
	}
	npc, ok := r.reg.GetNPC(npcID)
	if !ok {
		return
	}

	accuracy, maxHit := r.inputs.AttackInputs(attacker, clientAccuracy, clientMaxHit)

	hit := r.rollHit(accuracy)
	damage := 0
	if hit {
		damage = r.rollDamage(maxHit)
	}

	health, err := r.reg.DamageNPC(npcID, damage)
	if err != nil {
		return
	}

	r.send(r.delivery.Unicast(attackerID, protocol.EventNPCAttackResult, protocol.NPCAttackResultPayload{
		NPCID:   npcID,
		ItemKey: itemKey,
		Hit:     hit,
		Damage:  damage,
		Health:  health,
	}), protocol.EventNPCAttackResult)

	r.send(r.delivery.Broadcast(protocol.EventNPCHealthUpdate, protocol.NPCHealthUpdatePayload{
		NPCID:     npcID,
		Health:    health,
		MaxHealth: npc.MaxHealth,
	}), protocol.EventNPCHealthUpdate)

	// Only the killing blow starts a respawn cycle; hitting an NPC that is
	// already down must not push the pending timer back.
	if health == 0 && npc.Health > 0 {
		r.send(r.delivery.Unicast(attackerID, protocol.EventNPCDefeated, protocol.NPCDefeatedPayload{
			NPCID:  npcID,
			Reward: r.rollReward(npc.Drops),
		}), protocol.EventNPCDefeated)

		r.sched.After("npc-respawn:"+npcID, npc.Tier.RespawnDelay(), func() {
			r.respawnNPC(npcID)
		})
	}
}

func (r *Resolver) respawnNPC(npcID string) {
	health, err := r.reg.ResetNPCHealth(npcID)
	if err != nil {
		return
	}

	r.send(r.delivery.Broadcast(protocol.EventNPCRespawned, protocol.NPCRespawnedPayload{
		NPCID: npcID,
	}), protocol.EventNPCRespawned)

	r.send(r.delivery.Broadcast(protocol.EventNPCHealthUpdate, protocol.NPCHealthUpdatePayload{
		NPCID:     npcID,
		Health:    health,
		MaxHealth: health,
	}), protocol.EventNPCHealthUpdate)
}

// AttackPlayer resolves one PvP attack. Safe zones block the attack before
// any roll: the attacker cannot strike from safety and the defender cannot
// be harmed inside it.
func (r *Resolver) AttackPlayer(attackerID, targetID, itemKey string, clientAccuracy float64, clientMaxHit int) {
	attacker, ok := r.reg.GetPlayer(attackerID)
	if !ok {
		return
	}
	target, ok := r.reg.GetPlayer(targetID)
	if !ok {
		return
	}

	if reason, blocked := r.safeZoneBlock(attacker, target); blocked {
		r.send(r.delivery.Unicast(attackerID, protocol.EventCombatBlocked, protocol.CombatBlockedPayload{
			Reason: reason,
		}), protocol.EventCombatBlocked)
		return
	}

	accuracy, maxHit := r.inputs.AttackInputs(attacker, clientAccuracy, clientMaxHit)

	hit := r.rollHit(accuracy)
	damage := 0
	if hit {
		damage = r.rollDamage(maxHit)
	}

	prevHealth := target.Health
	if damage > 0 {
		target, _ = r.reg.ApplyPlayerDamage(targetID, damage)
	}

	r.emitExchange(attacker, target, itemKey, hit, damage)

	// The revive timer belongs to the killing blow. Attacks landing while
	// the target is already down must not reset it.
	if target.Health == 0 && prevHealth > 0 {
		r.handleDefeat(attacker, targetID)
	}
}

// LegacyAttack resolves the older attack path where the client sends a
// pre-computed damage number and no rolls happen server-side.
func (r *Resolver) LegacyAttack(attackerID, targetID, itemKey string, damage int) {
	attacker, ok := r.reg.GetPlayer(attackerID)
	if !ok {
		return
	}
	target, ok := r.reg.GetPlayer(targetID)
	if !ok {
		return
	}

	if reason, blocked := r.safeZoneBlock(attacker, target); blocked {
		r.send(r.delivery.Unicast(attackerID, protocol.EventCombatBlocked, protocol.CombatBlockedPayload{
			Reason: reason,
		}), protocol.EventCombatBlocked)
		return
	}

	if damage < 0 {
		damage = 0
	}
	prevHealth := target.Health
	if damage > 0 {
		target, _ = r.reg.ApplyPlayerDamage(targetID, damage)
	}

	r.send(r.delivery.Unicast(attackerID, protocol.EventCombatAttacked, protocol.CombatAttackedPayload{
		TargetID: targetID,
		ItemKey:  itemKey,
		Damage:   damage,
	}), protocol.EventCombatAttacked)

	r.send(r.delivery.Unicast(targetID, protocol.EventCombatHit, protocol.CombatHitPayload{
		AttackerID:   attacker.SessionID,
		AttackerName: attacker.Username,
		ItemKey:      itemKey,
		Damage:       damage,
		Health:       target.Health,
	}), protocol.EventCombatHit)

	r.send(r.delivery.Broadcast(protocol.EventHealthUpdated, protocol.HealthUpdatedPayload{
		ID:        targetID,
		Health:    target.Health,
		MaxHealth: target.MaxHealth,
	}), protocol.EventHealthUpdated)

	if target.Health == 0 && prevHealth > 0 {
		r.handleDefeat(attacker, targetID)
	}
}

func (r *Resolver) safeZoneBlock(attacker, target game.Player) (string, bool) {
	if zone, ok := geo.SafeZoneName(attacker.Position); ok {
		return fmt.Sprintf("You cannot attack from the safety of %s.", zone), true
	}
	if zone, ok := geo.SafeZoneName(target.Position); ok {
		return fmt.Sprintf("%s is protected within %s.", target.Username, zone), true
	}
	return "", false
}

func (r *Resolver) emitExchange(attacker, target game.Player, itemKey string, hit bool, damage int) {
	r.send(r.delivery.Unicast(attacker.SessionID, protocol.EventPvPAttackResult, protocol.PvPAttackResultPayload{
		TargetID:     target.SessionID,
		ItemKey:      itemKey,
		Hit:          hit,
		Damage:       damage,
		TargetHealth: target.Health,
	}), protocol.EventPvPAttackResult)

	r.send(r.delivery.Unicast(target.SessionID, protocol.EventPvPDamaged, protocol.PvPDamagedPayload{
		AttackerID:   attacker.SessionID,
		AttackerName: attacker.Username,
		ItemKey:      itemKey,
		Damage:       damage,
		Health:       target.Health,
	}), protocol.EventPvPDamaged)

	r.send(r.delivery.Broadcast(protocol.EventPvPCombatEffect, protocol.PvPCombatEffectPayload{
		AttackerID: attacker.SessionID,
		TargetID:   target.SessionID,
		ItemKey:    itemKey,
		Hit:        hit,
		Damage:     damage,
	}), protocol.EventPvPCombatEffect)

	r.send(r.delivery.Broadcast(protocol.EventHealthUpdated, protocol.HealthUpdatedPayload{
		ID:        target.SessionID,
		Health:    target.Health,
		MaxHealth: target.MaxHealth,
	}), protocol.EventHealthUpdated)
}

func (r *Resolver) handleDefeat(attacker game.Player, targetID string) {
	r.send(r.delivery.Unicast(targetID, protocol.EventPvPDefeated, protocol.PvPDefeatedPayload{
		KillerName: attacker.Username,
	}), protocol.EventPvPDefeated)

	r.sched.After("pvp-revive:"+targetID, ReviveDelay, func() {
		revived, ok := r.reg.RestorePlayerHealth(targetID)
		if !ok {
			return
		}
		r.send(r.delivery.Broadcast(protocol.EventHealthUpdated, protocol.HealthUpdatedPayload{
			ID:        targetID,
			Health:    revived.Health,
			MaxHealth: revived.MaxHealth,
		}), protocol.EventHealthUpdated)
	})
}

func (r *Resolver) send(err error, event string) {
	if err != nil {
		slog.Warn("failed to deliver combat event", "event", event, "error", err)
	}
}
