package gateway

import (
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pixil98/go-testutil"

	"github.com/geoquest/geoquest/internal/auth"
	"github.com/geoquest/geoquest/internal/chat"
	"github.com/geoquest/geoquest/internal/game"
	"github.com/geoquest/geoquest/internal/protocol"
)

type nullStore struct{}

func (nullStore) Save(string, *game.PlayerRecord) error { return nil }
func (nullStore) Get(string) *game.PlayerRecord         { return nil }
func (nullStore) GetAll() map[string]*game.PlayerRecord { return nil }

type fakeConn struct {
	inbound chan []byte

	mu      sync.Mutex
	written [][]byte

	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-c.inbound:
		if !ok {
			return 0, nil, io.EOF
		}
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// events decodes everything written to the connection so far.
func (c *fakeConn) events(t *testing.T) []*protocol.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var envs []*protocol.Envelope
	for _, data := range c.written {
		env, err := protocol.Decode(data)
		if err != nil {
			t.Fatalf("decoding written frame: %v", err)
		}
		envs = append(envs, env)
	}
	return envs
}

func (c *fakeConn) findEvent(t *testing.T, event string) (*protocol.Envelope, bool) {
	t.Helper()
	for _, env := range c.events(t) {
		if env.Event == event {
			return env, true
		}
	}
	return nil, false
}

type sent struct {
	kind    string
	target  string
	targets []string
	event   string
	payload any
}

type fakeDelivery struct {
	mu   sync.Mutex
	msgs []sent
}

func (f *fakeDelivery) Unicast(sessionID, event string, payload any) error {
	f.record(sent{kind: "unicast", target: sessionID, event: event, payload: payload})
	return nil
}

func (f *fakeDelivery) Multicast(ids []string, event string, payload any) error {
	f.record(sent{kind: "multicast", targets: ids, event: event, payload: payload})
	return nil
}

func (f *fakeDelivery) Broadcast(event string, payload any) error {
	f.record(sent{kind: "broadcast", event: event, payload: payload})
	return nil
}

func (f *fakeDelivery) BroadcastExcept(exclude, event string, payload any) error {
	f.record(sent{kind: "broadcastExcept", target: exclude, event: event, payload: payload})
	return nil
}

func (f *fakeDelivery) record(m sent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, m)
}

func (f *fakeDelivery) find(event string) (sent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if m.event == event {
			return m, true
		}
	}
	return sent{}, false
}

func (f *fakeDelivery) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

type fakeSubs struct {
	mu       sync.Mutex
	subjects []string
	unsubbed []string
}

func (f *fakeSubs) Subscribe(subject string, handler func(data []byte)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unsubbed = append(f.unsubbed, subject)
	}, nil
}

type attackCall struct {
	flow     string
	attacker string
	target   string
	itemKey  string
	accuracy float64
	maxHit   int
	damage   int
}

type fakeAttacks struct {
	mu    sync.Mutex
	calls []attackCall
}

func (f *fakeAttacks) AttackNPC(attackerID, npcID, itemKey string, accuracy float64, maxHit int) {
	f.record(attackCall{flow: "npc", attacker: attackerID, target: npcID, itemKey: itemKey, accuracy: accuracy, maxHit: maxHit})
}

func (f *fakeAttacks) AttackPlayer(attackerID, targetID, itemKey string, accuracy float64, maxHit int) {
	f.record(attackCall{flow: "pvp", attacker: attackerID, target: targetID, itemKey: itemKey, accuracy: accuracy, maxHit: maxHit})
}

func (f *fakeAttacks) LegacyAttack(attackerID, targetID, itemKey string, damage int) {
	f.record(attackCall{flow: "legacy", attacker: attackerID, target: targetID, itemKey: itemKey, damage: damage})
}

func (f *fakeAttacks) record(c attackCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeAttacks) last() (attackCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return attackCall{}, false
	}
	return f.calls[len(f.calls)-1], true
}

type harness struct {
	handler  *Handler
	reg      *game.Registry
	delivery *fakeDelivery
	subs     *fakeSubs
	attacks  *fakeAttacks
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg := game.NewRegistry(nullStore{}, game.DefaultNPCs())
	d := &fakeDelivery{}
	subs := &fakeSubs{}
	attacks := &fakeAttacks{}
	h := NewHandler(reg, d, chat.NewRouter(reg), attacks, auth.NewResolver(auth.NewHMACVerifier([]byte("secret"))), subs)
	return &harness{handler: h, reg: reg, delivery: d, subs: subs, attacks: attacks}
}

// connect starts a session goroutine and returns its connection.
func (h *harness) connect(t *testing.T) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	go h.handler.Run(conn)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (h *harness) sendEvent(t *testing.T, conn *fakeConn, event string, payload any) {
	t.Helper()
	data, err := protocol.Encode(event, payload)
	if err != nil {
		t.Fatalf("encoding %s: %v", event, err)
	}
	conn.inbound <- data
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// authenticate runs the wallet flow and returns the new session id.
func (h *harness) authenticate(t *testing.T, conn *fakeConn, wallet, username string) string {
	t.Helper()
	h.sendEvent(t, conn, protocol.EventAuthenticate, protocol.AuthenticatePayload{
		AuthType:      protocol.AuthTypeWallet,
		WalletAddress: wallet,
		Username:      username,
	})

	var sessionID string
	waitFor(t, func() bool {
		env, ok := conn.findEvent(t, protocol.EventAuthSuccess)
		if !ok {
			return false
		}
		var p protocol.AuthSuccessPayload
		if err := env.Payload(&p); err != nil {
			t.Fatalf("decoding auth success: %v", err)
		}
		sessionID = p.Player.SessionID
		return true
	})
	return sessionID
}

func TestAuthenticate_WalletFlow(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t)

	id := h.authenticate(t, conn, "0xAA", "Alice")

	p, ok := h.reg.GetPlayer(id)
	if !ok {
		t.Fatal("player not in registry")
	}
	testutil.AssertEqual(t, "username", p.Username, "Alice")
	testutil.AssertEqual(t, "persistent id", p.PersistentID, "wallet-0xaa")

	env, ok := conn.findEvent(t, protocol.EventWorldState)
	if !ok {
		t.Fatal("no world state sent")
	}
	var ws protocol.WorldStatePayload
	if err := env.Payload(&ws); err != nil {
		t.Fatalf("decoding world state: %v", err)
	}
	testutil.AssertEqual(t, "players", len(ws.Players), 1)
	testutil.AssertEqual(t, "npcs", len(ws.NPCs), len(game.DefaultNPCs()))

	joined, ok := h.delivery.find(protocol.EventPlayerJoined)
	if !ok {
		t.Fatal("no joined broadcast")
	}
	testutil.AssertEqual(t, "kind", joined.kind, "broadcastExcept")
	testutil.AssertEqual(t, "excluded", joined.target, id)

	h.subs.mu.Lock()
	defer h.subs.mu.Unlock()
	testutil.AssertEqual(t, "subscription", h.subs.subjects[0], "session."+id)
}

func TestAuthenticate_FailureKeepsConnectionOpen(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t)

	h.sendEvent(t, conn, protocol.EventAuthenticate, protocol.AuthenticatePayload{AuthType: "bogus"})
	waitFor(t, func() bool {
		_, ok := conn.findEvent(t, protocol.EventAuthError)
		return ok
	})

	testutil.AssertEqual(t, "closed", conn.isClosed(), false)
	testutil.AssertEqual(t, "players", h.reg.PlayerCount(), 0)

	// A later valid attempt on the same connection succeeds.
	h.authenticate(t, conn, "0xAA", "Alice")
	testutil.AssertEqual(t, "players", h.reg.PlayerCount(), 1)
}

func TestAuthenticate_MalformedPayloadRepliesError(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t)

	h.sendEvent(t, conn, protocol.EventAuthenticate, 42)
	waitFor(t, func() bool {
		_, ok := conn.findEvent(t, protocol.EventAuthError)
		return ok
	})

	testutil.AssertEqual(t, "closed", conn.isClosed(), false)
	testutil.AssertEqual(t, "players", h.reg.PlayerCount(), 0)
}

func TestPreAuthEventsAreDropped(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t)

	h.sendEvent(t, conn, protocol.EventMove, protocol.MovePayload{Lat: 1, Lng: 2})
	h.sendEvent(t, conn, protocol.EventChatSend, protocol.ChatSendPayload{Message: "hi", Type: "global"})

	// The next frame is processed in order, so once auth completes the
	// earlier frames are known to have been dropped.
	h.authenticate(t, conn, "0xAA", "Alice")
	testutil.AssertEqual(t, "delivered before auth", h.delivery.count(), 1) // joined broadcast only
}

func TestMove(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t)
	id := h.authenticate(t, conn, "0xAA", "Alice")

	h.sendEvent(t, conn, protocol.EventMove, protocol.MovePayload{Lat: 51.5, Lng: -0.12})
	waitFor(t, func() bool {
		p, _ := h.reg.GetPlayer(id)
		return p.Position.Lat == 51.5
	})

	m, ok := h.delivery.find(protocol.EventPlayerMoved)
	if !ok {
		t.Fatal("no moved broadcast")
	}
	testutil.AssertEqual(t, "kind", m.kind, "broadcastExcept")
	testutil.AssertEqual(t, "excluded", m.target, id)
	testutil.AssertEqual(t, "position", m.payload.(protocol.PlayerMovedPayload).Position.Lng, -0.12)
}

func TestDuplicateIdentityEvictsOlderSession(t *testing.T) {
	h := newHarness(t)
	first := h.connect(t)
	firstID := h.authenticate(t, first, "0xAA", "Alice")

	second := h.connect(t)
	secondID := h.authenticate(t, second, "0xAA", "Alice")

	if firstID == secondID {
		t.Fatal("expected distinct session ids")
	}

	waitFor(t, func() bool { return first.isClosed() })
	if _, ok := h.reg.GetPlayer(firstID); ok {
		t.Fatal("old session still in registry")
	}
	if _, ok := h.reg.GetPlayer(secondID); !ok {
		t.Fatal("new session missing from registry")
	}

	left, ok := h.delivery.find(protocol.EventPlayerLeft)
	if !ok {
		t.Fatal("no left broadcast for evicted session")
	}
	testutil.AssertEqual(t, "left id", left.payload.(protocol.PlayerLeftPayload).ID, firstID)
}

func TestConcurrentDuplicateAuthKeepsOneSession(t *testing.T) {
	h := newHarness(t)

	// Four connections race the same identity through authentication. The
	// registry admits them atomically, so all but one get evicted and
	// exactly one player survives.
	conns := make([]*fakeConn, 4)
	for i := range conns {
		conns[i] = h.connect(t)
		h.sendEvent(t, conns[i], protocol.EventAuthenticate, protocol.AuthenticatePayload{
			AuthType:      protocol.AuthTypeWallet,
			WalletAddress: "0xAA",
			Username:      "Alice",
		})
	}

	waitFor(t, func() bool {
		closed := 0
		for _, c := range conns {
			if c.isClosed() {
				closed++
			}
		}
		return closed == len(conns)-1 && h.reg.PlayerCount() == 1
	})
}

func TestDisconnectRemovesPlayer(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t)
	id := h.authenticate(t, conn, "0xAA", "Alice")

	close(conn.inbound)
	waitFor(t, func() bool { return h.reg.PlayerCount() == 0 })

	left, ok := h.delivery.find(protocol.EventPlayerLeft)
	if !ok {
		t.Fatal("no left broadcast")
	}
	testutil.AssertEqual(t, "left id", left.payload.(protocol.PlayerLeftPayload).ID, id)

	waitFor(t, func() bool {
		h.subs.mu.Lock()
		defer h.subs.mu.Unlock()
		return len(h.subs.unsubbed) == 1
	})
}

func TestChatSend_GlobalIsSanitized(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t)
	id := h.authenticate(t, conn, "0xAA", "Alice")

	h.sendEvent(t, conn, protocol.EventChatSend, protocol.ChatSendPayload{Message: "<hello>", Type: "global"})
	waitFor(t, func() bool {
		_, ok := h.delivery.find(protocol.EventChatMessage)
		return ok
	})

	m, _ := h.delivery.find(protocol.EventChatMessage)
	testutil.AssertEqual(t, "kind", m.kind, "multicast")
	testutil.AssertEqual(t, "recipients", len(m.targets), 1)

	cm := m.payload.(protocol.ChatMessagePayload)
	testutil.AssertEqual(t, "message", cm.Message, "&lt;hello&gt;")
	testutil.AssertEqual(t, "sender id", cm.SenderID, id)
	testutil.AssertEqual(t, "sender", cm.Sender, "Alice")
}

func TestChatSend_LocalCarriesPosition(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t)
	h.authenticate(t, conn, "0xAA", "Alice")

	h.sendEvent(t, conn, protocol.EventChatSend, protocol.ChatSendPayload{Message: "psst", Type: "local"})
	waitFor(t, func() bool {
		_, ok := h.delivery.find(protocol.EventChatMessage)
		return ok
	})

	m, _ := h.delivery.find(protocol.EventChatMessage)
	cm := m.payload.(protocol.ChatMessagePayload)
	testutil.AssertEqual(t, "type", cm.Type, "local")
	if cm.Position == nil {
		t.Fatal("local message has no position")
	}
}

func TestAttackDispatch(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t)
	id := h.authenticate(t, conn, "0xAA", "Alice")

	h.sendEvent(t, conn, protocol.EventNPCAttack, protocol.NPCAttackPayload{NPCID: "rat", ItemKey: "sword", Accuracy: 80, MaxHit: 12})
	waitFor(t, func() bool { c, ok := h.attacks.last(); return ok && c.flow == "npc" })
	c, _ := h.attacks.last()
	testutil.AssertEqual(t, "attacker", c.attacker, id)
	testutil.AssertEqual(t, "target", c.target, "rat")
	testutil.AssertEqual(t, "accuracy", c.accuracy, 80.0)

	h.sendEvent(t, conn, protocol.EventPvPAttack, protocol.PvPAttackPayload{TargetID: "other", ItemKey: "axe", Accuracy: 50, MaxHit: 8})
	waitFor(t, func() bool { c, ok := h.attacks.last(); return ok && c.flow == "pvp" })

	h.sendEvent(t, conn, protocol.EventCombatAttack, protocol.CombatAttackPayload{TargetID: "other", ItemKey: "club", Damage: 7})
	waitFor(t, func() bool { c, ok := h.attacks.last(); return ok && c.flow == "legacy" })
	c, _ = h.attacks.last()
	testutil.AssertEqual(t, "damage", c.damage, 7)
}

func TestUpdateCombatStatsBroadcasts(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t)
	id := h.authenticate(t, conn, "0xAA", "Alice")

	h.sendEvent(t, conn, protocol.EventUpdateCombatStats, protocol.UpdateCombatStatsPayload{Health: 80, MaxHealth: 150, CombatLevel: 42})
	waitFor(t, func() bool {
		p, _ := h.reg.GetPlayer(id)
		return p.CombatLevel == 42
	})

	m, ok := h.delivery.find(protocol.EventHealthUpdated)
	if !ok {
		t.Fatal("no health broadcast")
	}
	testutil.AssertEqual(t, "kind", m.kind, "broadcast")
	testutil.AssertEqual(t, "max health", m.payload.(protocol.HealthUpdatedPayload).MaxHealth, 150)
}

func TestMalformedFrameIsDropped(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t)
	h.authenticate(t, conn, "0xAA", "Alice")

	conn.inbound <- []byte("not json")
	h.sendEvent(t, conn, protocol.EventMove, protocol.MovePayload{Lat: 9, Lng: 9})

	waitFor(t, func() bool {
		_, ok := h.delivery.find(protocol.EventPlayerMoved)
		return ok
	})
	testutil.AssertEqual(t, "closed", conn.isClosed(), false)
}
