// Package chat computes chat message recipients: global messages reach every
// live session, local messages reach only sessions within earshot.
package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/geoquest/geoquest/internal/game"
	"github.com/geoquest/geoquest/internal/geo"
)

const (
	// MaxMessageLen is the sanitized-text limit, applied before escaping.
	MaxMessageLen = 200

	// LocalRadiusMeters is how far a local message carries.
	LocalRadiusMeters = 100
)

// Kind is a message's delivery scope.
type Kind string

const (
	KindGlobal Kind = "global"
	KindLocal  Kind = "local"
)

// Message is an ephemeral chat message; it exists only for the duration of
// delivery and is never persisted.
type Message struct {
	ID            string
	SenderSession string
	SenderName    string
	Text          string
	Kind          Kind
	Position      *geo.Coordinate
	Timestamp     time.Time
}

// escaper escapes the HTML-sensitive characters after truncation. The limit
// applies to the unescaped text, so a message full of angle brackets may
// exceed MaxMessageLen on the wire.
var escaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// Sanitize truncates raw to MaxMessageLen runes and then HTML-escapes it.
func Sanitize(raw string) string {
	runes := []rune(raw)
	if len(runes) > MaxMessageLen {
		raw = string(runes[:MaxMessageLen])
	}
	return escaper.Replace(raw)
}

// Router computes recipients against the live player registry.
type Router struct {
	reg *game.Registry
}

func NewRouter(reg *game.Registry) *Router {
	return &Router{reg: reg}
}

// NewMessage builds a sanitized message with a fresh id and timestamp.
// Position is required for local messages; a nil position is tolerated and
// simply yields no recipients.
func (r *Router) NewMessage(sessionID, senderName, rawText string, kind Kind, pos *geo.Coordinate) *Message {
	return &Message{
		ID:            uuid.New().String(),
		SenderSession: sessionID,
		SenderName:    senderName,
		Text:          Sanitize(rawText),
		Kind:          kind,
		Position:      pos,
		Timestamp:     time.Now(),
	}
}

// Recipients returns the session ids the message should be delivered to. The
// sender is not excluded: a local sender within their own radius hears
// themselves.
func (r *Router) Recipients(m *Message) []string {
	switch m.Kind {
	case KindGlobal:
		return r.reg.SessionIDs()
	case KindLocal:
		if m.Position == nil {
			return nil
		}
		nearby := r.reg.PlayersNearby(*m.Position, LocalRadiusMeters)
		ids := make([]string, 0, len(nearby))
		for _, p := range nearby {
			ids = append(ids, p.SessionID)
		}
		return ids
	default:
		return nil
	}
}
