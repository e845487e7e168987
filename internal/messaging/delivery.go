package messaging

import (
	"fmt"

	"github.com/geoquest/geoquest/internal/protocol"
)

// Publisher publishes raw bytes to a subject. Satisfied by NatsServer.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// SessionLister enumerates the session ids of all connected players.
type SessionLister interface {
	SessionIDs() []string
}

// SubjectForSession returns the NATS subject a session's events flow over.
func SubjectForSession(sessionID string) string {
	return fmt.Sprintf("session.%s", sessionID)
}

// Delivery fans protocol events out to player sessions over per-session
// subjects. It implements protocol.Delivery.
type Delivery struct {
	bus      Publisher
	sessions SessionLister
}

func NewDelivery(bus Publisher, sessions SessionLister) *Delivery {
	return &Delivery{
		bus:      bus,
		sessions: sessions,
	}
}

// Unicast sends an event to a single session.
func (d *Delivery) Unicast(sessionID string, event string, payload any) error {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", event, err)
	}
	return d.bus.Publish(SubjectForSession(sessionID), data)
}

// Multicast sends an event to each listed session. The payload is encoded
// once. Publish failures do not stop delivery to the remaining sessions;
// the first error is returned.
func (d *Delivery) Multicast(sessionIDs []string, event string, payload any) error {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", event, err)
	}
	var firstErr error
	for _, id := range sessionIDs {
		if err := d.bus.Publish(SubjectForSession(id), data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Broadcast sends an event to every connected session.
func (d *Delivery) Broadcast(event string, payload any) error {
	return d.Multicast(d.sessions.SessionIDs(), event, payload)
}

// BroadcastExcept sends an event to every connected session but one.
func (d *Delivery) BroadcastExcept(excludeSessionID string, event string, payload any) error {
	all := d.sessions.SessionIDs()
	targets := make([]string, 0, len(all))
	for _, id := range all {
		if id == excludeSessionID {
			continue
		}
		targets = append(targets, id)
	}
	return d.Multicast(targets, event, payload)
}

var _ protocol.Delivery = (*Delivery)(nil)
