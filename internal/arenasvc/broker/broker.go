package broker

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/stakearena/arena-services/internal/comm"
)

// RoomEventsSubject carries room frames between gateway instances. A room's
// two players may be connected to different instances, so every instance
// subscribes and delivers to whichever sockets it holds.
const RoomEventsSubject = "arena.rooms"

type Broker struct {
	Conn *nats.Conn
}

func NewBroker(nc *nats.Conn) *Broker {
	return &Broker{Conn: nc}
}

func (b *Broker) PublishRoomEvent(ev *comm.RoomEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Errorf("unable to marshal room event for room %s: %v", ev.RoomID, err)
		return err
	}
	if err := b.Conn.Publish(RoomEventsSubject, payload); err != nil {
		log.Errorf("Error publishing to subject %s: %s", RoomEventsSubject, err)
		return err
	}
	return nil
}

func (b *Broker) SubscribeRoomEvents(handle func(*comm.RoomEvent)) (*nats.Subscription, error) {
	return b.Conn.Subscribe(RoomEventsSubject, func(m *nats.Msg) {
		ev := &comm.RoomEvent{}
		if err := json.Unmarshal(m.Data, ev); err != nil {
			log.Errorf("Error nats message %s", err)
			return
		}
		handle(ev)
	})
}
