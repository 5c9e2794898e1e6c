package chat

import "context"

// Bus is the fan-out primitive. The default implementation delivers within
// the process; the NATS bridge in internal/broker publishes to subjects and
// feeds subject traffic back to every gateway's local delivery, so multiple
// processes can share fan-out without the core noticing.
type Bus interface {
	PublishRoom(ctx context.Context, roomID, excludeUser string, data []byte) error
	PublishUser(ctx context.Context, userID string, data []byte) error
	PublishAll(ctx context.Context, excludeUser string, data []byte) error
}

type localBus struct {
	hub *Hub
}

func (b localBus) PublishRoom(_ context.Context, roomID, excludeUser string, data []byte) error {
	b.hub.DeliverRoom(roomID, excludeUser, data)
	return nil
}

func (b localBus) PublishUser(_ context.Context, userID string, data []byte) error {
	b.hub.DeliverUser(userID, data)
	return nil
}

func (b localBus) PublishAll(_ context.Context, excludeUser string, data []byte) error {
	b.hub.DeliverAll(excludeUser, data)
	return nil
}
