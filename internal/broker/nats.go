// Package broker bridges hub fan-out over NATS JetStream so several gateway
// processes can share one subscription space. Every publish round-trips
// through the stream and is fed back to each process's local delivery.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/emberchat/ember/internal/config"
)

// Deliverer is the local delivery surface the bridge feeds subject traffic
// back into. Satisfied by *chat.Hub.
type Deliverer interface {
	DeliverRoom(roomID, excludeUser string, data []byte)
	DeliverUser(userID string, data []byte)
	DeliverAll(excludeUser string, data []byte)
}

// wire wraps one broadcast on the stream. Exclude travels with the payload
// so receiver-side exclusion works across processes.
type wire struct {
	Exclude string          `json:"exclude,omitempty"`
	Data    json.RawMessage `json:"data"`
}

type Bridge struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	stream  string
	prefix  string
	log     *slog.Logger
	consume jetstream.ConsumeContext
}

// New connects to NATS and ensures the stream exists.
func New(cfg config.NatsConfig, log *slog.Logger) (*Bridge, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := js.Stream(ctx, cfg.Stream); err != nil {
		_, err = js.CreateStream(ctx, jetstream.StreamConfig{
			Name:     cfg.Stream,
			Subjects: []string{fmt.Sprintf("%s.>", cfg.SubjectPrefix)},
			MaxAge:   time.Hour,
			Storage:  jetstream.MemoryStorage,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to create stream %q: %w", cfg.Stream, err)
		}
	}

	if log == nil {
		log = slog.Default()
	}
	return &Bridge{nc: nc, js: js, stream: cfg.Stream, prefix: cfg.SubjectPrefix, log: log}, nil
}

// Start begins consuming subject traffic and feeding it to local delivery.
// Only traffic published after the consumer exists is delivered; replay is
// the persistent store's job, not the bus's.
func (b *Bridge) Start(ctx context.Context, deliver Deliverer) error {
	cons, err := b.js.CreateOrUpdateConsumer(ctx, b.stream, jetstream.ConsumerConfig{
		FilterSubject: fmt.Sprintf("%s.>", b.prefix),
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckNonePolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	b.consume, err = cons.Consume(func(jsMsg jetstream.Msg) {
		var w wire
		if err := json.Unmarshal(jsMsg.Data(), &w); err != nil {
			b.log.Error("malformed bridge payload", "subject", jsMsg.Subject(), "err", err)
			return
		}
		b.dispatch(jsMsg.Subject(), &w, deliver)
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	return nil
}

func (b *Bridge) dispatch(subject string, w *wire, deliver Deliverer) {
	rest := strings.TrimPrefix(subject, b.prefix+".")
	switch {
	case strings.HasPrefix(rest, "room."):
		deliver.DeliverRoom(strings.TrimPrefix(rest, "room."), w.Exclude, w.Data)
	case strings.HasPrefix(rest, "user."):
		deliver.DeliverUser(strings.TrimPrefix(rest, "user."), w.Data)
	case rest == "all":
		deliver.DeliverAll(w.Exclude, w.Data)
	default:
		b.log.Warn("unrecognized bridge subject", "subject", subject)
	}
}

func (b *Bridge) publish(ctx context.Context, subject, exclude string, data []byte) error {
	payload, err := json.Marshal(&wire{Exclude: exclude, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal bridge payload: %w", err)
	}
	if _, err := b.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("failed to publish to %q: %w", subject, err)
	}
	return nil
}

// PublishRoom, PublishUser and PublishAll satisfy chat.Bus.

func (b *Bridge) PublishRoom(ctx context.Context, roomID, excludeUser string, data []byte) error {
	return b.publish(ctx, fmt.Sprintf("%s.room.%s", b.prefix, roomID), excludeUser, data)
}

func (b *Bridge) PublishUser(ctx context.Context, userID string, data []byte) error {
	return b.publish(ctx, fmt.Sprintf("%s.user.%s", b.prefix, userID), "", data)
}

func (b *Bridge) PublishAll(ctx context.Context, excludeUser string, data []byte) error {
	return b.publish(ctx, fmt.Sprintf("%s.all", b.prefix), excludeUser, data)
}

func (b *Bridge) Close() {
	if b.consume != nil {
		b.consume.Stop()
	}
	if b.nc != nil {
		b.nc.Close()
	}
}
