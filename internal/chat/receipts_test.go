package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/emberchat/ember/internal/models"
)

func TestReadBroadcastsAndMovesPointer(t *testing.T) {
	store := newMemStore()
	x := store.addUser("x", "xavier")
	y := store.addUser("y", "yara")
	store.addConversation("c1", models.ConversationDirect, "x", "y")

	h := newTestHub(store)
	cx := connect(t, h, x)
	cy := connect(t, h, y)
	drain(cx)
	drain(cy)

	msg, err := h.Send(context.Background(), cx, SendRequest{ConversationID: "c1", Body: "hi"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	drain(cx)
	drain(cy)

	if err := h.MarkRead(context.Background(), cy, ReadRequest{MessageID: msg.ID, ConversationID: "c1"}); err != nil {
		t.Fatalf("read: %v", err)
	}

	var ev ReadEvent
	expectEvent(t, cx, EventMessageRead, &ev)
	if ev.MessageID != msg.ID || ev.UserID != "y" {
		t.Fatalf("unexpected read event: %+v", ev)
	}

	conv, _ := store.ConversationByID(context.Background(), "c1")
	if p := conv.LastRead["y"]; p.MessageID != msg.ID {
		t.Fatalf("last-read pointer = %q, want %q", p.MessageID, msg.ID)
	}
}

func TestReadIsIdempotent(t *testing.T) {
	store := newMemStore()
	x := store.addUser("x", "xavier")
	y := store.addUser("y", "yara")
	store.addConversation("c1", models.ConversationDirect, "x", "y")

	h := newTestHub(store)
	cx := connect(t, h, x)
	cy := connect(t, h, y)
	drain(cx)
	drain(cy)

	msg, _ := h.Send(context.Background(), cx, SendRequest{ConversationID: "c1", Body: "hi"})
	drain(cx)
	drain(cy)

	for i := 0; i < 3; i++ {
		if err := h.MarkRead(context.Background(), cy, ReadRequest{MessageID: msg.ID, ConversationID: "c1"}); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
	}

	stored := store.message(t, msg.ID)
	count := 0
	for _, r := range stored.ReadBy {
		if r.UserID == "y" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("read set holds %d entries for y, want 1", count)
	}

	// Exactly one broadcast for the three reads.
	expectEvent(t, cx, EventMessageRead, nil)
	expectNoEvent(t, cx)
}

func TestOutOfOrderReadKeepsNewerPointer(t *testing.T) {
	store := newMemStore()
	x := store.addUser("x", "xavier")
	y := store.addUser("y", "yara")
	store.addConversation("c1", models.ConversationDirect, "x", "y")

	h := newTestHub(store)
	base := time.Now()
	step := 0
	h.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	cx := connect(t, h, x)
	cy := connect(t, h, y)
	drain(cx)
	drain(cy)

	m1, _ := h.Send(context.Background(), cx, SendRequest{ConversationID: "c1", Body: "first"})
	m2, _ := h.Send(context.Background(), cx, SendRequest{ConversationID: "c1", Body: "second"})
	drain(cx)
	drain(cy)

	// Acknowledgements arrive out of order: newer first.
	if err := h.MarkRead(context.Background(), cy, ReadRequest{MessageID: m2.ID, ConversationID: "c1"}); err != nil {
		t.Fatalf("read m2: %v", err)
	}
	if err := h.MarkRead(context.Background(), cy, ReadRequest{MessageID: m1.ID, ConversationID: "c1"}); err != nil {
		t.Fatalf("read m1: %v", err)
	}

	conv, _ := store.ConversationByID(context.Background(), "c1")
	if p := conv.LastRead["y"]; p.MessageID != m2.ID {
		t.Fatalf("last-read pointer = %q, want %q (the newer message)", p.MessageID, m2.ID)
	}

	// Both reads are still recorded on their messages.
	if !store.message(t, m1.ID).ReadByUser("y") || !store.message(t, m2.ID).ReadByUser("y") {
		t.Fatal("read receipts missing")
	}
}

func TestReadRejectsNonParticipant(t *testing.T) {
	store := newMemStore()
	x := store.addUser("x", "xavier")
	store.addUser("y", "yara")
	u := store.addUser("u", "uma")
	store.addConversation("c1", models.ConversationDirect, "x", "y")

	h := newTestHub(store)
	cx := connect(t, h, x)
	cu := connect(t, h, u)
	drain(cx)
	drain(cu)

	msg, _ := h.Send(context.Background(), cx, SendRequest{ConversationID: "c1", Body: "hi"})
	drain(cx)

	err := h.MarkRead(context.Background(), cu, ReadRequest{MessageID: msg.ID, ConversationID: "c1"})
	if !errors.Is(err, ErrAuthorization) {
		t.Fatalf("expected ErrAuthorization, got %v", err)
	}
	if store.message(t, msg.ID).ReadByUser("u") {
		t.Fatal("read set mutated by non-participant")
	}
}

func TestReadValidatesConversationBinding(t *testing.T) {
	store := newMemStore()
	x := store.addUser("x", "xavier")
	y := store.addUser("y", "yara")
	store.addConversation("c1", models.ConversationDirect, "x", "y")
	store.addConversation("c2", models.ConversationDirect, "x", "y")

	h := newTestHub(store)
	cx := connect(t, h, x)
	cy := connect(t, h, y)
	drain(cx)
	drain(cy)

	msg, _ := h.Send(context.Background(), cx, SendRequest{ConversationID: "c1", Body: "hi"})
	drain(cx)
	drain(cy)

	err := h.MarkRead(context.Background(), cy, ReadRequest{MessageID: msg.ID, ConversationID: "c2"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
