package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rodrigogs/baileys-store/internal/bus"
)

func seedMessages(s *Store, jid string, n int) {
	msgs := make([]*Message, n)
	for i := 0; i < n; i++ {
		msgs[i] = &Message{
			Key:              MessageKey{RemoteJID: jid, ID: fmt.Sprintf("m%d", i)},
			MessageTimestamp: int64(1000 + i),
		}
	}
	apply(s, KindMessagesUpsert, MessagesUpsert{Messages: msgs, Type: UpsertAppend})
}

func TestLoadMessagesNoCursor(t *testing.T) {
	s := testStore(t)
	seedMessages(s, "A", 5)

	got := s.LoadMessages("A", 3, nil)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, m := range got {
		if m.Key.ID != fmt.Sprintf("m%d", i) {
			t.Errorf("position %d = %q", i, m.Key.ID)
		}
	}
}

func TestLoadMessagesBeforeCursor(t *testing.T) {
	s := testStore(t)
	seedMessages(s, "A", 5)

	cursor := &MessageCursor{Before: &MessageKey{RemoteJID: "A", ID: "m3"}}
	got := s.LoadMessages("A", 10, cursor)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3 (strictly before m3)", len(got))
	}
	if got[len(got)-1].Key.ID != "m2" {
		t.Errorf("last = %q, want m2", got[len(got)-1].Key.ID)
	}

	// Limit clips the result.
	got = s.LoadMessages("A", 2, cursor)
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

func TestLoadMessagesAfterCursorEmpty(t *testing.T) {
	s := testStore(t)
	seedMessages(s, "A", 5)
	got := s.LoadMessages("A", 10, &MessageCursor{After: &MessageKey{RemoteJID: "A", ID: "m1"}})
	if len(got) != 0 {
		t.Errorf("after cursor returned %d messages, want 0", len(got))
	}
}

func TestLoadMessagesMissingCursorMessage(t *testing.T) {
	s := testStore(t)
	seedMessages(s, "A", 3)
	got := s.LoadMessages("A", 10, &MessageCursor{Before: &MessageKey{RemoteJID: "A", ID: "ghost"}})
	if len(got) != 0 {
		t.Errorf("missing cursor message returned %d, want 0", len(got))
	}
}

func TestLoadMessagesUnknownChat(t *testing.T) {
	s := testStore(t)
	if got := s.LoadMessages("nochat", 10, nil); len(got) != 0 {
		t.Errorf("unknown chat returned %d messages", len(got))
	}
}

func TestMostRecentMessage(t *testing.T) {
	s := testStore(t)
	if s.MostRecentMessage("A") != nil {
		t.Error("empty chat has a most recent message")
	}
	seedMessages(s, "A", 3)
	if got := s.MostRecentMessage("A"); got == nil || got.Key.ID != "m2" {
		t.Errorf("most recent = %v, want m2", got)
	}
}

func TestPrependKeepsOrder(t *testing.T) {
	s := testStore(t)
	apply(s, KindMessagesUpsert, MessagesUpsert{
		Messages: []*Message{{Key: MessageKey{RemoteJID: "A", ID: "new"}}},
		Type:     UpsertAppend,
	})
	apply(s, KindMessagesUpsert, MessagesUpsert{
		Messages: []*Message{{Key: MessageKey{RemoteJID: "A", ID: "old"}}},
		Type:     UpsertPrepend,
	})
	got := s.LoadMessages("A", 10, nil)
	if got[0].Key.ID != "old" || got[1].Key.ID != "new" {
		t.Errorf("order = %q,%q, want old,new", got[0].Key.ID, got[1].Key.ID)
	}
}

func TestFetchImageURLCached(t *testing.T) {
	sock := &fakeSocket{url: "https://fetched"}
	s := testStore(t)
	apply(s, KindContactsUpsert, []*Contact{{ID: "c1", ImgURL: "https://cached"}})

	if got := s.FetchImageURL(context.Background(), "c1", sock); got != "https://cached" {
		t.Errorf("url = %q, want cached", got)
	}
	if sock.urlCalls != 0 {
		t.Errorf("socket called %d times for a cached url", sock.urlCalls)
	}
}

func TestFetchImageURLDelegates(t *testing.T) {
	sock := &fakeSocket{url: "https://fetched"}
	s := testStore(t)
	apply(s, KindContactsUpsert, []*Contact{{ID: "c1"}})

	if got := s.FetchImageURL(context.Background(), "c1", sock); got != "https://fetched" {
		t.Errorf("url = %q, want fetched", got)
	}
	// Written back to the contact.
	if got := s.GetContact("c1").ImgURL; got != "https://fetched" {
		t.Errorf("contact imgUrl = %q after fetch", got)
	}
}

func TestFetchImageURLFailureIsAbsent(t *testing.T) {
	sock := &fakeSocket{urlErr: errors.New("network down")}
	s := testStore(t)
	if got := s.FetchImageURL(context.Background(), "c1", sock); got != "" {
		t.Errorf("url = %q on failure, want empty", got)
	}
}

func TestFetchGroupMetadataDelegatesAndCaches(t *testing.T) {
	sock := &fakeSocket{meta: &GroupMetadata{ID: "G", Subject: "from socket"}}
	s := testStore(t)

	got := s.FetchGroupMetadata(context.Background(), "G", sock)
	if got == nil || got.Subject != "from socket" {
		t.Fatalf("metadata = %+v", got)
	}

	// Second call is served from cache even with a failing socket.
	sock.metaErr = errors.New("gone")
	sock.meta = nil
	got = s.FetchGroupMetadata(context.Background(), "G", sock)
	if got == nil || got.Subject != "from socket" {
		t.Errorf("cached metadata = %+v", got)
	}
}

func TestBindProjectsBusEvents(t *testing.T) {
	s := testStore(t)
	b := bus.New()
	s.Bind(b)
	// Binding twice is a no-op.
	s.Bind(b)

	b.Publish(bus.Event{
		Kind:      KindChatsUpsert,
		Timestamp: time.Now(),
		Payload:   []ChatUpsert{{ID: "via-bus"}},
	})

	deadline := time.After(time.Second)
	for s.GetChat("via-bus") == nil {
		select {
		case <-deadline:
			t.Fatal("chat never projected from bus")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if got := len(s.Chats()); got != 1 {
		t.Errorf("chat count = %d after double bind, want 1", got)
	}

	s.Unbind(b)
	b.Publish(bus.Event{
		Kind:      KindChatsUpsert,
		Timestamp: time.Now(),
		Payload:   []ChatUpsert{{ID: "after-unbind"}},
	})
	time.Sleep(50 * time.Millisecond)
	if s.GetChat("after-unbind") != nil {
		t.Error("event projected after unbind")
	}
}
