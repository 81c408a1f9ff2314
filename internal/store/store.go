package store

import (
	"context"
	"sync"

	"github.com/rodrigogs/baileys-store/internal/bus"
	"github.com/rodrigogs/baileys-store/internal/keyed"
	"go.uber.org/zap"
)

// Socket is the on-demand fetch capability the replica delegates to for
// profile pictures and group metadata. Both calls may block and may fail;
// failures are logged and produce an absent result.
type Socket interface {
	ProfilePictureURL(ctx context.Context, jid string) (string, error)
	GroupMetadata(ctx context.Context, jid string) (*GroupMetadata, error)
}

// Options configures a Store.
type Options struct {
	// PinBlindSort disables the pinned component of the chat ordering key.
	// The default (false) keeps pinned chats first.
	PinBlindSort bool
	// Socket, when set, enables the async profile-image refetch on
	// contacts.update and backs FetchImageURL/FetchGroupMetadata when the
	// caller passes no socket of its own.
	Socket Socket
	// Logger receives debug/warn lines. Nil means no logging.
	Logger *zap.Logger
}

// Store is the in-memory replica: every collection projected from the
// event stream plus the query surface over them.
//
// All mutations happen under mu from the projection path; queries take the
// read lock, so a reader always observes a whole number of projected
// events.
type Store struct {
	mu     sync.RWMutex
	logger *zap.Logger
	socket Socket

	chats             *keyed.Dict[*Chat]
	contacts          map[string]*Contact
	messages          map[string]*keyed.Dict[*Message]
	groups            map[string]*GroupMetadata
	presences         map[string]map[string]PresenceData
	labels            *keyed.Repo[Label]
	labelAssociations *keyed.Dict[LabelAssociation]
	state             ConnectionState

	bound map[*bus.Bus]func()
	wg    sync.WaitGroup
}

// New creates an empty replica.
func New(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		logger:    logger,
		socket:    opts.Socket,
		contacts:  make(map[string]*Contact),
		messages:  make(map[string]*keyed.Dict[*Message]),
		groups:    make(map[string]*GroupMetadata),
		presences: make(map[string]map[string]PresenceData),
		labels:    keyed.NewRepo[Label](),
		bound:     make(map[*bus.Bus]func()),
	}
	s.chats = keyed.NewSortedDict(chatID, chatSortKey(!opts.PinBlindSort))
	s.labelAssociations = keyed.NewSortedDict(associationKey, associationKey)
	return s
}

func chatID(c *Chat) string { return c.ID }

func chatSortKey(pinAware bool) func(*Chat) string {
	return func(c *Chat) string {
		pinned := c.Pinned != nil && *c.Pinned > 0
		var ts int64
		hasTS := c.ConversationTimestamp != nil
		if hasTS {
			ts = *c.ConversationTimestamp
		}
		return keyed.ChatKey(pinAware, pinned, c.Archived, ts, hasTS, c.ID)
	}
}

func associationKey(a LabelAssociation) string {
	if a.Type == LabelAssociationMessage {
		return keyed.MessageAssociationKey(a.ChatID, a.MessageID, a.LabelID)
	}
	return keyed.ChatAssociationKey(a.ChatID, a.LabelID)
}

func messageID(m *Message) string { return m.Key.ID }

// Bind subscribes the replica to a bus and projects its events from a
// single goroutine, which realizes the single-writer rule. Binding the
// same bus twice is a no-op.
func (s *Store) Bind(b *bus.Bus) {
	s.mu.Lock()
	if _, ok := s.bound[b]; ok {
		s.mu.Unlock()
		return
	}
	ch, unsub := b.Subscribe("", 4096)
	done := make(chan struct{})
	s.bound[b] = func() {
		unsub()
		close(done)
	}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case evt := <-ch:
				s.Apply(evt)
			case <-done:
				return
			}
		}
	}()
}

// Unbind detaches the replica from a previously bound bus.
func (s *Store) Unbind(b *bus.Bus) {
	s.mu.Lock()
	stop, ok := s.bound[b]
	if ok {
		delete(s.bound, b)
	}
	s.mu.Unlock()
	if ok {
		stop()
	}
}

// Close detaches from every bound bus and waits for the projection
// goroutines to drain.
func (s *Store) Close() {
	s.mu.Lock()
	stops := make([]func(), 0, len(s.bound))
	for b, stop := range s.bound {
		stops = append(stops, stop)
		delete(s.bound, b)
	}
	s.mu.Unlock()
	for _, stop := range stops {
		stop()
	}
	s.wg.Wait()
}

// ConnectionState returns the merged connection state.
func (s *Store) ConnectionState() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Chats returns all chats in their current order.
func (s *Store) Chats() []*Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Chat, s.chats.Len())
	copy(out, s.chats.All())
	return out
}

// GetChat returns the chat for jid, or nil.
func (s *Store) GetChat(jid string) *Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.chats.Get(jid); ok {
		return c
	}
	return nil
}

// GetContact returns the contact for jid, or nil.
func (s *Store) GetContact(jid string) *Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contacts[jid]
}

// MessageCursor addresses a position inside a chat's message sequence.
type MessageCursor struct {
	Before *MessageKey
	After  *MessageKey
}

// LoadMessages returns up to limit messages from the chat's ordered
// sequence. Without a cursor it returns the leading limit entries. A
// Before cursor returns the portion strictly before the cursor message,
// truncated to limit. An After cursor returns nothing (mirrors the
// upstream, which never yields results on that path). A cursor whose
// message is absent also yields nothing.
func (s *Store) LoadMessages(jid string, limit int, cursor *MessageCursor) []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dict, ok := s.messages[jid]
	if !ok {
		return nil
	}
	items := dict.All()
	switch {
	case cursor == nil || (cursor.Before == nil && cursor.After == nil):
		return clipMessages(items, limit)
	case cursor.After != nil:
		return nil
	default:
		idx := dict.IndexOf(cursor.Before.ID)
		if idx < 0 {
			return nil
		}
		return clipMessages(items[:idx], limit)
	}
}

func clipMessages(items []*Message, limit int) []*Message {
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	out := make([]*Message, len(items))
	copy(out, items)
	return out
}

// LoadMessage returns the message with the given id in jid's chat, or nil.
func (s *Store) LoadMessage(jid, id string) *Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if dict, ok := s.messages[jid]; ok {
		if m, ok := dict.Get(id); ok {
			return m
		}
	}
	return nil
}

// MostRecentMessage returns the last message of jid's chat, or nil.
func (s *Store) MostRecentMessage(jid string) *Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if dict, ok := s.messages[jid]; ok {
		if m, ok := dict.Last(); ok {
			return m
		}
	}
	return nil
}

// FetchImageURL returns the contact's cached image URL, delegating to the
// socket when nothing is cached. The fetched URL is written back to the
// contact.
func (s *Store) FetchImageURL(ctx context.Context, jid string, socket Socket) string {
	s.mu.RLock()
	cached := ""
	if c, ok := s.contacts[jid]; ok {
		cached = c.ImgURL
	}
	s.mu.RUnlock()
	if cached != "" {
		return cached
	}
	if socket == nil {
		socket = s.socket
	}
	if socket == nil {
		return ""
	}
	url, err := socket.ProfilePictureURL(ctx, jid)
	if err != nil {
		s.logger.Warn("profile picture fetch failed", zap.String("jid", jid), zap.Error(err))
		return ""
	}
	s.mu.Lock()
	if c, ok := s.contacts[jid]; ok {
		c.ImgURL = url
	}
	s.mu.Unlock()
	return url
}

// FetchGroupMetadata returns cached group metadata, delegating to the
// socket and caching the result when nothing is stored yet.
func (s *Store) FetchGroupMetadata(ctx context.Context, jid string, socket Socket) *GroupMetadata {
	s.mu.RLock()
	cached := s.groups[jid]
	s.mu.RUnlock()
	if cached != nil {
		return cached
	}
	if socket == nil {
		socket = s.socket
	}
	if socket == nil {
		return nil
	}
	meta, err := socket.GroupMetadata(ctx, jid)
	if err != nil {
		s.logger.Warn("group metadata fetch failed", zap.String("jid", jid), zap.Error(err))
		return nil
	}
	if meta != nil {
		s.mu.Lock()
		s.groups[jid] = meta
		s.mu.Unlock()
	}
	return meta
}

// FetchMessageReceipts returns the userReceipt list of the keyed message,
// or nil when the message is absent.
func (s *Store) FetchMessageReceipts(key MessageKey) []UserReceipt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dict, ok := s.messages[key.RemoteJID]
	if !ok {
		return nil
	}
	m, ok := dict.Get(key.ID)
	if !ok {
		return nil
	}
	return m.UserReceipt
}

// GetLabels returns all labels.
func (s *Store) GetLabels() []Label {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.labels.FindAll()
}

// GetChatLabels returns the label associations of a chat.
func (s *Store) GetChatLabels(chatID string) []LabelAssociation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []LabelAssociation
	for _, a := range s.labelAssociations.All() {
		if a.Type == LabelAssociationChat && a.ChatID == chatID {
			out = append(out, a)
		}
	}
	return out
}

// GetMessageLabels returns the label associations of a message.
func (s *Store) GetMessageLabels(messageID string) []LabelAssociation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []LabelAssociation
	for _, a := range s.labelAssociations.All() {
		if a.Type == LabelAssociationMessage && a.MessageID == messageID {
			out = append(out, a)
		}
	}
	return out
}

// GetPresence returns a copy of the presence map for a chat.
func (s *Store) GetPresence(chatID string) map[string]PresenceData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.presences[chatID]
	if !ok {
		return nil
	}
	out := make(map[string]PresenceData, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
