package store

import (
	"context"
	"math"

	"github.com/rodrigogs/baileys-store/internal/bus"
	"github.com/rodrigogs/baileys-store/internal/keyed"
	"go.uber.org/zap"
)

// maxUnread saturates the unread counter so a hostile stream cannot wrap it.
const maxUnread = math.MaxInt32

// Apply projects one event into the replica. Projection is total: an event
// either mutates state or is dropped with a debug line, it never fails the
// replica.
func (s *Store) Apply(evt bus.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("projection recovered", zap.String("kind", evt.Kind), zap.Any("panic", r))
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch evt.Kind {
	case KindConnectionUpdate:
		if u, ok := evt.Payload.(ConnectionUpdate); ok {
			s.applyConnectionUpdate(u)
		} else {
			s.dropped(evt)
		}
	case KindHistorySet:
		if h, ok := evt.Payload.(HistorySet); ok {
			s.applyHistorySet(h)
		} else {
			s.dropped(evt)
		}
	case KindContactsUpsert:
		if list, ok := evt.Payload.([]*Contact); ok {
			for _, c := range list {
				s.mergeContact(c)
			}
		} else {
			s.dropped(evt)
		}
	case KindContactsUpdate:
		if list, ok := evt.Payload.([]ContactPatch); ok {
			for _, p := range list {
				s.applyContactPatch(p)
			}
		} else {
			s.dropped(evt)
		}
	case KindChatsUpsert:
		if list, ok := evt.Payload.([]ChatUpsert); ok {
			for _, c := range list {
				s.upsertChat(c)
			}
		} else {
			s.dropped(evt)
		}
	case KindChatsUpdate:
		if list, ok := evt.Payload.([]ChatPatch); ok {
			for _, p := range list {
				s.applyChatPatch(p)
			}
		} else {
			s.dropped(evt)
		}
	case KindChatsDelete:
		if ids, ok := evt.Payload.([]string); ok {
			for _, id := range ids {
				s.chats.RemoveID(id)
			}
		} else {
			s.dropped(evt)
		}
	case KindMessagesUpsert:
		if u, ok := evt.Payload.(MessagesUpsert); ok {
			s.upsertMessages(u.Messages, u.Type)
		} else {
			s.dropped(evt)
		}
	case KindMessagesUpdate:
		if list, ok := evt.Payload.([]MessageUpdate); ok {
			for _, u := range list {
				s.applyMessageUpdate(u)
			}
		} else {
			s.dropped(evt)
		}
	case KindMessagesDelete:
		if d, ok := evt.Payload.(MessagesDelete); ok {
			s.applyMessagesDelete(d)
		} else {
			s.dropped(evt)
		}
	case KindMessageReceiptUpdate:
		if list, ok := evt.Payload.([]MessageReceiptUpdate); ok {
			for _, u := range list {
				s.applyReceipt(u)
			}
		} else {
			s.dropped(evt)
		}
	case KindMessagesReaction:
		if list, ok := evt.Payload.([]MessageReactionUpdate); ok {
			for _, u := range list {
				s.applyReaction(u)
			}
		} else {
			s.dropped(evt)
		}
	case KindPresenceUpdate:
		if u, ok := evt.Payload.(PresenceUpdate); ok {
			s.applyPresence(u)
		} else {
			s.dropped(evt)
		}
	case KindGroupsUpsert:
		if list, ok := evt.Payload.([]*GroupMetadata); ok {
			for _, g := range list {
				if g.ID != "" {
					s.groups[g.ID] = g
				}
			}
		} else {
			s.dropped(evt)
		}
	case KindGroupsUpdate:
		if list, ok := evt.Payload.([]GroupPatch); ok {
			for _, p := range list {
				s.applyGroupPatch(p)
			}
		} else {
			s.dropped(evt)
		}
	case KindGroupParticipantsUpdate:
		if u, ok := evt.Payload.(GroupParticipantsUpdate); ok {
			s.applyParticipants(u)
		} else {
			s.dropped(evt)
		}
	case KindLabelsEdit:
		if l, ok := evt.Payload.(Label); ok {
			s.applyLabelEdit(l)
		} else {
			s.dropped(evt)
		}
	case KindLabelsAssociation:
		if u, ok := evt.Payload.(LabelAssociationUpdate); ok {
			s.applyLabelAssociation(u)
		} else {
			s.dropped(evt)
		}
	default:
		s.logger.Debug("unhandled event kind", zap.String("kind", evt.Kind))
	}
}

func (s *Store) dropped(evt bus.Event) {
	s.logger.Debug("malformed event payload", zap.String("kind", evt.Kind))
}

func (s *Store) applyConnectionUpdate(u ConnectionUpdate) {
	if u.Connection != nil {
		s.state.Connection = *u.Connection
	}
	if u.QR != nil {
		s.state.QR = *u.QR
	}
	if u.IsOnline != nil {
		online := *u.IsOnline
		s.state.IsOnline = &online
	}
	if u.LastDisconnect != nil {
		s.state.LastDisconnect = *u.LastDisconnect
	}
}

func (s *Store) applyHistorySet(h HistorySet) {
	if h.SyncType == HistorySyncOnDemand {
		return
	}
	if h.IsLatest {
		s.chats.Clear()
		s.contacts = make(map[string]*Contact)
		s.messages = make(map[string]*keyed.Dict[*Message])
	}
	for _, c := range h.Chats {
		s.upsertChat(c)
	}
	for _, c := range h.Contacts {
		s.mergeContact(c)
	}
	s.upsertMessages(h.Messages, UpsertAppend)
	s.logger.Debug("history set projected",
		zap.Int("chats", len(h.Chats)),
		zap.Int("contacts", len(h.Contacts)),
		zap.Int("messages", len(h.Messages)),
		zap.Bool("isLatest", h.IsLatest))
}

// mergeContact folds an incoming full contact into the stored one, newer
// non-empty field wins.
func (s *Store) mergeContact(c *Contact) {
	if c == nil || c.ID == "" {
		return
	}
	stored, ok := s.contacts[c.ID]
	if !ok {
		cp := *c
		s.contacts[c.ID] = &cp
		return
	}
	if c.Name != "" {
		stored.Name = c.Name
	}
	if c.Notify != "" {
		stored.Notify = c.Notify
	}
	if c.VerifiedName != "" {
		stored.VerifiedName = c.VerifiedName
	}
	if c.BusinessProfile != "" {
		stored.BusinessProfile = c.BusinessProfile
	}
	if c.Status != "" {
		stored.Status = c.Status
	}
	if c.ImgURL != "" {
		stored.ImgURL = c.ImgURL
	}
}

func (s *Store) applyContactPatch(p ContactPatch) {
	stored, ok := s.contacts[p.ID]
	if !ok {
		// No hash-based fallback configured; the update is dropped.
		s.logger.Debug("contact update for unknown id", zap.String("id", p.ID))
		return
	}
	if p.Name != nil {
		stored.Name = *p.Name
	}
	if p.Notify != nil {
		stored.Notify = *p.Notify
	}
	if p.VerifiedName != nil {
		stored.VerifiedName = *p.VerifiedName
	}
	if p.BusinessProfile != nil {
		stored.BusinessProfile = *p.BusinessProfile
	}
	if p.Status != nil {
		stored.Status = *p.Status
	}
	if p.ImgURL != nil {
		switch *p.ImgURL {
		case ImgURLRemoved:
			stored.ImgURL = ""
		case ImgURLChanged:
			if s.socket != nil {
				go s.refreshImageURL(p.ID)
			} else {
				stored.ImgURL = ""
			}
		default:
			stored.ImgURL = *p.ImgURL
		}
	}
}

// refreshImageURL runs outside the projection path; the write-back takes
// the lock again and touches only the image field, so state that evolved
// in the meantime is preserved.
func (s *Store) refreshImageURL(jid string) {
	url, err := s.socket.ProfilePictureURL(context.Background(), jid)
	if err != nil {
		s.logger.Warn("profile picture refresh failed", zap.String("jid", jid), zap.Error(err))
		return
	}
	s.mu.Lock()
	if c, ok := s.contacts[jid]; ok {
		c.ImgURL = url
	}
	s.mu.Unlock()
}

// upsertChat inserts a chat at its sorted position, or folds the incoming
// fields into the stored chat in place. The merge is newer-value-wins per
// present field, so an upsert can unarchive a chat or reset its counter.
func (s *Store) upsertChat(u ChatUpsert) {
	if u.ID == "" {
		return
	}
	stored, ok := s.chats.Get(u.ID)
	if !ok {
		stored = &Chat{ID: u.ID}
		mergeChat(stored, u)
		s.chats.Upsert(stored, keyed.Append)
		return
	}
	mergeChat(stored, u)
}

func mergeChat(c *Chat, u ChatUpsert) {
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.UnreadCount != nil {
		c.UnreadCount = *u.UnreadCount
	}
	if u.ConversationTimestamp != nil {
		c.ConversationTimestamp = u.ConversationTimestamp
	}
	if u.Pinned != nil {
		if *u.Pinned == 0 {
			c.Pinned = nil
		} else {
			c.Pinned = u.Pinned
		}
	}
	if u.Archived != nil {
		c.Archived = *u.Archived
	}
	if u.ReadOnly != nil {
		c.ReadOnly = *u.ReadOnly
	}
	if u.Muted != nil {
		c.Muted = u.Muted
	}
}

func (s *Store) applyChatPatch(p ChatPatch) {
	ok := s.chats.Patch(p.ID, func(c *Chat) *Chat {
		if p.Name != nil {
			c.Name = *p.Name
		}
		if p.UnreadCount != nil {
			// Positive counts accumulate; zero or negative replaces.
			if *p.UnreadCount > 0 {
				sum := int64(c.UnreadCount) + int64(*p.UnreadCount)
				if sum > maxUnread {
					sum = maxUnread
				}
				c.UnreadCount = int(sum)
			} else {
				c.UnreadCount = *p.UnreadCount
			}
		}
		if p.ConversationTimestamp != nil {
			c.ConversationTimestamp = p.ConversationTimestamp
		}
		if p.Pinned != nil {
			if *p.Pinned == 0 {
				c.Pinned = nil
			} else {
				c.Pinned = p.Pinned
			}
		}
		if p.Archived != nil {
			c.Archived = *p.Archived
		}
		if p.ReadOnly != nil {
			c.ReadOnly = *p.ReadOnly
		}
		if p.Muted != nil {
			c.Muted = p.Muted
		}
		return c
	})
	if !ok {
		s.logger.Debug("chat update for unknown id", zap.String("id", p.ID))
	}
}

func (s *Store) messageDict(jid string) *keyed.Dict[*Message] {
	dict, ok := s.messages[jid]
	if !ok {
		dict = keyed.NewDict(messageID)
		s.messages[jid] = dict
	}
	return dict
}

func (s *Store) upsertMessages(msgs []*Message, typ UpsertType) {
	mode := keyed.Append
	if typ == UpsertPrepend {
		mode = keyed.Prepend
	}
	for _, m := range msgs {
		if m == nil || m.Key.RemoteJID == "" || m.Key.ID == "" {
			s.logger.Debug("message upsert without key")
			continue
		}
		s.messageDict(m.Key.RemoteJID).Upsert(m, mode)

		if typ == UpsertNotify {
			if _, ok := s.chats.Get(m.Key.RemoteJID); !ok {
				chat := &Chat{ID: m.Key.RemoteJID, UnreadCount: 0}
				if m.MessageTimestamp != 0 {
					ts := m.MessageTimestamp
					chat.ConversationTimestamp = &ts
				}
				s.chats.Upsert(chat, keyed.Append)
			}
		}
	}
}

func (s *Store) applyMessageUpdate(u MessageUpdate) {
	dict, ok := s.messages[u.Key.RemoteJID]
	if !ok {
		s.logger.Debug("message update for unknown chat", zap.String("jid", u.Key.RemoteJID))
		return
	}
	m, ok := dict.Get(u.Key.ID)
	if !ok {
		s.logger.Debug("message update for unknown id", zap.String("id", u.Key.ID))
		return
	}
	p := u.Update
	if p.Status != nil {
		// Status only advances; a stale status is dropped while the rest
		// of the update still applies.
		if m.Status == nil || *p.Status > *m.Status {
			status := *p.Status
			m.Status = &status
		}
	}
	if p.Starred != nil {
		m.Starred = *p.Starred
	}
	if p.PushName != nil {
		m.PushName = *p.PushName
	}
	if p.MessageTimestamp != nil {
		m.MessageTimestamp = *p.MessageTimestamp
	}
	if p.Content != nil {
		m.Content = p.Content
	}
}

func (s *Store) applyMessagesDelete(d MessagesDelete) {
	if d.All {
		delete(s.messages, d.JID)
		return
	}
	for _, key := range d.Keys {
		if dict, ok := s.messages[key.RemoteJID]; ok {
			dict.RemoveID(key.ID)
		}
	}
}

func (s *Store) applyReceipt(u MessageReceiptUpdate) {
	dict, ok := s.messages[u.Key.RemoteJID]
	if !ok {
		return
	}
	m, ok := dict.Get(u.Key.ID)
	if !ok {
		return
	}
	for i := range m.UserReceipt {
		if m.UserReceipt[i].UserJID == u.Receipt.UserJID {
			merged := m.UserReceipt[i]
			if u.Receipt.ReceiptTime != nil {
				merged.ReceiptTime = u.Receipt.ReceiptTime
			}
			if u.Receipt.ReadTime != nil {
				merged.ReadTime = u.Receipt.ReadTime
			}
			if u.Receipt.PlayedTime != nil {
				merged.PlayedTime = u.Receipt.PlayedTime
			}
			if u.Receipt.DeliveredTime != nil {
				merged.DeliveredTime = u.Receipt.DeliveredTime
			}
			m.UserReceipt[i] = merged
			return
		}
	}
	m.UserReceipt = append(m.UserReceipt, u.Receipt)
}

func (s *Store) applyReaction(u MessageReactionUpdate) {
	dict, ok := s.messages[u.Key.RemoteJID]
	if !ok {
		return
	}
	m, ok := dict.Get(u.Key.ID)
	if !ok {
		return
	}
	kept := m.Reactions[:0]
	for _, r := range m.Reactions {
		if r.Key.ID != u.Reaction.Key.ID {
			kept = append(kept, r)
		}
	}
	m.Reactions = kept
	if u.Reaction.Text != "" {
		m.Reactions = append(m.Reactions, u.Reaction)
	}
}

func (s *Store) applyPresence(u PresenceUpdate) {
	chat, ok := s.presences[u.ID]
	if !ok {
		chat = make(map[string]PresenceData, len(u.Presences))
		s.presences[u.ID] = chat
	}
	for participant, data := range u.Presences {
		chat[participant] = data
	}
}

func (s *Store) applyGroupPatch(p GroupPatch) {
	g, ok := s.groups[p.ID]
	if !ok {
		s.logger.Debug("group update for unknown id", zap.String("id", p.ID))
		return
	}
	if p.Subject != nil {
		g.Subject = *p.Subject
	}
	if p.Owner != nil {
		g.Owner = *p.Owner
	}
	if p.Desc != nil {
		g.Desc = *p.Desc
	}
	if p.Announce != nil {
		g.Announce = *p.Announce
	}
	if p.Restrict != nil {
		g.Restrict = *p.Restrict
	}
	if p.Size != nil {
		g.Size = *p.Size
	}
}

func (s *Store) applyParticipants(u GroupParticipantsUpdate) {
	g, ok := s.groups[u.ID]
	if !ok {
		s.logger.Debug("participant update for unknown group", zap.String("id", u.ID))
		return
	}
	listed := make(map[string]bool, len(u.Participants))
	for _, id := range u.Participants {
		listed[id] = true
	}
	switch u.Action {
	case ParticipantAdd:
		present := make(map[string]bool, len(g.Participants))
		for _, p := range g.Participants {
			present[p.ID] = true
		}
		for _, id := range u.Participants {
			if !present[id] {
				g.Participants = append(g.Participants, GroupParticipant{ID: id})
				present[id] = true
			}
		}
	case ParticipantRemove:
		kept := g.Participants[:0]
		for _, p := range g.Participants {
			if !listed[p.ID] {
				kept = append(kept, p)
			}
		}
		g.Participants = kept
	case ParticipantPromote:
		for i := range g.Participants {
			if listed[g.Participants[i].ID] {
				g.Participants[i].IsAdmin = true
			}
		}
	case ParticipantDemote:
		for i := range g.Participants {
			if listed[g.Participants[i].ID] {
				g.Participants[i].IsAdmin = false
			}
		}
	default:
		s.logger.Debug("unknown participant action", zap.String("action", string(u.Action)))
	}
}

// maxLabels bounds the number of live labels, matching the upstream cap.
const maxLabels = 20

func (s *Store) applyLabelEdit(l Label) {
	if l.Deleted {
		s.labels.DeleteByID(l.ID)
		return
	}
	if _, exists := s.labels.FindByID(l.ID); !exists && s.labels.Count() >= maxLabels {
		s.logger.Debug("label cap reached, edit rejected", zap.String("id", l.ID))
		return
	}
	s.labels.UpsertByID(l.ID, l)
}

func (s *Store) applyLabelAssociation(u LabelAssociationUpdate) {
	switch u.Type {
	case "add":
		s.labelAssociations.Upsert(u.Association, keyed.Append)
	case "remove":
		s.labelAssociations.Remove(u.Association)
	default:
		s.logger.Error("unexpected label association type", zap.String("type", u.Type))
	}
}
