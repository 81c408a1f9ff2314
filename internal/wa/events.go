package wa

import (
	"context"
	"time"

	"github.com/rodrigogs/baileys-store/internal/bus"
	"github.com/rodrigogs/baileys-store/internal/status"
	"github.com/rodrigogs/baileys-store/internal/store"
	"go.mau.fi/whatsmeow/proto/waHistorySync"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

// JIDResolver maps LID-addressed JIDs back to phone-number JIDs. The
// Adapter implements it over the device store.
type JIDResolver interface {
	ResolveLID(ctx context.Context, jid types.JID) types.JID
}

// EventHandler translates whatsmeow events into the replica's typed events
// and drives the connection state machine. It does not touch the replica
// directly; the replica subscribes to the bus independently. The
// user-addressed JIDs of live events go through the resolver (when one is
// configured) so LID and phone-number traffic land on the same chat and
// contact. History-sync chat, message and push-name ids and group-info
// authors are published as received, without resolution.
type EventHandler struct {
	bus      *bus.Bus
	machine  *status.Machine
	resolver JIDResolver
	logger   *zap.Logger
}

// NewEventHandler creates a handler publishing on b. resolver may be nil.
func NewEventHandler(b *bus.Bus, machine *status.Machine, resolver JIDResolver, logger *zap.Logger) *EventHandler {
	return &EventHandler{bus: b, machine: machine, resolver: resolver, logger: logger}
}

func (h *EventHandler) publish(kind string, payload any) {
	h.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

// jid resolves LID addressing and renders the JID.
func (h *EventHandler) jid(j types.JID) string {
	if h.resolver != nil {
		j = h.resolver.ResolveLID(context.Background(), j)
	}
	return j.String()
}

// contactJID is jid without the agent/device suffix, the form contacts are
// keyed by.
func (h *EventHandler) contactJID(j types.JID) string {
	if h.resolver != nil {
		j = h.resolver.ResolveLID(context.Background(), j)
	}
	return j.ToNonAD().String()
}

// Handle is the whatsmeow event handler entrypoint.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		h.handleMessage(evt)
	case *events.HistorySync:
		h.handleHistorySync(evt)
	case *events.Receipt:
		h.handleReceipt(evt)
	case *events.Presence:
		h.handlePresence(evt)
	case *events.ChatPresence:
		h.handleChatPresence(evt)
	case *events.PushName:
		h.publish(store.KindContactsUpsert, []*store.Contact{
			{ID: h.contactJID(evt.JID), Notify: evt.NewPushName},
		})
	case *events.Contact:
		h.handleContact(evt)
	case *events.Picture:
		h.handlePicture(evt)
	case *events.GroupInfo:
		h.handleGroupInfo(evt)
	case *events.JoinedGroup:
		h.publish(store.KindGroupsUpsert, []*store.GroupMetadata{groupMetadata(&evt.GroupInfo)})
	case *events.Archive:
		archived := evt.Action.GetArchived()
		h.publish(store.KindChatsUpdate, []store.ChatPatch{
			{ID: h.jid(evt.JID), Archived: &archived},
		})
	case *events.Pin:
		h.handlePin(evt)
	case *events.Mute:
		h.handleMute(evt)
	case *events.MarkChatAsRead:
		h.handleMarkChatAsRead(evt)
	case *events.DeleteChat:
		h.publish(store.KindChatsDelete, []string{h.jid(evt.JID)})
	case *events.ClearChat:
		h.publish(store.KindMessagesDelete, store.MessagesDelete{All: true, JID: h.jid(evt.JID)})
	case *events.DeleteForMe:
		h.publish(store.KindMessagesDelete, store.MessagesDelete{Keys: []store.MessageKey{{
			RemoteJID: h.jid(evt.ChatJID),
			FromMe:    evt.IsFromMe,
			ID:        evt.MessageID,
		}}})
	case *events.Star:
		starred := evt.Action.GetStarred()
		h.publish(store.KindMessagesUpdate, []store.MessageUpdate{{
			Key: store.MessageKey{
				RemoteJID: h.jid(evt.ChatJID),
				FromMe:    evt.IsFromMe,
				ID:        evt.MessageID,
			},
			Update: store.MessagePatch{Starred: &starred},
		}})
	case *events.LabelEdit:
		h.publish(store.KindLabelsEdit, store.Label{
			ID:      evt.LabelID,
			Name:    evt.Action.GetName(),
			Color:   int(evt.Action.GetColor()),
			Deleted: evt.Action.GetDeleted(),
		})
	case *events.LabelAssociationChat:
		h.publish(store.KindLabelsAssociation, store.LabelAssociationUpdate{
			Type: associationAction(evt.Action.GetLabeled()),
			Association: store.LabelAssociation{
				Type:    store.LabelAssociationChat,
				ChatID:  h.jid(evt.JID),
				LabelID: evt.LabelID,
			},
		})
	case *events.LabelAssociationMessage:
		h.publish(store.KindLabelsAssociation, store.LabelAssociationUpdate{
			Type: associationAction(evt.Action.GetLabeled()),
			Association: store.LabelAssociation{
				Type:      store.LabelAssociationMessage,
				ChatID:    h.jid(evt.JID),
				MessageID: evt.MessageID,
				LabelID:   evt.LabelID,
			},
		})
	case *events.Connected:
		h.handleConnected()
	case *events.Disconnected:
		h.handleDisconnected()
	case *events.LoggedOut:
		h.handleLoggedOut(evt)
	}
}

func associationAction(labeled bool) string {
	if labeled {
		return "add"
	}
	return "remove"
}

func (h *EventHandler) handleMessage(evt *events.Message) {
	if h.machine.Current() == status.Syncing {
		_ = h.machine.Transition(status.Ready)
	}
	h.publish(store.KindMessagesUpsert, store.MessagesUpsert{
		Messages: []*store.Message{
			liveMessage(evt, h.jid(evt.Info.Chat), h.jid(evt.Info.Sender)),
		},
		Type: store.UpsertNotify,
	})
}

func (h *EventHandler) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}
	syncType := historySyncType(data.GetSyncType())
	set := store.HistorySet{
		SyncType: syncType,
		IsLatest: syncType == store.HistorySyncInitialBootstrap,
	}

	for _, conv := range data.GetConversations() {
		chatJID := conv.GetID()
		set.Chats = append(set.Chats, historyChat(conv))
		for _, hm := range conv.GetMessages() {
			wmsg := hm.GetMessage()
			if wmsg == nil || wmsg.GetMessage() == nil {
				continue
			}
			set.Messages = append(set.Messages, historyMessage(chatJID, wmsg))
		}
	}
	for _, pn := range data.GetPushnames() {
		set.Contacts = append(set.Contacts, &store.Contact{
			ID:     pn.GetID(),
			Notify: pn.GetPushname(),
		})
	}

	if len(set.Chats) > 0 || len(set.Contacts) > 0 || len(set.Messages) > 0 {
		h.publish(store.KindHistorySet, set)
	}
}

func historySyncType(t waHistorySync.HistorySync_HistorySyncType) store.HistorySyncType {
	switch t {
	case waHistorySync.HistorySync_INITIAL_BOOTSTRAP:
		return store.HistorySyncInitialBootstrap
	case waHistorySync.HistorySync_INITIAL_STATUS_V3:
		return store.HistorySyncInitialStatus
	case waHistorySync.HistorySync_FULL:
		return store.HistorySyncFull
	case waHistorySync.HistorySync_RECENT:
		return store.HistorySyncRecent
	case waHistorySync.HistorySync_PUSH_NAME:
		return store.HistorySyncPushName
	case waHistorySync.HistorySync_ON_DEMAND:
		return store.HistorySyncOnDemand
	default:
		return store.HistorySyncNonBlockingData
	}
}

// handleReceipt maps delivery/read receipts onto message status updates
// and per-user receipt entries.
func (h *EventHandler) handleReceipt(evt *events.Receipt) {
	chat := h.jid(evt.MessageSource.Chat)
	sender := h.jid(evt.MessageSource.Sender)
	ts := evt.Timestamp.Unix()

	receiptStatus, ok := receiptStatus(evt.Type)
	if !ok {
		return
	}

	updates := make([]store.MessageUpdate, 0, len(evt.MessageIDs))
	receipts := make([]store.MessageReceiptUpdate, 0, len(evt.MessageIDs))
	for _, id := range evt.MessageIDs {
		key := store.MessageKey{RemoteJID: chat, FromMe: true, ID: id}
		st := receiptStatus
		updates = append(updates, store.MessageUpdate{
			Key:    key,
			Update: store.MessagePatch{Status: &st},
		})
		receipt := store.UserReceipt{UserJID: sender}
		switch receiptStatus {
		case store.StatusPlayed:
			t := ts
			receipt.PlayedTime = &t
		case store.StatusRead:
			t := ts
			receipt.ReadTime = &t
		default:
			t := ts
			receipt.DeliveredTime = &t
		}
		receipts = append(receipts, store.MessageReceiptUpdate{Key: key, Receipt: receipt})
	}
	h.publish(store.KindMessagesUpdate, updates)
	h.publish(store.KindMessageReceiptUpdate, receipts)
}

func receiptStatus(t types.ReceiptType) (store.MessageStatus, bool) {
	switch t {
	case types.ReceiptTypeDelivered:
		return store.StatusDeliveryAck, true
	case types.ReceiptTypeRead, types.ReceiptTypeReadSelf:
		return store.StatusRead, true
	case types.ReceiptTypePlayed:
		return store.StatusPlayed, true
	default:
		return 0, false
	}
}

func (h *EventHandler) handlePresence(evt *events.Presence) {
	jid := h.jid(evt.From)
	presence := "available"
	if evt.Unavailable {
		presence = "unavailable"
	}
	data := store.PresenceData{LastKnownPresence: presence}
	if !evt.LastSeen.IsZero() {
		ts := evt.LastSeen.Unix()
		data.LastSeen = &ts
	}
	h.publish(store.KindPresenceUpdate, store.PresenceUpdate{
		ID:        jid,
		Presences: map[string]store.PresenceData{jid: data},
	})
}

func (h *EventHandler) handleChatPresence(evt *events.ChatPresence) {
	state := "paused"
	if evt.State == types.ChatPresenceComposing {
		state = "composing"
	}
	h.publish(store.KindPresenceUpdate, store.PresenceUpdate{
		ID: h.jid(evt.MessageSource.Chat),
		Presences: map[string]store.PresenceData{
			h.jid(evt.MessageSource.Sender): {LastKnownPresence: state},
		},
	})
}

func (h *EventHandler) handleContact(evt *events.Contact) {
	name := evt.Action.GetFullName()
	if name == "" {
		name = evt.Action.GetFirstName()
	}
	h.publish(store.KindContactsUpsert, []*store.Contact{
		{ID: h.contactJID(evt.JID), Name: name},
	})
}

// handlePicture forwards profile picture changes as the imgUrl sentinels
// the replica resolves (refetching through the socket when configured).
func (h *EventHandler) handlePicture(evt *events.Picture) {
	sentinel := store.ImgURLChanged
	if evt.Remove {
		sentinel = store.ImgURLRemoved
	}
	h.publish(store.KindContactsUpdate, []store.ContactPatch{
		{ID: h.contactJID(evt.JID), ImgURL: &sentinel},
	})
}

func (h *EventHandler) handleGroupInfo(evt *events.GroupInfo) {
	jid := evt.JID.String()
	if evt.Name != nil {
		subject := evt.Name.Name
		h.publish(store.KindGroupsUpdate, []store.GroupPatch{{ID: jid, Subject: &subject}})
	}
	if evt.Topic != nil {
		desc := evt.Topic.Topic
		h.publish(store.KindGroupsUpdate, []store.GroupPatch{{ID: jid, Desc: &desc}})
	}
	author := ""
	if evt.Sender != nil {
		author = evt.Sender.String()
	}
	h.participantsUpdate(jid, author, evt.Join, store.ParticipantAdd)
	h.participantsUpdate(jid, author, evt.Leave, store.ParticipantRemove)
	h.participantsUpdate(jid, author, evt.Promote, store.ParticipantPromote)
	h.participantsUpdate(jid, author, evt.Demote, store.ParticipantDemote)
}

func (h *EventHandler) participantsUpdate(jid, author string, jids []types.JID, action store.ParticipantAction) {
	if len(jids) == 0 {
		return
	}
	ids := make([]string, len(jids))
	for i, j := range jids {
		ids[i] = h.jid(j)
	}
	h.publish(store.KindGroupParticipantsUpdate, store.GroupParticipantsUpdate{
		ID:           jid,
		Author:       author,
		Participants: ids,
		Action:       action,
	})
}

func (h *EventHandler) handlePin(evt *events.Pin) {
	var rank int64
	if evt.Action.GetPinned() {
		rank = evt.Timestamp.Unix()
	}
	h.publish(store.KindChatsUpdate, []store.ChatPatch{
		{ID: h.jid(evt.JID), Pinned: &rank},
	})
}

func (h *EventHandler) handleMute(evt *events.Mute) {
	var until int64
	if evt.Action.GetMuted() {
		until = evt.Action.GetMuteEndTimestamp()
	}
	h.publish(store.KindChatsUpdate, []store.ChatPatch{
		{ID: h.jid(evt.JID), Muted: &until},
	})
}

func (h *EventHandler) handleMarkChatAsRead(evt *events.MarkChatAsRead) {
	// Read resets the counter; mark-as-unread sets the unread marker.
	count := -1
	if evt.Action.GetRead() {
		count = 0
	}
	h.publish(store.KindChatsUpdate, []store.ChatPatch{
		{ID: h.jid(evt.JID), UnreadCount: &count},
	})
}

func (h *EventHandler) handleConnected() {
	h.logger.Info("WhatsApp connected")
	current := h.machine.Current()
	if current == status.AuthRequired || current == status.Reconnecting {
		_ = h.machine.Transition(status.Connecting)
	}
	_ = h.machine.Transition(status.Syncing)
	conn := store.ConnectionOpen
	online := true
	h.publish(store.KindConnectionUpdate, store.ConnectionUpdate{
		Connection: &conn,
		IsOnline:   &online,
	})
}

func (h *EventHandler) handleDisconnected() {
	h.logger.Warn("WhatsApp disconnected")
	_ = h.machine.Transition(status.Reconnecting)
	conn := store.ConnectionConnecting
	online := false
	h.publish(store.KindConnectionUpdate, store.ConnectionUpdate{
		Connection: &conn,
		IsOnline:   &online,
	})
}

func (h *EventHandler) handleLoggedOut(evt *events.LoggedOut) {
	h.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
	_ = h.machine.Transition(status.AuthRequired)
	conn := store.ConnectionClose
	online := false
	reason := evt.Reason.String()
	h.publish(store.KindConnectionUpdate, store.ConnectionUpdate{
		Connection:     &conn,
		IsOnline:       &online,
		LastDisconnect: &reason,
	})
}
