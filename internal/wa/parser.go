package wa

import (
	"github.com/rodrigogs/baileys-store/internal/codec"
	"github.com/rodrigogs/baileys-store/internal/store"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waHistorySync"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types/events"
)

// liveMessage converts a live whatsmeow message event into the replica
// shape. chatJID and senderJID arrive already LID-resolved.
func liveMessage(evt *events.Message, chatJID, senderJID string) *store.Message {
	participant := ""
	if evt.Info.IsGroup {
		participant = senderJID
	}
	return &store.Message{
		Key: store.MessageKey{
			RemoteJID:   chatJID,
			FromMe:      evt.Info.IsFromMe,
			ID:          evt.Info.ID,
			Participant: participant,
		},
		MessageTimestamp: evt.Info.Timestamp.Unix(),
		PushName:         evt.Info.PushName,
		Content:          messageContent(evt.Message),
	}
}

// historyChat converts a history sync conversation into a chat upsert.
// History carries concrete values for every field it has, so a false or
// zero there is meant (newer-value merge overwrites with it).
func historyChat(conv *waHistorySync.Conversation) store.ChatUpsert {
	unread := int(conv.GetUnreadCount())
	archived := conv.GetArchived()
	readOnly := conv.GetReadOnly()
	up := store.ChatUpsert{
		ID:          conv.GetID(),
		UnreadCount: &unread,
		Archived:    &archived,
		ReadOnly:    &readOnly,
	}
	if name := conv.GetName(); name != "" {
		up.Name = &name
	}
	if ts := conv.GetConversationTimestamp(); ts != 0 {
		v := int64(ts)
		up.ConversationTimestamp = &v
	}
	if pin := conv.GetPinned(); pin != 0 {
		v := int64(pin)
		up.Pinned = &v
	}
	return up
}

// historyMessage converts a history sync web message into the replica
// shape.
func historyMessage(chatJID string, wmsg *waWeb.WebMessageInfo) *store.Message {
	key := wmsg.GetKey()
	m := &store.Message{
		Key: store.MessageKey{
			RemoteJID:   chatJID,
			FromMe:      key.GetFromMe(),
			ID:          key.GetID(),
			Participant: key.GetParticipant(),
		},
		MessageTimestamp: int64(wmsg.GetMessageTimestamp()),
		PushName:         wmsg.GetPushName(),
		Content:          messageContent(wmsg.GetMessage()),
		Starred:          wmsg.GetStarred(),
	}
	if wmsg.Status != nil {
		st := store.MessageStatus(wmsg.GetStatus())
		m.Status = &st
	}
	return m
}

// messageContent mirrors the upstream message payload as an open object.
// Binary fields (thumbnails) are carried as codec buffers so they survive
// the snapshot round trip.
func messageContent(msg *waE2E.Message) map[string]any {
	if msg == nil {
		return nil
	}
	switch {
	case msg.GetConversation() != "":
		return map[string]any{"conversation": msg.GetConversation()}
	case msg.GetExtendedTextMessage() != nil:
		return map[string]any{"extendedTextMessage": map[string]any{
			"text": msg.GetExtendedTextMessage().GetText(),
		}}
	case msg.GetImageMessage() != nil:
		img := msg.GetImageMessage()
		return map[string]any{"imageMessage": map[string]any{
			"caption":       img.GetCaption(),
			"mimetype":      img.GetMimetype(),
			"jpegThumbnail": codec.Buffer(img.GetJPEGThumbnail()),
		}}
	case msg.GetVideoMessage() != nil:
		vid := msg.GetVideoMessage()
		return map[string]any{"videoMessage": map[string]any{
			"caption":       vid.GetCaption(),
			"mimetype":      vid.GetMimetype(),
			"jpegThumbnail": codec.Buffer(vid.GetJPEGThumbnail()),
		}}
	case msg.GetAudioMessage() != nil:
		return map[string]any{"audioMessage": map[string]any{
			"mimetype": msg.GetAudioMessage().GetMimetype(),
			"seconds":  msg.GetAudioMessage().GetSeconds(),
		}}
	case msg.GetDocumentMessage() != nil:
		doc := msg.GetDocumentMessage()
		return map[string]any{"documentMessage": map[string]any{
			"fileName": doc.GetFileName(),
			"mimetype": doc.GetMimetype(),
		}}
	case msg.GetStickerMessage() != nil:
		return map[string]any{"stickerMessage": map[string]any{
			"mimetype": msg.GetStickerMessage().GetMimetype(),
		}}
	case msg.GetContactMessage() != nil:
		return map[string]any{"contactMessage": map[string]any{
			"displayName": msg.GetContactMessage().GetDisplayName(),
		}}
	case msg.GetLocationMessage() != nil:
		loc := msg.GetLocationMessage()
		return map[string]any{"locationMessage": map[string]any{
			"degreesLatitude":  loc.GetDegreesLatitude(),
			"degreesLongitude": loc.GetDegreesLongitude(),
		}}
	default:
		return map[string]any{}
	}
}
