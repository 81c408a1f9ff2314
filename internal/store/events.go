package store

// Event kinds consumed by the replica. The socket adapter publishes these
// on the bus; Bind subscribes to all of them.
const (
	KindConnectionUpdate        = "connection.update"
	KindHistorySet              = "messaging-history.set"
	KindContactsUpsert          = "contacts.upsert"
	KindContactsUpdate          = "contacts.update"
	KindChatsUpsert             = "chats.upsert"
	KindChatsUpdate             = "chats.update"
	KindChatsDelete             = "chats.delete"
	KindMessagesUpsert          = "messages.upsert"
	KindMessagesUpdate          = "messages.update"
	KindMessagesDelete          = "messages.delete"
	KindMessageReceiptUpdate    = "message-receipt.update"
	KindMessagesReaction        = "messages.reaction"
	KindPresenceUpdate          = "presence.update"
	KindGroupsUpsert            = "groups.upsert"
	KindGroupsUpdate            = "groups.update"
	KindGroupParticipantsUpdate = "group-participants.update"
	KindLabelsEdit              = "labels.edit"
	KindLabelsAssociation       = "labels.association"
)

// ConnectionUpdate is a partial connection-state change; nil fields are
// untouched.
type ConnectionUpdate struct {
	Connection     *string
	QR             *string
	IsOnline       *bool
	LastDisconnect *string
}

// HistorySyncType mirrors the upstream history sync variants the replica
// cares about.
type HistorySyncType int

const (
	HistorySyncInitialBootstrap HistorySyncType = iota
	HistorySyncInitialStatus
	HistorySyncFull
	HistorySyncRecent
	HistorySyncPushName
	HistorySyncNonBlockingData
	HistorySyncOnDemand
)

// ChatUpsert is one chats.upsert entry. Fields mirror Chat, carried as
// pointers so the newer-value merge touches only the fields the incoming
// record actually has — a present false/zero overwrites, an absent field
// leaves the stored value alone.
type ChatUpsert struct {
	ID                    string
	Name                  *string
	UnreadCount           *int
	ConversationTimestamp *int64
	Pinned                *int64
	Archived              *bool
	ReadOnly              *bool
	Muted                 *int64
}

// HistorySet is a history sync batch. IsLatest resets all projected
// chats/contacts/messages before the batch is applied; an on-demand sync is
// ignored entirely.
type HistorySet struct {
	Chats    []ChatUpsert
	Contacts []*Contact
	Messages []*Message
	IsLatest bool
	SyncType HistorySyncType
}

// UpsertType selects where messages.upsert places incoming messages.
type UpsertType string

const (
	UpsertAppend  UpsertType = "append"
	UpsertPrepend UpsertType = "prepend"
	UpsertNotify  UpsertType = "notify"
)

// MessagesUpsert carries new or replayed messages.
type MessagesUpsert struct {
	Messages []*Message
	Type     UpsertType
}

// MessageUpdate is a keyed partial message update.
type MessageUpdate struct {
	Key    MessageKey
	Update MessagePatch
}

// MessagesDelete removes messages by key, or every message of one chat
// when All is set.
type MessagesDelete struct {
	Keys []MessageKey
	All  bool
	JID  string
}

// MessageReceiptUpdate grafts a user receipt onto a message.
type MessageReceiptUpdate struct {
	Key     MessageKey
	Receipt UserReceipt
}

// MessageReactionUpdate grafts a reaction onto a message.
type MessageReactionUpdate struct {
	Key      MessageKey
	Reaction Reaction
}

// PresenceUpdate merges participant presences for one chat.
type PresenceUpdate struct {
	ID        string
	Presences map[string]PresenceData
}

// ParticipantAction is the group participant state-machine input.
type ParticipantAction string

const (
	ParticipantAdd     ParticipantAction = "add"
	ParticipantRemove  ParticipantAction = "remove"
	ParticipantPromote ParticipantAction = "promote"
	ParticipantDemote  ParticipantAction = "demote"
)

// GroupParticipantsUpdate mutates a group's participant list.
type GroupParticipantsUpdate struct {
	ID           string
	Author       string
	Participants []string
	Action       ParticipantAction
}

// LabelAssociationUpdate adds or removes a label association.
type LabelAssociationUpdate struct {
	Type        string // "add" or "remove"
	Association LabelAssociation
}
