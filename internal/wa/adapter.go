// Package wa binds the whatsmeow socket to the replica: it wraps the
// client, translates the live event surface into the typed replica events
// published on the bus, and exposes the on-demand fetch capability.
package wa

import (
	"context"
	"fmt"

	"github.com/rodrigogs/baileys-store/internal/bus"
	"github.com/rodrigogs/baileys-store/internal/session"
	"github.com/rodrigogs/baileys-store/internal/store"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"
)

// Adapter wraps the whatsmeow client and manages the WhatsApp connection
// for one session.
type Adapter struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	bus       *bus.Bus
	logger    *zap.Logger
	session   string
}

// NewAdapter creates an adapter for the given session, opening the
// session's sqlite-backed device store.
func NewAdapter(ctx context.Context, sessionName string, b *bus.Bus, logger *zap.Logger) (*Adapter, error) {
	// Device name shown on the phone's linked devices list.
	wastore.SetOSInfo("baileys-store", [3]uint32{0, 1, 0})

	dbPath := session.SocketDBPath(sessionName)

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, nil)

	return &Adapter{
		client:    client,
		container: container,
		bus:       b,
		logger:    logger,
		session:   sessionName,
	}, nil
}

// Client returns the underlying whatsmeow client.
func (a *Adapter) Client() *whatsmeow.Client {
	return a.client
}

// IsLoggedIn reports whether the adapter has valid credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

// Connect initiates the WhatsApp connection.
func (a *Adapter) Connect() error {
	a.logger.Info("connecting to WhatsApp")
	return a.client.Connect()
}

// Disconnect terminates the WhatsApp connection.
func (a *Adapter) Disconnect() {
	a.logger.Info("disconnecting from WhatsApp")
	a.client.Disconnect()
}

// Logout invalidates the session and removes credentials.
func (a *Adapter) Logout(ctx context.Context) error {
	return a.client.Logout(ctx)
}

// RegisterEventHandler adds a handler for whatsmeow events.
func (a *Adapter) RegisterEventHandler(handler whatsmeow.EventHandler) {
	a.client.AddEventHandler(handler)
}

// SendText sends a text message to the given JID. Returns the server
// message ID.
func (a *Adapter) SendText(ctx context.Context, jid string, text string) (string, error) {
	to, err := types.ParseJID(jid)
	if err != nil {
		return "", fmt.Errorf("parse JID: %w", err)
	}
	resp, err := a.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return resp.ID, nil
}

// GetQRChannel returns the QR channel for pairing. Must be called before
// Connect.
func (a *Adapter) GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error) {
	if a.IsLoggedIn() {
		return nil, fmt.Errorf("already logged in")
	}
	ch, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("get QR channel: %w", err)
	}
	return ch, nil
}

// PhoneNumber returns the phone number from the device store, or "".
func (a *Adapter) PhoneNumber() string {
	if a.client.Store.ID == nil {
		return ""
	}
	return a.client.Store.ID.User
}

// Contacts returns the device store's address book as replica contacts.
func (a *Adapter) Contacts(ctx context.Context) []*store.Contact {
	allContacts, err := a.client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		a.logger.Warn("failed to get contacts from device store", zap.Error(err))
		return nil
	}
	contacts := make([]*store.Contact, 0, len(allContacts))
	for jid, info := range allContacts {
		contacts = append(contacts, &store.Contact{
			ID:           jid.ToNonAD().String(),
			Name:         info.FullName,
			Notify:       info.PushName,
			VerifiedName: info.BusinessName,
		})
	}
	return contacts
}

// ProfilePictureURL implements the replica's on-demand image fetch.
func (a *Adapter) ProfilePictureURL(ctx context.Context, jid string) (string, error) {
	j, err := types.ParseJID(jid)
	if err != nil {
		return "", fmt.Errorf("parse JID: %w", err)
	}
	info, err := a.client.GetProfilePictureInfo(ctx, j, nil)
	if err != nil {
		return "", fmt.Errorf("profile picture info: %w", err)
	}
	if info == nil {
		return "", nil
	}
	return info.URL, nil
}

// GroupMetadata implements the replica's on-demand group fetch.
func (a *Adapter) GroupMetadata(ctx context.Context, jid string) (*store.GroupMetadata, error) {
	j, err := types.ParseJID(jid)
	if err != nil {
		return nil, fmt.Errorf("parse JID: %w", err)
	}
	info, err := a.client.GetGroupInfo(ctx, j)
	if err != nil {
		return nil, fmt.Errorf("group info: %w", err)
	}
	if info == nil {
		return nil, nil
	}
	return groupMetadata(info), nil
}

// ResolveLID maps a LID-addressed JID back to its phone-number JID using
// the device store mapping, so one contact does not split into duplicate
// chats. Non-LID JIDs and failed lookups pass through unchanged.
func (a *Adapter) ResolveLID(ctx context.Context, jid types.JID) types.JID {
	if jid.Server != types.HiddenUserServer && jid.Server != types.HostedLIDServer {
		return jid
	}
	if a.client == nil || a.client.Store == nil || a.client.Store.LIDs == nil {
		return jid
	}
	pn, err := a.client.Store.LIDs.GetPNForLID(ctx, jid)
	if err != nil || pn.IsEmpty() {
		return jid
	}
	return pn
}

// groupMetadata converts whatsmeow group info into the replica shape.
func groupMetadata(info *types.GroupInfo) *store.GroupMetadata {
	meta := &store.GroupMetadata{
		ID:       info.JID.String(),
		Subject:  info.Name,
		Owner:    info.OwnerJID.String(),
		Creation: info.GroupCreated.Unix(),
		Desc:     info.Topic,
		Announce: info.IsAnnounce,
		Restrict: info.IsLocked,
	}
	for _, p := range info.Participants {
		meta.Participants = append(meta.Participants, store.GroupParticipant{
			ID:           p.JID.String(),
			IsAdmin:      p.IsAdmin,
			IsSuperAdmin: p.IsSuperAdmin,
		})
	}
	meta.Size = len(meta.Participants)
	return meta
}
