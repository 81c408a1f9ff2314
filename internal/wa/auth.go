package wa

import (
	"context"
	"time"

	"github.com/rodrigogs/baileys-store/internal/bus"
	"github.com/rodrigogs/baileys-store/internal/store"
)

// AuthEventType enumerates auth event types.
type AuthEventType string

const (
	AuthEventQRCode        AuthEventType = "qr_code"
	AuthEventAuthenticated AuthEventType = "authenticated"
	AuthEventAuthFailed    AuthEventType = "auth_failed"
	AuthEventTimeout       AuthEventType = "timeout"
)

// AuthEvent represents an auth lifecycle event.
type AuthEvent struct {
	Type    AuthEventType
	QRCode  string
	Message string
}

// StartQRAuth begins the QR auth flow. QR codes and failed outcomes
// (connect error, timeout, pairing error) are also published as
// connection.update events, so the replica's connection state carries the
// current code; a successful pairing publishes nothing here. The caller should read the returned channel
// until it closes.
func (a *Adapter) StartQRAuth(ctx context.Context) (<-chan AuthEvent, error) {
	qrChan, err := a.GetQRChannel(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan AuthEvent, 10)

	go func() {
		defer close(out)

		// Connect must be called after GetQRChannel.
		if err := a.Connect(); err != nil {
			out <- AuthEvent{Type: AuthEventAuthFailed, Message: err.Error()}
			a.publishClose(err.Error())
			return
		}

		for item := range qrChan {
			switch item.Event {
			case "code":
				out <- AuthEvent{Type: AuthEventQRCode, QRCode: item.Code}
				qr := item.Code
				a.bus.Publish(bus.Event{
					Kind:      store.KindConnectionUpdate,
					Timestamp: time.Now(),
					Payload:   store.ConnectionUpdate{QR: &qr},
				})
			case "success":
				out <- AuthEvent{Type: AuthEventAuthenticated, Message: "authenticated"}
				return
			case "timeout":
				out <- AuthEvent{Type: AuthEventTimeout, Message: "QR code timeout"}
				a.publishClose("qr timeout")
				return
			default:
				if item.Error != nil {
					out <- AuthEvent{Type: AuthEventAuthFailed, Message: item.Error.Error()}
					a.publishClose(item.Error.Error())
					return
				}
			}
		}
	}()

	return out, nil
}

func (a *Adapter) publishClose(reason string) {
	conn := store.ConnectionClose
	a.bus.Publish(bus.Event{
		Kind:      store.KindConnectionUpdate,
		Timestamp: time.Now(),
		Payload:   store.ConnectionUpdate{Connection: &conn, LastDisconnect: &reason},
	})
}
