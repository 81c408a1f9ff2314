// Package authstate persists the signalling credentials the upstream
// socket consumes, behind a generic key-value store with session-prefixed
// keys.
package authstate

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/rodrigogs/baileys-store/internal/codec"
	"golang.org/x/crypto/curve25519"
)

// KeyPair is a curve25519 key pair.
type KeyPair struct {
	Public  codec.Buffer `json:"public"`
	Private codec.Buffer `json:"private"`
}

// SignedKeyPair is a pre-key signed by the identity key. The signature is
// produced by the socket during registration; a freshly initialized state
// carries it empty.
type SignedKeyPair struct {
	KeyPair   KeyPair      `json:"keyPair"`
	KeyID     int          `json:"keyId"`
	Signature codec.Buffer `json:"signature,omitempty"`
}

// AuthCreds is the credential blob persisted under the "creds" key. The
// replica treats it as opaque material; only the socket interprets it.
type AuthCreds struct {
	NoiseKey                 KeyPair        `json:"noiseKey"`
	PairingEphemeralKeyPair  KeyPair        `json:"pairingEphemeralKeyPair"`
	SignedIdentityKey        KeyPair        `json:"signedIdentityKey"`
	SignedPreKey             SignedKeyPair  `json:"signedPreKey"`
	RegistrationID           int            `json:"registrationId"`
	AdvSecretKey             codec.Buffer   `json:"advSecretKey"`
	NextPreKeyID             int            `json:"nextPreKeyId"`
	FirstUnuploadedPreKeyID  int            `json:"firstUnuploadedPreKeyId"`
	AccountSyncCounter       int            `json:"accountSyncCounter"`
	AccountSettings          map[string]any `json:"accountSettings,omitempty"`
	BackupToken              codec.Buffer   `json:"backupToken,omitempty"`
	DeviceID                 string         `json:"deviceId,omitempty"`
	Me                       map[string]any `json:"me,omitempty"`
	Account                  map[string]any `json:"account,omitempty"`
	Platform                 string         `json:"platform,omitempty"`
	Registered               bool           `json:"registered"`
	ProcessedHistoryMessages []any          `json:"processedHistoryMessages,omitempty"`
}

// NewAuthCreds initializes a fresh credential record with random key
// material, the shape the socket expects before pairing.
func NewAuthCreds() (*AuthCreds, error) {
	noise, err := newKeyPair()
	if err != nil {
		return nil, err
	}
	ephemeral, err := newKeyPair()
	if err != nil {
		return nil, err
	}
	identity, err := newKeyPair()
	if err != nil {
		return nil, err
	}
	preKey, err := newKeyPair()
	if err != nil {
		return nil, err
	}
	registrationID, err := randomInt(16380)
	if err != nil {
		return nil, err
	}
	adv := make([]byte, 32)
	if _, err := rand.Read(adv); err != nil {
		return nil, fmt.Errorf("adv secret: %w", err)
	}
	backup := make([]byte, 20)
	if _, err := rand.Read(backup); err != nil {
		return nil, fmt.Errorf("backup token: %w", err)
	}
	return &AuthCreds{
		NoiseKey:                noise,
		PairingEphemeralKeyPair: ephemeral,
		SignedIdentityKey:       identity,
		SignedPreKey:            SignedKeyPair{KeyPair: preKey, KeyID: 1},
		RegistrationID:          registrationID + 1,
		AdvSecretKey:            adv,
		NextPreKeyID:            1,
		FirstUnuploadedPreKeyID: 1,
		BackupToken:             backup,
		DeviceID:                uuid.NewString(),
	}, nil
}

func newKeyPair() (KeyPair, error) {
	priv := make([]byte, curve25519.ScalarSize)
	if _, err := rand.Read(priv); err != nil {
		return KeyPair{}, fmt.Errorf("key pair: %w", err)
	}
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, fmt.Errorf("key pair: %w", err)
	}
	return KeyPair{Public: pub, Private: priv}, nil
}

func randomInt(max int64) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(max))
	if err != nil {
		return 0, fmt.Errorf("registration id: %w", err)
	}
	return int(n.Int64()), nil
}

// AppStateSyncKeyFingerprint identifies an app-state sync key version.
type AppStateSyncKeyFingerprint struct {
	RawID         int   `json:"rawId"`
	CurrentIndex  int   `json:"currentIndex"`
	DeviceIndexes []int `json:"deviceIndexes"`
}

// AppStateSyncKeyData is the reconstructed payload returned for the
// "app-state-sync-key" logical type.
type AppStateSyncKeyData struct {
	KeyData     codec.Buffer               `json:"keyData"`
	Fingerprint AppStateSyncKeyFingerprint `json:"fingerprint"`
	Timestamp   int64                      `json:"timestamp"`
}
