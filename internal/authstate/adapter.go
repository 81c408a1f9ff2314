package authstate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rodrigogs/baileys-store/internal/codec"
	"github.com/rodrigogs/baileys-store/internal/kv"
	"go.uber.org/zap"
)

const credsKey = "creds"

// credsTTL keeps the credential blob alive for roughly two years of
// inactivity. The unit is a time.Duration; the store converts as it needs.
const credsTTL = 2 * 365 * 24 * time.Hour

// AppStateSyncKeyType is the logical key category whose stored payloads
// are reconstructed into AppStateSyncKeyData on read.
const AppStateSyncKeyType = "app-state-sync-key"

// Adapter persists one session's credentials and signal keys in a shared
// key-value store. Every logical key is prefixed with the session key
// ("<session>:<logical>"), so sessions sharing a store stay disjoint.
//
// Store read faults are logged and surface as absent values; only write
// faults propagate.
type Adapter struct {
	store      kv.Store
	sessionKey string
	logger     *zap.Logger
	creds      *AuthCreds
}

// New builds an adapter over store for sessionKey, loading the stored
// credentials or freshly initializing them when absent or unreadable.
func New(ctx context.Context, store kv.Store, sessionKey string, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Adapter{store: store, sessionKey: sessionKey, logger: logger}

	if creds := a.readCreds(ctx); creds != nil {
		a.creds = creds
		return a, nil
	}
	creds, err := NewAuthCreds()
	if err != nil {
		return nil, fmt.Errorf("init auth creds: %w", err)
	}
	a.creds = creds
	return a, nil
}

func (a *Adapter) physKey(logical string) string {
	return a.sessionKey + ":" + logical
}

// Creds returns the in-memory credential record.
func (a *Adapter) Creds() *AuthCreds { return a.creds }

func (a *Adapter) readCreds(ctx context.Context) *AuthCreds {
	data, found, err := a.store.Get(ctx, a.physKey(credsKey))
	if err != nil {
		a.logger.Warn("creds read failed", zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}
	var creds AuthCreds
	if err := json.Unmarshal(data, &creds); err != nil {
		a.logger.Warn("creds decode failed", zap.Error(err))
		return nil
	}
	return &creds
}

// SaveCreds serializes the credential blob and writes it under the
// session's "creds" key with the long TTL.
func (a *Adapter) SaveCreds(ctx context.Context) error {
	data, err := codec.Marshal(a.creds)
	if err != nil {
		return fmt.Errorf("encode creds: %w", err)
	}
	if err := a.store.Set(ctx, a.physKey(credsKey), data, credsTTL); err != nil {
		a.logger.Error("creds write failed", zap.Error(err))
		return err
	}
	return nil
}

// ClearState wipes the underlying store. This clears the ENTIRE keyspace,
// not just this session's subset; callers wanting isolation should give
// each session its own store (or a namespaced one).
func (a *Adapter) ClearState(ctx context.Context) {
	if err := a.store.Clear(ctx); err != nil {
		a.logger.Error("auth state clear failed", zap.Error(err))
	}
}

// GetKeys returns the stored value per id for a signal key category, nil
// for ids with no stored value. For the app-state-sync-key category each
// payload is reconstructed into *AppStateSyncKeyData.
func (a *Adapter) GetKeys(ctx context.Context, category string, ids []string) map[string]any {
	out := make(map[string]any, len(ids))
	for _, id := range ids {
		out[id] = nil
		data, found, err := a.store.Get(ctx, a.physKey(category+"-"+id))
		if err != nil {
			a.logger.Warn("key read failed",
				zap.String("category", category), zap.String("id", id), zap.Error(err))
			continue
		}
		if !found {
			continue
		}
		if category == AppStateSyncKeyType {
			var key AppStateSyncKeyData
			if err := json.Unmarshal(data, &key); err != nil {
				a.logger.Warn("app state key decode failed", zap.String("id", id), zap.Error(err))
				continue
			}
			out[id] = &key
			continue
		}
		value, err := codec.Unmarshal(data)
		if err != nil {
			a.logger.Warn("key decode failed",
				zap.String("category", category), zap.String("id", id), zap.Error(err))
			continue
		}
		out[id] = value
	}
	return out
}

// SetKeys writes each (category, id, value) triple under the session's
// "<category>-<id>" key. A nil value deletes the key.
func (a *Adapter) SetKeys(ctx context.Context, data map[string]map[string]any) error {
	for category, entries := range data {
		for id, value := range entries {
			key := a.physKey(category + "-" + id)
			if value == nil {
				if _, err := a.store.Delete(ctx, key); err != nil {
					a.logger.Warn("key delete failed", zap.String("key", key), zap.Error(err))
				}
				continue
			}
			encoded, err := codec.Marshal(value)
			if err != nil {
				return fmt.Errorf("encode key %q: %w", key, err)
			}
			if err := a.store.Set(ctx, key, encoded, 0); err != nil {
				a.logger.Error("key write failed", zap.String("key", key), zap.Error(err))
				return err
			}
		}
	}
	return nil
}
