// Package daemon composes the session daemon: logger, bus, state machine,
// lock, auth state, replica and socket adapter, wired with fx.
package daemon

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rodrigogs/baileys-store/internal/authstate"
	"github.com/rodrigogs/baileys-store/internal/bus"
	"github.com/rodrigogs/baileys-store/internal/config"
	"github.com/rodrigogs/baileys-store/internal/kv"
	"github.com/rodrigogs/baileys-store/internal/lock"
	"github.com/rodrigogs/baileys-store/internal/logging"
	"github.com/rodrigogs/baileys-store/internal/session"
	"github.com/rodrigogs/baileys-store/internal/status"
	"github.com/rodrigogs/baileys-store/internal/store"
	"github.com/rodrigogs/baileys-store/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	Config      *config.Config
}

// Module returns the fx module for the daemon.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideKV,
			provideAuthState,
			provideReplica,
			provideAdapter,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	logger, err := logging.New(session.LogPath(p.SessionName), p.SessionName)
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("instance", uuid.NewString())), nil
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideKV(p Params, _ *lock.Lock, logger *zap.Logger) (*kv.Badger, error) {
	return kv.OpenBadger(kv.Config{
		Path:       session.KVDir(p.SessionName),
		SyncWrites: true,
		Logger:     logger.Named("badger"),
	})
}

func provideAuthState(p Params, store *kv.Badger, logger *zap.Logger) (*authstate.Adapter, error) {
	return authstate.New(context.Background(), store, p.SessionName, logger)
}

func provideReplica(p Params, adapter *wa.Adapter, logger *zap.Logger) *store.Store {
	return store.New(store.Options{
		PinBlindSort: p.Config.PinBlindSort,
		Socket:       adapter,
		Logger:       logger.Named("replica"),
	})
}

func provideAdapter(p Params, b *bus.Bus, logger *zap.Logger) (*wa.Adapter, error) {
	return wa.NewAdapter(context.Background(), p.SessionName, b, logger)
}

func registerLifecycle(
	lc fx.Lifecycle,
	p Params,
	lk *lock.Lock,
	kvStore *kv.Badger,
	auth *authstate.Adapter,
	replica *store.Store,
	adapter *wa.Adapter,
	machine *status.Machine,
	b *bus.Bus,
	logger *zap.Logger,
) {
	snapshotPath := session.SnapshotPath(p.SessionName)
	snapshotStop := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Restore the previous replica state, then start projecting.
			if err := replica.ReadFromFile(snapshotPath); err != nil {
				logger.Warn("snapshot restore failed", zap.Error(err))
			}
			replica.Bind(b)

			handler := wa.NewEventHandler(b, machine, adapter, logger)
			adapter.RegisterEventHandler(handler.Handle)

			// Persist the (possibly freshly initialized) credentials so
			// this session keeps a stable identity across restarts.
			if err := auth.SaveCreds(context.Background()); err != nil {
				logger.Warn("initial creds save failed", zap.Error(err))
			}
			logger.Info("auth state ready",
				zap.Int("registration_id", auth.Creds().RegistrationID),
				zap.String("device_id", auth.Creds().DeviceID))

			go snapshotLoop(replica, snapshotPath, p.Config.SnapshotInterval(), snapshotStop, logger)

			if adapter.IsLoggedIn() {
				_ = machine.Transition(status.Connecting)
				go func() {
					if err := adapter.Connect(); err != nil {
						logger.Error("auto-connect failed", zap.Error(err))
						_ = machine.Transition(status.Error)
					}
				}()
			} else {
				logger.Info("no credentials found, auth required")
				_ = machine.Transition(status.AuthRequired)
			}

			return nil
		},
		OnStop: func(_ context.Context) error {
			close(snapshotStop)
			adapter.Disconnect()
			replica.Close()
			if err := replica.WriteToFile(snapshotPath); err != nil {
				logger.Warn("final snapshot write failed", zap.Error(err))
			}
			if err := kvStore.Close(); err != nil {
				logger.Warn("error closing kv store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}

func snapshotLoop(replica *store.Store, path string, intervalSeconds int, stop <-chan struct{}, logger *zap.Logger) {
	ticker := time.NewTicker(time.Duration(intervalSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := replica.WriteToFile(path); err != nil {
				logger.Warn("snapshot write failed", zap.Error(err))
			}
		case <-stop:
			return
		}
	}
}
