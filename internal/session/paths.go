// Package session owns the on-disk layout and naming rules for sessions.
package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.bstore.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".bstore")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "sessions", name)
}

// SocketDBPath returns the whatsmeow session.db path.
func SocketDBPath(name string) string {
	return filepath.Join(Dir(name), "session.db")
}

// KVDir returns the badger directory backing the auth state.
func KVDir(name string) string {
	return filepath.Join(Dir(name), "kv")
}

// SnapshotPath returns the replica snapshot artifact path.
func SnapshotPath(name string) string {
	return filepath.Join(Dir(name), "snapshot.json")
}

// LogDir returns the log directory for a session.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "bstored.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the session directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		KVDir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
