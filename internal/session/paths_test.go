package session

import (
	"strings"
	"testing"
)

func TestPathsAreSessionScoped(t *testing.T) {
	paths := map[string]string{
		"socket db": SocketDBPath("mysess"),
		"kv dir":    KVDir("mysess"),
		"snapshot":  SnapshotPath("mysess"),
		"log":       LogPath("mysess"),
	}
	for what, p := range paths {
		if !strings.Contains(p, "sessions/mysess") {
			t.Errorf("%s path %q not under the session dir", what, p)
		}
		if !strings.Contains(p, ".bstore") {
			t.Errorf("%s path %q not under the base dir", what, p)
		}
	}
}

func TestDistinctSessionsDistinctPaths(t *testing.T) {
	if SnapshotPath("a") == SnapshotPath("b") {
		t.Error("two sessions share a snapshot path")
	}
	if KVDir("a") == KVDir("b") {
		t.Error("two sessions share a kv dir")
	}
}
