package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rodrigogs/baileys-store/internal/codec"
	"github.com/rodrigogs/baileys-store/internal/keyed"
)

// snapshot is the persisted shape of the replica. Presences and the
// connection state are transient and never written.
type snapshot struct {
	Chats             []*Chat               `json:"chats"`
	Contacts          map[string]*Contact   `json:"contacts"`
	Messages          map[string][]*Message `json:"messages"`
	Labels            map[string]Label      `json:"labels"`
	LabelAssociations []LabelAssociation    `json:"labelAssociations"`
}

// ToJSON serializes the replica into the snapshot artifact. Binary values
// inside message content travel in the Buffer wire form.
func (s *Store) ToJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := make(map[string][]*Message, len(s.messages))
	for jid, dict := range s.messages {
		msgs[jid] = dict.All()
	}
	snap := snapshot{
		Chats:             s.chats.All(),
		Contacts:          s.contacts,
		Messages:          msgs,
		Labels:            s.labels.Map(),
		LabelAssociations: s.labelAssociations.All(),
	}
	if snap.Chats == nil {
		snap.Chats = []*Chat{}
	}
	if snap.LabelAssociations == nil {
		snap.LabelAssociations = []LabelAssociation{}
	}
	return codec.Marshal(snap)
}

// FromJSON restores the replica from a snapshot artifact. Missing
// top-level fields are treated as empty; unknown fields are ignored. The
// labels field is accepted in both the map and the legacy array form.
func (s *Store) FromJSON(data []byte) error {
	var wire struct {
		Chats             []*Chat               `json:"chats"`
		Contacts          map[string]*Contact   `json:"contacts"`
		Messages          map[string][]*Message `json:"messages"`
		Labels            json.RawMessage       `json:"labels"`
		LabelAssociations []LabelAssociation    `json:"labelAssociations"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}

	labels, err := parseLabels(wire.Labels)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.chats.Load(wire.Chats)
	s.contacts = make(map[string]*Contact, len(wire.Contacts))
	for id, c := range wire.Contacts {
		if c != nil {
			s.contacts[id] = c
		}
	}
	s.messages = make(map[string]*keyed.Dict[*Message], len(wire.Messages))
	for jid, list := range wire.Messages {
		dict := keyed.NewDict(messageID)
		for _, m := range list {
			if m != nil && m.Content != nil {
				if revived, ok := codec.Revive(m.Content).(map[string]any); ok {
					m.Content = revived
				}
			}
		}
		dict.Load(list)
		s.messages[jid] = dict
	}
	s.labels.Replace(labels)
	s.labelAssociations.Load(wire.LabelAssociations)
	return nil
}

func parseLabels(raw json.RawMessage) (map[string]Label, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var asMap map[string]Label
	if err := json.Unmarshal(raw, &asMap); err == nil {
		return asMap, nil
	}
	var asList []Label
	if err := json.Unmarshal(raw, &asList); err != nil {
		return nil, fmt.Errorf("parse snapshot labels: %w", err)
	}
	out := make(map[string]Label, len(asList))
	for _, l := range asList {
		out[l.ID] = l
	}
	return out, nil
}

// WriteToFile persists the snapshot artifact at path.
func (s *Store) WriteToFile(path string) error {
	data, err := s.ToJSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// ReadFromFile restores the replica from the snapshot at path. A missing
// file is a no-op.
func (s *Store) ReadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read snapshot: %w", err)
	}
	return s.FromJSON(data)
}
