package keyed

import "fmt"

// Sort keys are plain strings compared in reverse lexicographic order by
// Dict (higher keys sort earlier). Each component is emitted at a fixed
// width so string comparison matches the intended numeric ordering.

const tsWidth = 15

// ChatKey derives the ordering key for a chat from its pinned rank,
// archived flag, activity timestamp and id. In pin-aware mode pinned chats
// carry a high-rank prefix so they sort before everything else; in
// pin-blind mode two chats differing only in pinned status produce the same
// key. Chats without a timestamp still get a well-defined key: the id
// follows the archive component directly and is compared against the
// zero-padded timestamp, so any id starting above '0' ranks such a chat
// above the timestamped chats of its pin/archive group.
func ChatKey(pinAware, pinned, archived bool, timestamp int64, hasTimestamp bool, id string) string {
	key := ""
	if pinAware {
		if pinned {
			key = "1"
		} else {
			key = "0"
		}
	}
	if archived {
		key += "0"
	} else {
		key += "1"
	}
	if hasTimestamp {
		key += fmt.Sprintf("%0*d", tsWidth, timestamp)
	}
	return key + id
}

// ChatAssociationKey keys a chat ↔ label association.
func ChatAssociationKey(chatID, labelID string) string {
	return chatID + labelID
}

// MessageAssociationKey keys a message ↔ label association.
func MessageAssociationKey(chatID, messageID, labelID string) string {
	return chatID + messageID + labelID
}
