package cache

import (
	"fmt"
	"strings"
)

// Key layout:
// - roomKey(docID):  online members of a document room (ZSet<userId, expireAtUnix>, score=expireAt)
// - namesKey(docID): userId -> username mapping for the room (Hash)
// - cursor keys:     per-user cursor payloads, plain string with TTL
//
// The {docID:...} hash tag keeps a room and its names hash on the same
// cluster slot, which the presence sweep script needs.

const (
	keyRoomPrefix = "presence:room:{docID:"
	keyRoomSuffix = "}"

	keyRoomFmt   = keyRoomPrefix + "%s" + keyRoomSuffix // ZSet<userId, expireAtUnix>
	keyNamesFmt  = "presence:room:names:{docID:%s}"     // Hash<userId -> username>
	keyCursorFmt = "presence:cursor:%s:%d"              // String (json payload)
)

func roomKey(docID string) string  { return fmt.Sprintf(keyRoomFmt, docID) }
func namesKey(docID string) string { return fmt.Sprintf(keyNamesFmt, docID) }

// docIDFromRoomKey is the inverse of roomKey.
func docIDFromRoomKey(key string) (string, bool) {
	if !strings.HasPrefix(key, keyRoomPrefix) || !strings.HasSuffix(key, keyRoomSuffix) {
		return "", false
	}
	docID := strings.TrimSuffix(strings.TrimPrefix(key, keyRoomPrefix), keyRoomSuffix)
	return docID, docID != ""
}

func cursorKey(docID string, userID uint64) string {
	return fmt.Sprintf(keyCursorFmt, docID, userID)
}
