package cache

import "testing"

func TestDocIDFromRoomKeyRoundTrip(t *testing.T) {
	ids := []string{"doc-1", "a0b1c2", "555"}
	for _, id := range ids {
		got, ok := docIDFromRoomKey(roomKey(id))
		if !ok || got != id {
			t.Errorf("docIDFromRoomKey(roomKey(%q)) = %q, %v", id, got, ok)
		}
	}
}

func TestDocIDFromRoomKeyRejectsOtherKeys(t *testing.T) {
	bad := []string{
		namesKey("doc-1"),
		cursorKey("doc-1", 7),
		"presence:room:doc-1", // missing hash tag wrapper
		roomKey(""),
	}
	for _, k := range bad {
		if id, ok := docIDFromRoomKey(k); ok {
			t.Errorf("docIDFromRoomKey(%q) = %q, want rejection", k, id)
		}
	}
}
