package evidence

import (
	"context"
	"strings"
	"testing"
)

func TestStoreValidatesSnapshot(t *testing.T) {
	a := NewArchive(nil, "evidence")

	if _, err := a.Store(context.Background(), Snapshot{GuildID: "g1", MessageID: "m1"}); err == nil {
		t.Fatalf("Store succeeded without a client")
	}
}

func TestObjectKeyLayout(t *testing.T) {
	key := objectKey(Snapshot{GuildID: "g1", ThreadID: "t1", MessageID: "m1"})
	if !strings.HasPrefix(key, "evidence/g1/t1/") {
		t.Fatalf("key = %q, want evidence/g1/t1/ prefix", key)
	}
	if !strings.HasSuffix(key, ".json") {
		t.Fatalf("key = %q, want .json suffix", key)
	}

	// Outside a thread the channel anchors the key.
	key = objectKey(Snapshot{GuildID: "g1", ChannelID: "c1", MessageID: "m1"})
	if !strings.HasPrefix(key, "evidence/g1/c1/") {
		t.Fatalf("key = %q, want evidence/g1/c1/ prefix", key)
	}
}
