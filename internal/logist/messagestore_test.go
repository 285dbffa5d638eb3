package logist

import (
	"testing"
	"time"
)

func msg(id string, clientID string) Message {
	return Message{
		ID:        id,
		ClientID:  clientID,
		OrderID:   10,
		UserID:    1,
		Message:   "text " + id,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func msgs(ids ...string) []Message {
	out := make([]Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, msg(id, ""))
	}
	return out
}

func assertIDs(t *testing.T, got []Message, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("position %d: expected id %q, got %q", i, want[i], got[i].ID)
		}
	}
}

func TestMessageStoreMergeAppendsSuffixOnly(t *testing.T) {
	store := NewMessageStore(10, nil)
	store.Merge(msgs("101", "102", "103"), false)

	store.Merge(msgs("101", "102", "103", "104", "105"), true)

	assertIDs(t, store.All(), "101", "102", "103", "104", "105")
}

func TestMessageStoreMergeIsIdempotent(t *testing.T) {
	store := NewMessageStore(10, nil)
	store.Merge(msgs("101", "102", "103"), false)

	fresh := msgs("101", "102", "103", "104")
	store.Merge(fresh, true)
	store.Merge(fresh, true)

	assertIDs(t, store.All(), "101", "102", "103", "104")
}

func TestMessageStoreMergeUnchangedIsNoop(t *testing.T) {
	store := NewMessageStore(10, nil)
	store.Merge(msgs("101", "102"), false)

	fired := 0
	store.OnChange(func() { fired++ })
	store.Merge(msgs("101", "102"), true)

	if fired != 0 {
		t.Errorf("expected no change notification, got %d", fired)
	}
	assertIDs(t, store.All(), "101", "102")
}

func TestMessageStoreMergeKeepsOptimisticTail(t *testing.T) {
	store := NewMessageStore(10, nil)
	store.Merge(msgs("101", "102"), false)
	store.Upsert(msg("tmp-abc", ""))

	// The anchor is 102, the newest server id; the temp entry is skipped.
	store.Merge(msgs("101", "102", "103"), true)

	assertIDs(t, store.All(), "101", "102", "tmp-abc", "103")
}

func TestMessageStoreMergeMissingAnchorReplaces(t *testing.T) {
	store := NewMessageStore(10, nil)
	store.Merge(msgs("101", "102", "103"), false)

	store.Merge(msgs("201", "202"), true)

	assertIDs(t, store.All(), "201", "202")
}

func TestMessageStoreMergeNonSilentReplaces(t *testing.T) {
	store := NewMessageStore(10, nil)
	store.Merge(msgs("101", "102", "103"), false)
	store.Upsert(msg("tmp-abc", ""))

	store.Merge(msgs("101", "102"), false)

	assertIDs(t, store.All(), "101", "102")
	if !store.Loaded() {
		t.Error("store should be loaded after a non-silent merge")
	}
}

func TestMessageStoreUpsert(t *testing.T) {
	t.Run("replaces optimistic entry by client id", func(t *testing.T) {
		store := NewMessageStore(10, nil)
		store.Merge(msgs("101"), false)
		store.Upsert(msg("tmp-abc", ""))

		echo := msg("102", "tmp-abc")
		store.Upsert(echo)

		assertIDs(t, store.All(), "101", "102")
	})

	t.Run("same id replaces in place", func(t *testing.T) {
		store := NewMessageStore(10, nil)
		store.Merge(msgs("101", "102"), false)

		updated := msg("101", "")
		updated.Message = "edited"
		store.Upsert(updated)

		got := store.All()
		assertIDs(t, got, "101", "102")
		if got[0].Message != "edited" {
			t.Errorf("expected edited body, got %q", got[0].Message)
		}
	})

	t.Run("applying twice does not duplicate", func(t *testing.T) {
		store := NewMessageStore(10, nil)
		store.Merge(msgs("101"), false)

		store.Upsert(msg("102", ""))
		store.Upsert(msg("102", ""))

		assertIDs(t, store.All(), "101", "102")
	})

	t.Run("unknown id appends", func(t *testing.T) {
		store := NewMessageStore(10, nil)
		store.Merge(msgs("101"), false)

		store.Upsert(msg("102", ""))

		assertIDs(t, store.All(), "101", "102")
	})
}
