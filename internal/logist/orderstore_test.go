package logist

import "testing"

func TestOrderStoreActiveFiltersTerminalStatuses(t *testing.T) {
	store := NewOrderStore(nil)
	store.Replace([]Order{
		{ID: 1, Status: OrderPending},
		{ID: 2, Status: OrderCompleted},
		{ID: 3, Status: OrderInProgress},
		{ID: 4, Status: OrderCancelled},
	})

	active := store.Active()
	if len(active) != 2 || active[0].ID != 1 || active[1].ID != 3 {
		t.Fatalf("expected orders 1 and 3 active, got %+v", active)
	}

	// Terminal orders are filtered, not deleted.
	if got := store.All(); len(got) != 4 {
		t.Errorf("expected the full list retained, got %d", len(got))
	}
}

func TestOrderStoreReplaceIsWholesale(t *testing.T) {
	store := NewOrderStore(nil)
	if store.Loaded() {
		t.Fatal("fresh store must not report loaded")
	}

	store.Replace([]Order{{ID: 1}, {ID: 2}})
	store.Replace([]Order{{ID: 3}})

	got := store.All()
	if len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("replace must not merge, got %+v", got)
	}
	if !store.Loaded() {
		t.Error("store must report loaded after a replace")
	}
	if _, ok := store.Get(1); ok {
		t.Error("replaced-away order must be gone")
	}
}
