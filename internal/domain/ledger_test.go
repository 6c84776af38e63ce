package domain

import (
	"math/rand"
	"strconv"
	"testing"

	"pulseboard/internal/domain/model"
)

func countUnread(entries []model.Notification) int {
	n := 0
	for _, e := range entries {
		if !e.Read {
			n++
		}
	}
	return n
}

func TestLedgerAppendNewestFirst(t *testing.T) {
	l := NewLedger(0)
	first := l.Append(model.CategoryInfo, "a", "first")
	second := l.Append(model.CategoryError, "b", "second")

	if second.ID <= first.ID {
		t.Fatalf("ids must increase: %d then %d", first.ID, second.ID)
	}
	entries := l.Entries()
	if len(entries) != 2 || entries[0].ID != second.ID || entries[1].ID != first.ID {
		t.Fatalf("unexpected order: %+v", entries)
	}
	if l.UnreadCount() != 2 {
		t.Errorf("expected 2 unread, got %d", l.UnreadCount())
	}
}

func TestLedgerEvictsOldestAt51(t *testing.T) {
	l := NewLedger(DefaultLedgerCapacity)
	var ids []uint64
	for i := 1; i <= 51; i++ {
		n := l.Append(model.CategoryInfo, strconv.Itoa(i), "msg")
		ids = append(ids, n.ID)
	}
	// mark a few read before the overflow check
	l.MarkRead(ids[10])
	l.MarkRead(ids[20])

	entries := l.Entries()
	if len(entries) != 50 {
		t.Fatalf("expected 50 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Title == "1" {
			t.Fatalf("entry 1 should have been evicted")
		}
	}
	if entries[0].Title != "51" || entries[49].Title != "2" {
		t.Errorf("expected 51..2, got %s..%s", entries[0].Title, entries[49].Title)
	}
	if l.UnreadCount() != 48 {
		t.Errorf("expected 48 unread, got %d", l.UnreadCount())
	}
}

func TestLedgerEvictingUnreadDecrementsCounter(t *testing.T) {
	l := NewLedger(3)
	a := l.Append(model.CategoryInfo, "a", "")
	l.Append(model.CategoryInfo, "b", "")
	l.Append(model.CategoryInfo, "c", "")
	l.MarkRead(a.ID)

	// evicts "a" (read): counter unchanged apart from the insert
	l.Append(model.CategoryInfo, "d", "")
	if got := l.UnreadCount(); got != 3 {
		t.Fatalf("expected 3 unread, got %d", got)
	}
	// evicts "b" (unread)
	l.Append(model.CategoryInfo, "e", "")
	if got := l.UnreadCount(); got != 3 {
		t.Fatalf("expected 3 unread, got %d", got)
	}
}

func TestLedgerMarkReadIdempotent(t *testing.T) {
	l := NewLedger(0)
	n := l.Append(model.CategoryWarning, "w", "")

	if !l.MarkRead(n.ID) {
		t.Fatalf("first MarkRead should succeed")
	}
	if l.MarkRead(n.ID) {
		t.Errorf("second MarkRead should be a no-op")
	}
	if l.MarkRead(9999) {
		t.Errorf("MarkRead on unknown id should be a no-op")
	}
	if l.UnreadCount() != 0 {
		t.Errorf("expected 0 unread, got %d", l.UnreadCount())
	}
}

func TestLedgerMarkAllReadAndClear(t *testing.T) {
	l := NewLedger(0)
	for i := 0; i < 5; i++ {
		l.Append(model.CategoryInfo, "x", "")
	}
	l.MarkAllRead()
	if l.UnreadCount() != 0 || countUnread(l.Entries()) != 0 {
		t.Fatalf("MarkAllRead left unread entries")
	}
	l.Append(model.CategoryInfo, "y", "")
	l.Clear()
	if l.Len() != 0 || l.UnreadCount() != 0 {
		t.Fatalf("Clear left len=%d unread=%d", l.Len(), l.UnreadCount())
	}
	// ids keep increasing after Clear
	n := l.Append(model.CategoryInfo, "z", "")
	if n.ID != 7 {
		t.Errorf("expected id 7 after clear, got %d", n.ID)
	}
}

func TestLedgerUnreadInvariantRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	l := NewLedger(DefaultLedgerCapacity)

	for step := 0; step < 5000; step++ {
		switch op := rng.Intn(100); {
		case op < 60:
			l.Append(model.CategoryInfo, "t", "m")
		case op < 85:
			entries := l.Entries()
			if len(entries) > 0 {
				l.MarkRead(entries[rng.Intn(len(entries))].ID)
			} else {
				l.MarkRead(uint64(rng.Intn(10)))
			}
		case op < 95:
			l.MarkAllRead()
		default:
			l.Clear()
		}

		entries := l.Entries()
		if len(entries) > DefaultLedgerCapacity {
			t.Fatalf("step %d: ledger grew to %d", step, len(entries))
		}
		if got, want := l.UnreadCount(), countUnread(entries); got != want {
			t.Fatalf("step %d: unread counter %d, actual %d", step, got, want)
		}
		for i := 1; i < len(entries); i++ {
			if entries[i-1].ID <= entries[i].ID {
				t.Fatalf("step %d: entries not newest-first", step)
			}
		}
	}
}
