package domain

import (
	"sync"
	"time"

	"pulseboard/internal/domain/model"
)

// DefaultLedgerCapacity 通知日志最多保留的条目数
const DefaultLedgerCapacity = 50

// Ledger is the bounded notification log, newest entry first.
// unread always equals the number of entries with Read == false.
type Ledger struct {
	mu       sync.RWMutex
	capacity int
	entries  []model.Notification
	unread   int
	nextID   uint64
	now      func() time.Time
}

// NewLedger creates a ledger; capacity <= 0 falls back to DefaultLedgerCapacity.
func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultLedgerCapacity
	}
	return &Ledger{
		capacity: capacity,
		entries:  make([]model.Notification, 0, capacity+1),
		now:      time.Now,
	}
}

// Append 在头部插入新条目，超出容量时从尾部淘汰最旧的条目
func (l *Ledger) Append(category model.Category, title, message string) model.Notification {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	n := model.Notification{
		ID:        l.nextID,
		Title:     title,
		Message:   message,
		Category:  category,
		Timestamp: l.now(),
	}

	l.entries = append(l.entries, model.Notification{})
	copy(l.entries[1:], l.entries)
	l.entries[0] = n
	l.unread++

	if len(l.entries) > l.capacity {
		for _, evicted := range l.entries[l.capacity:] {
			if !evicted.Read {
				l.unread--
			}
		}
		l.entries = l.entries[:l.capacity]
	}
	return n
}

// MarkRead returns false if the entry is unknown or already read.
func (l *Ledger) MarkRead(id uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.entries {
		if l.entries[i].ID != id {
			continue
		}
		if l.entries[i].Read {
			return false
		}
		l.entries[i].Read = true
		l.unread--
		return true
	}
	return false
}

func (l *Ledger) MarkAllRead() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.entries {
		l.entries[i].Read = true
	}
	l.unread = 0
}

func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = l.entries[:0]
	l.unread = 0
}

// Entries 返回副本，调用方修改不会影响日志
func (l *Ledger) Entries() []model.Notification {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]model.Notification, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Ledger) UnreadCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.unread
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
