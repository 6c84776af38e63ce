package domain

import (
	"sort"
	"strings"
	"sync"
)

// Entity is anything a Table can track.
type Entity interface {
	Key() string
	Label() string
}

// Table 按 ID 保存某个领域的实体，同时维护收藏集合和展示集合。
// 记录只会被创建和更新，从展示集合移除不会删除记录。
type Table[T Entity] struct {
	mu        sync.RWMutex
	data      map[string]T
	favorites []string
	displayed []string
}

func NewTable[T Entity](displayed []string) *Table[T] {
	t := &Table[T]{data: make(map[string]T)}
	for _, id := range displayed {
		id = strings.TrimSpace(id)
		if id != "" && !contains(t.displayed, id) {
			t.displayed = append(t.displayed, id)
		}
	}
	return t
}

// Upsert merges fetched items. merge receives the previous record (ok=false
// for an unseen id) and returns the record to store. Returns ids that were
// created by this call.
func (t *Table[T]) Upsert(items []T, merge func(prev T, ok bool, next T) T) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var created []string
	for _, item := range items {
		key := item.Key()
		if key == "" {
			continue
		}
		prev, ok := t.data[key]
		if !ok {
			created = append(created, key)
		}
		if merge != nil {
			item = merge(prev, ok, item)
		}
		t.data[key] = item
	}
	return created
}

// Update applies fn to an existing record.
func (t *Table[T]) Update(key string, fn func(T) T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.data[key]
	if !ok {
		return false
	}
	t.data[key] = fn(cur)
	return true
}

func (t *Table[T]) Get(key string) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.data[key]
	return v, ok
}

// All 按 key 排序返回全部记录
func (t *Table[T]) All() []T {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := make([]string, 0, len(t.data))
	for k := range t.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, t.data[k])
	}
	return out
}

// DisplayedRecords returns fetched records of the displayed set in display order.
func (t *Table[T]) DisplayedRecords() []T {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]T, 0, len(t.displayed))
	for _, id := range t.displayed {
		if v, ok := t.data[id]; ok {
			out = append(out, v)
		}
	}
	return out
}

// ToggleFavorite flips membership of a known record. ok is false when the
// record has never been fetched.
func (t *Table[T]) ToggleFavorite(key string) (rec T, favorite bool, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok = t.data[key]
	if !ok {
		return rec, false, false
	}
	if contains(t.favorites, key) {
		t.favorites = remove(t.favorites, key)
		return rec, false, true
	}
	t.favorites = append(t.favorites, key)
	return rec, true, true
}

func (t *Table[T]) IsFavorite(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return contains(t.favorites, key)
}

// AddToDisplay returns false if key is already displayed.
func (t *Table[T]) AddToDisplay(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if contains(t.displayed, key) {
		return false
	}
	t.displayed = append(t.displayed, key)
	return true
}

// RemoveFromDisplay returns false if key was not displayed.
func (t *Table[T]) RemoveFromDisplay(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !contains(t.displayed, key) {
		return false
	}
	t.displayed = remove(t.displayed, key)
	return true
}

func (t *Table[T]) Displayed() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.displayed...)
}

func (t *Table[T]) Favorites() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.favorites...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
