package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

type memoryEntry struct {
	slot chan struct{}
	refs int
}

// MemoryLocker is a process-local keyed mutex. Entries are dropped once no
// goroutine holds or waits for them.
type MemoryLocker struct {
	wait    time.Duration
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

var _ Locker = (*MemoryLocker)(nil)

// NewMemoryLocker constructs an empty MemoryLocker. A positive wait caps how
// long Acquire blocks on a held key; zero waits for ctx alone.
func NewMemoryLocker(wait time.Duration) *MemoryLocker {
	return &MemoryLocker{wait: wait, entries: make(map[string]*memoryEntry)}
}

// Acquire blocks until key is free, the wait budget is spent or ctx is done.
func (l *MemoryLocker) Acquire(ctx context.Context, key string) (Release, error) {
	key, err := normaliseKey(key)
	if err != nil {
		return nil, err
	}
	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	entry := l.ref(key)
	select {
	case entry.slot <- struct{}{}:
	case <-ctx.Done():
		l.unref(key)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-entry.slot
			l.unref(key)
		})
		return nil
	}, nil
}

// Len reports the number of keys currently held or awaited.
func (l *MemoryLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *MemoryLocker) ref(key string) *memoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &memoryEntry{slot: make(chan struct{}, 1)}
		l.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (l *MemoryLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(l.entries, key)
	}
}
