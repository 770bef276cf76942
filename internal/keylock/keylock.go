// Package keylock 提供按 key 分配的互斥锁，用于串行化同一用户的读改写。
package keylock

import "sync"

// Locks 按 key 分配互斥锁，无人持有时回收。零值不可用，使用 New 创建。
type Locks struct {
	mu sync.Mutex
	m  map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func New() *Locks {
	return &Locks{m: make(map[string]*entry)}
}

// Lock 阻塞直到拿到 key 对应的锁，返回释放函数。
func (k *Locks) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.m[key]
	if !ok {
		l = &entry{}
		k.m[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.m, key)
		}
		k.mu.Unlock()
	}
}

// Len 返回当前仍被持有或等待的 key 数量。
func (k *Locks) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.m)
}
