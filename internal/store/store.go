// Package store 维护订单/仓位的唯一权威缓存，合并 REST 快照与推送流两路输入。
package store

import (
	"fmt"
	"sync"
)

// ChangeKind 通知类型。新建实体区别于普通更新。
type ChangeKind int

const (
	Created ChangeKind = iota
	Updated
	Removed
	// Snapshot 快照整体落地后的单次通知，Entity 为零值。
	Snapshot
)

func (k ChangeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	default:
		return "snapshot"
	}
}

// Keyed 实体按稳定标识入库（orderId、symbol+side）。
type Keyed[K comparable] interface {
	StoreKey() K
}

// Change 一次缓存变更。监听者收到通知时实体已完整落地。
type Change[K comparable, E Keyed[K]] struct {
	Kind   ChangeKind
	Entity E
}

// Store 泛型对账缓存。
//
// 合并规则：
//   - 流事件对未知标识新建实体（Created），对已知标识做字段覆盖合并（Updated），
//     以到达顺序为准，到达顺序是两路输入之间唯一可用的顺序保证。
//   - 快照只替换其过滤范围内的子集（inScope），范围外实体不动，
//     窄过滤的轮询不会误删无关实体。
//
// 所有变更须在同一逻辑线程（engine 事件循环）上执行；读方法可并发调用。
// 通知在变更完成后同步派发；回调内再次变更会被挂起，待本次派发结束后执行。
type Store[K comparable, E Keyed[K]] struct {
	mu       sync.RWMutex
	entities map[K]E

	// listener 只在变更线程上注册/退订/调用，无需加锁。
	listener  func(Change[K, E])
	notifying bool
	deferred  []func() []Change[K, E]
}

func New[K comparable, E Keyed[K]]() *Store[K, E] {
	return &Store[K, E]{entities: make(map[K]E)}
}

// Subscribe 注册唯一的监听者；已被占用时报错。
func (s *Store[K, E]) Subscribe(fn func(Change[K, E])) error {
	if s.listener != nil {
		return fmt.Errorf("store already has a subscriber")
	}
	s.listener = fn
	return nil
}

// Unsubscribe 显式退订。允许在通知回调内调用，退订后不再收到后续通知。
func (s *Store[K, E]) Unsubscribe() {
	s.listener = nil
}

// Apply 对单个实体执行合并。merge 收到旧值（或零值+ok=false），返回新值。
// 单步内只有一个实体发生变化；通知在变化完成后同步发出。
func (s *Store[K, E]) Apply(key K, merge func(prev E, ok bool) E) {
	s.run(func() []Change[K, E] {
		prev, ok := s.entities[key]
		next := merge(prev, ok)
		s.entities[key] = next
		if ok {
			return []Change[K, E]{{Kind: Updated, Entity: next}}
		}
		return []Change[K, E]{{Kind: Created, Entity: next}}
	})
}

// Remove 删除实体（例如仓位归零）。不存在时静默。
func (s *Store[K, E]) Remove(key K) {
	s.run(func() []Change[K, E] {
		prev, ok := s.entities[key]
		if !ok {
			return nil
		}
		delete(s.entities, key)
		return []Change[K, E]{{Kind: Removed, Entity: prev}}
	})
}

// ApplySnapshot 用快照替换 inScope 覆盖的子集：list 内全部落地，
// 范围内但不在 list 中的实体删除，范围外实体保持原样。
// inScope 为 nil 时退化为纯 upsert（不删任何实体）。
func (s *Store[K, E]) ApplySnapshot(list []E, inScope func(E) bool) {
	s.run(func() []Change[K, E] {
		keep := make(map[K]bool, len(list))
		for _, e := range list {
			keep[e.StoreKey()] = true
		}
		if inScope != nil {
			for k, e := range s.entities {
				if inScope(e) && !keep[k] {
					delete(s.entities, k)
				}
			}
		}
		for _, e := range list {
			s.entities[e.StoreKey()] = e
		}
		var zero E
		return []Change[K, E]{{Kind: Snapshot, Entity: zero}}
	})
}

// Get 按标识读取单个实体副本。
func (s *Store[K, E]) Get(key K) (E, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[key]
	return e, ok
}

// View 返回满足过滤条件的实体副本，limit>0 时截断。
// 永不暴露底层集合本身。
func (s *Store[K, E]) View(filter func(E) bool, limit int) []E {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]E, 0, len(s.entities))
	for _, e := range s.entities {
		if filter != nil && !filter(e) {
			continue
		}
		out = append(out, e)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Len 当前实体数。
func (s *Store[K, E]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// run 执行一次变更：写锁内完成合并，释放后同步派发通知。
// 通知回调内发起的再入变更挂入 deferred，由最外层调用依次执行，
// 避免破坏进行中的合并。
func (s *Store[K, E]) run(mutation func() []Change[K, E]) {
	if s.notifying {
		s.deferred = append(s.deferred, mutation)
		return
	}
	s.notifying = true
	s.mu.Lock()
	changes := mutation()
	s.mu.Unlock()
	s.dispatch(changes)
	for len(s.deferred) > 0 {
		next := s.deferred[0]
		s.deferred = s.deferred[1:]
		s.mu.Lock()
		changes = next()
		s.mu.Unlock()
		s.dispatch(changes)
	}
	s.notifying = false
}

func (s *Store[K, E]) dispatch(changes []Change[K, E]) {
	for _, c := range changes {
		if s.listener == nil {
			return
		}
		s.listener(c)
	}
}
