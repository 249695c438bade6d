package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID  string
	Val int
}

func (i item) StoreKey() string { return i.ID }

func upsert(it item) func(item, bool) item {
	return func(item, bool) item { return it }
}

func TestApplyCreatedThenUpdated(t *testing.T) {
	s := New[string, item]()
	var got []Change[string, item]
	require.NoError(t, s.Subscribe(func(c Change[string, item]) { got = append(got, c) }))

	// 未知标识先到 update 也按新建处理，后续同标识事件做覆盖合并
	s.Apply("a", upsert(item{ID: "a", Val: 1}))
	s.Apply("a", upsert(item{ID: "a", Val: 2}))

	require.Len(t, got, 2)
	assert.Equal(t, Created, got[0].Kind)
	assert.Equal(t, Updated, got[1].Kind)
	assert.Equal(t, 2, got[1].Entity.Val)

	assert.Equal(t, 1, s.Len())
	e, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, e.Val)
}

func TestSnapshotReplacesOnlyInScope(t *testing.T) {
	s := New[string, item]()
	s.Apply("a", upsert(item{ID: "a", Val: 1})) // 范围内，快照缺席
	s.Apply("b", upsert(item{ID: "b", Val: 9})) // 范围外

	inScope := func(e item) bool { return e.Val < 5 }
	s.ApplySnapshot([]item{{ID: "c", Val: 3}}, inScope)

	_, ok := s.Get("a")
	assert.False(t, ok, "范围内缺席的实体应被替换删除")
	_, ok = s.Get("b")
	assert.True(t, ok, "范围外实体不动")
	_, ok = s.Get("c")
	assert.True(t, ok)
}

func TestSnapshotNilScopeIsPureUpsert(t *testing.T) {
	s := New[string, item]()
	s.Apply("a", upsert(item{ID: "a", Val: 1}))

	s.ApplySnapshot([]item{{ID: "b", Val: 2}}, nil)

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("a")
	assert.True(t, ok)
}

func TestSnapshotNotifiesOnce(t *testing.T) {
	s := New[string, item]()
	var got []Change[string, item]
	require.NoError(t, s.Subscribe(func(c Change[string, item]) { got = append(got, c) }))

	s.ApplySnapshot([]item{{ID: "a"}, {ID: "b"}, {ID: "c"}}, nil)

	require.Len(t, got, 1)
	assert.Equal(t, Snapshot, got[0].Kind)
}

func TestRemove(t *testing.T) {
	s := New[string, item]()
	var got []Change[string, item]
	require.NoError(t, s.Subscribe(func(c Change[string, item]) { got = append(got, c) }))

	s.Remove("missing") // 不存在时静默，不通知
	require.Empty(t, got)

	s.Apply("a", upsert(item{ID: "a", Val: 1}))
	s.Remove("a")
	require.Len(t, got, 2)
	assert.Equal(t, Removed, got[1].Kind)
	assert.Equal(t, "a", got[1].Entity.ID)
	assert.Equal(t, 0, s.Len())
}

func TestSingleSubscriber(t *testing.T) {
	s := New[string, item]()
	require.NoError(t, s.Subscribe(func(Change[string, item]) {}))
	assert.Error(t, s.Subscribe(func(Change[string, item]) {}))

	s.Unsubscribe()
	assert.NoError(t, s.Subscribe(func(Change[string, item]) {}))
}

func TestReentrantMutationDeferred(t *testing.T) {
	s := New[string, item]()
	var kinds []ChangeKind
	require.NoError(t, s.Subscribe(func(c Change[string, item]) {
		kinds = append(kinds, c.Kind)
		if c.Kind == Created && c.Entity.ID == "a" {
			// 回调内再次变更：挂起到本次派发结束后执行
			s.Apply("b", upsert(item{ID: "b", Val: 1}))
		}
	}))

	s.Apply("a", upsert(item{ID: "a", Val: 1}))

	assert.Equal(t, []ChangeKind{Created, Created}, kinds)
	assert.Equal(t, 2, s.Len())
}

func TestUnsubscribeDuringDelivery(t *testing.T) {
	s := New[string, item]()
	var count int
	require.NoError(t, s.Subscribe(func(c Change[string, item]) {
		count++
		s.Unsubscribe()
	}))

	s.Apply("a", upsert(item{ID: "a", Val: 1}))
	s.Apply("b", upsert(item{ID: "b", Val: 1}))

	assert.Equal(t, 1, count)
	assert.Equal(t, 2, s.Len(), "退订只停通知，变更照常落地")
}

func TestViewNeverExposesBackingMap(t *testing.T) {
	s := New[string, item]()
	s.Apply("a", upsert(item{ID: "a", Val: 1}))

	out := s.View(nil, 0)
	require.Len(t, out, 1)
	out[0].Val = 99

	e, _ := s.Get("a")
	assert.Equal(t, 1, e.Val)
}

func TestViewFilterAndLimit(t *testing.T) {
	s := New[string, item]()
	for _, it := range []item{{"a", 1}, {"b", 2}, {"c", 3}, {"d", 4}} {
		s.Apply(it.ID, upsert(it))
	}

	out := s.View(func(e item) bool { return e.Val > 1 }, 2)
	assert.Len(t, out, 2)
	for _, e := range out {
		assert.Greater(t, e.Val, 1)
	}
}
