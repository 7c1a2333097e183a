package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	name  string
	value int
}

func newItems(t *testing.T, names ...string) *KeyedList[string, *item] {
	t.Helper()
	l := NewKeyedList(func(i *item) string { return i.name })
	for n, name := range names {
		require.NoError(t, l.Append(&item{name: name, value: n}))
	}
	return l
}

func TestKeyedListAppend(t *testing.T) {
	l := newItems(t, "a", "b", "c")

	assert.Equal(t, 3, l.Len())
	assert.Equal(t, []string{"a", "b", "c"}, l.Keys())
	assert.Equal(t, "b", l.At(1).name)

	got, ok := l.Get("c")
	require.True(t, ok)
	assert.Equal(t, 2, got.value)
	assert.Equal(t, 2, l.IndexOf("c"))
	assert.Equal(t, -1, l.IndexOf("missing"))

	err := l.Append(&item{name: "b"})
	require.ErrorIs(t, err, ErrDuplicateName)
	assert.Equal(t, 3, l.Len())
}

func TestKeyedListRemove(t *testing.T) {
	tests := []struct {
		name   string
		remove func(l *KeyedList[string, *item])
		want   []string
	}{
		{"by position", func(l *KeyedList[string, *item]) { l.RemoveAt(0) }, []string{"b", "c", "d"}},
		{"by name", func(l *KeyedList[string, *item]) { l.Remove("c") }, []string{"a", "b", "d"}},
		{"last", func(l *KeyedList[string, *item]) { l.Remove("d") }, []string{"a", "b", "c"}},
		{"missing", func(l *KeyedList[string, *item]) { l.Remove("x") }, []string{"a", "b", "c", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newItems(t, "a", "b", "c", "d")
			tt.remove(l)
			assert.Equal(t, tt.want, l.Keys())
			for i, name := range tt.want {
				assert.Equal(t, i, l.IndexOf(name), "index of %s", name)
				got, ok := l.Get(name)
				require.True(t, ok)
				assert.Equal(t, name, got.name)
			}
		})
	}
}

func TestKeyedListRekey(t *testing.T) {
	l := newItems(t, "a", "b")

	it, _ := l.Get("a")
	it.name = "z"
	require.NoError(t, l.Rekey("a"))
	assert.False(t, l.Has("a"))
	assert.Equal(t, 0, l.IndexOf("z"))

	it.name = "b"
	require.ErrorIs(t, l.Rekey("z"), ErrDuplicateName)

	require.ErrorIs(t, l.Rekey("missing"), ErrNotFound)
}

func TestKeyedListItemsIsCopy(t *testing.T) {
	l := newItems(t, "a", "b")
	items := l.Items()
	items[0] = &item{name: "x"}
	assert.Equal(t, "a", l.At(0).name)
}
