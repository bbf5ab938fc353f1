package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_PutGetDelete(t *testing.T) {
	t.Parallel()
	s := New[string, int]()

	_, ok := s.Get("a")
	require.False(t, ok)

	s.Put("a", 1)
	v, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)
	require.Equal(t, 1, s.Len())

	s.Delete("a")
	_, ok = s.Get("a")
	require.False(t, ok)
	require.Zero(t, s.Len())
}

func TestStore_GetOrCreate_SingleValue(t *testing.T) {
	t.Parallel()
	s := New[uint64, *int]()

	calls := 0
	create := func() *int {
		calls++
		n := new(int)
		return n
	}

	first := s.GetOrCreate(7, create)
	second := s.GetOrCreate(7, create)
	require.Same(t, first, second)
	require.Equal(t, 1, calls)
}

// Concurrent GetOrCreate for the same key must converge on one value.
func TestStore_GetOrCreate_Concurrent(t *testing.T) {
	t.Parallel()
	s := New[int, *struct{}]()

	const goroutines = 32
	results := make([]*struct{}, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.GetOrCreate(1, func() *struct{} { return &struct{}{} })
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		require.Same(t, results[0], results[i])
	}
}

func TestStore_Range(t *testing.T) {
	t.Parallel()
	s := New[int, string]()
	s.Put(1, "a")
	s.Put(2, "b")
	s.Put(3, "c")

	seen := map[int]string{}
	s.Range(func(k int, v string) bool {
		seen[k] = v
		return true
	})
	require.Equal(t, map[int]string{1: "a", 2: "b", 3: "c"}, seen)

	// early stop visits exactly one element
	visits := 0
	s.Range(func(int, string) bool {
		visits++
		return false
	})
	require.Equal(t, 1, visits)
}
