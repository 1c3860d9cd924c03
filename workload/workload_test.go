package workload

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/arcmrc/trace"
)

func TestRandom_LengthAndRange(t *testing.T) {
	t.Parallel()
	r := NewRandom(1)

	for _, c := range []int{1, 7, 64} {
		keys := slices.Collect(r.Keys(c))
		require.Len(t, keys, RandomLength*c)
		for _, k := range keys {
			require.Less(t, k, uint64(RandomUniverse*c))
		}
	}
}

func TestRandom_SameSeedSameStream(t *testing.T) {
	t.Parallel()
	a, b := NewRandom(42), NewRandom(42)
	for _, c := range []int{8, 16, 32} {
		require.Equal(t, slices.Collect(a.Keys(c)), slices.Collect(b.Keys(c)))
	}

	other := NewRandom(43)
	require.NotEqual(t, slices.Collect(NewRandom(42).Keys(64)), slices.Collect(other.Keys(64)))
}

func TestSequential(t *testing.T) {
	t.Parallel()
	s := Sequential{MaxSize: 6}

	want := []uint64{0, 1, 2, 0, 1, 2, 0, 1, 2, 0, 1, 2}
	require.Equal(t, want, slices.Collect(s.Keys(1)))
	require.Equal(t, want, slices.Collect(s.Keys(100)), "independent of capacity")
	require.Empty(t, slices.Collect(Sequential{MaxSize: 1}.Keys(1)))
}

func layout(t *testing.T) *trace.Layout {
	t.Helper()
	tr, err := trace.Parse(strings.NewReader(
		"filename,file_offset,request_io_size_bytes\nx,0,8192\ny,4096,0\nx,4096,0\n"), "")
	require.NoError(t, err)
	l, err := tr.Layout(4096, 0)
	require.NoError(t, err)
	return l
}

func TestTrace_Keys(t *testing.T) {
	t.Parallel()
	l := layout(t)
	// span = 8192/4096+1 = 3; x -> 0..2, y at base 3 -> 4, x -> 1
	require.Equal(t, []uint64{0, 1, 2, 4, 1}, slices.Collect(Trace{Layout: l}.Keys(16)))
	require.Equal(t, []uint64{0, 1}, slices.Collect(Trace{Layout: l, Limit: 2}.Keys(16)))
	require.Len(t, slices.Collect(Trace{Layout: l, Limit: 100}.Keys(16)), 5)
}

func TestTrace_Warmup(t *testing.T) {
	t.Parallel()
	l := layout(t)
	require.Nil(t, Trace{Layout: l}.Warmup(16))

	// x extent [0, 8192] -> 0..2, y extent [4096, 4096] -> 1 at base 3
	got := slices.Collect(Trace{Layout: l, WarmAll: true}.Warmup(16))
	require.Equal(t, []uint64{0, 1, 2, 4}, got)
}
