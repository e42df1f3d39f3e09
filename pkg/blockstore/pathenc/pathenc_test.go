package pathenc

import (
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	for _, size := range []int{0, 1, 3, 20, 255} {
		raw := make([]byte, size)
		_, _ = rand.Read(raw)

		token := Encode(raw)
		require.False(t, strings.HasPrefix(token, "."))
		require.NotContains(t, token, "/")

		actual, err := Decode(token)
		require.NoError(t, err)
		require.Equal(t, raw, actual)
	}
}

func TestNest(t *testing.T) {
	require.Equal(t, []string{"0", "0", "a"}, Nest("a", 3))
	require.Equal(t, []string{"ab", "cd", "ef"}, Nest("abcdefg", 3))
	require.Equal(t, []string{"0", "ab", "cd"}, Nest("abcd", 3))
	require.Equal(t, []string{"0", "0", "ab"}, Nest("ab", 3))
	require.Equal(t, []string{"ab", "cd"}, Nest("abcdef", 2))
	require.Nil(t, Nest("abcdef", 0))
}

func TestNestTotal(t *testing.T) {
	// Nest is total: any token and depth produce exactly depth components.
	for depth := 0; depth <= 4; depth++ {
		for size := 0; size <= 12; size++ {
			raw := make([]byte, size)
			_, _ = rand.Read(raw)

			comps := Nest(Encode(raw), depth)
			require.Len(t, comps, depth)
			for _, c := range comps {
				require.NotEmpty(t, c)
				require.LessOrEqual(t, len(c), 2)
			}
		}
	}
}
