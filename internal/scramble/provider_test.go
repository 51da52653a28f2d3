// internal/scramble/provider_test.go
package scramble

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSeeded(seed int64) *Provider {
	return NewProvider(rand.New(rand.NewSource(seed)))
}

func face(move string) string {
	return strings.TrimRight(move, "'2w")
}

func TestGenerateBatch(t *testing.T) {
	p := newSeeded(1)
	batch := p.GenerateBatch("3x3", 5)
	require.Len(t, batch, 5)
	for _, s := range batch {
		assert.NotEmpty(t, s)
	}
}

func TestCube3x3Shape(t *testing.T) {
	p := newSeeded(7)
	for i := 0; i < 50; i++ {
		moves := strings.Fields(p.Generate("3x3"))
		require.Len(t, moves, 20)
		for j, m := range moves {
			assert.Contains(t, []string{"R", "U", "F", "L", "D", "B"}, face(m))
			if j > 0 {
				assert.NotEqual(t, face(moves[j-1]), face(m), "no consecutive same-face moves in %v", moves)
			}
		}
	}
}

func TestCube2x2Shape(t *testing.T) {
	p := newSeeded(7)
	for i := 0; i < 50; i++ {
		moves := strings.Fields(p.Generate("2x2"))
		require.Len(t, moves, 9)
		for _, m := range moves {
			assert.Contains(t, []string{"R", "U", "F"}, face(m))
		}
	}
}

func TestCube4x4Shape(t *testing.T) {
	p := newSeeded(11)
	for i := 0; i < 50; i++ {
		s := p.Generate("4x4")
		parts := strings.SplitN(s, "  ", 2)
		require.Len(t, parts, 2, "4x4 scramble has an outer phase and a wide phase")

		outer := strings.Fields(parts[0])
		assert.Len(t, outer, 20)
		for _, m := range outer {
			assert.False(t, strings.Contains(m, "w"), "outer phase has no wide moves")
		}

		mixed := strings.Fields(parts[1])
		assert.GreaterOrEqual(t, len(mixed), 23)
		assert.LessOrEqual(t, len(mixed), 26)
		wide := 0
		for _, m := range mixed {
			if strings.Contains(m, "w") {
				wide++
			}
		}
		assert.GreaterOrEqual(t, wide, 9)
		assert.LessOrEqual(t, wide, 12)
	}
}

func TestPyraminxShape(t *testing.T) {
	p := newSeeded(13)
	tipOrder := map[string]int{"l": 0, "r": 1, "b": 2, "u": 3}
	for i := 0; i < 50; i++ {
		parts := strings.SplitN(p.Generate("pyraminx"), "  ", 2)
		require.Len(t, parts, 2)

		main := strings.Fields(parts[0])
		assert.GreaterOrEqual(t, len(main), 8)
		assert.LessOrEqual(t, len(main), 9)
		for _, m := range main {
			assert.Contains(t, []string{"R", "L", "U", "B"}, strings.TrimSuffix(m, "'"))
		}

		tips := strings.Fields(parts[1])
		require.GreaterOrEqual(t, len(tips), 1)
		require.LessOrEqual(t, len(tips), 4)
		prev := -1
		for _, tip := range tips {
			idx, known := tipOrder[strings.TrimSuffix(tip, "'")]
			require.True(t, known, "unexpected tip move %q", tip)
			assert.Greater(t, idx, prev, "tips appear at most once, in l r b u order")
			prev = idx
		}
	}
}

func TestSkewbShape(t *testing.T) {
	p := newSeeded(17)
	for i := 0; i < 50; i++ {
		moves := strings.Fields(p.Generate("skewb"))
		require.Len(t, moves, 12)
		for _, m := range moves {
			assert.Contains(t, []string{"R", "U", "L", "B"}, strings.TrimSuffix(m, "'"))
			assert.False(t, strings.HasSuffix(m, "2"), "skewb uses quarter turns only")
		}
	}
}

func TestUnknownEventFallsBackTo3x3(t *testing.T) {
	p := newSeeded(19)
	moves := strings.Fields(p.Generate("megaminx"))
	assert.Len(t, moves, 20)
}
