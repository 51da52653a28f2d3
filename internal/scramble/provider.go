// internal/scramble/provider.go
package scramble

import (
	"math/rand"
	"strings"
)

// Provider generates random scramble sequences for the supported puzzle
// events. It is stateless apart from its RNG; a nil source falls back to the
// shared global source.
type Provider struct {
	rng *rand.Rand
}

// NewProvider returns a Provider backed by the given RNG. Pass nil to use the
// package-global source (production); tests pass a seeded source for
// reproducible sequences.
func NewProvider(rng *rand.Rand) *Provider {
	return &Provider{rng: rng}
}

// GenerateBatch returns count scrambles for the given event. Unknown events
// fall back to 3x3.
func (p *Provider) GenerateBatch(event string, count int) []string {
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, p.Generate(event))
	}
	return out
}

// Generate returns one scramble for the given event.
func (p *Provider) Generate(event string) string {
	switch strings.ToLower(event) {
	case "2x2":
		return p.cube2x2()
	case "4x4":
		return p.cube4x4()
	case "pyraminx":
		return p.pyraminx()
	case "skewb":
		return p.skewb()
	default:
		return p.cube3x3()
	}
}

func (p *Provider) intn(n int) int {
	if p.rng != nil {
		return p.rng.Intn(n)
	}
	return rand.Intn(n)
}

var (
	outerMoves    = []string{"R", "U", "F", "L", "D", "B"}
	wideMoves     = []string{"Uw", "Rw", "Fw"}
	cwModifiers   = []string{"", "'", "2"}
	halfModifiers = []string{"", "'"}
)

func (p *Provider) cube2x2() string {
	return p.sequence([]string{"R", "U", "F"}, cwModifiers, 9)
}

func (p *Provider) cube3x3() string {
	return p.sequence(outerMoves, cwModifiers, 20)
}

// cube4x4 emits a 20-move outer-layer phase followed by a mixed phase of
// 23-26 moves containing 9-12 wide turns.
func (p *Provider) cube4x4() string {
	part1 := p.sequence(outerMoves, cwModifiers, 20)
	part2 := p.widePhase()
	return part1 + "  " + part2
}

func (p *Provider) widePhase() string {
	targetWide := 9 + p.intn(4)
	total := 23 + p.intn(4)

	seq := make([]string, 0, total)
	wideCount := 0
	runWide := 0    // consecutive wide moves, capped at 3
	runRegular := 0 // consecutive regular moves, capped at 4
	last := ""

	for i := 0; i < total; i++ {
		deficit := targetWide - wideCount
		var pool []string
		switch {
		case deficit <= 0:
			pool = outerMoves
		case deficit >= total-i:
			// Every remaining slot must be wide to hit the target.
			pool = wideMoves
		case runWide >= 3:
			pool = outerMoves
		case runRegular >= 4 || p.intn(10) < 6:
			pool = wideMoves
		default:
			pool = outerMoves
		}

		move := pool[p.intn(len(pool))]
		for attempts := 0; move == last && attempts < 50; attempts++ {
			move = pool[p.intn(len(pool))]
		}
		seq = append(seq, move+cwModifiers[p.intn(len(cwModifiers))])

		if strings.Contains(move, "w") {
			wideCount++
			runWide++
			runRegular = 0
		} else {
			runRegular++
			runWide = 0
		}
		last = move
	}
	return strings.Join(seq, " ")
}

// pyraminx emits 8-9 main moves followed by 1-4 distinct tip moves in the
// fixed l r b u order.
func (p *Provider) pyraminx() string {
	mainLen := 8 + p.intn(2)
	main := make([]string, 0, mainLen)
	moves := []string{"R", "L", "U", "B"}
	last := ""
	for i := 0; i < mainLen; i++ {
		move := moves[p.intn(len(moves))]
		for attempts := 0; move == last && attempts < 30; attempts++ {
			move = moves[p.intn(len(moves))]
		}
		main = append(main, move+halfModifiers[p.intn(len(halfModifiers))])
		last = move
	}

	tipOrder := []string{"l", "r", "b", "u"}
	tipLen := 1 + p.intn(4)
	picked := make([]bool, len(tipOrder))
	for n := 0; n < tipLen; n++ {
		i := p.intn(len(tipOrder))
		for picked[i] {
			i = (i + 1) % len(tipOrder)
		}
		picked[i] = true
	}
	tips := make([]string, 0, tipLen)
	for i, ok := range picked {
		if ok {
			tips = append(tips, tipOrder[i]+halfModifiers[p.intn(len(halfModifiers))])
		}
	}

	return strings.Join(main, " ") + "  " + strings.Join(tips, " ")
}

func (p *Provider) skewb() string {
	return p.sequence([]string{"R", "U", "L", "B"}, halfModifiers, 12)
}

// sequence builds a move string avoiding immediate repeats of the same face
// or the same rotation axis.
func (p *Provider) sequence(moves, modifiers []string, length int) string {
	seq := make([]string, 0, length)
	last := ""
	lastAxis := ""
	for i := 0; i < length; i++ {
		move := moves[p.intn(len(moves))]
		for attempts := 0; (move == last || axis(move) == lastAxis) && attempts < 20; attempts++ {
			move = moves[p.intn(len(moves))]
		}
		seq = append(seq, move+modifiers[p.intn(len(modifiers))])
		last = move
		lastAxis = axis(move)
	}
	return strings.Join(seq, " ")
}

func axis(move string) string {
	switch {
	case strings.ContainsAny(move, "RL"):
		return "R"
	case strings.ContainsAny(move, "UD"):
		return "U"
	case strings.ContainsAny(move, "FB"):
		return "F"
	}
	return "R"
}
