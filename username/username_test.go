package username

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMersenneTwisterReferenceOutputs(t *testing.T) {
	testCases := []struct {
		name     string
		seed     uint32
		expected []uint32
	}{
		{"default seed", 5489, []uint32{3499211612, 581869302}},
		{"seed one", 1, []uint32{1791095845, 4282876139}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mt := newMersenneTwister(tc.seed)
			for i, want := range tc.expected {
				assert.Equal(t, want, mt.Uint32(), "output %d", i)
			}
		})
	}
}

func TestMersenneTwisterSurvivesTwist(t *testing.T) {
	mt := newMersenneTwister(42)
	for i := 0; i < 3*mtN; i++ {
		f := mt.Float64()
		require.GreaterOrEqual(t, f, 0.0)
		require.Less(t, f, 1.0)
	}
}

func TestStringSeed(t *testing.T) {
	assert.Equal(t, 0.0, stringSeed(""))
	assert.Equal(t, 97.0, stringSeed("a"))
	// "ab": hash('a') = 97, hash('b') = 98 + (97<<6) + (97<<16) - 97, added twice.
	assert.Equal(t, 12726402.0, stringSeed("ab"))
}

func TestECMAScriptConversions(t *testing.T) {
	assert.Equal(t, uint32(4294967295), toUint32(-1))
	assert.Equal(t, uint32(0), toUint32(4294967296))
	assert.Equal(t, uint32(5), toUint32(4294967301))
	assert.Equal(t, int32(-2147483648), toInt32(2147483648))
	assert.Equal(t, int32(-1), toInt32(4294967295))
	assert.Equal(t, uint32(0), toUint32(0.0/zero()))
}

func zero() float64 { return 0 }

func TestGeneratorIntegerRange(t *testing.T) {
	g := NewGenerator("range-check")
	for i := 0; i < 10000; i++ {
		v := g.Integer(3, 7)
		require.GreaterOrEqual(t, v, 3)
		require.LessOrEqual(t, v, 7)
	}
}

func TestGeneratorIsDeterministic(t *testing.T) {
	a := NewGenerator("0xdeadbeef")
	b := NewGenerator("0xdeadbeef")
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Integer(0, 1000), b.Integer(0, 1000))
	}
}

func TestWordListsLoaded(t *testing.T) {
	assert.Greater(t, Adjectives(), 100)
	assert.Greater(t, Animals(), 100)
	assert.Equal(t, Adjectives()*Adjectives()*Animals(), Combinations())

	for _, w := range append(append([]string{}, adjectives...), animals...) {
		assert.Equal(t, strings.TrimSpace(w), w)
		assert.NotEmpty(t, w)
	}
}

func TestFromSeedFormat(t *testing.T) {
	name := FromSeed("0x04b7a1d1c5e1e6c2f5d9d1a1e7f4b3c2a1d0e9f8c7b6a5d4c3b2a1f0e9d8c7b6a5d4c3b2a1f0e9d8c7b6a5d4c3b2a1f0e9d8c7b6a5d4c3b2a1f0e9d8c7b6a5d4c3")
	words := strings.Split(name, " ")
	require.Len(t, words, 3)

	for _, w := range words {
		assert.True(t, unicode.IsUpper([]rune(w)[0]), "word %q should be capitalized", w)
	}
	assert.Contains(t, adjectives, strings.ToLower(words[0][:1])+words[0][1:])
	assert.Contains(t, adjectives, strings.ToLower(words[1][:1])+words[1][1:])
	assert.Contains(t, animals, strings.ToLower(words[2][:1])+words[2][1:])
}

func TestFromSeedIsPure(t *testing.T) {
	seeds := []string{"", "a", "general", "0xabc", "友達", strings.Repeat("f", 132)}
	for _, seed := range seeds {
		assert.Equal(t, FromSeed(seed), FromSeed(seed), "seed %q", seed)
	}
}

func TestFromSeedMatchesGeneratorDraws(t *testing.T) {
	seed := "0x0401"
	g := NewGenerator(seed)
	first := g.Integer(0, Adjectives()-1)
	second := g.Integer(0, Adjectives()-1)
	third := g.Integer(0, Animals()-1)

	expected := capitalize(adjectives[first]) + " " + capitalize(adjectives[second]) + " " + capitalize(animals[third])
	assert.Equal(t, expected, FromSeed(seed))
}

func TestFromSeedConcurrent(t *testing.T) {
	want := FromSeed("concurrent")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, FromSeed("concurrent"))
		}()
	}
	wg.Wait()
}

// With k seeds over N combinations the expected number of colliding pairs is
// about k^2/2N. The bound below leaves a wide margin over that expectation.
func TestFromSeedCollisionRate(t *testing.T) {
	const samples = 3000
	seen := make(map[string]int, samples)
	collisions := 0
	for i := 0; i < samples; i++ {
		name := FromSeed(fmt.Sprintf("0x04%0128x", i))
		if _, ok := seen[name]; ok {
			collisions++
		}
		seen[name]++
	}

	expected := float64(samples) * float64(samples) / (2 * float64(Combinations()))
	assert.LessOrEqual(t, float64(collisions), expected+5, "collisions=%d expected≈%.2f", collisions, expected)
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Otter", capitalize("otter"))
	assert.Equal(t, "", capitalize(""))
	assert.Equal(t, "Élan", capitalize("élan"))
}
