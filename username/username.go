package username

import (
	_ "embed"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	//go:embed data/adjectives.txt
	adjectivesData string

	//go:embed data/animals.txt
	animalsData string
)

var (
	adjectives = parseWordList(adjectivesData)
	animals    = parseWordList(animalsData)
)

func parseWordList(data string) []string {
	lines := strings.Split(data, "\n")
	words := make([]string, 0, len(lines))
	for _, line := range lines {
		word := strings.TrimSpace(line)
		if word == "" {
			continue
		}
		words = append(words, word)
	}
	return words
}

// Adjectives returns the number of words in the adjective list.
func Adjectives() int {
	return len(adjectives)
}

// Animals returns the number of words in the animal list.
func Animals() int {
	return len(animals)
}

// Combinations returns the number of distinct handles the lists can produce.
func Combinations() int {
	return len(adjectives) * len(adjectives) * len(animals)
}

// FromSeed derives the three-word handle for seed, usually a hex encoded
// public key.
func FromSeed(seed string) string {
	g := NewGenerator(seed)

	first := g.Integer(0, len(adjectives)-1)
	second := g.Integer(0, len(adjectives)-1)
	third := g.Integer(0, len(animals)-1)

	return strings.Join([]string{
		capitalize(adjectives[first]),
		capitalize(adjectives[second]),
		capitalize(animals[third]),
	}, " ")
}

func capitalize(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if r == utf8.RuneError {
		return word
	}
	return string(unicode.ToUpper(r)) + word[size:]
}
