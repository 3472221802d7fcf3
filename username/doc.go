// Package username derives human-readable three-word handles from public keys.
//
// A handle is a pure function of its seed: every peer that sees the same public
// key renders the same name, regardless of implementation language. The
// derivation seeds a Mersenne Twister exactly the way the Chance.js library does
// for a string seed, draws two indexes into the adjective list and one into the
// animal list, capitalizes each word and joins them with single spaces.
//
// Example:
//
//	name := username.FromSeed("0x04a1b2...")
//	fmt.Println(name) // e.g. "Jolly Brave Otter"
//
// # Word Lists
//
// The lists live in data/adjectives.txt and data/animals.txt, one word per
// line, and are embedded into the binary. They are parsed once at package
// initialization. The index of each word is part of the wire contract, so the
// files must never be reordered.
//
// # Thread Safety
//
// FromSeed and the package-level lists are safe for concurrent use. A
// Generator is not; create one per derivation.
package username
