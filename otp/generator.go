// Package otp produces the numeric one-time codes mailed to users.
package otp

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/biihlive/authcodes/domain"
)

var codeSpace = big.NewInt(1_000_000)

// Generator returns a fresh code on every call.
type Generator interface {
	Generate() (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func() (string, error)

func (f GeneratorFunc) Generate() (string, error) { return f() }

// RandomGenerator draws codes uniformly from 000000-999999.
type RandomGenerator struct {
	source io.Reader
}

// NewRandomGenerator returns a generator backed by crypto/rand.
func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{source: rand.Reader}
}

// NewRandomGeneratorFromReader is used by tests that need a deterministic source.
func NewRandomGeneratorFromReader(r io.Reader) *RandomGenerator {
	return &RandomGenerator{source: r}
}

func (g *RandomGenerator) Generate() (string, error) {
	n, err := rand.Int(g.source, codeSpace)
	if err != nil {
		return "", fmt.Errorf("failed to read random source: %w", err)
	}
	return fmt.Sprintf("%0*d", domain.CodeLength, n.Int64()), nil
}

// Sequence replays codes in order and then repeats the last one.
func Sequence(codes ...string) GeneratorFunc {
	i := 0
	return func() (string, error) {
		if len(codes) == 0 {
			return "", fmt.Errorf("empty code sequence")
		}
		code := codes[min(i, len(codes)-1)]
		i++
		return code, nil
	}
}

var defaultGenerator = NewRandomGenerator()

// Generate draws one code from crypto/rand.
func Generate() (string, error) {
	return defaultGenerator.Generate()
}
