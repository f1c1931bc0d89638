package otp

import (
	"bytes"
	"errors"
	"testing"

	. "github.com/onsi/gomega"
)

func TestRandomGenerator_Format(t *testing.T) {
	g := NewWithT(t)
	gen := NewRandomGenerator()
	for i := 0; i < 1000; i++ {
		code, err := gen.Generate()
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(code).To(MatchRegexp(`^[0-9]{6}$`))
	}
}

func TestRandomGenerator_LeadingZeros(t *testing.T) {
	g := NewWithT(t)
	// An all-zero source yields 0, which must still render as six characters.
	gen := NewRandomGeneratorFromReader(bytes.NewReader(make([]byte, 64)))
	code, err := gen.Generate()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(code).To(Equal("000000"))
}

func TestRandomGenerator_DigitDistribution(t *testing.T) {
	g := NewWithT(t)
	gen := NewRandomGenerator()

	const samples = 20000
	var counts [10]int
	for i := 0; i < samples; i++ {
		code, err := gen.Generate()
		g.Expect(err).NotTo(HaveOccurred())
		for _, c := range code {
			counts[c-'0']++
		}
	}

	expected := float64(samples*6) / 10
	for digit, n := range counts {
		deviation := (float64(n) - expected) / expected
		g.Expect(deviation).To(BeNumerically("~", 0, 0.05), "digit %d appeared %d times", digit, n)
	}
}

func TestRandomGenerator_SourceError(t *testing.T) {
	g := NewWithT(t)
	gen := NewRandomGeneratorFromReader(failingReader{})
	_, err := gen.Generate()
	g.Expect(err).To(HaveOccurred())
}

func TestSequence(t *testing.T) {
	g := NewWithT(t)
	seq := Sequence("111111", "222222")
	g.Expect(seq.Generate()).To(Equal("111111"))
	g.Expect(seq.Generate()).To(Equal("222222"))
	g.Expect(seq.Generate()).To(Equal("222222"))

	_, err := Sequence().Generate()
	g.Expect(err).To(HaveOccurred())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }
