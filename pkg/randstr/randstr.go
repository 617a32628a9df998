package randstr

import (
	"math/rand/v2"
)

type generator struct {
	alphabet []byte
}

func New(alphabet []byte) *generator {
	return &generator{alphabet: alphabet}
}

func (g *generator) GenerateRandomString(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = g.alphabet[rand.IntN(len(g.alphabet))]
	}

	return string(b)
}
