package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePair_OrderIndependent(t *testing.T) {
	a := "So11111111111111111111111111111111111111112"
	b := "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

	k1 := NormalizePair(a, b)
	k2 := NormalizePair(b, a)

	assert.Equal(t, k1, k2)
	assert.True(t, k1.TokenX <= k1.TokenY)
}

func TestNormalizePair_Identical(t *testing.T) {
	k := NormalizePair("abc", "abc")
	assert.Equal(t, PairKey{TokenX: "abc", TokenY: "abc"}, k)
}

func TestPairKeyString_Short(t *testing.T) {
	k := NormalizePair("AAAAAAAAAAAAAAAA", "BBBBBBBBBBBBBBBB")
	assert.Equal(t, "AAAAAAAA.../BBBBBBBB...", k.String())
}
