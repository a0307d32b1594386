package slam

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRangeNoise(t *testing.T) {
	assert.IsType(t, NoRangeNoise{}, NewRangeNoise(0, rand.NewPCG(1, 2)))
	assert.IsType(t, &MultiplicativeNoise{}, NewRangeNoise(0.2, rand.NewPCG(1, 2)))
	assert.Equal(t, 12.5, NoRangeNoise{}.Perturb(12.5))
}

func TestMultiplicativeNoiseBoundedAndSeeded(t *testing.T) {
	a := NewMultiplicativeNoise(0.25, rand.NewPCG(7, 8))
	b := NewMultiplicativeNoise(0.25, rand.NewPCG(7, 8))
	for i := 0; i < 200; i++ {
		va := a.Perturb(10)
		assert.GreaterOrEqual(t, va, 7.5)
		assert.LessOrEqual(t, va, 12.5)
		assert.Equal(t, va, b.Perturb(10), "same seed, same sequence")
	}
}

func TestJointNoisePerturbSharesOneFactor(t *testing.T) {
	n := NewJointNoise(0.9, rand.NewPCG(1, 0xbf58476d1ce4e5b9))
	delta := NewVec(0.1, -0.2, 0.4)
	for i := 0; i < 50; i++ {
		got := n.Perturb(delta)
		f := got.Index(0) / delta.Index(0)
		assert.GreaterOrEqual(t, f, 0.1-1e-12)
		assert.LessOrEqual(t, f, 1.9+1e-12)
		assert.InDelta(t, f*delta.Index(1), got.Index(1), 1e-12)
		assert.InDelta(t, f*delta.Index(2), got.Index(2), 1e-12)
	}
	assert.Equal(t, []float64{0.1, -0.2, 0.4}, delta.Values(), "input untouched")
}

func TestJointNoiseZeroScaleIsExact(t *testing.T) {
	n := NewJointNoise(0, rand.NewPCG(1, 2))
	delta := NewVec(0.3, 0.6)
	assert.Equal(t, delta.Values(), n.Perturb(delta).Values())
}

func TestJointNoiseKick(t *testing.T) {
	n := NewJointNoise(0.5, rand.NewPCG(9, 9))
	k := n.Kick(4, 0.3)
	assert.Equal(t, 4, k.Rows())
	nonZero := false
	for _, v := range k.Values() {
		assert.LessOrEqual(t, v, 0.3)
		assert.GreaterOrEqual(t, v, -0.3)
		if v != 0 {
			nonZero = true
		}
	}
	assert.True(t, nonZero)
}

func TestJointNoiseKickSeededAndZeroScale(t *testing.T) {
	a := NewJointNoise(0.5, rand.NewPCG(4, 2))
	b := NewJointNoise(0.5, rand.NewPCG(4, 2))
	assert.Equal(t, a.Kick(3, 0.2).Values(), b.Kick(3, 0.2).Values())
	assert.Equal(t, []float64{0, 0, 0}, a.Kick(3, 0).Values())
}
