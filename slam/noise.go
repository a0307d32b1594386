package slam

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// RangeNoise perturbs a measured range before it enters the noisy cloud.
type RangeNoise interface {
	Perturb(distance float64) float64
}

// NoRangeNoise copies ranges unchanged.
type NoRangeNoise struct{}

// Perturb returns distance unchanged.
func (NoRangeNoise) Perturb(distance float64) float64 { return distance }

// MultiplicativeNoise scales each range by a factor drawn uniformly from
// [1 - HalfWidth, 1 + HalfWidth].
type MultiplicativeNoise struct {
	HalfWidth float64
	factor    distuv.Uniform
}

// NewMultiplicativeNoise returns a seeded multiplicative range perturbation.
func NewMultiplicativeNoise(halfWidth float64, src rand.Source) *MultiplicativeNoise {
	return &MultiplicativeNoise{
		HalfWidth: halfWidth,
		factor:    distuv.Uniform{Min: 1 - halfWidth, Max: 1 + halfWidth, Src: src},
	}
}

// Perturb scales distance by a random factor.
func (n *MultiplicativeNoise) Perturb(distance float64) float64 {
	if n.HalfWidth == 0 {
		return distance
	}
	return distance * n.factor.Rand()
}

// NewRangeNoise picks the noise model for a configured half-width.
func NewRangeNoise(halfWidth float64, src rand.Source) RangeNoise {
	if halfWidth <= 0 {
		return NoRangeNoise{}
	}
	return NewMultiplicativeNoise(halfWidth, src)
}

// JointNoise draws the per-tick odometry scale factor applied to commanded
// joint motion, uniform in [1 - scale, 1 + scale].
type JointNoise struct {
	scale  float64
	factor distuv.Uniform
	src    rand.Source
}

// NewJointNoise returns a seeded odometry noise source.
func NewJointNoise(scale float64, src rand.Source) *JointNoise {
	return &JointNoise{
		scale:  scale,
		factor: distuv.Uniform{Min: 1 - scale, Max: 1 + scale, Src: src},
		src:    src,
	}
}

// Perturb scales a commanded joint delta by one shared random factor.
func (n *JointNoise) Perturb(delta Mat) Mat {
	if n.scale == 0 {
		return delta.Clone()
	}
	return delta.Scale(n.factor.Rand())
}

// Kick returns a vector of independent offsets uniform in [-scale, scale].
func (n *JointNoise) Kick(dof int, scale float64) Mat {
	out := NewMat(dof, 1)
	if scale == 0 {
		return out
	}
	offset := distuv.Uniform{Min: -scale, Max: scale, Src: n.src}
	for i := 0; i < dof; i++ {
		out.SetIndex(i, offset.Rand())
	}
	return out
}
