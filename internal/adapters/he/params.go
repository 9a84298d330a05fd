package he

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

// Preset names a CKKS parameter set.
type Preset string

const (
	// PresetN13 has 4096 slots and two multiplicative levels. The 60-bit
	// base modulus leaves about 2^20 of headroom above the 2^40 scale,
	// enough for sums over a large number of normalized contributions.
	PresetN13 Preset = "n13"
	// PresetN14 has 8192 slots and six multiplicative levels.
	PresetN14 Preset = "n14"

	// DefaultPreset is used when no preset is configured.
	DefaultPreset = PresetN13
)

func parametersLiteral(p Preset) (ckks.ParametersLiteral, error) {
	switch p {
	case "", PresetN13:
		return ckks.ParametersLiteral{
			LogN:            13,
			LogQ:            []int{60, 40, 40},
			LogP:            []int{60},
			LogDefaultScale: 40,
		}, nil
	case PresetN14:
		return ckks.ParametersLiteral{
			LogN:            14,
			LogQ:            []int{60, 40, 40, 40, 40, 40, 40},
			LogP:            []int{60, 60},
			LogDefaultScale: 40,
		}, nil
	default:
		return ckks.ParametersLiteral{}, fmt.Errorf("unknown parameter preset %q", p)
	}
}
