package tonal

import (
	"fmt"
	"math"
	"strings"

	"github.com/RyanBlaney/sonido-chords/algorithms/common"
)

// KeyProfile represents different key detection profiles
type KeyProfile int

const (
	KeyProfileKrumhansl KeyProfile = iota
	KeyProfileTemperley
	KeyProfileEDMA
)

// KeyMode represents major or minor mode
type KeyMode int

const (
	KeyModeMajor KeyMode = iota
	KeyModeMinor
)

func (m KeyMode) String() string {
	if m == KeyModeMinor {
		return "minor"
	}
	return "major"
}

func (p KeyProfile) String() string {
	switch p {
	case KeyProfileTemperley:
		return "temperley"
	case KeyProfileEDMA:
		return "edma"
	default:
		return "krumhansl"
	}
}

// ParseKeyProfile maps a profile name onto a KeyProfile
func ParseKeyProfile(name string) (KeyProfile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "krumhansl":
		return KeyProfileKrumhansl, nil
	case "temperley":
		return KeyProfileTemperley, nil
	case "edma":
		return KeyProfileEDMA, nil
	}
	return KeyProfileKrumhansl, fmt.Errorf("unknown key profile: %q", name)
}

// KeyResult is the best matching key for a chroma profile
type KeyResult struct {
	Key      int     `json:"key"`      // 0=C, 1=C#, ..., 11=B
	Mode     KeyMode `json:"mode"`     // Major or Minor
	KeyName  string  `json:"key_name"` // e.g. "A"
	Scale    string  `json:"scale"`    // "major" or "minor"
	Strength float64 `json:"strength"` // correlation with the winning profile
	Profile  string  `json:"profile"`
}

// KeyEstimator correlates chroma against rotated major and minor key profiles
type KeyEstimator struct {
	profile      KeyProfile
	majorProfile []float64
	minorProfile []float64
}

// NewKeyEstimator creates a key estimator for the given profile
func NewKeyEstimator(profile KeyProfile) *KeyEstimator {
	ke := &KeyEstimator{profile: profile}
	ke.majorProfile, ke.minorProfile = keyProfiles(profile)
	return ke
}

func keyProfiles(profile KeyProfile) (major, minor []float64) {
	switch profile {
	case KeyProfileTemperley:
		major = []float64{5.0, 2.0, 3.5, 2.0, 4.5, 4.0, 2.0, 4.5, 2.0, 3.5, 1.5, 4.0}
		minor = []float64{5.0, 2.0, 3.5, 4.5, 2.0, 4.0, 2.0, 4.5, 3.5, 2.0, 1.5, 4.0}
	case KeyProfileEDMA:
		major = []float64{17.7661, 0.145624, 14.9265, 0.160186, 19.8049, 11.3587, 0.291248, 22.062, 0.145624, 8.15494, 0.232998, 4.95122}
		minor = []float64{18.2648, 0.737619, 14.0499, 16.8599, 0.702494, 14.4362, 0.702494, 18.6161, 4.56621, 1.93186, 7.37619, 1.75623}
	default:
		major = []float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
		minor = []float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
	}
	return major, minor
}

// Estimate finds the key whose rotated profile correlates best with chroma.
// Profiles wider than 12 bins are folded onto pitch classes first.
func (ke *KeyEstimator) Estimate(chroma []float64) (KeyResult, error) {
	pcp, err := common.FoldChroma(chroma)
	if err != nil {
		return KeyResult{}, err
	}
	if !common.Finite(pcp) {
		return KeyResult{}, fmt.Errorf("chroma contains non-finite values")
	}

	best := KeyResult{Strength: math.Inf(-1), Profile: ke.profile.String()}
	for key := range 12 {
		for _, mode := range []KeyMode{KeyModeMajor, KeyModeMinor} {
			profile := ke.majorProfile
			if mode == KeyModeMinor {
				profile = ke.minorProfile
			}
			score := common.Correlation(pcp, common.Rotate(profile, key))
			if score > best.Strength {
				best.Key = key
				best.Mode = mode
				best.Strength = score
			}
		}
	}

	best.KeyName = NoteName(best.Key)
	best.Scale = best.Mode.String()
	return best, nil
}
