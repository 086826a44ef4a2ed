// Package routing weights a street graph by risk tier and finds the
// cheapest path through it.
package routing

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Profile selects how strongly a route avoids risky streets.
type Profile string

// Profiles.
const (
	ProfileDefault Profile = "default"
	ProfileSafer   Profile = "safer"
	ProfileSafest  Profile = "safest"
)

// Profiles lists every profile from least to most cautious.
var Profiles = []Profile{ProfileDefault, ProfileSafer, ProfileSafest}

// ParseProfile accepts a profile name case-insensitively. Empty means default.
func ParseProfile(s string) (Profile, error) {
	switch p := Profile(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ProfileDefault, nil
	case ProfileDefault, ProfileSafer, ProfileSafest:
		return p, nil
	default:
		return "", eris.Errorf("routing: unknown profile %q", s)
	}
}

// Tier is a nested risk class: every unsafe node is also safer and safest.
type Tier string

// Tiers, from widest to narrowest.
const (
	TierSafest Tier = "safest" // score ≥ p25
	TierSafer  Tier = "safer"  // score ≥ p75
	TierUnsafe Tier = "unsafe" // score ≥ p90
)

// Stage multiplies the length of every edge touching a tier.
type Stage struct {
	Tier   Tier    `mapstructure:"tier" yaml:"tier"`
	Factor float64 `mapstructure:"factor" yaml:"factor"`
}

// Policy maps a profile to the stages applied in order. Stages compound: an
// edge touching an unsafe node under the default safest chain is scaled
// ×10, then ×2, then ×2.
type Policy map[Profile][]Stage

// DefaultPolicy returns the built-in chains. Effective multipliers are
// safer ×10 (×20 when unsafe) and safest ×10/×20/×40 for the
// safest/safer/unsafe tiers.
func DefaultPolicy() Policy {
	return Policy{
		ProfileDefault: nil,
		ProfileSafer: {
			{Tier: TierSafer, Factor: 10},
			{Tier: TierUnsafe, Factor: 2},
		},
		ProfileSafest: {
			{Tier: TierSafest, Factor: 10},
			{Tier: TierSafer, Factor: 2},
			{Tier: TierUnsafe, Factor: 2},
		},
	}
}

// Validate rejects unknown tiers and factors below 1.
func (p Policy) Validate() error {
	for profile, stages := range p {
		for _, s := range stages {
			switch s.Tier {
			case TierSafest, TierSafer, TierUnsafe:
			default:
				return eris.Errorf("routing: profile %s: unknown tier %q", profile, s.Tier)
			}
			if s.Factor < 1 {
				return eris.Errorf("routing: profile %s: factor %f below 1", profile, s.Factor)
			}
		}
	}
	return nil
}

// Config holds routing knobs.
type Config struct {
	Policy Policy
	// ColdF and HotF bound the comfortable temperature range in °F.
	ColdF float64
	HotF  float64
	// ExtremeScale multiplies node scores in extreme temperatures.
	ExtremeScale float64
	// RegionFactor scales the endpoint distance into the unbounded radius.
	RegionFactor float64
	// RegionEarthRadius is the sphere radius in meters used for region sizing.
	RegionEarthRadius float64
	// MaxRegionMeters caps the unbounded radius; zero disables the guard.
	MaxRegionMeters float64
}

// DefaultConfig returns the built-in routing settings.
func DefaultConfig() Config {
	return Config{
		Policy:            DefaultPolicy(),
		ColdF:             20,
		HotF:              95,
		ExtremeScale:      0.75,
		RegionFactor:      1.2,
		RegionEarthRadius: 6367000,
		MaxRegionMeters:   25000,
	}
}

// IsExtreme reports whether tempF lies outside [ColdF, HotF].
func IsExtreme(tempF float64, cfg Config) bool {
	return tempF < cfg.ColdF || tempF > cfg.HotF
}
