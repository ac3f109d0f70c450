package config

import (
	"fmt"
	"math"
	"strings"
)

// ProtocolVersion selects which configuration governs a run.
type ProtocolVersion uint32

// Newest is a sentinel meaning "use the newest available configuration".
const Newest ProtocolVersion = math.MaxUint32

// LatestProtocolVersion is the highest version with its own parameter file.
const LatestProtocolVersion ProtocolVersion = 66

func (v ProtocolVersion) String() string {
	if v == Newest {
		return "newest"
	}
	return fmt.Sprintf("%d", uint32(v))
}

// ProtocolFeature names a behavior change activated at a protocol version.
type ProtocolFeature int

const (
	// FeatureLowerLoadingCost lowers the per-byte contract loading cost.
	FeatureLowerLoadingCost ProtocolFeature = iota + 1

	// FeaturePrepareV2 switches the preparation pipeline to V2.
	FeaturePrepareV2

	// FeatureIncreasedMemoryLimit raises max_memory_pages.
	FeatureIncreasedMemoryLimit
)

var features = []struct {
	feature ProtocolFeature
	name    string
	version ProtocolVersion
}{
	{FeatureLowerLoadingCost, "lower_loading_cost", 62},
	{FeaturePrepareV2, "prepare_v2", 64},
	{FeatureIncreasedMemoryLimit, "increased_memory_limit", 66},
}

// ProtocolVersion returns the first version at which f is active.
func (f ProtocolFeature) ProtocolVersion() ProtocolVersion {
	for _, e := range features {
		if e.feature == f {
			return e.version
		}
	}
	panic(fmt.Sprintf("unknown protocol feature %d", int(f)))
}

func (f ProtocolFeature) String() string {
	for _, e := range features {
		if e.feature == f {
			return e.name
		}
	}
	return fmt.Sprintf("ProtocolFeature(%d)", int(f))
}

// Features lists every known feature in activation order.
func Features() []ProtocolFeature {
	out := make([]ProtocolFeature, len(features))
	for i, e := range features {
		out[i] = e.feature
	}
	return out
}

// ParseFeature looks a feature up by its snake_case name.
func ParseFeature(name string) (ProtocolFeature, error) {
	for _, e := range features {
		if e.name == strings.ToLower(name) {
			return e.feature, nil
		}
	}
	return 0, fmt.Errorf("unknown protocol feature %q", name)
}
