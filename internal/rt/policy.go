// internal/rt/policy.go

package rt

import (
	"fmt"
	"strings"
)

// Policy names one of the scheduling disciplines compiled into the kernel.
// The values are part of the kernel ABI.
type Policy int32

const (
	PolicyLinux        Policy = 0
	PolicyPfair        Policy = 1
	PolicyPfairStagger Policy = 2
	PolicyPartEDF      Policy = 3
	PolicyPartEEVDF    Policy = 4
	PolicyGlobalEDF    Policy = 5
	PolicyPfairDesync  Policy = 6
	PolicyGlobalEDFNP  Policy = 7
	PolicyCustom       Policy = 8
	PolicyEDFHSB       Policy = 9
	PolicyGSNEDF       Policy = 10
	PolicyPSNEDF       Policy = 11
	firstPolicy               = PolicyLinux
	lastPolicy                = PolicyPSNEDF
)

// Policies returns every declared policy in ABI order.
func Policies() []Policy {
	out := make([]Policy, 0, lastPolicy-firstPolicy+1)
	for p := firstPolicy; p <= lastPolicy; p++ {
		out = append(out, p)
	}
	return out
}

// String returns the human readable name of the policy, "Unknown" for
// values the kernel does not declare.
func (p Policy) String() string {
	switch p {
	case PolicyLinux:
		return "Linux"
	case PolicyPfair:
		return "Pfair"
	case PolicyPfairStagger:
		return "Pfair (staggered)"
	case PolicyPartEDF:
		return "Partitioned EDF"
	case PolicyPartEEVDF:
		return "Partitioned EEVDF"
	case PolicyGlobalEDF:
		return "Global EDF"
	case PolicyPfairDesync:
		return "Pfair (desynchronized)"
	case PolicyGlobalEDFNP:
		return "Global EDF (non-preemptive)"
	case PolicyCustom:
		return "Custom"
	case PolicyEDFHSB:
		return "EDF-HSB"
	case PolicyGSNEDF:
		return "GSN-EDF"
	case PolicyPSNEDF:
		return "PSN-EDF"
	default:
		return "Unknown"
	}
}

// Valid reports whether p is one of the declared policies.
func (p Policy) Valid() bool { return p >= firstPolicy && p <= lastPolicy }

var policyKeys = map[string]Policy{
	"linux":         PolicyLinux,
	"pfair":         PolicyPfair,
	"pfair-stagger": PolicyPfairStagger,
	"part-edf":      PolicyPartEDF,
	"part-eevdf":    PolicyPartEEVDF,
	"global-edf":    PolicyGlobalEDF,
	"pfair-desync":  PolicyPfairDesync,
	"global-edf-np": PolicyGlobalEDFNP,
	"custom":        PolicyCustom,
	"edf-hsb":       PolicyEDFHSB,
	"gsn-edf":       PolicyGSNEDF,
	"psn-edf":       PolicyPSNEDF,
}

// ParsePolicy maps a configuration key such as "gsn-edf" to its policy.
func ParsePolicy(s string) (Policy, error) {
	p, ok := policyKeys[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
	return p, nil
}
