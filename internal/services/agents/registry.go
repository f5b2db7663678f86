package agents

import (
	"fmt"
	"time"

	domsvc "Areopagus/internal/domain/service"
	"Areopagus/internal/services/analytics"
)

// Kinds accepted in Spec.Kind.
const (
	KindTrend      = "trend"
	KindOscillator = "oscillator"
	KindVolume     = "volume"
	KindRemote     = "remote"
)

// Spec describes one configured agent.
type Spec struct {
	Name    string        `yaml:"name"`
	Kind    string        `yaml:"kind"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout" default:"3s"`
}

// DefaultSpecs is the technical trio used when nothing is configured.
func DefaultSpecs() []Spec {
	return []Spec{
		{Name: TrendName, Kind: KindTrend},
		{Name: OscillatorName, Kind: KindOscillator},
		{Name: VolumeName, Kind: KindVolume},
	}
}

// Build creates a fresh agent set. Agents keep per-symbol history, so each
// symbol needs its own set.
func Build(specs []Spec, opts ...analytics.ServiceOption) ([]domsvc.Agent, error) {
	out := make([]domsvc.Agent, 0, len(specs))
	seen := make(map[string]struct{}, len(specs))
	for _, s := range specs {
		a, err := build(s, opts...)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[a.Name()]; dup {
			return nil, fmt.Errorf("duplicate agent name %q", a.Name())
		}
		seen[a.Name()] = struct{}{}
		out = append(out, a)
	}
	return out, nil
}

// Names returns the agent names specs would produce, in order.
func Names(specs []Spec) []string {
	names := make([]string, 0, len(specs))
	for _, s := range specs {
		names = append(names, nameOf(s))
	}
	return names
}

// nameOf ignores Name for technical kinds; their names are fixed.
func nameOf(s Spec) string {
	switch s.Kind {
	case KindTrend:
		return TrendName
	case KindOscillator:
		return OscillatorName
	case KindVolume:
		return VolumeName
	}
	return s.Name
}

func build(s Spec, opts ...analytics.ServiceOption) (domsvc.Agent, error) {
	switch s.Kind {
	case KindTrend:
		return NewTrendAgent(), nil
	case KindOscillator:
		return NewOscillatorAgent(), nil
	case KindVolume:
		return NewVolumeAgent(), nil
	case KindRemote:
		if s.Name == "" || s.URL == "" {
			return nil, fmt.Errorf("remote agent needs name and url")
		}
		return NewRemoteAgent(s.Name, s.URL, s.Timeout, opts...), nil
	default:
		return nil, fmt.Errorf("unknown agent kind %q", s.Kind)
	}
}
