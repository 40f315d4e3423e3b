package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meta-closure/zerot/pkg/contract"
)

// Backoff strategies accepted in presets.
const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// BackoffConfig selects the wait between retries.
type BackoffConfig struct {
	Kind        string `yaml:"kind" json:"kind"`
	BaseMs      int    `yaml:"base_ms,omitempty" json:"base_ms,omitempty"`
	MaxMs       int    `yaml:"max_ms,omitempty" json:"max_ms,omitempty"`
	MaxJitterMs int    `yaml:"max_jitter_ms,omitempty" json:"max_jitter_ms,omitempty"`
	Seed        string `yaml:"seed,omitempty" json:"seed,omitempty"`
}

// Preset is a named, serializable contract.Policy.
type Preset struct {
	Layer         string         `yaml:"layer" json:"layer"`
	RetryAttempts int            `yaml:"retry_attempts" json:"retry_attempts"`
	RetryDelayMs  int            `yaml:"retry_delay_ms,omitempty" json:"retry_delay_ms,omitempty"`
	RetryOn       []string       `yaml:"retry_on,omitempty" json:"retry_on,omitempty"`
	Backoff       *BackoffConfig `yaml:"backoff,omitempty" json:"backoff,omitempty"`
}

// Presets maps preset names to presets.
type Presets map[string]Preset

// Policy converts the preset, rejecting unknown layers, categories and
// backoff kinds.
func (p Preset) Policy() (contract.Policy, error) {
	layer, err := contract.ParseLayer(p.Layer)
	if err != nil {
		return contract.Policy{}, err
	}
	policy := contract.Policy{
		Layer:         layer,
		RetryAttempts: p.RetryAttempts,
		RetryDelay:    time.Duration(p.RetryDelayMs) * time.Millisecond,
	}
	for _, name := range p.RetryOn {
		c, err := contract.ParseCategory(name)
		if err != nil {
			return contract.Policy{}, err
		}
		policy.RetryOn = append(policy.RetryOn, c)
	}

	if p.Backoff != nil {
		switch p.Backoff.Kind {
		case "", BackoffFixed:
		case BackoffExponential:
			policy.Backoff = contract.ExponentialBackoff{
				Base:      time.Duration(p.Backoff.BaseMs) * time.Millisecond,
				Max:       time.Duration(p.Backoff.MaxMs) * time.Millisecond,
				MaxJitter: time.Duration(p.Backoff.MaxJitterMs) * time.Millisecond,
				Seed:      p.Backoff.Seed,
			}
		default:
			return contract.Policy{}, fmt.Errorf("unknown backoff kind %q", p.Backoff.Kind)
		}
	}
	return policy, nil
}

// Policy returns the named preset as a policy.
func (ps Presets) Policy(name string) (contract.Policy, error) {
	p, ok := ps[name]
	if !ok {
		return contract.Policy{}, fmt.Errorf("unknown preset %q", name)
	}
	policy, err := p.Policy()
	if err != nil {
		return contract.Policy{}, fmt.Errorf("preset %q: %w", name, err)
	}
	return policy, nil
}

// DefaultPresets returns one preset per layer.
func DefaultPresets() Presets {
	return Presets{
		"presentation": {Layer: string(contract.LayerPresentation)},
		"action":       {Layer: string(contract.LayerAction)},
		"business": {
			Layer:         string(contract.LayerBusiness),
			RetryAttempts: 1,
			RetryDelayMs:  100,
			RetryOn:       []string{string(contract.CategoryNetwork)},
		},
		"data": {
			Layer:         string(contract.LayerData),
			RetryAttempts: 3,
			RetryOn:       []string{string(contract.CategoryNetwork)},
			Backoff: &BackoffConfig{
				Kind:        BackoffExponential,
				BaseMs:      50,
				MaxMs:       1000,
				MaxJitterMs: 25,
				Seed:        "data",
			},
		},
	}
}

// LoadPresets reads presets from path on top of DefaultPresets. An empty
// path returns the defaults. Every preset is validated.
func LoadPresets(path string) (Presets, error) {
	presets := DefaultPresets()
	if path == "" {
		return presets, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets file: %w", err)
	}
	var file struct {
		Presets Presets `yaml:"presets"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse presets YAML: %w", err)
	}
	for name, p := range file.Presets {
		if _, err := p.Policy(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		presets[name] = p
	}
	return presets, nil
}

// MarshalPresets renders presets in the format LoadPresets reads.
func MarshalPresets(ps Presets) ([]byte, error) {
	return yaml.Marshal(struct {
		Presets Presets `yaml:"presets"`
	}{Presets: ps})
}
