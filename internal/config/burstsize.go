package config

import (
	"fmt"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"

	"relaycast/internal/relayerr"
)

var burstSizeSuffixPattern = regexp.MustCompile(`^\d+k?$`)

// BurstSize is a burst-budget value accepted either as a non-negative
// YAML integer or as a string matching `^\d+k?$` (a `k` suffix means
// "×1024"). Any other form is a configuration error (spec §6).
type BurstSize struct {
	Bytes int64
}

// ParseBurstSize implements the burst-size grammar directly, so it can
// be exercised (and its round-trip invariant tested, spec §8) without
// going through a YAML document.
func ParseBurstSize(s string) (int64, error) {
	if !burstSizeSuffixPattern.MatchString(s) {
		return 0, relayerr.New(relayerr.KindConfig, fmt.Sprintf("invalid burst_size %q: must match ^\\d+k?$", s))
	}

	kilo := false
	digits := s
	if len(s) > 0 && s[len(s)-1] == 'k' {
		kilo = true
		digits = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, relayerr.Wrap(relayerr.KindConfig, fmt.Sprintf("invalid burst_size %q", s), err)
	}
	if kilo {
		n *= 1024
	}
	return n, nil
}

// UnmarshalYAML accepts either a plain integer scalar or a string
// scalar matching the burst-size grammar.
func (b *BurstSize) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return relayerr.New(relayerr.KindConfig, "burst_size must be a scalar")
	}

	if node.Tag == "!!int" {
		n, err := strconv.ParseInt(node.Value, 10, 64)
		if err != nil {
			return relayerr.Wrap(relayerr.KindConfig, fmt.Sprintf("invalid burst_size %q", node.Value), err)
		}
		if n < 0 {
			return relayerr.New(relayerr.KindConfig, fmt.Sprintf("invalid burst_size %q: must be non-negative", node.Value))
		}
		b.Bytes = n
		return nil
	}

	n, err := ParseBurstSize(node.Value)
	if err != nil {
		return err
	}
	b.Bytes = n
	return nil
}

// MarshalYAML renders the burst size as a plain integer.
func (b BurstSize) MarshalYAML() (interface{}, error) {
	return b.Bytes, nil
}
