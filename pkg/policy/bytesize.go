package policy

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	// Packages
	yaml "gopkg.in/yaml.v3"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// ByteSize is a size in bytes which can be written as a plain integer or
// with a binary unit suffix, for example "5MB" or "512KiB".
type ByteSize int64

var units = []struct {
	suffix string
	size   ByteSize
}{
	{"GIB", GiB}, {"GB", GiB}, {"G", GiB},
	{"MIB", MiB}, {"MB", MiB}, {"M", MiB},
	{"KIB", KiB}, {"KB", KiB}, {"K", KiB},
	{"B", 1},
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// ParseByteSize parses a size such as "10MB", "1.5GB" or "2048".
func ParseByteSize(s string) (ByteSize, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	mult := ByteSize(1)
	for _, unit := range units {
		if before, ok := strings.CutSuffix(v, unit.suffix); ok {
			v, mult = strings.TrimSpace(before), unit.size
			break
		}
	}
	if v == "" {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("invalid size %q", s)
		}
		return ByteSize(n) * mult, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return ByteSize(f * float64(mult)), nil
}

func (b ByteSize) String() string {
	switch {
	case b >= GiB && b%GiB == 0:
		return fmt.Sprintf("%dGB", b/GiB)
	case b >= MiB && b%MiB == 0:
		return fmt.Sprintf("%dMB", b/MiB)
	case b >= KiB && b%KiB == 0:
		return fmt.Sprintf("%dKB", b/KiB)
	default:
		return fmt.Sprintf("%dB", int64(b))
	}
}

// UnmarshalText is used when parsing command-line flags.
func (b *ByteSize) UnmarshalText(text []byte) error {
	v, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

func (b ByteSize) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(b))
}

func (b *ByteSize) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*b = ByteSize(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return b.UnmarshalText([]byte(s))
}

func (b ByteSize) MarshalYAML() (any, error) {
	return b.String(), nil
}

func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: size must be a scalar", node.Line)
	}
	if err := b.UnmarshalText([]byte(node.Value)); err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	return nil
}
