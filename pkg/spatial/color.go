package spatial

import (
	"fmt"
	"strings"
)

// Color is an RGB triple with components in [0, 1].
type Color [3]float32

func (c Color) String() string {
	return fmt.Sprintf("rgb(%.3f, %.3f, %.3f)", c[0], c[1], c[2])
}

// ColorFromBytes converts 0-255 components, which is how the relay palette and
// some peers encode colors.
func ColorFromBytes(r, g, b uint8) Color {
	return Color{float32(r) / 255, float32(g) / 255, float32(b) / 255}
}

// ParseHexColor parses "#rrggbb" or "rrggbb".
func ParseHexColor(s string) (Color, error) {
	var r, g, b uint8
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return ColorFromBytes(r, g, b), nil
}
