package model

import "strings"

// Colour names used by the banding rules.
const (
	ColourRed    = "red"
	ColourAmber  = "amber"
	ColourYellow = "yellow"
	ColourGreen  = "green"
	ColourBlue   = "blue"
	ColourWhite  = "white"
	ColourGrey   = "grey"
)

// Palette maps colour names to ARGB hex strings.
type Palette map[string]string

// DefaultPalette returns the built-in colours.
func DefaultPalette() Palette {
	return Palette{
		ColourRed:    "FFE47373",
		ColourAmber:  "FFFFB74D",
		ColourYellow: "FFFFF176",
		ColourGreen:  "FF81C784",
		ColourBlue:   "FF4FC3F7",
		ColourWhite:  "FFFFFFFF",
		ColourGrey:   "FFC0C0C0",
	}
}

// Get returns the hex for a colour name, falling back to the default palette.
func (p Palette) Get(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if v, ok := p[key]; ok && v != "" {
		return v
	}
	return DefaultPalette()[key]
}

// Merge overlays the given entries on a copy of p.
func (p Palette) Merge(other map[string]string) Palette {
	out := make(Palette, len(p)+len(other))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range other {
		out[strings.ToLower(strings.TrimSpace(k))] = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(v), "#"))
	}
	return out
}
