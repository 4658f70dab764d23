package chunk

import (
	"fmt"
	"strings"
)

type Position string

const (
	PositionNaka  Position = "NAKA"
	PositionShita Position = "SHITA"
	PositionUe    Position = "UE"
)

type Size string

const (
	SizeMedium Size = "MEDIUM"
	SizeSmall  Size = "SMALL"
	SizeBig    Size = "BIG"
)

type Font string

const (
	FontDefont Font = "DEFONT"
	FontMincho Font = "MINCHO"
	FontGothic Font = "GOTHIC"
)

type Opacity string

const (
	OpacityNormal      Opacity = "NORMAL"
	OpacityTranslucent Opacity = "TRANSLUCENT"
)

type FullColor struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Modifier is the structured display annotation of a comment. Zero values
// mean the protocol default.
type Modifier struct {
	Position   Position   `json:"position,omitempty"`
	Size       Size       `json:"size,omitempty"`
	NamedColor string     `json:"namedColor,omitempty"`
	FullColor  *FullColor `json:"fullColor,omitempty"`
	Font       Font       `json:"font,omitempty"`
	Opacity    Opacity    `json:"opacity,omitempty"`
}

// namedColors maps protocol color names to their legacy mail tokens. White
// is the default and has no token.
var namedColors = map[string]string{
	"WHITE":           "",
	"RED":             "red",
	"PINK":            "pink",
	"ORANGE":          "orange",
	"YELLOW":          "yellow",
	"GREEN":           "green",
	"CYAN":            "cyan",
	"BLUE":            "blue",
	"PURPLE":          "purple",
	"BLACK":           "black",
	"NICONICO_WHITE":  "white2",
	"TRUE_RED":        "red2",
	"PINK2":           "pink2",
	"PASSION_ORANGE":  "orange2",
	"MADYELLOW":       "yellow2",
	"ELEMENTAL_GREEN": "green2",
	"CYAN2":           "cyan2",
	"MARINE_BLUE":     "blue2",
	"NOBLE_VIOLET":    "purple2",
	"BLACK2":          "black2",
}

// ConvertModifierToMail renders a modifier as the legacy space separated
// mail command string. Consumers parse this string, so the token set and
// order are fixed: position, size, color, font, opacity.
func ConvertModifierToMail(m *Modifier) string {
	if m == nil {
		return ""
	}
	tokens := make([]string, 0, 5)

	switch Position(strings.ToUpper(string(m.Position))) {
	case PositionUe:
		tokens = append(tokens, "ue")
	case PositionShita:
		tokens = append(tokens, "shita")
	}

	switch Size(strings.ToUpper(string(m.Size))) {
	case SizeBig:
		tokens = append(tokens, "big")
	case SizeSmall:
		tokens = append(tokens, "small")
	}

	if color, ok := colorToken(m); ok && color != "" {
		tokens = append(tokens, color)
	}

	switch Font(strings.ToUpper(string(m.Font))) {
	case FontMincho:
		tokens = append(tokens, "mincho")
	case FontGothic:
		tokens = append(tokens, "gothic")
	}

	if Opacity(strings.ToUpper(string(m.Opacity))) == OpacityTranslucent {
		tokens = append(tokens, "_live")
	}
	return strings.Join(tokens, " ")
}

func colorToken(m *Modifier) (string, bool) {
	if m.NamedColor != "" {
		if token, ok := namedColors[strings.ToUpper(m.NamedColor)]; ok {
			return token, true
		}
	}
	if m.FullColor != nil {
		c := m.FullColor
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B), true
	}
	return "", false
}
