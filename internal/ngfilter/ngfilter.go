package ngfilter

import (
	"fmt"
	"math"
	"strings"
)

type Level string

const (
	LevelNone Level = "none"
	LevelLow  Level = "low"
	LevelMid  Level = "mid"
	LevelHigh Level = "high"
)

// Policy decides which chat comments are hidden locally.
type Policy struct {
	Level         Level `json:"level"`
	ShowAnonymous bool  `json:"showAnonymous"`
}

func DefaultPolicy() Policy {
	return Policy{Level: LevelMid, ShowAnonymous: true}
}

// Threshold is the score a comment must exceed to be shown. An unknown
// level filters like none.
func Threshold(level Level) float64 {
	switch level {
	case LevelLow:
		return -10000
	case LevelMid:
		return -4800
	case LevelHigh:
		return -1000
	}
	return math.Inf(-1)
}

func Passes(score int, anonymous bool, policy Policy) bool {
	if float64(score) <= Threshold(policy.Level) {
		return false
	}
	return policy.ShowAnonymous || !anonymous
}

func ParseLevel(value string) (Level, error) {
	switch level := Level(strings.ToLower(strings.TrimSpace(value))); level {
	case LevelNone, LevelLow, LevelMid, LevelHigh:
		return level, nil
	}
	return "", fmt.Errorf("unknown ng level %q", value)
}
