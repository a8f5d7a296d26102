package permission

import "strings"

// Level is a module permission grant. Levels are totally ordered.
type Level uint8

const (
	// LevelNone grants nothing. It is the zero value and the safe default.
	LevelNone Level = iota
	// LevelView allows reading module records.
	LevelView
	// LevelEdit allows creating and updating module records.
	LevelEdit
	// LevelFull allows every module operation, including deletion.
	LevelFull
)

// ParseLevel maps the wire representation of a level to a [Level].
// Unknown or empty values map to [LevelNone].
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "view":
		return LevelView
	case "edit":
		return LevelEdit
	case "full":
		return LevelFull
	default:
		return LevelNone
	}
}

// String returns the wire representation of l.
func (l Level) String() string {
	switch l {
	case LevelView:
		return "view"
	case LevelEdit:
		return "edit"
	case LevelFull:
		return "full"
	default:
		return "none"
	}
}

// Satisfies reports whether l meets the required level.
func (l Level) Satisfies(required Level) bool {
	return l >= required
}
