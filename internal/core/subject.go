package core

import (
	"fmt"
	"strings"
)

// Subject is one of the fixed exam subjects.
type Subject string

const (
	Mathematics Subject = "Mathematics"
	English     Subject = "English"
	Physics     Subject = "Physics"
	Chemistry   Subject = "Chemistry"
	Biology     Subject = "Biology"
)

// subjects is the closed subject set in its defined order.
var subjects = [...]Subject{Mathematics, English, Physics, Chemistry, Biology}

// Subjects returns every subject in the fixed enumeration order.
// The returned slice is a copy and may be modified by the caller.
func Subjects() []Subject {
	out := make([]Subject, len(subjects))
	copy(out, subjects[:])
	return out
}

// Valid reports whether s belongs to the fixed subject set.
func (s Subject) Valid() bool {
	for _, known := range subjects {
		if s == known {
			return true
		}
	}
	return false
}

func (s Subject) String() string {
	return string(s)
}

// Key returns the lowercase storage key fragment for the subject.
func (s Subject) Key() string {
	return strings.ToLower(string(s))
}

// ParseSubject resolves a subject name case-insensitively.
func ParseSubject(name string) (Subject, error) {
	name = strings.TrimSpace(name)
	for _, known := range subjects {
		if strings.EqualFold(name, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSubject, name)
}
