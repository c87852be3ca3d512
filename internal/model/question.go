package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownQuestionKind is returned for a question kind outside the known set.
var ErrUnknownQuestionKind = errors.New("unknown question kind")

// QuestionKind selects how a question accepts answers.
type QuestionKind uint8

const (
	// QuestionKindSingle accepts exactly one option. The first pick is final.
	QuestionKindSingle QuestionKind = iota + 1
	// QuestionKindMultiple accepts any subset of options, toggled one at a time.
	QuestionKindMultiple
)

// ParseQuestionKind converts the catalog spelling ("single", "multiple").
func ParseQuestionKind(s string) (QuestionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single":
		return QuestionKindSingle, nil
	case "multiple":
		return QuestionKindMultiple, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownQuestionKind, s)
	}
}

func (k QuestionKind) String() string {
	switch k {
	case QuestionKindSingle:
		return "single"
	case QuestionKindMultiple:
		return "multiple"
	default:
		return fmt.Sprintf("QuestionKind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the declared kinds.
func (k QuestionKind) Valid() bool {
	switch k {
	case QuestionKindSingle, QuestionKindMultiple:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k QuestionKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownQuestionKind, uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *QuestionKind) UnmarshalText(b []byte) error {
	parsed, err := ParseQuestionKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Question is a single exam question as shown to the student.
type Question struct {
	ID      int          `json:"id"`
	Text    string       `json:"text"`
	Kind    QuestionKind `json:"type"`
	Options []string     `json:"options"`
}

// HasOption reports whether option is a valid index into q.Options.
func (q Question) HasOption(option int) bool {
	return option >= 0 && option < len(q.Options)
}
