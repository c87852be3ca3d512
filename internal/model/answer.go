package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// AnswerValue is a recorded answer. Single answers carry Choice, multiple
// answers carry Choices in ascending order.
type AnswerValue struct {
	Kind    QuestionKind
	Choice  int
	Choices []int
}

// SingleAnswer builds the answer for a single-choice question.
func SingleAnswer(option int) AnswerValue {
	return AnswerValue{Kind: QuestionKindSingle, Choice: option}
}

// MultipleAnswer builds the answer for a multiple-choice question.
func MultipleAnswer(options ...int) AnswerValue {
	choices := make([]int, len(options))
	copy(choices, options)
	sort.Ints(choices)
	return AnswerValue{Kind: QuestionKindMultiple, Choices: choices}
}

// Equal compares two answers by kind and selected options.
func (v AnswerValue) Equal(o AnswerValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case QuestionKindSingle:
		return v.Choice == o.Choice
	case QuestionKindMultiple:
		if len(v.Choices) != len(o.Choices) {
			return false
		}
		for i := range v.Choices {
			if v.Choices[i] != o.Choices[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders the answer as "1" or "0,2". Used for the Redis ledger mirror.
func (v AnswerValue) String() string {
	switch v.Kind {
	case QuestionKindSingle:
		return strconv.Itoa(v.Choice)
	case QuestionKindMultiple:
		parts := make([]string, len(v.Choices))
		for i, c := range v.Choices {
			parts[i] = strconv.Itoa(c)
		}
		return strings.Join(parts, ",")
	default:
		return ""
	}
}

// MarshalJSON writes a single answer as a number and a multiple answer as an array.
func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case QuestionKindSingle:
		return json.Marshal(v.Choice)
	case QuestionKindMultiple:
		if v.Choices == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.Choices)
	default:
		return nil, fmt.Errorf("marshal answer: %w: %d", ErrUnknownQuestionKind, uint8(v.Kind))
	}
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (v *AnswerValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var choices []int
		if err := json.Unmarshal(b, &choices); err != nil {
			return fmt.Errorf("unmarshal multiple answer: %w", err)
		}
		*v = MultipleAnswer(choices...)
		return nil
	}

	var choice int
	if err := json.Unmarshal(b, &choice); err != nil {
		return fmt.Errorf("unmarshal single answer: %w", err)
	}
	*v = SingleAnswer(choice)
	return nil
}
