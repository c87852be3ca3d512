package examsession

import (
	"fmt"
	"sort"

	"github.com/stemsi/exstem-session/internal/model"
)

// Ledger stores the answers of one attempt.
//
// A single-choice entry is written once and never changes. A multiple-choice
// entry is a set of option indices; the entry disappears when its last option
// is toggled off.
type Ledger struct {
	questions map[int]model.Question
	choices   map[int]int
	sets      map[int]map[int]struct{}
}

// NewLedger creates an empty ledger over the given questions.
func NewLedger(questions []model.Question) *Ledger {
	l := &Ledger{
		questions: make(map[int]model.Question, len(questions)),
		choices:   make(map[int]int),
		sets:      make(map[int]map[int]struct{}),
	}
	for _, q := range questions {
		l.questions[q.ID] = q
	}
	return l
}

// Record applies one option pick to a question. It reports whether the ledger
// changed; a repeat pick on a locked single-choice question is a no-op.
func (l *Ledger) Record(questionID, option int) (bool, error) {
	q, ok := l.questions[questionID]
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrUnknownQuestion, questionID)
	}
	if !q.HasOption(option) {
		return false, fmt.Errorf("%w: question %d has %d options, got index %d",
			ErrOptionOutOfRange, questionID, len(q.Options), option)
	}

	switch q.Kind {
	case model.QuestionKindSingle:
		if _, locked := l.choices[questionID]; locked {
			return false, nil
		}
		l.choices[questionID] = option
		return true, nil

	case model.QuestionKindMultiple:
		set := l.sets[questionID]
		if _, on := set[option]; on {
			delete(set, option)
			if len(set) == 0 {
				delete(l.sets, questionID)
			}
			return true, nil
		}
		if set == nil {
			set = make(map[int]struct{})
			l.sets[questionID] = set
		}
		set[option] = struct{}{}
		return true, nil

	default:
		return false, fmt.Errorf("question %d: %w", questionID, model.ErrUnknownQuestionKind)
	}
}

// Knows reports whether questionID belongs to the exam.
func (l *Ledger) Knows(questionID int) bool {
	_, ok := l.questions[questionID]
	return ok
}

// Answered reports whether a ledger entry exists for questionID.
func (l *Ledger) Answered(questionID int) bool {
	if _, ok := l.choices[questionID]; ok {
		return true
	}
	_, ok := l.sets[questionID]
	return ok
}

// Get returns the recorded answer for questionID.
func (l *Ledger) Get(questionID int) (model.AnswerValue, bool) {
	if c, ok := l.choices[questionID]; ok {
		return model.SingleAnswer(c), true
	}
	if set, ok := l.sets[questionID]; ok {
		return model.MultipleAnswer(keys(set)...), true
	}
	return model.AnswerValue{}, false
}

// Count returns the number of answered questions.
func (l *Ledger) Count() int {
	return len(l.choices) + len(l.sets)
}

// Snapshot copies the ledger into a plain map.
func (l *Ledger) Snapshot() map[int]model.AnswerValue {
	out := make(map[int]model.AnswerValue, l.Count())
	for id, c := range l.choices {
		out[id] = model.SingleAnswer(c)
	}
	for id, set := range l.sets {
		out[id] = model.MultipleAnswer(keys(set)...)
	}
	return out
}

func keys(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
