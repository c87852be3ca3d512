package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuestionKind(t *testing.T) {
	k, err := ParseQuestionKind(" Multiple ")
	require.NoError(t, err)
	assert.Equal(t, QuestionKindMultiple, k)

	_, err = ParseQuestionKind("essay")
	assert.ErrorIs(t, err, ErrUnknownQuestionKind)

	_, err = QuestionKind(9).MarshalText()
	assert.ErrorIs(t, err, ErrUnknownQuestionKind)
}

func TestQuestionJSONUsesKindName(t *testing.T) {
	q := Question{ID: 2, Text: "pick", Kind: QuestionKindMultiple, Options: []string{"a", "b"}}
	raw, err := json.Marshal(q)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":2,"text":"pick","type":"multiple","options":["a","b"]}`, string(raw))

	var back Question
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, q, back)
}

func TestAnswerValueJSONShape(t *testing.T) {
	answers := map[int]AnswerValue{
		1: SingleAnswer(1),
		2: MultipleAnswer(2, 0),
	}
	raw, err := json.Marshal(answers)
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":1,"2":[0,2]}`, string(raw))

	var back map[int]AnswerValue
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back[1].Equal(answers[1]))
	assert.True(t, back[2].Equal(answers[2]))
	assert.Equal(t, "0,2", back[2].String())
}

func TestExamDefinitionValidate(t *testing.T) {
	valid := func() *ExamDefinition {
		return &ExamDefinition{
			ID:              "quiz",
			DurationSeconds: 60,
			Questions: []Question{
				{ID: 1, Kind: QuestionKindSingle, Options: []string{"a", "b"}},
				{ID: 2, Kind: QuestionKindMultiple, Options: []string{"a", "b", "c"}},
			},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(e *ExamDefinition)
	}{
		{"zero duration", func(e *ExamDefinition) { e.DurationSeconds = 0 }},
		{"no questions", func(e *ExamDefinition) { e.Questions = nil }},
		{"duplicate id", func(e *ExamDefinition) { e.Questions[1].ID = 1 }},
		{"zero id", func(e *ExamDefinition) { e.Questions[0].ID = 0 }},
		{"one option", func(e *ExamDefinition) { e.Questions[0].Options = []string{"a"} }},
		{"unknown kind", func(e *ExamDefinition) { e.Questions[0].Kind = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid()
			tt.mutate(e)
			assert.ErrorIs(t, e.Validate(), ErrInvalidExam)
		})
	}
}

func TestSummaryHidesTokenHash(t *testing.T) {
	e := &ExamDefinition{ID: "x", Title: "X", DurationSeconds: 10, EntryTokenHash: "$2a$..."}
	s := e.Summary()
	assert.True(t, s.RequiresEntryToken)

	raw, err := json.Marshal(e)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "$2a$")
}
