package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
exams:
  - id: rn-cert
    title: React Native Certification Exam
    course: Mobile Development
    duration_seconds: 3600
    questions:
      - id: 1
        text: What is React Native?
        type: single
        options: [A web framework, A mobile framework, A database, A language]
      - id: 2
        text: Which are core components?
        type: multiple
        options: [View, Text, Div, StyleSheet, Image]
  - id: quiz-3
    title: Quiz 3
    duration_seconds: 600
    entry_token_hash: "$2a$06$abcdefghijklmnopqrstuu"
    questions:
      - id: 1
        text: Pick one
        type: single
        options: ["yes", "no"]
`

func TestParseFileCatalog(t *testing.T) {
	c, err := ParseFileCatalog(strings.NewReader(sampleCatalog), "yaml")
	require.NoError(t, err)

	list, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "rn-cert", list[0].ID)
	assert.Equal(t, 2, list[0].QuestionCount)
	assert.False(t, list[0].RequiresEntryToken)
	assert.True(t, list[1].RequiresEntryToken)

	def, err := c.Get(context.Background(), "rn-cert")
	require.NoError(t, err)
	assert.Equal(t, 3600, def.DurationSeconds)
	assert.Equal(t, model.QuestionKindMultiple, def.Questions[1].Kind)
	assert.Equal(t, []string{"View", "Text", "Div", "StyleSheet", "Image"}, def.Questions[1].Options)
}

func TestFileCatalogGetUnknown(t *testing.T) {
	c, err := ParseFileCatalog(strings.NewReader(sampleCatalog), "yaml")
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrExamNotFound))
}

func TestLoadFileCatalogFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exams.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o600))

	c, err := LoadFileCatalog(path)
	require.NoError(t, err)
	assert.Len(t, c.Definitions(), 2)
}

func TestParseFileCatalogRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown kind": `
exams:
  - id: x
    title: X
    duration_seconds: 60
    questions:
      - {id: 1, text: q, type: essay, options: [a, b]}
`,
		"one option": `
exams:
  - id: x
    title: X
    duration_seconds: 60
    questions:
      - {id: 1, text: q, type: single, options: [a]}
`,
		"zero duration": `
exams:
  - id: x
    title: X
    duration_seconds: 0
    questions:
      - {id: 1, text: q, type: single, options: [a, b]}
`,
		"duplicate question": `
exams:
  - id: x
    title: X
    duration_seconds: 60
    questions:
      - {id: 1, text: q, type: single, options: [a, b]}
      - {id: 1, text: r, type: single, options: [a, b]}
`,
		"duplicate exam": `
exams:
  - id: x
    title: X
    duration_seconds: 60
    questions:
      - {id: 1, text: q, type: single, options: [a, b]}
  - id: x
    title: Y
    duration_seconds: 60
    questions:
      - {id: 1, text: q, type: single, options: [a, b]}
`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFileCatalog(strings.NewReader(raw), "yaml")
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrInvalidExam), err.Error())
		})
	}
}
