package repository

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/validator"
)

// catalogFile mirrors the on-disk layout:
//
//	exams:
//	  - id: rn-cert
//	    title: React Native Certification Exam
//	    duration_seconds: 3600
//	    questions:
//	      - id: 1
//	        text: ...
//	        type: single
//	        options: [...]
type catalogFile struct {
	Exams []examRecord `mapstructure:"exams" binding:"required,min=1,dive"`
}

type examRecord struct {
	ID              string           `mapstructure:"id" binding:"required,max=64"`
	Title           string           `mapstructure:"title" binding:"required,max=255"`
	Course          string           `mapstructure:"course" binding:"max=255"`
	DurationSeconds int              `mapstructure:"duration_seconds" binding:"required,min=1,max=86400"`
	EntryTokenHash  string           `mapstructure:"entry_token_hash"`
	Questions       []questionRecord `mapstructure:"questions" binding:"required,min=1,dive"`
}

type questionRecord struct {
	ID      int      `mapstructure:"id" binding:"required,min=1"`
	Text    string   `mapstructure:"text" binding:"required"`
	Type    string   `mapstructure:"type" binding:"required,question_kind"`
	Options []string `mapstructure:"options" binding:"required,min=2,dive,required"`
}

// FileCatalog serves exam definitions loaded once from a YAML or JSON file.
type FileCatalog struct {
	exams map[string]*model.ExamDefinition
	order []string
}

// LoadFileCatalog reads the catalog at path. The format follows the extension.
func LoadFileCatalog(path string) (*FileCatalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return decodeCatalog(v)
}

// ParseFileCatalog reads a catalog from r; format is "yaml" or "json".
func ParseFileCatalog(r io.Reader, format string) (*FileCatalog, error) {
	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return decodeCatalog(v)
}

func decodeCatalog(v *viper.Viper) (*FileCatalog, error) {
	var f catalogFile
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := validator.Struct(&f); err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidExam, describe(validator.TranslateErrors(err)))
	}

	c := &FileCatalog{exams: make(map[string]*model.ExamDefinition, len(f.Exams))}
	for _, rec := range f.Exams {
		def, err := rec.definition()
		if err != nil {
			return nil, err
		}
		if _, dup := c.exams[def.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate exam id %q", model.ErrInvalidExam, def.ID)
		}
		c.exams[def.ID] = def
		c.order = append(c.order, def.ID)
	}
	return c, nil
}

func (r examRecord) definition() (*model.ExamDefinition, error) {
	def := &model.ExamDefinition{
		ID:              r.ID,
		Title:           r.Title,
		Course:          r.Course,
		DurationSeconds: r.DurationSeconds,
		EntryTokenHash:  r.EntryTokenHash,
		Questions:       make([]model.Question, 0, len(r.Questions)),
	}
	for _, q := range r.Questions {
		kind, err := model.ParseQuestionKind(q.Type)
		if err != nil {
			return nil, fmt.Errorf("exam %q question %d: %w", r.ID, q.ID, err)
		}
		def.Questions = append(def.Questions, model.Question{
			ID:      q.ID,
			Text:    q.Text,
			Kind:    kind,
			Options: q.Options,
		})
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// List returns the catalog in file order.
func (c *FileCatalog) List(_ context.Context) ([]model.ExamSummary, error) {
	out := make([]model.ExamSummary, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.exams[id].Summary())
	}
	return out, nil
}

// Get returns the definition for examID.
func (c *FileCatalog) Get(_ context.Context, examID string) (*model.ExamDefinition, error) {
	def, ok := c.exams[examID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExamNotFound, examID)
	}
	return def, nil
}

// Definitions returns every definition in file order.
func (c *FileCatalog) Definitions() []*model.ExamDefinition {
	out := make([]*model.ExamDefinition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.exams[id])
	}
	return out
}

func describe(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fields[k])
	}
	return strings.Join(parts, "; ")
}
