package tutor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// OptionCount is the number of answers every quiz question carries.
const OptionCount = 4

// QuizQuestion is one generated multiple-choice question.
type QuizQuestion struct {
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectOptionIndex int      `json:"correctOptionIndex"`
	Explanation        string   `json:"explanation"`
}

// quizResponseSchema is sent to Gemini to constrain the output.
var quizResponseSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"question": map[string]any{
			"type":        "STRING",
			"description": "The quiz question text.",
		},
		"options": map[string]any{
			"type":        "ARRAY",
			"items":       map[string]any{"type": "STRING"},
			"description": "Exactly 4 possible answers.",
		},
		"correctOptionIndex": map[string]any{
			"type":        "INTEGER",
			"description": "0-based index of the correct answer in options.",
		},
		"explanation": map[string]any{
			"type":        "STRING",
			"description": "Why the correct answer is right.",
		},
	},
	"required": []string{"question", "options", "correctOptionIndex", "explanation"},
}

// quizValidationSchema is checked locally; the provider schema cannot express option count or index range.
var quizValidationSchema = mustSchema(`{
	"type": "object",
	"required": ["question", "options", "correctOptionIndex", "explanation"],
	"properties": {
		"question": {"type": "string", "minLength": 1},
		"options": {
			"type": "array",
			"items": {"type": "string", "minLength": 1},
			"minItems": 4,
			"maxItems": 4
		},
		"correctOptionIndex": {"type": "integer", "minimum": 0, "maximum": 3},
		"explanation": {"type": "string"}
	}
}`)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile quiz schema: %v", err))
	}
	return schema
}

// parseQuizQuestion validates raw model output and decodes it.
func parseQuizQuestion(raw string) (QuizQuestion, error) {
	text := stripCodeFence(raw)
	if text == "" {
		return QuizQuestion{}, fmt.Errorf("%w: empty response", ErrValidation)
	}

	result, err := quizValidationSchema.Validate(gojsonschema.NewStringLoader(text))
	if err != nil {
		// Not parseable as JSON at all.
		return QuizQuestion{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return QuizQuestion{}, fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}

	var q QuizQuestion
	if err := json.Unmarshal([]byte(text), &q); err != nil {
		return QuizQuestion{}, fmt.Errorf("%w: decode: %v", ErrValidation, err)
	}
	if err := q.Validate(); err != nil {
		return QuizQuestion{}, err
	}
	return q, nil
}

// Validate checks the invariants a question must hold before it reaches callers.
func (q QuizQuestion) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("%w: question is empty", ErrValidation)
	}
	if len(q.Options) != OptionCount {
		return fmt.Errorf("%w: got %d options, want %d", ErrValidation, len(q.Options), OptionCount)
	}
	if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= OptionCount {
		return fmt.Errorf("%w: correctOptionIndex %d out of range", ErrValidation, q.CorrectOptionIndex)
	}

	fold := cases.Fold()
	seen := make(map[string]int, len(q.Options))
	for i, opt := range q.Options {
		key := fold.String(norm.NFC.String(strings.TrimSpace(opt)))
		if key == "" {
			return fmt.Errorf("%w: option %d is empty", ErrValidation, i)
		}
		if j, dup := seen[key]; dup {
			return fmt.Errorf("%w: options %d and %d are the same", ErrValidation, j, i)
		}
		seen[key] = i
	}
	return nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
