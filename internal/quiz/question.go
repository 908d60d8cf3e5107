// Package quiz grades submitted quiz answers against stored question definitions.
package quiz

import "encoding/json"

// Type identifies a question variant.
type Type string

const (
	TypeMultipleChoice   Type = "multiple_choice"
	TypeMultipleResponse Type = "multiple_response"
	TypeTrueFalse        Type = "true_false"
	TypeFillBlank        Type = "fill_blank"
	TypeMatching         Type = "matching"
	TypeShortAnswer      Type = "short_answer"
	TypeOrdering         Type = "ordering"
	TypeOpenExtended     Type = "open_extended"
	TypeContextGroup     Type = "context_group"
)

// Question is a stored question with its raw, possibly label-based, content.
type Question struct {
	ID      string          `json:"id"`
	Type    Type            `json:"type"`
	Content json.RawMessage `json:"content"`
}

// Option is a selectable entry of a question. Label is the compact reference
// used by label-based solutions.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
	Text  string `json:"text,omitempty"`
}

// Pair links a left matching item to a right one.
type Pair struct {
	Left  string `json:"left_id"`
	Right string `json:"right_id"`
}

// Blank is one gap of a fill-in-the-blank question.
type Blank struct {
	ID            string `json:"id"`
	CorrectAnswer string `json:"correct_answer,omitempty"`
}

// Definition is a question normalized into ID-addressable form. Exactly one of
// the concrete types below implements it per question type.
type Definition interface {
	QuestionID() string
	QuestionType() Type
}

type MultipleChoice struct {
	ID            string
	Options       []Option
	CorrectAnswer string
}

type MultipleResponse struct {
	ID             string
	Options        []Option
	CorrectAnswers []string
}

type TrueFalse struct {
	ID            string
	CorrectAnswer *bool
}

type FillBlank struct {
	ID      string
	Options []Option
	Blanks  []Blank
}

type Matching struct {
	ID           string
	LeftItems    []Option
	RightItems   []Option
	CorrectPairs []Pair
}

type ShortAnswer struct {
	ID             string
	CorrectAnswers []string
	CaseSensitive  bool
}

type Ordering struct {
	ID           string
	Items        []Option
	CorrectOrder []string
}

// Ungradable covers open-ended types and anything unknown. It always grades
// as VerdictUngraded.
type Ungradable struct {
	ID   string
	Type Type
}

func (q MultipleChoice) QuestionID() string   { return q.ID }
func (q MultipleResponse) QuestionID() string { return q.ID }
func (q TrueFalse) QuestionID() string        { return q.ID }
func (q FillBlank) QuestionID() string        { return q.ID }
func (q Matching) QuestionID() string         { return q.ID }
func (q ShortAnswer) QuestionID() string      { return q.ID }
func (q Ordering) QuestionID() string         { return q.ID }
func (q Ungradable) QuestionID() string       { return q.ID }

func (MultipleChoice) QuestionType() Type   { return TypeMultipleChoice }
func (MultipleResponse) QuestionType() Type { return TypeMultipleResponse }
func (TrueFalse) QuestionType() Type        { return TypeTrueFalse }
func (FillBlank) QuestionType() Type        { return TypeFillBlank }
func (Matching) QuestionType() Type         { return TypeMatching }
func (ShortAnswer) QuestionType() Type      { return TypeShortAnswer }
func (Ordering) QuestionType() Type         { return TypeOrdering }
func (q Ungradable) QuestionType() Type     { return q.Type }
