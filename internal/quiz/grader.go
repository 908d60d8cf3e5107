package quiz

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Verdict is the outcome of grading a single question.
type Verdict int

const (
	// VerdictUngraded means the question has no determinable correct answer.
	VerdictUngraded Verdict = iota
	VerdictCorrect
	VerdictIncorrect
)

func verdictOf(correct bool) Verdict {
	if correct {
		return VerdictCorrect
	}
	return VerdictIncorrect
}

// GradeQuestion compares a submitted answer with a normalized definition.
func GradeQuestion(def Definition, answer interface{}) Verdict {
	if m, ok := answer.(map[string]interface{}); ok {
		if inner, present := m["value"]; present {
			answer = inner
		}
	}

	switch q := def.(type) {
	case MultipleChoice:
		return gradeMultipleChoice(q, answer)
	case MultipleResponse:
		return gradeMultipleResponse(q, answer)
	case TrueFalse:
		return gradeTrueFalse(q, answer)
	case FillBlank:
		return gradeFillBlank(q, answer)
	case Matching:
		return gradeMatching(q, answer)
	case ShortAnswer:
		return gradeShortAnswer(q, answer)
	case Ordering:
		return gradeOrdering(q, answer)
	default:
		return VerdictUngraded
	}
}

func gradeMultipleChoice(q MultipleChoice, answer interface{}) Verdict {
	if q.CorrectAnswer == "" {
		return VerdictUngraded
	}
	if m, ok := answer.(map[string]interface{}); ok {
		answer = firstTruthy(m, "selected_option_id", "option_id")
	}
	return verdictOf(toString(answer) == q.CorrectAnswer)
}

func gradeMultipleResponse(q MultipleResponse, answer interface{}) Verdict {
	if len(q.CorrectAnswers) == 0 {
		return VerdictUngraded
	}
	return verdictOf(equalStrings(normalizeIDList(answer, false), q.CorrectAnswers))
}

func gradeTrueFalse(q TrueFalse, answer interface{}) Verdict {
	if q.CorrectAnswer == nil {
		return VerdictUngraded
	}
	selected := toBool(answer)
	return verdictOf(selected != nil && *selected == *q.CorrectAnswer)
}

func gradeFillBlank(q FillBlank, answer interface{}) Verdict {
	correct := make(map[string]string, len(q.Blanks))
	for _, b := range q.Blanks {
		if b.ID != "" && b.CorrectAnswer != "" {
			correct[b.ID] = b.CorrectAnswer
		}
	}
	if len(correct) == 0 {
		return VerdictUngraded
	}

	selected := map[string]string{}
	source := answer
	if m, ok := source.(map[string]interface{}); ok {
		if nested, present := m["blanks"]; present {
			source = nested
		}
	}
	switch s := source.(type) {
	case []interface{}:
		for _, raw := range s {
			item, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			blankID := toString(firstTruthy(item, "id", "blank_id"))
			value := toString(firstTruthy(item, "selected_option_id", "answer", "value"))
			if blankID != "" && value != "" {
				selected[blankID] = value
			}
		}
	case map[string]interface{}:
		for blankID, raw := range s {
			if value := toString(raw); blankID != "" && value != "" {
				selected[blankID] = value
			}
		}
	}

	for blankID, want := range correct {
		if selected[blankID] != want {
			return VerdictIncorrect
		}
	}
	return VerdictCorrect
}

func gradeMatching(q Matching, answer interface{}) Verdict {
	if len(q.CorrectPairs) == 0 {
		return VerdictUngraded
	}
	want := make(map[Pair]struct{}, len(q.CorrectPairs))
	for _, p := range q.CorrectPairs {
		want[p] = struct{}{}
	}
	got := normalizePairs(answer)
	if len(got) != len(want) {
		return VerdictIncorrect
	}
	for p := range got {
		if _, ok := want[p]; !ok {
			return VerdictIncorrect
		}
	}
	return VerdictCorrect
}

func gradeShortAnswer(q ShortAnswer, answer interface{}) Verdict {
	if len(q.CorrectAnswers) == 0 {
		return VerdictUngraded
	}
	if m, ok := answer.(map[string]interface{}); ok {
		answer = m["text"]
	}
	fold := func(s string) string {
		s = strings.TrimSpace(s)
		if !q.CaseSensitive {
			s = strings.ToLower(s)
		}
		return s
	}
	selected := fold(toString(answer))
	for _, accepted := range q.CorrectAnswers {
		if fold(accepted) == selected {
			return VerdictCorrect
		}
	}
	return VerdictIncorrect
}

func gradeOrdering(q Ordering, answer interface{}) Verdict {
	if len(q.CorrectOrder) == 0 {
		return VerdictUngraded
	}
	return verdictOf(equalStrings(normalizeIDList(answer, true), q.CorrectOrder))
}

func sortedPairs(set map[Pair]struct{}) []Pair {
	out := make([]Pair, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Left != out[j].Left {
			return out[i].Left < out[j].Left
		}
		return out[i].Right < out[j].Right
	})
	return out
}

// QuestionResult is the per-question line of an attempt breakdown.
type QuestionResult struct {
	QuestionID string `json:"question_id"`
	Type       Type   `json:"type"`
	IsCorrect  bool   `json:"is_correct"`
	Answered   bool   `json:"answered"`
}

// AttemptResult is the auto-graded outcome of one quiz attempt.
type AttemptResult struct {
	Score             decimal.Decimal  `json:"score"`
	TotalQuestions    int              `json:"total_questions"`
	CorrectQuestions  int              `json:"correct_questions"`
	AnsweredQuestions int              `json:"answered_questions"`
	Results           []QuestionResult `json:"results"`
}

// GradeAttempt normalizes every question and grades the attempt payload. It
// returns nil when no question is gradable, which is distinct from a zero score.
func GradeAttempt(questions []Question, payload interface{}) (*AttemptResult, error) {
	if len(questions) == 0 {
		return nil, nil
	}
	answers := ExtractAnswers(payload)

	result := &AttemptResult{Results: []QuestionResult{}}
	for _, question := range questions {
		if question.ID == "" {
			continue
		}
		def, err := Normalize(question)
		if err != nil {
			return nil, err
		}

		answer := answers[question.ID]
		answered := IsAnswered(answer)
		if answered {
			result.AnsweredQuestions++
		}

		verdict := GradeQuestion(def, answer)
		if verdict == VerdictUngraded {
			continue
		}
		result.TotalQuestions++
		if verdict == VerdictCorrect {
			result.CorrectQuestions++
		}
		result.Results = append(result.Results, QuestionResult{
			QuestionID: question.ID,
			Type:       def.QuestionType(),
			IsCorrect:  verdict == VerdictCorrect,
			Answered:   answered,
		})
	}

	if result.TotalQuestions == 0 {
		return nil, nil
	}
	result.Score = decimal.NewFromInt(int64(result.CorrectQuestions)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(result.TotalQuestions))).
		Round(2)
	return result, nil
}
