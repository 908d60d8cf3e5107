package quiz

import (
	"fmt"
	"regexp"
	"strconv"
)

var numericLabel = regexp.MustCompile(`^\d+$`)

// DeterministicID derives the synthetic id given to an option, item or blank
// that has none. The same inputs always yield the same id so regrading an
// attempt never depends on ids generated at submission time.
func DeterministicID(questionID, namespace, discriminator string) string {
	return fmt.Sprintf("%s__%s_%s", questionID, namespace, discriminator)
}

// Normalize converts a stored question into its typed, ID-addressable form.
// Label-based solutions ("solution": "B") are resolved into option ids.
func Normalize(q Question) (Definition, error) {
	decoded, err := DecodeJSON(q.Content)
	if err != nil {
		return nil, fmt.Errorf("question %s: %w", q.ID, err)
	}
	content := asMap(decoded)
	if content == nil {
		content = map[string]interface{}{}
	}

	switch q.Type {
	case TypeMultipleChoice:
		return normalizeMultipleChoice(q.ID, content), nil
	case TypeMultipleResponse:
		return normalizeMultipleResponse(q.ID, content), nil
	case TypeOrdering:
		return normalizeOrdering(q.ID, content), nil
	case TypeMatching:
		return normalizeMatching(q.ID, content), nil
	case TypeFillBlank:
		return normalizeFillBlank(q.ID, content), nil
	case TypeTrueFalse:
		return normalizeTrueFalse(q.ID, content), nil
	case TypeShortAnswer:
		return normalizeShortAnswer(q.ID, content), nil
	default:
		return Ungradable{ID: q.ID, Type: q.Type}, nil
	}
}

// buildOptions assigns missing ids from the label, or the position when no
// label is present.
func buildOptions(questionID, namespace string, raw []interface{}) []Option {
	options := make([]Option, 0, len(raw))
	for idx, entry := range raw {
		var opt Option
		if m, ok := entry.(map[string]interface{}); ok {
			opt = Option{ID: toString(m["id"]), Label: toString(m["label"]), Text: toString(m["text"])}
			if opt.ID == "" {
				discriminator := strconv.Itoa(idx)
				if label, present := m["label"]; present && label != nil {
					discriminator = toString(label)
				}
				opt.ID = DeterministicID(questionID, namespace, discriminator)
			}
		} else {
			opt = Option{Text: toString(entry), ID: DeterministicID(questionID, namespace, strconv.Itoa(idx))}
		}
		options = append(options, opt)
	}
	return options
}

func findByLabel(options []Option, label string) (Option, bool) {
	for _, o := range options {
		if o.Label == label {
			return o, true
		}
	}
	return Option{}, false
}

func normalizeMultipleChoice(id string, content map[string]interface{}) MultipleChoice {
	q := MultipleChoice{ID: id, Options: buildOptions(id, "opt", asList(content["options"]))}
	if truthy(content["correct_answer"]) {
		q.CorrectAnswer = toString(content["correct_answer"])
		return q
	}
	if solution, present := content["solution"]; present && solution != nil {
		if match, ok := findByLabel(q.Options, toString(solution)); ok {
			q.CorrectAnswer = match.ID
		}
	}
	return q
}

func normalizeMultipleResponse(id string, content map[string]interface{}) MultipleResponse {
	q := MultipleResponse{ID: id, Options: buildOptions(id, "opt", asList(content["options"]))}
	if truthy(content["correct_answers"]) {
		q.CorrectAnswers = normalizeIDList(content["correct_answers"], false)
		return q
	}
	solution, ok := content["solution"].([]interface{})
	if !ok {
		return q
	}
	labels := make(map[string]struct{}, len(solution))
	for _, s := range solution {
		labels[toString(s)] = struct{}{}
	}
	ids := make([]interface{}, 0, len(solution))
	for _, o := range q.Options {
		if _, hit := labels[o.Label]; hit {
			ids = append(ids, o.ID)
		}
	}
	q.CorrectAnswers = normalizeIDList(ids, false)
	return q
}

func normalizeOrdering(id string, content map[string]interface{}) Ordering {
	raw := asList(firstTruthy(content, "items", "options"))
	q := Ordering{ID: id, Items: buildOptions(id, "item", raw)}
	if truthy(content["correct_order"]) {
		q.CorrectOrder = normalizeIDList(content["correct_order"], true)
		return q
	}
	solution, ok := content["solution"].([]interface{})
	if !ok {
		return q
	}
	for _, s := range solution {
		if item, found := findByLabel(q.Items, toString(s)); found {
			q.CorrectOrder = append(q.CorrectOrder, item.ID)
		}
	}
	return q
}

func normalizeMatching(id string, content map[string]interface{}) Matching {
	rawLeft := asList(content["left_items"])
	rawRight := asList(content["right_items"])

	// Compact encoding: one options list where numeric labels are the right column.
	if len(rawLeft) == 0 && len(rawRight) == 0 {
		for _, entry := range asList(content["options"]) {
			label := toString(asMap(entry)["label"])
			if numericLabel.MatchString(label) {
				rawRight = append(rawRight, entry)
			} else {
				rawLeft = append(rawLeft, entry)
			}
		}
	}

	q := Matching{
		ID:         id,
		LeftItems:  buildOptions(id, "left", rawLeft),
		RightItems: buildOptions(id, "right", rawRight),
	}
	if truthy(content["correct_pairs"]) {
		q.CorrectPairs = sortedPairs(normalizePairs(content["correct_pairs"]))
		return q
	}
	solution, ok := content["solution"].([]interface{})
	if !ok {
		return q
	}
	for _, raw := range solution {
		var leftLabel, rightLabel string
		switch p := raw.(type) {
		case map[string]interface{}:
			leftLabel, rightLabel = toString(p["left"]), toString(p["right"])
		case []interface{}:
			if len(p) != 2 {
				continue
			}
			leftLabel, rightLabel = toString(p[0]), toString(p[1])
		default:
			continue
		}
		left, okLeft := findByLabel(q.LeftItems, leftLabel)
		right, okRight := findByLabel(q.RightItems, rightLabel)
		if okLeft && okRight {
			q.CorrectPairs = append(q.CorrectPairs, Pair{Left: left.ID, Right: right.ID})
		}
	}
	return q
}

func normalizeFillBlank(id string, content map[string]interface{}) FillBlank {
	rawOptions := asList(content["options"])
	solution := asList(content["solution"])
	q := FillBlank{ID: id}

	// Options that already carry ids are kept as is, with blanks taken from content.
	if len(rawOptions) > 0 && truthy(asMap(rawOptions[0])["id"]) {
		for idx, entry := range rawOptions {
			m := asMap(entry)
			opt := Option{ID: toString(m["id"]), Label: toString(m["label"]), Text: toString(m["text"])}
			if opt.ID == "" {
				discriminator := strconv.Itoa(idx)
				if truthy(m["text"]) {
					discriminator = opt.Text
				} else if label, present := m["label"]; present && label != nil {
					discriminator = toString(label)
				}
				opt.ID = DeterministicID(id, "fopt", discriminator)
			}
			q.Options = append(q.Options, opt)
		}
		for idx, entry := range asList(content["blanks"]) {
			m := asMap(entry)
			blank := Blank{ID: toString(m["id"]), CorrectAnswer: toString(m["correct_answer"])}
			if blank.ID == "" {
				blank.ID = DeterministicID(id, "blank", strconv.Itoa(idx))
			}
			q.Blanks = append(q.Blanks, blank)
		}
		return q
	}

	// Label-based encoding: every distinct answer text becomes one option.
	optionIDs := map[string]string{}
	addOption := func(text string) {
		if text == "" {
			return
		}
		if _, exists := optionIDs[text]; exists {
			return
		}
		oid := DeterministicID(id, "fopt", text)
		optionIDs[text] = oid
		q.Options = append(q.Options, Option{ID: oid, Text: text})
	}
	answerText := func(entry interface{}) string {
		if m, ok := entry.(map[string]interface{}); ok {
			return toString(m["answer"])
		}
		return toString(entry)
	}

	for _, entry := range solution {
		addOption(answerText(entry))
	}
	if len(rawOptions) > 0 {
		if _, perBlank := rawOptions[0].([]interface{}); perBlank {
			for _, group := range rawOptions {
				for _, text := range asList(group) {
					addOption(toString(text))
				}
			}
		}
	}
	for idx, entry := range solution {
		q.Blanks = append(q.Blanks, Blank{
			ID:            DeterministicID(id, "blank", strconv.Itoa(idx)),
			CorrectAnswer: optionIDs[answerText(entry)],
		})
	}
	return q
}

func normalizeTrueFalse(id string, content map[string]interface{}) TrueFalse {
	q := TrueFalse{ID: id}
	if raw, present := content["correct_answer"]; present && raw != nil {
		q.CorrectAnswer = toBool(raw)
		return q
	}
	solution, present := content["solution"]
	if !present || solution == nil {
		return q
	}
	var correct bool
	switch s := solution.(type) {
	case bool:
		correct = s
	case string:
		correct = s == "true" || s == "V"
	default:
		correct = toString(s) == "1"
	}
	q.CorrectAnswer = &correct
	return q
}

func normalizeShortAnswer(id string, content map[string]interface{}) ShortAnswer {
	q := ShortAnswer{ID: id}
	if cs := toBool(content["case_sensitive"]); cs != nil {
		q.CaseSensitive = *cs
	}
	if truthy(content["correct_answers"]) {
		for _, a := range asList(content["correct_answers"]) {
			if IsAnswered(a) {
				q.CorrectAnswers = append(q.CorrectAnswers, toString(a))
			}
		}
		return q
	}
	if solution, present := content["solution"]; present && solution != nil {
		q.CorrectAnswers = []string{toString(solution)}
	}
	return q
}
