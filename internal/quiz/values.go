package quiz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DecodeJSON decodes a JSON document keeping numbers as json.Number so labels
// like 1 and "1" compare equal after stringification.
func DecodeJSON(raw []byte) (interface{}, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return out, nil
}

// ExtractAnswers returns the answer map of an attempt payload. Payloads may
// nest the map under "answers" or be the map itself.
func ExtractAnswers(payload interface{}) map[string]interface{} {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	if answers, ok := m["answers"].(map[string]interface{}); ok {
		return answers
	}
	return m
}

// IsAnswered reports whether a submitted value carries anything.
func IsAnswered(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case []interface{}:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	default:
		return true
	}
}

func toString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func toBool(value interface{}) *bool {
	var out bool
	switch v := value.(type) {
	case bool:
		out = v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			out = true
		case "false", "0", "no":
			out = false
		default:
			return nil
		}
	default:
		return nil
	}
	return &out
}

// truthy mirrors the loose "present and non-empty" checks stored content relies on.
func truthy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case json.Number:
		f, err := v.Float64()
		return err != nil || f != 0
	case float64:
		return v != 0
	case []interface{}:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	default:
		return true
	}
}

// firstTruthy returns the first non-empty value among keys.
func firstTruthy(m map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v := m[k]; truthy(v) {
			return v
		}
	}
	return nil
}

func asMap(value interface{}) map[string]interface{} {
	m, _ := value.(map[string]interface{})
	return m
}

func asList(value interface{}) []interface{} {
	l, _ := value.([]interface{})
	return l
}

// normalizePairs accepts a left->right map, a list of two-element lists or a
// list of {left_id|left, right_id|right} objects, optionally under "pairs".
func normalizePairs(value interface{}) map[Pair]struct{} {
	pairs := map[Pair]struct{}{}
	if m, ok := value.(map[string]interface{}); ok {
		if nested, present := m["pairs"]; present {
			value = nested
		}
	}

	switch v := value.(type) {
	case map[string]interface{}:
		for left, right := range v {
			r := toString(right)
			if left != "" && r != "" {
				pairs[Pair{Left: left, Right: r}] = struct{}{}
			}
		}
	case []interface{}:
		for _, raw := range v {
			var left, right string
			switch p := raw.(type) {
			case []interface{}:
				if len(p) != 2 {
					continue
				}
				left, right = toString(p[0]), toString(p[1])
			case map[string]interface{}:
				left = toString(firstTruthy(p, "left_id", "left"))
				right = toString(firstTruthy(p, "right_id", "right"))
			default:
				continue
			}
			if left != "" && right != "" {
				pairs[Pair{Left: left, Right: right}] = struct{}{}
			}
		}
	}
	return pairs
}

// normalizeIDList reads a list of ids, possibly wrapped as {value|selected|order}.
// Unordered lists are deduplicated and sorted.
func normalizeIDList(value interface{}, preserveOrder bool) []string {
	if m, ok := value.(map[string]interface{}); ok {
		value = firstTruthy(m, "value", "selected", "order")
	}
	list, ok := value.([]interface{})
	if !ok {
		return nil
	}

	out := make([]string, 0, len(list))
	if preserveOrder {
		for _, item := range list {
			if s := toString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}

	seen := make(map[string]struct{}, len(list))
	for _, item := range list {
		s := toString(item)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
