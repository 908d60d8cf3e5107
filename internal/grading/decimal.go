package grading

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	ten     = decimal.NewFromInt(10)
)

// ToDecimal converts a numeric-like value into an exact decimal. A nil value
// yields an invalid NullDecimal so callers can tell "ungraded" apart from zero.
func ToDecimal(value interface{}) (decimal.NullDecimal, error) {
	switch v := value.(type) {
	case nil:
		return decimal.NullDecimal{}, nil
	case decimal.Decimal:
		return decimal.NewNullDecimal(v), nil
	case decimal.NullDecimal:
		return v, nil
	case *decimal.Decimal:
		if v == nil {
			return decimal.NullDecimal{}, nil
		}
		return decimal.NewNullDecimal(*v), nil
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(v))), nil
	case *int:
		if v == nil {
			return decimal.NullDecimal{}, nil
		}
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(*v))), nil
	case int32:
		return decimal.NewNullDecimal(decimal.NewFromInt32(v)), nil
	case int64:
		return decimal.NewNullDecimal(decimal.NewFromInt(v)), nil
	case float32:
		return decimal.NewNullDecimal(decimal.NewFromFloat32(v)), nil
	case float64:
		return decimal.NewNullDecimal(decimal.NewFromFloat(v)), nil
	case *float64:
		if v == nil {
			return decimal.NullDecimal{}, nil
		}
		return decimal.NewNullDecimal(decimal.NewFromFloat(*v)), nil
	case json.Number:
		return parseDecimal(v.String())
	case string:
		return parseDecimal(v)
	default:
		return decimal.NullDecimal{}, fmt.Errorf("cannot convert %T to decimal", value)
	}
}

func parseDecimal(raw string) (decimal.NullDecimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("parse decimal %q: %w", raw, err)
	}
	return decimal.NewNullDecimal(d), nil
}

// RoundHalfUp rounds to the nearest integer with ties going away from zero
// (9.5 -> 10, -0.5 -> -1). Every integer grade in the pipeline goes through here.
func RoundHalfUp(value decimal.Decimal) int {
	return int(value.Round(0).IntPart())
}

// TruncateOneDecimal drops everything past the first decimal place without
// rounding (14.68 -> 14.6). Only the final CFS value uses it.
func TruncateOneDecimal(value decimal.Decimal) decimal.Decimal {
	return value.Truncate(1)
}
