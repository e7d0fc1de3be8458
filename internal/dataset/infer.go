package dataset

import (
	"strconv"
	"strings"
	"time"
)

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// InferType picks the narrowest scalar type that every non-null value of the
// column parses as. Cells that are empty after trimming count as null; a
// column with only null cells is TypeUnknown.
func InferType(values []string) Type {
	seen := false
	isInteger, isFloat, isBoolean, isDatetime := true, true, true, true

	for _, raw := range values {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		seen = true
		if isInteger {
			if _, err := strconv.ParseInt(value, 10, 64); err != nil {
				isInteger = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				isFloat = false
			}
		}
		if isBoolean && !isBooleanToken(value) {
			isBoolean = false
		}
		if isDatetime && !isDatetimeToken(value) {
			isDatetime = false
		}
	}

	switch {
	case !seen:
		return TypeUnknown
	case isInteger:
		return TypeInteger
	case isFloat:
		return TypeFloat
	case isBoolean:
		return TypeBoolean
	case isDatetime:
		return TypeDatetime
	default:
		return TypeText
	}
}

func isBooleanToken(value string) bool {
	switch strings.ToLower(value) {
	case "true", "false":
		return true
	default:
		return false
	}
}

func isDatetimeToken(value string) bool {
	for _, layout := range datetimeLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

// convertCell turns a raw cell into the typed value loaded into the engine.
// Empty cells are NULL; a cell that fails to parse as the inferred type is
// also treated as NULL rather than aborting the load.
func convertCell(raw string, columnType Type) any {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil
	}
	switch columnType {
	case TypeInteger:
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil
		}
		return parsed
	case TypeFloat:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil
		}
		return parsed
	case TypeBoolean:
		return strings.EqualFold(value, "true")
	case TypeDatetime:
		for _, layout := range datetimeLayouts {
			if parsed, err := time.Parse(layout, value); err == nil {
				return parsed.UTC()
			}
		}
		return nil
	default:
		return raw
	}
}
