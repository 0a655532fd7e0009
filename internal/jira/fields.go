package jira

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldNameToID maps a configured field name (or id) to the Jira field id.
// Ids match exactly, names match case-insensitively.
func FieldNameToID(fields []FieldDTO, name string) (string, bool) {
	for _, f := range fields {
		if f.ID == name {
			return f.ID, true
		}
	}
	for _, f := range fields {
		if strings.EqualFold(f.Name, name) {
			return f.ID, true
		}
	}
	return "", false
}

// ResolveFieldValue reduces a raw field payload to a single display value.
//
// Accepted shapes: nil, a scalar (string, number, bool, or an object carrying
// value/name/displayName) and a list of scalars. For lists, the first entry of
// known (in known order) present in the list wins; without a match the values
// are joined with ", ".
func ResolveFieldValue(raw any, known []string) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case []any:
		values := make([]string, 0, len(v))
		for _, item := range v {
			if s := scalarValue(item); s != "" {
				values = append(values, s)
			}
		}
		for _, k := range known {
			for _, s := range values {
				if strings.EqualFold(k, s) {
					return k
				}
			}
		}
		return strings.Join(values, ", ")
	default:
		return scalarValue(v)
	}
}

// ResolveFieldNumber reads a numeric field, accepting numbers and numeric strings.
func ResolveFieldNumber(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	case map[string]any:
		if inner, ok := v["value"]; ok {
			return ResolveFieldNumber(inner)
		}
	}
	return 0, false
}

func scalarValue(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case map[string]any:
		for _, key := range []string{"value", "name", "displayName", "key"} {
			if s, ok := v[key]; ok {
				return scalarValue(s)
			}
		}
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
