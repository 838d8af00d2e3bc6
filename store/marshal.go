package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/persontime/timeline"
)

// Values are stored as their natural JSON form: integers and reals as
// numbers, strings as strings, missing as null. Whole reals keep a trailing
// ".0" so Float(50) does not come back as Int(50).

func marshalValue(v timeline.Value) (string, error) {
	switch val := v.(type) {
	case nil, timeline.Missing:
		return "null", nil
	case timeline.Int:
		return strconv.FormatInt(int64(val), 10), nil
	case timeline.Float:
		return floatJSON(float64(val)), nil
	case timeline.String:
		data, err := json.Marshal(string(val))
		if err != nil {
			return "", fmt.Errorf("marshal value: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("marshal value: unsupported type %T", v)
	}
}

func marshalValues(vals []timeline.Value) (string, error) {
	parts := make([]string, len(vals))
	for i, v := range vals {
		s, err := marshalValue(v)
		if err != nil {
			return "", fmt.Errorf("value %d: %w", i, err)
		}
		parts[i] = s
	}
	return "[" + strings.Join(parts, ",") + "]", nil
}

func floatJSON(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func unmarshalValue(data string) (timeline.Value, error) {
	var raw any
	if err := decodeNumeric(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return valueFromJSON(raw)
}

func unmarshalValues(data string) ([]timeline.Value, error) {
	var raw []any
	if err := decodeNumeric(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal values: %w", err)
	}
	vals := make([]timeline.Value, len(raw))
	for i, r := range raw {
		v, err := valueFromJSON(r)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		vals[i] = v
	}
	return vals, nil
}

// decodeNumeric decodes JSON keeping numbers as json.Number, preserving
// the integer/real distinction.
func decodeNumeric(data string, out any) error {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	return dec.Decode(out)
}

func valueFromJSON(raw any) (timeline.Value, error) {
	switch x := raw.(type) {
	case nil:
		return timeline.Missing{}, nil
	case json.Number:
		if strings.ContainsAny(x.String(), ".eE") {
			f, err := x.Float64()
			if err != nil {
				return nil, fmt.Errorf("parse real %q: %w", x, err)
			}
			return timeline.Float(f), nil
		}
		n, err := x.Int64()
		if err != nil {
			return nil, fmt.Errorf("parse integer %q: %w", x, err)
		}
		return timeline.Int(n), nil
	case string:
		return timeline.String(x), nil
	default:
		return nil, fmt.Errorf("unexpected JSON value %T", raw)
	}
}

// Competing-event dates are a JSON array of days, null where the date is
// absent.

func marshalDates(dates []timeline.Date) string {
	parts := make([]string, len(dates))
	for i, d := range dates {
		if d.Valid {
			parts[i] = strconv.FormatInt(d.Day, 10)
		} else {
			parts[i] = "null"
		}
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func unmarshalDates(data string) ([]timeline.Date, error) {
	var raw []any
	if err := decodeNumeric(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal dates: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	dates := make([]timeline.Date, len(raw))
	for i, r := range raw {
		switch x := r.(type) {
		case nil:
			dates[i] = timeline.Date{}
		case json.Number:
			day, err := x.Int64()
			if err != nil {
				return nil, fmt.Errorf("parse day %q: %w", x, err)
			}
			dates[i] = timeline.NewDate(day)
		default:
			return nil, fmt.Errorf("unexpected date value %T", r)
		}
	}
	return dates, nil
}

// Column lists and warnings are stored as plain JSON string arrays.

func marshalStrings(ss []string) (string, error) {
	if len(ss) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(ss)
	if err != nil {
		return "", fmt.Errorf("marshal strings: %w", err)
	}
	return string(data), nil
}

func unmarshalStrings(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var ss []string
	if err := json.Unmarshal([]byte(data), &ss); err != nil {
		return nil, fmt.Errorf("unmarshal strings: %w", err)
	}
	return ss, nil
}
