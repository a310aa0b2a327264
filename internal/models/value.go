package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValueKind tags which member of FieldValue is populated.
type ValueKind string

const (
	KindText      ValueKind = "text"
	KindNumber    ValueKind = "number"
	KindDate      ValueKind = "date"
	KindBoolean   ValueKind = "boolean"
	KindSelection ValueKind = "selection"
)

// dateLayout is the wire format for KindDate values.
const dateLayout = "2006-01-02"

// ErrInvalidValue is returned when a FieldValue cannot be decoded or is empty where
// a value is required.
var ErrInvalidValue = errors.New("invalid field value")

// FieldValue is a tagged union over the field types rules inspect.
// Only the member matching Kind is meaningful. A zero FieldValue (empty Kind) means
// "no value", which is how rules report missing fields.
//
// JSON shape: {"type": "<kind>", "value": <payload>}
type FieldValue struct {
	Kind      ValueKind
	Text      string
	Number    float64
	Date      time.Time
	Bool      bool
	Selection []string
}

// TextValue builds a text value.
func TextValue(s string) FieldValue { return FieldValue{Kind: KindText, Text: s} }

// NumberValue builds a numeric value.
func NumberValue(n float64) FieldValue { return FieldValue{Kind: KindNumber, Number: n} }

// DateValue builds a date value truncated to the calendar day in UTC.
func DateValue(t time.Time) FieldValue {
	y, m, d := t.UTC().Date()
	return FieldValue{Kind: KindDate, Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// BoolValue builds a boolean value.
func BoolValue(b bool) FieldValue { return FieldValue{Kind: KindBoolean, Bool: b} }

// SelectionValue builds a selection-set value.
func SelectionValue(opts ...string) FieldValue {
	return FieldValue{Kind: KindSelection, Selection: append([]string(nil), opts...)}
}

// IsZero reports whether the value is absent.
func (v FieldValue) IsZero() bool { return v.Kind == "" }

// String renders the value for notification messages and task descriptions.
func (v FieldValue) String() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindDate:
		return v.Date.Format(dateLayout)
	case KindBoolean:
		return strconv.FormatBool(v.Bool)
	case KindSelection:
		return strings.Join(v.Selection, ", ")
	}
	return ""
}

type wireValue struct {
	Type  ValueKind       `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the value in its tagged form. Absent values encode as null.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.Kind {
	case "":
		return []byte("null"), nil
	case KindText:
		payload = v.Text
	case KindNumber:
		payload = v.Number
	case KindDate:
		payload = v.Date.Format(dateLayout)
	case KindBoolean:
		payload = v.Bool
	case KindSelection:
		sel := v.Selection
		if sel == nil {
			sel = []string{}
		}
		payload = sel
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidValue, v.Kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireValue{Type: v.Kind, Value: raw})
}

// UnmarshalJSON decodes the tagged form and rejects payloads that do not match the tag.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = FieldValue{}
		return nil
	}
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	out := FieldValue{Kind: w.Type}
	var err error
	switch w.Type {
	case KindText:
		err = json.Unmarshal(w.Value, &out.Text)
	case KindNumber:
		err = json.Unmarshal(w.Value, &out.Number)
	case KindDate:
		var s string
		if err = json.Unmarshal(w.Value, &s); err == nil {
			out.Date, err = time.Parse(dateLayout, s)
		}
	case KindBoolean:
		err = json.Unmarshal(w.Value, &out.Bool)
	case KindSelection:
		err = json.Unmarshal(w.Value, &out.Selection)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidValue, w.Type)
	}
	if err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrInvalidValue, w.Type, err)
	}
	*v = out
	return nil
}

// EncodeValue marshals an optional value for a jsonb column. Nil and absent values
// become SQL NULL.
func EncodeValue(v *FieldValue) ([]byte, error) {
	if v == nil || v.IsZero() {
		return nil, nil
	}
	return json.Marshal(v)
}

// DecodeValue is the inverse of EncodeValue.
func DecodeValue(raw []byte) (*FieldValue, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v FieldValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	if v.IsZero() {
		return nil, nil
	}
	return &v, nil
}
