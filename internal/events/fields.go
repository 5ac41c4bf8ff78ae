package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Fields is a loosely decoded message body. Accessors never fail: a missing or
// garbled value reads as the zero value so one bad field does not drop the event.
type Fields map[string]any

// Decode parses body as a JSON object, keeping numbers as json.Number.
func Decode(body []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var f Fields
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if f == nil {
		return nil, fmt.Errorf("decode message: body is not an object")
	}
	return f, nil
}

func (f Fields) Has(key string) bool {
	v, ok := f[key]
	return ok && v != nil
}

func (f Fields) String(key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func (f Fields) Int64(key string) int64 {
	switch v := f[key].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if x, err := v.Float64(); err == nil {
			return int64(x)
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func (f Fields) Float(key string) float64 {
	switch v := f[key].(type) {
	case json.Number:
		if x, err := v.Float64(); err == nil {
			return x
		}
	case string:
		if x, err := strconv.ParseFloat(v, 64); err == nil {
			return x
		}
	}
	return 0
}

// Decimal reads a money value from its textual JSON form, avoiding a float round trip.
func (f Fields) Decimal(key string) decimal.Decimal {
	var s string
	switch v := f[key].(type) {
	case json.Number:
		s = v.String()
	case string:
		s = v
	default:
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (f Fields) EventID() string   { return f.String("eventId") }
func (f Fields) EventType() string { return f.String("eventType") }
