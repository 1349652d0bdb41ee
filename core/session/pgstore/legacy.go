package pgstore

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

var (
	emptyArray  = []byte("[]")
	emptyObject = []byte("{}")
)

// unwrap returns raw when it is JSON of the wanted kind. Rows written by older
// releases stored some columns as JSON strings holding the document; those are
// decoded one level. Null, malformed or mismatched values yield ok false.
func unwrap(raw []byte, want func(gjson.Result) bool) (out []byte, ok bool) {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return nil, false
	}
	r := gjson.ParseBytes(raw)
	if want(r) {
		return raw, true
	}
	if r.Type == gjson.String && gjson.Valid(r.Str) {
		if inner := gjson.Parse(r.Str); want(inner) {
			return []byte(r.Str), true
		}
	}
	return nil, false
}

func isArray(r gjson.Result) bool  { return r.IsArray() }
func isObject(r gjson.Result) bool { return r.IsObject() }

// coerceArray returns raw as a JSON array, "[]" when it is not one.
func coerceArray(raw []byte) []byte {
	if out, ok := unwrap(raw, isArray); ok {
		return out
	}
	return emptyArray
}

// coerceObject returns raw as a JSON object, "{}" when it is not one.
func coerceObject(raw []byte) []byte {
	if out, ok := unwrap(raw, isObject); ok {
		return out
	}
	return emptyObject
}

// decodeList decodes a legacy tolerant JSON array column. Anything that does
// not decode into []T becomes an empty, non-nil slice.
func decodeList[T any](raw []byte) []T {
	var out []T
	if err := json.Unmarshal(coerceArray(raw), &out); err != nil || out == nil {
		return []T{}
	}
	return out
}

// decodeObject decodes a legacy tolerant JSON object column into T.
func decodeObject[T any](raw []byte) T {
	var out T
	if err := json.Unmarshal(coerceObject(raw), &out); err != nil {
		var zero T
		return zero
	}
	return out
}

// passThrough keeps valid non-null JSON as is and drops everything else.
func passThrough(raw []byte) json.RawMessage {
	if len(raw) == 0 || !gjson.ValidBytes(raw) || gjson.ParseBytes(raw).Type == gjson.Null {
		return nil
	}
	return json.RawMessage(raw)
}
