package reading

import (
	"bytes"
	"unicode/utf8"
)

// Decode parses the payload as a UTF-8 encoded JSON object.
//
// Decode returns a *MalformedInputError if the payload is not valid UTF-8,
// is not valid JSON or holds anything other than an object.
func Decode(raw RawRecord) (ParsedRecord, error) {
	if !utf8.Valid(raw) {
		return nil, &MalformedInputError{Reason: "payload is not valid utf-8"}
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &MalformedInputError{Reason: "payload is empty"}
	}

	var v interface{}
	if err := codec.Unmarshal(raw, &v); err != nil {
		return nil, &MalformedInputError{Reason: "payload is not valid json", Err: err}
	}

	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, &MalformedInputError{Reason: "payload is not a json object"}
	}

	return ParsedRecord(obj), nil
}
