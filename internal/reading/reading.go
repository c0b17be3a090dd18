// Package reading converts smart meter readings from metric to imperial units.
//
// A reading travels through five stateless stages:
// Decode, FilterValid, ConvertUnits, the drop of failed conversions and Encode.
// Transform chains them for a single message. None of the stages keep state,
// so they are safe for concurrent use and deterministic on redelivery.
package reading

import (
	jsoniter "github.com/json-iterator/go"
)

const (
	// FieldTemperature holds the temperature, Celsius on input and Fahrenheit on output.
	FieldTemperature = "temperature"

	// FieldPressure holds the pressure, kilopascals on input and psi on output.
	FieldPressure = "pressure"
)

var (
	// codec is shared by decoding and encoding. Numbers are kept as json.Number
	// so numeric literals and numeric strings go through the same float parser.
	codec = jsoniter.Config{
		EscapeHTML:             true,
		SortMapKeys:            true,
		ValidateJsonRawMessage: true,
		UseNumber:              true,
	}.Froze()
)

// RawRecord is an inbound message payload.
type RawRecord []byte

// ParsedRecord is a decoded JSON object.
type ParsedRecord map[string]interface{}

// ValidatedRecord is a record with both measurements parsed.
type ValidatedRecord struct {
	Record ParsedRecord

	Celsius     float64
	Kilopascals float64
}

// ConvertedRecord is the outbound reading.
// It carries the converted measurements only, all other input fields are dropped.
type ConvertedRecord struct {
	Temperature float64 `json:"temperature"`
	Pressure    float64 `json:"pressure"`
}

// OutputRecord is an outbound message payload.
type OutputRecord []byte

// Outcome is the terminal state of a record that was decoded successfully.
type Outcome int

const (
	// Unknown is the zero value, it is never the outcome of a transformation.
	Unknown Outcome = iota

	// Published records are converted and ready to be written to the sink.
	Published

	// DroppedInvalid records miss a measurement or carry a non-numeric one.
	DroppedInvalid

	// DroppedConversion records passed validation but could not be converted.
	DroppedConversion
)

func (o Outcome) String() string {
	switch o {
	case Published:
		return "published"
	case DroppedInvalid:
		return "dropped_invalid"
	case DroppedConversion:
		return "dropped_conversion"
	default:
		return "unknown"
	}
}

// Dropped reports whether the record was discarded without an error.
func (o Outcome) Dropped() bool {
	return o == DroppedInvalid || o == DroppedConversion
}

// Result is the result of a single record transformation.
type Result struct {
	Outcome Outcome

	// Record and Payload are set only for Published records.
	Record  *ConvertedRecord
	Payload OutputRecord
}
