package reading

// Encode serializes the converted record to a UTF-8 JSON payload.
// The output is compact and numbers take their shortest form, so 32.0 is written as 32.
func Encode(rec ConvertedRecord) (OutputRecord, error) {
	return codec.Marshal(rec)
}

// Transform runs a single payload through all stages.
//
// The returned error is always a *MalformedInputError. Records that fail
// validation or conversion are reported through the Outcome, not as errors.
func Transform(raw RawRecord) (Result, error) {
	rec, err := Decode(raw)
	if err != nil {
		return Result{}, err
	}

	if !FilterValid(rec) {
		return Result{Outcome: DroppedInvalid}, nil
	}

	converted, ok := ConvertUnits(rec)
	if !ok {
		return Result{Outcome: DroppedConversion}, nil
	}

	payload, err := Encode(converted)
	if err != nil {
		return Result{Outcome: DroppedConversion}, nil
	}

	return Result{
		Outcome: Published,
		Record:  &converted,
		Payload: payload,
	}, nil
}

// Transformer exposes Transform to callers that take it as a dependency.
type Transformer struct{}

// NewTransformer
func NewTransformer() *Transformer {
	return &Transformer{}
}

// Transform
func (t *Transformer) Transform(raw []byte) (Result, error) {
	return Transform(raw)
}
