package reading

const (
	fahrenheitScale  = 1.8
	fahrenheitOffset = 32
	kilopascalsInPSI = 6.895
)

// ConvertUnits converts the temperature from Celsius to Fahrenheit
// and the pressure from kilopascals to psi.
//
// The measurements are parsed again rather than taken from the validation stage.
// ConvertUnits returns false when either measurement can not be parsed
// or the converted value is not finite.
func ConvertUnits(rec ParsedRecord) (ConvertedRecord, bool) {
	v, err := Validate(rec)
	if err != nil {
		return ConvertedRecord{}, false
	}

	return convert(v)
}

func convert(v *ValidatedRecord) (ConvertedRecord, bool) {
	out := ConvertedRecord{
		Temperature: celsiusToFahrenheit(v.Celsius),
		Pressure:    kilopascalsToPSI(v.Kilopascals),
	}

	if !isFinite(out.Temperature) || !isFinite(out.Pressure) {
		return ConvertedRecord{}, false
	}

	return out, true
}

// The explicit conversion rounds the product before the addition,
// so the result is never computed with a fused multiply-add.
func celsiusToFahrenheit(c float64) float64 {
	return float64(c*fahrenheitScale) + fahrenheitOffset
}

func kilopascalsToPSI(kpa float64) float64 {
	return kpa / kilopascalsInPSI
}
