package gateway

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Telemetry keys, in wire order.
const (
	KeyTemperature = "temperature"
	KeyLightLevel  = "light_level"
	KeyWaterLevel  = "water_level"
)

// DefaultDelimiter separates fields in a radio payload.
const DefaultDelimiter = ";"

// minFields is the number of leading fields a payload must carry.
const minFields = 3

// SensorReading is the telemetry record published each successful cycle.
//
// The gateway replaces it wholesale from one parsed payload; it is never
// partially updated.
type SensorReading struct {
	Temperature float64 `json:"temperature"`
	LightLevel  float64 `json:"light_level"`
	WaterLevel  float64 `json:"water_level"`
}

// MarshalJSON encodes the reading with a stable key order. Every value is
// written in float form, so 2731 is sent as 2731.0 and ThingsBoard keeps
// a consistent numeric type per key.
func (r SensorReading) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf = append(buf, `{"`+KeyTemperature+`":`...)
	buf = appendFloat(buf, r.Temperature)
	buf = append(buf, `,"`+KeyLightLevel+`":`...)
	buf = appendFloat(buf, r.LightLevel)
	buf = append(buf, `,"`+KeyWaterLevel+`":`...)
	buf = appendFloat(buf, r.WaterLevel)
	buf = append(buf, '}')
	return buf, nil
}

// appendFloat writes v in shortest form, adding ".0" to integral values.
func appendFloat(buf []byte, v float64) []byte {
	start := len(buf)
	buf = strconv.AppendFloat(buf, v, 'f', -1, 64)
	if !bytes.ContainsRune(buf[start:], '.') {
		buf = append(buf, ".0"...)
	}
	return buf
}

// LogAttrs returns the reading as structured log key/value pairs.
func (r SensorReading) LogAttrs() []any {
	return []any{
		KeyTemperature, r.Temperature,
		KeyLightLevel, r.LightLevel,
		KeyWaterLevel, r.WaterLevel,
	}
}

// ParsePayload converts a raw radio payload into a SensorReading.
//
// Trailing NUL padding is stripped, the text is split on delim and every
// field must parse as a finite decimal number. The first three fields
// become temperature, light level and water level; extra fields are
// validated but otherwise ignored.
//
// Returns:
//   - ErrDecode if the bytes are not valid UTF-8
//   - ErrMalformedPayload if a field is not numeric
//   - ErrInsufficientFields if fewer than three fields are present
func ParsePayload(payload []byte, delim string) (SensorReading, error) {
	if delim == "" {
		delim = DefaultDelimiter
	}

	trimmed := bytes.TrimRight(payload, "\x00")
	if !utf8.Valid(trimmed) {
		return SensorReading{}, ErrDecode
	}

	text := strings.TrimSpace(string(trimmed))
	if text == "" {
		return SensorReading{}, fmt.Errorf("%w: got 0, need %d", ErrInsufficientFields, minFields)
	}

	parts := strings.Split(text, delim)
	values := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return SensorReading{}, fmt.Errorf("%w: field %d %q is not a number", ErrMalformedPayload, i, part)
		}
		values[i] = v
	}

	if len(values) < minFields {
		return SensorReading{}, fmt.Errorf("%w: got %d, need %d", ErrInsufficientFields, len(values), minFields)
	}

	return SensorReading{
		Temperature: values[0],
		LightLevel:  values[1],
		WaterLevel:  values[2],
	}, nil
}
