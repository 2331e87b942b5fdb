package orientation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Pose is the canonical representation of orientation for the app.
// Angles are in degrees, as computed by the sensor firmware.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// MinFields is the smallest token count of a telemetry line: a two-field
// preamble (sequence counter, flag) followed by yaw, pitch and roll.
const MinFields = 5

// ErrParse is wrapped by every ParseError.
var ErrParse = errors.New("orientation: parse error")

// ParseError reports an angle token that is not a number.
type ParseError struct {
	Field string // "yaw", "pitch" or "roll"
	Token string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("orientation: invalid %s %q: %v", e.Field, e.Token, e.Err)
}

func (e *ParseError) Unwrap() []error { return []error{ErrParse, e.Err} }

// ParseLine extracts yaw, pitch and roll from the last three whitespace
// separated fields of a telemetry line such as "4576 0 142.36 -5.24 -15.82".
//
// A line with fewer than MinFields tokens is framing noise: ParseLine returns
// ok=false and a nil error. A line whose angle tokens are not numbers returns
// a *ParseError.
func ParseLine(line string) (p Pose, ok bool, err error) {
	parts := strings.Fields(line)
	if len(parts) < MinFields {
		return Pose{}, false, nil
	}

	angles := parts[len(parts)-3:]
	names := [3]string{"yaw", "pitch", "roll"}
	var vals [3]float64
	for i, tok := range angles {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return Pose{}, false, &ParseError{Field: names[i], Token: tok, Err: err}
		}
		vals[i] = v
	}

	return Pose{Yaw: vals[0], Pitch: vals[1], Roll: vals[2]}, true, nil
}

// FormatLine renders a pose in the device line format. seq and flag fill
// the preamble fields.
func FormatLine(seq uint64, flag int, p Pose) string {
	return fmt.Sprintf("%d %d %.2f %.2f %.2f", seq, flag, p.Yaw, p.Pitch, p.Roll)
}
