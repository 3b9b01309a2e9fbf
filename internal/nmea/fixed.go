package nmea

import (
	"fmt"
	"math"
	"math/big"
)

// maxFloatValue bounds Float.Value so that degree/minute splitting and
// rescaling stay within integer range. Extra fractional digits past the bound
// are dropped, as receivers pad with meaningless precision.
const maxFloatValue = math.MaxInt32

// Float is a fixed-point rational Value/Scale. A zero Scale marks an empty
// field.
type Float struct {
	Value int
	Scale int
}

// IsZero reports whether the field was empty.
func (f Float) IsZero() bool { return f.Scale == 0 }

// ToFloat converts f to floating point. Empty fields yield NaN.
func (f Float) ToFloat() float64 {
	if f.Scale == 0 {
		return math.NaN()
	}
	return float64(f.Value) / float64(f.Scale)
}

// ToCoord converts an NMEA [d]ddmm.mmmm coordinate to decimal degrees,
// preserving sign. Empty fields yield NaN.
func (f Float) ToCoord() float64 {
	if f.Scale == 0 {
		return math.NaN()
	}
	if f.Value > maxFloatValue || f.Value < -maxFloatValue {
		return math.NaN()
	}
	unit := f.Scale * 100
	degrees := f.Value / unit
	minutes := f.Value % unit
	return float64(degrees) + float64(minutes)/float64(60*f.Scale)
}

// Rescale returns round(Value*scale/Scale) computed exactly in integers,
// rounding half away from zero. Empty fields and non-positive scales yield 0.
func (f Float) Rescale(scale int) int {
	if f.Scale == 0 || scale <= 0 {
		return 0
	}
	if f.Scale == scale {
		return f.Value
	}
	if scale%f.Scale == 0 {
		return f.Value * (scale / f.Scale)
	}

	num := new(big.Int).Mul(big.NewInt(int64(f.Value)), big.NewInt(int64(scale)))
	den := big.NewInt(int64(f.Scale))
	neg := num.Sign() < 0
	num.Abs(num)
	// (2|num| + den) / (2den) is |num|/den rounded half up.
	num.Lsh(num, 1).Add(num, den)
	den.Lsh(den, 1)
	q := num.Quo(num, den)
	if neg {
		q.Neg(q)
	}
	return int(q.Int64())
}

func (f Float) String() string {
	if f.Scale == 0 {
		return ""
	}
	return fmt.Sprintf("%d/%d", f.Value, f.Scale)
}

// parseFloat reads an optionally signed decimal number into a Float. An
// empty field is not an error.
func parseFloat(s string) (Float, error) {
	if s == "" {
		return Float{}, nil
	}
	i := 0
	sign := 1
	switch s[0] {
	case '-':
		sign = -1
		i++
	case '+':
		i++
	}
	value, scale := 0, 1
	digits := 0
	seenDot := false
	for ; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '.' && !seenDot:
			seenDot = true
		case c >= '0' && c <= '9':
			digits++
			if seenDot {
				if value > maxFloatValue/10 {
					continue
				}
				scale *= 10
			} else if value > (maxFloatValue-int(c-'0'))/10 {
				return Float{}, fmt.Errorf("%w: number %q out of range", ErrFormat, s)
			}
			value = value*10 + int(c-'0')
		default:
			return Float{}, fmt.Errorf("%w: bad number %q", ErrFormat, s)
		}
	}
	if digits == 0 {
		return Float{}, fmt.Errorf("%w: bad number %q", ErrFormat, s)
	}
	return Float{Value: sign * value, Scale: scale}, nil
}

// parseInt reads a decimal integer. An empty field decodes to 0.
func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	f, err := parseFloat(s)
	if err != nil {
		return 0, err
	}
	if f.Scale != 1 {
		return 0, fmt.Errorf("%w: expected integer, got %q", ErrFormat, s)
	}
	return f.Value, nil
}

// parseChar reads a single-character field. An empty field decodes to 0.
func parseChar(s string) (byte, error) {
	switch len(s) {
	case 0:
		return 0, nil
	case 1:
		return s[0], nil
	}
	return 0, fmt.Errorf("%w: expected single character, got %q", ErrFormat, s)
}

// parseDirection maps N/E to 1, S/W to -1 and an empty field to 0.
func parseDirection(s string) (int, error) {
	switch s {
	case "":
		return 0, nil
	case "N", "E":
		return 1, nil
	case "S", "W":
		return -1, nil
	}
	return 0, fmt.Errorf("%w: bad direction %q", ErrFormat, s)
}

// parseCoord reads a coordinate field and applies its hemisphere sign.
func parseCoord(value, hemi string) (Float, error) {
	f, err := parseFloat(value)
	if err != nil {
		return Float{}, err
	}
	dir, err := parseDirection(hemi)
	if err != nil {
		return Float{}, err
	}
	if dir < 0 {
		f.Value = -f.Value
	}
	return f, nil
}
