// Package nmea decodes NMEA-0183 sentences into fixed-point frames.
//
// Numeric fields are never parsed through floating point. Each one is kept
// as a Float (integer value plus integer scale) so that consumers can decide
// how and when to convert.
package nmea

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalid reports a structural problem: missing '$', bad talker or
	// sentence id, non-printable bytes, or a checksum mismatch.
	ErrInvalid = errors.New("nmea: invalid sentence")
	// ErrFormat reports a well-formed sentence whose fields do not decode.
	ErrFormat = errors.New("nmea: malformed field")
)

// Kind identifies a sentence type independent of its talker.
type Kind int

const (
	KindInvalid Kind = iota - 1
	KindUnknown
	KindRMC
	KindGGA
	KindGSA
	KindGSV
	KindVTG
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindUnknown:
		return "unknown"
	case KindRMC:
		return "RMC"
	case KindGGA:
		return "GGA"
	case KindGSA:
		return "GSA"
	case KindGSV:
		return "GSV"
	case KindVTG:
		return "VTG"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

var kindByType = map[string]Kind{
	"RMC": KindRMC,
	"GGA": KindGGA,
	"GSA": KindGSA,
	"GSV": KindGSV,
	"VTG": KindVTG,
}

// Checksum returns the XOR of every byte in payload (the text between '$'
// and '*').
func Checksum(payload string) byte {
	ck := byte(0)
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	return ck
}

// ValidChecksum reports whether line carries a "*HH" suffix that matches its
// payload.
func ValidChecksum(line string) bool {
	payload, ck, ok := split(trim(line))
	return ok && ck >= 0 && byte(ck) == Checksum(payload)
}

// Check validates the framing of line. When strict is set the checksum must
// be present; otherwise it is verified only if present.
func Check(line string, strict bool) error {
	line = trim(line)
	payload, ck, ok := split(line)
	if !ok {
		return ErrInvalid
	}
	for i := 0; i < len(payload); i++ {
		if c := payload[i]; c < 0x20 || c > 0x7e {
			return fmt.Errorf("%w: non-printable byte 0x%02x", ErrInvalid, c)
		}
	}
	switch {
	case ck == -1 && strict:
		return fmt.Errorf("%w: missing checksum", ErrInvalid)
	case ck >= 0 && byte(ck) != Checksum(payload):
		return fmt.Errorf("%w: checksum mismatch", ErrInvalid)
	}
	return nil
}

// Classify identifies the kind of line. Structurally broken sentences are
// KindInvalid; well-formed sentences of unsupported types are KindUnknown.
func Classify(line string, strict bool) Kind {
	if Check(line, strict) != nil {
		return KindInvalid
	}
	id, err := sentenceID(line)
	if err != nil {
		return KindInvalid
	}
	if k, ok := kindByType[id[2:]]; ok {
		return k
	}
	return KindUnknown
}

// TalkerID returns the two-character talker prefix, e.g. "GP" or "GL".
func TalkerID(line string) (string, error) {
	id, err := sentenceID(line)
	if err != nil {
		return "", err
	}
	return id[:2], nil
}

func sentenceID(line string) (string, error) {
	line = trim(line)
	if len(line) < 6 || line[0] != '$' {
		return "", ErrInvalid
	}
	id := line[1:6]
	for i := 0; i < len(id); i++ {
		c := id[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return "", fmt.Errorf("%w: bad sentence id %q", ErrInvalid, id)
		}
	}
	if len(line) > 6 && line[6] != ',' && line[6] != '*' {
		return "", fmt.Errorf("%w: bad sentence id", ErrInvalid)
	}
	return id, nil
}

// trim drops the line terminator and surrounding whitespace.
func trim(line string) string {
	return strings.TrimSpace(line)
}

// split returns the payload between '$' and '*' and the parsed checksum, or
// -1 when the sentence carries none.
func split(line string) (payload string, ck int, ok bool) {
	if len(line) == 0 || line[0] != '$' {
		return "", 0, false
	}
	star := strings.IndexByte(line, '*')
	if star == -1 {
		return line[1:], -1, true
	}
	rest := line[star+1:]
	if len(rest) != 2 {
		return "", 0, false
	}
	hi, ok1 := unhex(rest[0])
	lo, ok2 := unhex(rest[1])
	if !ok1 || !ok2 {
		return "", 0, false
	}
	return line[1:star], int(hi<<4 | lo), true
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

// fields returns the comma separated payload. fields[0] is the sentence id.
func fields(line string, want Kind) ([]string, error) {
	line = trim(line)
	if err := Check(line, false); err != nil {
		return nil, err
	}
	id, err := sentenceID(line)
	if err != nil {
		return nil, err
	}
	if k := kindByType[id[2:]]; k != want {
		return nil, fmt.Errorf("%w: sentence %s is not %s", ErrFormat, id, want)
	}
	payload, _, _ := split(line)
	return strings.Split(payload, ","), nil
}
