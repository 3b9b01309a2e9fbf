package gps

import (
	"errors"
	"fmt"

	"gpsreader/internal/nmea"
)

var errUnsupported = errors.New("gps: unsupported sentence")

// Sentence is a decoded line. The set of implementations is closed; the
// Dispatcher switches over all of them.
type Sentence interface {
	Kind() nmea.Kind
	sentence()
}

type RMCSentence struct{ nmea.RMC }

type GGASentence struct{ nmea.GGA }

type GSASentence struct {
	nmea.GSA
	Talker string
}

type GSVSentence struct {
	nmea.GSV
	Talker string
}

type VTGSentence struct{ nmea.VTG }

func (RMCSentence) Kind() nmea.Kind { return nmea.KindRMC }
func (GGASentence) Kind() nmea.Kind { return nmea.KindGGA }
func (GSASentence) Kind() nmea.Kind { return nmea.KindGSA }
func (GSVSentence) Kind() nmea.Kind { return nmea.KindGSV }
func (VTGSentence) Kind() nmea.Kind { return nmea.KindVTG }

func (RMCSentence) sentence() {}
func (GGASentence) sentence() {}
func (GSASentence) sentence() {}
func (GSVSentence) sentence() {}
func (VTGSentence) sentence() {}

// Decode classifies and decodes one line. The returned kind is meaningful
// even when err is non-nil: nmea.KindInvalid wraps nmea.ErrInvalid,
// nmea.KindUnknown wraps errUnsupported and a supported kind carries the
// field-level error.
func Decode(line string, strict bool) (Sentence, nmea.Kind, error) {
	kind := nmea.Classify(line, strict)
	switch kind {
	case nmea.KindInvalid:
		return nil, kind, nmea.ErrInvalid
	case nmea.KindUnknown:
		return nil, kind, errUnsupported
	case nmea.KindRMC:
		f, err := nmea.ParseRMC(line)
		if err != nil {
			return nil, kind, err
		}
		return RMCSentence{f}, kind, nil
	case nmea.KindGGA:
		f, err := nmea.ParseGGA(line)
		if err != nil {
			return nil, kind, err
		}
		return GGASentence{f}, kind, nil
	case nmea.KindGSA:
		f, err := nmea.ParseGSA(line)
		if err != nil {
			return nil, kind, err
		}
		talker, err := nmea.TalkerID(line)
		if err != nil {
			return nil, kind, err
		}
		return GSASentence{GSA: f, Talker: talker}, kind, nil
	case nmea.KindGSV:
		f, err := nmea.ParseGSV(line)
		if err != nil {
			return nil, kind, err
		}
		talker, err := nmea.TalkerID(line)
		if err != nil {
			return nil, kind, err
		}
		return GSVSentence{GSV: f, Talker: talker}, kind, nil
	case nmea.KindVTG:
		f, err := nmea.ParseVTG(line)
		if err != nil {
			return nil, kind, err
		}
		return VTGSentence{f}, kind, nil
	default:
		return nil, kind, fmt.Errorf("gps: no decoder for %s", kind)
	}
}
