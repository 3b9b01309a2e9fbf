package gps

import "gpsreader/internal/nmea"

// Notifier receives normalized updates from the Dispatcher. Every dispatched
// line ends with exactly one UpdateCycleComplete call, which marks the
// preceding field updates (possibly none) as one batch.
//
// Calls are synchronous; a slow Notifier stalls ingestion.
type Notifier interface {
	SetDateTime(date nmea.Date, t nmea.Time)
	SetLatLong(latDeg, lonDeg float64)
	SetSpeed(knots float64)
	SetBearing(deg float64)
	SetAltitude(value float64, units byte)
	// SetAccuracy carries HDOP. The sentences handled here do not report an
	// estimated position error.
	SetAccuracy(hdop float64)
	SatellitesUsed(ids []int)
	SatellitesInViewUpdate(talker string, msgNr, totalMsgs int)
	SatellitesInViewCount(talker string, count int)
	SatelliteAppend(talker string, id, elevation, azimuth, snr int)
	UpdateCycleComplete()
}

// NopNotifier ignores every update. Embed it to implement a subset.
type NopNotifier struct{}

func (NopNotifier) SetDateTime(nmea.Date, nmea.Time)           {}
func (NopNotifier) SetLatLong(float64, float64)                {}
func (NopNotifier) SetSpeed(float64)                           {}
func (NopNotifier) SetBearing(float64)                         {}
func (NopNotifier) SetAltitude(float64, byte)                  {}
func (NopNotifier) SetAccuracy(float64)                        {}
func (NopNotifier) SatellitesUsed([]int)                       {}
func (NopNotifier) SatellitesInViewUpdate(string, int, int)    {}
func (NopNotifier) SatellitesInViewCount(string, int)          {}
func (NopNotifier) SatelliteAppend(string, int, int, int, int) {}
func (NopNotifier) UpdateCycleComplete()                       {}

// Notifiers fans every call out to each non-nil notifier in order.
func Notifiers(ns ...Notifier) Notifier {
	out := make(multiNotifier, 0, len(ns))
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

type multiNotifier []Notifier

func (m multiNotifier) SetDateTime(d nmea.Date, t nmea.Time) {
	for _, n := range m {
		n.SetDateTime(d, t)
	}
}

func (m multiNotifier) SetLatLong(lat, lon float64) {
	for _, n := range m {
		n.SetLatLong(lat, lon)
	}
}

func (m multiNotifier) SetSpeed(knots float64) {
	for _, n := range m {
		n.SetSpeed(knots)
	}
}

func (m multiNotifier) SetBearing(deg float64) {
	for _, n := range m {
		n.SetBearing(deg)
	}
}

func (m multiNotifier) SetAltitude(v float64, units byte) {
	for _, n := range m {
		n.SetAltitude(v, units)
	}
}

func (m multiNotifier) SetAccuracy(hdop float64) {
	for _, n := range m {
		n.SetAccuracy(hdop)
	}
}

func (m multiNotifier) SatellitesUsed(ids []int) {
	for _, n := range m {
		n.SatellitesUsed(ids)
	}
}

func (m multiNotifier) SatellitesInViewUpdate(talker string, msgNr, totalMsgs int) {
	for _, n := range m {
		n.SatellitesInViewUpdate(talker, msgNr, totalMsgs)
	}
}

func (m multiNotifier) SatellitesInViewCount(talker string, count int) {
	for _, n := range m {
		n.SatellitesInViewCount(talker, count)
	}
}

func (m multiNotifier) SatelliteAppend(talker string, id, elevation, azimuth, snr int) {
	for _, n := range m {
		n.SatelliteAppend(talker, id, elevation, azimuth, snr)
	}
}

func (m multiNotifier) UpdateCycleComplete() {
	for _, n := range m {
		n.UpdateCycleComplete()
	}
}

// DropReason says why a line produced no field updates.
type DropReason int

const (
	// DropOverflow: the line exceeded the Reader capacity.
	DropOverflow DropReason = iota
	// DropInvalid: bad framing, talker or checksum.
	DropInvalid
	// DropDecode: a supported kind whose fields failed to decode.
	DropDecode
	// DropUnsupported: a well-formed sentence with no handler.
	DropUnsupported
)

func (r DropReason) String() string {
	switch r {
	case DropOverflow:
		return "overflow"
	case DropInvalid:
		return "invalid"
	case DropDecode:
		return "decode"
	case DropUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Hooks observes the framing and dispatch drop points. Implementations must
// be cheap; they run inline with ingestion.
type Hooks interface {
	OverflowEnter()
	OverflowClear()
	Decoded(kind nmea.Kind)
	Dropped(reason DropReason, kind nmea.Kind)
}

// NopHooks ignores every event.
type NopHooks struct{}

func (NopHooks) OverflowEnter()                {}
func (NopHooks) OverflowClear()                {}
func (NopHooks) Decoded(nmea.Kind)             {}
func (NopHooks) Dropped(DropReason, nmea.Kind) {}
