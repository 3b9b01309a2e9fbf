package gps

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"gpsreader/internal/nmea"
)

// Dispatcher decodes framed lines and turns them into Notifier calls.
type Dispatcher struct {
	n      Notifier
	hooks  Hooks
	logger *log.Logger
	strict bool
}

type DispatcherOption func(*Dispatcher)

// WithLogger enables per-sentence traces at debug level.
func WithLogger(l *log.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

func WithHooks(h Hooks) DispatcherOption {
	return func(d *Dispatcher) {
		if h != nil {
			d.hooks = h
		}
	}
}

// WithStrict rejects sentences that carry no checksum.
func WithStrict(strict bool) DispatcherOption {
	return func(d *Dispatcher) { d.strict = strict }
}

func NewDispatcher(n Notifier, opts ...DispatcherOption) *Dispatcher {
	if n == nil {
		n = NopNotifier{}
	}
	d := &Dispatcher{
		n:      n,
		hooks:  NopHooks{},
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) HandleLine(line []byte) {
	d.Dispatch(string(line))
}

func (d *Dispatcher) HandleOverflow() {
	d.hooks.Dropped(DropOverflow, nmea.KindInvalid)
	d.logger.Debug("sentence dropped", "reason", DropOverflow)
	d.n.UpdateCycleComplete()
}

// Dispatch handles one complete line. It always ends with a single
// UpdateCycleComplete, whether or not the line decoded.
func (d *Dispatcher) Dispatch(line string) {
	defer d.n.UpdateCycleComplete()

	s, kind, err := Decode(line, d.strict)
	if err != nil {
		reason := DropDecode
		switch {
		case kind == nmea.KindInvalid || errors.Is(err, nmea.ErrInvalid):
			reason = DropInvalid
		case errors.Is(err, errUnsupported):
			reason = DropUnsupported
		}
		d.hooks.Dropped(reason, kind)
		d.logger.Debug("sentence dropped", "reason", reason, "kind", kind, "err", err)
		return
	}
	d.hooks.Decoded(kind)
	d.emit(s)
}

func (d *Dispatcher) emit(s Sentence) {
	debug := d.logger.GetLevel() <= log.DebugLevel

	switch f := s.(type) {
	case RMCSentence:
		if debug {
			d.logger.Debug("rmc",
				"lat", f.Latitude, "lon", f.Longitude, "speed", f.Speed,
				"lat_e3", f.Latitude.Rescale(1000), "lon_e3", f.Longitude.Rescale(1000), "speed_e3", f.Speed.Rescale(1000),
				"valid", f.Valid)
		}
		d.n.SetDateTime(f.Date, f.Time)
		d.n.SetLatLong(f.Latitude.ToCoord(), f.Longitude.ToCoord())
		d.n.SetSpeed(f.Speed.ToFloat())
		d.n.SetBearing(f.Course.ToFloat())

	case GGASentence:
		if debug {
			d.logger.Debug("gga",
				"fix_quality", f.FixQuality, "satellites", f.SatellitesTracked,
				"hdop", f.HDOP.ToFloat(), "altitude", f.Altitude.ToFloat(), "units", string(rune(f.AltitudeUnits)),
				"height", f.Height.ToFloat())
		}
		d.n.SetLatLong(f.Latitude.ToCoord(), f.Longitude.ToCoord())
		d.n.SetAltitude(f.Altitude.ToFloat(), f.AltitudeUnits)
		d.n.SetAccuracy(f.HDOP.ToFloat())

	case GSASentence:
		if debug {
			d.logger.Debug("gsa", "talker", f.Talker, "mode", string(rune(f.Mode)), "fix_type", f.FixType,
				"pdop", f.PDOP.ToFloat(), "hdop", f.HDOP.ToFloat(), "vdop", f.VDOP.ToFloat())
		}
		d.n.SatellitesUsed(f.UsedIDs())
		d.n.SetAccuracy(f.HDOP.ToFloat())

	case GSVSentence:
		if debug {
			d.logger.Debug("gsv", "talker", f.Talker, "msg", f.MsgNr, "total", f.TotalMsgs, "in_view", f.TotalSats)
		}
		d.n.SatellitesInViewUpdate(f.Talker, f.MsgNr, f.TotalMsgs)
		d.n.SatellitesInViewCount(f.Talker, f.TotalSats)
		for _, sat := range f.Sats {
			if sat.Nr == 0 {
				continue
			}
			d.n.SatelliteAppend(f.Talker, sat.Nr, sat.Elevation, sat.Azimuth, sat.SNR)
		}

	case VTGSentence:
		if debug {
			d.logger.Debug("vtg", "true_track", f.TrueTrackDegrees.ToFloat(), "magnetic_track", f.MagneticTrackDegrees.ToFloat(),
				"knots", f.SpeedKnots.ToFloat(), "kph", f.SpeedKPH.ToFloat())
		}
		d.n.SetSpeed(f.SpeedKnots.ToFloat())
		d.n.SetBearing(f.TrueTrackDegrees.ToFloat())

	default:
		panic(fmt.Sprintf("gps: unhandled sentence %T", s))
	}
}
