package nmea

import "fmt"

// RMC: Recommended Minimum Specific GNSS Data.
//
//	0: talker+type
//	1: time (hhmmss.sss)
//	2: status (A=active, V=void)
//	3,4: latitude (ddmm.mmmm), N/S
//	5,6: longitude (dddmm.mmmm), E/W
//	7: speed over ground (knots)
//	8: course over ground (deg true)
//	9: date (ddmmyy)
//	10,11: magnetic variation, E/W (optional)
type RMC struct {
	Time      Time
	Valid     bool
	Latitude  Float
	Longitude Float
	Speed     Float
	Course    Float
	Date      Date
	Variation Float
}

// GGA: Global Positioning System Fix Data.
//
//	1: time
//	2,3: latitude, N/S
//	4,5: longitude, E/W
//	6: fix quality (0=invalid)
//	7: satellites tracked
//	8: HDOP
//	9,10: altitude, units
//	11,12: geoid separation, units
//	13,14: DGPS age, station id (optional)
type GGA struct {
	Time              Time
	Latitude          Float
	Longitude         Float
	FixQuality        int
	SatellitesTracked int
	HDOP              Float
	Altitude          Float
	AltitudeUnits     byte
	Height            Float
	HeightUnits       byte
	DGPSAge           Float
}

// GSA: DOP and active satellites.
//
//	1: mode (A=auto, M=manual)
//	2: fix type (1=none, 2=2D, 3=3D)
//	3-14: satellite ids used in the solution
//	15,16,17: PDOP, HDOP, VDOP
//	18: system id (NMEA 4.1, optional)
type GSA struct {
	Mode    byte
	FixType int
	Sats    [12]int
	PDOP    Float
	HDOP    Float
	VDOP    Float
}

// UsedIDs returns the non-empty satellite slots.
func (g GSA) UsedIDs() []int {
	out := make([]int, 0, len(g.Sats))
	for _, id := range g.Sats {
		if id != 0 {
			out = append(out, id)
		}
	}
	return out
}

// SatInfo is one satellite record from a GSV message. Nr is 0 for an unused
// slot.
type SatInfo struct {
	Nr        int
	Elevation int
	Azimuth   int
	SNR       int
}

// GSV: Satellites in view. One message carries up to four satellites.
//
//	1: total messages
//	2: message number (1-based)
//	3: satellites in view
//	4..: groups of nr, elevation, azimuth, snr
//	last: signal id (NMEA 4.1, optional)
type GSV struct {
	TotalMsgs int
	MsgNr     int
	TotalSats int
	Sats      [4]SatInfo
}

// VTG: Track made good and ground speed.
//
//	1,2: true track, 'T'
//	3,4: magnetic track, 'M'
//	5,6: speed knots, 'N'
//	7,8: speed km/h, 'K'
//	9: FAA mode (optional)
type VTG struct {
	TrueTrackDegrees     Float
	MagneticTrackDegrees Float
	SpeedKnots           Float
	SpeedKPH             Float
	FAAMode              byte
}

// fieldReader walks sentence fields, remembering the first error.
type fieldReader struct {
	f   []string
	err error
}

func (r *fieldReader) at(i int) string {
	if i < len(r.f) {
		return r.f[i]
	}
	return ""
}

func (r *fieldReader) float(i int) Float {
	v, err := parseFloat(r.at(i))
	r.keep(err)
	return v
}

func (r *fieldReader) integer(i int) int {
	v, err := parseInt(r.at(i))
	r.keep(err)
	return v
}

func (r *fieldReader) char(i int) byte {
	v, err := parseChar(r.at(i))
	r.keep(err)
	return v
}

func (r *fieldReader) coord(i int) Float {
	v, err := parseCoord(r.at(i), r.at(i+1))
	r.keep(err)
	return v
}

func (r *fieldReader) time(i int) Time {
	v, err := parseTime(r.at(i))
	r.keep(err)
	return v
}

func (r *fieldReader) date(i int) Date {
	v, err := parseDate(r.at(i))
	r.keep(err)
	return v
}

// unit accepts an empty field or the expected unit letter.
func (r *fieldReader) unit(i int, want byte) {
	c := r.char(i)
	if c != 0 && c != want {
		r.keep(fmt.Errorf("%w: field %d: unit %q, want %q", ErrFormat, i, c, want))
	}
}

func (r *fieldReader) keep(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}

func readFields(line string, k Kind, minFields, maxFields int) (*fieldReader, error) {
	f, err := fields(line, k)
	if err != nil {
		return nil, err
	}
	if len(f) < minFields || len(f) > maxFields {
		return nil, fmt.Errorf("%w: %s has %d fields", ErrFormat, k, len(f))
	}
	return &fieldReader{f: f}, nil
}

func ParseRMC(line string) (RMC, error) {
	r, err := readFields(line, KindRMC, 10, 14)
	if err != nil {
		return RMC{}, err
	}
	var out RMC
	out.Time = r.time(1)
	switch status := r.char(2); status {
	case 'A':
		out.Valid = true
	case 'V', 0:
	default:
		r.keep(fmt.Errorf("%w: rmc status %q", ErrFormat, status))
	}
	out.Latitude = r.coord(3)
	out.Longitude = r.coord(5)
	out.Speed = r.float(7)
	out.Course = r.float(8)
	out.Date = r.date(9)
	out.Variation = r.coord(10)
	if r.err != nil {
		return RMC{}, r.err
	}
	return out, nil
}

func ParseGGA(line string) (GGA, error) {
	r, err := readFields(line, KindGGA, 13, 15)
	if err != nil {
		return GGA{}, err
	}
	var out GGA
	out.Time = r.time(1)
	out.Latitude = r.coord(2)
	out.Longitude = r.coord(4)
	out.FixQuality = r.integer(6)
	out.SatellitesTracked = r.integer(7)
	out.HDOP = r.float(8)
	out.Altitude = r.float(9)
	out.AltitudeUnits = r.char(10)
	out.Height = r.float(11)
	out.HeightUnits = r.char(12)
	out.DGPSAge = r.float(13)
	if r.err != nil {
		return GGA{}, r.err
	}
	return out, nil
}

func ParseGSA(line string) (GSA, error) {
	r, err := readFields(line, KindGSA, 18, 19)
	if err != nil {
		return GSA{}, err
	}
	var out GSA
	out.Mode = r.char(1)
	out.FixType = r.integer(2)
	for i := range out.Sats {
		out.Sats[i] = r.integer(3 + i)
	}
	out.PDOP = r.float(15)
	out.HDOP = r.float(16)
	out.VDOP = r.float(17)
	if r.err != nil {
		return GSA{}, r.err
	}
	return out, nil
}

func ParseGSV(line string) (GSV, error) {
	r, err := readFields(line, KindGSV, 4, 21)
	if err != nil {
		return GSV{}, err
	}
	extra := len(r.f) - 4
	if extra%4 > 1 {
		return GSV{}, fmt.Errorf("%w: gsv has %d fields", ErrFormat, len(r.f))
	}
	var out GSV
	out.TotalMsgs = r.integer(1)
	out.MsgNr = r.integer(2)
	out.TotalSats = r.integer(3)
	for i := 0; i < extra/4; i++ {
		base := 4 + i*4
		out.Sats[i] = SatInfo{
			Nr:        r.integer(base),
			Elevation: r.integer(base + 1),
			Azimuth:   r.integer(base + 2),
			SNR:       r.integer(base + 3),
		}
	}
	if r.err != nil {
		return GSV{}, r.err
	}
	if out.TotalMsgs < 1 || out.MsgNr < 1 || out.MsgNr > out.TotalMsgs {
		return GSV{}, fmt.Errorf("%w: gsv message %d of %d", ErrFormat, out.MsgNr, out.TotalMsgs)
	}
	return out, nil
}

func ParseVTG(line string) (VTG, error) {
	r, err := readFields(line, KindVTG, 9, 10)
	if err != nil {
		return VTG{}, err
	}
	var out VTG
	out.TrueTrackDegrees = r.float(1)
	r.unit(2, 'T')
	out.MagneticTrackDegrees = r.float(3)
	r.unit(4, 'M')
	out.SpeedKnots = r.float(5)
	r.unit(6, 'N')
	out.SpeedKPH = r.float(7)
	r.unit(8, 'K')
	out.FAAMode = r.char(9)
	if r.err != nil {
		return VTG{}, r.err
	}
	return out, nil
}
