// Package console prints one human-readable line per update cycle.
package console

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/golang/geo/s2"
	"github.com/lestrrat-go/strftime"
	"github.com/tzneal/coordconv"

	"gpsreader/internal/gps"
	"gpsreader/internal/nmea"
)

type Grid string

const (
	GridNone Grid = ""
	GridUTM  Grid = "utm"
	GridMGRS Grid = "mgrs"
)

type Option func(*Printer)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Printer) { p.now = now }
}

func WithGrid(g Grid) Option {
	return func(p *Printer) { p.grid = g }
}

type cycle struct {
	fixTime        string
	lat, lon       float64
	haveLatLon     bool
	speed, bearing float64
	alt            float64
	altUnits       byte
	hdop           float64
	used           []int
	inView         map[string]int
	sats           int
	dirty          bool
}

// Printer is a gps.Notifier. Fields reported during a cycle are written as
// one line when the cycle completes; empty cycles print nothing.
type Printer struct {
	w    io.Writer
	ts   *strftime.Strftime
	now  func() time.Time
	grid Grid

	cur cycle
}

var _ gps.Notifier = (*Printer)(nil)

// NewPrinter compiles the strftime timestamp pattern up front so a bad
// pattern fails at startup.
func NewPrinter(w io.Writer, timeFormat string, opts ...Option) (*Printer, error) {
	ts, err := strftime.New(timeFormat)
	if err != nil {
		return nil, fmt.Errorf("console time format %q: %w", timeFormat, err)
	}
	p := &Printer{w: w, ts: ts, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	p.reset()
	return p, nil
}

func (p *Printer) reset() {
	nan := math.NaN()
	p.cur = cycle{speed: nan, bearing: nan, alt: nan, hdop: nan}
}

func (p *Printer) SetDateTime(d nmea.Date, t nmea.Time) {
	if ts, ok := nmea.ToTime(d, t); ok {
		p.cur.fixTime = ts.Format("15:04:05.000")
		p.cur.dirty = true
	}
}

func (p *Printer) SetLatLong(lat, lon float64) {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return
	}
	p.cur.lat, p.cur.lon, p.cur.haveLatLon = lat, lon, true
	p.cur.dirty = true
}

func (p *Printer) SetSpeed(knots float64) {
	p.setFloat(&p.cur.speed, knots)
}

func (p *Printer) SetBearing(deg float64) {
	p.setFloat(&p.cur.bearing, deg)
}

func (p *Printer) SetAltitude(v float64, units byte) {
	p.setFloat(&p.cur.alt, v)
	p.cur.altUnits = units
}

func (p *Printer) SetAccuracy(hdop float64) {
	p.setFloat(&p.cur.hdop, hdop)
}

func (p *Printer) setFloat(dst *float64, v float64) {
	if math.IsNaN(v) {
		return
	}
	*dst = v
	p.cur.dirty = true
}

func (p *Printer) SatellitesUsed(ids []int) {
	p.cur.used = append([]int(nil), ids...)
	p.cur.dirty = true
}

func (p *Printer) SatellitesInViewUpdate(string, int, int) {}

func (p *Printer) SatellitesInViewCount(talker string, count int) {
	if p.cur.inView == nil {
		p.cur.inView = make(map[string]int)
	}
	p.cur.inView[talker] = count
	p.cur.dirty = true
}

func (p *Printer) SatelliteAppend(string, int, int, int, int) {
	p.cur.sats++
}

func (p *Printer) UpdateCycleComplete() {
	c := p.cur
	p.reset()
	if !c.dirty {
		return
	}

	var b strings.Builder
	b.WriteString(p.ts.FormatString(p.now().UTC()))
	if c.fixTime != "" {
		fmt.Fprintf(&b, " fix=%s", c.fixTime)
	}
	if c.haveLatLon {
		fmt.Fprintf(&b, " lat=%.6f lon=%.6f", c.lat, c.lon)
		if ref := p.gridRef(c.lat, c.lon); ref != "" {
			fmt.Fprintf(&b, " %s=%s", p.grid, ref)
		}
	}
	if !math.IsNaN(c.speed) {
		fmt.Fprintf(&b, " kt=%.1f", c.speed)
	}
	if !math.IsNaN(c.bearing) {
		fmt.Fprintf(&b, " trk=%.1f", c.bearing)
	}
	if !math.IsNaN(c.alt) {
		fmt.Fprintf(&b, " alt=%.1f", c.alt)
		if c.altUnits != 0 {
			b.WriteByte(c.altUnits)
		}
	}
	if !math.IsNaN(c.hdop) {
		fmt.Fprintf(&b, " hdop=%.1f", c.hdop)
	}
	if c.used != nil {
		fmt.Fprintf(&b, " used=%d", len(c.used))
	}
	if len(c.inView) > 0 {
		talkers := make([]string, 0, len(c.inView))
		for t := range c.inView {
			talkers = append(talkers, t)
		}
		sort.Strings(talkers)
		for _, t := range talkers {
			fmt.Fprintf(&b, " inview.%s=%d", t, c.inView[t])
		}
	}
	b.WriteByte('\n')
	_, _ = io.WriteString(p.w, b.String())
}

// gridRef renders the position in the configured grid, or "" when none is
// configured or the position is outside the grid (UTM stops at 84N/80S).
func (p *Printer) gridRef(lat, lon float64) string {
	ll := s2.LatLngFromDegrees(lat, lon)
	switch p.grid {
	case GridUTM:
		u, err := coordconv.DefaultUTMConverter.ConvertFromGeodetic(ll, 0)
		if err != nil {
			return ""
		}
		return fmt.Sprintf("%d%c/%.0f/%.0f", u.Zone, hemisphereRune(u.Hemisphere), u.Easting, u.Northing)
	case GridMGRS:
		m, err := coordconv.DefaultMGRSConverter.ConvertFromGeodetic(ll, 5)
		if err != nil {
			return ""
		}
		return fmt.Sprint(m)
	}
	return ""
}

func hemisphereRune(h coordconv.Hemisphere) rune {
	switch h {
	case coordconv.HemisphereNorth:
		return 'N'
	case coordconv.HemisphereSouth:
		return 'S'
	}
	return '?'
}
