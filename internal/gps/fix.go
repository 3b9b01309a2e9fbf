package gps

import (
	"math"
	"sort"
	"sync"
	"time"

	"gpsreader/internal/nmea"
)

// Satellite is one in-view satellite as last reported by GSV.
type Satellite struct {
	ID        int `json:"id"`
	Elevation int `json:"elevation"`
	Azimuth   int `json:"azimuth"`
	SNR       int `json:"snr"`
}

type Snapshot struct {
	Enabled bool `json:"enabled"`
	Valid   bool `json:"valid"`

	Source string `json:"source,omitempty"`
	Addr   string `json:"addr,omitempty"`
	Device string `json:"device,omitempty"`
	Baud   int    `json:"baud,omitempty"`

	LatDeg    float64  `json:"lat_deg,omitempty"`
	LonDeg    float64  `json:"lon_deg,omitempty"`
	AltitudeM *float64 `json:"altitude_m,omitempty"`
	GroundKt  *float64 `json:"ground_kt,omitempty"`
	TrackDeg  *float64 `json:"track_deg,omitempty"`
	// HDOP stands in for accuracy; see Notifier.SetAccuracy.
	HDOP *float64 `json:"hdop,omitempty"`

	FixTimeUTC string `json:"fix_time_utc,omitempty"`

	SatellitesUsed   []int                  `json:"satellites_used,omitempty"`
	InViewCount      map[string]int         `json:"in_view_count,omitempty"`
	SatellitesInView map[string][]Satellite `json:"satellites_in_view,omitempty"`

	Cycles     uint64 `json:"cycles"`
	LastFixUTC string `json:"last_fix_utc,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

// clone deep-copies the slices and maps so a published Snapshot never
// aliases Fix state.
func (s Snapshot) clone() Snapshot {
	out := s
	if s.SatellitesUsed != nil {
		out.SatellitesUsed = append([]int(nil), s.SatellitesUsed...)
	}
	if s.InViewCount != nil {
		out.InViewCount = make(map[string]int, len(s.InViewCount))
		for k, v := range s.InViewCount {
			out.InViewCount[k] = v
		}
	}
	if s.SatellitesInView != nil {
		out.SatellitesInView = make(map[string][]Satellite, len(s.SatellitesInView))
		for k, v := range s.SatellitesInView {
			out.SatellitesInView[k] = append([]Satellite(nil), v...)
		}
	}
	return out
}

type gsvProgress struct {
	msgNr     int
	totalMsgs int
	sats      []Satellite
}

// Fix is a Notifier that folds one cycle's updates into a Snapshot and
// publishes it on UpdateCycleComplete.
//
// GSV messages are aggregated per talker: message 1 starts a new list and
// the list replaces the published one once the last message has arrived.
// Out-of-order messages abandon the list until the next message 1.
type Fix struct {
	mu  sync.Mutex
	now func() time.Time

	cur   Snapshot
	dirty bool

	gsv map[string]*gsvProgress

	onCommit func(Snapshot)
}

type FixOption func(*Fix)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) FixOption {
	return func(f *Fix) { f.now = now }
}

// OnCommit registers a callback run with every published Snapshot. It runs
// on the ingestion goroutine.
func OnCommit(fn func(Snapshot)) FixOption {
	return func(f *Fix) { f.onCommit = fn }
}

func NewFix(opts ...FixOption) *Fix {
	f := &Fix{
		now: time.Now,
		gsv: make(map[string]*gsvProgress),
		cur: Snapshot{Enabled: true},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Snapshot returns the current state, including updates from a cycle that
// has not completed yet.
func (f *Fix) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur.clone()
}

func (f *Fix) SetDateTime(d nmea.Date, t nmea.Time) {
	ts, ok := nmea.ToTime(d, t)
	if !ok {
		return
	}
	f.mu.Lock()
	f.cur.FixTimeUTC = ts.Format(time.RFC3339Nano)
	f.dirty = true
	f.mu.Unlock()
}

func (f *Fix) SetLatLong(lat, lon float64) {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return
	}
	f.mu.Lock()
	f.cur.LatDeg = lat
	f.cur.LonDeg = lon
	f.cur.Valid = true
	f.cur.LastFixUTC = f.now().UTC().Format(time.RFC3339Nano)
	f.dirty = true
	f.mu.Unlock()
}

func (f *Fix) SetSpeed(knots float64) {
	f.setFloat(&f.cur.GroundKt, knots)
}

func (f *Fix) SetBearing(deg float64) {
	if !math.IsNaN(deg) {
		deg = math.Mod(deg+360.0, 360.0)
	}
	f.setFloat(&f.cur.TrackDeg, deg)
}

// SetAltitude stores meters. Feet ('F') are converted; other units are taken
// as meters.
func (f *Fix) SetAltitude(v float64, units byte) {
	if units == 'F' || units == 'f' {
		v *= 0.3048
	}
	f.setFloat(&f.cur.AltitudeM, v)
}

func (f *Fix) SetAccuracy(hdop float64) {
	f.setFloat(&f.cur.HDOP, hdop)
}

func (f *Fix) setFloat(dst **float64, v float64) {
	if math.IsNaN(v) {
		return
	}
	f.mu.Lock()
	*dst = &v
	f.dirty = true
	f.mu.Unlock()
}

func (f *Fix) SatellitesUsed(ids []int) {
	out := append([]int(nil), ids...)
	sort.Ints(out)
	f.mu.Lock()
	f.cur.SatellitesUsed = out
	f.dirty = true
	f.mu.Unlock()
}

func (f *Fix) SatellitesInViewUpdate(talker string, msgNr, totalMsgs int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := f.gsv[talker]
	switch {
	case msgNr == 1:
		p = &gsvProgress{}
		f.gsv[talker] = p
	case p == nil || msgNr != p.msgNr+1 || totalMsgs != p.totalMsgs:
		delete(f.gsv, talker)
		return
	}
	p.msgNr = msgNr
	p.totalMsgs = totalMsgs
}

func (f *Fix) SatellitesInViewCount(talker string, count int) {
	f.mu.Lock()
	if f.cur.InViewCount == nil {
		f.cur.InViewCount = make(map[string]int)
	}
	f.cur.InViewCount[talker] = count
	f.dirty = true
	f.mu.Unlock()
}

func (f *Fix) SatelliteAppend(talker string, id, elevation, azimuth, snr int) {
	f.mu.Lock()
	if p := f.gsv[talker]; p != nil {
		p.sats = append(p.sats, Satellite{ID: id, Elevation: elevation, Azimuth: azimuth, SNR: snr})
	}
	f.mu.Unlock()
}

func (f *Fix) UpdateCycleComplete() {
	f.mu.Lock()
	for talker, p := range f.gsv {
		if p.msgNr != p.totalMsgs {
			continue
		}
		if f.cur.SatellitesInView == nil {
			f.cur.SatellitesInView = make(map[string][]Satellite)
		}
		f.cur.SatellitesInView[talker] = p.sats
		delete(f.gsv, talker)
		f.dirty = true
	}
	f.cur.Cycles++
	if !f.dirty {
		f.mu.Unlock()
		return
	}
	f.dirty = false
	snap := f.cur.clone()
	fn := f.onCommit
	f.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}
