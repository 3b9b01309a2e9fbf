package udp

import (
	"encoding/json"
	"io"
	"math"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"gpsreader/internal/gps"
	"gpsreader/internal/nmea"
)

// Sender delivers one encoded message.
type Sender interface {
	Send(payload []byte) error
}

type Satellite struct {
	Talker    string `json:"talker"`
	ID        int    `json:"id"`
	Elevation int    `json:"elevation"`
	Azimuth   int    `json:"azimuth"`
	SNR       int    `json:"snr"`
}

// Message is the JSON datagram for one update cycle. Only fields reported
// during the cycle are present.
type Message struct {
	Session string `json:"session"`
	Seq     uint64 `json:"seq"`

	FixTime       string   `json:"fix_time,omitempty"`
	Lat           *float64 `json:"lat,omitempty"`
	Lon           *float64 `json:"lon,omitempty"`
	SpeedKt       *float64 `json:"speed_kt,omitempty"`
	TrackDeg      *float64 `json:"track_deg,omitempty"`
	Altitude      *float64 `json:"altitude,omitempty"`
	AltitudeUnits string   `json:"altitude_units,omitempty"`
	HDOP          *float64 `json:"hdop,omitempty"`

	SatellitesUsed []int          `json:"satellites_used,omitempty"`
	InViewCount    map[string]int `json:"in_view_count,omitempty"`
	Satellites     []Satellite    `json:"satellites,omitempty"`
}

func (m *Message) empty() bool {
	return m.FixTime == "" && m.Lat == nil && m.SpeedKt == nil && m.TrackDeg == nil &&
		m.Altitude == nil && m.HDOP == nil && m.SatellitesUsed == nil &&
		m.InViewCount == nil && m.Satellites == nil
}

type PublisherOption func(*Publisher)

// WithSession fixes the session id instead of generating a random one.
func WithSession(id string) PublisherOption {
	return func(p *Publisher) { p.session = id }
}

func WithLogger(l *log.Logger) PublisherOption {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// Publisher is a gps.Notifier that sends one datagram per non-empty update
// cycle. Empty fields (NaN) are left out. It must be driven from a single
// goroutine, as the Dispatcher does.
type Publisher struct {
	out     Sender
	session string
	logger  *log.Logger

	seq uint64
	cur Message

	// Send failures are logged once per burst.
	failing bool
}

var _ gps.Notifier = (*Publisher)(nil)

func NewPublisher(out Sender, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		out:     out,
		session: uuid.New().String(),
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Session() string { return p.session }

func num(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func (p *Publisher) SetDateTime(d nmea.Date, t nmea.Time) {
	if ts, ok := nmea.ToTime(d, t); ok {
		p.cur.FixTime = ts.Format(time.RFC3339Nano)
	}
}

func (p *Publisher) SetLatLong(lat, lon float64) {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return
	}
	p.cur.Lat, p.cur.Lon = &lat, &lon
}

func (p *Publisher) SetSpeed(knots float64) {
	if v := num(knots); v != nil {
		p.cur.SpeedKt = v
	}
}

func (p *Publisher) SetBearing(deg float64) {
	if v := num(deg); v != nil {
		p.cur.TrackDeg = v
	}
}

func (p *Publisher) SetAltitude(v float64, units byte) {
	if a := num(v); a != nil {
		p.cur.Altitude = a
		if units != 0 {
			p.cur.AltitudeUnits = string(rune(units))
		}
	}
}

func (p *Publisher) SetAccuracy(hdop float64) {
	if v := num(hdop); v != nil {
		p.cur.HDOP = v
	}
}

func (p *Publisher) SatellitesUsed(ids []int) {
	p.cur.SatellitesUsed = append([]int{}, ids...)
}

func (p *Publisher) SatellitesInViewUpdate(string, int, int) {}

func (p *Publisher) SatellitesInViewCount(talker string, count int) {
	if p.cur.InViewCount == nil {
		p.cur.InViewCount = make(map[string]int)
	}
	p.cur.InViewCount[talker] = count
}

func (p *Publisher) SatelliteAppend(talker string, id, elevation, azimuth, snr int) {
	p.cur.Satellites = append(p.cur.Satellites, Satellite{
		Talker: talker, ID: id, Elevation: elevation, Azimuth: azimuth, SNR: snr,
	})
}

func (p *Publisher) UpdateCycleComplete() {
	msg := p.cur
	p.cur = Message{}
	if msg.empty() {
		return
	}

	p.seq++
	msg.Session = p.session
	msg.Seq = p.seq
	b, err := json.Marshal(&msg)
	if err != nil {
		p.logger.Error("udp encode failed", "err", err)
		return
	}
	if err := p.out.Send(b); err != nil {
		if !p.failing {
			p.logger.Warn("udp send failed", "err", err)
		}
		p.failing = true
		return
	}
	p.failing = false
}
