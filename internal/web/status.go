package web

import (
	"sync/atomic"
	"time"

	"gpsreader/internal/gps"
)

// FixSource is satisfied by *gps.Service.
type FixSource interface {
	Snapshot() gps.Snapshot
}

// CounterSource reports drop and decode counters, keyed by name.
type CounterSource interface {
	Counts() map[string]uint64
}

type Status struct {
	startUnixNano int64
	fix           FixSource
	counters      CounterSource
	udpDest       atomic.Value // string
}

func NewStatus(fix FixSource, counters CounterSource) *Status {
	s := &Status{fix: fix, counters: counters}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.udpDest.Store("")
	return s
}

// SetUDPDest records where location datagrams are sent, for display only.
func (s *Status) SetUDPDest(dest string) {
	s.udpDest.Store(dest)
}

type StatusSnapshot struct {
	Service   string            `json:"service"`
	NowUTC    string            `json:"now_utc"`
	UptimeSec int64             `json:"uptime_sec"`
	UDPDest   string            `json:"udp_dest,omitempty"`
	GPS       gps.Snapshot      `json:"gps"`
	Counters  map[string]uint64 `json:"counters,omitempty"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()

	snap := StatusSnapshot{
		Service:   "gpsreader",
		NowUTC:    nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec: int64(nowUTC.Sub(start).Seconds()),
		UDPDest:   s.udpDest.Load().(string),
	}
	if s.fix != nil {
		snap.GPS = s.fix.Snapshot()
	}
	if s.counters != nil {
		snap.Counters = s.counters.Counts()
	}
	return snap
}
