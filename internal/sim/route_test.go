package sim

import (
	"math"
	"testing"
	"time"
)

func TestRoute_Position_Invariants(t *testing.T) {
	r := Route{
		CenterLatDeg: 45.0,
		CenterLonDeg: -122.0,
		RadiusNm:     1.0,
		Period:       60 * time.Second,
	}

	now := time.Date(2025, 12, 20, 19, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		lat, lon, trk := r.Position(now.Add(time.Duration(i) * time.Second))

		if math.IsNaN(lat) || math.IsNaN(lon) || math.IsNaN(trk) {
			t.Fatalf("t=%d: NaN in %f %f %f", i, lat, lon, trk)
		}
		if trk < 0 || trk >= 360 {
			t.Fatalf("t=%d: track out of range: %v", i, trk)
		}

		radiusDeg := r.RadiusNm / 60.0
		if math.Abs(lat-r.CenterLatDeg) > radiusDeg*1.01 {
			t.Fatalf("t=%d: lat offset too large: %f", i, math.Abs(lat-r.CenterLatDeg))
		}
		// Lon offset is scaled by cos(lat).
		maxLonDeg := radiusDeg / math.Cos(r.CenterLatDeg*math.Pi/180.0)
		if math.Abs(lon-r.CenterLonDeg) > maxLonDeg*1.01 {
			t.Fatalf("t=%d: lon offset too large: %f", i, math.Abs(lon-r.CenterLonDeg))
		}
	}
}

func TestRoute_Position_DeterministicForNow(t *testing.T) {
	r := Route{CenterLatDeg: 1, CenterLonDeg: 2, RadiusNm: 0.5, Period: 120 * time.Second}
	now := time.Date(2025, 12, 20, 19, 0, 0, 123, time.UTC)

	lat1, lon1, trk1 := r.Position(now)
	lat2, lon2, trk2 := r.Position(now)
	if lat1 != lat2 || lon1 != lon2 || trk1 != trk2 {
		t.Fatalf("expected deterministic result for same now")
	}
}

func TestRoute_AltitudeBand(t *testing.T) {
	r := Route{AltMeters: 1000}
	now := time.Date(2025, 12, 20, 19, 0, 0, 0, time.UTC)
	for i := 0; i < 120; i++ {
		alt := r.Altitude(now.Add(time.Duration(i) * time.Second))
		if alt < 850 || alt > 1150 {
			t.Fatalf("t=%d: altitude %f outside 1000±150", i, alt)
		}
	}
}
