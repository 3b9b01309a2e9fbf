package sim

import (
	"math"
	"time"
)

// Route is a deterministic figure-eight around a center point. Everything
// it reports is a pure function of the wall clock.
type Route struct {
	CenterLatDeg float64
	CenterLonDeg float64
	AltMeters    float64
	GroundKt     float64
	RadiusNm     float64
	Period       time.Duration
}

func (r Route) withDefaults() Route {
	if r.Period <= 0 {
		r.Period = 120 * time.Second
	}
	if r.RadiusNm <= 0 {
		r.RadiusNm = 0.5
	}
	if r.AltMeters == 0 {
		r.AltMeters = 300
	}
	if r.GroundKt <= 0 {
		r.GroundKt = 60
	}
	return r
}

func phase(now time.Time, period time.Duration) float64 {
	return float64(now.UnixNano()%period.Nanoseconds()) / float64(period.Nanoseconds())
}

// Position returns the point on the route at now.
func (r Route) Position(now time.Time) (latDeg, lonDeg, trackDeg float64) {
	r = r.withDefaults()

	// ~60 NM per degree of latitude.
	radiusDeg := r.RadiusNm / 60.0

	// x = cos(2πt), y = 0.5*sin(4πt); y stays within half the radius.
	w := 2 * math.Pi * phase(now, r.Period)
	x := math.Cos(w)
	y := 0.5 * math.Sin(2*w)

	latDeg = r.CenterLatDeg + radiusDeg*y
	lonDeg = r.CenterLonDeg + (radiusDeg*x)/math.Cos(r.CenterLatDeg*math.Pi/180.0)

	// Track from the instantaneous velocity, atan2(east, north).
	vx := -2 * math.Pi * math.Sin(w)
	vy := 2 * math.Pi * math.Cos(2*w)
	trackDeg = math.Mod(math.Atan2(vx, vy)*180/math.Pi+360, 360)
	return latDeg, lonDeg, trackDeg
}

// Altitude is a sinusoid of ±150 m around AltMeters. Its period is half the
// horizontal one, floored at 30s.
func (r Route) Altitude(now time.Time) float64 {
	r = r.withDefaults()
	vp := r.Period / 2
	if vp < 30*time.Second {
		vp = 30 * time.Second
	}
	const amp = 150.0
	return r.AltMeters + amp*math.Sin(2*math.Pi*phase(now, vp))
}
