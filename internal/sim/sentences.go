package sim

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"time"

	"gpsreader/internal/nmea"
)

const hdop = 0.9

type satellite struct {
	id, elevation, azimuth, snr int
}

// A fixed sky. Satellites with no SNR are in view but not used.
var sky = []satellite{
	{2, 62, 45, 44},
	{5, 35, 120, 40},
	{12, 18, 200, 33},
	{15, 71, 300, 46},
	{18, 9, 330, 0},
	{21, 44, 80, 42},
	{24, 27, 250, 38},
	{29, 12, 160, 0},
	{31, 5, 15, 0},
}

// Burst renders one reporting cycle at now as RMC, GGA, GSA, GSV and VTG
// sentences, CRLF-terminated.
func Burst(r Route, now time.Time) []byte {
	now = now.UTC()
	lat, lon, trk := r.Position(now)
	alt := r.Altitude(now)
	kt := r.withDefaults().GroundKt

	latS, ns := coord(lat, 2, 'N', 'S')
	lonS, ew := coord(lon, 3, 'E', 'W')
	hms := now.Format("150405.00")

	var buf bytes.Buffer
	put := func(format string, args ...any) {
		payload := fmt.Sprintf(format, args...)
		fmt.Fprintf(&buf, "$%s*%02X\r\n", payload, nmea.Checksum(payload))
	}

	put("GPRMC,%s,A,%s,%c,%s,%c,%.1f,%.1f,%s,,,A", hms, latS, ns, lonS, ew, kt, trk, now.Format("020106"))
	put("GPGGA,%s,%s,%c,%s,%c,1,%02d,%.1f,%.1f,M,0.0,M,,", hms, latS, ns, lonS, ew, len(used()), hdop, alt)

	slots := make([]string, 12)
	for i, id := range used() {
		slots[i] = fmt.Sprintf("%02d", id)
	}
	put("GPGSA,A,3,%s,1.6,%.1f,1.3", strings.Join(slots, ","), hdop)

	total := (len(sky) + 3) / 4
	for msg := 0; msg < total; msg++ {
		var sb strings.Builder
		fmt.Fprintf(&sb, "GPGSV,%d,%d,%02d", total, msg+1, len(sky))
		for _, s := range sky[msg*4 : min(len(sky), msg*4+4)] {
			fmt.Fprintf(&sb, ",%02d,%02d,%03d,", s.id, s.elevation, s.azimuth)
			if s.snr > 0 {
				fmt.Fprintf(&sb, "%02d", s.snr)
			}
		}
		put("%s", sb.String())
	}

	put("GPVTG,%.1f,T,,M,%.1f,N,%.1f,K,A", trk, kt, kt*1.852)
	return buf.Bytes()
}

func used() []int {
	var ids []int
	for _, s := range sky {
		if s.snr > 0 {
			ids = append(ids, s.id)
		}
	}
	return ids
}

// coord formats decimal degrees as NMEA (d)ddmm.mmmm plus hemisphere.
func coord(deg float64, degDigits int, pos, neg byte) (string, byte) {
	hemi := pos
	if deg < 0 {
		hemi = neg
		deg = -deg
	}
	d := math.Floor(deg)
	m := math.Round((deg-d)*60*1e4) / 1e4
	if m >= 60 {
		d++
		m -= 60
	}
	return fmt.Sprintf("%0*d%07.4f", degDigits, int(d), m), hemi
}
