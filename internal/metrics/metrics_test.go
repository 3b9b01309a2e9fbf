package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpsreader/internal/gps"
	"gpsreader/internal/nmea"
)

func line(payload string) string {
	return fmt.Sprintf("$%s*%02X\r\n", payload, nmea.Checksum(payload))
}

func TestMetrics_CountsPipelineOutcomes(t *testing.T) {
	m := New()
	d := gps.NewDispatcher(nil, gps.WithHooks(m))
	r := gps.NewReader(64, d, m)

	r.Append([]byte(line("GPVTG,054.7,T,034.4,M,005.5,N,010.2,K")))
	r.Append([]byte(line("GPVTG,054.7,T,034.4,M,005.5,N,010.2,K")))
	r.Append([]byte(line("GPZDA,201530.00,04,07,2002,00,00")))
	r.Append([]byte("$GPRMC,garbage*00\r\n"))
	r.Append([]byte("$GPXXX," + strings.Repeat("9", 100) + "\n"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sentences.WithLabelValues("VTG")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("unsupported", "unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("invalid", "invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("overflow", "invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.overflow.WithLabelValues("enter")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.overflow.WithLabelValues("clear")))

	assert.Equal(t, map[string]uint64{
		"decoded_VTG":         2,
		"dropped_unsupported": 1,
		"dropped_invalid":     1,
		"dropped_overflow":    1,
		"overflow_enter":      1,
		"overflow_clear":      1,
	}, m.Counts())
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Decoded(nmea.KindGSV)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gpsreader_sentences_total{kind="GSV"} 1`)
}

func TestMetrics_CountsIsACopy(t *testing.T) {
	m := New()
	m.OverflowEnter()
	c := m.Counts()
	c["overflow_enter"] = 42
	assert.Equal(t, uint64(1), m.Counts()["overflow_enter"])
}
