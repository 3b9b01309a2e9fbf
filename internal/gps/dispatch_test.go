package gps

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"gpsreader/internal/nmea"
)

func TestDispatch_RMC(t *testing.T) {
	rec := &recorder{}
	NewDispatcher(rec).Dispatch(nmeaLine(rmcPayload))

	want := []string{
		"datetime 1994-03-23 12:35:19.000000",
		"latlong 48.1173 11.5167",
		"speed 22.40",
		"bearing 84.40",
		"cycle",
	}
	assert.Equal(t, want, rec.calls)
}

func TestDispatch_GGA(t *testing.T) {
	rec := &recorder{}
	NewDispatcher(rec).Dispatch(nmeaLine(ggaPayload))

	want := []string{
		"latlong 48.1173 11.5167",
		"altitude 545.40 M",
		"accuracy 0.90",
		"cycle",
	}
	assert.Equal(t, want, rec.calls)
}

func TestDispatch_GSA(t *testing.T) {
	rec := &recorder{}
	NewDispatcher(rec).Dispatch(nmeaLine(gsaPayload))

	want := []string{
		"used [4 5 9 12 24]",
		"accuracy 1.30",
		"cycle",
	}
	assert.Equal(t, want, rec.calls)
}

func TestDispatch_GSVFourRecords(t *testing.T) {
	rec := &recorder{}
	NewDispatcher(rec).Dispatch(nmeaLine(gsvPayload))

	want := []string{
		"inview-update GL 1/2",
		"inview-count GL 8",
		"sat GL 1 40 83 46",
		"sat GL 2 17 308 41",
		"sat GL 12 7 344 39",
		"sat GL 14 22 228 45",
		"cycle",
	}
	assert.Equal(t, want, rec.calls)
	assert.Equal(t, 4, rec.count("sat "))
}

func TestDispatch_GSVPartialSkipsEmptySlots(t *testing.T) {
	rec := &recorder{}
	NewDispatcher(rec).Dispatch(nmeaLine("GPGSV,2,2,06,25,55,123,40,31,10,010,"))

	assert.Equal(t, 2, rec.count("sat GP"))
	assert.Equal(t, 1, rec.count("inview-update GP 2/2"))
}

func TestDispatch_VTG(t *testing.T) {
	rec := &recorder{}
	NewDispatcher(rec).Dispatch(nmeaLine(vtgPayload))
	assert.Equal(t, []string{"speed 5.50", "bearing 54.70", "cycle"}, rec.calls)
}

func TestDispatch_DropsCompleteTheCycle(t *testing.T) {
	good := nmeaLine(rmcPayload)
	corrupt := strings.Replace(good, "4807.038", "4807.039", 1)

	cases := []struct {
		name   string
		line   string
		reason DropReason
	}{
		{"BadChecksum", corrupt, DropInvalid},
		{"NotNMEA", "hello world\n", DropInvalid},
		{"Unsupported", nmeaLine("GPZDA,201530.00,04,07,2002,00,00"), DropUnsupported},
		{"DecodeFailure", nmeaLine("GPRMC,123519,A,4807.038,N,01131.000,E,fast,084.4,230394,003.1,W"), DropDecode},
		{"WrongFieldCount", nmeaLine("GPGGA,123519,4807.038,N"), DropDecode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{}
			hooks := newHookCounts()
			NewDispatcher(rec, WithHooks(hooks)).Dispatch(tc.line)

			assert.Equal(t, []string{"cycle"}, rec.calls)
			assert.Equal(t, 1, hooks.dropped[tc.reason])
			assert.Empty(t, hooks.decoded)
		})
	}
}

func TestDispatch_StrictRequiresChecksum(t *testing.T) {
	line := "$" + vtgPayload + "\r\n"

	rec := &recorder{}
	NewDispatcher(rec).Dispatch(line)
	assert.Equal(t, 1, rec.count("speed"))

	rec = &recorder{}
	NewDispatcher(rec, WithStrict(true)).Dispatch(line)
	assert.Equal(t, []string{"cycle"}, rec.calls)
}

func TestDispatch_HandleOverflow(t *testing.T) {
	rec := &recorder{}
	hooks := newHookCounts()
	NewDispatcher(rec, WithHooks(hooks)).HandleOverflow()
	assert.Equal(t, []string{"cycle"}, rec.calls)
	assert.Equal(t, 1, hooks.dropped[DropOverflow])
}

func TestDispatch_DebugLogging(t *testing.T) {
	var buf bytes.Buffer
	l := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
	d := NewDispatcher(nil, WithLogger(l))
	d.Dispatch(nmeaLine(rmcPayload))
	d.Dispatch(nmeaLine("GPRMC,bad"))

	out := buf.String()
	assert.Contains(t, out, "lat_e3=4807038")
	assert.Contains(t, out, "sentence dropped")
}

func TestDispatch_ExactlyOneCyclePerLine(t *testing.T) {
	pool := []string{
		nmeaLine(rmcPayload), nmeaLine(ggaPayload), nmeaLine(gsaPayload),
		nmeaLine(gsvPayload), nmeaLine(vtgPayload),
	}
	rapid.Check(t, func(t *rapid.T) {
		var line string
		if rapid.Bool().Draw(t, "valid") {
			line = rapid.SampledFrom(pool).Draw(t, "line")
			// Optionally flip one byte to produce invalid or undecodable input.
			if rapid.Bool().Draw(t, "mutate") {
				i := rapid.IntRange(0, len(line)-3).Draw(t, "pos")
				b := rapid.Byte().Draw(t, "byte")
				line = line[:i] + string([]byte{b}) + line[i+1:]
			}
		} else {
			line = rapid.String().Draw(t, "garbage")
		}

		rec := &recorder{}
		hooks := newHookCounts()
		NewDispatcher(rec, WithHooks(hooks)).Dispatch(line)

		assert.Equal(t, 1, rec.count("cycle"))
		assert.Equal(t, "cycle", rec.calls[len(rec.calls)-1])

		total := 0
		for _, n := range hooks.decoded {
			total += n
		}
		for _, n := range hooks.dropped {
			total += n
		}
		assert.Equal(t, 1, total)
	})
}

func TestDecode_SumType(t *testing.T) {
	s, kind, err := Decode(nmeaLine(gsvPayload), false)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if kind != nmea.KindGSV || s.Kind() != nmea.KindGSV {
		t.Fatalf("kind=%s/%s", kind, s.Kind())
	}
	gsv, ok := s.(GSVSentence)
	if !ok {
		t.Fatalf("type=%T", s)
	}
	if gsv.Talker != "GL" {
		t.Fatalf("talker=%q", gsv.Talker)
	}
}
