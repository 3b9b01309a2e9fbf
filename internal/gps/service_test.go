package gps

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpsreader/internal/nmea"
	"gpsreader/internal/sim"
)

type chunkLog struct {
	mu     sync.Mutex
	chunks []string
}

func (c *chunkLog) WriteChunk(_ time.Time, chunk []byte) error {
	c.mu.Lock()
	c.chunks = append(c.chunks, string(chunk))
	c.mu.Unlock()
	return nil
}

func TestService_FeedCommitsSnapshot(t *testing.T) {
	rec := &recorder{}
	hooks := newHookCounts()
	cl := &chunkLog{}
	svc := New(Config{Enable: true}, WithSinks(rec), WithObserver(hooks), WithRecorder(cl))

	stream := nmeaLine(rmcPayload) + nmeaLine(ggaPayload)
	svc.Feed([]byte(stream[:30]))
	svc.Feed([]byte(stream[30:]))
	svc.Feed(nil)

	s := svc.Snapshot()
	assert.True(t, s.Valid)
	assert.Equal(t, "nmea", s.Source)
	assert.InDelta(t, 48.1173, s.LatDeg, 1e-4)
	assert.Equal(t, uint64(2), s.Cycles)
	assert.Equal(t, 2, rec.count("cycle"))
	assert.Equal(t, 1, hooks.decoded[nmea.KindRMC])
	assert.Equal(t, []string{stream[:30], stream[30:]}, cl.chunks)
}

func TestService_StartValidation(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, New(Config{}).Start(ctx))

	err := New(Config{Enable: true, Source: "carrier-pigeon"}).Start(ctx)
	assert.ErrorContains(t, err, "unknown gps source")

	err = New(Config{Enable: true, Source: "tcp"}).Start(ctx)
	assert.ErrorContains(t, err, "requires addr")

	var nilSvc *Service
	assert.Error(t, nilSvc.Start(ctx))
	nilSvc.Close()
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	return ln
}

func TestService_TCPSourceReconnects(t *testing.T) {
	ln := listen(t)

	go func() {
		// First connection ends mid-sentence.
		c, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = c.Write([]byte("$GPRMC,1235"))
		_ = c.Close()

		c, err = ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		_, _ = c.Write([]byte(nmeaLine(vtgPayload)))
		time.Sleep(2 * time.Second)
	}()

	svc := New(Config{Enable: true, Source: "tcp", Addr: ln.Addr().String()})
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Close()

	require.Eventually(t, func() bool {
		s := svc.Snapshot()
		return s.GroundKt != nil && s.TrackDeg != nil
	}, 3*time.Second, 10*time.Millisecond)

	s := svc.Snapshot()
	assert.InDelta(t, 5.5, *s.GroundKt, 1e-9)
	assert.InDelta(t, 54.7, *s.TrackDeg, 1e-9)
	assert.False(t, s.Valid)
	assert.Equal(t, "tcp", s.Source)
}

func TestService_GPSDSource(t *testing.T) {
	ln := listen(t)
	watch := make(chan string, 1)

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		line, _ := bufio.NewReader(c).ReadString('\n')
		watch <- line

		_, _ = c.Write([]byte(`{"class":"VERSION","release":"3.25"}` + "\n"))
		_, _ = c.Write([]byte(`{"class":"DEVICES","devices":[{"path":"/dev/ttyACM0"}]}` + "\n"))
		_, _ = c.Write([]byte(nmeaLine(rmcPayload)))
		_, _ = c.Write([]byte(`{"class":"ERROR","message":"device busy"}` + "\n"))
		time.Sleep(2 * time.Second)
	}()

	svc := New(Config{Enable: true, Source: "gpsd", Addr: ln.Addr().String()})
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Close()

	select {
	case got := <-watch:
		assert.Equal(t, `?WATCH={"enable":true,"nmea":true}`+"\n", got)
	case <-time.After(3 * time.Second):
		t.Fatal("no WATCH command")
	}

	require.Eventually(t, func() bool {
		s := svc.Snapshot()
		return s.Valid && s.LastError != ""
	}, 3*time.Second, 10*time.Millisecond)

	s := svc.Snapshot()
	assert.Equal(t, "/dev/ttyACM0", s.Device)
	assert.Equal(t, "gpsd: device busy", s.LastError)
	assert.InDelta(t, 11.5167, s.LonDeg, 1e-4)
}

func TestService_UnreachableSourceRecordsError(t *testing.T) {
	ln := listen(t)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	svc := New(Config{Enable: true, Source: "tcp", Addr: addr})
	require.NoError(t, svc.Start(context.Background()))

	require.Eventually(t, func() bool {
		return strings.Contains(svc.Snapshot().LastError, "tcp dial failed")
	}, 3*time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		svc.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestService_SimSource(t *testing.T) {
	cfg := Config{
		Enable:      true,
		Source:      "sim",
		Sim:         sim.Route{CenterLatDeg: 47.5, CenterLonDeg: -122.3, RadiusNm: 1},
		SimInterval: 50 * time.Millisecond,
	}
	svc := New(cfg)
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Close()

	require.Eventually(t, func() bool {
		s := svc.Snapshot()
		return s.Valid && len(s.SatellitesInView["GP"]) == 9
	}, 3*time.Second, 10*time.Millisecond)

	s := svc.Snapshot()
	assert.Equal(t, "sim", s.Source)
	assert.InDelta(t, 47.5, s.LatDeg, 1.0/60)
	assert.InDelta(t, -122.3, s.LonDeg, 2.0/60)
	assert.Len(t, s.SatellitesUsed, 6)
}

func TestGPSDFilter(t *testing.T) {
	var lines []string
	var reports []gpsdReport
	f := gpsdFilter{
		next:     lineFunc{line: func(b []byte) { lines = append(lines, string(b)) }, overflow: func() {}},
		onReport: func(r gpsdReport) { reports = append(reports, r) },
	}
	f.HandleLine([]byte(`{"class":"ERROR","message":"x"}` + "\n"))
	f.HandleLine([]byte(`{not json` + "\n"))
	f.HandleLine([]byte("$GPVTG\n"))

	assert.Equal(t, []string{"$GPVTG\n"}, lines)
	require.Len(t, reports, 1)
	assert.Equal(t, "ERROR", reports[0].Class)
}

func TestService_CommitHookSeesSourceDetails(t *testing.T) {
	var got []Snapshot
	svc := New(Config{Enable: true, Source: "tcp", Addr: "127.0.0.1:10110"},
		WithCommitHook(func(s Snapshot) { got = append(got, s) }))

	svc.Feed([]byte(nmeaLine(vtgPayload) + "junk\r\n" + nmeaLine(ggaPayload)))

	require.Len(t, got, 2)
	assert.Equal(t, "tcp", got[0].Source)
	assert.Equal(t, "127.0.0.1:10110", got[1].Addr)
	assert.True(t, got[1].Valid)
}
