package gps

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"strings"
	"time"
)

const gpsdDefaultAddr = "127.0.0.1:2947"

// dialGPSD connects to gpsd over TCP.
func dialGPSD(ctx context.Context, addr string) (net.Conn, error) {
	if strings.TrimSpace(addr) == "" {
		addr = gpsdDefaultAddr
	}
	d := &net.Dialer{Timeout: 2 * time.Second}
	if ctx == nil {
		return d.Dial("tcp", addr)
	}
	return d.DialContext(ctx, "tcp", addr)
}

// gpsdWatch asks gpsd to relay the receiver's raw NMEA. gpsd keeps sending
// its own JSON reports (VERSION, DEVICES, WATCH, ERROR) on the same stream.
func gpsdWatch(w io.Writer) error {
	_, err := w.Write([]byte("?WATCH={\"enable\":true,\"nmea\":true}\n"))
	return err
}

type gpsdReport struct {
	Class   string `json:"class"`
	Message string `json:"message"`
	Devices []struct {
		Path string `json:"path"`
	} `json:"devices"`
}

// gpsdFilter keeps gpsd's JSON reports away from the Dispatcher. Reports
// are handed to onReport instead; NMEA lines pass through untouched.
type gpsdFilter struct {
	next     LineHandler
	onReport func(gpsdReport)
}

func (g gpsdFilter) HandleLine(line []byte) {
	if len(line) == 0 || line[0] != '{' {
		g.next.HandleLine(line)
		return
	}
	if g.onReport == nil {
		return
	}
	var rep gpsdReport
	if err := json.Unmarshal(line, &rep); err != nil {
		return
	}
	g.onReport(rep)
}

func (g gpsdFilter) HandleOverflow() {
	g.next.HandleOverflow()
}
