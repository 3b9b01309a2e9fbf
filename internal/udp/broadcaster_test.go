package udp

import (
	"errors"
	"net"
	"testing"
	"time"
)

type fakeConn struct {
	writes   [][]byte
	writeErr error
	closed   bool
}

func (c *fakeConn) Write(p []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.writes = append(c.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestNewBroadcaster_DialsResolvedAddr(t *testing.T) {
	var gotRaddr *net.UDPAddr
	fc := &fakeConn{}

	dial := func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		if network != "udp" || laddr != nil {
			t.Fatalf("dial(%q, %v)", network, laddr)
		}
		gotRaddr = raddr
		return fc, nil
	}

	b, err := newBroadcaster("127.0.0.1:4000", net.ResolveUDPAddr, dial)
	if err != nil {
		t.Fatalf("newBroadcaster() error: %v", err)
	}
	if gotRaddr == nil || gotRaddr.Port != 4000 || !gotRaddr.IP.Equal(net.IPv4(127, 0, 0, 1)) {
		t.Fatalf("raddr=%v want 127.0.0.1:4000", gotRaddr)
	}
	if b.Dest() != "127.0.0.1:4000" {
		t.Fatalf("dest=%q", b.Dest())
	}
	if err := b.Close(); err != nil || !fc.closed {
		t.Fatalf("Close() err=%v closed=%v", err, fc.closed)
	}
}

func TestNewBroadcaster_Failures(t *testing.T) {
	resolveErr := errors.New("no such host")
	dialErr := errors.New("network unreachable")

	_, err := newBroadcaster("bad:addr",
		func(string, string) (*net.UDPAddr, error) { return nil, resolveErr },
		func(string, *net.UDPAddr, *net.UDPAddr) (udpConn, error) { return &fakeConn{}, nil })
	if !errors.Is(err, resolveErr) {
		t.Fatalf("err=%v want %v", err, resolveErr)
	}

	_, err = newBroadcaster("127.0.0.1:4000", net.ResolveUDPAddr,
		func(string, *net.UDPAddr, *net.UDPAddr) (udpConn, error) { return nil, dialErr })
	if !errors.Is(err, dialErr) {
		t.Fatalf("err=%v want %v", err, dialErr)
	}
}

func TestBroadcaster_Send(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name    string
		payload []byte
		connErr error
		writes  int
		wantErr error
	}{
		{name: "nil", payload: nil},
		{name: "empty", payload: []byte{}},
		{name: "payload", payload: []byte(`{"seq":1}`), writes: 1},
		{name: "error", payload: []byte{0x01}, connErr: boom, wantErr: boom},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fc := &fakeConn{writeErr: tc.connErr}
			b := &Broadcaster{dest: "x", conn: fc}
			err := b.Send(tc.payload)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err=%v want %v", err, tc.wantErr)
			}
			if len(fc.writes) != tc.writes {
				t.Fatalf("writes=%d want %d", len(fc.writes), tc.writes)
			}
			if tc.writes == 1 && string(fc.writes[0]) != string(tc.payload) {
				t.Fatalf("write=%q want %q", fc.writes[0], tc.payload)
			}
		})
	}
}

func TestBroadcaster_Close_NilConnNoPanic(t *testing.T) {
	b := &Broadcaster{}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
}

func TestBroadcaster_Loopback(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket() error: %v", err)
	}
	defer pc.Close()

	b, err := NewBroadcaster(pc.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewBroadcaster() error: %v", err)
	}
	defer b.Close()

	if err := b.Send([]byte("hello")); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	_ = pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom() error: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("got %q", buf[:n])
	}
}
