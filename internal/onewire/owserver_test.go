package onewire

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
	"time"
)

func TestOwnetHeaderRoundTrip(t *testing.T) {
	in := ownetHeader{
		version: 0,
		payload: 17,
		ret:     msgDirAll,
		flags:   flagOwnet | flagPersistence,
		size:    8192,
		offset:  0,
	}

	buf := make([]byte, ownetHeaderSize)
	in.encode(buf)
	out := parseOwnetHeader(buf)

	if out != in {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestOwnetHeaderWireFormat(t *testing.T) {
	h := ownetHeader{payload: 1, ret: msgRead, flags: flagOwnet, size: 8192}
	buf := make([]byte, ownetHeaderSize)
	h.encode(buf)

	if got := binary.BigEndian.Uint32(buf[8:12]); got != msgRead {
		t.Errorf("type field = %d, want %d", got, msgRead)
	}
	if got := binary.BigEndian.Uint32(buf[16:20]); got != 8192 {
		t.Errorf("size field = %d, want 8192", got)
	}
}

// fakeOwserverHandler produces the response for one request.
type fakeOwserverHandler func(msgType int32, path string) (ret int32, payload []byte)

// startFakeOwserver runs a minimal owserver speaking just enough of the
// ownet protocol for the client. grantPersistence controls whether
// connections survive past one transaction.
func startFakeOwserver(t *testing.T, grantPersistence bool, handler fakeOwserverHandler) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveOwnetConn(conn, grantPersistence, handler)
		}
	}()

	return ln.Addr().String()
}

func serveOwnetConn(conn net.Conn, grantPersistence bool, handler fakeOwserverHandler) {
	defer conn.Close()

	hdr := make([]byte, ownetHeaderSize)
	for {
		if _, err := io.ReadFull(conn, hdr); err != nil {
			return
		}
		req := parseOwnetHeader(hdr)

		var path string
		if req.payload > 0 {
			buf := make([]byte, req.payload)
			if _, err := io.ReadFull(conn, buf); err != nil {
				return
			}
			for len(buf) > 0 && buf[len(buf)-1] == 0 {
				buf = buf[:len(buf)-1]
			}
			path = string(buf)
		}

		ret, payload := handler(req.ret, path)

		var flags int32 = flagOwnet
		if grantPersistence {
			flags |= flagPersistence
		}
		resp := ownetHeader{
			payload: int32(len(payload)),
			ret:     ret,
			flags:   flags,
			size:    int32(len(payload)),
		}
		out := make([]byte, ownetHeaderSize+len(payload))
		resp.encode(out[:ownetHeaderSize])
		copy(out[ownetHeaderSize:], payload)
		if _, err := conn.Write(out); err != nil {
			return
		}

		if !grantPersistence {
			return
		}
	}
}

func dialFake(t *testing.T, addr string) *OwserverClient {
	t.Helper()

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	client, err := DialOwserver(context.Background(), OwserverConfig{
		Host:    host,
		Port:    portNum,
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestDirAll(t *testing.T) {
	addr := startFakeOwserver(t, true, func(msgType int32, path string) (int32, []byte) {
		if msgType != msgDirAll {
			t.Errorf("msgType = %d, want %d", msgType, msgDirAll)
		}
		if path != "/" {
			t.Errorf("path = %q, want /", path)
		}
		return 0, []byte("/28.0316A279F7FF,/EF.111111111113/,/bus.0")
	})

	client := dialFake(t, addr)
	dirs, err := client.Dir(context.Background(), "/")
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}

	want := []string{"/28.0316A279F7FF/", "/EF.111111111113/", "/bus.0/"}
	if len(dirs) != len(want) {
		t.Fatalf("got %d entries, want %d: %v", len(dirs), len(want), dirs)
	}
	for i := range want {
		if dirs[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, dirs[i], want[i])
		}
	}
}

func TestReadValue(t *testing.T) {
	addr := startFakeOwserver(t, true, func(msgType int32, path string) (int32, []byte) {
		if msgType != msgRead {
			t.Errorf("msgType = %d, want %d", msgType, msgRead)
		}
		return 0, []byte("     23.456")
	})

	client := dialFake(t, addr)
	data, err := client.Read(context.Background(), "/28.0316A279F7FF/temperature")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "     23.456" {
		t.Errorf("data = %q", data)
	}
}

func TestServerErrorWrapsTransport(t *testing.T) {
	addr := startFakeOwserver(t, true, func(msgType int32, path string) (int32, []byte) {
		return -1, nil // ENOENT-style failure
	})

	client := dialFake(t, addr)
	_, err := client.Read(context.Background(), "/28.DEADBEEF0000/temperature")
	if !errors.Is(err, ErrTransport) {
		t.Errorf("error = %v, want ErrTransport", err)
	}

	if got := client.Stats().ErrorsTotal; got != 1 {
		t.Errorf("ErrorsTotal = %d, want 1", got)
	}
}

func TestNonPersistentReconnect(t *testing.T) {
	// Server closes after every transaction; the client must redial
	// transparently between requests.
	addr := startFakeOwserver(t, false, func(msgType int32, path string) (int32, []byte) {
		return 0, []byte("21.0")
	})

	client := dialFake(t, addr)
	for i := 0; i < 3; i++ {
		if _, err := client.Read(context.Background(), "/10.ABCD00000000/temperature"); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
	}

	if got := client.Stats().ReadsTotal; got != 3 {
		t.Errorf("ReadsTotal = %d, want 3", got)
	}
	if got := client.Stats().ReconnectsTotal; got < 2 {
		t.Errorf("ReconnectsTotal = %d, want >= 2", got)
	}
}

func TestDialFailure(t *testing.T) {
	_, err := DialOwserver(context.Background(), OwserverConfig{
		Host:    "127.0.0.1",
		Port:    59998,
		Timeout: 500 * time.Millisecond,
	})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("error = %v, want ErrConnectionFailed", err)
	}
}
