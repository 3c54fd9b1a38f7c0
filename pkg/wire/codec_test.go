package wire

import (
	"net"
	"testing"
	"time"
)

func TestFrameRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	serverConn := NewConnection(server)
	clientConn := NewConnection(client)

	want := Frame{Command: "syn_i_w_m_p", Data: []byte("hello")}

	errCh := make(chan error, 1)
	go func() { errCh <- clientConn.Send(want) }()

	got, err := serverConn.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got.Command != want.Command {
		t.Errorf("command: got %q, want %q", got.Command, want.Command)
	}
	if string(got.Data) != string(want.Data) {
		t.Errorf("data: got %q, want %q", got.Data, want.Data)
	}
}

func TestFrameRoundTripEmptyPayload(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	serverConn := NewConnection(server)
	clientConn := NewConnection(client)

	want := Frame{Command: "syn_m_c_ok", Data: nil}

	go clientConn.Send(want)

	got, err := serverConn.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if got.Command != want.Command {
		t.Errorf("command: got %q, want %q", got.Command, want.Command)
	}
	if len(got.Data) != 0 {
		t.Errorf("expected empty payload, got %d bytes", len(got.Data))
	}
}

func TestConnectionRemoteAddr(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	acceptErrCh := make(chan error, 1)
	var serverSide net.Conn
	go func() {
		var err error
		serverSide, err = ln.Accept()
		acceptErrCh <- err
	}()

	clientSide, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer clientSide.Close()

	if err := <-acceptErrCh; err != nil {
		t.Fatalf("accept: %v", err)
	}
	defer serverSide.Close()

	conn := NewConnection(clientSide)
	if conn.RemoteAddr() == "" {
		t.Error("expected non-empty remote addr")
	}
}
