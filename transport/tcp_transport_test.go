package transport

import (
	stderrors "errors"
	"net"
	"testing"
	"time"

	"github.com/nimbid/Mini-HTTP-Server/errors"
)

// setupTcpPair accepts one loopback connection and returns the server side,
// the dialing client side and a cleanup func.
func setupTcpPair(t *testing.T) (net.Conn, net.Conn, func()) {
	t.Helper()

	listener, err := Listen("127.0.0.1", 0, 16)
	if err != nil {
		t.Fatalf("Failed to create test listener: %v", err)
	}

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- conn
	}()

	client, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		listener.Close()
		t.Fatalf("Failed to dial test listener: %v", err)
	}

	server, ok := <-accepted
	if !ok {
		client.Close()
		listener.Close()
		t.Fatal("Accept failed")
	}

	cleanup := func() {
		client.Close()
		server.Close()
		listener.Close()
	}

	return server, client, cleanup
}

func transportKindOf(t *testing.T, err error) errors.TransportError {
	t.Helper()

	var se *errors.ServerError
	if !stderrors.As(err, &se) {
		t.Fatalf("Expected *errors.ServerError, got %T", err)
	}
	if se.Type != errors.ErrorTransport {
		t.Fatalf("Expected transport error, got %v", se.Type)
	}
	return se.TransportErr
}

func TestTcpTransport_Read_Success(t *testing.T) {
	server, client, cleanup := setupTcpPair(t)
	defer cleanup()

	messageFromClient := "GET / HTTP/1.1\r\n\r\n"
	if _, err := client.Write([]byte(messageFromClient)); err != nil {
		t.Fatalf("Client write failed: %v", err)
	}

	transport := NewTcpTransport(server)
	defer transport.Destroy()

	buf := make([]byte, 1024)
	n, err := transport.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if string(buf[:n]) != messageFromClient {
		t.Errorf("Expected %q, got %q", messageFromClient, string(buf[:n]))
	}
}

func TestTcpTransport_Write_Success(t *testing.T) {
	server, client, cleanup := setupTcpPair(t)
	defer cleanup()

	transport := NewTcpTransport(server)
	defer transport.Destroy()

	messageToSend := "HTTP/1.1 200 OK\r\n\r\n"
	n, err := transport.Write([]byte(messageToSend))
	if err != nil {
		t.Errorf("Write failed: %v", err)
	}
	if n != len(messageToSend) {
		t.Errorf("Expected to write %d bytes, wrote %d", len(messageToSend), n)
	}

	client.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1024)
	got, err := client.Read(buf)
	if err != nil {
		t.Fatalf("Client read failed: %v", err)
	}
	if string(buf[:got]) != messageToSend {
		t.Errorf("Expected %q, got %q", messageToSend, string(buf[:got]))
	}
}

func TestTcpTransport_Read_Failure_ConnectionClosed(t *testing.T) {
	server, client, cleanup := setupTcpPair(t)
	defer cleanup()

	client.Close()

	transport := NewTcpTransport(server)
	defer transport.Destroy()

	buf := make([]byte, 1024)
	_, err := transport.Read(buf)
	if err == nil {
		t.Fatal("Expected error on closed connection")
	}

	if kind := transportKindOf(t, err); kind != errors.TransportErrorConnectionClosed {
		t.Errorf("Expected ConnectionClosed, got %v", kind)
	}
}

func TestTcpTransport_Read_Failure_IdleTimeout(t *testing.T) {
	server, _, cleanup := setupTcpPair(t)
	defer cleanup()

	transport := NewTcpTransport(server)
	defer transport.Destroy()
	transport.SetIdleTimeout(50 * time.Millisecond)

	start := time.Now()
	buf := make([]byte, 1024)
	_, err := transport.Read(buf)
	if err == nil {
		t.Fatal("Expected error on idle connection")
	}

	if !errors.IsTimeout(err) {
		t.Errorf("Expected timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Timeout took too long: %v", elapsed)
	}
}

func TestTcpTransport_Close_Idempotent(t *testing.T) {
	server, _, cleanup := setupTcpPair(t)
	defer cleanup()

	transport := NewTcpTransport(server)

	// First close
	if err := transport.Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}

	// Second close should also succeed
	if err := transport.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}

	transport.Destroy()
}

func TestTcpTransport_Close_UnblocksRead(t *testing.T) {
	server, _, cleanup := setupTcpPair(t)
	defer cleanup()

	transport := NewTcpTransport(server)

	done := make(chan error, 1)
	go func() {
		buf := make([]byte, 1024)
		_, err := transport.Read(buf)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	transport.Close()

	select {
	case err := <-done:
		if !errors.IsConnectionClosed(err) {
			t.Errorf("Expected ConnectionClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Read did not return after Close")
	}
}

func TestTcpTransport_Write_Failure_AfterClose(t *testing.T) {
	server, _, cleanup := setupTcpPair(t)
	defer cleanup()

	transport := NewTcpTransport(server)
	transport.Close()

	_, err := transport.Write([]byte("this should fail"))
	if err == nil {
		t.Fatal("Expected error on write to closed connection")
	}

	if kind := transportKindOf(t, err); kind != errors.TransportErrorConnectionClosed {
		t.Errorf("Expected ConnectionClosed, got %v", kind)
	}
}

func TestTcpTransport_Pipe(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	transport := NewTcpTransport(server)
	defer transport.Destroy()

	go func() {
		buf := make([]byte, 64)
		client.Read(buf)
		client.Close()
	}()

	if _, err := transport.Write([]byte("ping")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	buf := make([]byte, 64)
	_, err := transport.Read(buf)
	if !errors.IsConnectionClosed(err) {
		t.Errorf("Expected ConnectionClosed after pipe close, got %v", err)
	}
}
