package http

import (
	"context"
	"io"
	"net"
	gohttp "net/http"
	"testing"
	"time"
)

func startServer(t *testing.T, h gohttp.Handler, opts ...ServerOption) (addr string, cancel context.CancelFunc, done <-chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	srv := NewServer(h, opts...)
	go func() { errCh <- srv.Serve(ctx, ln) }()
	return ln.Addr().String(), cancel, errCh
}

func TestServerStartsAndAcceptsRequests(t *testing.T) {
	h := gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		io.WriteString(w, "pong")
	})
	addr, cancel, done := startServer(t, h)
	defer cancel()

	resp, err := gohttp.Get("http://" + addr + "/ping")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != gohttp.StatusOK || string(body) != "pong" {
		t.Errorf("got %d %q, want 200 pong", resp.StatusCode, body)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Serve returned %v, want nil after cancel", err)
	}
}

func TestServerGracefulShutdown(t *testing.T) {
	started := make(chan struct{})
	h := gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		close(started)
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(gohttp.StatusOK)
	})
	addr, cancel, done := startServer(t, h, WithShutdownTimeout(5*time.Second))

	statusCh := make(chan int, 1)
	go func() {
		resp, err := gohttp.Get("http://" + addr + "/slow")
		if err != nil {
			statusCh <- 0
			return
		}
		resp.Body.Close()
		statusCh <- resp.StatusCode
	}()

	<-started
	cancel()

	if status := <-statusCh; status != gohttp.StatusOK {
		t.Errorf("in-flight request status = %d, want %d", status, gohttp.StatusOK)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve returned %v", err)
	}
}

func TestServerFunctionalOptions(t *testing.T) {
	srv := NewServer(gohttp.NotFoundHandler(),
		WithAddr(":9999"),
		WithReadHeaderTimeout(3*time.Second),
		WithShutdownTimeout(10*time.Second),
	)

	if srv.config.Addr != ":9999" {
		t.Errorf("addr = %q, want %q", srv.config.Addr, ":9999")
	}
	if srv.httpServer.ReadHeaderTimeout != 3*time.Second {
		t.Errorf("read header timeout = %v, want 3s", srv.httpServer.ReadHeaderTimeout)
	}
	if srv.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown timeout = %v, want %v", srv.config.ShutdownTimeout, 10*time.Second)
	}
}
