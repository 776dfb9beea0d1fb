// Package gntptest provides an in-process GNTP receiver. Tests use it as a
// stand-in for Growl; the CLI's "listen" command uses it to print whatever a
// client sends.
package gntptest

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"octogrowl/internal/gntp"
)

// Request is a message the server accepted, with the time it arrived.
type Request struct {
	*gntp.Message
	RemoteAddr string
	ReceivedAt time.Time
}

// Behavior controls how the server answers. The zero value accepts everything.
type Behavior struct {
	// Password, when set, is required on every request.
	Password string
	// RejectRegister answers REGISTER with -ERROR and this code (0 = accept).
	RejectRegister int
	// RejectNotify answers NOTIFY with -ERROR and this code (0 = accept).
	RejectNotify int
	// Stall makes the server read requests but never answer until Close.
	Stall bool
	// Delay holds every answer back this long.
	Delay time.Duration
	// RequireRegistration rejects NOTIFY for types the application never registered.
	RequireRegistration bool
}

type Option func(*Server)

// WithAddr listens on addr instead of 127.0.0.1:0.
func WithAddr(addr string) Option { return func(s *Server) { s.addr = addr } }

// WithBehavior sets the initial behavior.
func WithBehavior(b Behavior) Option { return func(s *Server) { s.behavior = b } }

// OnRequest is called for every accepted request after it is recorded.
func OnRequest(fn func(Request)) Option { return func(s *Server) { s.onRequest = fn } }

// Server is a minimal GNTP receiver.
type Server struct {
	addr      string
	ln        net.Listener
	onRequest func(Request)

	mu       sync.Mutex
	behavior Behavior
	requests []Request
	dials    int
	// registered maps application name to its registered notification names.
	registered map[string]map[string]bool

	closing chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// New starts a server. Call Close when done.
func New(opts ...Option) (*Server, error) {
	s := &Server{addr: "127.0.0.1:0", closing: make(chan struct{}), registered: map[string]map[string]bool{}}
	for _, o := range opts {
		o(s)
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, err
	}
	s.ln = ln
	s.wg.Add(1)
	go s.serve()
	return s, nil
}

func (s *Server) Addr() string { return s.ln.Addr().String() }

func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	n, _ := strconv.Atoi(port)
	return n
}

// SetBehavior changes how subsequent requests are answered.
func (s *Server) SetBehavior(b Behavior) {
	s.mu.Lock()
	s.behavior = b
	s.mu.Unlock()
}

// Requests returns every recorded request in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Registrations returns the recorded REGISTER requests.
func (s *Server) Registrations() []Request { return s.filter(gntp.DirectiveRegister) }

// Notifications returns the recorded NOTIFY requests.
func (s *Server) Notifications() []Request { return s.filter(gntp.DirectiveNotify) }

// Connections returns how many TCP connections were accepted.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

func (s *Server) filter(directive string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		if r.Directive == directive {
			out = append(out, r)
		}
	}
	return out
}

// WaitNotifications blocks until at least n NOTIFY requests arrived or ctx is done.
func (s *Server) WaitNotifications(ctx context.Context, n int) ([]Request, error) {
	t := time.NewTicker(5 * time.Millisecond)
	defer t.Stop()
	for {
		if got := s.Notifications(); len(got) >= n {
			return got, nil
		}
		select {
		case <-ctx.Done():
			return s.Notifications(), ctx.Err()
		case <-t.C:
		}
	}
}

// Close stops the listener and waits for in-flight connections.
func (s *Server) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closing)
		err = s.ln.Close()
		s.wg.Wait()
	})
	return err
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-s.closing:
				return
			default:
				continue
			}
		}
		s.mu.Lock()
		s.dials++
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	// Close the connection on shutdown so a stalled handler returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.closing:
			_ = conn.Close()
		case <-done:
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	msg, err := gntp.ReadMessage(bufio.NewReader(conn))
	if err != nil {
		_, _ = gntp.NewError("", gntp.CodeInvalidRequest, err.Error()).WriteTo(conn)
		return
	}

	s.mu.Lock()
	b := s.behavior
	s.mu.Unlock()

	if resp := check(b, msg); resp != nil {
		_, _ = resp.WriteTo(conn)
		return
	}
	if b.RequireRegistration && msg.Directive == gntp.DirectiveNotify && !s.isRegistered(msg) {
		_, _ = gntp.NewError(msg.Directive, gntp.CodeUnknownNotification, "notification not registered").WriteTo(conn)
		return
	}

	req := Request{Message: msg, RemoteAddr: conn.RemoteAddr().String(), ReceivedAt: time.Now()}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.onRequest != nil {
		s.onRequest(req)
	}

	if b.Stall {
		<-s.closing
		return
	}
	if b.Delay > 0 {
		select {
		case <-time.After(b.Delay):
		case <-s.closing:
			return
		}
	}

	code := 0
	switch msg.Directive {
	case gntp.DirectiveRegister:
		code = b.RejectRegister
	case gntp.DirectiveNotify:
		code = b.RejectNotify
	}
	if code != 0 {
		_, _ = gntp.NewError(msg.Directive, code, "rejected by test receiver").WriteTo(conn)
		return
	}
	if msg.Directive == gntp.DirectiveRegister {
		s.remember(msg)
	}
	_, _ = gntp.NewOK(msg.Directive).WriteTo(conn)
}

func (s *Server) remember(msg *gntp.Message) {
	names := make(map[string]bool, len(msg.Sections))
	for _, sec := range msg.Sections {
		names[sec.Get(gntp.HeaderNotificationName)] = true
	}
	s.mu.Lock()
	s.registered[msg.Headers.Get(gntp.HeaderApplicationName)] = names
	s.mu.Unlock()
}

func (s *Server) isRegistered(msg *gntp.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := s.registered[msg.Headers.Get(gntp.HeaderApplicationName)]
	return names[msg.Headers.Get(gntp.HeaderNotificationName)]
}

// check validates auth and required headers, returning an error response or nil.
func check(b Behavior, msg *gntp.Message) *gntp.Message {
	switch msg.Directive {
	case gntp.DirectiveRegister, gntp.DirectiveNotify:
	default:
		return gntp.NewError(msg.Directive, gntp.CodeInvalidRequest, "unsupported directive")
	}
	if b.Password != "" && !msg.Key.Verify(b.Password) {
		return gntp.NewError(msg.Directive, gntp.CodeNotAuthorized, "password mismatch")
	}
	if msg.Headers.Get(gntp.HeaderApplicationName) == "" {
		return gntp.NewError(msg.Directive, gntp.CodeRequiredHeaderMissing, "Application-Name missing")
	}
	if msg.Directive == gntp.DirectiveNotify && msg.Headers.Get(gntp.HeaderNotificationName) == "" {
		return gntp.NewError(msg.Directive, gntp.CodeRequiredHeaderMissing, "Notification-Name missing")
	}
	return nil
}
