package gntp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// DefaultPort is the standard GNTP TCP port.
const DefaultPort = 23053

// DefaultTimeout bounds a single request when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// NotificationType is one entry of the catalog sent with REGISTER.
type NotificationType struct {
	Name        string
	DisplayName string
	Enabled     bool
}

// Notification is the payload of a NOTIFY request.
type Notification struct {
	Name     string
	Title    string
	Text     string
	Sticky   bool
	Priority int
	IconURL  string
}

// Config describes one receiver and the application registered with it.
type Config struct {
	Host          string
	Port          int
	Password      string
	Timeout       time.Duration
	AppName       string
	IconURL       string
	HashAlgorithm HashAlgorithm
	Types         []NotificationType
}

// Dialer opens the TCP connection for one request. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type Option func(*Client)

// WithDialer replaces the default net.Dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// Client sends GNTP requests to a single receiver. It keeps no connection
// state, so it is safe for concurrent use.
type Client struct {
	cfg    Config
	dialer Dialer
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HashAlgorithm == "" {
		cfg.HashAlgorithm = DefaultHashAlgorithm
	}
	cfg.Types = append([]NotificationType(nil), cfg.Types...)

	c := &Client{cfg: cfg, dialer: &net.Dialer{}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Addr returns the receiver address as host:port.
func (c *Client) Addr() string {
	return net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
}

func (c *Client) Config() Config { return c.cfg }

// RegisterMessage builds the REGISTER request for the configured catalog.
func (c *Client) RegisterMessage() (*Message, error) {
	m := &Message{Directive: DirectiveRegister}
	m.Headers.Add(HeaderApplicationName, c.cfg.AppName)
	if c.cfg.IconURL != "" {
		m.Headers.Add(HeaderApplicationIcon, c.cfg.IconURL)
	}
	m.Headers.Add(HeaderNotificationsCount, strconv.Itoa(len(c.cfg.Types)))
	for _, t := range c.cfg.Types {
		var s Headers
		s.Add(HeaderNotificationName, t.Name)
		if t.DisplayName != "" {
			s.Add(HeaderNotificationDisplayName, t.DisplayName)
		}
		s.Add(HeaderNotificationEnabled, FormatBool(t.Enabled))
		m.Sections = append(m.Sections, s)
	}
	return m, c.sign(m)
}

// NotifyMessage builds the NOTIFY request for n.
func (c *Client) NotifyMessage(n Notification) (*Message, error) {
	m := &Message{Directive: DirectiveNotify}
	m.Headers.Add(HeaderApplicationName, c.cfg.AppName)
	m.Headers.Add(HeaderNotificationName, n.Name)
	m.Headers.Add(HeaderNotificationTitle, n.Title)
	m.Headers.Add(HeaderNotificationText, n.Text)
	m.Headers.Add(HeaderNotificationSticky, FormatBool(n.Sticky))
	m.Headers.Add(HeaderNotificationPriority, strconv.Itoa(n.Priority))
	if n.IconURL != "" {
		m.Headers.Add(HeaderNotificationIcon, n.IconURL)
	}
	return m, c.sign(m)
}

func (c *Client) sign(m *Message) error {
	if c.cfg.Password == "" {
		return nil
	}
	k, err := NewKey(c.cfg.Password, c.cfg.HashAlgorithm)
	if err != nil {
		return err
	}
	m.Key = k
	return nil
}

// Register announces the application and its notification catalog.
func (c *Client) Register(ctx context.Context) error {
	m, err := c.RegisterMessage()
	if err != nil {
		return err
	}
	_, err = c.RoundTrip(ctx, m)
	return err
}

// Notify sends one notification. There are no retries.
func (c *Client) Notify(ctx context.Context, n Notification) error {
	m, err := c.NotifyMessage(n)
	if err != nil {
		return err
	}
	_, err = c.RoundTrip(ctx, m)
	return err
}

// RoundTrip sends req on a fresh connection and reads the response. The whole
// exchange is bounded by the configured timeout and by ctx. A -ERROR response
// is returned as both the message and a *ResponseError.
func (c *Client) RoundTrip(ctx context.Context, req *Message) (*Message, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", c.Addr())
	if err != nil {
		return nil, fmt.Errorf("gntp: dial %s: %w", c.Addr(), err)
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	// Unblock reads/writes if ctx is canceled before the deadline.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	if _, err := req.WriteTo(conn); err != nil {
		return nil, c.wrapIOErr(ctx, "write", err)
	}
	resp, err := ReadMessage(bufio.NewReader(conn))
	if err != nil {
		return nil, c.wrapIOErr(ctx, "read", err)
	}
	if !resp.IsResponse() {
		return nil, protocolErrorf("unexpected %s in response", resp.Directive)
	}
	return resp, resp.Err()
}

func (c *Client) wrapIOErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return fmt.Errorf("gntp: %s %s: timed out after %s: %w", op, c.Addr(), c.cfg.Timeout, ctxErr)
		}
		return fmt.Errorf("gntp: %s %s: %w", op, c.Addr(), ctxErr)
	}
	if errors.Is(err, ErrProtocol) {
		return err
	}
	return fmt.Errorf("gntp: %s %s: %w", op, c.Addr(), err)
}
