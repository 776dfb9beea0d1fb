package gntp

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
)

// Version is the only protocol version spoken.
const Version = "GNTP/1.0"

// Directives (message types) used on the info line.
const (
	DirectiveRegister = "REGISTER"
	DirectiveNotify   = "NOTIFY"
	DirectiveOK       = "-OK"
	DirectiveError    = "-ERROR"
)

const encryptionNone = "NONE"

// Header names.
const (
	HeaderApplicationName         = "Application-Name"
	HeaderApplicationIcon         = "Application-Icon"
	HeaderNotificationsCount      = "Notifications-Count"
	HeaderNotificationName        = "Notification-Name"
	HeaderNotificationDisplayName = "Notification-Display-Name"
	HeaderNotificationEnabled     = "Notification-Enabled"
	HeaderNotificationTitle       = "Notification-Title"
	HeaderNotificationText        = "Notification-Text"
	HeaderNotificationSticky      = "Notification-Sticky"
	HeaderNotificationPriority    = "Notification-Priority"
	HeaderNotificationIcon        = "Notification-Icon"
	HeaderResponseAction          = "Response-Action"
	HeaderErrorCode               = "Error-Code"
	HeaderErrorDescription        = "Error-Description"
	HeaderOriginSoftwareName      = "Origin-Software-Name"
	HeaderOriginSoftwareVersion   = "Origin-Software-Version"
)

const (
	maxLineSize = 64 << 10
	maxHeaders  = 256
	maxSections = 64
)

// Header is one "Name: Value" line.
type Header struct {
	Name  string
	Value string
}

// Headers keeps header order, which matters to some receivers.
type Headers []Header

// Get returns the first value for name (case-insensitive).
func (h Headers) Get(name string) string {
	for _, kv := range h {
		if strings.EqualFold(kv.Name, name) {
			return kv.Value
		}
	}
	return ""
}

func (h Headers) Has(name string) bool {
	for _, kv := range h {
		if strings.EqualFold(kv.Name, name) {
			return true
		}
	}
	return false
}

func (h *Headers) Add(name, value string) { *h = append(*h, Header{Name: name, Value: value}) }

// Message is a GNTP request or response.
//
// Sections carries the per-notification blocks of a REGISTER message; other
// directives have none.
type Message struct {
	Directive string
	Key       *Key
	Headers   Headers
	Sections  []Headers
}

// IsResponse reports whether the directive is -OK or -ERROR.
func (m *Message) IsResponse() bool {
	return m.Directive == DirectiveOK || m.Directive == DirectiveError
}

// Err converts a -ERROR response into a *ResponseError. Other messages yield nil.
func (m *Message) Err() error {
	if m == nil || m.Directive != DirectiveError {
		return nil
	}
	code, _ := strconv.Atoi(strings.TrimSpace(m.Headers.Get(HeaderErrorCode)))
	return &ResponseError{
		Action:      m.Headers.Get(HeaderResponseAction),
		Code:        code,
		Description: m.Headers.Get(HeaderErrorDescription),
	}
}

// NewOK builds a -OK response to action.
func NewOK(action string) *Message {
	m := &Message{Directive: DirectiveOK}
	m.Headers.Add(HeaderResponseAction, action)
	return m
}

// NewError builds a -ERROR response to action.
func NewError(action string, code int, description string) *Message {
	m := &Message{Directive: DirectiveError}
	m.Headers.Add(HeaderResponseAction, action)
	m.Headers.Add(HeaderErrorCode, strconv.Itoa(code))
	m.Headers.Add(HeaderErrorDescription, description)
	return m
}

// Encode renders m in wire format. Header values are single-line: CR is
// removed so a value can never terminate the header block early.
func (m *Message) Encode() []byte {
	var b bytes.Buffer
	b.WriteString(Version)
	b.WriteByte(' ')
	b.WriteString(m.Directive)
	b.WriteByte(' ')
	b.WriteString(encryptionNone)
	if m.Key != nil {
		b.WriteByte(' ')
		b.WriteString(m.Key.String())
	}
	b.WriteString("\r\n")
	writeHeaders(&b, m.Headers)
	b.WriteString("\r\n")
	for _, s := range m.Sections {
		writeHeaders(&b, s)
		b.WriteString("\r\n")
	}
	return b.Bytes()
}

// WriteTo writes the encoded message to w.
func (m *Message) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(m.Encode())
	return int64(n), err
}

func writeHeaders(b *bytes.Buffer, hs Headers) {
	for _, h := range hs {
		b.WriteString(sanitize(h.Name))
		b.WriteString(": ")
		b.WriteString(sanitize(h.Value))
		b.WriteString("\r\n")
	}
}

func sanitize(s string) string {
	if !strings.ContainsRune(s, '\r') {
		return s
	}
	return strings.ReplaceAll(s, "\r", "")
}

// ReadMessage reads one message from r. For REGISTER it also reads the number
// of notification blocks announced by Notifications-Count.
func ReadMessage(r *bufio.Reader) (*Message, error) {
	info, err := readLine(r)
	if err != nil {
		return nil, err
	}
	m, err := parseInfoLine(info)
	if err != nil {
		return nil, err
	}
	if m.Headers, err = readHeaderBlock(r); err != nil {
		return nil, err
	}

	if m.Directive != DirectiveRegister {
		return m, nil
	}
	raw := strings.TrimSpace(m.Headers.Get(HeaderNotificationsCount))
	count, err := strconv.Atoi(raw)
	if err != nil || count < 0 || count > maxSections {
		return nil, protocolErrorf("bad %s %q", HeaderNotificationsCount, raw)
	}
	m.Sections = make([]Headers, 0, count)
	for i := 0; i < count; i++ {
		s, err := readHeaderBlock(r)
		if err != nil {
			return nil, err
		}
		m.Sections = append(m.Sections, s)
	}
	return m, nil
}

func parseInfoLine(line string) (*Message, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil, protocolErrorf("malformed info line %q", line)
	}
	if fields[0] != Version {
		return nil, protocolErrorf("unsupported version %q", fields[0])
	}
	m := &Message{Directive: strings.ToUpper(fields[1])}
	// Encryption may carry an IV ("AES:<iv>"); anything but NONE is unsupported.
	if enc, _, _ := strings.Cut(fields[2], ":"); !strings.EqualFold(enc, encryptionNone) {
		return nil, ErrUnsupportedEncryption
	}
	if len(fields) > 3 {
		k, err := ParseKey(fields[3])
		if err != nil {
			return nil, err
		}
		m.Key = k
	}
	return m, nil
}

// readHeaderBlock reads "Name: Value" lines up to the blank line ending the block.
func readHeaderBlock(r *bufio.Reader) (Headers, error) {
	var hs Headers
	for {
		line, err := readLine(r)
		if err != nil {
			return nil, err
		}
		if line == "" {
			return hs, nil
		}
		if len(hs) >= maxHeaders {
			return nil, protocolErrorf("too many headers")
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, protocolErrorf("malformed header %q", line)
		}
		hs.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
}

// readLine returns the next CRLF-terminated line without its terminator.
// A bare LF is kept as part of the line.
func readLine(r *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		chunk, err := r.ReadString('\n')
		sb.WriteString(chunk)
		if sb.Len() > maxLineSize {
			return "", protocolErrorf("line too long")
		}
		if err != nil {
			if errors.Is(err, io.EOF) && sb.Len() > 0 {
				return "", io.ErrUnexpectedEOF
			}
			return "", err
		}
		if s := sb.String(); strings.HasSuffix(s, "\r\n") {
			return s[:len(s)-2], nil
		}
	}
}

// FormatBool renders a GNTP boolean.
func FormatBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

// ParseBool accepts the spellings GNTP allows for booleans.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes":
		return true
	}
	return false
}
