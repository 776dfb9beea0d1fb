package growl

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Host event names. The aliases are the names the printer host itself uses.
const (
	EventFileUploaded = "file-uploaded"
	EventPrintStarted = "print-started"
	EventPrintDone    = "print-done"

	EventAliasUpload       = "Upload"
	EventAliasPrintStarted = "PrintStarted"
	EventAliasPrintDone    = "PrintDone"
)

const (
	titleFileUploaded = "A new file was uploaded"
	titlePrintStarted = "A new print job was started"
	titlePrintDone    = "Print job finished"

	defaultPriority = 1
)

type translateFunc func(payload map[string]any) (NotificationRecord, bool)

var translators = map[string]translateFunc{
	EventFileUploaded:      translateUpload,
	EventAliasUpload:       translateUpload,
	EventPrintStarted:      translatePrintStarted,
	EventAliasPrintStarted: translatePrintStarted,
	EventPrintDone:         translatePrintDone,
	EventAliasPrintDone:    translatePrintDone,
}

// Recognized reports whether Translate knows event.
func Recognized(event string) bool {
	_, ok := translators[event]
	return ok
}

// Translate maps a lifecycle event to a notification. ok is false for
// unrecognized events and for payloads without a usable file name.
func Translate(event string, payload map[string]any) (rec NotificationRecord, ok bool) {
	fn, found := translators[event]
	if !found {
		return NotificationRecord{}, false
	}
	return fn(payload)
}

func translateUpload(p map[string]any) (NotificationRecord, bool) {
	file, ok := baseName(p)
	if !ok {
		return NotificationRecord{}, false
	}
	where := "locally"
	if strings.EqualFold(stringField(p, "target"), "sd") {
		where = "to SD"
	}
	return record(TypeFileUploaded, titleFileUploaded, file+" was uploaded "+where), true
}

func translatePrintStarted(p map[string]any) (NotificationRecord, bool) {
	file, ok := baseName(p)
	if !ok {
		return NotificationRecord{}, false
	}
	where := "locally"
	if strings.EqualFold(stringField(p, "origin"), "sd") {
		where = "from SD"
	}
	return record(TypePrintStarted, titlePrintStarted, file+" has started printing "+where), true
}

func translatePrintDone(p map[string]any) (NotificationRecord, bool) {
	file, ok := baseName(p)
	if !ok {
		return NotificationRecord{}, false
	}
	desc := file + " finished printing"
	if elapsed, ok := formatSeconds(p["time"]); ok {
		desc += ", took " + elapsed + " seconds"
	}
	return record(TypePrintDone, titlePrintDone, desc), true
}

func record(t NotificationType, title, desc string) NotificationRecord {
	return NotificationRecord{Type: t, Title: title, Description: desc, Sticky: false, Priority: defaultPriority}
}

func stringField(p map[string]any, key string) string {
	s, _ := p[key].(string)
	return s
}

// baseName returns the last path element of payload["file"], accepting both
// '/' and '\' separators.
func baseName(p map[string]any) (string, bool) {
	raw, ok := p["file"].(string)
	if !ok {
		return "", false
	}
	raw = strings.TrimRight(strings.TrimSpace(raw), `/\`)
	if i := strings.LastIndexAny(raw, `/\`); i >= 0 {
		raw = raw[i+1:]
	}
	if raw == "" {
		return "", false
	}
	return raw, true
}

// formatSeconds renders an elapsed time: integers without a decimal point,
// fractions in their shortest exact form.
func formatSeconds(v any) (string, bool) {
	switch x := v.(type) {
	case int:
		return strconv.Itoa(x), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint:
		return strconv.FormatUint(uint64(x), 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float32:
		return formatFloat(float64(x), 32)
	case float64:
		return formatFloat(x, 64)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return strconv.FormatInt(i, 10), true
		}
		if f, err := x.Float64(); err == nil {
			return formatFloat(f, 64)
		}
		return "", false
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return "", false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return formatFloat(f, 64)
		}
		return s, true
	case nil:
		return "", false
	default:
		return fmt.Sprint(x), true
	}
}

func formatFloat(f float64, bits int) (string, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', -1, bits), true
}
