package eve

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/AzizK97/VarGuard/internal/metrics"
	"github.com/AzizK97/VarGuard/internal/models"
)

// ErrSkip is returned for lines that are valid but carry no alert: blank lines and
// events of other kinds.
var ErrSkip = errors.New("eve: not an alert")

// DecodeError reports a malformed line.
type DecodeError struct {
	Offset int64
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("eve: malformed line at offset %d: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// maxSafeID keeps ids exact when parsed as JavaScript numbers.
const maxSafeID = 1<<53 - 1

// Decoder turns EVE lines into alerts. The zero value is ready to use.
type Decoder struct{}

// NewDecoder returns a Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes one line found at offset in the log. It returns ErrSkip for
// blank lines and non-alert events and a *DecodeError for malformed input.
func (d *Decoder) Decode(line []byte, offset int64) (models.Alert, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		metrics.LinesDecoded.WithLabelValues("skipped").Inc()
		return models.Alert{}, ErrSkip
	}

	var rec Record
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		metrics.LinesDecoded.WithLabelValues("error").Inc()
		return models.Alert{}, &DecodeError{Offset: offset, Err: err}
	}
	if rec.EventType != eventTypeAlert {
		metrics.LinesDecoded.WithLabelValues("skipped").Inc()
		return models.Alert{}, ErrSkip
	}

	metrics.LinesDecoded.WithLabelValues("alert").Inc()
	return Normalize(rec, AlertID(offset, trimmed)), nil
}

// Normalize converts a record into an Alert with the given id.
func Normalize(rec Record, id uint64) models.Alert {
	a := models.Alert{
		ID:         id,
		Timestamp:  rec.Timestamp,
		SourceIP:   rec.SrcIP,
		DestIP:     rec.DestIP,
		SourcePort: rec.SrcPort,
		DestPort:   rec.DestPort,
		Protocol:   rec.Proto,
		Category:   models.DefaultCategory,
		Severity:   models.SeverityLow,
		Payload:    rec.PayloadPrintable,
	}
	if t, err := ParseTimestamp(rec.Timestamp); err == nil {
		a.At = t
	}

	if al := rec.Alert; al != nil {
		a.Signature = al.Signature
		if al.Category != "" {
			a.Category = al.Category
		}
		a.Severity = models.SeverityFromLevel(al.Severity)
		a.SignatureID = al.SignatureID
		a.Action = al.Action
		if a.Payload == "" {
			a.Payload = al.PayloadPrintable
		}
	}
	if a.Payload == "" {
		a.Payload = rec.Payload
	}
	return a
}

// AlertID derives a stable id from the line's position and content, so history
// scans and the live tail agree on the id of the same record.
func AlertID(offset int64, line []byte) uint64 {
	h := fnv.New64a()
	var off [8]byte
	binary.BigEndian.PutUint64(off[:], uint64(offset))
	h.Write(off[:])
	h.Write(line)
	return h.Sum64() & maxSafeID
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses RFC 3339 timestamps as well as Suricata's
// "2006-01-02T15:04:05.000000+0000" form. Timestamps without a zone are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("eve: empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("eve: unrecognized timestamp %q", s)
}
