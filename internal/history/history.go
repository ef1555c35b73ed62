// Package history answers queries over the alerts already written to the EVE log
// by scanning the file from the start.
package history

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/AzizK97/VarGuard/internal/eve"
	"github.com/AzizK97/VarGuard/internal/models"
)

// Reader performs bounded reads of an EVE log.
type Reader struct {
	path      string
	decoder   *eve.Decoder
	scanLimit int
}

// NewReader returns a Reader for path. scanLimit bounds the window used by the
// query helpers (Find, BySeverity, ...); Read takes its own bound.
func NewReader(path string, dec *eve.Decoder, scanLimit int) *Reader {
	if dec == nil {
		dec = eve.NewDecoder()
	}
	return &Reader{path: path, decoder: dec, scanLimit: scanLimit}
}

// Path returns the log file path.
func (r *Reader) Path() string {
	return r.path
}

// Read returns the last limit alerts of the log, newest first. A missing file
// yields no alerts and no error. The whole file is scanned on every call.
// On a read error the alerts collected so far are returned with the error.
func (r *Reader) Read(limit int) ([]models.Alert, error) {
	if limit <= 0 {
		return []models.Alert{}, nil
	}

	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.Alert{}, nil
		}
		return []models.Alert{}, fmt.Errorf("open %s: %w", r.path, err)
	}
	defer f.Close()

	kept := newRing(limit)
	br := bufio.NewReaderSize(f, 64*1024)
	var offset int64
	for {
		line, rerr := br.ReadBytes('\n')
		if len(line) > 0 {
			terminated := line[len(line)-1] == '\n'
			a, err := r.decoder.Decode(line, offset)
			switch {
			case err == nil:
				kept.add(a)
			case errors.Is(err, eve.ErrSkip):
			case !terminated:
				// A writer may be mid-line; the tail picks it up once complete.
			default:
				slog.Debug("skipping malformed eve line", "path", r.path, "error", err)
			}
			offset += int64(len(line))
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return kept.newestFirst(), fmt.Errorf("read %s: %w", r.path, rerr)
		}
	}

	return kept.newestFirst(), nil
}

// Window returns the alerts in the configured scan window, newest first.
func (r *Reader) Window() ([]models.Alert, error) {
	return r.Read(r.scanLimit)
}

// Find returns the alert with the given id within the scan window.
func (r *Reader) Find(id uint64) (models.Alert, bool, error) {
	alerts, err := r.Window()
	for _, a := range alerts {
		if a.ID == id {
			return a, true, err
		}
	}
	return models.Alert{}, false, err
}

// BySeverity returns alerts of one severity, newest first.
func (r *Reader) BySeverity(sev models.Severity) ([]models.Alert, error) {
	return r.filter(func(a models.Alert) bool { return a.Severity == sev })
}

// ByIP returns alerts where ip is the source or the destination.
func (r *Reader) ByIP(ip string) ([]models.Alert, error) {
	return r.filter(func(a models.Alert) bool { return a.SourceIP == ip || a.DestIP == ip })
}

// Between returns alerts with start <= timestamp <= end. Alerts with an
// unparseable timestamp never match.
func (r *Reader) Between(start, end time.Time) ([]models.Alert, error) {
	return r.filter(func(a models.Alert) bool {
		return !a.At.IsZero() && !a.At.Before(start) && !a.At.After(end)
	})
}

// Page is one page of alerts, newest first.
type Page struct {
	Content       []models.Alert `json:"content"`
	Page          int            `json:"page"`
	Size          int            `json:"size"`
	TotalElements int            `json:"totalElements"`
	TotalPages    int            `json:"totalPages"`
}

// Page returns page number page (zero based) of size alerts from the scan window.
func (r *Reader) Page(page, size int) (Page, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 20
	}
	alerts, err := r.Window()
	p := Page{
		Content:       []models.Alert{},
		Page:          page,
		Size:          size,
		TotalElements: len(alerts),
		TotalPages:    (len(alerts) + size - 1) / size,
	}
	from := page * size
	if from < len(alerts) {
		to := min(from+size, len(alerts))
		p.Content = alerts[from:to]
	}
	return p, err
}

func (r *Reader) filter(keep func(models.Alert) bool) ([]models.Alert, error) {
	alerts, err := r.Window()
	out := make([]models.Alert, 0, len(alerts))
	for _, a := range alerts {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out, err
}
