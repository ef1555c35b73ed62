// Package tail follows an append-only EVE log and decodes newly written alerts.
package tail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AzizK97/VarGuard/internal/eve"
	"github.com/AzizK97/VarGuard/internal/metrics"
	"github.com/AzizK97/VarGuard/internal/models"
)

// Resync policies applied when the log is truncated or replaced.
const (
	ResyncStart = "start" // re-read the new content from offset 0
	ResyncEnd   = "end"   // skip to the current end of file
)

const (
	defaultInterval = time.Second
	defaultMaxRead  = 8 << 20
)

// Options configures a Watcher.
type Options struct {
	// Interval between polls. Defaults to one second.
	Interval time.Duration
	// MaxRead bounds the bytes read in one poll. Defaults to 8 MiB.
	MaxRead int64
	// Resync is ResyncStart or ResyncEnd. Defaults to ResyncStart.
	Resync string
	// Notify also polls on filesystem write events for the log's directory.
	Notify bool
}

// Watcher tracks a byte cursor into a log and reads whatever was appended past
// it. A Watcher is safe for concurrent use but is meant to be driven by a single
// Run loop.
type Watcher struct {
	path    string
	decoder *eve.Decoder
	opts    Options

	mu      sync.Mutex
	started bool
	cursor  int64
	info    os.FileInfo // identity of the file the cursor points into
	pending []byte      // unterminated tail, starts at cursor-len(pending)
}

// New returns a Watcher for path. Call Start or Run to begin watching.
func New(path string, dec *eve.Decoder, opts Options) *Watcher {
	if dec == nil {
		dec = eve.NewDecoder()
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.MaxRead <= 0 {
		opts.MaxRead = defaultMaxRead
	}
	if opts.Resync != ResyncEnd {
		opts.Resync = ResyncStart
	}
	return &Watcher{path: path, decoder: dec, opts: opts}
}

// Path returns the watched path.
func (w *Watcher) Path() string {
	return w.path
}

// Start positions the cursor at the current end of the log, or at 0 when the
// log does not exist yet. Only alerts written after Start are reported.
// Calling Start again has no effect.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true

	fi, err := os.Stat(w.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("stat eve log", "path", w.path, "error", err)
		}
		w.setCursor(0)
		return
	}
	w.info = fi
	w.setCursor(fi.Size())
	slog.Debug("watching eve log", "path", w.path, "cursor", w.cursor)
}

// Cursor returns the number of bytes of the log consumed so far.
func (w *Watcher) Cursor() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cursor
}

// Poll checks the log once and returns the alerts found in newly appended
// complete lines, in file order. Failures are logged and retried on the next
// poll.
func (w *Watcher) Poll() []models.Alert {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return nil
	}

	fi, err := os.Stat(w.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("stat eve log", "path", w.path, "error", err)
		}
		return nil
	}

	switch {
	case w.info != nil && !os.SameFile(w.info, fi):
		w.resync("rotated", fi.Size())
	case fi.Size() < w.cursor:
		w.resync("truncated", fi.Size())
	}
	w.info = fi

	if fi.Size() <= w.cursor {
		return nil
	}

	chunk, err := w.readFrom(w.cursor)
	if len(chunk) == 0 {
		if err != nil {
			slog.Warn("read eve log", "path", w.path, "offset", w.cursor, "error", err)
		}
		return nil
	}
	if err != nil {
		slog.Debug("short read from eve log", "path", w.path, "error", err)
	}

	base := w.cursor - int64(len(w.pending))
	data := append(w.pending, chunk...)
	w.setCursor(w.cursor + int64(len(chunk)))
	metrics.TailBytesRead.Add(float64(len(chunk)))

	lines, rest := eve.SplitLinesAt(data, base)
	w.pending = append([]byte(nil), rest...)

	var alerts []models.Alert
	for _, l := range lines {
		a, err := w.decoder.Decode(l.Data, l.Offset)
		if err != nil {
			if !errors.Is(err, eve.ErrSkip) {
				slog.Debug("skipping malformed eve line", "path", w.path, "error", err)
			}
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts
}

// readFrom reads from offset up to EOF, at most MaxRead bytes. The file may
// have grown since it was stat'ed; whatever is there is read.
func (w *Watcher) readFrom(offset int64) ([]byte, error) {
	f, err := os.Open(w.path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to %d: %w", offset, err)
	}
	return io.ReadAll(io.LimitReader(f, w.opts.MaxRead))
}

func (w *Watcher) resync(reason string, size int64) {
	from := w.cursor
	w.pending = nil
	if w.opts.Resync == ResyncEnd {
		w.setCursor(size)
	} else {
		w.setCursor(0)
	}
	metrics.TailResyncs.WithLabelValues(reason).Inc()
	slog.Info("eve log resynchronized", "path", w.path, "reason", reason, "from", from, "to", w.cursor)
}

func (w *Watcher) setCursor(c int64) {
	w.cursor = c
	metrics.TailCursor.Set(float64(c))
}

// Run starts the watcher if needed and polls until ctx is done, passing every
// new alert to emit from a single goroutine in file order. It returns ctx.Err().
func (w *Watcher) Run(ctx context.Context, emit func(models.Alert)) error {
	w.Start()

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if w.opts.Notify {
		fw, err := w.notifier()
		if err != nil {
			slog.Warn("file notifications unavailable, polling only", "path", w.path, "error", err)
		} else {
			defer fw.Close()
			events, errs = fw.Events, fw.Errors
		}
	}

	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Debug("file notification error", "path", w.path, "error", err)
			continue
		}

		for _, a := range w.Poll() {
			emit(a)
		}
	}
}

// notifier watches the log's directory so creation and rotation are seen too.
func (w *Watcher) notifier() (*fsnotify.Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	return fw, nil
}
