// Package fs reads newline-delimited JSON ingestion events from files and
// pipes, optionally following a file as it grows.
package fs

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/traceship/internal/domain"
	"github.com/bft-labs/traceship/pkg/log"
)

// DefaultPollInterval is how often a followed file is re-read when no
// filesystem notification arrives.
const DefaultPollInterval = time.Second

// LineError reports a line that could not be decoded as an event.
// The tailer stays usable after returning one.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Tailer implements ports.EventSource over NDJSON input.
type Tailer struct {
	r      *bufio.Reader
	closer io.Closer
	logger log.Logger

	path    string
	follow  bool
	watcher *fsnotify.Watcher
	poll    time.Duration

	pending []byte
	line    int
}

// NewReaderSource reads events from r until EOF. Close does not close r.
func NewReaderSource(r io.Reader) *Tailer {
	return &Tailer{
		r:      bufio.NewReader(r),
		logger: log.NoopLogger{},
	}
}

// OpenTailer opens path for reading. With follow set, Next waits for
// appended lines instead of returning io.EOF, until the file is removed or
// renamed.
func OpenTailer(path string, follow bool, logger log.Logger) (*Tailer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	t := &Tailer{
		r:      bufio.NewReader(f),
		closer: f,
		logger: log.OrNoop(logger),
		path:   path,
		follow: follow,
		poll:   DefaultPollInterval,
	}

	if follow {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("create watcher: %w", err)
		}
		if err := w.Add(path); err != nil {
			w.Close()
			f.Close()
			return nil, fmt.Errorf("watch %s: %w", path, err)
		}
		t.watcher = w
	}

	return t, nil
}

// Next returns the next event. Blank lines are skipped; undecodable lines
// yield a *LineError.
func (t *Tailer) Next(ctx context.Context) (*domain.IngestionEvent, error) {
	for {
		chunk, err := t.r.ReadBytes('\n')
		t.pending = append(t.pending, chunk...)

		switch {
		case err == nil:
		case !errors.Is(err, io.EOF):
			return nil, err
		case t.follow:
			// keep a partial line until the writer finishes it
			if werr := t.wait(ctx); werr != nil {
				return nil, werr
			}
			continue
		case len(bytes.TrimSpace(t.pending)) == 0:
			return nil, io.EOF
		}

		line := t.pending
		t.pending = nil
		t.line++

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		return t.decode(line)
	}
}

func (t *Tailer) decode(line []byte) (*domain.IngestionEvent, error) {
	var ev domain.IngestionEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		return nil, &LineError{Line: t.line, Err: err}
	}
	if ev.Type == "" {
		return nil, &LineError{Line: t.line, Err: errors.New("missing event type")}
	}
	return &ev, nil
}

// wait blocks until the followed file may have grown. It returns io.EOF
// once the file is gone.
func (t *Tailer) wait(ctx context.Context) error {
	timer := time.NewTimer(t.poll)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()

	case event, ok := <-t.watcher.Events:
		if !ok {
			return io.EOF
		}
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
			t.logger.Info("followed file went away", log.String("file", event.Name))
			return io.EOF
		}

	case err, ok := <-t.watcher.Errors:
		if !ok {
			return io.EOF
		}
		t.logger.Warn("watcher error", log.Err(err))

	case <-timer.C:
	}

	// an unlinked file that is still open only reports a chmod
	if _, err := os.Stat(t.path); os.IsNotExist(err) {
		t.logger.Info("followed file went away", log.String("file", t.path))
		return io.EOF
	}
	return nil
}

// Close releases the file and the watcher.
func (t *Tailer) Close() error {
	var errs []error
	if t.watcher != nil {
		errs = append(errs, t.watcher.Close())
	}
	if t.closer != nil {
		errs = append(errs, t.closer.Close())
	}
	return errors.Join(errs...)
}
