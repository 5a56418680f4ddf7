package transcoder

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// PollInterval bounds how long a write can go unnoticed when file
// notifications are unavailable or coalesced.
const PollInterval = 100 * time.Millisecond

// Tail follows the file at path and calls onLine for each complete line.
// It returns once done is closed and the remainder of the file has been
// read, or when ctx is cancelled.
func Tail(ctx context.Context, path string, done <-chan struct{}, onLine func(string), log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var (
		wake <-chan fsnotify.Event
		errs <-chan error
	)
	if watcher, err := fsnotify.NewWatcher(); err != nil {
		log.Debug("fsnotify unavailable, polling", zap.Error(err))
	} else {
		defer watcher.Close()
		if err := watcher.Add(path); err != nil {
			log.Debug("watch progress file", zap.String("path", path), zap.Error(err))
		} else {
			wake, errs = watcher.Events, watcher.Errors
		}
	}

	tick := time.NewTicker(PollInterval)
	defer tick.Stop()

	lr := &lineReader{rd: bufio.NewReader(f), onLine: onLine}
	for {
		if err := lr.drain(); err != nil {
			return err
		}
		select {
		case <-done:
			if err := lr.drain(); err != nil {
				return err
			}
			lr.flush()
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-wake:
			if !ok {
				wake = nil
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Debug("fsnotify", zap.Error(err))
		case <-tick.C:
		}
	}
}

// lineReader splits appended data into lines, holding back a trailing
// partial line until its newline arrives.
type lineReader struct {
	rd      *bufio.Reader
	partial strings.Builder
	onLine  func(string)
}

func (lr *lineReader) drain() error {
	for {
		chunk, err := lr.rd.ReadString('\n')
		if chunk != "" {
			if strings.HasSuffix(chunk, "\n") {
				lr.partial.WriteString(chunk[:len(chunk)-1])
				lr.emit()
			} else {
				lr.partial.WriteString(chunk)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (lr *lineReader) flush() {
	if lr.partial.Len() > 0 {
		lr.emit()
	}
}

func (lr *lineReader) emit() {
	line := strings.TrimRight(lr.partial.String(), "\r")
	lr.partial.Reset()
	lr.onLine(line)
}
