package metadata

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
)

// NewLogger builds an apex logger writing one line per entry to w.
// level is one of debug, info, warn, error, fatal.
func NewLogger(w io.Writer, level string) (*log.Logger, error) {
	if level == "" {
		level = "error"
	}
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return &log.Logger{
		Handler: NewLineHandler(w),
		Level:   lvl,
	}, nil
}

// LineHandler formats entries as
//
//	2006-01-02 15:04:05 D message key=value key=value
//
// with fields sorted by name.
type LineHandler struct {
	mu sync.Mutex
	w  io.Writer
}

func NewLineHandler(w io.Writer) *LineHandler {
	return &LineHandler{w: w}
}

// HandleLog implements the log.Handler interface
func (h *LineHandler) HandleLog(e *log.Entry) error {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	timestamp := e.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	fmt.Fprintf(&b, "%s %.1s %s", timestamp.Format("2006-01-02 15:04:05"), strings.ToUpper(e.Level.String()), e.Message)
	for _, name := range names {
		fmt.Fprintf(&b, " %s=%v", name, e.Fields[name])
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}
