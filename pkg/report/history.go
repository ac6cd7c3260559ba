package report

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync/atomic"
	"time"

	"digital.vasic.challengeboard/pkg/engine"
	"digital.vasic.challengeboard/pkg/logging"
)

// historyQueueSize bounds the completions waiting to be written.
const historyQueueSize = 128

// HistoricalEntry is one line of the completion history.
type HistoricalEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Participant string    `json:"participant"`
	List        string    `json:"list"`
	ChallengeID string    `json:"challenge_id"`
}

// History appends completions to a JSON Lines file. Record only
// queues; Run does the writing.
type History struct {
	path    string
	queue   chan HistoricalEntry
	logger  logging.Logger
	dropped atomic.Int64
}

// NewHistory creates a History writing to path.
func NewHistory(path string, logger logging.Logger) *History {
	if logger == nil {
		logger = logging.NullLogger{}
	}
	return &History{
		path:   path,
		queue:  make(chan HistoricalEntry, historyQueueSize),
		logger: logger,
	}
}

// Path returns the history file.
func (h *History) Path() string { return h.path }

// Record queues ev if it is a completion and ignores every other
// event. It never blocks.
func (h *History) Record(ev engine.Event) {
	if ev.Kind != engine.EventCompleted {
		return
	}
	entry := HistoricalEntry{
		Timestamp:   ev.Time,
		Participant: ev.Participant,
		List:        ev.List,
		ChallengeID: string(ev.Challenge),
	}
	select {
	case h.queue <- entry:
	default:
		h.dropped.Add(1)
		h.logger.Warn("history entry dropped, queue full",
			logging.ParticipantField(ev.Participant),
		)
	}
}

// Dropped returns how many completions were never written.
func (h *History) Dropped() int64 { return h.dropped.Load() }

// Run writes queued entries until ctx is done, then flushes what
// is left.
func (h *History) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.flush()
			return nil
		case entry := <-h.queue:
			h.write(entry)
		}
	}
}

func (h *History) flush() {
	for {
		select {
		case entry := <-h.queue:
			h.write(entry)
		default:
			return
		}
	}
}

func (h *History) write(entry HistoricalEntry) {
	if err := AppendToHistory(h.path, entry); err != nil {
		h.logger.Error("history write failed",
			logging.StringField("path", h.path),
			logging.ErrorField(err),
		)
	}
}

// AppendToHistory adds entry to the log stored at historyPath.
// Each entry is a single JSON line.
func AppendToHistory(historyPath string, entry HistoricalEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	file, err := os.OpenFile(
		historyPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644,
	)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer func() { _ = file.Close() }()

	_, err = fmt.Fprintln(file, string(data))
	return err
}

// LoadHistory reads every entry of historyPath. A missing file
// is an empty history.
func LoadHistory(historyPath string) ([]HistoricalEntry, error) {
	file, err := os.Open(historyPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var entries []HistoricalEntry
	scanner := bufio.NewScanner(file)
	for line := 1; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e HistoricalEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("history line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}
