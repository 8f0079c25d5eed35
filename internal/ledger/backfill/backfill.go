// Package backfill records business actions read as JSON lines, so actions
// taken before the ledger existed (or replayed from another system) can be
// attested with their original timestamps.
package backfill

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"licita/internal/ledger/models"
	"licita/pkg/requestcontext"
)

const maxLineBytes = 1 << 20

// Recorder is the ledger write used by Run.
type Recorder interface {
	Record(ctx context.Context, kind models.Kind, actorID string, payload any) (string, error)
}

// Entry is one input line. Dados is passed through as raw JSON so numbers keep
// their literal form until the ledger checks them. Timestamp is in
// milliseconds; zero means now.
type Entry struct {
	Tipo      string          `json:"tipo"`
	AtorID    string          `json:"ator_id"`
	Dados     json.RawMessage `json:"dados"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Receipt is written to the output for every recorded line.
type Receipt struct {
	Linha int    `json:"linha"`
	Hash  string `json:"hash"`
}

// Stats summarises a run.
type Stats struct {
	Recorded int
	Failed   int
}

// Run records every non-blank line of in and writes one Receipt per recorded
// line to out. Lines that cannot be decoded or recorded are logged, counted
// and skipped. It returns early only when reading fails or ctx ends.
func Run(ctx context.Context, in io.Reader, out io.Writer, rec Recorder, logger *slog.Logger) (Stats, error) {
	var stats Stats
	enc := json.NewEncoder(out)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		hash, err := recordLine(ctx, raw, rec)
		if err != nil {
			stats.Failed++
			logger.WarnContext(ctx, "backfill line rejected", "line", line, "error", err)
			continue
		}
		stats.Recorded++
		if err := enc.Encode(Receipt{Linha: line, Hash: hash}); err != nil {
			return stats, fmt.Errorf("write receipt: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read backfill input: %w", err)
	}
	return stats, nil
}

func recordLine(ctx context.Context, raw []byte, rec Recorder) (string, error) {
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return "", fmt.Errorf("decode line: %w", err)
	}
	if entry.Timestamp < 0 {
		return "", errors.New("timestamp must not be negative")
	}
	if entry.Timestamp > 0 {
		ctx = requestcontext.WithTime(ctx, time.UnixMilli(entry.Timestamp))
	}

	var payload any
	if len(entry.Dados) > 0 {
		payload = entry.Dados
	}
	return rec.Record(ctx, models.Kind(entry.Tipo), entry.AtorID, payload)
}
