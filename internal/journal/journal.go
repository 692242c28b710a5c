// Package journal persists one JSONL record per decision tick, zstd
// compressed, one file per match. cmd/replay streams the records back
// through a fresh pipeline to prove a whole match deterministic.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/klauspost/compress/zstd"

	"stratagem.ai/internal/game"
	"stratagem.ai/internal/metrics"
)

// Record is one tick of a match: the snapshot the planner saw, the
// actions it answered with and the counters it left behind.
type Record struct {
	Tick     int               `json:"tick"`
	Snapshot *game.Snapshot    `json:"snapshot,omitempty"`
	Actions  game.ActionSet    `json:"actions"`
	Stats    metrics.TickStats `json:"stats"`
}

// Writer appends records for the current match and rotates to a new file
// when the match id changes.
type Writer struct {
	baseDir string

	mu       sync.Mutex
	curMatch string
	f        *os.File
	enc      *zstd.Encoder
	w        *bufio.Writer
}

func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir}
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) Write(matchID string, rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if matchID != w.curMatch || w.w == nil {
		if err := w.rotateLocked(matchID); err != nil {
			return err
		}
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *Writer) rotateLocked(matchID string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := MatchPath(w.baseDir, matchID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curMatch = matchID
	return nil
}

func (w *Writer) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curMatch = ""
	return err1
}

// MatchPath is where a match's journal lives under baseDir.
func MatchPath(baseDir, matchID string) string {
	return filepath.Join(baseDir, fmt.Sprintf("match-%s.jsonl.zst", matchID))
}

// Reader streams records back in write order.
type Reader struct {
	f   *os.File
	dec *zstd.Decoder
	sc  *bufio.Scanner
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	return &Reader{f: f, dec: dec, sc: sc}, nil
}

// Next returns the following record, or io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return Record{}, err
		}
		return Record{}, io.EOF
	}
	var rec Record
	if err := json.Unmarshal(r.sc.Bytes(), &rec); err != nil {
		return Record{}, fmt.Errorf("journal: unmarshal: %w", err)
	}
	return rec, nil
}

func (r *Reader) Close() {
	r.dec.Close()
	_ = r.f.Close()
}

// Digest folds an action set into a stable hash: entries visit in id
// order, each hashed from its canonical JSON. Two sets digest equal iff
// every entity got the same order.
func Digest(acts game.ActionSet) uint64 {
	ids := make([]game.EntityID, 0, len(acts))
	for id := range acts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	h := fnv.New64a()
	var buf [8]byte
	for _, id := range ids {
		buf[0] = byte(id)
		buf[1] = byte(id >> 8)
		buf[2] = byte(id >> 16)
		buf[3] = byte(id >> 24)
		_, _ = h.Write(buf[:4])
		b, _ := json.Marshal(acts[id])
		_, _ = h.Write(b)
	}
	return h.Sum64()
}
