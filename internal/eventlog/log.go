// Package eventlog implements the single append-only per-store log that is
// the source of truth for a store. It is deliberately dumb: sequencing,
// authority checks, and workspace locking all live one layer up in
// internal/authority. This package only guarantees durable, ordered,
// restartable appends and reads.
package eventlog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rip-dev/rip/internal/frame"
)

const logFileName = "log.jsonl"

// offsetEntry records where a frame with a given seq starts in the log file.
type offsetEntry struct {
	seq    uint64
	offset int64
	length int64
}

// Log is the append-only event log for one store.
type Log struct {
	mu      sync.RWMutex
	path    string
	file    *os.File
	offsets []offsetEntry
	nextSeq uint64

	subsMu sync.Mutex
	subs   []chan frame.Envelope
}

// Open opens (creating if necessary) the log under storeDir/events/, replaying
// it to rebuild the in-memory offset index and truncating any torn tail left
// by a previous crash. Truncation is idempotent: a clean log is a no-op.
func Open(storeDir string) (*Log, error) {
	dir := filepath.Join(storeDir, "events")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("eventlog: mkdir: %w", err)
	}
	path := filepath.Join(dir, logFileName)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open: %w", err)
	}

	l := &Log{path: path, file: f}
	if err := l.rebuildIndex(); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

// rebuildIndex scans the log file from the start, recording offsets for each
// well-formed frame line. On encountering a torn (partial or corrupt) final
// line, it truncates the file to the last fully written frame.
func (l *Log) rebuildIndex() error {
	r := bufio.NewReader(l.file)
	var offset int64
	var lastGood int64
	var maxSeq uint64
	var sawAny bool

	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 && line[len(line)-1] == '\n' {
			env, decodeErr := frame.Decode(line[:len(line)-1])
			if decodeErr != nil {
				// Torn or corrupt line: stop here, truncate.
				break
			}
			l.offsets = append(l.offsets, offsetEntry{seq: env.Seq, offset: offset, length: int64(len(line))})
			offset += int64(len(line))
			lastGood = offset
			if env.Seq+1 > maxSeq {
				maxSeq = env.Seq + 1
			}
			sawAny = true
			if err != nil {
				break
			}
			continue
		}
		// Partial final line with no trailing newline: torn tail.
		break
	}

	if !sawAny {
		maxSeq = 0
	}
	l.nextSeq = maxSeq

	info, err := l.file.Stat()
	if err != nil {
		return fmt.Errorf("eventlog: stat: %w", err)
	}
	if info.Size() != lastGood {
		if err := l.file.Truncate(lastGood); err != nil {
			return fmt.Errorf("eventlog: truncate torn tail: %w", err)
		}
	}
	if _, err := l.file.Seek(lastGood, 0); err != nil {
		return fmt.Errorf("eventlog: seek: %w", err)
	}
	return nil
}

// AppendSequenced assigns the next dense seq to e, persists it durably
// (write + fsync) before returning, and fans it out to any tail subscribers.
// It does not check caller authority; that is the authority package's job.
func (l *Log) AppendSequenced(e frame.Envelope) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.Seq = l.nextSeq
	b, err := frame.Encode(e)
	if err != nil {
		return 0, fmt.Errorf("eventlog: append: %w", err)
	}

	info, err := l.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("eventlog: append: stat: %w", err)
	}
	offset := info.Size()

	if _, err := l.file.Write(b); err != nil {
		return 0, fmt.Errorf("eventlog: append: write: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return 0, fmt.Errorf("eventlog: append: fsync: %w", err)
	}

	l.offsets = append(l.offsets, offsetEntry{seq: e.Seq, offset: offset, length: int64(len(b))})
	l.nextSeq++

	l.publish(e)
	return e.Seq, nil
}

func (l *Log) publish(e frame.Envelope) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
			// Backpressure is enforced upstream (bounded channel owners drain
			// promptly); a full subscriber channel here means the caller is
			// misusing Subscribe, so we drop rather than block the writer.
		}
	}
}

// readAt reads and decodes the frame at the given offset entry. Caller must
// hold at least l.mu.RLock().
func (l *Log) readAt(e offsetEntry) (frame.Envelope, error) {
	buf := make([]byte, e.length)
	if _, err := l.file.ReadAt(buf, e.offset); err != nil {
		return frame.Envelope{}, fmt.Errorf("eventlog: read: %w", err)
	}
	return frame.Decode(buf[:len(buf)-1])
}

// ReadAll returns every frame in append (seq) order.
func (l *Log) ReadAll() ([]frame.Envelope, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]frame.Envelope, 0, len(l.offsets))
	for _, oe := range l.offsets {
		env, err := l.readAt(oe)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, nil
}

// ReadStream returns frames for one stream, preserving their relative order.
func (l *Log) ReadStream(kind frame.StreamKind, streamID string) ([]frame.Envelope, error) {
	all, err := l.ReadAll()
	if err != nil {
		return nil, err
	}
	out := make([]frame.Envelope, 0)
	for _, e := range all {
		if e.StreamKind == kind && e.StreamID == streamID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ReadSince returns all frames with seq >= fromSeq, in order.
func (l *Log) ReadSince(fromSeq uint64) ([]frame.Envelope, error) {
	all, err := l.ReadAll()
	if err != nil {
		return nil, err
	}
	out := make([]frame.Envelope, 0)
	for _, e := range all {
		if e.Seq >= fromSeq {
			out = append(out, e)
		}
	}
	return out, nil
}

// NextSeq returns the seq that would be assigned to the next append.
func (l *Log) NextSeq() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextSeq
}

// Subscribe registers a bounded channel that receives every newly appended
// frame from this point forward, for SSE-style fan-out. The caller must
// drain it promptly and call Unsubscribe when done.
func (l *Log) Subscribe(buffer int) chan frame.Envelope {
	ch := make(chan frame.Envelope, buffer)
	l.subsMu.Lock()
	l.subs = append(l.subs, ch)
	l.subsMu.Unlock()
	return ch
}

// Unsubscribe removes a channel previously returned by Subscribe.
func (l *Log) Unsubscribe(ch chan frame.Envelope) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	for i, c := range l.subs {
		if c == ch {
			l.subs = append(l.subs[:i], l.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Close releases the underlying file handle.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
