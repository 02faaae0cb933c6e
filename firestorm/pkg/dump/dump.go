package dump

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/yandex/firestorm/firestorm/pkg/atomicfs"
	"github.com/yandex/firestorm/firestorm/pkg/clock"
	"github.com/yandex/firestorm/firestorm/pkg/eventlog"
	"github.com/yandex/firestorm/firestorm/pkg/profile/replay"
)

// Increment when the payload layout changes.
const schemaVersion uint16 = 1

var ErrSchemaMismatch = errors.New("dump: unsupported schema version")

// payload is a zstd-compressed msgpack snapshot of one event log.
type payload struct {
	Schema uint16   `msgpack:"schema"`
	Label  string   `msgpack:"label,omitempty"`
	Events []record `msgpack:"events"`
}

type record struct {
	Kind uint8  `msgpack:"k"`
	Time uint64 `msgpack:"t"`
	Tag  string `msgpack:"g,omitempty"`
}

// Snapshot is a recorded log together with the label of the context that
// produced it.
type Snapshot struct {
	Label  string
	Events []eventlog.Event
}

func Write(w io.Writer, snap Snapshot) error {
	p := payload{
		Schema: schemaVersion,
		Label:  snap.Label,
		Events: make([]record, len(snap.Events)),
	}
	for i, event := range snap.Events {
		p.Events[i] = record{
			Kind: uint8(event.Kind),
			Time: uint64(event.Time),
			Tag:  event.Tag,
		}
	}

	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return err
	}
	if err := msgpack.NewEncoder(zw).Encode(&p); err != nil {
		_ = zw.Close()
		return fmt.Errorf("dump: failed to encode events: %w", err)
	}
	return zw.Close()
}

// Read decodes a snapshot and checks that its events form a well nested
// log, so that replaying it can not panic.
func Read(r io.Reader) (*Snapshot, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var p payload
	if err := msgpack.NewDecoder(zr).Decode(&p); err != nil {
		return nil, fmt.Errorf("dump: failed to decode events: %w", err)
	}
	if p.Schema != schemaVersion {
		return nil, fmt.Errorf("%w %d", ErrSchemaMismatch, p.Schema)
	}

	snap := &Snapshot{
		Label:  p.Label,
		Events: make([]eventlog.Event, len(p.Events)),
	}
	for i, rec := range p.Events {
		snap.Events[i] = eventlog.Event{
			Kind: eventlog.Kind(rec.Kind),
			Time: clock.Sample(rec.Time),
			Tag:  rec.Tag,
		}
	}

	if err := replay.Check(snap.Events); err != nil {
		return nil, fmt.Errorf("dump: %w", err)
	}
	return snap, nil
}

// WriteFile atomically replaces path with the snapshot and syncs it to disk.
func WriteFile(path string, snap Snapshot) error {
	return atomicfs.WriteWith(path, func(w io.Writer) error {
		return Write(w, snap)
	}, atomicfs.WithSync())
}

func ReadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
