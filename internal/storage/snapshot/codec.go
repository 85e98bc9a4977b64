package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/yndnr/tillvault-go/internal/core/domain"
)

// gzipMagic is the two-byte gzip stream header used to auto-detect
// compressed snapshots.
var gzipMagic = []byte{0x1f, 0x8b}

// Serialize encodes the snapshot as JSON, gzip-compressed when
// compress is set. The gzip magic doubles as the codec tag for
// Deserialize. Exported files keep a .json name either way, matching
// the established export format.
func Serialize(s *Snapshot, compress bool) ([]byte, error) {
	plain, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal: %w", err)
	}
	if !compress {
		return plain, nil
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(plain); err != nil {
		zw.Close()
		return nil, fmt.Errorf("snapshot: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("snapshot: compress close: %w", err)
	}
	return buf.Bytes(), nil
}

// Deserialize decodes a snapshot blob, auto-detecting gzip. A body
// that carries the gzip magic but fails to decompress falls back to a
// plain parse; DecompressionFailure surfaces only when that fallback
// cannot parse either.
func Deserialize(data []byte) (*Snapshot, error) {
	if bytes.HasPrefix(data, gzipMagic) {
		plain, err := decompress(data)
		if err == nil {
			return parse(plain)
		}
		// Recoverable per taxonomy: try the body as-is before
		// giving up.
		if s, perr := parse(data); perr == nil {
			return s, nil
		}
		return nil, domain.ErrDecompression.WithCause(err)
	}
	return parse(data)
}

func decompress(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	plain, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}
	return plain, nil
}

func parse(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, domain.ErrSnapshotMalformed.WithCause(err)
	}
	return &s, nil
}
