package questions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/cespare/xxhash/v2"

	"examprep/internal/core"
)

const (
	codecVersion = 1

	// maxDecodedSize bounds decompression of a stored entry.
	maxDecodedSize = 32 * 1024 * 1024
)

var errChecksumMismatch = errors.New("checksum mismatch")

// envelope is the persisted form of a CachedQuestionSet.
// Checksum is the xxhash of the uncompressed payload.
type envelope struct {
	Version    int    `json:"v"`
	Compressed bool   `json:"compressed,omitempty"`
	Checksum   uint64 `json:"checksum"`
	Payload    []byte `json:"payload"`
}

type storedSet struct {
	Subject   core.Subject    `json:"subject"`
	FetchedAt time.Time       `json:"fetched_at"`
	Questions []core.Question `json:"questions"`
}

func encodeSet(set *CachedQuestionSet, compress bool) ([]byte, error) {
	raw, err := json.Marshal(storedSet{
		Subject:   set.Subject,
		FetchedAt: set.FetchedAt.UTC(),
		Questions: set.Questions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal question set: %w", err)
	}

	env := envelope{
		Version:  codecVersion,
		Checksum: xxhash.Sum64(raw),
		Payload:  raw,
	}

	if compress {
		var buf bytes.Buffer
		w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
		if _, err := w.Write(raw); err != nil {
			return nil, fmt.Errorf("failed to compress question set: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("failed to compress question set: %w", err)
		}
		env.Compressed = true
		env.Payload = buf.Bytes()
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return data, nil
}

func decodeSet(data []byte) (*CachedQuestionSet, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}
	if env.Version != codecVersion {
		return nil, fmt.Errorf("unsupported envelope version %d", env.Version)
	}

	raw := env.Payload
	if env.Compressed {
		r := io.LimitReader(brotli.NewReader(bytes.NewReader(env.Payload)), maxDecodedSize+1)
		decoded, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress payload: %w", err)
		}
		if len(decoded) > maxDecodedSize {
			return nil, fmt.Errorf("decompressed payload exceeds %d bytes", maxDecodedSize)
		}
		raw = decoded
	}

	if xxhash.Sum64(raw) != env.Checksum {
		return nil, errChecksumMismatch
	}

	var stored storedSet
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse question set: %w", err)
	}
	if stored.FetchedAt.IsZero() {
		return nil, errors.New("missing fetched_at")
	}

	return &CachedQuestionSet{
		Subject:   stored.Subject,
		Questions: stored.Questions,
		FetchedAt: stored.FetchedAt,
	}, nil
}
