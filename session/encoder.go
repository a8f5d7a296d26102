package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CurrentSchemaVersion is written into every envelope by [Encode].
const CurrentSchemaVersion = 1

var (
	// ErrUnsupportedSchema is returned by [Decode] for an unknown envelope version.
	ErrUnsupportedSchema = errors.New("session: unsupported schema version")
	// ErrCorrupt is returned by [Decode] when the blob is not a valid envelope.
	ErrCorrupt = errors.New("session: corrupt envelope")
)

type envelope struct {
	Version int             `json:"version"`
	SavedAt int64           `json:"savedAt"`
	Data    json.RawMessage `json:"data"`
}

// Encode wraps v in a versioned envelope stamped with savedAt.
func Encode(v any, savedAt time.Time) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("session: encode: %w", err)
	}
	return json.Marshal(envelope{
		Version: CurrentSchemaVersion,
		SavedAt: savedAt.UnixMilli(),
		Data:    data,
	})
}

// Decode unwraps an envelope into v and returns its save time.
func Decode(blob []byte, v any) (time.Time, error) {
	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	switch env.Version {
	case CurrentSchemaVersion:
	default:
		return time.Time{}, fmt.Errorf("%w: %d", ErrUnsupportedSchema, env.Version)
	}
	if len(env.Data) == 0 {
		return time.Time{}, fmt.Errorf("%w: missing data", ErrCorrupt)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return time.UnixMilli(env.SavedAt), nil
}
