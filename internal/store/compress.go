package store

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

func codec() error {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			return
		}
		decoder, codecErr = zstd.NewReader(nil)
	})
	return codecErr
}

// compress returns the zstd frame of text.
func compress(text string) ([]byte, error) {
	if err := codec(); err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	return encoder.EncodeAll([]byte(text), nil), nil
}

// decompress reverses compress.
func decompress(frame []byte) (string, error) {
	if err := codec(); err != nil {
		return "", fmt.Errorf("zstd: %w", err)
	}
	out, err := decoder.DecodeAll(frame, nil)
	if err != nil {
		return "", fmt.Errorf("zstd: %w", err)
	}
	return string(out), nil
}
