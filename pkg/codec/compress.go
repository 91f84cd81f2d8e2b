package codec

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// maxDecodedBytes caps the memory a single decompression may use,
// independent of the configured frame limits.
const maxDecodedBytes = 64 << 20

// The encoder and decoder are safe for concurrent EncodeAll/DecodeAll calls
// and expensive to build, so one of each is shared by all connections.
var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(0),
			zstd.WithDecoderMaxMemory(maxDecodedBytes))
	})
)

func compress(src []byte) ([]byte, error) {
	enc, err := zstdEncoder()
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	return enc.EncodeAll(src, make([]byte, 0, len(src)/2)), nil
}

func decompress(src []byte, limit uint32) ([]byte, error) {
	dec, err := zstdDecoder()
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	out, err := dec.DecodeAll(src, make([]byte, 0, len(src)*3))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	if uint64(len(out)) > uint64(limit) {
		return nil, fmt.Errorf("decompressed payload of %d bytes: %w", len(out), ErrFrameTooLarge)
	}
	return out, nil
}
