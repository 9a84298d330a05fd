package repository

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// codec compresses stored payloads with zstd. Structured values are JSON
// before compression.
type codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newCodec(level int) (*codec, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(256<<20))
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &codec{enc: enc, dec: dec}, nil
}

// EncodeAll and DecodeAll are safe for concurrent use.
func (c *codec) compress(raw []byte) []byte {
	return c.enc.EncodeAll(raw, make([]byte, 0, len(raw)/2))
}

func (c *codec) decompress(data []byte) ([]byte, error) {
	raw, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return raw, nil
}

func (c *codec) marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return c.compress(raw), nil
}

func (c *codec) unmarshal(data []byte, v any) error {
	raw, err := c.decompress(data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return nil
}

func (c *codec) close() {
	_ = c.enc.Close()
	c.dec.Close()
}
