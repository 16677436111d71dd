package cachedir

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tsawler/inkpage/model"
)

// Blob framing: 4-byte magic, 1-byte version, zstd-compressed msgpack body.
const (
	blobMagic   = "INKB"
	blobVersion = 1
)

// ErrBadBlob is returned when a cached blob cannot be decoded.
var ErrBadBlob = errors.New("cachedir: malformed blob")

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

func initCodec() {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderConcurrency(1))
		if codecErr != nil {
			return
		}
		decoder, codecErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	})
}

// EncodeBlob serializes v. Encoding the same value always yields the same
// bytes, provided v contains no maps.
func EncodeBlob(v any) ([]byte, error) {
	initCodec()
	if codecErr != nil {
		return nil, codecErr
	}
	body, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding blob: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(blobMagic)
	buf.WriteByte(blobVersion)
	buf.Write(encoder.EncodeAll(body, nil))
	return buf.Bytes(), nil
}

// DecodeBlob deserializes data produced by EncodeBlob into v.
func DecodeBlob(data []byte, v any) error {
	initCodec()
	if codecErr != nil {
		return codecErr
	}
	if len(data) < len(blobMagic)+1 || string(data[:len(blobMagic)]) != blobMagic {
		return model.Wrap(model.ErrCorruptFormat, "decode blob", ErrBadBlob)
	}
	if data[len(blobMagic)] != blobVersion {
		return model.Wrap(model.ErrCorruptFormat, "decode blob",
			fmt.Errorf("%w: version %d", ErrBadBlob, data[len(blobMagic)]))
	}
	body, err := decoder.DecodeAll(data[len(blobMagic)+1:], nil)
	if err != nil {
		return model.Wrap(model.ErrCorruptFormat, "decode blob", err)
	}
	if err := msgpack.Unmarshal(body, v); err != nil {
		return model.Wrap(model.ErrCorruptFormat, "decode blob", err)
	}
	return nil
}
