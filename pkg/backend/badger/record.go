package badger

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/marmos91/dittostream/pkg/backend"
)

// record is the persisted form of an entry.
type record struct {
	Kind       backend.Kind `cbor:"1,keyasint"`
	Size       int64        `cbor:"2,keyasint,omitempty"`
	Modified   int64        `cbor:"3,keyasint"`
	Visibility string       `cbor:"4,keyasint,omitempty"`
	Blob       string       `cbor:"5,keyasint,omitempty"`
	Compressed bool         `cbor:"6,keyasint,omitempty"`
}

// encMode produces canonical CBOR so equal records encode to equal bytes.
var encMode = func() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor: %v", err))
	}
	return mode
}()

func encodeRecord(r *record) ([]byte, error) {
	data, err := encMode.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (*record, error) {
	var r record
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &r, nil
}

func (r *record) metadata(path string) backend.Metadata {
	m := backend.Metadata{
		Path:       path,
		Kind:       r.Kind,
		Visibility: r.Visibility,
	}
	ts := time.Unix(0, r.Modified)
	m.Timestamp = &ts
	if r.Kind == backend.KindFile {
		size := r.Size
		m.Size = &size
	}
	return m
}

// codec compresses blob bodies with zstd.
type codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// newCodec always carries a decoder so blobs written with compression stay
// readable after it is switched off.
func newCodec(compress bool) (*codec, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	if !compress {
		return &codec{dec: dec}, nil
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		dec.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return &codec{enc: enc, dec: dec}, nil
}

func (c *codec) enabled() bool {
	return c.enc != nil
}

func (c *codec) compress(data []byte) []byte {
	return c.enc.EncodeAll(data, make([]byte, 0, len(data)/2))
}

func (c *codec) decompress(data []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress blob: %w", err)
	}
	return out, nil
}

func (c *codec) close() {
	c.dec.Close()
	if c.enc != nil {
		_ = c.enc.Close()
	}
}
