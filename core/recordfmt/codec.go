package recordfmt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// Encoding selects a wire encoding.
type Encoding string

const (
	JSON Encoding = "json"
	CBOR Encoding = "cbor"
)

// ParseEncoding maps a name such as a file extension to an Encoding.
func ParseEncoding(name string) (Encoding, error) {
	switch name {
	case "json", ".json":
		return JSON, nil
	case "cbor", ".cbor":
		return CBOR, nil
	}
	return "", fmt.Errorf("unknown encoding %q", name)
}

// maxBundleSize bounds how much a reader will buffer.
const maxBundleSize = 256 << 20

var encMode = sync.OnceValues(func() (cbor.EncMode, error) {
	return cbor.CanonicalEncOptions().EncMode()
})

var decMode = sync.OnceValues(func() (cbor.DecMode, error) {
	return cbor.DecOptions{MaxArrayElements: 1 << 24, MaxMapPairs: 1 << 20}.DecMode()
})

// Write encodes b to w.
func Write(w io.Writer, b *Bundle, enc Encoding) error {
	data, err := Marshal(b, enc)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}
	return nil
}

// Marshal encodes b. CBOR output is deterministic.
func Marshal(b *Bundle, enc Encoding) ([]byte, error) {
	switch enc {
	case JSON:
		data, err := json.MarshalIndent(b, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return append(data, '\n'), nil
	case CBOR:
		em, err := encMode()
		if err != nil {
			return nil, fmt.Errorf("create CBOR encoder: %w", err)
		}
		data, err := em.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode cbor: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("unknown encoding %q", enc)
}

// Read decodes a bundle from r, rejecting incompatible versions and, for
// JSON, documents that violate the record schema.
func Read(r io.Reader, enc Encoding) (*Bundle, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBundleSize+1))
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	if len(data) > maxBundleSize {
		return nil, fmt.Errorf("bundle exceeds %d bytes", maxBundleSize)
	}
	return Unmarshal(data, enc)
}

// Unmarshal is Read over a byte slice.
func Unmarshal(data []byte, enc Encoding) (*Bundle, error) {
	var b Bundle
	switch enc {
	case JSON:
		if err := ValidateJSON(data); err != nil {
			return nil, err
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&b); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case CBOR:
		dm, err := decMode()
		if err != nil {
			return nil, fmt.Errorf("create CBOR decoder: %w", err)
		}
		if err := dm.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("decode cbor: %w", err)
		}
		if err := Validate(&b); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown encoding %q", enc)
	}
	if err := CheckVersion(b.Format); err != nil {
		return nil, err
	}
	return &b, nil
}
