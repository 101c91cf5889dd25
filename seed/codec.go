package seed

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Encoding selects the textual form a seed is serialized into.
type Encoding byte

const (
	// EncodingPlain writes the attribute map as readable text.
	EncodingPlain Encoding = iota

	// EncodingBase64 writes the attribute map base64 encoded.
	EncodingBase64

	// EncodingZstd writes the attribute map zstd compressed and base64
	// encoded.
	EncodingZstd
)

// prefix returns the line prefix that identifies the encoding.
func (e Encoding) prefix() string {
	switch e {
	case EncodingBase64:
		return "b|"
	case EncodingZstd:
		return "z|"
	default:
		return "p|"
	}
}

// String returns a human readable name for the encoding.
func (e Encoding) String() string {
	switch e {
	case EncodingPlain:
		return "plain"
	case EncodingBase64:
		return "base64"
	case EncodingZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// ParseEncoding returns the encoding with the given name.
func ParseEncoding(name string) (Encoding, error) {
	for _, enc := range []Encoding{
		EncodingPlain, EncodingBase64, EncodingZstd,
	} {
		if enc.String() == name {
			return enc, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
}

var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil)
	})

	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil)
	})
)

// Encode serializes the seed into a single line using the plain encoding.
func (s *Seed) Encode() string {
	line, _ := s.EncodeAs(EncodingPlain)
	return line
}

// EncodeAs serializes the seed into a single line using the given encoding.
func (s *Seed) EncodeAs(enc Encoding) (string, error) {
	text := s.mapText()

	switch enc {
	case EncodingPlain:
		return enc.prefix() + text, nil

	case EncodingBase64:
		return enc.prefix() +
			base64.StdEncoding.EncodeToString([]byte(text)), nil

	case EncodingZstd:
		encoder, err := zstdEncoder()
		if err != nil {
			return "", fmt.Errorf("unable to create zstd "+
				"encoder: %w", err)
		}
		compressed := encoder.EncodeAll([]byte(text), nil)

		return enc.prefix() +
			base64.StdEncoding.EncodeToString(compressed), nil

	default:
		return "", fmt.Errorf("%w: %v", ErrUnknownEncoding, enc)
	}
}

// mapText renders the hash and attributes as {k=v,...} with sorted keys.
func (s *Seed) mapText() string {
	keys := make([]string, 0, len(s.Attrs)+1)
	for k := range s.Attrs {
		if k == KeyHash {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	b.WriteString(KeyHash)
	b.WriteByte('=')
	b.WriteString(url.QueryEscape(s.Hash))
	for _, k := range keys {
		b.WriteByte(',')
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(s.Attrs[k]))
	}
	b.WriteByte('}')

	return b.String()
}

// Decode parses a seed line produced by Encode or EncodeAs. Trailing line
// separators are ignored.
func Decode(line string) (*Seed, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) < 2 || line[1] != '|' {
		return nil, ErrUnknownEncoding
	}

	body := line[2:]
	var text string
	switch line[:2] {
	case "p|":
		text = body

	case "b|":
		raw, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSeed, err)
		}
		text = string(raw)

	case "z|":
		raw, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSeed, err)
		}
		decoder, err := zstdDecoder()
		if err != nil {
			return nil, fmt.Errorf("unable to create zstd "+
				"decoder: %w", err)
		}
		plain, err := decoder.DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSeed, err)
		}
		text = string(plain)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, line[:2])
	}

	attrs, err := parseMapText(text)
	if err != nil {
		return nil, err
	}

	hash, ok := attrs[KeyHash]
	if !ok || hash == "" {
		return nil, ErrMissingHash
	}

	return New(hash, attrs), nil
}

// parseMapText parses the {k=v,...} form written by mapText.
func parseMapText(text string) (map[string]string, error) {
	if !strings.HasPrefix(text, "{") || !strings.HasSuffix(text, "}") {
		return nil, fmt.Errorf("%w: missing braces", ErrMalformedSeed)
	}

	attrs := make(map[string]string)
	inner := text[1 : len(text)-1]
	if inner == "" {
		return attrs, nil
	}

	for _, pair := range strings.Split(inner, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("%w: pair %q has no value",
				ErrMalformedSeed, pair)
		}

		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSeed, err)
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSeed, err)
		}
		attrs[key] = value
	}

	return attrs, nil
}
