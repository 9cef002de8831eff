// Package textbuf decodes text files into code points for scanning.
//
// Input is UTF-8 unless an encoding is named. A byte order mark, when
// present, overrides the configured encoding. Text can optionally be
// normalized to one of the Unicode normalization forms first, so that
// composed and decomposed spellings reach the automaton identically.
package textbuf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxFileSize bounds the bytes read by LoadFile (256 MiB).
const MaxFileSize = 256 << 20

// ErrEncoding is returned for unknown encoding or normalization names.
var ErrEncoding = errors.New("textbuf: unknown encoding")

// Options selects how bytes become code points.
type Options struct {
	// Encoding is an IANA or MIME name such as "utf-16le", "latin1" or
	// "shift_jis". Empty means UTF-8.
	Encoding string

	// Normalize is "nfc", "nfd", "nfkc", "nfkd" or empty for none.
	Normalize string
}

// Decode reads r to the end and returns its code points.
func Decode(r io.Reader, opts Options) ([]rune, error) {
	t, err := opts.transformer()
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, transform.NewReader(r, t)); err != nil {
		return nil, fmt.Errorf("textbuf: decode: %w", err)
	}
	return []rune(sb.String()), nil
}

// LoadFile decodes the file at path. Files over MaxFileSize are rejected.
func LoadFile(path string, opts Options) ([]rune, error) {
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("textbuf: %w", err)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("textbuf: %s is %d bytes (max %d)", path, info.Size(), MaxFileSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("textbuf: %w", err)
	}
	defer f.Close()

	text, err := Decode(bufio.NewReader(f), opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return text, nil
}

// transformer chains BOM detection, decoding and normalization.
func (o Options) transformer() (transform.Transformer, error) {
	fallback := unicode.UTF8.NewDecoder()
	if o.Encoding != "" {
		enc, err := lookupEncoding(o.Encoding)
		if err != nil {
			return nil, err
		}
		fallback = enc.NewDecoder()
	}
	decoder := unicode.BOMOverride(fallback)

	form, err := normalForm(o.Normalize)
	if err != nil {
		return nil, err
	}
	if form == nil {
		return decoder, nil
	}
	return transform.Chain(decoder, *form), nil
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		if enc, err = ianaindex.MIME.Encoding(name); err != nil || enc == nil {
			return nil, fmt.Errorf("%w: %q", ErrEncoding, name)
		}
	}
	return enc, nil
}

func normalForm(name string) (*norm.Form, error) {
	var f norm.Form
	switch strings.ToLower(name) {
	case "":
		return nil, nil
	case "nfc":
		f = norm.NFC
	case "nfd":
		f = norm.NFD
	case "nfkc":
		f = norm.NFKC
	case "nfkd":
		f = norm.NFKD
	default:
		return nil, fmt.Errorf("%w: normalization form %q", ErrEncoding, name)
	}
	return &f, nil
}
