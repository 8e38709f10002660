package payments

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ErrSourceUnavailable is returned when the input cannot be opened at all.
var ErrSourceUnavailable = errors.New("transaction source unavailable")

// Stdin is the source name that reads standard input.
const Stdin = "-"

// OpenSource opens the named transaction log. The name "-" reads standard
// input. Files ending in .gz, .zst, .lz4 or .br are decompressed on the fly.
func OpenSource(name string) (io.ReadCloser, error) {
	if name == Stdin {
		return io.NopCloser(os.Stdin), nil
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	rc, err := decompress(strings.ToLower(filepath.Ext(name)), f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, name, err)
	}
	return rc, nil
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error {
	return r.close()
}

func decompress(ext string, f *os.File) (io.ReadCloser, error) {
	switch ext {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		return readCloser{zr, func() error {
			zr.Close()
			return f.Close()
		}}, nil
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		return readCloser{zr, func() error {
			zr.Close()
			return f.Close()
		}}, nil
	case ".lz4":
		return readCloser{lz4.NewReader(f), f.Close}, nil
	case ".br":
		return readCloser{brotli.NewReader(f), f.Close}, nil
	default:
		return f, nil
	}
}
