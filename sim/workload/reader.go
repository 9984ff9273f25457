package workload

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic is the frame magic number that starts every zstd stream.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// closeChain closes a (de)compression layer and then the file beneath it.
type closeChain []func() error

func (cc closeChain) Close() error {
	var errs []error
	for _, c := range cc {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type traceReader struct {
	io.Reader
	closeChain
}

type traceWriter struct {
	io.Writer
	closeChain
}

// OpenTrace opens a trace file for reading. Files that start with the zstd
// frame magic are decompressed on the fly, whatever their extension.
func OpenTrace(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace: %w", err)
	}

	br := bufio.NewReader(file)
	head, err := br.Peek(len(zstdMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		_ = file.Close()
		return nil, fmt.Errorf("reading trace %s: %w", path, err)
	}
	if !bytes.Equal(head, zstdMagic) {
		return traceReader{Reader: br, closeChain: closeChain{file.Close}}, nil
	}

	decoder, err := zstd.NewReader(br)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	chain := closeChain{
		func() error { decoder.Close(); return nil },
		file.Close,
	}
	return traceReader{Reader: decoder, closeChain: chain}, nil
}

// IsCompressedPath reports whether path names a zstd file by extension.
func IsCompressedPath(path string) bool {
	return strings.HasSuffix(path, ".zst") || strings.HasSuffix(path, ".zstd")
}

// CreateTrace creates path for writing. Paths ending in .zst or .zstd are
// zstd-compressed; Close flushes the encoder before closing the file.
func CreateTrace(path string) (io.WriteCloser, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating trace file: %w", err)
	}
	if !IsCompressedPath(path) {
		return traceWriter{Writer: file, closeChain: closeChain{file.Close}}, nil
	}

	encoder, err := zstd.NewWriter(file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return traceWriter{Writer: encoder, closeChain: closeChain{encoder.Close, file.Close}}, nil
}
