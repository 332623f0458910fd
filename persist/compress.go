package persist

// compress.go implements the "compressed" feature flag: the bytes from
// end-of-header to end-of-resources are wrapped in a zstd block stream.

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

func newZstdWriter(w io.Writer) (*zstd.Encoder, error) {
	return zstd.NewWriter(w)
}

func newZstdReader(r io.Reader) (*zstd.Decoder, error) {
	return zstd.NewReader(r)
}
