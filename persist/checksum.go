package persist

// checksum.go computes the footer's fast non-cryptographic hash over the
// bytes from start-of-header through end-of-resources.

import (
	"io"

	"github.com/cespare/xxhash/v2"
)

// checksumAlgo identifies the footer's checksum algorithm; only one is
// defined today, but the field exists so a future algorithm can be added
// without breaking the format.
const checksumAlgoXXH64 uint32 = 1

// payloadChecksum hashes the footer checksum's domain: the 64-byte header
// followed by the uncompressed body (type registry through resources).
// Save hashes the body before compression and Load hashes it after
// decompression, so the digest is identical whether or not the stream was
// compressed on disk.
func payloadChecksum(headerBytes, body []byte) uint64 {
	d := xxhash.New()
	d.Write(headerBytes)
	d.Write(body)
	return d.Sum64()
}

// countingWriter tracks how many bytes actually reached the underlying
// writer, so the footer's total-size field and the bytes-written metric can
// reflect the on-disk (possibly compressed) size rather than the payload
// size.
type countingWriter struct {
	w io.Writer
	n int64
}

func newCountingWriter(w io.Writer) *countingWriter {
	return &countingWriter{w: w}
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func (c *countingWriter) BytesWritten() int64 { return c.n }
