// Package digest computes the truncated content fingerprint embedded in
// converted files. The digest detects accidental corruption and relocation
// bugs, not tampering; any fixed-width hash works as long as both
// conversion directions agree on it.
package digest

import (
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
)

const (
	// Size of the truncated fingerprint in bytes: the first 128 bits of
	// the BLAKE2b-512 sum, interpreted as a big-endian integer.
	Size = 16

	// chunkSize is the read granularity when streaming a file.
	chunkSize = 1024
)

// Sum streams r through BLAKE2b-512 in 1 KiB chunks and returns the
// truncated fingerprint.
func Sum(r io.Reader) ([Size]byte, error) {
	var fp [Size]byte

	h, err := blake2b.New512(nil)
	if err != nil {
		return fp, fmt.Errorf("init hash: %w", err)
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fp, fmt.Errorf("hash contents: %w", err)
		}
	}

	copy(fp[:], h.Sum(nil))
	return fp, nil
}

// Format returns the canonical hex form used in logs and inspect output.
func Format(fp [Size]byte) string {
	return hex.EncodeToString(fp[:])
}
