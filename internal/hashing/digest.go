package hashing

import (
	"fmt"
	"io"
	"os"
)

// chunkSize is the read size used when streaming files into a digest
const chunkSize = 32 * 1024

// fileDigest streams the whole file through the configured digest
func (h *Hasher) fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	d := h.newDigest()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(d, f, buf); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	return encode(d), nil
}
