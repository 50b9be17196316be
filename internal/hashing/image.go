package hashing

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/webp"
)

// imageHashSize is the edge of the grid the image is reduced to
const imageHashSize = 16

// imageHash computes a gradient-based perceptual hash: the image is reduced
// to a small grid and each bit records whether brightness rises between
// neighbouring cells. Recompressed copies of a picture usually collide.
func imageHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	return perceptualHash(img)
}

func perceptualHash(img image.Image) (string, error) {
	h, err := goimagehash.ExtDifferenceHash(img, imageHashSize, imageHashSize)
	if err != nil {
		return "", fmt.Errorf("failed to compute perceptual hash: %w", err)
	}

	words := h.GetHash()
	buf := make([]byte, 8*len(words))
	for i, w := range words {
		binary.BigEndian.PutUint64(buf[i*8:], w)
	}
	return hex.EncodeToString(buf), nil
}
