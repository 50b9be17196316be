package hashing

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const boxHeaderSize = 8

// excludedBoxes carry per-download metadata (timestamps, encoder tags,
// padding) that changes between re-issues of the same footage.
var excludedBoxes = map[string]bool{
	"moov": true,
	"free": true,
	"skip": true,
	"meta": true,
	"udta": true,
}

// ebmlMagic starts Matroska and WebM files, which are not box structured
var ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

// tsSyncByte starts every 188 byte MPEG-TS packet
const tsSyncByte = 0x47

// isExcludedBox reports whether a box type is left out of the video hash
func isExcludedBox(boxType string) bool {
	return excludedBoxes[boxType]
}

// videoHash digests every top-level box except the excluded ones. A box
// that claims more bytes than remain ends the walk; whatever was hashed up
// to that point is the result.
func (h *Hasher) videoHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat file: %w", err)
	}
	fileSize := info.Size()

	d := h.newDigest()
	var (
		pos    int64
		header [16]byte
	)

	for pos < fileSize {
		if _, err := io.ReadFull(f, header[:boxHeaderSize]); err != nil {
			if pos == 0 {
				return "", ErrNotContainer
			}
			break
		}

		size := int64(binary.BigEndian.Uint32(header[0:4]))
		boxType := string(header[4:8])
		headerLen := int64(boxHeaderSize)

		if pos == 0 && !validBoxType(header[4:8]) {
			if bytes.HasPrefix(header[:4], ebmlMagic) || header[0] == tsSyncByte {
				return h.fileDigest(path)
			}
			return "", ErrNotContainer
		}

		switch {
		case size == 0:
			// box runs to end of file
			size = fileSize - pos
		case size == 1:
			// 64-bit size follows the type
			if _, err := io.ReadFull(f, header[8:16]); err != nil {
				return encode(d), nil
			}
			size = int64(binary.BigEndian.Uint64(header[8:16]))
			headerLen = 16
		}

		if size < headerLen || size > fileSize-pos {
			break
		}

		contentLen := size - headerLen
		if isExcludedBox(boxType) {
			if _, err := f.Seek(contentLen, io.SeekCurrent); err != nil {
				return "", fmt.Errorf("failed to skip %s box: %w", boxType, err)
			}
		} else {
			d.Write(header[:headerLen])
			if _, err := io.CopyN(d, f, contentLen); err != nil {
				return "", fmt.Errorf("failed to read %s box: %w", boxType, err)
			}
		}

		pos += size
	}

	return encode(d), nil
}

func validBoxType(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7E {
			return false
		}
	}
	return true
}
