package txtdoc

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Encoding names stored in the metadata blob.
const (
	EncodingUTF8        = "utf-8"
	EncodingWindows1252 = "windows-1252"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// sniffLen is how much of the file decides its encoding.
const sniffLen = 64 << 10

// detectEncoding inspects the start of a file. When the sample is only a
// prefix, a rune cut by its end does not count as invalid.
func detectEncoding(sample []byte, complete bool) string {
	sample = bytes.TrimPrefix(sample, utf8BOM)
	if !complete {
		for i := len(sample) - 1; i >= 0 && i >= len(sample)-utf8.UTFMax; i-- {
			if utf8.RuneStart(sample[i]) {
				if !utf8.FullRune(sample[i:]) {
					sample = sample[:i]
				}
				break
			}
		}
	}
	if utf8.Valid(sample) {
		return EncodingUTF8
	}
	return EncodingWindows1252
}

// decoder converts raw source bytes into text and maps text offsets back
// to source offsets.
type decoder struct {
	encoding string
}

func (d decoder) decode(raw []byte) string {
	if d.encoding == EncodingWindows1252 {
		s, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err == nil {
			return string(s)
		}
	}
	// Invalid UTF-8 stays as is so offsets keep matching the source.
	return string(raw)
}

// sourceOffset converts a byte offset in decoded line text into a byte
// offset in the raw line.
func (d decoder) sourceOffset(line string, off int) int {
	if d.encoding == EncodingWindows1252 {
		// One source byte per rune
		return utf8.RuneCountInString(line[:off])
	}
	return off
}

// splitLines splits decoded text into paragraphs, dropping line endings.
func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
