package export

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var bomUTF8 = []byte{0xEF, 0xBB, 0xBF}

// decode strips a UTF-8 BOM and converts the bytes to UTF-8. The legacy
// source emits UTF-8 in current installs but single-byte Windows-1252 in
// older ones, so invalid UTF-8 falls back to the 1252 table rather than
// failing the file.
func decode(data []byte) ([]byte, string) {
	data = bytes.TrimPrefix(data, bomUTF8)
	if utf8.Valid(data) {
		return data, "utf-8"
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		// The 1252 decoder accepts every byte; this path is unreachable,
		// but degrade to the raw bytes rather than dropping the file.
		return data, "utf-8"
	}
	return decoded, "windows-1252"
}

// DetectDelimiter samples the first few lines and returns the most frequent
// candidate delimiter. The legacy export is comma-delimited by default but
// some offices configure tab exports.
func DetectDelimiter(data []byte, sampleLines int) rune {
	lines := bytes.SplitN(data, []byte("\n"), sampleLines+1)
	if len(lines) > sampleLines {
		lines = lines[:sampleLines]
	}
	sample := bytes.Join(lines, []byte("\n"))

	best, bestCount := ',', 0
	for _, d := range []rune{',', '\t', ';', '|'} {
		if n := bytes.Count(sample, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
