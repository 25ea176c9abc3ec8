package loader

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
)

var errBinary = errors.New("file looks binary")

// parseText decodes UTF-8, then GBK, then Latin-1, which never fails.
func parseText(data []byte) (string, int, error) {
	data = trimBOM(data)
	if looksBinary(data) {
		return "", 0, errBinary
	}
	if utf8.Valid(data) {
		return string(data), 0, nil
	}
	if s, err := simplifiedchinese.GBK.NewDecoder().Bytes(data); err == nil && !strings.ContainsRune(string(s), utf8.RuneError) {
		return string(s), 0, nil
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", 0, err
	}
	return string(s), 0, nil
}

func trimBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// looksBinary treats NUL bytes in the first 8KB as a binary file.
func looksBinary(data []byte) bool {
	n := min(len(data), 8<<10)
	for _, b := range data[:n] {
		if b == 0 {
			return true
		}
	}
	return false
}
