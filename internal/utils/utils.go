package utils

import (
	"encoding/hex"
	"strings"

	"github.com/go-faster/errors"
)

func CToGoString(c []byte) string {
	n := -1
	for i, b := range c {
		if b == 0 {
			break
		}
		n = i
	}
	return string(c[:n+1])
}

// HexDumpToBytes converts the output of hex.Dump (or `hexdump -C`) back into bytes.
func HexDumpToBytes(hexDump string) ([]byte, error) {
	lines := strings.Split(hexDump, "\n")
	var hexString string
	for _, line := range lines {
		// Find the hex portion of each line and concatenate it
		if i := strings.Index(line, "|"); i >= 10 {
			hexString += strings.TrimSpace(line[10:i])
		}
	}

	// Remove spaces and split the concatenated hex string into bytes
	hexString = strings.ReplaceAll(hexString, " ", "")
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return nil, errors.Wrap(err, "decode hex dump")
	}

	return decoded, nil
}

// ParseHex accepts bytes written as "160301", "16 03 01", "0x16,0x03,0x01" or a hex dump.
func ParseHex(s string) ([]byte, error) {
	if strings.Contains(s, "|") {
		return HexDumpToBytes(s)
	}

	s = strings.ReplaceAll(s, "0x", "")
	s = strings.ReplaceAll(s, "0X", "")
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', ',', ':', '\n', '\t', '\r':
			return -1
		}
		return r
	}, s)

	decoded, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode hex")
	}

	return decoded, nil
}
