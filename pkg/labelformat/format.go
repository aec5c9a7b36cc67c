package labelformat

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

type Format string

const (
	FormatBTD   Format = "btd"   // Native binary snapshot
	FormatBB    Format = "bb"    // Frame-indexed text list
	FormatViper Format = "viper" // ViPER XML
)

var AllFormats = []Format{FormatBTD, FormatBB, FormatViper}

// Extension returns the conventional file extension, including the dot
func (f Format) Extension() string {
	switch f {
	case FormatBTD:
		return ".btd"
	case FormatBB:
		return ".bb"
	case FormatViper:
		return ".xml"
	}
	return ""
}

func (f Format) ContentType() string {
	switch f {
	case FormatBTD:
		return "application/octet-stream"
	case FormatBB:
		return "text/plain"
	case FormatViper:
		return "application/xml"
	}
	return "application/octet-stream"
}

// ParseFormat accepts a format name, or a file extension with or without the dot
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "btd":
		return FormatBTD, nil
	case "bb":
		return FormatBB, nil
	case "viper", "xml":
		return FormatViper, nil
	}
	return "", fmt.Errorf("%w '%v'", ErrUnknownFormat, s)
}

// FromFilename determines the format from the file extension
func FromFilename(filename string) (Format, error) {
	ext := filepath.Ext(filename)
	if ext == "" {
		return "", fmt.Errorf("%w: '%v' has no extension", ErrUnknownFormat, filename)
	}
	return ParseFormat(ext)
}

// Sniff guesses the format from the first few bytes of a file.
// XML starts with '<', and BB starts with a digit.
func Sniff(head []byte) (Format, error) {
	if bytes.HasPrefix(head, []byte("BTD")) {
		return FormatBTD, nil
	}
	trimmed := bytes.TrimLeft(head, " \t\r\n\xef\xbb\xbf")
	if len(trimmed) == 0 {
		return "", fmt.Errorf("%w: empty file", ErrUnknownFormat)
	}
	if trimmed[0] == '<' {
		return FormatViper, nil
	}
	if trimmed[0] >= '0' && trimmed[0] <= '9' {
		return FormatBB, nil
	}
	return "", ErrUnknownFormat
}

// Detect uses the file extension if it is recognized, and otherwise sniffs the content
func Detect(filename string, head []byte) (Format, error) {
	if f, err := FromFilename(filename); err == nil {
		return f, nil
	}
	return Sniff(head)
}
