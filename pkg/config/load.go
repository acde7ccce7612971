package config

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Parse parses and validates met configuration text.
func Parse(src string) (*ConfigSet, error) {
	return NewParser(src).Parse()
}

// ParseReader reads r to the end and parses it. A leading UTF-8 or UTF-16
// byte order mark is removed and UTF-16 input is decoded.
func ParseReader(r io.Reader) (*ConfigSet, error) {
	src, err := ReadSource(r)
	if err != nil {
		return nil, err
	}
	return Parse(src)
}

// ReadSource reads configuration text from r with BOM handling applied.
func ReadSource(r io.Reader) (string, error) {
	tr := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	data, err := io.ReadAll(transform.NewReader(r, tr))
	if err != nil {
		return "", fmt.Errorf("read config: %w", err)
	}
	return string(data), nil
}

// ParseFile parses the configuration file at path. The file is closed before
// ParseFile returns. Errors are prefixed with the path.
func ParseFile(path string) (*ConfigSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cs, err := ParseReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cs, nil
}
