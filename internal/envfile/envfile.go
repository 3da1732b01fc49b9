// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package envfile detects and repairs .env files that dotenv parsers
// cannot read: UTF-16 files, as some Windows editors save them, and UTF-8
// files with a byte order mark.
package envfile

import (
	"bytes"
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/samber/oops"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// SecretKey is the variable Inspect looks up after checking the encoding.
const SecretKey = "JWT_SECRET"

// Encoding is the detected text encoding of a .env file.
type Encoding int

// Detected encodings.
const (
	UTF8 Encoding = iota
	UTF8BOM
	UTF16LE
	UTF16BE
)

func (e Encoding) String() string {
	switch e {
	case UTF8:
		return "UTF-8"
	case UTF8BOM:
		return "UTF-8 with BOM"
	case UTF16LE:
		return "UTF-16LE"
	case UTF16BE:
		return "UTF-16BE"
	default:
		return "unknown"
	}
}

// NeedsFix reports whether dotenv parsers would misread the encoding.
func (e Encoding) NeedsFix() bool {
	return e != UTF8
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Detect classifies data. UTF-16 is recognized by its byte order mark or,
// without one, by NUL bytes; a leading NUL means big-endian, otherwise
// little-endian.
func Detect(data []byte) Encoding {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return UTF8BOM
	case bytes.HasPrefix(data, bomUTF16LE):
		return UTF16LE
	case bytes.HasPrefix(data, bomUTF16BE):
		return UTF16BE
	case bytes.IndexByte(data, 0) >= 0:
		if len(data) >= 2 && data[0] == 0 && data[1] != 0 {
			return UTF16BE
		}
		return UTF16LE
	default:
		return UTF8
	}
}

// Normalize returns data as UTF-8 without a byte order mark.
func Normalize(data []byte) ([]byte, Encoding, error) {
	enc := Detect(data)

	var decoder *encoding.Decoder
	switch enc {
	case UTF8:
		return data, enc, nil
	case UTF8BOM:
		decoder = unicode.UTF8BOM.NewDecoder()
	case UTF16LE:
		decoder = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	case UTF16BE:
		decoder = unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
	}

	out, err := decoder.Bytes(data)
	if err != nil {
		return nil, enc, oops.Code("ENVFILE_DECODE_FAILED").With("encoding", enc.String()).Wrap(err)
	}
	return out, enc, nil
}

// Secret describes SecretKey in a parsed file. The value itself is never kept.
type Secret struct {
	Checked bool
	Set     bool
	Length  int
}

// Report is the result of Inspect.
type Report struct {
	Path     string
	Encoding Encoding
	Fixed    bool
	Secret   Secret
}

// Inspect reads the .env file at path and reports its encoding. When fix is
// set and the encoding needs fixing, the file is rewritten as plain UTF-8 in
// place. The secret is looked up only once the file is readable as UTF-8.
func Inspect(path string, fix bool) (*Report, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Code("ENVFILE_NOT_FOUND").With("path", path).Errorf(".env file not found: %s", path)
		}
		return nil, oops.Code("ENVFILE_READ_FAILED").With("path", path).Wrap(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code("ENVFILE_READ_FAILED").With("path", path).Wrap(err)
	}

	report := &Report{Path: path, Encoding: Detect(data)}
	if report.Encoding.NeedsFix() {
		if !fix {
			return report, nil
		}
		normalized, _, err := Normalize(data)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, normalized, info.Mode().Perm()); err != nil {
			return nil, oops.Code("ENVFILE_WRITE_FAILED").With("path", path).Wrap(err)
		}
		report.Fixed = true
		data = normalized
	}

	secret, err := lookupSecret(data)
	if err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	report.Secret = secret
	return report, nil
}

func lookupSecret(data []byte) (Secret, error) {
	vars, err := godotenv.Parse(bytes.NewReader(data))
	if err != nil {
		return Secret{}, oops.Code("ENVFILE_PARSE_FAILED").Wrap(err)
	}
	value, ok := vars[SecretKey]
	return Secret{Checked: true, Set: ok && value != "", Length: len(value)}, nil
}
