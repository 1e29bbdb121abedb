package todo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Format is a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrFileNotFound is returned by LoadFile when the document does not exist.
var ErrFileNotFound = errors.New("document file not found")

var errInvalidUTF8 = errors.New("text is not valid UTF-8")

// Entry is one task in a document.
type Entry struct {
	Description string `json:"description" yaml:"description"`
	Completed   bool   `json:"completed" yaml:"completed"`
}

// Document is an ordered list of entries.
type Document []Entry

// FormatFromPath picks YAML for .yaml and .yml files and JSON otherwise.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ParseFormat parses a format name.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown document format %q", name)
	}
}

// Encode writes the document with 2-space indentation and a trailing newline.
func (d Document) Encode(w io.Writer, format Format) error {
	if d == nil {
		d = Document{}
	}

	var data []byte
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("marshal document: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("marshal document: %w", err)
		}
		data = buf.Bytes()
	case FormatJSON, "":
		out, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal document: %w", err)
		}
		data = append(out, '\n')
	default:
		return fmt.Errorf("unknown document format %q", format)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

// Decode parses and validates a document.
func Decode(r io.Reader, format Format) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	raw, err := toJSON(data, format)
	if err != nil {
		return nil, err
	}
	if err := checkUTF8(raw); err != nil {
		return nil, err
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if result := Validate(generic); !result.Valid {
		return nil, result.Err()
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// checkUTF8 rejects documents containing bytes that are not valid UTF-8.
// encoding/json would silently replace them with U+FFFD. The error carries the
// path of the first offending field of each bad entry when one can be located.
func checkUTF8(raw []byte) error {
	if utf8.Valid(raw) {
		return nil
	}

	result := &ValidationResult{}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err == nil {
		for i, entry := range entries {
			if utf8.Valid(entry) {
				continue
			}
			path := fmt.Sprintf("[%d]", i)
			var fields map[string]json.RawMessage
			if json.Unmarshal(entry, &fields) == nil {
				for _, key := range slices.Sorted(maps.Keys(fields)) {
					if !utf8.Valid(fields[key]) {
						path += "." + key
						break
					}
				}
			}
			result.Errors = append(result.Errors, &ValidationError{Path: path, Err: errInvalidUTF8})
		}
	}
	if len(result.Errors) == 0 {
		result.Errors = append(result.Errors, &ValidationError{Err: errInvalidUTF8})
	}
	return result.Err()
}

// toJSON normalizes the input to JSON so validation sees one set of types.
func toJSON(data []byte, format Format) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return data, nil
	case FormatYAML:
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("parse document: %w", err)
		}
		out, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("parse document: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown document format %q", format)
	}
}

// LoadFile reads and decodes the document at path. The format follows the
// file extension.
func LoadFile(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	return Decode(f, FormatFromPath(path))
}

// SaveFile writes the document to path, choosing the format from the extension.
func (d Document) SaveFile(path string) error {
	var buf bytes.Buffer
	if err := d.Encode(&buf, FormatFromPath(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write document file: %w", err)
	}
	return nil
}
