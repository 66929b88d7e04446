package rule

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultMaxFileBytes is the §4.5 default per-file size limit (1 MiB).
	DefaultMaxFileBytes = 1 << 20
	// DefaultMaxIdentifiers is the §4.5 default per-directory identifier
	// budget (10,000).
	DefaultMaxIdentifiers = 10000
)

// LoaderOptions configures the resource limits §4.5 requires.
type LoaderOptions struct {
	MaxFileBytes   int64
	MaxIdentifiers int
}

// DefaultLoaderOptions returns the §4.5 defaults.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{MaxFileBytes: DefaultMaxFileBytes, MaxIdentifiers: DefaultMaxIdentifiers}
}

// FileTooLargeError is raised when a rule file exceeds MaxFileBytes.
type FileTooLargeError struct {
	Path string
	Size int64
	Max  int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("rule file %s is %d bytes, exceeds limit of %d", e.Path, e.Size, e.Max)
}

// TooManyIdentifiersError is raised when a loaded set of documents would
// push the running identifier count over MaxIdentifiers.
type TooManyIdentifiersError struct {
	Path  string
	Count int
	Max   int
}

func (e *TooManyIdentifiersError) Error() string {
	return fmt.Sprintf("rule file %s pushes identifier count to %d, exceeds limit of %d", e.Path, e.Count, e.Max)
}

// YAMLParseError wraps a yaml.v3 decode failure with the offending path.
type YAMLParseError struct {
	Path string
	Err  error
}

func (e *YAMLParseError) Error() string { return fmt.Sprintf("parse %s: %v", e.Path, e.Err) }
func (e *YAMLParseError) Unwrap() error { return e.Err }

// LoadFile parses path's bytes into one Rule per YAML document (§4.5:
// multi-document files are multipart rules sharing a source path).
// runningIdentifiers is the identifier count already accumulated for the
// directory this file belongs to, used to enforce MaxIdentifiers across
// the whole load rather than per file.
func LoadFile(path string, data []byte, opts LoaderOptions, runningIdentifiers int) ([]*Rule, error) {
	if opts.MaxFileBytes > 0 && int64(len(data)) > opts.MaxFileBytes {
		return nil, &FileTooLargeError{Path: path, Size: int64(len(data)), Max: opts.MaxFileBytes}
	}

	var rules []*Rule
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var r Rule
		if err := dec.Decode(&r); err != nil {
			if err == io.EOF {
				break
			}
			return nil, &YAMLParseError{Path: path, Err: err}
		}
		r.SourcePath = path
		rules = append(rules, &r)

		runningIdentifiers += len(r.Identifiers())
		if opts.MaxIdentifiers > 0 && runningIdentifiers > opts.MaxIdentifiers {
			return nil, &TooManyIdentifiersError{Path: path, Count: runningIdentifiers, Max: opts.MaxIdentifiers}
		}
	}

	if len(rules) == 0 {
		return nil, &YAMLParseError{Path: path, Err: fmt.Errorf("document contains no rules")}
	}
	return rules, nil
}
