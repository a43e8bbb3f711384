package wasifs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/fxamacker/cbor/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Record is the serialized form of a Source, as found in configuration
// files and in messages handed to a runtime worker.
type Record struct {
	Type       SourceType        `json:"type" yaml:"type" cbor:"type"`
	Data       []byte            `json:"data,omitempty" yaml:"data,omitempty" cbor:"data,omitempty"`
	ZipFile    string            `json:"zipfile,omitempty" yaml:"zipfile,omitempty" cbor:"zipfile,omitempty"`
	ZipURL     string            `json:"zipurl,omitempty" yaml:"zipurl,omitempty" cbor:"zipurl,omitempty"`
	MountPoint string            `json:"mountpoint,omitempty" yaml:"mountpoint,omitempty" cbor:"mountpoint,omitempty"`
	Contents   map[string]string `json:"contents,omitempty" yaml:"contents,omitempty" cbor:"contents,omitempty"`

	// Files holds memory contents that are not valid UTF-8. It is encoded
	// as base64 in JSON and as byte strings in CBOR. An entry here replaces
	// the same path in Contents.
	Files map[string][]byte `json:"files,omitempty" yaml:"files,omitempty" cbor:"files,omitempty"`
}

// Core deterministic encoding: the same source list always produces the
// same bytes.
var cborEncMode cbor.EncMode

func init() {
	var err error
	cborEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("wasifs: CBOR encoder initialization failed: " + err.Error())
	}
}

// RecordOf returns the record describing src.
func RecordOf(src Source) (Record, error) {
	switch s := deref(src).(type) {
	case Native:
		return Record{Type: TypeNative}, nil
	case Device:
		return Record{Type: TypeDevice}, nil
	case Archive:
		return Record{Type: TypeArchive, Data: s.Data, MountPoint: s.MountPoint}, nil
	case ArchiveFile:
		return Record{Type: TypeArchiveFile, ZipFile: s.Path, MountPoint: s.MountPoint}, nil
	case ArchiveURL:
		return Record{Type: TypeArchiveURL, ZipURL: s.URL, MountPoint: s.MountPoint}, nil
	case Memory:
		r := Record{Type: TypeMemory}
		for name, data := range s.Contents {
			if utf8.Valid(data) {
				if r.Contents == nil {
					r.Contents = make(map[string]string)
				}
				r.Contents[name] = string(data)
				continue
			}
			if r.Files == nil {
				r.Files = make(map[string][]byte)
			}
			r.Files[name] = data
		}
		return r, nil
	}
	return Record{}, &SpecError{Source: src, Reason: "unrecognized source"}
}

// Source returns the source r describes. An unknown type is a *SpecError.
func (r Record) Source() (Source, error) {
	switch r.Type {
	case TypeNative:
		return Native{}, nil
	case TypeDevice:
		return Device{}, nil
	case TypeArchive:
		return Archive{Data: r.Data, MountPoint: r.MountPoint}, nil
	case TypeArchiveFile:
		return ArchiveFile{Path: r.ZipFile, MountPoint: r.MountPoint}, nil
	case TypeArchiveURL:
		return ArchiveURL{URL: r.ZipURL, MountPoint: r.MountPoint}, nil
	case TypeMemory:
		if len(r.Files) == 0 {
			return Memory{Contents: StringContents(r.Contents)}, nil
		}
		contents := make(map[string][]byte, len(r.Contents)+len(r.Files))
		for name, data := range r.Contents {
			contents[name] = []byte(data)
		}
		for name, data := range r.Files {
			contents[name] = data
		}
		return Memory{Contents: contents}, nil
	}
	return nil, &SpecError{Source: r, Reason: fmt.Sprintf("type %q", r.Type)}
}

// ParseSources decodes a list of source records. Input starting with '['
// or '{' is read as JSON, with comments and trailing commas allowed; a
// single object is a one-element list. Anything else is read as YAML.
func ParseSources(data []byte) ([]Source, error) {
	var records []Record

	trimmed := bytes.TrimSpace(jsonc.ToJSON(data))
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("parse sources: %w", err)
		}
	case len(trimmed) > 0 && trimmed[0] == '{':
		var r Record
		if err := json.Unmarshal(trimmed, &r); err != nil {
			return nil, fmt.Errorf("parse sources: %w", err)
		}
		records = []Record{r}
	default:
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse sources: %w", err)
		}
	}

	return fromRecords(records)
}

// MarshalSources encodes sources as a CBOR array of records.
func MarshalSources(sources []Source) ([]byte, error) {
	records, err := toRecords(sources)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(records)
}

// UnmarshalSourcesCBOR decodes the output of MarshalSources.
func UnmarshalSourcesCBOR(data []byte) ([]Source, error) {
	var records []Record
	if err := cbor.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}
	return fromRecords(records)
}

func toRecords(sources []Source) ([]Record, error) {
	records := make([]Record, len(sources))
	for i, src := range sources {
		r, err := RecordOf(src)
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		records[i] = r
	}
	return records, nil
}

func fromRecords(records []Record) ([]Source, error) {
	sources := make([]Source, len(records))
	for i, r := range records {
		src, err := r.Source()
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		sources[i] = src
	}
	return sources, nil
}
