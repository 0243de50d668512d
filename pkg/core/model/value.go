package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ValueKind identifies which variant a Value holds
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueText
	ValueList
	ValueFiles
)

func (k ValueKind) String() string {
	switch k {
	case ValueNull:
		return "null"
	case ValueText:
		return "text"
	case ValueList:
		return "list"
	case ValueFiles:
		return "files"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

// FileRef is an uploaded file attached to an answer
type FileRef struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Value is the answer to a question. Exactly one variant is meaningful, selected by Kind.
// Text is a pointer because the text variant carries an optional string.
type Value struct {
	Kind  ValueKind
	Text  *string
	List  []string
	Files []FileRef
}

// NullValue returns the null variant
func NullValue() Value {
	return Value{Kind: ValueNull}
}

// TextValue returns the text variant holding s
func TextValue(s string) Value {
	return Value{Kind: ValueText, Text: &s}
}

// ListValue returns the string-list variant
func ListValue(items ...string) Value {
	if items == nil {
		items = []string{}
	}
	return Value{Kind: ValueList, List: items}
}

// FilesValue returns the file-list variant
func FilesValue(files ...FileRef) Value {
	if files == nil {
		files = []FileRef{}
	}
	return Value{Kind: ValueFiles, Files: files}
}

// String renders the value as display text. Lists are comma-joined and files render their names.
func (v Value) String() string {
	switch v.Kind {
	case ValueText:
		if v.Text == nil {
			return ""
		}
		return *v.Text
	case ValueList:
		return strings.Join(v.List, ", ")
	case ValueFiles:
		names := make([]string, len(v.Files))
		for i, f := range v.Files {
			names[i] = f.Filename
		}
		return strings.Join(names, ", ")
	default:
		return ""
	}
}

// MarshalJSON encodes the value in the same shape it is decoded from
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueNull:
		return []byte("null"), nil
	case ValueText:
		if v.Text == nil {
			return []byte("null"), nil
		}
		return json.Marshal(*v.Text)
	case ValueList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	case ValueFiles:
		if v.Files == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.Files)
	default:
		return nil, fmt.Errorf("cannot marshal value of unknown kind %d", int(v.Kind))
	}
}

// UnmarshalJSON decodes a value trying, in order: null, file list, string list, string.
// A list of strings and a list of files are both JSON arrays, so the file shape has to be tried first.
// Anything else is rejected with a DecodeError rather than coerced.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)

	if bytes.Equal(trimmed, []byte("null")) {
		*v = NullValue()
		return nil
	}

	if files, ok := decodeFiles(trimmed); ok {
		*v = FilesValue(files...)
		return nil
	}

	if list, ok := decodeStrings(trimmed); ok {
		*v = ListValue(list...)
		return nil
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		*v = TextValue(text)
		return nil
	}

	return &DecodeError{
		Msg: "value is not null, a file list, a string list or a string",
		Raw: string(data),
	}
}

// decodeFiles succeeds only if every element is an object carrying string url and filename keys
func decodeFiles(data []byte) ([]FileRef, bool) {
	var raw []struct {
		URL      *string `json:"url"`
		Filename *string `json:"filename"`
	}
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil, false
	}

	files := make([]FileRef, 0, len(raw))
	for _, r := range raw {
		if r.URL == nil || r.Filename == nil {
			return nil, false
		}
		files = append(files, FileRef{URL: *r.URL, Filename: *r.Filename})
	}
	return files, true
}

// decodeStrings succeeds only if every element is a string. A null element is not a string.
func decodeStrings(data []byte) ([]string, bool) {
	var raw []*string
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil, false
	}

	list := make([]string, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			return nil, false
		}
		list = append(list, *r)
	}
	return list, true
}
