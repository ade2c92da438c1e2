package submission

import (
	"bytes"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-forms/model"
)

// ListSeparator joins list values wherever they are shown as one string, on screen and in exports.
const ListSeparator = ", "

type Kind uint8

const (
	KindScalar Kind = iota
	KindList
)

func (k Kind) String() string {
	if k == KindList {
		return "list"
	}
	return "scalar"
}

// Value is either a single string or an ordered list of strings.
// The zero Value is the empty scalar.
type Value struct {
	list  bool
	text  string
	items []string
}

func Scalar(s string) Value {
	return Value{text: s}
}

// List copies items into a list value. A list with no items is still a list, never a missing value.
func List(items ...string) Value {
	v := Value{list: true, items: make([]string, len(items))}
	copy(v.items, items)
	return v
}

func (v Value) Kind() Kind {
	if v.list {
		return KindList
	}
	return KindScalar
}

// Text returns the scalar string, or "" for lists.
func (v Value) Text() string {
	return v.text
}

// Items returns a copy of the list items, or nil for scalars.
func (v Value) Items() []string {
	if !v.list {
		return nil
	}
	items := make([]string, len(v.items))
	copy(items, v.items)
	return items
}

// Empty reports whether the value carries no content: "" or a list with no items.
func (v Value) Empty() bool {
	if v.list {
		return len(v.items) == 0
	}
	return strings.TrimSpace(v.text) == ""
}

// Display renders the value as one string, lists are joined with ListSeparator.
func (v Value) Display() string {
	if v.list {
		return strings.Join(v.items, ListSeparator)
	}
	return v.text
}

func (v Value) Equal(o Value) bool {
	if v.list != o.list {
		return false
	}
	if !v.list {
		return v.text == o.text
	}
	if len(v.items) != len(o.items) {
		return false
	}
	for i := range v.items {
		if v.items[i] != o.items[i] {
			return false
		}
	}
	return true
}

func (v Value) String() string {
	if v.list {
		return "[" + strings.Join(v.items, ",") + "]"
	}
	return v.text
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.list {
		return json.Marshal(v.items)
	}
	return json.Marshal(v.text)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.Wrap(model.ErrMalformedDocument, "empty value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(model.ErrMalformedDocument, err.Error())
		}
		*v = Scalar(s)
		return nil

	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return errors.Wrap(model.ErrMalformedDocument, err.Error())
		}
		items := make([]string, len(raw))
		for i, r := range raw {
			r = bytes.TrimSpace(r)
			if len(r) == 0 || r[0] != '"' {
				return errors.Wrapf(model.ErrMalformedDocument, "list item %d is not a string", i)
			}
			if err := json.Unmarshal(r, &items[i]); err != nil {
				return errors.Wrap(model.ErrMalformedDocument, err.Error())
			}
		}
		*v = Value{list: true, items: items}
		return nil
	}

	return errors.Wrapf(model.ErrMalformedDocument, "value %.20s is neither a string nor a list of strings", data)
}
