package model

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
)

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type Form struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Fields    []Field   `json:"fields"`
}

// Labels returns the field labels in schema order.
func (f Form) Labels() []string {
	labels := make([]string, len(f.Fields))
	for i, field := range f.Fields {
		labels[i] = field.Label
	}
	return labels
}

type Field struct {
	ID       int64     `json:"id"`
	FormID   int64     `json:"-"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Options  Options   `json:"options,omitempty"`
	Required bool      `json:"required"`
}

type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
	FieldCheckbox FieldType = "checkbox"
	FieldRadio    FieldType = "radio"
	FieldSelect   FieldType = "select"
)

// Multi reports whether values of this type are an ordered list instead of a single string.
func (t FieldType) Multi() bool {
	return t == FieldCheckbox
}

// Choice reports whether this type picks from a fixed option set.
func (t FieldType) Choice() bool {
	switch t {
	case FieldCheckbox, FieldRadio, FieldSelect:
		return true
	}
	return false
}

// FieldSpec describes one field to create or, when ID is set, an existing field to keep and update.
type FieldSpec struct {
	ID       int64     `json:"id,omitempty"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Options  Options   `json:"options,omitempty"`
	Required bool      `json:"required"`
}

// Normalize trims the label, defaults an empty type to text and drops options on types that take none.
func (s FieldSpec) Normalize() FieldSpec {
	s.Label = strings.TrimSpace(s.Label)
	s.Type = FieldType(strings.ToLower(strings.TrimSpace(string(s.Type))))
	if s.Type == "" {
		s.Type = FieldText
	}
	if s.Type.Choice() {
		s.Options = s.Options.clean()
	} else {
		s.Options = nil
	}
	return s
}

// Options is the ordered choice list of a field.
// It unmarshals from a JSON array or from a comma separated string.
type Options []string

func (o *Options) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*o = list
		return nil
	}

	var csv *string
	if err := json.Unmarshal(data, &csv); err != nil {
		return err
	}
	if csv == nil {
		*o = nil
		return nil
	}
	*o = strings.Split(*csv, ",")
	return nil
}

func (o Options) clean() Options {
	var out Options
	for _, opt := range o {
		opt = strings.TrimSpace(opt)
		if opt != "" {
			out = append(out, opt)
		}
	}
	return out
}
