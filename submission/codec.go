// Package submission turns raw form input into label keyed documents, persists
// them and reads them back.
package submission

import (
	"bytes"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-forms/model"
)

// Document maps field labels to submitted values.
type Document map[string]Value

func (d Document) Equal(o Document) bool {
	if len(d) != len(o) {
		return false
	}
	for label, v := range d {
		ov, ok := o[label]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Input is raw form input keyed by label. Repeated keys carry several values, like url.Values.
type Input map[string][]string

// UnmarshalJSON accepts an object whose members are strings, lists of strings, numbers, booleans or null.
// Null members are left out.
func (in *Input) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(model.ErrInvalidInput, err.Error())
	}

	out := make(Input, len(raw))
	for key, r := range raw {
		r = bytes.TrimSpace(r)
		switch {
		case bytes.Equal(r, []byte("null")):
			continue
		case len(r) > 0 && (r[0] == '"' || r[0] == '['):
			var v Value
			if err := v.UnmarshalJSON(r); err != nil {
				return errors.Wrapf(model.ErrInvalidInput, "%q: %s", key, err)
			}
			if v.Kind() == KindList {
				out[key] = v.Items()
			} else {
				out[key] = []string{v.Text()}
			}
		case json.Valid(r) && !bytes.HasPrefix(r, []byte("{")):
			// numbers and booleans keep their literal spelling
			out[key] = []string{string(r)}
		default:
			return errors.Wrapf(model.ErrInvalidInput, "%q: unsupported value", key)
		}
	}
	*in = out
	return nil
}

// Policy holds the optional submission checks. The zero value accepts any input.
type Policy struct {
	// EnforceRequired rejects required fields left empty.
	EnforceRequired bool
	// EnforceTypes rejects number fields that are not numbers and date fields that are not YYYY-MM-DD.
	EnforceTypes bool
}

const DateLayout = "2006-01-02"

type Codec struct {
	Policy Policy
}

func NewCodec(policy Policy) Codec {
	return Codec{Policy: policy}
}

// Build projects raw input onto the form's fields, in schema order.
//
// Checkbox fields take every submitted value as a list, possibly empty. Other
// fields take the first submitted value, or "" when nothing was submitted.
// Input keys that are not field labels are dropped. Values that are not valid
// UTF-8 fail with ErrInvalidInput, they could not be stored as written.
func (c Codec) Build(fields []model.Field, in Input) (Document, error) {
	doc := make(Document, len(fields))
	for _, f := range fields {
		values := in[f.Label]
		for _, v := range values {
			if !utf8.ValidString(v) {
				return nil, errors.Wrapf(model.ErrInvalidInput, "%q is not valid UTF-8", f.Label)
			}
		}
		if f.Type.Multi() {
			doc[f.Label] = List(values...)
			continue
		}
		if len(values) > 0 {
			doc[f.Label] = Scalar(values[0])
		} else {
			doc[f.Label] = Scalar("")
		}
	}

	if err := Check(fields, doc, c.Policy); err != nil {
		return nil, err
	}
	return doc, nil
}

// Encode builds the document and serializes it.
func (c Codec) Encode(fields []model.Field, in Input) (string, error) {
	doc, err := c.Build(fields, in)
	if err != nil {
		return "", err
	}
	return Marshal(doc)
}

// Check lists every policy violation of doc against fields as one ErrValidation.
func Check(fields []model.Field, doc Document, policy Policy) error {
	var merr *multierror.Error
	for _, f := range fields {
		v := doc[f.Label]
		if v.Empty() {
			if policy.EnforceRequired && f.Required {
				merr = multierror.Append(merr, errors.Errorf("%q is required", f.Label))
			}
			continue
		}
		if !policy.EnforceTypes {
			continue
		}

		switch f.Type {
		case model.FieldNumber:
			if _, err := strconv.ParseFloat(v.Text(), 64); err != nil {
				merr = multierror.Append(merr, errors.Errorf("%q is not a number", f.Label))
			}
		case model.FieldDate:
			if _, err := time.Parse(DateLayout, v.Text()); err != nil {
				merr = multierror.Append(merr, errors.Errorf("%q is not a date (YYYY-MM-DD)", f.Label))
			}
		}
	}
	return model.Problems(merr)
}

// Marshal serializes a document as a JSON object. Keys come out sorted, so equal documents give equal text.
// Labels or values that are not valid UTF-8 fail with ErrInvalidInput.
func Marshal(doc Document) (string, error) {
	if doc == nil {
		doc = Document{}
	}
	for label, v := range doc {
		if !utf8.ValidString(label) {
			return "", errors.Wrapf(model.ErrInvalidInput, "label %q is not valid UTF-8", label)
		}
		if !utf8.ValidString(v.text) {
			return "", errors.Wrapf(model.ErrInvalidInput, "%q is not valid UTF-8", label)
		}
		for _, item := range v.items {
			if !utf8.ValidString(item) {
				return "", errors.Wrapf(model.ErrInvalidInput, "%q is not valid UTF-8", label)
			}
		}
	}
	b, err := json.Marshal(map[string]Value(doc))
	if err != nil {
		return "", errors.Wrap(err, "encode document")
	}
	return string(b), nil
}

// Decode parses a stored document. Anything but a JSON object of strings and
// string lists fails with ErrMalformedDocument.
func Decode(text string) (Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, errors.Wrap(model.ErrMalformedDocument, err.Error())
	}
	if raw == nil {
		return nil, errors.Wrap(model.ErrMalformedDocument, "document is not an object")
	}

	doc := make(Document, len(raw))
	for label, r := range raw {
		var v Value
		if err := v.UnmarshalJSON(r); err != nil {
			return nil, errors.Wrapf(err, "label %q", label)
		}
		doc[label] = v
	}
	return doc, nil
}
