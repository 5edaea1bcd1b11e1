// Package pdf wraps pdfcpu behind the small surface the document
// pipeline needs: introspecting a template's named form fields, filling
// them, flattening the result, and reducing file size before upload.
package pdf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/form"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// FieldKind is the tagged union of form field kinds we fill. The kind is
// resolved once from template introspection and dispatched on directly,
// instead of speculatively trying setter after setter.
type FieldKind int

const (
	KindText FieldKind = iota
	KindCheckbox
	KindChoice
	KindOther
)

// Field is one named, fillable form field in a template.
type Field struct {
	Name string
	Kind FieldKind
}

// Toolkit performs all pdfcpu operations with a shared configuration.
type Toolkit struct {
	conf *model.Configuration
}

// NewToolkit creates a toolkit with relaxed validation, since deployed
// templates come from many authoring tools of varying strictness.
func NewToolkit() *Toolkit {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Toolkit{conf: conf}
}

// ListFields returns the names of the form fields in the template at
// path. Satisfies templates.FieldLister.
func (t *Toolkit) ListFields(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	fields, err := t.Fields(data)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return names, nil
}

// Fields introspects the named form fields of a PDF, mapping each to
// its fill kind.
func (t *Toolkit) Fields(data []byte) ([]Field, error) {
	raw, err := api.FormFields(bytes.NewReader(data), t.conf)
	if err != nil {
		return nil, fmt.Errorf("introspect form fields: %w", err)
	}

	fields := make([]Field, 0, len(raw))
	for _, f := range raw {
		name := f.Name
		if name == "" {
			name = f.ID
		}
		if name == "" {
			continue
		}
		fields = append(fields, Field{Name: name, Kind: kindOf(f.Typ)})
	}
	return fields, nil
}

// Fill writes values into the template's form fields and returns the
// filled bytes plus the names actually filled. Values whose field kind
// cannot be filled are skipped; resolving which requested names were
// skipped or absent is the caller's job (it has the full request map).
func (t *Toolkit) Fill(tpl []byte, values map[string]string) ([]byte, []string, error) {
	fields, err := t.Fields(tpl)
	if err != nil {
		return nil, nil, err
	}

	var (
		entry  formEntry
		filled []string
	)
	for _, f := range fields {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		switch f.Kind {
		case KindText:
			entry.TextFields = append(entry.TextFields, textField{Name: f.Name, Value: v})
		case KindCheckbox:
			entry.CheckBoxes = append(entry.CheckBoxes, checkBox{Name: f.Name, Value: truthy(v)})
		case KindChoice:
			entry.ComboBoxes = append(entry.ComboBoxes, comboBox{Name: f.Name, Value: v})
		default:
			continue
		}
		filled = append(filled, f.Name)
	}

	if len(filled) == 0 {
		return tpl, nil, nil
	}

	js, err := json.Marshal(formData{Forms: []formEntry{entry}})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal form data: %w", err)
	}

	var buf bytes.Buffer
	if err := api.FillForm(bytes.NewReader(tpl), bytes.NewReader(js), &buf, t.conf); err != nil {
		return nil, nil, fmt.Errorf("fill form: %w", err)
	}
	return buf.Bytes(), filled, nil
}

// Flatten locks every form field so filled values become static,
// non-editable content.
func (t *Toolkit) Flatten(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := api.LockFormFields(bytes.NewReader(in), &buf, nil, t.conf); err != nil {
		return nil, fmt.Errorf("flatten form: %w", err)
	}
	return buf.Bytes(), nil
}

// Reduce optimizes the PDF to shrink it before upload.
func (t *Toolkit) Reduce(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := api.Optimize(bytes.NewReader(in), &buf, t.conf); err != nil {
		return nil, fmt.Errorf("optimize pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// kindOf maps pdfcpu's field types onto our fill dispatch tags.
func kindOf(typ form.FieldType) FieldKind {
	switch typ {
	case form.FTText, form.FTDate:
		return KindText
	case form.FTCheckBox:
		return KindCheckbox
	case form.FTComboBox, form.FTListBox, form.FTRadioButtonGroup:
		return KindChoice
	default:
		return KindOther
	}
}

// truthy interprets the checkbox value spellings upstream data uses.
func truthy(v string) bool {
	switch v {
	case "true", "True", "TRUE", "yes", "Yes", "YES", "x", "X", "on", "1":
		return true
	default:
		return false
	}
}

// formData mirrors pdfcpu's form-fill JSON schema.
type formData struct {
	Forms []formEntry `json:"forms"`
}

type formEntry struct {
	TextFields []textField `json:"textfield,omitempty"`
	CheckBoxes []checkBox  `json:"checkbox,omitempty"`
	ComboBoxes []comboBox  `json:"combobox,omitempty"`
}

type textField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type checkBox struct {
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

type comboBox struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
