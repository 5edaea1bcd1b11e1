package pdf

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/form"
)

// formFixture returns a deployed AcroForm template to run the real
// pdfcpu pipeline against. Looks under testdata/ first, then at
// PDF_FORM_FIXTURE. Skipped when neither is present.
func formFixture(t *testing.T) []byte {
	t.Helper()

	path := os.Getenv("PDF_FORM_FIXTURE")
	if path == "" {
		matches, _ := filepath.Glob(filepath.Join("testdata", "*.pdf"))
		if len(matches) == 0 {
			t.Skip("no form fixture under testdata/ and PDF_FORM_FIXTURE not set")
		}
		path = matches[0]
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return data
}

// TestFillFlattenReduce runs the full generation pipeline against a real
// template: introspect fields, fill the first text field, flatten, and
// optimize. Skipped if no fixture is deployed.
func TestFillFlattenReduce(t *testing.T) {
	tpl := formFixture(t)
	tk := NewToolkit()

	fields, err := tk.Fields(tpl)
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	if len(fields) == 0 {
		t.Fatal("fixture has no named form fields")
	}

	values := map[string]string{"field_that_does_not_exist": "ignored"}
	var target string
	for _, f := range fields {
		if f.Kind == KindText {
			target = f.Name
			values[target] = "Alex Doe"
			break
		}
	}
	if target == "" {
		t.Skip("fixture has no text field to fill")
	}

	filled, names, err := tk.Fill(tpl, values)
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if len(names) != 1 || names[0] != target {
		t.Errorf("filled names = %v, want only %q; absent names must be skipped", names, target)
	}
	if !bytes.HasPrefix(filled, []byte("%PDF")) {
		t.Errorf("filled output does not start with the PDF header")
	}

	flat, err := tk.Flatten(filled)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if !bytes.HasPrefix(flat, []byte("%PDF")) {
		t.Errorf("flattened output does not start with the PDF header")
	}

	reduced, err := tk.Reduce(flat)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if !bytes.HasPrefix(reduced, []byte("%PDF")) {
		t.Errorf("reduced output does not start with the PDF header")
	}
}

// TestFillNothingRequestedReturnsTemplate verifies that a fill with no
// matching fields is a no-op returning the template bytes unchanged.
func TestFillNothingRequestedReturnsTemplate(t *testing.T) {
	tpl := formFixture(t)
	tk := NewToolkit()

	out, names, err := tk.Fill(tpl, map[string]string{"no_such_field": "x"})
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("filled names = %v, want none", names)
	}
	if !bytes.Equal(out, tpl) {
		t.Error("no-op fill modified the template bytes")
	}
}

func TestTruthy(t *testing.T) {
	for _, v := range []string{"true", "True", "TRUE", "yes", "Yes", "x", "X", "on", "1"} {
		if !truthy(v) {
			t.Errorf("truthy(%q) = false", v)
		}
	}
	for _, v := range []string{"", "false", "no", "0", "checked", " true"} {
		if truthy(v) {
			t.Errorf("truthy(%q) = true", v)
		}
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		typ  form.FieldType
		want FieldKind
	}{
		{form.FTText, KindText},
		{form.FTDate, KindText},
		{form.FTCheckBox, KindCheckbox},
		{form.FTComboBox, KindChoice},
		{form.FTListBox, KindChoice},
		{form.FTRadioButtonGroup, KindChoice},
	}
	for _, tt := range tests {
		if got := kindOf(tt.typ); got != tt.want {
			t.Errorf("kindOf(%v) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}
