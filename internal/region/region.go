// Package region validates and normalizes the 2-letter jurisdiction codes
// that select which document template applies. The production default is
// degrade-and-warn: bad input from upstream data resolves to the configured
// default region instead of making document generation unavailable.
package region

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrUnsupported is wrapped by every strict-mode validation failure,
// whether the input was malformed or merely undeployed.
var ErrUnsupported = errors.New("unsupported region")

// names maps every known jurisdiction code to its display name. Display
// names also appear (underscored) in template filenames.
var names = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"FL": "Florida", "GA": "Georgia", "HI": "Hawaii", "ID": "Idaho",
	"IL": "Illinois", "IN": "Indiana", "IA": "Iowa", "KS": "Kansas",
	"KY": "Kentucky", "LA": "Louisiana", "ME": "Maine", "MD": "Maryland",
	"MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota", "MS": "Mississippi",
	"MO": "Missouri", "MT": "Montana", "NE": "Nebraska", "NV": "Nevada",
	"NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico", "NY": "New York",
	"NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma",
	"OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina",
	"SD": "South Dakota", "TN": "Tennessee", "TX": "Texas", "UT": "Utah",
	"VT": "Vermont", "VA": "Virginia", "WA": "Washington", "WV": "West Virginia",
	"WI": "Wisconsin", "WY": "Wyoming",
	"DC": "District of Columbia", "PR": "Puerto Rico", "GU": "Guam",
	"VI": "U.S. Virgin Islands", "AS": "American Samoa",
}

// DisplayName returns the display name for a known code, or the code
// itself when unknown.
func DisplayName(code string) string {
	if n, ok := names[strings.ToUpper(code)]; ok {
		return n
	}
	return code
}

// Known reports whether code is one of the recognized jurisdiction codes.
func Known(code string) bool {
	_, ok := names[strings.ToUpper(code)]
	return ok
}

// Options control how Validate treats bad input. The zero value is the
// production default: degrade to the default region and warn.
type Options struct {
	// FailOnUnsupported raises an error instead of falling back. It
	// covers both malformed input and recognized-but-undeployed codes;
	// the two cases are deliberately treated the same way.
	FailOnUnsupported bool

	// LogWarnings emits slog warnings for every fallback. Handlers set
	// this; batch callers that aggregate their own logs leave it off.
	LogWarnings bool
}

// Result is the outcome of a Validate call. ResolvedCode is always a
// usable, supported code unless an error was returned.
type Result struct {
	IsValid      bool   // input was syntactically a 2-letter code
	ResolvedCode string // code to actually use (may be the default)
	DisplayName  string // display name of the resolved code
	IsSupported  bool   // resolved code has a deployed template
	Warning      string // non-empty when any fallback occurred
}

// Validator resolves jurisdiction codes against a configured default
// region and a deployment check.
type Validator struct {
	defaultCode string
	// supported reports whether a template is deployed for a known
	// code. Nil means every known code is considered deployed.
	supported func(code string) bool
}

// NewValidator creates a validator. defaultCode must be a known code;
// it is normalized to uppercase.
func NewValidator(defaultCode string, supported func(code string) bool) (*Validator, error) {
	defaultCode = strings.ToUpper(strings.TrimSpace(defaultCode))
	if !Known(defaultCode) {
		return nil, fmt.Errorf("default region %q is not a known jurisdiction code", defaultCode)
	}
	return &Validator{defaultCode: defaultCode, supported: supported}, nil
}

// Default returns the configured default region code.
func (v *Validator) Default() string { return v.defaultCode }

// Validate normalizes and resolves a jurisdiction code.
//
// Empty input is valid and resolves to the default region with a warning.
// Malformed input (anything but 2 alphabetic characters) is invalid and
// falls back to the default. A well-formed code that is unknown or has no
// deployed template falls back to the default with a distinct warning.
// Fallbacks only become errors when opts.FailOnUnsupported is set.
func (v *Validator) Validate(code string, opts Options) (Result, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))

	if normalized == "" {
		res := v.fallback(true, "no region code provided, using default region "+v.defaultCode)
		v.warn(res, opts)
		return res, nil
	}

	if !wellFormed(normalized) {
		if opts.FailOnUnsupported {
			return Result{}, fmt.Errorf("invalid region code %q: must be a 2-letter jurisdiction code: %w", code, ErrUnsupported)
		}
		res := v.fallback(false, fmt.Sprintf("malformed region code %q, falling back to default region %s", code, v.defaultCode))
		v.warn(res, opts)
		return res, nil
	}

	if !Known(normalized) || !v.deployed(normalized) {
		if opts.FailOnUnsupported {
			return Result{}, fmt.Errorf("region code %q has no deployed template: %w", normalized, ErrUnsupported)
		}
		res := v.fallback(true, fmt.Sprintf("region %s has no deployed template, falling back to default region %s", normalized, v.defaultCode))
		v.warn(res, opts)
		return res, nil
	}

	return Result{
		IsValid:      true,
		ResolvedCode: normalized,
		DisplayName:  names[normalized],
		IsSupported:  true,
	}, nil
}

func (v *Validator) deployed(code string) bool {
	if v.supported == nil {
		return true
	}
	return v.supported(code)
}

// fallback builds a Result resolving to the default region. The default
// is always reported as supported: if even the default template is
// missing, that surfaces later as a hard generation failure, not here.
func (v *Validator) fallback(valid bool, warning string) Result {
	return Result{
		IsValid:      valid,
		ResolvedCode: v.defaultCode,
		DisplayName:  names[v.defaultCode],
		IsSupported:  true,
		Warning:      warning,
	}
}

func (v *Validator) warn(res Result, opts Options) {
	if opts.LogWarnings && res.Warning != "" {
		slog.Warn("region fallback", "resolved", res.ResolvedCode, "warning", res.Warning)
	}
}

// wellFormed reports whether s is exactly 2 ASCII letters.
func wellFormed(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
