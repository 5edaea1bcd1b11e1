// Package models defines the shared domain types for generated legal
// documents: document kinds, and the persisted record of a generated file.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DocumentKind identifies which document template a generation request
// targets. The kind appears in template filenames and cache keys.
type DocumentKind string

const (
	KindLease      DocumentKind = "Lease"
	KindInspection DocumentKind = "Inspection"
)

// AllKinds lists every kind the service can generate, in display order.
var AllKinds = []DocumentKind{KindLease, KindInspection}

// ParseKind normalizes a user-supplied kind string. Matching is
// case-insensitive; an empty input defaults to KindLease.
func ParseKind(s string) (DocumentKind, error) {
	if strings.TrimSpace(s) == "" {
		return KindLease, nil
	}
	for _, k := range AllKinds {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown document kind %q", s)
}

// String returns the kind as used in filenames and cache keys.
func (k DocumentKind) String() string { return string(k) }

// Document is the bookkeeping record written after a generated PDF has
// been uploaded. Recording is best-effort: a failed insert never fails
// the generation itself.
type Document struct {
	ID        uuid.UUID
	EntityID  string
	Kind      DocumentKind
	Region    string
	Path      string
	PublicURL string
	SizeBytes int64
	CreatedAt time.Time
}
