package billing

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// PayerKind distinguishes individual members from synthetic group payers.
type PayerKind string

const (
	PayerKindMember PayerKind = "MEMBER"
	PayerKindGroup  PayerKind = "GROUP"
)

// IsValid checks if the payer kind is valid
func (k PayerKind) IsValid() bool {
	return k == PayerKindMember || k == PayerKindGroup
}

// PayerKey identifies the party an invoice is billed to.
type PayerKey struct {
	Kind PayerKind
	ID   uuid.UUID
	Name string
}

// groupPayerNamespace is the fixed UUIDv5 namespace for synthetic group
// payer identities. Changing it would fragment existing group invoices.
var groupPayerNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeGroupLabel maps a free-text group label to its canonical form:
// lowercased, trimmed, whitespace runs collapsed to single hyphens. Two
// labels with the same canonical form bill to the same group payer.
func NormalizeGroupLabel(label string) string {
	normalized := strings.ToLower(strings.TrimSpace(label))
	return whitespaceRun.ReplaceAllString(normalized, "-")
}

// GroupPayerKey derives the stable synthetic payer identity for a group
// label. The derivation is deterministic: the same label, however cased or
// spaced, always yields the same payer ID.
func GroupPayerKey(label string) PayerKey {
	normalized := NormalizeGroupLabel(label)
	return PayerKey{
		Kind: PayerKindGroup,
		ID:   uuid.NewSHA1(groupPayerNamespace, []byte("group:"+normalized)),
		Name: strings.TrimSpace(label),
	}
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SanitizeFileNamePart strips characters that are unsafe in object keys and
// file names, collapsing them to single underscores.
func SanitizeFileNamePart(s string) string {
	sanitized := unsafeFileChars.ReplaceAllString(strings.TrimSpace(s), "_")
	return strings.Trim(sanitized, "_")
}
