package domain

import (
	"strings"

	dErrors "diligence/pkg/domain-errors"
)

// DocumentKind distinguishes a natural person (CPF) from a legal entity (CNPJ).
type DocumentKind string

const (
	KindCPF  DocumentKind = "cpf"
	KindCNPJ DocumentKind = "cnpj"
)

const (
	cpfLength  = 11
	cnpjLength = 14

	// maxRawDocumentLength bounds input before digit extraction.
	maxRawDocumentLength = 64
)

// TaxID is a Brazilian tax identifier reduced to its digits.
// Invariant: the value holds exactly 11 (CPF) or 14 (CNPJ) ASCII digits.
//
// Usage: construct via ParseTaxID at trust boundaries; direct casting bypasses
// validation and the registry clients will key the query incorrectly.
type TaxID string

// ParseTaxID strips punctuation from external input and validates its length.
//
// Errors: returns CodeValidation when the input is empty, oversized, or does not
// reduce to 11 or 14 digits. Check digits are not verified; the registries are
// the authority on whether a document exists.
func ParseTaxID(raw string) (TaxID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", dErrors.New(dErrors.CodeValidation, "document is required")
	}
	if len(raw) > maxRawDocumentLength {
		return "", dErrors.New(dErrors.CodeValidation, "document is too long")
	}
	digits := Digits(raw)
	switch len(digits) {
	case cpfLength, cnpjLength:
		return TaxID(digits), nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "document must have 11 (CPF) or 14 (CNPJ) digits")
	}
}

// Kind reports whether the identifier is a CPF or a CNPJ.
func (t TaxID) Kind() DocumentKind {
	if len(t) == cnpjLength {
		return KindCNPJ
	}
	return KindCPF
}

// String returns the bare digits.
func (t TaxID) String() string {
	return string(t)
}

// Formatted returns the punctuated display form.
func (t TaxID) Formatted() string {
	return FormatDocument(string(t))
}

// Digits drops every byte that is not an ASCII digit.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
