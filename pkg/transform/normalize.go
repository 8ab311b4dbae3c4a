// Package transform validates raw collection records and normalizes them
// into their persistence-ready form.
package transform

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Sternrassler/nft-catalog-etl/pkg/catalog"
)

// MaxDescriptionLength is the maximum description length in characters.
const MaxDescriptionLength = 5000

// RejectReason explains why a raw record produced no normalized record.
type RejectReason string

const (
	// RejectMissingName means the name was empty after trimming.
	RejectMissingName RejectReason = "missing_name"

	// RejectMissingCollection means the collection slug was empty after trimming.
	RejectMissingCollection RejectReason = "missing_collection"

	// RejectMalformed means normalization failed on an unexpected payload.
	RejectMalformed RejectReason = "malformed"
)

// Result is either a normalized record or a rejection.
type Result struct {
	Record *catalog.NormalizedRecord
	Reason RejectReason
	// Detail carries the underlying failure for RejectMalformed.
	Detail string
}

// OK reports whether the record was accepted.
func (r Result) OK() bool {
	return r.Record != nil
}

// Normalize applies the validation rules to one record, stamping
// CreatedAt with now. It never panics; an unexpected payload is reported
// as RejectMalformed.
func Normalize(raw catalog.RawRecord, now time.Time) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = Result{Reason: RejectMalformed, Detail: fmt.Sprint(p)}
		}
	}()

	name := strings.TrimSpace(raw.String(catalog.FieldName))

	contracts, err := catalog.EncodeContracts(FilterContracts(raw.Contracts()))
	if err != nil {
		return Result{Reason: RejectMalformed, Detail: err.Error()}
	}

	collection := strings.TrimSpace(raw.String(catalog.FieldCollection))

	switch {
	case name == "":
		return Result{Reason: RejectMissingName}
	case collection == "":
		return Result{Reason: RejectMissingCollection}
	}

	return Result{Record: &catalog.NormalizedRecord{
		Collection:      collection,
		Name:            name,
		Description:     normalizeDescription(raw.String(catalog.FieldDescription)),
		ImageURL:        normalizeImageURL(raw.String(catalog.FieldImageURL)),
		Owner:           strings.TrimSpace(raw.String(catalog.FieldOwner)),
		TwitterUsername: normalizeHandle(raw.String(catalog.FieldTwitter)),
		Contracts:       contracts,
		CreatedAt:       now,
	}}
}

func normalizeDescription(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= MaxDescriptionLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxDescriptionLength])
}

func normalizeImageURL(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	return ""
}

func normalizeHandle(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "@")
}

// FilterContracts keeps well-formed Ethereum descriptors with a non-empty
// address and drops everything else.
func FilterContracts(raw []any) []catalog.ContractDescriptor {
	out := []catalog.ContractDescriptor{}
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		chain, _ := m["chain"].(string)
		address, _ := m["address"].(string)
		if chain != catalog.ChainEthereum || address == "" {
			continue
		}
		out = append(out, catalog.ContractDescriptor{Address: address, Chain: chain})
	}
	return out
}
