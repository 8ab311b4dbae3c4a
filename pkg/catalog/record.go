// Package catalog defines the collection records that flow through the ETL
// pipeline: the raw wire payload, its normalized form and the aggregation
// report built from a batch.
package catalog

import (
	"fmt"
	"strconv"
	"time"
)

// Wire field names used by the catalog API.
const (
	FieldCollection  = "collection"
	FieldName        = "name"
	FieldDescription = "description"
	FieldImageURL    = "image_url"
	FieldOwner       = "owner"
	FieldTwitter     = "twitter_username"
	FieldContracts   = "contracts"
	FieldCategory    = "category"
)

// ChainEthereum is the only chain whose contracts survive normalization.
const ChainEthereum = "ethereum"

// RawRecord is one entry of the API "collections" array, as decoded.
// No invariant is enforced on its shape.
type RawRecord map[string]any

// String returns the field rendered as a string. Missing and null fields
// render as "", numbers and booleans use their literal form.
func (r RawRecord) String(key string) string {
	return stringify(r[key])
}

// Has reports whether the field is present and not null.
func (r RawRecord) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// Truthy reports whether the field holds a non-empty, non-zero value.
func (r RawRecord) Truthy(key string) bool {
	switch v := r[key].(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

// Contracts returns the raw contracts list, or nil when the field is absent
// or not a list.
func (r RawRecord) Contracts() []any {
	list, _ := r[FieldContracts].([]any)
	return list
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// ContractDescriptor is an on-chain contract address and the chain it lives on.
type ContractDescriptor struct {
	Address string `json:"address"`
	Chain   string `json:"chain"`
}

// NormalizedRecord is the validated, persistence-ready form of a collection.
// Collection and Name are never empty.
type NormalizedRecord struct {
	Collection      string    `json:"collection" db:"collection"`
	Name            string    `json:"name" db:"name"`
	Description     string    `json:"description" db:"description"`
	ImageURL        string    `json:"image_url" db:"image_url"`
	Owner           string    `json:"owner" db:"owner"`
	TwitterUsername string    `json:"twitter_username" db:"twitter_username"`
	Contracts       string    `json:"contracts" db:"contracts"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Row returns the record as a column -> value mapping for bulk insertion.
func (n NormalizedRecord) Row() map[string]any {
	return map[string]any{
		"collection":       n.Collection,
		"name":             n.Name,
		"description":      n.Description,
		"image_url":        n.ImageURL,
		"owner":            n.Owner,
		"twitter_username": n.TwitterUsername,
		"contracts":        n.Contracts,
		"created_at":       n.CreatedAt,
	}
}

// Raw converts the normalized record back to wire shape. Contracts are
// decoded from their serialized form; invalid JSON yields an empty list.
func (n NormalizedRecord) Raw() RawRecord {
	contracts, _ := n.ContractList()
	list := make([]any, 0, len(contracts))
	for _, c := range contracts {
		list = append(list, map[string]any{"address": c.Address, "chain": c.Chain})
	}
	return RawRecord{
		FieldCollection:  n.Collection,
		FieldName:        n.Name,
		FieldDescription: n.Description,
		FieldImageURL:    n.ImageURL,
		FieldOwner:       n.Owner,
		FieldTwitter:     n.TwitterUsername,
		FieldContracts:   list,
	}
}
