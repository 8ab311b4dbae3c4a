package catalog

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRawRecord_String(t *testing.T) {
	r := RawRecord{
		"s":     "text",
		"n":     nil,
		"int":   42.0,
		"float": 1.5,
		"b":     true,
		"list":  []any{"a"},
	}

	tests := map[string]string{
		"s":       "text",
		"n":       "",
		"missing": "",
		"int":     "42",
		"float":   "1.5",
		"b":       "true",
		"list":    "[a]",
	}
	for key, want := range tests {
		if got := r.String(key); got != want {
			t.Errorf("String(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestRawRecord_Truthy(t *testing.T) {
	r := RawRecord{
		"empty":  "",
		"text":   "x",
		"zero":   0.0,
		"false":  false,
		"nil":    nil,
		"list":   []any{},
		"object": map[string]any{"k": 1},
	}

	tests := map[string]bool{
		"empty": false, "text": true, "zero": false, "false": false,
		"nil": false, "missing": false, "list": false, "object": true,
	}
	for key, want := range tests {
		if got := r.Truthy(key); got != want {
			t.Errorf("Truthy(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestRawRecord_Contracts(t *testing.T) {
	if got := (RawRecord{"contracts": "nope"}).Contracts(); got != nil {
		t.Errorf("non-list contracts = %v, want nil", got)
	}
	if got := (RawRecord{"contracts": []any{1.0}}).Contracts(); len(got) != 1 {
		t.Errorf("Contracts() len = %d, want 1", len(got))
	}
}

func TestEncodeContracts(t *testing.T) {
	got, err := EncodeContracts(nil)
	if err != nil || got != "[]" {
		t.Errorf("EncodeContracts(nil) = %q, %v", got, err)
	}

	got, err = EncodeContracts([]ContractDescriptor{{Address: "0x<&>", Chain: ChainEthereum}})
	if err != nil {
		t.Fatalf("EncodeContracts() error = %v", err)
	}
	if want := `[{"address":"0x<&>","chain":"ethereum"}]`; got != want {
		t.Errorf("EncodeContracts() = %q, want %q", got, want)
	}
}

func TestNormalizedRecord_RowAndRaw(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	rec := NormalizedRecord{
		Collection: "slug",
		Name:       "Name",
		Contracts:  `[{"address":"0xabc","chain":"ethereum"}]`,
		CreatedAt:  now,
	}

	row := rec.Row()
	if len(row) != 8 {
		t.Errorf("Row() has %d columns, want 8", len(row))
	}
	if row["created_at"] != now {
		t.Errorf("created_at = %v", row["created_at"])
	}

	raw := rec.Raw()
	list := raw.Contracts()
	if len(list) != 1 {
		t.Fatalf("Raw() contracts = %v", list)
	}
	if m, ok := list[0].(map[string]any); !ok || m["address"] != "0xabc" {
		t.Errorf("Raw() contract = %v", list[0])
	}
}

func TestAggregationReport_JSONKeys(t *testing.T) {
	data, err := json.Marshal(AggregationReport{CountsByOwner: map[string]int{UnknownKey: 1}})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"total_collections", "collections_with_twitter", "collections_by_owner", "contract_counts", "categories", "timestamp"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing JSON key %q in %s", key, data)
		}
	}
}
