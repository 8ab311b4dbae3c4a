package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EncodeContracts serializes descriptors the way they are persisted: a JSON
// array without HTML escaping. A nil slice encodes as "[]".
func EncodeContracts(contracts []ContractDescriptor) (string, error) {
	if contracts == nil {
		contracts = []ContractDescriptor{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(contracts); err != nil {
		return "", fmt.Errorf("encode contracts: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// ContractList decodes the serialized contracts column.
func (n NormalizedRecord) ContractList() ([]ContractDescriptor, error) {
	if n.Contracts == "" {
		return nil, nil
	}
	var out []ContractDescriptor
	if err := json.Unmarshal([]byte(n.Contracts), &out); err != nil {
		return nil, fmt.Errorf("decode contracts: %w", err)
	}
	return out, nil
}
