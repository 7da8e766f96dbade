package psa

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed templates/mapping.json
var defaultMappingJSON []byte

// CarrierMapping maps ENTSO-E production type names ("Fossil Hard coal",
// "Wind Onshore", ...) to model carriers ("coal", "onwind", ...).
type CarrierMapping map[string]string

// DefaultCarrierMapping returns the built-in production-type mapping.
func DefaultCarrierMapping() CarrierMapping {
	var m CarrierMapping
	if err := json.Unmarshal(defaultMappingJSON, &m); err != nil {
		panic(fmt.Sprintf("psa: embedded carrier mapping invalid: %v", err))
	}
	return m
}

// LoadCarrierMapping reads a mapping override from a JSON file with the same
// shape as the built-in one: an object of production type name to carrier.
func LoadCarrierMapping(path string) (CarrierMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("psa: read carrier mapping: %w", err)
	}
	var m CarrierMapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("psa: parse carrier mapping %s: %w", path, err)
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("psa: carrier mapping %s is empty", path)
	}
	return m, nil
}

// Carrier resolves a production type name. Unmapped names fall into the
// "Other" carrier rather than being dropped.
func (m CarrierMapping) Carrier(productionType string) string {
	if c, ok := m[productionType]; ok {
		return c
	}
	return "Other"
}
