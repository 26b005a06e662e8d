package feeder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// MRIDs is an ordered list of equipment identifiers. It decodes from either a
// single string or a list of strings.
type MRIDs []string

func (m *MRIDs) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*m = MRIDs{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("mrids: expected string or list: %w", err)
	}
	*m = many
	return nil
}

func (m *MRIDs) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*m = MRIDs{value.Value}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := value.Decode(&many); err != nil {
			return err
		}
		*m = many
		return nil
	default:
		return fmt.Errorf("mrids: expected string or list at line %d", value.Line)
	}
}

// EquipmentIDMap maps a node name to its mRID(s).
type EquipmentIDMap map[string]MRIDs

// Lookup returns a copy of the mRIDs for name, empty when absent.
func (m EquipmentIDMap) Lookup(name string) []string {
	ids, ok := m[name]
	if !ok {
		return []string{}
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// PhaseMap maps a node name to the phases it carries.
type PhaseMap map[string][]string

// Maps bundles the two name-keyed collaborator maps.
type Maps struct {
	EquipmentIDs EquipmentIDMap `json:"equipmentIds" yaml:"equipmentIds"`
	Phases       PhaseMap       `json:"phases" yaml:"phases"`
}

// Ready reports whether both maps carry data, which the model transform needs.
func (m Maps) Ready() bool {
	return len(m.EquipmentIDs) > 0 && len(m.Phases) > 0
}

// LoadMapsFile reads a maps bundle from a .json, .yaml or .yml file.
func LoadMapsFile(path string) (Maps, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Maps{}, fmt.Errorf("read maps file: %w", err)
	}

	var maps Maps
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &maps); err != nil {
			return Maps{}, fmt.Errorf("decode maps yaml %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &maps); err != nil {
			return Maps{}, fmt.Errorf("decode maps json %s: %w", path, err)
		}
	}
	return maps, nil
}
