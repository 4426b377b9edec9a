/*
Package factory provides JSON/YAML to Go ruleset conversion.

PURPOSE:
  Converts ruleset definitions into payroll.RuleSet and payroll.LineType
  values. Payroll administrators keep cost rules in version-controlled files;
  the factory turns them into the structs the payroll service stores.

JSON SCHEMA:
  {
    "line_types": [
      {"id": "normal", "name": "Normal", "product": "Professional Services"}
    ],
    "rulesets": [
      {
        "id": "employees",
        "name": "Employees",
        "rules": [
          {"sequence": 1, "hours": 4.5, "hour_type": "normal", "cost_price": 300},
          {"sequence": 2, "hours": 8, "hour_type": "normal", "cost_price": 800},
          {"hour_type": "normal", "cost_price": 100}
        ]
      }
    ]
  }

  A rule without "hours" matches every shift; without "sequence" it is
  evaluated after the sequenced rules.

YAML:
  The same document may be written in YAML. It is converted to JSON first so
  both formats go through the same strict decoder: unknown fields are errors.

USAGE:
  f := factory.NewRuleSetFactory()

  catalog, err := f.ParseFile("rulesets.yaml", data)
  if err != nil {
      return err
  }
  if err := catalog.Apply(ctx, payrollService); err != nil {
      return err
  }

SEE ALSO:
  - payroll/rules.go: Rule matching
  - cmd/server/main.go: -rulesets seed flag
*/
package factory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	yaml "go.yaml.in/yaml/v3"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleJSON is the JSON representation of a cost rule.
type RuleJSON struct {
	Sequence  *int             `json:"sequence,omitempty"`
	Hours     *decimal.Decimal `json:"hours,omitempty"`
	HourType  string           `json:"hour_type"`
	CostPrice decimal.Decimal  `json:"cost_price"`
}

// RuleSetJSON is the JSON representation of a ruleset.
type RuleSetJSON struct {
	ID    string     `json:"id,omitempty"`
	Name  string     `json:"name"`
	Rules []RuleJSON `json:"rules"`
}

// LineTypeJSON is the JSON representation of a payslip line type.
type LineTypeJSON struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Product string `json:"product,omitempty"`
}

// CatalogJSON is a file of line types and the rulesets using them.
type CatalogJSON struct {
	LineTypes []LineTypeJSON `json:"line_types,omitempty"`
	RuleSets  []RuleSetJSON  `json:"rulesets"`
}

// Catalog is a parsed CatalogJSON.
type Catalog struct {
	LineTypes []payroll.LineType
	RuleSets  []payroll.RuleSet
}

// =============================================================================
// RULESET FACTORY
// =============================================================================

// RuleSetFactory converts ruleset documents to Go structs.
type RuleSetFactory struct{}

// NewRuleSetFactory creates a new ruleset factory.
func NewRuleSetFactory() *RuleSetFactory {
	return &RuleSetFactory{}
}

// ParseRuleSet parses a single JSON ruleset.
func (f *RuleSetFactory) ParseRuleSet(data []byte) (*payroll.RuleSet, error) {
	var rj RuleSetJSON
	if err := decodeStrict(data, &rj); err != nil {
		return nil, fmt.Errorf("failed to parse ruleset JSON: %w", err)
	}
	rs := f.FromJSON(rj)
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// ParseCatalog parses a JSON catalog.
func (f *RuleSetFactory) ParseCatalog(data []byte) (*Catalog, error) {
	var cj CatalogJSON
	if err := decodeStrict(data, &cj); err != nil {
		return nil, fmt.Errorf("failed to parse ruleset catalog: %w", err)
	}

	c := &Catalog{}
	for _, lt := range cj.LineTypes {
		if lt.ID == "" || lt.Name == "" {
			return nil, fmt.Errorf("line type %q: id and name are required", lt.ID)
		}
		c.LineTypes = append(c.LineTypes, payroll.LineType{ID: lt.ID, Name: lt.Name, Product: lt.Product})
	}
	for i, rj := range cj.RuleSets {
		rs := f.FromJSON(rj)
		if err := rs.Validate(); err != nil {
			return nil, fmt.Errorf("ruleset %d (%s): %w", i+1, rj.Name, err)
		}
		c.RuleSets = append(c.RuleSets, rs)
	}
	return c, nil
}

// ParseFile parses a catalog, picking the format from the file extension.
func (f *RuleSetFactory) ParseFile(path string, data []byte) (*Catalog, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		j, err := YAMLToJSON(data)
		if err != nil {
			return nil, err
		}
		data = j
	}
	return f.ParseCatalog(data)
}

// FromJSON converts RuleSetJSON to payroll.RuleSet.
func (f *RuleSetFactory) FromJSON(rj RuleSetJSON) payroll.RuleSet {
	rs := payroll.RuleSet{ID: rj.ID, Name: rj.Name}
	for _, r := range rj.Rules {
		rs.Rules = append(rs.Rules, payroll.Rule{
			Sequence:   r.Sequence,
			Hours:      r.Hours,
			HourTypeID: r.HourType,
			CostPrice:  r.CostPrice,
		})
	}
	return rs
}

// ToJSON converts a payroll.RuleSet to RuleSetJSON.
func (f *RuleSetFactory) ToJSON(rs payroll.RuleSet) RuleSetJSON {
	rj := RuleSetJSON{ID: rs.ID, Name: rs.Name, Rules: []RuleJSON{}}
	for _, r := range rs.Rules {
		rj.Rules = append(rj.Rules, RuleJSON{
			Sequence:  r.Sequence,
			Hours:     r.Hours,
			HourType:  r.HourTypeID,
			CostPrice: r.CostPrice,
		})
	}
	return rj
}

// Apply stores the catalog's line types then its rulesets.
func (c *Catalog) Apply(ctx context.Context, svc *payroll.Service) error {
	for _, lt := range c.LineTypes {
		if _, err := svc.CreateLineType(ctx, lt); err != nil {
			return fmt.Errorf("line type %s: %w", lt.ID, err)
		}
	}
	for _, rs := range c.RuleSets {
		if _, err := svc.SaveRuleSet(ctx, rs); err != nil {
			return fmt.Errorf("ruleset %s: %w", rs.Name, err)
		}
	}
	return nil
}

// =============================================================================
// DECODING HELPERS
// =============================================================================

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// YAMLToJSON converts a YAML document to JSON so it can go through the strict
// JSON decoder.
func YAMLToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	j, err := json.Marshal(normalizeYAML(v))
	if err != nil {
		return nil, fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, nil
}

// normalizeYAML ensures all map keys are strings so the result can be JSON-marshaled.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalizeYAML(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}
