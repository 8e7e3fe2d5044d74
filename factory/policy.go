/*
Package factory converts policy documents into quota.Policy.

PURPOSE:
  The policy editor, the stores and the optional seed file all carry the
  leave policy as a document. This package is the one place that reads and
  writes that document, in JSON or YAML.

JSON SCHEMA:
  {
    "quota_type": "Quarterly Quota",
    "allocations": {"junior": 12, "senior": 16, "managers": 20, "Head of Studies": 25},
    "working_days": [1, 2, 3, 4, 5]
  }

YAML:
  quota_type: Monthly Quota
  allocations:
    junior: 1
    senior: 2
  working_days: [mon, tue, wed, thu, fri]

KEY FEATURES:
  - quota_type accepts any cadence label ParseQuotaType understands
  - working_days accepts indices (0=Sunday) or weekday names
  - the parsed policy goes through leave.ValidatePolicy

USAGE:
  f := factory.NewPolicyFactory()
  policy, err := f.ParsePolicy(jsonBytes)
  policy, err = f.LoadFile("policy.yaml")
  doc := f.ToJSON(policy)

SEE ALSO:
  - quota/policy.go: Policy type
  - leave/service.go: ValidatePolicy
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/warp/academy-leave/leave"
	"github.com/warp/academy-leave/quota"
)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// PolicyJSON is the document form of a policy.
type PolicyJSON struct {
	QuotaType   string         `json:"quota_type" yaml:"quota_type"`
	Allocations map[string]int `json:"allocations" yaml:"allocations"`
	WorkingDays []WeekdayJSON  `json:"working_days" yaml:"working_days"`
}

// WeekdayJSON is a weekday written as 0-6 or as a name ("mon", "Monday").
type WeekdayJSON time.Weekday

func (w WeekdayJSON) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(w))), nil
}

func (w *WeekdayJSON) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*w = WeekdayJSON(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("working day must be a number or a name: %s", data)
	}
	return w.setName(s)
}

func (w *WeekdayJSON) UnmarshalYAML(node *yaml.Node) error {
	if n, err := strconv.Atoi(node.Value); err == nil {
		*w = WeekdayJSON(n)
		return nil
	}
	return w.setName(node.Value)
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func (w *WeekdayJSON) setName(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) >= 3 {
		if d, ok := weekdayNames[s[:3]]; ok {
			*w = WeekdayJSON(d)
			return nil
		}
	}
	return fmt.Errorf("unknown weekday %q", s)
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts policy documents to quota.Policy and back.
type PolicyFactory struct{}

// NewPolicyFactory creates a new policy factory.
func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParsePolicy parses a JSON document.
func (f *PolicyFactory) ParsePolicy(data []byte) (quota.Policy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return quota.Policy{}, fmt.Errorf("%w: parse policy JSON: %v", leave.ErrInvalidPolicy, err)
	}
	return f.FromJSON(pj)
}

// ParsePolicyYAML parses a YAML document.
func (f *PolicyFactory) ParsePolicyYAML(data []byte) (quota.Policy, error) {
	var pj PolicyJSON
	if err := yaml.Unmarshal(data, &pj); err != nil {
		return quota.Policy{}, fmt.Errorf("%w: parse policy YAML: %v", leave.ErrInvalidPolicy, err)
	}
	return f.FromJSON(pj)
}

// LoadFile reads a policy file, choosing YAML for .yaml/.yml and JSON otherwise.
func (f *PolicyFactory) LoadFile(path string) (quota.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return quota.Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return f.ParsePolicyYAML(data)
	default:
		return f.ParsePolicy(data)
	}
}

// FromJSON converts and validates a document.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (quota.Policy, error) {
	p := quota.Policy{
		QuotaType:   quota.ParseQuotaType(pj.QuotaType),
		Allocations: pj.Allocations,
	}
	for _, d := range pj.WorkingDays {
		p.WorkingDays = append(p.WorkingDays, time.Weekday(d))
	}
	return leave.ValidatePolicy(p)
}

// ToJSON converts p to its document form, with working days sorted.
func (f *PolicyFactory) ToJSON(p quota.Policy) PolicyJSON {
	pj := PolicyJSON{
		QuotaType:   string(quota.ParseQuotaType(string(p.QuotaType))),
		Allocations: make(map[string]int, len(p.Allocations)),
		WorkingDays: make([]WeekdayJSON, 0, len(p.WorkingDays)),
	}
	for k, v := range p.Allocations {
		pj.Allocations[k] = v
	}
	days := append([]time.Weekday(nil), p.WorkingDays...)
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	for _, d := range days {
		pj.WorkingDays = append(pj.WorkingDays, WeekdayJSON(d))
	}
	return pj
}

// MarshalPolicy encodes p as JSON; stores persist this form.
func (f *PolicyFactory) MarshalPolicy(p quota.Policy) ([]byte, error) {
	return json.Marshal(f.ToJSON(p))
}
