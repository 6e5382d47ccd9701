/*
Package factory provides JSON to Go policy conversion.

PURPOSE:
  Converts JSON leave policy definitions into leave.Policy so quotas and
  the classification mode can change without a rebuild. The server reads
  one from POLICY_FILE at startup.

JSON SCHEMA:
  {
    "id": "default",
    "name": "Monthly leave with carry-forward",
    "mode": "monthly_carry_forward",
    "monthly_quota": 1,
    "yearly_quota": 12
  }

  mode: "monthly_carry_forward" (default when empty) or "yearly_counter".
  Missing quotas take the package defaults (1 and 12). Explicit zero or
  negative quotas are kept: they classify every day as LOP.

USAGE:
  f := factory.NewPolicyFactory()
  policy, err := f.ParsePolicy(factory.MonthlyCarryForwardJSON("default", "Standard", 1, 12))

  policy, err = factory.LoadPolicyFile("/etc/leave/policy.json")

SEE ALSO:
  - leave/policy.go: Policy type definition
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/warp/leave-ledger/leave"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of a policy.
type PolicyJSON struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Mode         string `json:"mode,omitempty"`
	MonthlyQuota *int   `json:"monthly_quota,omitempty"`
	YearlyQuota  *int   `json:"yearly_quota,omitempty"`
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON policies to Go structs.
type PolicyFactory struct{}

// NewPolicyFactory creates a new policy factory.
func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParsePolicy parses a JSON string into a Policy.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (leave.Policy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return leave.Policy{}, fmt.Errorf("failed to parse policy JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PolicyJSON to leave.Policy.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (leave.Policy, error) {
	mode, err := leave.ParseMode(pj.Mode)
	if err != nil {
		return leave.Policy{}, err
	}

	policy := leave.DefaultPolicy()
	policy.Mode = mode
	if pj.ID != "" {
		policy.ID = pj.ID
	}
	if pj.Name != "" {
		policy.Name = pj.Name
	}
	if pj.MonthlyQuota != nil {
		policy.MonthlyQuota = *pj.MonthlyQuota
	}
	if pj.YearlyQuota != nil {
		policy.YearlyQuota = *pj.YearlyQuota
	}
	return policy, nil
}

// ToJSON converts a Policy to PolicyJSON.
func (f *PolicyFactory) ToJSON(policy leave.Policy) PolicyJSON {
	monthly, yearly := policy.MonthlyQuota, policy.YearlyQuota
	mode := policy.Mode
	if mode == "" {
		mode = leave.ModeMonthlyCarryForward
	}
	return PolicyJSON{
		ID:           policy.ID,
		Name:         policy.Name,
		Mode:         string(mode),
		MonthlyQuota: &monthly,
		YearlyQuota:  &yearly,
	}
}

// =============================================================================
// LOADING
// =============================================================================

// ParsePolicy parses with a zero-value factory.
func ParsePolicy(jsonStr string) (leave.Policy, error) {
	return NewPolicyFactory().ParsePolicy(jsonStr)
}

// LoadPolicyFile reads and parses a policy JSON file.
func LoadPolicyFile(path string) (leave.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return leave.Policy{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	policy, err := ParsePolicy(string(data))
	if err != nil {
		return leave.Policy{}, fmt.Errorf("policy file %s: %w", path, err)
	}
	return policy, nil
}

// =============================================================================
// PRESETS
// =============================================================================

// MonthlyCarryForwardJSON returns JSON for the monthly quota rule with
// carry-forward inside the year.
func MonthlyCarryForwardJSON(id, name string, monthlyQuota, yearlyQuota int) string {
	return presetJSON(id, name, leave.ModeMonthlyCarryForward, monthlyQuota, yearlyQuota)
}

// YearlyCounterJSON returns JSON for the superseded yearly-counter rule.
func YearlyCounterJSON(id, name string, yearlyQuota int) string {
	return presetJSON(id, name, leave.ModeYearlyCounter, 0, yearlyQuota)
}

func presetJSON(id, name string, mode leave.Mode, monthlyQuota, yearlyQuota int) string {
	pj := map[string]interface{}{
		"id":            id,
		"name":          name,
		"mode":          string(mode),
		"monthly_quota": monthlyQuota,
		"yearly_quota":  yearlyQuota,
	}
	b, _ := json.MarshalIndent(pj, "", "  ")
	return string(b)
}
