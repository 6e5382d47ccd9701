package factory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/leave"
)

func TestParsePolicy_Presets(t *testing.T) {
	f := NewPolicyFactory()

	monthly, err := f.ParsePolicy(MonthlyCarryForwardJSON("std", "Standard", 2, 20))
	require.NoError(t, err)
	assert.Equal(t, leave.Policy{
		ID:           "std",
		Name:         "Standard",
		Mode:         leave.ModeMonthlyCarryForward,
		MonthlyQuota: 2,
		YearlyQuota:  20,
	}, monthly)

	yearly, err := f.ParsePolicy(YearlyCounterJSON("legacy", "Legacy counter", 12))
	require.NoError(t, err)
	assert.Equal(t, leave.ModeYearlyCounter, yearly.Mode)
	assert.Equal(t, 12, yearly.YearlyQuota)
}

func TestParsePolicy_Defaults(t *testing.T) {
	// GIVEN a policy with only a name
	policy, err := ParsePolicy(`{"name": "Minimal"}`)

	// THEN mode and quotas default
	require.NoError(t, err)
	assert.Equal(t, "default", policy.ID)
	assert.Equal(t, "Minimal", policy.Name)
	assert.Equal(t, leave.ModeMonthlyCarryForward, policy.Mode)
	assert.Equal(t, leave.DefaultMonthlyQuota, policy.MonthlyQuota)
	assert.Equal(t, leave.DefaultYearlyQuota, policy.YearlyQuota)
}

func TestParsePolicy_ExplicitZeroQuota(t *testing.T) {
	policy, err := ParsePolicy(`{"id": "none", "monthly_quota": 0, "yearly_quota": -1}`)
	require.NoError(t, err)
	assert.Equal(t, 0, policy.MonthlyQuota)
	assert.Equal(t, -1, policy.YearlyQuota)
}

func TestParsePolicy_Errors(t *testing.T) {
	_, err := ParsePolicy(`{"mode": "weekly"}`)
	assert.ErrorContains(t, err, "unknown leave mode")

	_, err = ParsePolicy(`{not json`)
	assert.ErrorContains(t, err, "failed to parse policy JSON")
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := NewPolicyFactory()
	original := leave.DefaultPolicy()

	back, err := f.FromJSON(f.ToJSON(original))
	require.NoError(t, err)
	assert.Equal(t, original, back)
}

func TestLoadPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(MonthlyCarryForwardJSON("file", "From file", 1, 10)), 0o600))

	policy, err := LoadPolicyFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file", policy.ID)
	assert.Equal(t, 10, policy.YearlyQuota)

	_, err = LoadPolicyFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
