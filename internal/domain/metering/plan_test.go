package metering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitsForPlan(t *testing.T) {
	tests := []struct {
		plan       Plan
		analysis   int64
		generation int64
		ocr        int64
	}{
		{PlanFree, 5, 2, 10},
		{PlanPersonal, 50, 20, 100},
		{PlanPro, 200, 100, 500},
		{PlanEnterprise, UnlimitedUsage, UnlimitedUsage, UnlimitedUsage},
	}

	for _, tt := range tests {
		t.Run(string(tt.plan), func(t *testing.T) {
			limits := LimitsForPlan(tt.plan)

			require.Len(t, limits, 3)
			assert.Equal(t, tt.analysis, limits[ResourceKindAnalysis])
			assert.Equal(t, tt.generation, limits[ResourceKindGeneration])
			assert.Equal(t, tt.ocr, limits[ResourceKindOCR])
		})
	}

	t.Run("unknown plan falls back to free", func(t *testing.T) {
		limits := LimitsForPlan(Plan("legacy_gold"))

		assert.Equal(t, int64(5), limits[ResourceKindAnalysis])
		assert.Equal(t, int64(2), limits[ResourceKindGeneration])
		assert.Equal(t, int64(10), limits[ResourceKindOCR])
	})

	t.Run("returned map is a copy", func(t *testing.T) {
		limits := LimitsForPlan(PlanFree)
		limits[ResourceKindAnalysis] = 9999

		assert.Equal(t, int64(5), LimitForPlan(PlanFree, ResourceKindAnalysis))
	})
}

func TestLimitForPlan(t *testing.T) {
	assert.Equal(t, int64(200), LimitForPlan(PlanPro, ResourceKindAnalysis))
	assert.Equal(t, UnlimitedUsage, LimitForPlan(PlanEnterprise, ResourceKindOCR))
	assert.Equal(t, int64(10), LimitForPlan(Plan("unknown"), ResourceKindOCR))
}

func TestSpecForPlan(t *testing.T) {
	t.Run("known plan", func(t *testing.T) {
		spec := SpecForPlan(PlanPro)

		assert.Equal(t, PlanPro, spec.Plan)
		assert.Equal(t, "Pro", spec.DisplayName)
		assert.False(t, spec.MonthlyPrice.IsZero())
		assert.False(t, spec.IsUnlimited(ResourceKindAnalysis))
	})

	t.Run("enterprise is unlimited for every kind", func(t *testing.T) {
		spec := SpecForPlan(PlanEnterprise)

		for _, kind := range AllResourceKinds() {
			assert.True(t, spec.IsUnlimited(kind))
		}
	})

	t.Run("unknown plan resolves to the free entry", func(t *testing.T) {
		spec := SpecForPlan(Plan("legacy_gold"))

		assert.Equal(t, PlanFree, spec.Plan)
		assert.True(t, spec.MonthlyPrice.IsZero())
	})
}

func TestPlan_IsKnown(t *testing.T) {
	tests := []struct {
		plan     Plan
		expected bool
	}{
		{PlanFree, true},
		{PlanPersonal, true},
		{PlanPro, true},
		{PlanEnterprise, true},
		{Plan("legacy_gold"), false},
		{Plan(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.plan), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.plan.IsKnown())
		})
	}
}

func TestAllPlans(t *testing.T) {
	plans := AllPlans()

	require.Len(t, plans, 4)
	assert.Equal(t, PlanFree, plans[0])
	assert.Equal(t, PlanEnterprise, plans[3])
}
