package cashback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func floatPtr(v float64) *float64 {
	return &v
}

func TestPolicy_Share(t *testing.T) {
	policy := NewPolicy(0.5)

	tests := []struct {
		name          string
		retailerShare *float64
		offerShare    *float64
		expected      float64
	}{
		{
			name:     "no overrides",
			expected: 0.5,
		},
		{
			name:          "retailer override",
			retailerShare: floatPtr(0.6),
			expected:      0.6,
		},
		{
			name:          "offer override wins over retailer",
			retailerShare: floatPtr(0.6),
			offerShare:    floatPtr(0.8),
			expected:      0.8,
		},
		{
			name:       "offer override without retailer override",
			offerShare: floatPtr(0.7),
			expected:   0.7,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, policy.Share(tt.retailerShare, tt.offerShare))
		})
	}
}

func TestPolicy_Compute(t *testing.T) {
	policy := NewPolicy(0.5)

	t.Run("flat share", func(t *testing.T) {
		assert.Equal(t, 10.0, policy.Compute(20.0, nil, nil))
	})
	t.Run("rounded to cents", func(t *testing.T) {
		assert.Equal(t, 3.33, policy.Compute(6.66, nil, nil))
	})
	t.Run("offer override", func(t *testing.T) {
		assert.Equal(t, 16.0, policy.Compute(20.0, floatPtr(0.6), floatPtr(0.8)))
	})
	t.Run("zero commission", func(t *testing.T) {
		assert.Equal(t, 0.0, policy.Compute(0, nil, nil))
	})
}
