// internal/common/validation/schema_test.go
package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRecommendationRequest(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantValid bool
		wantField string
	}{
		{
			name: "valid minimal request",
			payload: `{
				"job": {"jobId": "job-1", "jobType": "repair", "urgencyLevel": "high", "customerTier": "standard"},
				"vendors": [{"vendorId": "v1", "status": "active"}]
			}`,
			wantValid: true,
		},
		{
			name: "empty vendor list is allowed",
			payload: `{
				"job": {"jobId": "job-1", "jobType": "repair", "urgencyLevel": "low", "customerTier": "premium"},
				"vendors": []
			}`,
			wantValid: true,
		},
		{
			name:      "missing job",
			payload:   `{"vendors": []}`,
			wantValid: false,
			wantField: "(root)",
		},
		{
			name: "unknown job type",
			payload: `{
				"job": {"jobId": "job-1", "jobType": "plumbing", "urgencyLevel": "low", "customerTier": "standard"},
				"vendors": []
			}`,
			wantValid: false,
			wantField: "job.jobType",
		},
		{
			name: "vendor missing status",
			payload: `{
				"job": {"jobId": "job-1", "jobType": "repair", "urgencyLevel": "low", "customerTier": "standard"},
				"vendors": [{"vendorId": "v1"}]
			}`,
			wantValid: false,
		},
		{
			name: "negative weight",
			payload: `{
				"job": {"jobId": "job-1", "jobType": "repair", "urgencyLevel": "low", "customerTier": "standard"},
				"vendors": [],
				"weights": {"rule": -0.2, "ml": 1.1, "context": 0.1}
			}`,
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ValidateRecommendationRequest([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, result.Valid)
			if !tt.wantValid {
				assert.NotEmpty(t, result.Errors)
			}
			if tt.wantField != "" {
				found := false
				for _, e := range result.Errors {
					if e.Field == tt.wantField {
						found = true
					}
				}
				assert.True(t, found, "expected error on field %s, got %+v", tt.wantField, result.Errors)
			}
		})
	}
}

func TestValidateRecommendationRequest_MalformedJSON(t *testing.T) {
	_, err := ValidateRecommendationRequest([]byte(`{not json`))
	require.Error(t, err)
}
