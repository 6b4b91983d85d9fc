// internal/common/validation/schema.go
package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// recommendationRequestSchema constrains the intake payload before it
// reaches the decision core. The core itself tolerates edge cases (empty
// vendor lists, missing metrics); the schema only rejects payloads that
// are structurally unusable.
const recommendationRequestSchema = `{
  "type": "object",
  "required": ["job", "vendors"],
  "properties": {
    "job": {
      "type": "object",
      "required": ["jobId", "jobType", "urgencyLevel", "customerTier"],
      "properties": {
        "jobId": {"type": "string", "minLength": 1},
        "jobType": {"enum": ["repair", "installation", "maintenance", "inspection"]},
        "urgencyLevel": {"enum": ["low", "medium", "high", "critical"]},
        "customerTier": {"enum": ["standard", "premium", "enterprise"]},
        "location": {
          "type": "object",
          "properties": {
            "zipCode": {"type": "string"},
            "region": {"type": "string"}
          }
        },
        "slaDeadline": {"type": "string"},
        "requiredCertifications": {"type": "array", "items": {"type": "string"}},
        "specialRequirements": {"type": "array", "items": {"type": "string"}}
      }
    },
    "vendors": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["vendorId", "status"],
        "properties": {
          "vendorId": {"type": "string", "minLength": 1},
          "status": {"enum": ["active", "inactive", "suspended"]}
        }
      }
    },
    "metrics": {"type": "object"},
    "weights": {
      "type": "object",
      "properties": {
        "rule": {"type": "number", "minimum": 0},
        "ml": {"type": "number", "minimum": 0},
        "context": {"type": "number", "minimum": 0}
      }
    }
  }
}`

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidateRecommendationRequest checks a raw intake payload against the
// request schema and returns structured field errors.
func ValidateRecommendationRequest(payload []byte) (*ValidationResult, error) {
	schemaLoader := gojsonschema.NewStringLoader(recommendationRequestSchema)
	documentLoader := gojsonschema.NewBytesLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, e := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   e.Field(),
			Message: e.Description(),
		})
	}
	return out, nil
}
