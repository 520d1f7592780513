package validator

import (
	"fmt"

	"github.com/SAP-F-2025/assessment-session-service/internal/models"
)

// AssessmentValidator checks that an assessment loaded from the portal can be
// taken: known question types, unique ids, options for choice questions.
type AssessmentValidator struct{}

func NewAssessmentValidator() *AssessmentValidator {
	return &AssessmentValidator{}
}

// ValidateAssessment returns nil or a non-empty ValidationErrors.
func (v *AssessmentValidator) ValidateAssessment(a *models.Assessment) error {
	var errs ValidationErrors

	if a == nil {
		return append(errs, *NewValidationError("assessment", "is required", nil))
	}
	if a.ID == "" {
		errs = append(errs, *NewValidationError("id", "is required", nil))
	}
	if a.Duration < 0 {
		errs = append(errs, *NewValidationError("duration", "must not be negative", a.Duration))
	}
	if a.PassingScore < 0 || a.PassingScore > 100 {
		errs = append(errs, *NewValidationError("passing_score", "must be between 0 and 100", a.PassingScore))
	}

	seen := make(map[string]bool, len(a.Questions))
	for i, q := range a.Questions {
		field := fmt.Sprintf("questions[%d]", i)
		if q.ID == "" {
			errs = append(errs, *NewValidationError(field+".id", "is required", nil))
		} else if seen[q.ID] {
			errs = append(errs, *NewValidationError(field+".id", "is duplicated", q.ID))
		}
		seen[q.ID] = true

		if err := v.ValidateQuestion(&q); err != nil {
			errs = append(errs, *NewValidationError(field, err.Error(), q.ID))
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateQuestion validates a single question's type, weight and options
func (v *AssessmentValidator) ValidateQuestion(q *models.Question) error {
	if !q.Type.Valid() {
		return fmt.Errorf("unsupported question type: %s", q.Type)
	}
	if q.Weight < 0 {
		return fmt.Errorf("weight must not be negative")
	}
	if !q.Type.IsChoice() {
		return nil
	}
	if len(q.Options) == 0 {
		return fmt.Errorf("choice question requires options")
	}
	values := make(map[string]bool, len(q.Options))
	for _, o := range q.Options {
		if values[o.Value] {
			return fmt.Errorf("duplicate option value: %s", o.Value)
		}
		values[o.Value] = true
	}
	return nil
}
