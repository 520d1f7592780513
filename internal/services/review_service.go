package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/assessment-session-service/internal/cache"
	"github.com/SAP-F-2025/assessment-session-service/internal/models"
	"github.com/SAP-F-2025/assessment-session-service/internal/portal"
	"github.com/SAP-F-2025/assessment-session-service/internal/session"
	"github.com/SAP-F-2025/assessment-session-service/internal/validator"
)

// ApplicationLookup locates an application. Recruiters must name the job and
// assessment the application belongs to.
type ApplicationLookup struct {
	ApplicationID string `json:"application_id" validate:"required,notblank"`
	JobID         string `json:"job_id"`
	AssessmentID  string `json:"assessment_id"`
}

type ApplicationReview struct {
	ID              string         `json:"id"`
	JobID           string         `json:"job_id"`
	AssessmentID    string         `json:"assessment_id"`
	AssessmentTitle string         `json:"assessment_title"`
	Candidate       string         `json:"candidate"`
	CandidateEmail  string         `json:"candidate_email"`
	Score           float64        `json:"score"`
	PassingScore    float64        `json:"passing_score"`
	Passed          bool           `json:"passed"`
	Answers         []AnswerReview `json:"answers"`
}

type AnswerReview struct {
	QuestionID      string              `json:"question_id"`
	QuestionText    string              `json:"question_text"`
	Type            models.QuestionType `json:"type"`
	Weight          float64             `json:"weight"`
	WeightShare     string              `json:"weight_share"`
	SkillCategories []string            `json:"skill_categories"`
	Options         []OptionReview      `json:"options,omitempty"`
	Text            string              `json:"text,omitempty"`
	Selected        []string            `json:"selected,omitempty"`
	CorrectOptions  []string            `json:"correct_options,omitempty"`

	// Correct is nil for free-text answers, which are graded by the portal
	Correct       *bool  `json:"correct,omitempty"`
	MissedCorrect bool   `json:"missed_correct"`
	Rationale     string `json:"rationale,omitempty"`
}

type OptionReview struct {
	Value    string `json:"value"`
	Text     string `json:"text"`
	Selected bool   `json:"selected"`
	Correct  bool   `json:"correct"`
}

// ReviewService shows submitted applications to their candidate or to a recruiter
type ReviewService interface {
	GetApplication(ctx context.Context, token string, lookup *ApplicationLookup) (*ApplicationReview, error)
	ExportApplication(ctx context.Context, token string, lookup *ApplicationLookup) ([]byte, string, error)
}

type reviewService struct {
	portal    portal.Client
	users     *userResolver
	validator *validator.Validator
	logger    *ServiceLogger
}

func NewReviewService(portalClient portal.Client, cacheService cache.CacheService, validator *validator.Validator, logger *slog.Logger) ReviewService {
	serviceLogger := NewServiceLogger(logger, LogConfig{Service: "assessment-session-service", Component: "review"})
	return &reviewService{
		portal:    portalClient,
		users:     newUserResolver(portalClient, cacheService, validator, serviceLogger.Logger()),
		validator: validator,
		logger:    serviceLogger,
	}
}

func (s *reviewService) GetApplication(ctx context.Context, token string, lookup *ApplicationLookup) (review *ApplicationReview, err error) {
	op := s.logger.WithOperation(ctx, "get_application", "")
	defer func() { op.LogResult(lookup.ApplicationID, "application", err) }()

	if err := s.validator.Validate(lookup); err != nil {
		return nil, err
	}

	user, err := s.users.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	op.SetUser(user.ID)

	var application *models.Application
	switch user.Role {
	case models.RoleApplicant:
		application, err = s.portal.GetMyApplication(ctx, token, lookup.ApplicationID)
	case models.RoleHR:
		if lookup.JobID == "" || lookup.AssessmentID == "" {
			return nil, ValidationErrors{*NewValidationError("job_id", "job_id and assessment_id are required for recruiters", nil)}
		}
		application, err = s.portal.GetJobApplication(ctx, token, lookup.JobID, lookup.AssessmentID, lookup.ApplicationID)
	default:
		return nil, ErrInvalidRole
	}
	if err != nil {
		return nil, wrapPortalError(err, ErrApplicationNotFound, ErrApplicationUnavailable)
	}

	if user.IsApplicant() && application.UserID != "" && application.UserID != user.ID {
		return nil, NewPermissionError(user.ID, lookup.ApplicationID, "application", "view", "application belongs to another user")
	}

	return BuildReview(application), nil
}

func (s *reviewService) ExportApplication(ctx context.Context, token string, lookup *ApplicationLookup) ([]byte, string, error) {
	review, err := s.GetApplication(ctx, token, lookup)
	if err != nil {
		return nil, "", err
	}

	data, err := ReviewWorkbook(review)
	if err != nil {
		return nil, "", err
	}
	return data, fmt.Sprintf("application-%s.xlsx", review.ID), nil
}

// BuildReview derives per-answer correctness and the pass verdict.
func BuildReview(application *models.Application) *ApplicationReview {
	passing := application.PassingScore
	if passing == 0 {
		passing = application.AssessmentDetails.PassingScore
	}

	review := &ApplicationReview{
		ID:              application.ID,
		JobID:           application.JobID,
		AssessmentID:    application.AssessmentID,
		AssessmentTitle: application.AssessmentDetails.Title,
		Candidate:       application.User.FullName(),
		CandidateEmail:  application.User.Email,
		Score:           application.Score,
		PassingScore:    passing,
		Passed:          application.Score >= passing,
		Answers:         make([]AnswerReview, 0, len(application.Answers)),
	}

	var total float64
	for _, a := range application.Answers {
		total += a.Weight
	}

	for _, a := range application.Answers {
		ar := AnswerReview{
			QuestionID:      a.QuestionID,
			QuestionText:    a.QuestionText,
			Type:            a.Type,
			Weight:          a.Weight,
			WeightShare:     session.WeightShare(a.Weight, total),
			SkillCategories: a.SkillCategories,
			Text:            a.Text,
			Selected:        a.Options,
			CorrectOptions:  a.CorrectOptions,
			Rationale:       a.Rationale,
		}

		if a.Type.IsChoice() {
			selected := toSet(a.Options)
			correct := toSet(a.CorrectOptions)
			for _, o := range a.QuestionOptions {
				ar.Options = append(ar.Options, OptionReview{
					Value:    o.Value,
					Text:     o.Text,
					Selected: selected[o.Value],
					Correct:  correct[o.Value],
				})
			}
			if len(correct) > 0 {
				isCorrect := sameSet(selected, correct)
				ar.Correct = &isCorrect
				for value := range correct {
					if !selected[value] {
						ar.MissedCorrect = true
						break
					}
				}
			}
		}

		review.Answers = append(review.Answers, ar)
	}

	return review
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		if v != "" {
			set[v] = true
		}
	}
	return set
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for v := range a {
		if !b[v] {
			return false
		}
	}
	return true
}

// ReviewWorkbook renders a review as an xlsx workbook with a summary sheet
// and one row per answer.
func ReviewWorkbook(review *ApplicationReview) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summary := "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}

	verdict := "Fail"
	if review.Passed {
		verdict = "Pass"
	}
	rows := [][]interface{}{
		{"Application", review.ID},
		{"Assessment", review.AssessmentTitle},
		{"Candidate", review.Candidate},
		{"Email", review.CandidateEmail},
		{"Score", review.Score},
		{"Passing Score", review.PassingScore},
		{"Result", verdict},
	}
	for i, row := range rows {
		if err := writeRow(f, summary, i+1, row); err != nil {
			return nil, err
		}
	}

	answers := "Answers"
	index, err := f.NewSheet(answers)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}

	headers := []interface{}{
		"Question", "Type", "Weight", "Weight Share", "Skills", "Answer", "Correct Options", "Correct", "Missed Correct", "Rationale",
	}
	if err := writeRow(f, answers, 1, headers); err != nil {
		return nil, err
	}

	for i, a := range review.Answers {
		answer := a.Text
		if a.Type.IsChoice() {
			answer = joinSorted(a.Selected)
		}
		correct := ""
		if a.Correct != nil {
			correct = "No"
			if *a.Correct {
				correct = "Yes"
			}
		}
		row := []interface{}{
			a.QuestionText,
			string(a.Type),
			a.Weight,
			a.WeightShare,
			joinSorted(a.SkillCategories),
			answer,
			joinSorted(a.CorrectOptions),
			correct,
			a.MissedCorrect,
			a.Rationale,
		}
		if err := writeRow(f, answers, i+2, row); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(index)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}

func joinSorted(values []string) string {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}
