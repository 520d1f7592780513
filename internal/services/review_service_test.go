package services

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/assessment-session-service/internal/models"
	"github.com/SAP-F-2025/assessment-session-service/internal/portal"
	"github.com/SAP-F-2025/assessment-session-service/internal/validator"
)

func sampleApplication() *models.Application {
	return &models.Application{
		ID:           "app-1",
		JobID:        "job-1",
		AssessmentID: "asm-1",
		UserID:       "u1",
		Score:        75,
		AssessmentDetails: models.AssessmentSummary{
			ID:           "asm-1",
			Title:        "Backend engineer",
			PassingScore: 70,
		},
		User: models.User{ID: "u1", Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace", Role: models.RoleApplicant},
		Answers: []models.ApplicationAnswer{
			{
				QuestionID:   "q1",
				QuestionText: "Describe a goroutine leak",
				Type:         models.QuestionTextBased,
				Weight:       50,
				Text:         "A goroutine blocked forever",
				Rationale:    "Clear answer",
			},
			{
				QuestionID:      "q2",
				QuestionText:    "Zero value of a map",
				Type:            models.QuestionChooseOne,
				Weight:          25,
				QuestionOptions: []models.Option{{Value: "a", Text: "nil"}, {Value: "b", Text: "empty map"}},
				CorrectOptions:  []string{"a"},
				Options:         []string{"a"},
			},
			{
				QuestionID:      "q3",
				QuestionText:    "Reference types",
				Type:            models.QuestionChooseMany,
				Weight:          25,
				SkillCategories: []string{"go"},
				QuestionOptions: []models.Option{{Value: "x", Text: "slice"}, {Value: "y", Text: "array"}, {Value: "z", Text: "map"}},
				CorrectOptions:  []string{"x", "z"},
				Options:         []string{"x"},
			},
		},
	}
}

func TestBuildReview(t *testing.T) {
	review := BuildReview(sampleApplication())

	assert.Equal(t, "app-1", review.ID)
	assert.Equal(t, "Backend engineer", review.AssessmentTitle)
	assert.Equal(t, "Ada Lovelace", review.Candidate)
	assert.Equal(t, float64(70), review.PassingScore)
	assert.True(t, review.Passed)
	require.Len(t, review.Answers, 3)

	text := review.Answers[0]
	assert.Nil(t, text.Correct)
	assert.False(t, text.MissedCorrect)
	assert.Equal(t, "0.5", text.WeightShare)
	assert.Equal(t, "A goroutine blocked forever", text.Text)

	single := review.Answers[1]
	require.NotNil(t, single.Correct)
	assert.True(t, *single.Correct)
	assert.False(t, single.MissedCorrect)
	assert.Equal(t, []OptionReview{
		{Value: "a", Text: "nil", Selected: true, Correct: true},
		{Value: "b", Text: "empty map", Selected: false, Correct: false},
	}, single.Options)

	multi := review.Answers[2]
	require.NotNil(t, multi.Correct)
	assert.False(t, *multi.Correct)
	assert.True(t, multi.MissedCorrect)
	assert.Equal(t, "0.25", multi.WeightShare)
}

func TestBuildReview_PassingScore(t *testing.T) {
	tests := []struct {
		name    string
		score   float64
		passing float64
		details float64
		want    bool
		wantMin float64
	}{
		{name: "application threshold wins", score: 60, passing: 50, details: 80, want: true, wantMin: 50},
		{name: "falls back to assessment", score: 60, passing: 0, details: 80, want: false, wantMin: 80},
		{name: "equal score passes", score: 80, passing: 80, want: true, wantMin: 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := sampleApplication()
			app.Score = tt.score
			app.PassingScore = tt.passing
			app.AssessmentDetails.PassingScore = tt.details

			review := BuildReview(app)
			assert.Equal(t, tt.want, review.Passed)
			assert.Equal(t, tt.wantMin, review.PassingScore)
		})
	}
}

func TestBuildReview_UngradedChoice(t *testing.T) {
	app := sampleApplication()
	app.Answers[1].CorrectOptions = nil

	review := BuildReview(app)
	assert.Nil(t, review.Answers[1].Correct)
	assert.False(t, review.Answers[1].MissedCorrect)
}

func newReviewFixture() (*MockPortalClient, ReviewService) {
	portalClient := &MockPortalClient{}
	portalClient.On("GetCurrentUser", mock.Anything, applicantToken).Return(applicant, nil).Maybe()
	portalClient.On("GetCurrentUser", mock.Anything, hrToken).Return(recruiter, nil).Maybe()
	return portalClient, NewReviewService(portalClient, newMemoryCache(), validator.New(), testLogger())
}

func TestReviewService_GetApplicationAsApplicant(t *testing.T) {
	portalClient, service := newReviewFixture()
	portalClient.On("GetMyApplication", mock.Anything, applicantToken, "app-1").Return(sampleApplication(), nil)

	review, err := service.GetApplication(context.Background(), applicantToken, &ApplicationLookup{ApplicationID: "app-1"})
	require.NoError(t, err)
	assert.Equal(t, "app-1", review.ID)
	portalClient.AssertNotCalled(t, "GetJobApplication", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReviewService_ApplicantCannotReadOthers(t *testing.T) {
	portalClient, service := newReviewFixture()
	app := sampleApplication()
	app.UserID = "someone-else"
	portalClient.On("GetMyApplication", mock.Anything, applicantToken, "app-1").Return(app, nil)

	_, err := service.GetApplication(context.Background(), applicantToken, &ApplicationLookup{ApplicationID: "app-1"})
	assert.True(t, IsForbidden(err))
}

func TestReviewService_GetApplicationAsRecruiter(t *testing.T) {
	portalClient, service := newReviewFixture()
	portalClient.On("GetJobApplication", mock.Anything, hrToken, "job-1", "asm-1", "app-1").Return(sampleApplication(), nil)

	_, err := service.GetApplication(context.Background(), hrToken, &ApplicationLookup{ApplicationID: "app-1"})
	assert.True(t, IsValidation(err))

	review, err := service.GetApplication(context.Background(), hrToken, &ApplicationLookup{
		ApplicationID: "app-1",
		JobID:         "job-1",
		AssessmentID:  "asm-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", review.Candidate)
}

func TestReviewService_PortalErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		target error
	}{
		{name: "missing", status: http.StatusNotFound, target: ErrApplicationNotFound},
		{name: "expired token", status: http.StatusUnauthorized, target: ErrUnauthorized},
		{name: "portal down", status: http.StatusServiceUnavailable, target: ErrApplicationUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			portalClient, service := newReviewFixture()
			portalClient.On("GetMyApplication", mock.Anything, applicantToken, "app-1").
				Return(nil, &portal.APIError{StatusCode: tt.status, Message: http.StatusText(tt.status)})

			_, err := service.GetApplication(context.Background(), applicantToken, &ApplicationLookup{ApplicationID: "app-1"})
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestReviewService_ExportApplication(t *testing.T) {
	portalClient, service := newReviewFixture()
	portalClient.On("GetMyApplication", mock.Anything, applicantToken, "app-1").Return(sampleApplication(), nil)

	data, filename, err := service.ExportApplication(context.Background(), applicantToken, &ApplicationLookup{ApplicationID: "app-1"})
	require.NoError(t, err)
	assert.Equal(t, "application-app-1.xlsx", filename)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "Answers"}, f.GetSheetList())

	result, err := f.GetCellValue("Summary", "B7")
	require.NoError(t, err)
	assert.Equal(t, "Pass", result)

	rows, err := f.GetRows("Answers")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Question", rows[0][0])
	assert.Equal(t, "Reference types", rows[3][0])
	assert.Equal(t, "x", rows[3][5])
	assert.Equal(t, "x, z", rows[3][6])
	assert.Equal(t, "No", rows[3][7])
}
