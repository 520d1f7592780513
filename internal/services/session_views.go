package services

import (
	"time"

	"github.com/SAP-F-2025/assessment-session-service/internal/models"
	"github.com/SAP-F-2025/assessment-session-service/internal/session"
)

// SessionView is what the candidate's page renders
type SessionView struct {
	ID           string          `json:"id"`
	JobID        string          `json:"job_id"`
	AssessmentID string          `json:"assessment_id"`
	Assessment   AssessmentView  `json:"assessment"`
	Role         models.UserRole `json:"role"`

	State      string `json:"state"`
	Started    bool   `json:"started"`
	Submitted  bool   `json:"submitted"`
	Submitting bool   `json:"submitting"`

	// Locked questions are shown but cannot be answered yet
	Locked   bool `json:"locked"`
	ReadOnly bool `json:"read_only"`

	Remaining        string     `json:"remaining"`
	RemainingSeconds int64      `json:"remaining_seconds"`
	Deadline         *time.Time `json:"deadline,omitempty"`

	Questions       []QuestionView `json:"questions"`
	HiddenQuestions int            `json:"hidden_questions"`

	FailedSubmissions int    `json:"failed_submissions"`
	ApplicationID     string `json:"application_id,omitempty"`
	Automatic         bool   `json:"automatic"`
	Message           string `json:"message,omitempty"`
	LastError         string `json:"last_error,omitempty"`
}

type AssessmentView struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Duration       int     `json:"duration"`
	PassingScore   float64 `json:"passing_score"`
	QuestionsCount int     `json:"questions_count"`
}

type QuestionView struct {
	ID              string              `json:"id"`
	Text            string              `json:"text"`
	Type            models.QuestionType `json:"type"`
	Weight          float64             `json:"weight"`
	WeightShare     string              `json:"weight_share"`
	Options         []models.Option     `json:"options"`
	SkillCategories []string            `json:"skill_categories"`
	Answer          any                 `json:"answer"`
}

func (s *sessionService) view(entry *hostedSession) *SessionView {
	assessment := entry.session.Assessment()
	snap := entry.session.Snapshot()

	v := &SessionView{
		ID:           entry.id,
		JobID:        entry.jobID,
		AssessmentID: entry.assessmentID,
		Assessment: AssessmentView{
			ID:             assessment.ID,
			Title:          assessment.Title,
			Duration:       assessment.Duration,
			PassingScore:   assessment.PassingScore,
			QuestionsCount: len(assessment.Questions),
		},
		Role:              entry.user.Role,
		State:             snap.State.String(),
		Started:           snap.Started(),
		Submitted:         snap.Submitted(),
		Submitting:        snap.Submitting,
		ReadOnly:          entry.preview,
		FailedSubmissions: snap.FailedSubmissions,
	}

	remaining := snap.Remaining
	if !snap.Started() {
		remaining = assessment.DurationOrZero()
	} else {
		deadline := snap.Deadline
		v.Deadline = &deadline
	}
	v.Remaining = session.FormatRemaining(remaining)
	v.RemainingSeconds = int64(remaining / time.Second)

	questions := assessment.Questions
	if !entry.preview && !snap.Started() {
		v.Locked = true
		if len(questions) > s.config.PreviewQuestions {
			v.HiddenQuestions = len(questions) - s.config.PreviewQuestions
			questions = questions[:s.config.PreviewQuestions]
		}
	}

	total := assessment.TotalWeight()
	v.Questions = make([]QuestionView, 0, len(questions))
	for _, q := range questions {
		qv := QuestionView{
			ID:              q.ID,
			Text:            q.Text,
			Type:            q.Type,
			Weight:          q.Weight,
			WeightShare:     session.WeightShare(q.Weight, total),
			Options:         q.Options,
			SkillCategories: q.SkillCategories,
		}
		if answer, ok := snap.Answers[q.ID]; ok {
			qv.Answer = answer.Value()
		}
		v.Questions = append(v.Questions, qv)
	}

	switch {
	case snap.Result != nil:
		v.ApplicationID = snap.Result.ApplicationID
		v.Automatic = snap.Result.Automatic
		v.Message = MessageSubmitted
		if snap.Result.Automatic {
			v.Message = MessageAutoSubmitted
		}
	case snap.FailedSubmissions > 0 && !snap.Submitting:
		v.Message = MessageSubmissionFailed
		v.LastError = entry.lastError()
	}

	return v
}
