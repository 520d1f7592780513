package models

import "encoding/json"

// AnswerPayload is one entry of the application submission body. Free-text
// questions carry Text; choice questions always carry an Options list, even
// for single-choice.
type AnswerPayload struct {
	QuestionID string
	Text       *string
	Options    []string
}

func (p AnswerPayload) MarshalJSON() ([]byte, error) {
	if p.Text != nil {
		return json.Marshal(struct {
			QuestionID string `json:"question_id"`
			Text       string `json:"text"`
		}{p.QuestionID, *p.Text})
	}
	options := p.Options
	if options == nil {
		options = []string{}
	}
	return json.Marshal(struct {
		QuestionID string   `json:"question_id"`
		Options    []string `json:"options"`
	}{p.QuestionID, options})
}

func (p *AnswerPayload) UnmarshalJSON(data []byte) error {
	var raw struct {
		QuestionID string   `json:"question_id"`
		Text       *string  `json:"text"`
		Options    []string `json:"options"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.QuestionID = raw.QuestionID
	p.Text = raw.Text
	p.Options = raw.Options
	return nil
}

type SubmitApplicationRequest struct {
	JobID        string          `json:"job_id"`
	AssessmentID string          `json:"assessment_id"`
	UserID       string          `json:"user_id"`
	Answers      []AnswerPayload `json:"answers"`
}

type SubmitApplicationResponse struct {
	ID string `json:"id"`
}

type ApplicationAnswer struct {
	QuestionID      string       `json:"question_id"`
	QuestionText    string       `json:"question_text"`
	Type            QuestionType `json:"type"`
	Weight          float64      `json:"weight"`
	SkillCategories []string     `json:"skill_categories"`
	QuestionOptions []Option     `json:"question_options"`
	CorrectOptions  []string     `json:"correct_options"`
	Text            string       `json:"text"`
	Options         []string     `json:"options"`
	Rationale       string       `json:"rationale"`
}

type AssessmentSummary struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	PassingScore float64 `json:"passing_score"`
}

// Application is the detailed record the portal returns for review.
type Application struct {
	ID                string              `json:"id"`
	JobID             string              `json:"job_id"`
	AssessmentID      string              `json:"assessment_id"`
	UserID            string              `json:"user_id"`
	Answers           []ApplicationAnswer `json:"answers"`
	AssessmentDetails AssessmentSummary   `json:"assessment_details"`
	User              User                `json:"user"`
	Score             float64             `json:"score"`
	PassingScore      float64             `json:"passing_score"`
}
