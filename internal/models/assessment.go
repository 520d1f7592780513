package models

import "time"

type QuestionType string

const (
	QuestionTextBased  QuestionType = "text_based"
	QuestionChooseOne  QuestionType = "choose_one"
	QuestionChooseMany QuestionType = "choose_many"
)

// IsChoice reports whether answers to the question are option values.
func (t QuestionType) IsChoice() bool {
	return t == QuestionChooseOne || t == QuestionChooseMany
}

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTextBased, QuestionChooseOne, QuestionChooseMany:
		return true
	}
	return false
}

type Option struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

type Question struct {
	ID              string       `json:"id"`
	Text            string       `json:"text"`
	Type            QuestionType `json:"type"`
	Weight          float64      `json:"weight"`
	Options         []Option     `json:"options"`
	SkillCategories []string     `json:"skill_categories"`

	// Only populated by the portal when reviewing a completed attempt
	CorrectOptions []string `json:"correct_options,omitempty"`
}

// HasOption reports whether value is one of the question's option values.
func (q *Question) HasOption(value string) bool {
	for _, o := range q.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

type Assessment struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Active         bool       `json:"active"`
	Duration       int        `json:"duration"` // seconds
	PassingScore   float64    `json:"passing_score"`
	QuestionsCount int        `json:"questions_count"`
	Questions      []Question `json:"questions"`
}

// DurationOrZero is the time limit as a Duration, never negative.
func (a *Assessment) DurationOrZero() time.Duration {
	if a.Duration <= 0 {
		return 0
	}
	return time.Duration(a.Duration) * time.Second
}

func (a *Assessment) TotalWeight() float64 {
	var total float64
	for _, q := range a.Questions {
		total += q.Weight
	}
	return total
}

// Question looks a question up by id.
func (a *Assessment) Question(id string) (*Question, bool) {
	for i := range a.Questions {
		if a.Questions[i].ID == id {
			return &a.Questions[i], true
		}
	}
	return nil, false
}

// WithoutCorrectOptions returns a deep copy safe to hand to a candidate.
func (a *Assessment) WithoutCorrectOptions() *Assessment {
	out := *a
	out.Questions = make([]Question, len(a.Questions))
	for i, q := range a.Questions {
		q.Options = append([]Option(nil), q.Options...)
		q.SkillCategories = append([]string(nil), q.SkillCategories...)
		q.CorrectOptions = nil
		out.Questions[i] = q
	}
	return &out
}
