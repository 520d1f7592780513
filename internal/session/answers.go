package session

import (
	"github.com/SAP-F-2025/assessment-session-service/internal/models"
)

// Answer is a candidate's current response to one question.
type Answer struct {
	Type     models.QuestionType
	Text     string
	Selected []string
}

// IsBlank reports whether nothing has been entered or selected.
func (a Answer) IsBlank() bool {
	return a.Text == "" && len(a.Selected) == 0
}

// Value returns the response in its display shape: a string for free-text and
// single-choice questions, a list for multi-choice questions.
func (a Answer) Value() any {
	switch a.Type {
	case models.QuestionChooseMany:
		if a.Selected == nil {
			return []string{}
		}
		return append([]string(nil), a.Selected...)
	case models.QuestionChooseOne:
		if len(a.Selected) == 0 {
			return ""
		}
		return a.Selected[0]
	default:
		return a.Text
	}
}

func (a Answer) clone() Answer {
	a.Selected = append([]string(nil), a.Selected...)
	return a
}

// AnswerSet maps question ids to responses, keeping assessment order.
type AnswerSet struct {
	order []string
	byID  map[string]Answer
}

// NewAnswerSet builds a blank response for every question.
func NewAnswerSet(questions []models.Question) AnswerSet {
	set := AnswerSet{
		order: make([]string, 0, len(questions)),
		byID:  make(map[string]Answer, len(questions)),
	}
	for _, q := range questions {
		if _, dup := set.byID[q.ID]; dup {
			continue
		}
		set.order = append(set.order, q.ID)
		set.byID[q.ID] = Answer{Type: q.Type}
	}
	return set
}

func (s AnswerSet) Len() int {
	return len(s.order)
}

func (s AnswerSet) Get(questionID string) (Answer, bool) {
	a, ok := s.byID[questionID]
	if !ok {
		return Answer{}, false
	}
	return a.clone(), true
}

// Copy returns an independent snapshot of every response.
func (s AnswerSet) Copy() map[string]Answer {
	out := make(map[string]Answer, len(s.byID))
	for id, a := range s.byID {
		out[id] = a.clone()
	}
	return out
}

// apply records value for q: replaces for free-text and single-choice,
// toggles membership for multi-choice.
func (s AnswerSet) apply(q *models.Question, value string) {
	a := s.byID[q.ID]
	switch q.Type {
	case models.QuestionChooseMany:
		a.Selected = toggle(a.Selected, value)
	case models.QuestionChooseOne:
		a.Selected = []string{value}
	default:
		a.Text = value
	}
	s.byID[q.ID] = a
}

func toggle(selected []string, value string) []string {
	out := make([]string, 0, len(selected)+1)
	found := false
	for _, v := range selected {
		if v == value {
			found = true
			continue
		}
		out = append(out, v)
	}
	if !found {
		out = append(out, value)
	}
	return out
}

// Payload converts the set into the submission wire format.
func (s AnswerSet) Payload() []models.AnswerPayload {
	payload := make([]models.AnswerPayload, 0, len(s.order))
	for _, id := range s.order {
		a := s.byID[id]
		entry := models.AnswerPayload{QuestionID: id}
		if a.Type.IsChoice() {
			entry.Options = append([]string{}, a.Selected...)
		} else {
			text := a.Text
			entry.Text = &text
		}
		payload = append(payload, entry)
	}
	return payload
}
