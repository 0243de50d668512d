package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Question labels the service reads answers from
const (
	PickupDateLabel   = "Date of pickup"
	CustomerNameLabel = "Name"

	// PickupDateLayout reads the yy/MM/dd answer of the pickup question. Month and day may drop the leading zero.
	PickupDateLayout = "06/1/2"
)

// SubmissionType is the order-fulfillment lifecycle axis
type SubmissionType string

const (
	TypeNew       SubmissionType = "new"
	TypeConfirmed SubmissionType = "confirmed"
	TypeCompleted SubmissionType = "completed"
	TypeDeleted   SubmissionType = "deleted"
)

func (t SubmissionType) IsValid() bool {
	switch t {
	case TypeNew, TypeConfirmed, TypeCompleted, TypeDeleted:
		return true
	}
	return false
}

// SubmissionState is the operator-attention axis
type SubmissionState string

const (
	StateUnviewed SubmissionState = "unviewed"
	StateViewed   SubmissionState = "viewed"
	StateMessaged SubmissionState = "messaged"
)

func (s SubmissionState) IsValid() bool {
	switch s {
	case StateUnviewed, StateViewed, StateMessaged:
		return true
	}
	return false
}

// ParseSubmissionType parses a type name, case-insensitively
func ParseSubmissionType(s string) (SubmissionType, error) {
	t := SubmissionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("unknown submission type %q (want new, confirmed, completed or deleted)", s)
	}
	return t, nil
}

// ParseSubmissionState parses a state name, case-insensitively
func ParseSubmissionState(s string) (SubmissionState, error) {
	st := SubmissionState(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("unknown submission state %q (want unviewed, viewed or messaged)", s)
	}
	return st, nil
}

// Question is a single question/answer pair of a submission
type Question struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value Value  `json:"value"`
}

// UnmarshalJSON requires the value key to be present. A null value is fine, a missing one is not.
func (q *Question) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return &DecodeError{Msg: "question is not an object", Raw: string(data), Err: err}
	}

	rawValue, ok := fields["value"]
	if !ok {
		return &DecodeError{Msg: "question has no value", Raw: string(data)}
	}

	var out Question
	for key, dst := range map[string]*string{"id": &out.ID, "name": &out.Name, "type": &out.Type} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return &DecodeError{Msg: fmt.Sprintf("question %s is not a string", key), Raw: string(data), Err: err}
		}
	}

	if err := json.Unmarshal(rawValue, &out.Value); err != nil {
		return err
	}

	*q = out
	return nil
}

// Submission is a form response as received from the forms provider
type Submission struct {
	SubmissionID   string     `json:"submissionId"`
	SubmissionTime string     `json:"submissionTime"`
	LastUpdatedAt  string     `json:"lastUpdatedAt"`
	Questions      []Question `json:"questions"`
}

// Answer returns the value of the first question with the given name
func (s Submission) Answer(name string) (Value, bool) {
	for _, q := range s.Questions {
		if q.Name == name {
			return q.Value, true
		}
	}
	return Value{}, false
}

// CustomerName returns the answer to the customer-name question, or "" if there is none
func (s Submission) CustomerName() string {
	v, ok := s.Answer(CustomerNameLabel)
	if !ok {
		return ""
	}
	return v.String()
}

// PickupDate parses the pickup question. ok is false when the answer is missing or not yy/MM/dd.
func (s Submission) PickupDate() (time.Time, bool) {
	v, ok := s.Answer(PickupDateLabel)
	if !ok || v.Kind != ValueText || v.Text == nil {
		return time.Time{}, false
	}
	date, err := time.Parse(PickupDateLayout, strings.TrimSpace(*v.Text))
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

// PickupDateOr returns the pickup date, falling back to the start of the day of now
func (s Submission) PickupDateOr(now time.Time) time.Time {
	if date, ok := s.PickupDate(); ok {
		return date
	}
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// PersistedSubmission is a submission plus the workflow state the operator owns
type PersistedSubmission struct {
	Submission
	CollectionID string          `json:"collectionId"`
	Type         SubmissionType  `json:"type"`
	State        SubmissionState `json:"state"`
	IsDelegated  bool            `json:"isDelegated"`
}

// NewPersistedSubmission wraps a freshly seen submission with default workflow state
func NewPersistedSubmission(sub Submission) PersistedSubmission {
	return PersistedSubmission{
		Submission: sub,
		Type:       TypeNew,
		State:      StateUnviewed,
	}
}
