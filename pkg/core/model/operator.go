package model

// Labels of the questions the operator fills in. The form never asks them.
const (
	AmountDueLabel       = "Amount due"
	RemainingAmountLabel = "Remaining amount"
	NoteLabel            = "Note"
)

// OperatorQuestions returns the operator questions with empty answers, in display order
func OperatorQuestions() []Question {
	return []Question{
		{ID: "amountDue", Name: AmountDueLabel, Type: "ShortAnswer", Value: NullValue()},
		{ID: "remainingAmount", Name: RemainingAmountLabel, Type: "ShortAnswer", Value: NullValue()},
		{ID: "note", Name: NoteLabel, Type: "LongAnswer", Value: NullValue()},
	}
}

// WithOperatorQuestions returns a copy of questions with every operator question that is not
// already present appended, unanswered.
func WithOperatorQuestions(questions []Question) []Question {
	present := make(map[string]bool, len(questions))
	for _, q := range questions {
		present[q.Name] = true
	}

	out := append([]Question{}, questions...)
	for _, q := range OperatorQuestions() {
		if !present[q.Name] {
			out = append(out, q)
		}
	}
	return out
}

// MergeOperatorQuestions refreshes stored questions with remote ones. An operator answer in stored
// survives when remote leaves that question out or unanswered. The result always carries every
// operator question.
func MergeOperatorQuestions(remote, stored []Question) []Question {
	out := append([]Question{}, remote...)

	for _, op := range OperatorQuestions() {
		kept, ok := answered(stored, op.Name)
		if !ok {
			continue
		}

		i := indexOf(out, op.Name)
		switch {
		case i < 0:
			out = append(out, kept)
		case out[i].Value.Kind == ValueNull:
			out[i] = kept
		}
	}

	return WithOperatorQuestions(out)
}

func answered(questions []Question, name string) (Question, bool) {
	i := indexOf(questions, name)
	if i < 0 || questions[i].Value.Kind == ValueNull {
		return Question{}, false
	}
	return questions[i], true
}

func indexOf(questions []Question, name string) int {
	for i, q := range questions {
		if q.Name == name {
			return i
		}
	}
	return -1
}
