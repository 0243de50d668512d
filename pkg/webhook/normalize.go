package webhook

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/jakechorley/cake-orders/pkg/core/model"
)

// NormalizeSubmission decodes a webhook body into a Submission. The body may be
// {"submission": {...}}, {"data": {"submission": {...}}} or the submission itself.
// The operator questions are appended when the form does not already carry them.
func NormalizeSubmission(body []byte) (model.Submission, error) {
	raw, err := unwrapSubmission(body)
	if err != nil {
		return model.Submission{}, err
	}

	var sub model.Submission
	if err := json.Unmarshal(raw, &sub); err != nil {
		return model.Submission{}, asDecodeError(err, raw)
	}
	if sub.SubmissionID == "" {
		return model.Submission{}, &model.DecodeError{Msg: "submission has no submissionId", Raw: string(raw)}
	}

	sub.Questions = model.WithOperatorQuestions(sub.Questions)
	return sub, nil
}

func unwrapSubmission(body []byte) (json.RawMessage, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &model.DecodeError{Msg: "body is not a JSON object", Raw: string(body), Err: err}
	}

	if inner, ok := envelope["submission"]; ok && isObject(inner) {
		return inner, nil
	}

	if data, ok := envelope["data"]; ok {
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal(data, &wrapped); err == nil {
			if inner, ok := wrapped["submission"]; ok && isObject(inner) {
				return inner, nil
			}
		}
	}

	return body, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func asDecodeError(err error, raw []byte) error {
	var decodeErr *model.DecodeError
	if errors.As(err, &decodeErr) {
		return decodeErr
	}
	return &model.DecodeError{Msg: "body is not a submission", Raw: string(raw), Err: err}
}
