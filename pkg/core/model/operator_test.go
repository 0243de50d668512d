package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(questions []Question) []string {
	out := make([]string, len(questions))
	for i, q := range questions {
		out[i] = q.Name
	}
	return out
}

func TestWithOperatorQuestions(t *testing.T) {
	form := []Question{{ID: "q1", Name: CustomerNameLabel, Value: TextValue("Anna")}}

	got := WithOperatorQuestions(form)

	assert.Equal(t, []string{CustomerNameLabel, AmountDueLabel, RemainingAmountLabel, NoteLabel}, names(got))
	assert.Len(t, form, 1)

	again := WithOperatorQuestions(got)
	assert.Equal(t, names(got), names(again))
}

func TestMergeOperatorQuestions(t *testing.T) {
	stored := WithOperatorQuestions([]Question{{ID: "q1", Name: CustomerNameLabel, Value: TextValue("Anna")}})
	stored[1].Value = TextValue("40")

	t.Run("remote without operator questions keeps answers", func(t *testing.T) {
		remote := []Question{{ID: "q1", Name: CustomerNameLabel, Value: TextValue("Anna Smith")}}

		got := MergeOperatorQuestions(remote, stored)

		assert.Equal(t, []string{CustomerNameLabel, AmountDueLabel, RemainingAmountLabel, NoteLabel}, names(got))
		assert.Equal(t, "Anna Smith", got[0].Value.String())
		assert.Equal(t, "40", got[1].Value.String())
		assert.Equal(t, ValueNull, got[2].Value.Kind)
	})

	t.Run("unanswered remote operator question keeps answer", func(t *testing.T) {
		remote := WithOperatorQuestions([]Question{{ID: "q1", Name: CustomerNameLabel, Value: TextValue("Anna")}})

		got := MergeOperatorQuestions(remote, stored)

		require.Len(t, got, 4)
		assert.Equal(t, "40", got[1].Value.String())
	})

	t.Run("answered remote question wins", func(t *testing.T) {
		remote := []Question{{ID: "n", Name: NoteLabel, Value: TextValue("gluten free")}}
		withNote := append([]Question{}, stored...)
		withNote[3].Value = TextValue("call first")

		got := MergeOperatorQuestions(remote, withNote)

		assert.Equal(t, []string{NoteLabel, AmountDueLabel, RemainingAmountLabel}, names(got))
		assert.Equal(t, "gluten free", got[0].Value.String())
		assert.Equal(t, "40", got[1].Value.String())
	})

	t.Run("nothing stored", func(t *testing.T) {
		got := MergeOperatorQuestions(nil, nil)
		assert.Equal(t, []string{AmountDueLabel, RemainingAmountLabel, NoteLabel}, names(got))
	})
}
