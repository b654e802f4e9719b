package qa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseQuestionsSplitsNumberedSections(t *testing.T) {
	response := "### 1. What did the person open first?\n" +
		"They opened a text editor.\n\n" +
		"### 2. What happened next?\n" +
		"They began editing a file.\n"

	pairs := ParseQuestions(response, "model-a", "fragment-a")
	require.Len(t, pairs, 2)
	require.Equal(t, "What did the person open first?", pairs[0].Question)
	require.Equal(t, "They opened a text editor.", pairs[0].Answer)
	require.Equal(t, "What happened next?", pairs[1].Question)
	require.Equal(t, "model-a", pairs[1].Model)
	require.Equal(t, "fragment-a", pairs[1].Fragment)
}

func TestParseQuestionsStripsThinkBlockAndSeparators(t *testing.T) {
	response := "<think>internal reasoning here\nmore reasoning</think>\n" +
		"---------\n" +
		"### 1. Summary question?\n" +
		"Summary answer.\n"

	pairs := ParseQuestions(response, "model-a", "fragment-a")
	require.Len(t, pairs, 1)
	require.Equal(t, "Summary question?", pairs[0].Question)
	require.Equal(t, "Summary answer.", pairs[0].Answer)
}

func TestParseQuestionsHandlesMissingAnswer(t *testing.T) {
	pairs := ParseQuestions("### 1. A question with no answer\n", "m", "f")
	require.Len(t, pairs, 1)
	require.Equal(t, "A question with no answer", pairs[0].Question)
	require.Equal(t, "", pairs[0].Answer)
}

func TestParseQuestionsIgnoresEmptyInput(t *testing.T) {
	pairs := ParseQuestions("", "m", "f")
	require.Empty(t, pairs)
}

func TestParseQuestionsTrimsIndentedLines(t *testing.T) {
	response := "  ### 1. Indented question?\n" +
		"    Indented answer line.\n" +
		"  more answer text  \n"

	pairs := ParseQuestions(response, "m", "f")
	require.Len(t, pairs, 1)
	require.Equal(t, "Indented question?", pairs[0].Question)
	require.Equal(t, "Indented answer line.\nmore answer text", pairs[0].Answer)
}
