package qa

import (
	"regexp"
	"strings"

	"ctrain/pipeline"
)

var (
	thinkBlockRe  = regexp.MustCompile(`(?s)<think>.*?</think>`)
	separatorRe   = regexp.MustCompile(`^-+$`)
	sectionHeadRe = regexp.MustCompile(`(?m)^###\s*\d+\.\s*`)
)

// ParseQuestions turns one raw model response into QAPairs, following the
// exact parsing rules of original_source/generate_synth_data.py's
// parse_questions: strip any <think>...</think> block, drop all-hyphen
// separator lines, then split on "### N." section headers where the first
// line of each section is the question and the rest is the answer.
func ParseQuestions(response, model, fragment string) []pipeline.QAPair {
	cleaned := thinkBlockRe.ReplaceAllString(response, "")

	var kept []string
	for _, line := range strings.Split(cleaned, "\n") {
		line = strings.TrimSpace(line)
		if separatorRe.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	cleaned = strings.Join(kept, "\n")

	sections := sectionHeadRe.Split(cleaned, -1)

	var pairs []pipeline.QAPair
	for _, section := range sections {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		lines := strings.SplitN(section, "\n", 2)
		question := strings.TrimSpace(lines[0])
		var answer string
		if len(lines) > 1 {
			answer = cleanAnswer(lines[1])
		}
		if question == "" {
			continue
		}
		pairs = append(pairs, pipeline.QAPair{
			Question: question,
			Answer:   answer,
			Model:    model,
			Fragment: fragment,
		})
	}
	return pairs
}

func cleanAnswer(answer string) string {
	return strings.TrimSpace(answer)
}
