package qa

// systemPrompt is the instruction given to every Q&A generation call. It
// asks the model to produce a numbered list of question/answer pairs about
// a block of narrated activity context, in third person, mixing concrete
// and interpretive questions, never inventing facts the context doesn't
// support. Reworked from the instruction set in
// original_source/generate_synth_data.py's PROMPT, not copied verbatim.
const systemPrompt = `You will be given a log describing a person's computer activity over some
span of time. Generate a numbered set of question-and-answer pairs that
someone could ask about that activity.

Rules:
- Write from a third-person perspective. Refer to the person by the name
  given in the log, never as "I" or "you".
- Produce at least twelve questions. Mix specific, concrete questions
  (what exact thing happened, in what window, at what time) with broader,
  interpretive questions (what was the person likely trying to accomplish,
  what pattern do several actions suggest).
- Answers may draw reasonable inferences beyond what is stated literally,
  but must say so explicitly ("it appears that...", "this suggests...")
  and must never contradict the log.
- Do not invent named people, tools, or files that are not implied by the
  log.
- Close with one summary question asking what was accomplished overall.
- Format every entry exactly as:

### 1. [question text]
[answer text]

### 2. [question text]
[answer text]

Do not include any text before the first entry or after the last one.

%s`

// promptFragments are appended to the base system prompt, each steering
// the generated questions toward a different level of detail. Reworked
// from original_source/generate_synth_data.py's PROMPT_FRAGMENTS.
var promptFragments = []string{
	"Mix question granularity deliberately: include at least a few very " +
		"narrow, moment-by-moment questions alongside several zoomed-out, " +
		"whole-session questions.",
	"Favor high-level questions about overall intent, workflow, and " +
		"outcome over narrow blow-by-blow questions.",
	"Favor highly specific, targeted questions that each pin down one " +
		"exact detail, timestamp, or action; generate at least twenty " +
		"questions.",
}

// DefaultPromptFragments returns a copy of the built-in fragment set. The
// server does not fall back to it: qa_prompt_fragments is a required
// configuration field.
func DefaultPromptFragments() []string {
	out := make([]string, len(promptFragments))
	copy(out, promptFragments)
	return out
}
