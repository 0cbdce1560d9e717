package textloom

import (
	"encoding/json"
	"fmt"
)

// BuildSystemPrompt builds the system instruction for a provider request.
// All backend variants share the same prompt so that cache keys stay
// comparable across providers.
func BuildSystemPrompt(req Request) string {
	var prompt string

	switch req.Task {
	case TaskTranslate:
		target := GetLanguageName(req.TargetLang)
		prompt = fmt.Sprintf(`You are an expert native translator. Translate the provided texts into idiomatic %s with the fluency of a highly educated native speaker.
- Avoid literal translations; rephrase so the result sounds natural to a native reader.
- Never translate idioms literally; use natural %s equivalents.
- Do NOT translate HTML tags, attributes, URLs, email addresses, or content inside backticks.
- Do NOT translate variables or placeholders (e.g. {{name}}, {count}, %%s, $1).
- Preserve meaningful whitespace and use idiomatic punctuation for the target language.`, target, target)

	case TaskParaphrase:
		lang := GetLanguageName(req.TargetLang)
		prompt = fmt.Sprintf(`You are an expert rewriter of %s text. Rewrite each provided text so that it keeps its original meaning but uses different wording.
- Keep the same tone and level of formality.
- Keep roughly the same length.
- If a text contains HTML fragments, code, or placeholders, preserve them exactly.`, lang)

	case TaskSummarize:
		lang := GetLanguageName(req.TargetLang)
		prompt = fmt.Sprintf(`You are an expert at summarizing %s text. Summarize each provided text, keeping the key points and essential meaning.
- Write the summary in %s.
- If a text contains HTML fragments or code, preserve them where possible.`, lang, lang)

	case TaskCustom:
		lang := GetLanguageName(req.TargetLang)
		prompt = fmt.Sprintf(`You are an expert text processing assistant working in %s. Follow the user's instructions exactly for each provided text.`, lang)
		if req.ExtraPrompt != "" {
			prompt += "\n\nInstructions: " + req.ExtraPrompt
		}

	default:
		prompt = "You are an expert text processing assistant. Process each provided text."
	}

	if req.RTL {
		prompt += "\n- The texts are in a right-to-left (RTL) language; preserve that characteristic and the reading direction of the content."
	}

	prompt += `

Return a valid JSON object with a single key "texts" containing an array of strings, one result per input text, in the exact same order as the input.
Example: { "texts": ["result 1", "result 2"] }
Do NOT wrap the JSON in Markdown code blocks.`

	return prompt
}

// BuildUserMessage serializes the batch of texts as the user message.
func BuildUserMessage(req Request) string {
	data, _ := json.Marshal(req.Texts)
	return string(data)
}
