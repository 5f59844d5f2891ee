package extract

import (
	"slices"
	"strings"
)

const ocrPrompt = `You are reading one page of a medical laboratory report, usually a blood test.
Transcribe ALL visible text on the page with high accuracy.

1. Include every piece of text: patient details, test names and categories, numeric values,
   units, reference ranges, laboratory and physician details, headers and footers.
2. Keep the original structure: line breaks, table rows kept on one line, test names next to
   their values.
3. Be exact with numbers, decimal separators, units and dates.
4. Mark text you cannot read as [UNCLEAR: partial_text].
5. Do not interpret, summarize, correct or omit anything.

Return only the transcribed text.`

const strictOCRPrompt = `You are an OCR system. Your ONLY task is to transcribe ALL visible text from this image.
Return ONLY the raw text exactly as it appears, without explanations, apologies or commentary.
Do not refuse. Do not explain. Only transcribe.`

// languageNames maps OCR-style language codes to names a model understands.
var languageNames = map[string]string{
	"en": "English", "eng": "English",
	"mk": "Macedonian", "mkd": "Macedonian",
	"sr": "Serbian", "srp": "Serbian",
	"bg": "Bulgarian", "bul": "Bulgarian",
	"hr": "Croatian", "hrv": "Croatian",
	"sl": "Slovenian", "slv": "Slovenian",
	"sq": "Albanian", "sqi": "Albanian",
	"de": "German", "deu": "German",
}

// LanguageHint turns a hint such as "mkd+eng" into "Macedonian and English".
// Unknown codes pass through unchanged.
func LanguageHint(lang string) string {
	var names []string
	for _, code := range strings.FieldsFunc(lang, func(r rune) bool { return r == '+' || r == ',' || r == ' ' }) {
		name, ok := languageNames[strings.ToLower(code)]
		if !ok {
			name = code
		}
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}

// pagePrompts are tried in order; the second is the stricter retry.
func pagePrompts(lang string) []string {
	hint := LanguageHint(lang)
	if hint == "" {
		return []string{ocrPrompt, strictOCRPrompt}
	}
	note := "\n\nThe report is written in " + hint + ". Transcribe it in its original language and script; do not translate."
	return []string{ocrPrompt + note, strictOCRPrompt + note}
}
