package anonymize

import (
	"fmt"
	"strings"
)

const anonymizePrompt = `You are a medical data anonymization assistant. The user message is the text of a blood test report.
Return the same text with every personal identifier replaced by one of these placeholders:
[NAME] for person names, [DOB] for dates of birth, [DATE] for any other date,
[NATIONAL_ID] for national or social security numbers, [MRN] for medical record and patient ID numbers,
[EMAIL] for email addresses, [PHONE] for phone numbers, [ADDRESS] for postal addresses.

Rules:
- Do not change any number, unit, analyte name or reference range.
- Keep line breaks, ordering and table layout exactly as written.
- Do not summarize, translate, explain or add anything.
Return only the anonymized text.`

// correctivePrompt names what the previous pass got wrong.
func correctivePrompt(r checkResult) string {
	var issues []string
	if len(r.leaked) > 0 {
		names := make([]string, len(r.leaked))
		for i, c := range r.leaked {
			names[i] = c.Placeholder()
		}
		issues = append(issues, "identifiers were left in place; they must become "+strings.Join(names, ", "))
	}
	if len(r.lost) > 0 {
		issues = append(issues, fmt.Sprintf("lab values were changed or dropped (%s); every number must be kept exactly", strings.Join(r.lost, ", ")))
	}
	if r.refused {
		issues = append(issues, "the reply was not the report text")
	}
	return anonymizePrompt + "\n\nYour previous attempt was rejected: " + strings.Join(issues, "; ") +
		".\nYou are an anonymization system. Replace identifiers only and copy everything else verbatim."
}
