package convert

import "strings"

const conversionPrompt = `You are a medical data extraction specialist. Extract every laboratory test result from the
blood test report below.

Rules:
1. One analyte per measured test. Use the analyte name exactly as printed.
2. value is a number whenever the result is numeric. Keep qualitative results ("negative", "<5") as text.
3. Copy units and reference ranges exactly as written. Use null when absent.
4. When the report gives separate ranges by sex, use the general range if present, otherwise the first one.
5. flag is "H" or "L" only when the report marks the value; otherwise null.
6. Identifier placeholders such as [NAME] or [DATE] are not results; ignore them.
7. Never invent analytes that are not in the text.`

// buildPrompt combines the conversion rules, the operator instruction and the report.
func buildPrompt(instruction, text string) string {
	var sb strings.Builder
	sb.WriteString(conversionPrompt)
	if s := strings.TrimSpace(instruction); s != "" {
		sb.WriteString("\n\nOperator instruction: ")
		sb.WriteString(s)
	}
	sb.WriteString("\n\nReport text:\n")
	sb.WriteString(text)
	return sb.String()
}
