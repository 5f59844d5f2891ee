package extract

import "strings"

var refusalPatterns = []string{
	"i can't assist",
	"i cannot assist",
	"i can't help",
	"i cannot help",
	"i'm unable to",
	"i am unable to",
	"there is no text",
	"no text to extract",
	"cannot extract",
	"unable to extract",
	"i don't see",
	"i do not see",
	"there doesn't appear",
	"there does not appear",
	"sorry, but",
	"i apologize",
	"as an ai",
}

// IsRefusal reports whether a completion reads as a model refusal rather than content.
func IsRefusal(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range refusalPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// IsUsableText reports whether a page transcription looks like document content.
// Very short replies without digits or punctuation are treated as noise.
func IsUsableText(text string) bool {
	t := strings.TrimSpace(text)
	if len(t) < 10 {
		return false
	}
	if IsRefusal(t) {
		return false
	}
	if len(t) < 50 && !strings.ContainsAny(t, "0123456789-:/.") {
		return false
	}
	return true
}
