package service

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// DefaultLanguage is used when no script or statistical match is conclusive.
const DefaultLanguage = "eng"

// minStatisticalLength is the shortest Latin-script input worth handing to the
// statistical identifier; below it the default language wins.
const minStatisticalLength = 30

// scriptRange maps a Unicode block to an ISO 639-3 code. The table is ordered:
// the first range containing any rune of the input wins, which makes detection
// work on single-word queries where statistical identification cannot.
type scriptRange struct {
	lo, hi rune
	code   string
}

var scriptRanges = []scriptRange{
	{0x0900, 0x097F, "hin"}, // Devanagari
	{0x0980, 0x09FF, "ben"}, // Bengali
	{0x0B80, 0x0BFF, "tam"}, // Tamil
	{0x0C00, 0x0C7F, "tel"}, // Telugu
	{0x0C80, 0x0CFF, "kan"}, // Kannada
	{0x0D00, 0x0D7F, "mal"}, // Malayalam
	{0x0A80, 0x0AFF, "guj"}, // Gujarati
	{0x0A00, 0x0A7F, "pan"}, // Gurmukhi
	{0x0600, 0x06FF, "ara"}, // Arabic
	{0x0750, 0x077F, "ara"}, // Arabic Supplement
	{0x4E00, 0x9FFF, "zho"}, // CJK Unified
	{0x3400, 0x4DBF, "zho"}, // CJK Extension A
	{0x3040, 0x30FF, "jpn"}, // Hiragana/Katakana
	{0xAC00, 0xD7AF, "kor"}, // Hangul Syllables
	{0x1100, 0x11FF, "kor"}, // Hangul Jamo
	{0x0400, 0x04FF, "rus"}, // Cyrillic
	{0x0E00, 0x0E7F, "tha"}, // Thai
}

var languageNames = map[string]string{
	"eng": "English",
	"hin": "Hindi",
	"ben": "Bengali",
	"tam": "Tamil",
	"tel": "Telugu",
	"kan": "Kannada",
	"mal": "Malayalam",
	"guj": "Gujarati",
	"pan": "Punjabi",
	"mar": "Marathi",
	"spa": "Spanish",
	"fra": "French",
	"deu": "German",
	"por": "Portuguese",
	"ita": "Italian",
	"jpn": "Japanese",
	"kor": "Korean",
	"zho": "Chinese",
	"ara": "Arabic",
	"rus": "Russian",
	"tha": "Thai",
	"tur": "Turkish",
	"vie": "Vietnamese",
	"ind": "Indonesian",
	"msa": "Malay",
}

var fallbackMessages = map[string]string{
	"eng": "I'm sorry, I couldn't find relevant information to answer your question. Please try rephrasing or contact our support team directly.",
	"hin": "क्षमा करें, मुझे आपके प्रश्न का उत्तर देने के लिए प्रासंगिक जानकारी नहीं मिली। कृपया दोबारा प्रयास करें या हमारी सहायता टीम से संपर्क करें।",
	"spa": "Lo siento, no pude encontrar información relevante para responder su pregunta. Por favor, intente reformular o contacte a nuestro equipo de soporte.",
	"fra": "Désolé, je n'ai pas trouvé d'informations pertinentes pour répondre à votre question. Veuillez reformuler ou contacter notre équipe support.",
}

// ResolveLanguage detects the language of a message as an ISO 639-3 code. It
// tries deterministic script-range matching first, then a statistical
// identifier for longer Latin-script text, then the default language.
func ResolveLanguage(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return DefaultLanguage
	}

	for _, r := range scriptRanges {
		for _, ch := range trimmed {
			if ch >= r.lo && ch <= r.hi {
				return r.code
			}
		}
	}

	if len([]rune(trimmed)) >= minStatisticalLength {
		info := whatlanggo.Detect(trimmed)
		if info.IsReliable() {
			if code := info.Lang.Iso6393(); code != "" {
				return code
			}
		}
	}

	return DefaultLanguage
}

// LanguageName returns the English name of a resolved code, used to request
// the response language in the grounded prompt.
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return "English"
}

// FallbackMessage returns the pre-localized no-match answer for a resolved
// code. Codes without a localized variant fall back to English so that the
// same input always resolves prompt language and fallback consistently.
func FallbackMessage(code string) string {
	if msg, ok := fallbackMessages[code]; ok {
		return msg
	}
	return fallbackMessages[DefaultLanguage]
}
