package prompts

import (
	"fmt"

	"github.com/agrovision-ai/agrovision-engine/pkg/models"
)

type chatStrings struct {
	name    string
	welcome string
	retry   string // delay seconds, attempt, max attempts
}

var chatLocales = map[models.Language]chatStrings{
	models.LanguageEnglish: {
		name:    "English",
		welcome: "Hello! I'm Agro Bot. How can I help you with your farm today? Ask me about crop diseases, soil health, or anything else!",
		retry:   "Connection is busy. Retrying in %ds... (Attempt %d/%d)",
	},
	models.LanguageHindi: {
		name:    "Hindi",
		welcome: "नमस्ते! मैं एग्रो बॉट हूँ। आज मैं आपके खेत में कैसे मदद कर सकता हूँ? मुझसे फसल रोगों, मिट्टी के स्वास्थ्य, या किसी और चीज़ के बारे में पूछें!",
		retry:   "कनेक्शन व्यस्त है। %d सेकंड में पुनः प्रयास कर रहा हूँ... (प्रयास %d/%d)",
	},
	models.LanguageKannada: {
		name:    "Kannada",
		welcome: "ನಮಸ್ಕಾರ! ನಾನು ಆಗ್ರೋ ಬಾಟ್. ಇಂದು ನಿಮ್ಮ ಜಮೀನಿಗೆ ನಾನು ಹೇಗೆ ಸಹಾಯ ಮಾಡಲಿ? ಬೆಳೆ ರೋಗಗಳು, ಮಣ್ಣಿನ ಆರೋಗ್ಯ, ಅಥವಾ ಬೇರೆ ಯಾವುದರ ಬಗ್ಗೆಯಾದರೂ ಕೇಳಿ!",
		retry:   "ಸಂಪರ್ಕವು ಕಾರ್ಯನಿರತವಾಗಿದೆ. %d ಸೆಕೆಂಡುಗಳಲ್ಲಿ ಮರುಪ್ರಯತ್ನಿಸಲಾಗುತ್ತಿದೆ... (ಪ್ರಯತ್ನ %d/%d)",
	},
}

// ChatRateLimitMessage replaces the reply when a chat turn stays rate limited after all retries.
const ChatRateLimitMessage = "Too many requests. I need to rest for a moment. Please try again shortly."

// NormalizeLanguage returns lang when it is supported and English otherwise.
func NormalizeLanguage(lang models.Language) models.Language {
	if _, ok := chatLocales[lang]; ok {
		return lang
	}
	return models.LanguageEnglish
}

// LanguageName is the English name of lang used inside system instructions.
func LanguageName(lang models.Language) string {
	return chatLocales[NormalizeLanguage(lang)].name
}

// WelcomeMessage is the first bot message of a fresh conversation.
func WelcomeMessage(lang models.Language) string {
	return chatLocales[NormalizeLanguage(lang)].welcome
}

// RetryNotice tells the user a rate-limited turn will be retried.
func RetryNotice(lang models.Language, delaySeconds, attempt, maxAttempts int) string {
	return fmt.Sprintf(chatLocales[NormalizeLanguage(lang)].retry, delaySeconds, attempt, maxAttempts)
}
