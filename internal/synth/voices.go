package synth

// DefaultVoice is used for language tags without a mapped voice.
const DefaultVoice = "en-US-GuyNeural"

// voiceMap maps a language tag to the neural voice used for synthesis.
var voiceMap = map[string]string{
	"si-LK":  "si-LK-SameeraNeural",
	"en-US":  "en-US-GuyNeural",
	"fr-FR":  "fr-FR-HenriNeural",
	"ja-JP":  "ja-JP-NanamiNeural",
	"wuu-CN": "wuu-CN-XiaotongNeural",
	"es-ES":  "es-ES-ElviraNeural",
	"de-DE":  "de-DE-KatjaNeural",
	"ru-RU":  "ru-RU-SvetlanaNeural",
	"hi-IN":  "hi-IN-AaravNeural",
}

// VoiceFor returns the synthesis voice for a language tag, falling back to
// DefaultVoice for unmapped tags. Total: same input always yields the same
// voice.
func VoiceFor(lang string) string {
	if voice, ok := voiceMap[lang]; ok {
		return voice
	}
	return DefaultVoice
}
