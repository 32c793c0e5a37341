package stage

import (
	"fmt"
	"strings"
)

// Name identifies one of the six pipeline stages.
type Name string

const (
	NameDownload   Name = "download"
	NameSeparate   Name = "separate"
	NameTranscribe Name = "transcribe"
	NameTranslate  Name = "translate"
	NameSynthesize Name = "synthesize"
	NameComposite  Name = "composite"
)

// Order lists stages in execution order.
var Order = []Name{
	NameDownload,
	NameSeparate,
	NameTranscribe,
	NameTranslate,
	NameSynthesize,
	NameComposite,
}

// Index returns the position of the stage in Order, or -1.
func (n Name) Index() int {
	for i, candidate := range Order {
		if candidate == n {
			return i
		}
	}
	return -1
}

// FailureLabel is the user-facing message reported when the stage fails.
func (n Name) FailureLabel() string {
	switch n {
	case NameDownload:
		return "下载视频失败"
	case NameSeparate:
		return "人声分离失败"
	case NameTranscribe:
		return "语音识别失败"
	case NameTranslate:
		return "翻译失败"
	case NameSynthesize:
		return "语音合成失败"
	case NameComposite:
		return "视频合成失败"
	default:
		return string(n) + " failed"
	}
}

// ASRMethod selects the speech recognition engine.
type ASRMethod string

const (
	ASRWhisperX ASRMethod = "WhisperX"
	ASRFunASR   ASRMethod = "FunASR"
)

// ASRMethods lists supported speech recognition engines.
var ASRMethods = []ASRMethod{ASRWhisperX, ASRFunASR}

// TranslationMethod selects the translation engine.
type TranslationMethod string

const (
	TranslationOpenAI TranslationMethod = "OpenAI"
	TranslationLLM    TranslationMethod = "LLM"
	TranslationGoogle TranslationMethod = "Google Translate"
	TranslationBing   TranslationMethod = "Bing Translate"
	TranslationErnie  TranslationMethod = "Ernie"
)

// TranslationMethods lists supported translation engines.
var TranslationMethods = []TranslationMethod{
	TranslationOpenAI,
	TranslationLLM,
	TranslationGoogle,
	TranslationBing,
	TranslationErnie,
}

// TTSMethod selects the speech synthesis engine.
type TTSMethod string

const (
	TTSXTTS      TTSMethod = "xtts"
	TTSCosyVoice TTSMethod = "cosyvoice"
	TTSEdge      TTSMethod = "EdgeTTS"
)

// TTSMethods lists supported speech synthesis engines.
var TTSMethods = []TTSMethod{TTSXTTS, TTSCosyVoice, TTSEdge}

// ParseASRMethod matches a method name case-insensitively.
func ParseASRMethod(value string) (ASRMethod, error) {
	for _, m := range ASRMethods {
		if strings.EqualFold(strings.TrimSpace(value), string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown asr method %q", value)
}

// ParseTranslationMethod matches a method name case-insensitively.
func ParseTranslationMethod(value string) (TranslationMethod, error) {
	for _, m := range TranslationMethods {
		if strings.EqualFold(strings.TrimSpace(value), string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown translation method %q", value)
}

// ParseTTSMethod matches a method name case-insensitively.
func ParseTTSMethod(value string) (TTSMethod, error) {
	for _, m := range TTSMethods {
		if strings.EqualFold(strings.TrimSpace(value), string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown tts method %q", value)
}
