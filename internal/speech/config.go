package speech

import "time"

// Default voice for TTS. Change this constant to switch voices.
// Full list: https://learn.microsoft.com/en-us/azure/ai-services/speech-service/language-support
const DefaultVoice = "en-US-AvaNeural"

// Audio format returned by Azure and expected by the player.
const DefaultAudioFormat = "riff-24khz-16bit-mono-pcm"

// Audio parameters matching the default format.
const (
	SampleRate   = 24000
	ChannelCount = 1
	BitDepth     = 16
)

// Env var names for Azure Speech credentials.
const (
	EnvAzureSpeechKey    = "AZURE_SPEECH_KEY"
	EnvAzureSpeechRegion = "AZURE_SPEECH_REGION"
)

// Coordinator defaults.
const (
	// DefaultAdHocSpacing is the minimum gap between two ad-hoc cues.
	DefaultAdHocSpacing = 8 * time.Second
	// DefaultResolveTimeout bounds synchronous fallback generation.
	DefaultResolveTimeout = 6 * time.Second
)

// Cache defaults.
const (
	// DefaultCueMaxAge is how long a generated cue stays fresh.
	DefaultCueMaxAge = 30 * time.Minute
	// DefaultGenerationTimeout bounds one background pre-generation.
	DefaultGenerationTimeout = 20 * time.Second
)
