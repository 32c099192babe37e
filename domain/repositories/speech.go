package repositories

import "context"

// SpeechToText abstracts speech recognition services
type SpeechToText interface {
	// TranscribeAudio converts a complete audio clip to text
	TranscribeAudio(ctx context.Context, audioData []byte, config AudioConfig) (string, error)
}

// TextToSpeech abstracts text-to-speech services. The returned channel
// streams raw audio chunks and is closed when synthesis completes.
type TextToSpeech interface {
	ConvertTextToSpeech(ctx context.Context, text string, voice string) (<-chan []byte, error)
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}
