package usecase

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/zinohome/cozychat-voice/domain/entities"
	"github.com/zinohome/cozychat-voice/internal/audio"
)

func TestSendClipAppendsTranscribedMessage(t *testing.T) {
	sessions := newMemorySessionRepo()
	session := entities.NewSession("user-1", "luna")
	sessions.Create(context.Background(), session)

	stt := &stubSTT{transcript: "remind me to water the plants"}
	svc := NewVoiceClipService(sessions, stt, zaptest.NewLogger(t))

	clip := &audio.Clip{
		WAV:        audio.EncodeWAV([]int16{1, 2, 3, 4}, audio.DefaultSampleRate),
		Duration:   1500 * time.Millisecond,
		SampleRate: audio.DefaultSampleRate,
	}

	message, err := svc.SendClip(context.Background(), session.ID, clip)
	if err != nil {
		t.Fatalf("SendClip: %v", err)
	}
	if message.Content != "remind me to water the plants" {
		t.Fatalf("content = %q", message.Content)
	}
	if message.Source != entities.MessageSourceVoiceClip {
		t.Fatalf("source = %v, want voice_clip", message.Source)
	}
	if message.DurationMs != 1500 {
		t.Fatalf("duration = %dms, want 1500", message.DurationMs)
	}
	if stt.lastConfig.SampleRate != audio.DefaultSampleRate {
		t.Fatalf("transcription sample rate = %d", stt.lastConfig.SampleRate)
	}

	stored, _ := sessions.GetByID(context.Background(), session.ID)
	if len(stored.Messages) != 1 {
		t.Fatalf("stored %d messages, want 1", len(stored.Messages))
	}
}

func TestSendClipRejectsEmptyClips(t *testing.T) {
	svc := NewVoiceClipService(newMemorySessionRepo(), &stubSTT{}, zaptest.NewLogger(t))

	if _, err := svc.SendClip(context.Background(), "s1", nil); !errors.Is(err, ErrEmptyClip) {
		t.Fatalf("nil clip: got %v, want ErrEmptyClip", err)
	}
	if _, err := svc.SendClip(context.Background(), "s1", &audio.Clip{}); !errors.Is(err, ErrEmptyClip) {
		t.Fatalf("zero clip: got %v, want ErrEmptyClip", err)
	}
}

func TestSendClipSilentTranscriptIsNotPersisted(t *testing.T) {
	sessions := newMemorySessionRepo()
	session := entities.NewSession("user-1", "luna")
	sessions.Create(context.Background(), session)

	svc := NewVoiceClipService(sessions, &stubSTT{transcript: ""}, zaptest.NewLogger(t))
	clip := &audio.Clip{
		WAV:        audio.EncodeWAV([]int16{0, 0}, audio.DefaultSampleRate),
		Duration:   time.Second,
		SampleRate: audio.DefaultSampleRate,
	}

	if _, err := svc.SendClip(context.Background(), session.ID, clip); !errors.Is(err, ErrEmptyClip) {
		t.Fatalf("got %v, want ErrEmptyClip", err)
	}
	stored, _ := sessions.GetByID(context.Background(), session.ID)
	if len(stored.Messages) != 0 {
		t.Fatal("silent clip was persisted")
	}
}

func TestReadMessageStreamsToSink(t *testing.T) {
	sessions := newMemorySessionRepo()
	personalities := &memoryPersonalityRepo{personalities: map[string]*entities.Personality{
		"luna": {ID: "luna", Name: "Luna", Voice: "shimmer"},
	}}

	session := entities.NewSession("user-1", "luna")
	message := session.AppendMessage(entities.MessageRoleAssistant, "of course, friend", entities.MessageSourceText, 0)
	sessions.Create(context.Background(), session)

	tts := &stubTTS{chunks: [][]byte{{1, 2}, {3, 4}, {5, 6}}}
	svc := NewReadAloudService(sessions, personalities, tts, zaptest.NewLogger(t))

	sink := audio.NewMemorySink()
	if err := svc.ReadMessage(context.Background(), session.ID, message.ID, sink); err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	chunks := sink.Chunks()
	if len(chunks) != 3 {
		t.Fatalf("sink received %d chunks, want 3", len(chunks))
	}
	if !bytes.Equal(chunks[0], []byte{1, 2}) {
		t.Fatalf("first chunk = %v", chunks[0])
	}
}

func TestReadMessageUnknownMessage(t *testing.T) {
	sessions := newMemorySessionRepo()
	session := entities.NewSession("user-1", "luna")
	sessions.Create(context.Background(), session)

	svc := NewReadAloudService(sessions, &memoryPersonalityRepo{personalities: map[string]*entities.Personality{}}, &stubTTS{}, zaptest.NewLogger(t))
	if err := svc.ReadMessage(context.Background(), session.ID, "missing", audio.NewMemorySink()); err == nil {
		t.Fatal("expected error for unknown message")
	}
}

func TestReadTextEmpty(t *testing.T) {
	svc := NewReadAloudService(newMemorySessionRepo(), &memoryPersonalityRepo{personalities: map[string]*entities.Personality{}}, &stubTTS{}, zaptest.NewLogger(t))
	if err := svc.ReadText(context.Background(), "", "shimmer", audio.NewMemorySink()); !errors.Is(err, ErrNothingToRead) {
		t.Fatalf("got %v, want ErrNothingToRead", err)
	}
}
