package stt_test

import (
	"github.com/zinohome/cozychat-voice/adapters/stt"
	"github.com/zinohome/cozychat-voice/domain/repositories"
)

var _ repositories.SpeechToText = &stt.GoogleSpeechToText{}
