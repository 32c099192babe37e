package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/zinohome/cozychat-voice/adapters"
	"github.com/zinohome/cozychat-voice/adapters/gateway"
	"github.com/zinohome/cozychat-voice/adapters/llm"
	"github.com/zinohome/cozychat-voice/config"
	"github.com/zinohome/cozychat-voice/domain/repositories"
	"github.com/zinohome/cozychat-voice/internal/audio"
	"github.com/zinohome/cozychat-voice/internal/transport"
	"github.com/zinohome/cozychat-voice/internal/viz"
	"github.com/zinohome/cozychat-voice/usecase"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	personalityID := flag.String("personality", "luna", "personality to talk to")
	userID := flag.String("user", "local-user", "user identifier for session history")
	meter := flag.Bool("meter", true, "show a terminal level meter while the call is live")
	flag.Parse()

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Conversation history lives locally on the client
	sessions := adapters.NewMemorySessionRepository()
	personalities := adapters.NewMemoryPersonalityRepository()

	// Session titling: Gemini when a key is present
	var titler repositories.SessionTitler
	if os.Getenv("GEMINI_API_KEY") != "" {
		titler, err = llm.NewGeminiTitler(logger)
		if err != nil {
			logger.Fatal("Failed to initialize Gemini titler", zap.Error(err))
		}
	} else {
		titler = llm.NewMockTitler()
	}

	issuer := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Token, *personalityID, logger)

	callService := usecase.NewVoiceCallService(
		sessions,
		personalities,
		titler,
		issuer,
		func(tcfg transport.Config) transport.Transport {
			return transport.NewRealtimeTransport(tcfg, logger)
		},
		func() audio.Capture {
			return audio.NewMicrophoneCapture(audio.DefaultSampleRate, logger)
		},
		func() audio.Sink {
			return audio.NewSpeakerSink(audio.DefaultSampleRate, logger)
		},
		logger,
	)

	ctx := context.Background()
	session, err := callService.StartCall(ctx, *userID, *personalityID)
	if err != nil {
		logger.Fatal("Failed to start call", zap.Error(err))
	}
	fmt.Printf("Connected to %s (session %s). Press Ctrl+C to hang up.\n", *personalityID, session.ID)

	meterDone := make(chan struct{})
	if *meter {
		go runMeter(callService, meterDone)
	} else {
		close(meterDone)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	close(meterDone)
	fmt.Println("\nHanging up...")

	endCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := callService.EndCall(endCtx); err != nil {
		logger.Error("Failed to end call cleanly", zap.Error(err))
	}

	if updated, err := sessions.GetByID(endCtx, session.ID); err == nil {
		fmt.Printf("Call ended: %s (%d messages)\n", updated.Title, len(updated.Messages))
	}
}

// runMeter draws a one-line level meter from the agent's audio until
// done closes.
func runMeter(calls *usecase.VoiceCallService, done <-chan struct{}) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	const width = 40
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			pipe := calls.RemoteVisualizer()
			if pipe == nil {
				continue
			}
			snap := pipe.Latest()
			if snap == nil {
				continue
			}
			intensity := viz.Intensity(snap.Frequency)
			filled := int(intensity * width)
			fmt.Printf("\r[%s%s]", strings.Repeat("#", filled), strings.Repeat(" ", width-filled))
		}
	}
}
