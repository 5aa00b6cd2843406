package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	appconfig "github.com/saker-ai/translate-client/internal/config"
	applogger "github.com/saker-ai/translate-client/internal/logger"
	"github.com/saker-ai/translate-client/pkg/audio"
	"github.com/saker-ai/translate-client/pkg/translate"
)

// chunk of 100 ms at 16 kHz mono PCM16.
const chunkBytes = 3200

func main() {
	configPath := flag.String("config", "", "path to conf.yaml")
	profileName := flag.String("profile", "", "session profile filename from the profiles directory")
	flag.Parse()

	cfg, err := appconfig.LoadConfig(*configPath)
	if err != nil {
		fallback, _ := zap.NewProduction()
		defer fallback.Sync()
		fallback.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := applogger.New(cfg.Log)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	if *profileName != "" {
		profile, err := appconfig.ReadProfile(filepath.Join(cfg.ProfilesDir, *profileName))
		if err != nil {
			logger.Fatal("failed to read profile", zap.String("profile", *profileName), zap.Error(err))
		}
		appconfig.ApplyProfile(&cfg, profile)
		logger.Info("profile applied", zap.String("profile", *profileName))
	}

	if cfg.InputPath == "" {
		logger.Fatal("input_path is required")
	}

	output, err := openOutput(cfg.OutputPath)
	if err != nil {
		logger.Fatal("failed to open output file", zap.Error(err))
	}
	defer output.Close()

	closed := make(chan struct{})
	client := translate.NewClient(cfg.ClientConfig(), translate.Callbacks{
		OnText: func(text string) {
			fmt.Println(text)
		},
		OnAudio: func(pcm []byte) {
			if _, err := output.Write(pcm); err != nil {
				logger.Error("failed to write synthesized audio", zap.Error(err))
			}
		},
		OnError: func(message string) {
			logger.Error("session error", zap.String("message", message))
		},
		OnClose: func(code *int) {
			logger.Info("session closed by remote", zap.Any("code", codeValue(code)))
			close(closed)
		},
	}, logger)

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		logger.Fatal("connect failed", zap.Error(err))
	}
	defer client.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)
	go func() {
		done <- streamInput(client, cfg, logger)
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("streaming failed", zap.Error(err))
			return
		}
		// Input fully sent; wait for trailing results until the server
		// closes or the user interrupts.
		select {
		case <-closed:
		case <-stop:
		}
	case <-closed:
	case <-stop:
		logger.Info("interrupted")
	}
}

func streamInput(client *translate.Client, cfg appconfig.Config, logger *zap.Logger) error {
	data, err := os.ReadFile(cfg.InputPath)
	if err != nil {
		return err
	}

	if cfg.InputSampleRate != audio.WireRate {
		resampler, err := audio.NewResampler(cfg.InputSampleRate, audio.WireRate)
		if err != nil {
			return err
		}
		defer resampler.Close()

		resampled, err := resampler.Process(audio.BytesToInt16(data))
		if err != nil {
			return err
		}
		tail, err := resampler.Flush()
		if err != nil {
			return err
		}
		data = audio.Int16ToBytes(append(resampled, tail...))
		logger.Info("input resampled",
			zap.Int("from_rate", cfg.InputSampleRate),
			zap.Int("to_rate", audio.WireRate),
		)
	}

	for offset := 0; offset < len(data); offset += chunkBytes {
		end := offset + chunkBytes
		if end > len(data) {
			end = len(data)
		}
		if err := client.SendAudio(data[offset:end]); err != nil {
			return err
		}
		time.Sleep(100 * time.Millisecond)
	}
	return client.SendEnd()
}

func openOutput(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.Create(path)
}

func codeValue(code *int) any {
	if code == nil {
		return nil
	}
	return *code
}
