// solace - A compassionate terminal chat companion.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/solaceapp/solace/internal/cache"
	"github.com/solaceapp/solace/internal/chat"
	"github.com/solaceapp/solace/internal/completion"
	"github.com/solaceapp/solace/internal/config"
	"github.com/solaceapp/solace/internal/model"
	"github.com/solaceapp/solace/internal/remote"
	"github.com/solaceapp/solace/internal/transcribe"
	"github.com/solaceapp/solace/internal/tui"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configDir := flag.String("config", "", "configuration directory (default ~/.solace)")
	audioFile := flag.String("audio", "", "audio recording to transcribe and send as the opening turn")
	flag.Parse()

	if *showVersion {
		fmt.Printf("solace %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	cfg, err := loadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, *audioFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(dir string) (*config.Config, error) {
	if dir != "" {
		return config.LoadFrom(dir)
	}
	return config.Load()
}

func run(cfg *config.Config, audioFile string) error {
	// Keep the TUI clean: log to a file next to the cache.
	if f := openLogFile(cfg); f != nil {
		defer f.Close()
		log.SetOutput(f)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Cache.Path), 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	store, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer store.Close()

	completer := completion.NewClient(cfg.Completion.APIKey).
		WithBaseURL(cfg.Completion.BaseURL).
		WithModel(cfg.Completion.Model).
		WithTemperature(cfg.Completion.Temperature)

	remoteLog := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.APIKey)

	poller := transcribe.NewPoller(transcribe.NewClient(cfg.Transcribe.BaseURL, cfg.Transcribe.APIKey)).
		WithInterval(cfg.PollInterval()).
		WithMaxAttempts(cfg.Transcribe.MaxPollAttempts)

	conv := model.NewConversation(cfg.UserID)
	engine := chat.NewEngine(conv, store, remoteLog, completer,
		chat.WithRevealInterval(cfg.RevealInterval()),
		chat.WithTranscriber(poller),
	)

	if audioFile != "" {
		if err := sendAudio(context.Background(), engine, cfg, audioFile); err != nil {
			return err
		}
	}

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	if dir, derr := config.DefaultDir(); derr == nil {
		go func() {
			config.Watch(watchCtx, dir, func(*config.Config) {
				log.Printf("configuration changed, restart to apply")
			})
		}()
	}

	err = tui.Run(engine)

	// Let in-flight remote appends land before the store closes.
	engine.Wait()
	return err
}

// sendAudio uploads a local recording to the storage gateway, transcribes
// it, and delivers the transcript as a normal user turn before the UI
// starts.
func sendAudio(ctx context.Context, engine *chat.Engine, cfg *config.Config, path string) error {
	if cfg.Transcribe.StorageBaseURL == "" {
		return fmt.Errorf("transcribe.storage_base_url must be set to send audio")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	objects := transcribe.NewHTTPObjectStore(cfg.Transcribe.StorageBaseURL, cfg.Transcribe.APIKey)
	objectPath := "audio/" + filepath.Base(path)
	if err := objects.Upload(ctx, objectPath, f); err != nil {
		return fmt.Errorf("failed to upload audio: %w", err)
	}

	audioURL, err := objects.DownloadURL(ctx, objectPath)
	if err != nil {
		return fmt.Errorf("failed to resolve audio URL: %w", err)
	}

	return engine.SendTranscript(ctx, audioURL)
}

// openLogFile opens ~/.solace/solace.log for appending, or nil when the
// directory is unusable.
func openLogFile(cfg *config.Config) *os.File {
	dir := filepath.Dir(cfg.Cache.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, "solace.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return f
}
