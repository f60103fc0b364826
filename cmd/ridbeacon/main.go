package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/onlyTheOnionNews/drone-phone/cmd/ridbeacon/app"
	"github.com/onlyTheOnionNews/drone-phone/internal/auth"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var configPath, keyPath string
	flag.StringVar(&configPath, "c", "", "Path to the configuration file")
	flag.StringVar(&keyPath, "genkey", "", "Generate a signing key, write it to this path and exit")
	flag.Parse()

	if keyPath != "" {
		if err := generateKey(keyPath); err != nil {
			logger.Error(fmt.Sprintf("failed to generate key: %s", err.Error()), slog.String("path", keyPath))
			os.Exit(1)
		}
		return
	}

	if configPath == "" {
		logger.Error("no configuration file provided")
		os.Exit(1)
	}

	config, err := app.LoadConfig(configPath)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
		os.Exit(1)
	}

	logLevel.Set(config.Settings.Level())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = app.Run(ctx, config, logger); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}

// generateKey writes a new PEM encoded P-256 key and prints its public half.
func generateKey(path string) error {
	key, err := auth.GenerateKey()
	if err != nil {
		return err
	}

	data, err := auth.MarshalPrivateKeyPEM(key)
	if err != nil {
		return err
	}

	pub, err := auth.PublicKeyBase64(key)
	if err != nil {
		return err
	}

	if err = os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing key: %w", err)
	}

	fmt.Println(pub)
	return nil
}
