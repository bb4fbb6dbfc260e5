/*
 * Copyright (c) 2022. TxnLab Inc.
 * All Rights reserved.
 */

package misc

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
)

// LoadEnvSettings loads .env.local then .env from the working directory. Values already present in the
// environment win, so the first file to define a key sets it.
func LoadEnvSettings(log *slog.Logger) {
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			Warnf(log, "unable to load env file:%s, err:%v", name, err)
		}
	}
}

// LoadEnvFile loads a specific env file, failing if it can't be read.
func LoadEnvFile(log *slog.Logger, envFile string) error {
	Infof(log, "loading env file:%s", envFile)
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("loading env file %s: %w", envFile, err)
	}
	return nil
}
