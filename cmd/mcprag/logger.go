// Copyright 2025 RagForge
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"

	"github.com/ragforge/mcprag/pkg/config"
	"github.com/ragforge/mcprag/pkg/logger"
)

const (
	// LogLevelEnvVar overrides the log level when no flag is given.
	LogLevelEnvVar = "LOG_LEVEL"
	// LogFileEnvVar overrides the log file path when no flag is given.
	LogFileEnvVar = "LOG_FILE"
	// LogFormatEnvVar overrides the log format when no flag is given.
	LogFormatEnvVar = "LOG_FORMAT"
)

// initLogger initializes the process logger.
// Priority: CLI flags > env vars > defaults.
// The returned cleanup closes the log file, if one was opened.
func initLogger(cliLevel, cliFile, cliFormat string) (func(), error) {
	logLevel := cliLevel
	if logLevel == "" {
		logLevel = os.Getenv(LogLevelEnvVar)
	}
	if logLevel == "" {
		logLevel = "info"
	}

	logFile := cliFile
	if logFile == "" {
		logFile = os.Getenv(LogFileEnvVar)
	}

	logFormat := cliFormat
	if logFormat == "" {
		logFormat = os.Getenv(LogFormatEnvVar)
	}
	if logFormat == "" {
		logFormat = "simple"
	}

	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	output := os.Stderr
	var cleanup func()
	if logFile != "" {
		file, closeFn, err := logger.OpenLogFile(logFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		cleanup = closeFn
	}

	logger.Init(level, output, logFormat)
	return cleanup, nil
}

// loggingOverridden reports whether flags or environment variables chose
// the logger settings, in which case the config file must not replace them.
func loggingOverridden(cli *CLI) bool {
	if cli.LogLevel != "" || cli.LogFile != "" || cli.LogFormat != "" {
		return true
	}
	return os.Getenv(LogLevelEnvVar) != "" ||
		os.Getenv(LogFileEnvVar) != "" ||
		os.Getenv(LogFormatEnvVar) != ""
}

// applyConfigLogging re-initializes the logger from config file settings
// when neither flags nor environment variables set them.
func applyConfigLogging(cli *CLI, cfg *config.LoggingConfig) (func(), error) {
	if loggingOverridden(cli) {
		return nil, nil
	}
	return initLogger(cfg.Level, cfg.File, cfg.Format)
}
