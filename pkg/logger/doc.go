// Package logger provides structured logging for the harvest pipeline.
//
// It wraps the zerolog library behind a small Logger interface with support
// for leveled logging, structured fields, pretty console output, optional
// file output, and a process-wide instance reachable via GetLogger.
//
// Basic usage:
//
//	cfg := &config.LoggingConfig{Level: "info"}
//	err := logger.Initialize(cfg)
//
//	logger.Info("harvest starting")
//	logger.GetLogger().WithField("term", "bottle").Info("crawling search term")
//	logger.GetLogger().WithError(err).Error("download failed")
package logger
