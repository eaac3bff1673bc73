// Package logger provides structured logging for pipedeploy using zerolog.
//
// Logs go to stderr by default: stdout carries only the deployer's status
// line, so scripts can capture it without filtering log noise.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "console"   # or "json"
//	  output: "stderr"
//
// # Usage
//
//	log := logger.WithComponent("deployer")
//	log.Info("pipeline started", logger.Fields(logger.FieldPipeline, "otel"))
package logger
