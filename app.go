package main

import (
	"io"
	"time"

	"go.uber.org/zap"

	"medextract/core"
	"medextract/llm"
	"medextract/logging"
	"medextract/pdfprocessor"
	"medextract/pipeline"
	"medextract/redaction"
)

// app holds what every command builds from the environment.
type app struct {
	logLevel string

	cfg    *core.Config
	logger *logging.Logger
}

// setup loads configuration and the logger once. Console logs go to
// console so stdout stays clean for command output.
func (a *app) setup(console io.Writer) error {
	if a.cfg != nil {
		return nil
	}

	cfg, err := core.LoadConfig()
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}

	logger, err := logging.NewLogger(logging.Options{
		Development: cfg.DevMode,
		FilePath:    cfg.LogFile,
		Level:       level,
		Console:     console,
	})
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	logger.Debug("Logger ready", zap.String("file", logger.FilePath()), zap.String("level", level))
	return nil
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *app) buildRedactor() (*redaction.Engine, error) {
	var file *redaction.FileConfig
	if path := a.cfg.RedactionRulesFile; path != "" {
		f, err := redaction.LoadFile(path)
		if err != nil {
			return nil, core.ErrRulesFile(path, err)
		}
		file = f
	}

	engine := redaction.NewEngine(redaction.BuildRules(a.cfg.PatientNames, file), a.logger)
	if len(a.cfg.PatientNames) == 0 && (file == nil || len(file.PatientNames) == 0) {
		a.logger.Warn("No patient names configured; only generic identifier rules will apply")
	}
	a.logger.Debug("Redaction rules loaded",
		zap.Int("rules", len(engine.Rules())),
		zap.Int("skipped", len(engine.Skipped())))
	return engine, nil
}

// buildPipeline wires the pipeline. The model client is only created when
// withModel is set, so redaction-only commands run without an API key.
func (a *app) buildPipeline(withModel bool, opts pipeline.Options) (*pipeline.Pipeline, error) {
	redactor, err := a.buildRedactor()
	if err != nil {
		return nil, err
	}

	extractorConfig := pdfprocessor.DefaultExtractorConfig()
	extractorConfig.MaxPages = a.cfg.PDFMaxPages
	extractorConfig.Workers = a.cfg.PDFExtractWorkers
	extractor := pdfprocessor.NewExtractor(extractorConfig, a.logger)

	var model pipeline.ModelClient
	if withModel {
		if err := a.cfg.RequireModel(); err != nil {
			return nil, err
		}
		client := llm.NewClient(llm.ConfigFromCore(a.cfg), a.logger)
		a.logger.Info("Model client ready",
			zap.String("model", client.Model()),
			zap.String("base_url", a.cfg.BaseLLMURL))
		model = client
	}

	opts.ModelTimeout = modelBudget(a.cfg)
	opts.MaxInputChars = a.cfg.MaxPromptChars
	opts.Logger = a.logger
	return pipeline.New(extractor, redactor, model, opts), nil
}

// modelBudget bounds one request's model stage: every attempt at the
// per-call timeout plus the doubling retry delays between them.
func modelBudget(cfg *core.Config) time.Duration {
	attempts := cfg.MaxRetries + 1
	budget := cfg.AITimeout * time.Duration(attempts)
	delay := cfg.RetryDelay
	for i := 1; i < attempts; i++ {
		budget += delay
		delay *= 2
	}
	return budget
}
