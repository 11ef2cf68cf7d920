package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"medextract/core"
	"medextract/core/validation"
	"medextract/db"
	"medextract/redaction"
	"medextract/webui"
)

func newValidateCommand() *cobra.Command {
	var failFast, quiet bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check configuration, rules and storage before serving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := core.LoadConfig()
			suite := validation.NewValidationSuite(configChecks(cfg, err)...).
				WithOutput(cmd.OutOrStdout()).
				WithShowProgress(!quiet).
				WithFailFast(failFast)

			result := suite.Validate()
			if quiet {
				fmt.Fprintln(cmd.OutOrStdout(), result.Summary())
			}
			if !result.Success {
				code := core.ExitCodeError
				if err := result.GetFirstError(); err != nil {
					code = core.ExitCodeFor(err)
				}
				return &exitError{code: code}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first failed check")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only the summary line")
	return cmd
}

func pass(format string, args ...any) validation.CheckResult {
	return validation.CheckResult{OK: true, Message: fmt.Sprintf(format, args...)}
}

func warn(format string, args ...any) validation.CheckResult {
	return validation.CheckResult{Warn: true, Message: fmt.Sprintf(format, args...)}
}

func failed(err error) validation.CheckResult {
	return validation.CheckResult{Error: err}
}

func skip(msg string) validation.CheckResult {
	return validation.CheckResult{Skip: true, Message: msg}
}

// configChecks builds the startup checks. When loading failed only the
// load step runs.
func configChecks(cfg *core.Config, loadErr error) []validation.Check {
	checks := []validation.Check{{
		Name: "Configuration",
		Run: func() validation.CheckResult {
			if loadErr != nil {
				return failed(loadErr)
			}
			return pass("environment loaded")
		},
	}}
	if loadErr != nil {
		return checks
	}

	return append(checks,
		validation.Check{Name: "Model credentials", Run: func() validation.CheckResult {
			if err := cfg.RequireModel(); err != nil {
				return failed(err)
			}
			return pass("model %s", cfg.ExtractionModel)
		}},
		validation.Check{Name: "Model endpoint", Run: func() validation.CheckResult {
			if err := validation.ValidateServerURL(cfg.BaseLLMURL); err != nil {
				return failed(core.ErrInvalidURL("BASE_LLM_URL", cfg.BaseLLMURL, err.Error()))
			}
			if cfg.AllowSelfSignedCerts {
				return warn("%s (TLS verification disabled)", cfg.BaseLLMURL)
			}
			return pass("%s", cfg.BaseLLMURL)
		}},
		validation.Check{Name: "Redaction rules", Run: func() validation.CheckResult {
			return checkRedaction(cfg)
		}},
		validation.Check{Name: "Upload authentication", Run: func() validation.CheckResult {
			if cfg.UploadTokenHash == "" {
				if isLoopback(cfg.Host) {
					return skip("disabled (loopback only)")
				}
				return warn("disabled on %s; set UPLOAD_TOKEN_HASH", cfg.Host)
			}
			if _, err := webui.NewTokenAuth(cfg.UploadTokenHash, nil); err != nil {
				return failed(core.ErrInvalidValue("UPLOAD_TOKEN_HASH", "[REDACTED]", err.Error()))
			}
			return pass("bearer token required")
		}},
		validation.Check{Name: "Diagnostic snapshots", Run: func() validation.CheckResult {
			if !cfg.DebugArtifacts {
				return skip("disabled")
			}
			if err := validation.CheckDirWritable(cfg.DebugArtifactsDir); err != nil {
				return failed(err)
			}
			return warn("%s will hold unredacted text", cfg.DebugArtifactsDir)
		}},
		validation.Check{Name: "Run history", Run: func() validation.CheckResult {
			return checkHistory(cfg)
		}},
	)
}

func checkRedaction(cfg *core.Config) validation.CheckResult {
	var file *redaction.FileConfig
	if path := cfg.RedactionRulesFile; path != "" {
		if err := validation.CheckFileExists(path); err != nil {
			return failed(core.ErrRulesFile(path, err))
		}
		f, err := redaction.LoadFile(path)
		if err != nil {
			return failed(core.ErrRulesFile(path, err))
		}
		file = f
	}

	engine := redaction.NewEngine(redaction.BuildRules(cfg.PatientNames, file), nil)
	if skipped := engine.Skipped(); len(skipped) > 0 {
		names := make([]string, len(skipped))
		for i, s := range skipped {
			names[i] = s.Rule
		}
		return warn("%d rules active, skipped: %s", len(engine.Rules()), strings.Join(names, ", "))
	}
	if len(cfg.PatientNames) == 0 && (file == nil || len(file.PatientNames) == 0) {
		return warn("%d rules active, no patient names configured", len(engine.Rules()))
	}
	return pass("%d rules active", len(engine.Rules()))
}

func checkHistory(cfg *core.Config) validation.CheckResult {
	if cfg.HistoryDBPath == "" {
		return skip("disabled")
	}
	database, err := db.Open(cfg.HistoryDBPath)
	if err != nil {
		return failed(err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := database.Ping(ctx); err != nil {
		return failed(err)
	}
	if cfg.HistoryRetention == 0 {
		return pass("%s, kept forever", cfg.HistoryDBPath)
	}
	return pass("%s, kept %d days", cfg.HistoryDBPath, cfg.HistoryRetention)
}
