package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"medextract/pipeline"
	"medextract/record"
)

const extractHeader = "# Medical Record Extract\n\n" +
	"**Note:** Sensitive information has been redacted for privacy protection.\n\n" +
	"---\n\n"

func newExtractCommand(a *app) *cobra.Command {
	var outputDir string
	var extractData bool

	cmd := &cobra.Command{
		Use:   "extract <pdf>",
		Short: "Write redacted text, and optionally the structured record, next to a PDF",
		Example: `  medextract extract record.pdf
  medextract extract record.pdf --output ./out --extract-data`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd.ErrOrStderr()); err != nil {
				return err
			}
			defer a.close()
			return runExtract(cmd, a, args[0], outputDir, extractData)
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory for output files (default: next to the PDF)")
	cmd.Flags().BoolVar(&extractData, "extract-data", false, "also send the redacted text to the model and write the JSON record")
	return cmd
}

func runExtract(cmd *cobra.Command, a *app, pdfPath, outputDir string, extractData bool) error {
	out := cmd.OutOrStdout()

	if !strings.EqualFold(filepath.Ext(pdfPath), ".pdf") {
		return fmt.Errorf("file must be a PDF: %s", pdfPath)
	}
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", pdfPath, err)
	}

	if outputDir == "" {
		outputDir = filepath.Dir(pdfPath)
	}
	if err := ensureOutputDir(outputDir); err != nil {
		return err
	}

	p, err := a.buildPipeline(extractData, pipeline.Options{})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Extracting text from: %s\n", pdfPath)
	ctx := cmd.Context()
	s, err := p.Sanitize(ctx, data)
	if err != nil {
		return describeFailure(err)
	}

	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	textPath := filepath.Join(outputDir, base+"_extracted.md")
	if err := os.WriteFile(textPath, []byte(extractHeader+s.Text), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", textPath, err)
	}

	color.New(color.FgGreen).Fprintf(out, "✓ Redacted text saved to: %s\n", textPath)
	fmt.Fprintf(out, "  Pages: %d, redactions: %d\n", s.Pages, sumCounts(s.Redactions))
	if !extractData {
		return nil
	}

	fmt.Fprintln(out, "Extracting structured data with the model...")
	res, err := p.ProcessText(pipeline.WithRequestID(ctx, s.RequestID), s.Text)
	if err != nil {
		return describeFailure(err)
	}

	body, err := json.MarshalIndent(res.Record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	recordPath := filepath.Join(outputDir, base+"_analysis.json")
	if err := os.WriteFile(recordPath, append(body, '\n'), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", recordPath, err)
	}

	color.New(color.FgGreen).Fprintf(out, "✓ Structured record saved to: %s\n", recordPath)
	printCounts(out, res.Record)
	if deg := res.Degradation; deg != nil && !deg.IsZero() {
		color.New(color.FgYellow).Fprintf(out, "  %d items dropped, %d unknown lab statuses\n",
			deg.TotalDropped(), deg.UnknownStatuses)
	}
	return nil
}

func ensureOutputDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("check output directory: %w", err)
	case !info.IsDir():
		return fmt.Errorf("output path exists but is not a directory: %s", dir)
	}
	return nil
}

// describeFailure turns a pipeline failure into its user-facing message.
func describeFailure(err error) error {
	f, ok := pipeline.AsFailure(err)
	if !ok {
		return err
	}
	msg := f.Message
	if f.Retryable {
		msg += " (retryable)"
	}
	return fmt.Errorf("%s: %s", f.Category, msg)
}

func printCounts(w io.Writer, rec *record.Record) {
	counts := rec.Counts()
	for _, key := range []string{"diagnoses", "medications", "lab_results", "vital_signs", "allergies"} {
		fmt.Fprintf(w, "  %-12s %d\n", key+":", counts[key])
	}
}

func sumCounts(m map[string]int) int {
	total := 0
	for _, n := range m {
		total += n
	}
	return total
}
