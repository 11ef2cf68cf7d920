package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"medextract/pdfprocessor"
	"medextract/pipeline"
)

func newRedactCommand(a *app) *cobra.Command {
	var stats bool

	cmd := &cobra.Command{
		Use:   "redact [file]",
		Short: "Print redacted text from a PDF or text file (stdin when omitted or \"-\")",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd.ErrOrStderr()); err != nil {
				return err
			}
			defer a.close()

			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return runRedact(cmd, a, path, stats)
		},
	}
	cmd.Flags().BoolVar(&stats, "stats", false, "print redaction counts per rule to stderr")
	return cmd
}

func runRedact(cmd *cobra.Command, a *app, path string, stats bool) error {
	data, err := readInput(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}

	var (
		text   string
		counts map[string]int
	)
	if pdfprocessor.HasPDFHeader(data) {
		p, err := a.buildPipeline(false, pipeline.Options{})
		if err != nil {
			return err
		}
		s, err := p.Sanitize(cmd.Context(), data)
		if err != nil {
			return describeFailure(err)
		}
		text, counts = s.Text, s.Redactions
	} else {
		engine, err := a.buildRedactor()
		if err != nil {
			return err
		}
		res := engine.Redact(string(data))
		text, counts = res.Text, res.Matches
	}

	fmt.Fprint(cmd.OutOrStdout(), text)
	if stats {
		printRedactionStats(cmd.ErrOrStderr(), counts)
	}
	return nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func printRedactionStats(w io.Writer, counts map[string]int) {
	rules := make([]string, 0, len(counts))
	for rule := range counts {
		rules = append(rules, rule)
	}
	sort.Strings(rules)

	fmt.Fprintf(w, "redactions: %d\n", sumCounts(counts))
	for _, rule := range rules {
		fmt.Fprintf(w, "  %-24s %d\n", rule, counts[rule])
	}
}
