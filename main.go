// Command medextract turns medical record PDFs into redacted text and a
// normalized JSON record.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"medextract/core"
)

var version = "dev"

func main() {
	// A missing .env is normal; the environment may already be set.
	_ = godotenv.Load()

	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCommand()
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return core.ExitCodeSuccess
	}

	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}

	fmt.Fprintln(root.ErrOrStderr(), color.RedString("Error: %v", err))
	if cfgErr, ok := core.IsConfigError(err); ok && cfgErr.Action != "" {
		fmt.Fprintln(root.ErrOrStderr(), color.YellowString("  Action: %s", cfgErr.Action))
	}
	return core.ExitCodeFor(err)
}

// exitError ends the process with code without printing anything.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "medextract",
		Short:         "Extract structured data from medical record PDFs with PHI redaction",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override LOG_LEVEL")

	root.AddCommand(
		newServeCommand(a),
		newExtractCommand(a),
		newRedactCommand(a),
		newValidateCommand(),
		newHashTokenCommand(),
		newSchemaCommand(),
	)
	return root
}
