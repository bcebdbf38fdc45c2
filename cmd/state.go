package cmd

import (
	"io"

	"github.com/catalogkit/mdk/ingest"
	"github.com/jaffee/commandeer"
	"github.com/spf13/cobra"
)

// StateMain is wrapped by NewStateCommand and only exported for testing
// purposes.
var StateMain *ingest.StateMain

// NewStateCommand returns a new cobra command wrapping StateMain.
func NewStateCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	StateMain = ingest.NewStateMain()
	StateMain.Stdout = stdout
	stateCommand := &cobra.Command{
		Use:   "state",
		Short: "Print the stale entity checkpoints of a pipeline.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return StateMain.Run()
		},
	}
	if err := commandeer.Flags(stateCommand.Flags(), StateMain); err != nil {
		panic(err)
	}
	return stateCommand
}

func init() {
	subcommandFns["state"] = NewStateCommand
}
