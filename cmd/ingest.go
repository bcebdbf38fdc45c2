package cmd

import (
	"io"
	"log"
	"time"

	"github.com/catalogkit/mdk/ingest"
	"github.com/jaffee/commandeer"
	"github.com/spf13/cobra"
)

// IngestMain is wrapped by NewIngestCommand and only exported for testing
// purposes.
var IngestMain *ingest.Main

// NewIngestCommand returns a new cobra command wrapping IngestMain.
func NewIngestCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	IngestMain = ingest.NewMain()
	IngestMain.Stdout = stdout
	ingestCommand := &cobra.Command{
		Use:   "ingest",
		Short: "Run an ingestion recipe.",
		Long: `Run the source of a yaml recipe through the status, tag, browse
path and stale entity removal processors into its sink.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if err := IngestMain.Run(); err != nil {
				return err
			}
			log.Println("Done: ", time.Since(start))
			return nil
		},
	}
	err := commandeer.Flags(ingestCommand.Flags(), IngestMain)
	if err != nil {
		panic(err)
	}
	return ingestCommand
}

func init() {
	subcommandFns["ingest"] = NewIngestCommand
}
