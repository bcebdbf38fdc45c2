package ingest

import (
	"fmt"
	"io"
	"os"

	"github.com/catalogkit/mdk"
	"github.com/pkg/errors"
)

// StateMain prints the checkpoints a state provider holds for a pipeline.
type StateMain struct {
	Provider string `help:"State provider type: bolt, leveldb or sqlite."`
	Path     string `help:"Path the provider keeps its state at."`
	Pipeline string `help:"Pipeline name."`
	Job      string `help:"Job name."`
	History  bool   `help:"Print every retained checkpoint, oldest first, rather than just the latest."`
	URNs     bool   `help:"Print the urns of each checkpoint too."`

	Stdout io.Writer `flag:"-"`
}

// NewStateMain gets a new StateMain with default values.
func NewStateMain() *StateMain {
	return &StateMain{
		Provider: "bolt",
		Job:      mdk.DefaultStaleEntityRemovalJob,
		Stdout:   os.Stdout,
	}
}

// Run prints the checkpoints.
func (m *StateMain) Run() (err error) {
	if m.Pipeline == "" {
		return mdk.ErrMissingPipelineName
	}
	config := map[string]interface{}{}
	if m.Path != "" {
		config["path"] = m.Path
	}
	p, err := mdk.NewStateProvider(m.Provider, config)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "closing state provider")
		}
	}()

	var cps []*mdk.Checkpoint
	if h, ok := p.(mdk.CheckpointHistory); ok && m.History {
		if cps, err = h.History(m.Pipeline, m.Job); err != nil {
			return errors.Wrap(err, "getting history")
		}
	} else {
		cp, err := p.LatestCheckpoint(m.Pipeline, m.Job)
		if err != nil {
			return errors.Wrap(err, "getting latest checkpoint")
		}
		if cp != nil {
			cps = append(cps, cp)
		}
	}
	if len(cps) == 0 {
		_, err := fmt.Fprintf(m.Stdout, "no checkpoint for %s\n", mdk.CheckpointKey(m.Pipeline, m.Job))
		return err
	}
	for _, cp := range cps {
		if err := m.print(cp); err != nil {
			return errors.Wrap(err, "printing checkpoint")
		}
	}
	return nil
}

func (m *StateMain) print(cp *mdk.Checkpoint) error {
	if _, err := fmt.Fprintf(m.Stdout, "%s %s %d entities\n", cp.RunID, cp.Timestamp.Format("2006-01-02T15:04:05Z07:00"), cp.State.Len()); err != nil {
		return err
	}
	for _, typ := range cp.State.EntityTypes() {
		urns := cp.State.URNs(typ)
		if _, err := fmt.Fprintf(m.Stdout, "  %s: %d\n", typ, len(urns)); err != nil {
			return err
		}
		if !m.URNs {
			continue
		}
		for _, urn := range urns {
			if _, err := fmt.Fprintf(m.Stdout, "    %s\n", urn); err != nil {
				return err
			}
		}
	}
	return nil
}
