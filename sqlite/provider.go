// Package sqlite stores checkpoints in a SQLite database using the pure Go
// modernc.org/sqlite driver.
package sqlite

import (
	"database/sql"
	"time"

	"github.com/catalogkit/mdk"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// ProviderName is the name the provider registers under.
const ProviderName = "sqlite"

func init() {
	mdk.RegisterStateProvider(ProviderName, func(config map[string]interface{}) (mdk.StateProvider, error) {
		path, err := mdk.ConfigString(config, "path", "mdk-state.sqlite")
		if err != nil {
			return nil, err
		}
		return NewProvider(path)
	})
}

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	pipeline_name TEXT NOT NULL,
	job_name      TEXT NOT NULL,
	run_id        TEXT NOT NULL,
	created_at    INTEGER NOT NULL,
	body          BLOB NOT NULL,
	PRIMARY KEY (pipeline_name, job_name, run_id)
)`

var _ mdk.StateProvider = &Provider{}
var _ mdk.CheckpointHistory = &Provider{}

// Provider is a mdk.StateProvider backed by a checkpoints table.
type Provider struct {
	db *sql.DB
}

// NewProvider opens the database at path, creating the table if needed. A
// path of ":memory:" gives a private in-memory database.
func NewProvider(path string) (*Provider, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	// a second connection to :memory: would be a different database
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating checkpoints table")
	}
	return &Provider{db: db}, nil
}

// LatestCheckpoint implements mdk.StateProvider.
func (p *Provider) LatestCheckpoint(pipelineName, jobName string) (*mdk.Checkpoint, error) {
	var body []byte
	err := p.db.QueryRow(`SELECT body FROM checkpoints WHERE pipeline_name = ? AND job_name = ?
		ORDER BY run_id DESC LIMIT 1`, pipelineName, jobName).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "querying latest checkpoint")
	}
	return mdk.DecodeCheckpoint(body)
}

// History implements mdk.CheckpointHistory.
func (p *Provider) History(pipelineName, jobName string) ([]*mdk.Checkpoint, error) {
	rows, err := p.db.Query(`SELECT body FROM checkpoints WHERE pipeline_name = ? AND job_name = ?
		ORDER BY run_id`, pipelineName, jobName)
	if err != nil {
		return nil, errors.Wrap(err, "querying checkpoints")
	}
	defer rows.Close()
	var cps []*mdk.Checkpoint
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, errors.Wrap(err, "scanning checkpoint")
		}
		cp, err := mdk.DecodeCheckpoint(body)
		if err != nil {
			return nil, err
		}
		cps = append(cps, cp)
	}
	return cps, errors.Wrap(rows.Err(), "iterating checkpoints")
}

// Commit implements mdk.StateProvider.
func (p *Provider) Commit(cp *mdk.Checkpoint) error {
	body, err := cp.Encode()
	if err != nil {
		return err
	}
	_, err = p.db.Exec(`INSERT OR REPLACE INTO checkpoints (pipeline_name, job_name, run_id, created_at, body)
		VALUES (?, ?, ?, ?, ?)`, cp.PipelineName, cp.JobName, cp.RunID, cp.Timestamp.UnixNano(), body)
	return errors.Wrap(err, "inserting checkpoint")
}

// Prune deletes the checkpoints of every job which are older than cutoff,
// always keeping each job's latest.
func (p *Provider) Prune(cutoff time.Time) (int64, error) {
	res, err := p.db.Exec(`DELETE FROM checkpoints WHERE created_at < ? AND run_id NOT IN (
		SELECT MAX(run_id) FROM checkpoints c2
		WHERE c2.pipeline_name = checkpoints.pipeline_name AND c2.job_name = checkpoints.job_name)`,
		cutoff.UnixNano())
	if err != nil {
		return 0, errors.Wrap(err, "pruning checkpoints")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "counting pruned checkpoints")
}

// Close closes the database.
func (p *Provider) Close() error {
	return errors.Wrap(p.db.Close(), "closing sqlite")
}
