// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

// Package boltdb stores checkpoints in a BoltDB file.
package boltdb

import (
	"time"

	"github.com/boltdb/bolt"
	"github.com/catalogkit/mdk"
	"github.com/pkg/errors"
)

// ProviderName is the name the provider registers under.
const ProviderName = "bolt"

// DefaultRetain is how many checkpoints per job are kept by default.
const DefaultRetain = 10

var checkpointBucket = []byte("checkpoints")

func init() {
	mdk.RegisterStateProvider(ProviderName, func(config map[string]interface{}) (mdk.StateProvider, error) {
		path, err := mdk.ConfigString(config, "path", "mdk-state.db")
		if err != nil {
			return nil, err
		}
		return NewProvider(path)
	})
}

var _ mdk.StateProvider = &Provider{}
var _ mdk.CheckpointHistory = &Provider{}

// Provider is a mdk.StateProvider which keeps each job's checkpoints in a
// nested bucket keyed by run id. Run ids sort by time, so the last key is the
// latest checkpoint.
type Provider struct {
	Db *bolt.DB

	// Retain is how many checkpoints per job survive a Commit.
	Retain int
}

// NewProvider opens (or creates) the bolt file at filename.
func NewProvider(filename string) (p *Provider, err error) {
	p = &Provider{Retain: DefaultRetain}
	p.Db, err = bolt.Open(filename, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening db file '%v'", filename)
	}
	err = p.Db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(checkpointBucket)
		return errors.Wrap(err, "creating checkpoint bucket")
	})
	if err != nil {
		p.Db.Close()
		return nil, errors.Wrap(err, "ensuring bucket existence")
	}
	return p, nil
}

// Close syncs and closes the underlying database.
func (p *Provider) Close() error {
	err := p.Db.Sync()
	if err != nil {
		return errors.Wrap(err, "syncing db")
	}
	return p.Db.Close()
}

// LatestCheckpoint implements mdk.StateProvider.
func (p *Provider) LatestCheckpoint(pipelineName, jobName string) (cp *mdk.Checkpoint, err error) {
	err = p.Db.View(func(tx *bolt.Tx) error {
		jb := tx.Bucket(checkpointBucket).Bucket([]byte(mdk.CheckpointKey(pipelineName, jobName)))
		if jb == nil {
			return nil
		}
		k, v := jb.Cursor().Last()
		if k == nil {
			return nil
		}
		cp, err = mdk.DecodeCheckpoint(v)
		return err
	})
	return cp, errors.Wrap(err, "reading latest checkpoint")
}

// History implements mdk.CheckpointHistory.
func (p *Provider) History(pipelineName, jobName string) (cps []*mdk.Checkpoint, err error) {
	err = p.Db.View(func(tx *bolt.Tx) error {
		jb := tx.Bucket(checkpointBucket).Bucket([]byte(mdk.CheckpointKey(pipelineName, jobName)))
		if jb == nil {
			return nil
		}
		return jb.ForEach(func(k, v []byte) error {
			cp, err := mdk.DecodeCheckpoint(v)
			if err != nil {
				return errors.Wrapf(err, "run %s", k)
			}
			cps = append(cps, cp)
			return nil
		})
	})
	return cps, errors.Wrap(err, "reading checkpoint history")
}

// Commit implements mdk.StateProvider, then drops all but the newest Retain
// checkpoints of the job.
func (p *Provider) Commit(cp *mdk.Checkpoint) error {
	data, err := cp.Encode()
	if err != nil {
		return err
	}
	err = p.Db.Update(func(tx *bolt.Tx) error {
		jb, err := tx.Bucket(checkpointBucket).CreateBucketIfNotExists([]byte(mdk.CheckpointKey(cp.PipelineName, cp.JobName)))
		if err != nil {
			return errors.Wrap(err, "creating job bucket")
		}
		if err := jb.Put([]byte(cp.RunID), data); err != nil {
			return errors.Wrap(err, "putting checkpoint")
		}
		if p.Retain <= 0 {
			return nil
		}
		var keys [][]byte
		err = jb.ForEach(func(k, _ []byte) error {
			keys = append(keys, append([]byte(nil), k...))
			return nil
		})
		if err != nil {
			return err
		}
		for i := 0; i < len(keys)-p.Retain; i++ {
			if err := jb.Delete(keys[i]); err != nil {
				return errors.Wrap(err, "pruning checkpoint")
			}
		}
		return nil
	})
	return errors.Wrap(err, "committing checkpoint")
}
