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

// Package leveldb stores checkpoints, with their history, in a LevelDB
// directory.
package leveldb

import (
	"strings"

	"github.com/catalogkit/mdk"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ProviderName is the name the provider registers under.
const ProviderName = "leveldb"

func init() {
	mdk.RegisterStateProvider(ProviderName, func(config map[string]interface{}) (mdk.StateProvider, error) {
		dir, err := mdk.ConfigString(config, "path", "mdk-state")
		if err != nil {
			return nil, err
		}
		return NewProvider(dir)
	})
}

var _ mdk.StateProvider = &Provider{}
var _ mdk.CheckpointHistory = &Provider{}

// Provider is a mdk.StateProvider which stores every checkpoint in leveldb
// under <pipeline>/<job>/<run id>.
type Provider struct {
	dirname string
	db      *leveldb.DB
}

type errorList []error

func (errs errorList) Error() string {
	errstrings := make([]string, len(errs))
	for i, err := range errs {
		errstrings[i] = err.Error()
	}
	return strings.Join(errstrings, "; ")
}

// NewProvider opens (or creates) a leveldb in dirname.
func NewProvider(dirname string) (*Provider, error) {
	db, err := leveldb.OpenFile(dirname, &opt.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb at %v", dirname)
	}
	return &Provider{dirname: dirname, db: db}, nil
}

func jobPrefix(pipelineName, jobName string) []byte {
	return []byte(mdk.CheckpointKey(pipelineName, jobName) + "/")
}

// LatestCheckpoint implements mdk.StateProvider.
func (p *Provider) LatestCheckpoint(pipelineName, jobName string) (*mdk.Checkpoint, error) {
	iter := p.db.NewIterator(util.BytesPrefix(jobPrefix(pipelineName, jobName)), nil)
	defer iter.Release()
	if !iter.Last() {
		return nil, errors.Wrap(iter.Error(), "seeking latest checkpoint")
	}
	return mdk.DecodeCheckpoint(iter.Value())
}

// History implements mdk.CheckpointHistory.
func (p *Provider) History(pipelineName, jobName string) ([]*mdk.Checkpoint, error) {
	iter := p.db.NewIterator(util.BytesPrefix(jobPrefix(pipelineName, jobName)), nil)
	defer iter.Release()
	var cps []*mdk.Checkpoint
	for iter.Next() {
		cp, err := mdk.DecodeCheckpoint(iter.Value())
		if err != nil {
			return nil, errors.Wrapf(err, "decoding %s", iter.Key())
		}
		cps = append(cps, cp)
	}
	return cps, errors.Wrap(iter.Error(), "iterating checkpoints")
}

// Commit implements mdk.StateProvider.
func (p *Provider) Commit(cp *mdk.Checkpoint) error {
	data, err := cp.Encode()
	if err != nil {
		return err
	}
	key := append(jobPrefix(cp.PipelineName, cp.JobName), cp.RunID...)
	err = p.db.Put(key, data, &opt.WriteOptions{Sync: true})
	return errors.Wrap(err, "putting checkpoint")
}

// Close closes the underlying leveldb.
func (p *Provider) Close() error {
	errs := make(errorList, 0)
	if err := p.db.Close(); err != nil {
		errs = append(errs, errors.Wrapf(err, "closing %s", p.dirname))
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
