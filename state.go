package mdk

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// StateProvider stores checkpoints. Implementations should be threadsafe.
type StateProvider interface {
	// LatestCheckpoint returns the most recently committed checkpoint for the
	// job of the pipeline, or nil if there is none.
	LatestCheckpoint(pipelineName, jobName string) (*Checkpoint, error)
	// Commit stores cp as the latest checkpoint of its pipeline and job.
	Commit(cp *Checkpoint) error
	Close() error
}

// StateProviderFunc opens a StateProvider from its recipe config.
type StateProviderFunc func(config map[string]interface{}) (StateProvider, error)

var (
	providersMu sync.RWMutex
	providers   = make(map[string]StateProviderFunc)
)

// MemoryStateProvider is the name MapStateProvider is registered under.
const MemoryStateProvider = "memory"

func init() {
	RegisterStateProvider(MemoryStateProvider, func(map[string]interface{}) (StateProvider, error) {
		return NewMapStateProvider(), nil
	})
}

// RegisterStateProvider makes a provider available under name. It panics if
// name is registered twice.
func RegisterStateProvider(name string, fn StateProviderFunc) {
	providersMu.Lock()
	defer providersMu.Unlock()
	if _, dup := providers[name]; dup {
		panic(fmt.Sprintf("state provider %s registered twice", name))
	}
	providers[name] = fn
}

// StateProviders returns the registered provider names.
func StateProviders() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewStateProvider opens the provider registered under name.
func NewStateProvider(name string, config map[string]interface{}) (StateProvider, error) {
	providersMu.RLock()
	fn, ok := providers[name]
	providersMu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownStateProvider, "'%s' (known: %v)", name, StateProviders())
	}
	p, err := fn(config)
	return p, errors.Wrapf(err, "opening %s state provider", name)
}

// ConfigString returns the string at key in a provider config, or def if the
// key is absent.
func ConfigString(config map[string]interface{}, key, def string) (string, error) {
	v, ok := config[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Errorf("config key '%s' must be a string, got %T", key, v)
	}
	return s, nil
}

// MapStateProvider is an in-memory implementation of StateProvider. It keeps
// encoded checkpoints so that callers never share state with it.
type MapStateProvider struct {
	lock        sync.RWMutex
	checkpoints map[string][]byte
}

// NewMapStateProvider creates a new MapStateProvider.
func NewMapStateProvider() *MapStateProvider {
	return &MapStateProvider{checkpoints: make(map[string][]byte)}
}

// CheckpointKey is the key providers file a pipeline's job checkpoint under.
func CheckpointKey(pipelineName, jobName string) string {
	return pipelineName + "/" + jobName
}

// LatestCheckpoint implements StateProvider.
func (m *MapStateProvider) LatestCheckpoint(pipelineName, jobName string) (*Checkpoint, error) {
	m.lock.RLock()
	data, ok := m.checkpoints[CheckpointKey(pipelineName, jobName)]
	m.lock.RUnlock()
	if !ok {
		return nil, nil
	}
	return DecodeCheckpoint(data)
}

// Commit implements StateProvider.
func (m *MapStateProvider) Commit(cp *Checkpoint) error {
	data, err := cp.Encode()
	if err != nil {
		return err
	}
	m.lock.Lock()
	m.checkpoints[CheckpointKey(cp.PipelineName, cp.JobName)] = data
	m.lock.Unlock()
	return nil
}

// Close does nothing.
func (m *MapStateProvider) Close() error { return nil }

// CheckpointHistory is implemented by providers which keep more than the
// latest checkpoint.
type CheckpointHistory interface {
	// History returns the retained checkpoints of the job, oldest first.
	History(pipelineName, jobName string) ([]*Checkpoint, error)
}
