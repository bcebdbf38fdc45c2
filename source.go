package mdk

import "io"

// Source is the interface for getting metadata out of a system one record at
// a time. Record returns a *ChangeEvent or a *ChangeProposalWrapper, and
// io.EOF once there is nothing left.
type Source interface {
	Record() (interface{}, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func() (interface{}, error)

// Record implements Source.
func (f SourceFunc) Record() (interface{}, error) { return f() }

// NamedReadCloser is a ReadCloser which knows the name of what it reads, such
// as a file name or an object key.
type NamedReadCloser interface {
	io.ReadCloser
	Name() string
	Meta() map[string]interface{}
}

// RawSource hands out readers one after another, and io.EOF once there are
// none left. Sources which decode a format layer themselves over a RawSource.
type RawSource interface {
	NextReader() (NamedReadCloser, error)
}
