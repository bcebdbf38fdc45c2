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

package s3

import (
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/catalogkit/mdk"
	"github.com/catalogkit/mdk/json"
	"github.com/pkg/errors"
)

// SrcOption is a functional option type for s3.Source.
type SrcOption func(s *RawSource)

// OptSrcBucket is a SrcOption which sets the S3 bucket for a Source.
func OptSrcBucket(bucket string) SrcOption {
	return func(s *RawSource) {
		s.bucket = bucket
	}
}

// OptSrcRegion is a SrcOption which sets the AWS region for a Source.
func OptSrcRegion(region string) SrcOption {
	return func(s *RawSource) {
		s.region = region
	}
}

// OptSrcPrefix tells the source to list only the objects in the bucket that
// match the specified prefix.
func OptSrcPrefix(prefix string) SrcOption {
	return func(s *RawSource) {
		s.prefix = prefix
	}
}

// OptSrcSuffix skips objects whose key does not end in suffix, e.g. ".json".
func OptSrcSuffix(suffix string) SrcOption {
	return func(s *RawSource) {
		s.suffix = suffix
	}
}

// OptSrcEndpoint points the client at an S3 compatible service such as
// minio. Path style addressing is used with it.
func OptSrcEndpoint(endpoint string) SrcOption {
	return func(s *RawSource) {
		s.endpoint = endpoint
	}
}

// OptSrcClient uses client rather than one built from a new session.
func OptSrcClient(client s3iface.S3API) SrcOption {
	return func(s *RawSource) {
		s.s3 = client
	}
}

// NewSource returns an mdk.Source reading the JSON work unit files stored in
// a bucket, in key order.
func NewSource(opts ...SrcOption) (mdk.Source, error) {
	rs, err := NewRawSource(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "getting raw s3 source")
	}
	return json.NewSourceFromRawSource(rs), nil
}

// RawSource is an mdk.RawSource handing out the objects of a bucket one after
// another. The bucket is listed on the first call to NextReader.
type RawSource struct {
	bucket   string
	prefix   string
	suffix   string
	region   string
	endpoint string

	s3 s3iface.S3API

	mu      sync.Mutex
	listed  bool
	objects []string
	objIdx  int
}

// NewRawSource returns a RawSource with the options applied.
func NewRawSource(opts ...SrcOption) (*RawSource, error) {
	rs := &RawSource{region: "us-east-1"}
	for _, opt := range opts {
		opt(rs)
	}
	if rs.bucket == "" {
		return nil, errors.New("no bucket given")
	}
	if rs.s3 != nil {
		return rs, nil
	}
	conf := &aws.Config{Region: aws.String(rs.region)}
	if rs.endpoint != "" {
		conf.Endpoint = aws.String(rs.endpoint)
		conf.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(conf)
	if err != nil {
		return nil, errors.Wrap(err, "getting new session")
	}
	rs.s3 = s3.New(sess)
	return rs, nil
}

// Bucket returns the name of the bucket read.
func (rs *RawSource) Bucket() string { return rs.bucket }

func (rs *RawSource) list() error {
	in := &s3.ListObjectsV2Input{Bucket: aws.String(rs.bucket)}
	if rs.prefix != "" {
		in.Prefix = aws.String(rs.prefix)
	}
	err := rs.s3.ListObjectsV2Pages(in, func(page *s3.ListObjectsV2Output, last bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)
			if strings.HasSuffix(key, "/") || !strings.HasSuffix(key, rs.suffix) {
				continue
			}
			rs.objects = append(rs.objects, key)
		}
		return true
	})
	if err != nil {
		return errors.Wrapf(err, "listing objects of %s", rs.bucket)
	}
	sort.Strings(rs.objects)
	rs.listed = true
	return nil
}

type objReader struct {
	name string
	meta map[string]interface{}
	body io.ReadCloser
}

func (o *objReader) Read(buf []byte) (n int, err error) {
	return o.body.Read(buf)
}

func (o *objReader) Close() error {
	return o.body.Close()
}

func (o *objReader) Name() string {
	return o.name
}

func (o *objReader) Meta() map[string]interface{} {
	return o.meta
}

// NextReader implements mdk.RawSource.
func (rs *RawSource) NextReader() (mdk.NamedReadCloser, error) {
	rs.mu.Lock()
	if !rs.listed {
		if err := rs.list(); err != nil {
			rs.mu.Unlock()
			return nil, err
		}
	}
	if rs.objIdx >= len(rs.objects) {
		rs.mu.Unlock()
		return nil, io.EOF
	}
	key := rs.objects[rs.objIdx]
	rs.objIdx++
	rs.mu.Unlock()

	result, err := rs.s3.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(rs.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %v", key)
	}
	meta := map[string]interface{}{"bucket": rs.bucket}
	if result.ContentLength != nil {
		meta["size"] = *result.ContentLength
	}
	return &objReader{name: key, meta: meta, body: result.Body}, nil
}
