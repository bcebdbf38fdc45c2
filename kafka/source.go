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

package kafka

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Shopify/sarama"
	cluster "github.com/bsm/sarama-cluster"
	"github.com/catalogkit/mdk"
	"github.com/elodina/go-avro"
	"github.com/pkg/errors"
)

// Message encodings a Source understands.
const (
	EncodingJSON = "json"
	EncodingAvro = "avro"
)

// DefaultProposalTopic is the topic change proposals are produced to and
// consumed from.
const DefaultProposalTopic = "MetadataChangeProposal_v1"

// DefaultEventTopic is the topic snapshot change events are produced to.
const DefaultEventTopic = "MetadataChangeEvent_v4"

// Source implements the mdk.Source interface using kafka as a data source.
// JSON messages hold a change event or a change proposal. Avro messages are
// change proposals framed for the Confluent schema registry.
type Source struct {
	Hosts    []string
	Topics   []string
	Group    string
	Encoding string
	MaxMsgs  int
	// IdleTimeout ends the source once no message arrived for that long. Zero
	// waits forever.
	IdleTimeout time.Duration
	RegistryURL string
	TLS         TLSConfig
	Log         mdk.Logger

	numMsgs  int
	consumer *cluster.Consumer
	messages <-chan *sarama.ConsumerMessage
	marker   offsetMarker

	lock  sync.RWMutex
	cache map[int32]avro.Schema
}

type offsetMarker interface {
	MarkOffset(msg *sarama.ConsumerMessage, metadata string)
}

// NewSource gets a new Source
func NewSource() *Source {
	return &Source{
		Hosts:       []string{"localhost:9092"},
		Topics:      []string{DefaultProposalTopic},
		Group:       "mdk",
		Encoding:    EncodingJSON,
		RegistryURL: "localhost:8081",
		Log:         mdk.NopLogger{},
		cache:       make(map[int32]avro.Schema),
	}
}

// Record returns the next kafka message decoded into a change event or a
// change proposal.
func (s *Source) Record() (interface{}, error) {
	if s.MaxMsgs > 0 {
		s.numMsgs++
		if s.numMsgs > s.MaxMsgs {
			return nil, io.EOF
		}
	}
	var idle <-chan time.Time
	if s.IdleTimeout > 0 {
		timer := time.NewTimer(s.IdleTimeout)
		defer timer.Stop()
		idle = timer.C
	}
	var msg *sarama.ConsumerMessage
	select {
	case m, ok := <-s.messages:
		if !ok {
			return nil, io.EOF
		}
		msg = m
	case <-idle:
		s.Log.Printf("no kafka message in %v, finishing", s.IdleTimeout)
		return nil, io.EOF
	}

	var ret interface{}
	var err error
	switch s.Encoding {
	case EncodingJSON:
		ret, err = mdk.DecodeRecord(msg.Value)
	case EncodingAvro:
		ret, err = s.decodeAvroValueWithSchemaRegistry(msg.Value)
	default:
		return nil, errors.Errorf("unsupported kafka message encoding: '%v'", s.Encoding)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decoding message at %s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}
	if s.marker != nil {
		s.marker.MarkOffset(msg, "") // mark message as processed
	}
	return ret, nil
}

// Open initializes the kafka source.
func (s *Source) Open() error {
	// init (custom) config, enable errors and notifications
	sarama.Logger = log.New(ioutil.Discard, "", 0)
	config := cluster.NewConfig()
	config.Config.Version = sarama.V0_10_0_0
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Group.Return.Notifications = true
	tlsConf, err := GetTLSConfig(&s.TLS, s.Log)
	if err != nil {
		return errors.Wrap(err, "getting tls config")
	}
	if tlsConf != nil {
		config.Net.TLS.Enable = true
		config.Net.TLS.Config = tlsConf
	}

	s.consumer, err = cluster.NewConsumer(s.Hosts, s.Group, s.Topics, config)
	if err != nil {
		return errors.Wrap(err, "getting new consumer")
	}
	s.messages = s.consumer.Messages()
	s.marker = s.consumer

	// consume errors
	go func() {
		for err := range s.consumer.Errors() {
			s.Log.Printf("kafka consumer error: %v", err)
		}
	}()

	// consume notifications
	go func() {
		for ntf := range s.consumer.Notifications() {
			s.Log.Debugf("rebalanced: %+v", ntf)
		}
	}()
	return nil
}

// Close closes the underlying kafka consumer.
func (s *Source) Close() error {
	if s.consumer == nil {
		return nil
	}
	err := s.consumer.Close()
	return errors.Wrap(err, "closing kafka consumer")
}

func (s *Source) decodeAvroValueWithSchemaRegistry(val []byte) (interface{}, error) {
	if len(val) <= 6 || val[0] != 0 {
		return nil, errors.Errorf("unexpected magic byte or length in avro kafka value, should be 0x00, but got 0x%.8x", val)
	}
	id := int32(binary.BigEndian.Uint32(val[1:]))
	codec, err := s.getCodec(id)
	if err != nil {
		return nil, errors.Wrap(err, "getting avro codec")
	}
	native, err := avroDecode(codec, val[5:])
	if err != nil {
		return nil, errors.Wrap(err, "decoding avro record")
	}
	return proposalFromNative(native)
}

// The Schema type is an object produced by the schema registry.
type Schema struct {
	Schema  string `json:"schema"`  // The actual AVRO schema
	Subject string `json:"subject"` // Subject where the schema is registered for
	Version int    `json:"version"` // Version within this subject
	ID      int    `json:"id"`      // Registry's unique id
}

func registryBase(url string) string {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return strings.TrimSuffix(url, "/")
	}
	return "http://" + strings.TrimSuffix(url, "/")
}

func (s *Source) getCodec(id int32) (rschema avro.Schema, rerr error) {
	s.lock.RLock()
	if codec, ok := s.cache[id]; ok {
		s.lock.RUnlock()
		return codec, nil
	}
	s.lock.RUnlock()
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.cache == nil {
		s.cache = make(map[int32]avro.Schema)
	}
	r, err := http.Get(fmt.Sprintf("%s/schemas/ids/%d", registryBase(s.RegistryURL), id))
	if err != nil {
		return nil, errors.Wrap(err, "getting schema from registry")
	}
	defer func() {
		if err := r.Body.Close(); err != nil && rerr == nil {
			rerr = errors.Wrap(err, "closing registry response")
		}
	}()
	if r.StatusCode >= 300 {
		bod, err := ioutil.ReadAll(r.Body)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to get schema, code: %d, no body", r.StatusCode)
		}
		return nil, errors.Errorf("Failed to get schema, code: %d, resp: %s", r.StatusCode, bod)
	}
	schema := &Schema{}
	if err := json.NewDecoder(r.Body).Decode(schema); err != nil {
		return nil, errors.Wrap(err, "decoding schema from registry")
	}
	codec, err := avro.ParseSchema(schema.Schema)
	if err != nil {
		return nil, errors.Wrap(err, "parsing schema")
	}
	s.cache[id] = codec
	return codec, nil
}

func avroDecode(codec avro.Schema, data []byte) (map[string]interface{}, error) {
	reader := avro.NewGenericDatumReader()
	// SetSchema must be called before calling Read
	reader.SetSchema(codec)
	decoder := avro.NewBinaryDecoder(data)
	decodedRecord := avro.NewGenericRecord(codec)
	if err := reader.Read(decodedRecord, decoder); err != nil {
		return nil, errors.Wrap(err, "reading generic datum")
	}
	return decodedRecord.Map(), nil
}
