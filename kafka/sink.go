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
	"context"
	"crypto/tls"
	"io/ioutil"
	"log"

	"github.com/Shopify/sarama"
	"github.com/catalogkit/mdk"
	liavro "github.com/linkedin/goavro/v2"
	"github.com/pkg/errors"
)

// Sink produces work units to kafka. With JSON encoding snapshots go to the
// event topic as they are and proposals go to the proposal topic. With Avro
// encoding every unit is exploded into proposals.
type Sink struct {
	ProposalTopic string
	EventTopic    string
	Encoding      string
	// SchemaID is the registry id of ProposalSchema written into the
	// Confluent header of Avro messages.
	SchemaID int

	producer sarama.SyncProducer
	tlsConf  *tls.Config
	codec    *liavro.Codec
	hosts    []string
	sent     int
}

// SinkOption configures a Sink.
type SinkOption func(s *Sink) error

// OptSinkTopics sets the proposal and event topics.
func OptSinkTopics(proposals, events string) SinkOption {
	return func(s *Sink) error {
		s.ProposalTopic = proposals
		s.EventTopic = events
		return nil
	}
}

// OptSinkEncoding sets the message encoding, EncodingJSON or EncodingAvro.
func OptSinkEncoding(enc string) SinkOption {
	return func(s *Sink) error {
		switch enc {
		case EncodingJSON, EncodingAvro:
			s.Encoding = enc
			return nil
		default:
			return errors.Errorf("unsupported kafka sink encoding: '%s'", enc)
		}
	}
}

// OptSinkSchemaID sets the schema id written with Avro messages.
func OptSinkSchemaID(id int) SinkOption {
	return func(s *Sink) error {
		s.SchemaID = id
		return nil
	}
}

// OptSinkProducer uses p rather than connecting to the sink's hosts.
func OptSinkProducer(p sarama.SyncProducer) SinkOption {
	return func(s *Sink) error {
		s.producer = p
		return nil
	}
}

// OptSinkTLS connects to the brokers over TLS.
func OptSinkTLS(c *TLSConfig) SinkOption {
	return func(s *Sink) error {
		conf, err := GetTLSConfig(c, nil)
		s.tlsConf = conf
		return errors.Wrap(err, "getting tls config")
	}
}

// NewSink connects a producer to hosts.
func NewSink(hosts []string, opts ...SinkOption) (*Sink, error) {
	s := &Sink{
		ProposalTopic: DefaultProposalTopic,
		EventTopic:    DefaultEventTopic,
		Encoding:      EncodingJSON,
		hosts:         hosts,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.Wrap(err, "applying sink option")
		}
	}
	if s.Encoding == EncodingAvro {
		codec, err := liavro.NewCodec(ProposalSchema)
		if err != nil {
			return nil, errors.Wrap(err, "parsing proposal schema")
		}
		s.codec = codec
	}
	if s.producer != nil {
		return s, nil
	}
	sarama.Logger = log.New(ioutil.Discard, "", 0)
	conf := sarama.NewConfig()
	conf.Version = sarama.V0_10_0_0
	conf.Producer.RequiredAcks = sarama.WaitForAll
	conf.Producer.Return.Successes = true
	if s.tlsConf != nil {
		conf.Net.TLS.Enable = true
		conf.Net.TLS.Config = s.tlsConf
	}
	p, err := sarama.NewSyncProducer(hosts, conf)
	if err != nil {
		return nil, errors.Wrap(err, "getting new producer")
	}
	s.producer = p
	return s, nil
}

// Write implements mdk.Sink.
func (s *Sink) Write(ctx context.Context, wu *mdk.WorkUnit) error {
	if s.Encoding == EncodingAvro {
		props, err := wu.Proposals()
		if err != nil {
			return err
		}
		for _, p := range props {
			if err := ctx.Err(); err != nil {
				return err
			}
			val, err := encodeProposal(s.codec, s.SchemaID, p)
			if err != nil {
				return err
			}
			if err := s.send(s.ProposalTopic, p.EntityURN, val); err != nil {
				return err
			}
		}
		return nil
	}
	val, err := mdk.MarshalMetadata(wu.Metadata)
	if err != nil {
		return errors.Wrapf(err, "encoding work unit '%s'", wu.ID)
	}
	topic := s.ProposalTopic
	if _, ok := wu.Metadata.(*mdk.ChangeEvent); ok {
		topic = s.EventTopic
	}
	return s.send(topic, wu.URN(), val)
}

func (s *Sink) send(topic, key string, val []byte) error {
	_, _, err := s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(val),
	})
	if err != nil {
		return errors.Wrapf(err, "sending '%s' to %s", key, topic)
	}
	s.sent++
	return nil
}

// Sent returns the number of messages produced.
func (s *Sink) Sent() int { return s.sent }

// Close closes the producer.
func (s *Sink) Close() error {
	return errors.Wrap(s.producer.Close(), "closing kafka producer")
}
