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
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/catalogkit/mdk"
	"github.com/catalogkit/mdk/test"
	liavro "github.com/linkedin/goavro/v2"
	"github.com/pkg/errors"
)

func TestSinkJSON(t *testing.T) {
	urn := mdk.MakeDatasetURN("hive", "db.t", "PROD")
	ev := mdk.NewChangeEvent(urn, &mdk.DatasetProperties{Name: "t"}, &mdk.Status{})
	prop := mdk.NewProposal(urn, &mdk.Status{})

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		rec, err := mdk.DecodeRecord(val)
		if err != nil {
			return err
		}
		if _, ok := rec.(*mdk.ChangeEvent); !ok {
			return errors.Errorf("expected a change event, got %T", rec)
		}
		return nil
	})
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		rec, err := mdk.DecodeRecord(val)
		if err != nil {
			return err
		}
		if _, ok := rec.(*mdk.ChangeProposalWrapper); !ok {
			return errors.Errorf("expected a proposal, got %T", rec)
		}
		return nil
	})

	s, err := NewSink(nil, OptSinkProducer(producer))
	test.ErrNil(t, err, "NewSink")
	test.ErrNil(t, s.Write(context.Background(), ev.WorkUnit()), "write event")
	test.ErrNil(t, s.Write(context.Background(), prop.WorkUnit()), "write proposal")
	test.MustBe(t, 2, s.Sent())
	test.ErrNil(t, s.Close(), "Close")
}

func TestSinkAvroExplodesSnapshots(t *testing.T) {
	codec, err := liavro.NewCodec(ProposalSchema)
	test.ErrNil(t, err, "NewCodec")
	urn := mdk.MakeDatasetURN("hive", "db.t", "PROD")
	ev := mdk.NewChangeEvent(urn, &mdk.DatasetProperties{Name: "t"}, &mdk.Status{})

	var names []string
	check := func(val []byte) error {
		if val[0] != 0 {
			return errors.New("missing magic byte")
		}
		native, _, err := codec.NativeFromBinary(val[5:])
		if err != nil {
			return err
		}
		p, err := proposalFromNative(native.(map[string]interface{}))
		if err != nil {
			return err
		}
		names = append(names, p.AspectName())
		return nil
	}
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(check)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(check)

	s, err := NewSink(nil, OptSinkProducer(producer), OptSinkEncoding(EncodingAvro), OptSinkSchemaID(3))
	test.ErrNil(t, err, "NewSink")
	test.ErrNil(t, s.Write(context.Background(), ev.WorkUnit()), "write event")
	test.MustBe(t, []string{mdk.DatasetPropertiesAspectName, mdk.StatusAspectName}, names)
	test.ErrNil(t, s.Close(), "Close")
}

func TestSinkSendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	s, err := NewSink(nil, OptSinkProducer(producer))
	test.ErrNil(t, err, "NewSink")
	err = s.Write(context.Background(), mdk.NewProposal(mdk.MakeTagURN("pii"), &mdk.TagKey{Name: "pii"}).WorkUnit())
	if errors.Cause(err) != sarama.ErrOutOfBrokers {
		t.Fatalf("expected ErrOutOfBrokers, got %v", err)
	}
	test.ErrNil(t, s.Close(), "Close")
}

func TestSinkBadEncoding(t *testing.T) {
	if _, err := NewSink(nil, OptSinkEncoding("protobuf")); err == nil {
		t.Fatal("expected an error for an unknown encoding")
	}
}
