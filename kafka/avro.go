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
	"strings"

	"github.com/catalogkit/mdk"
	liavro "github.com/linkedin/goavro/v2"
	"github.com/pkg/errors"
)

// ProposalSchema is the Avro schema change proposals are produced with.
const ProposalSchema = `{
  "type": "record",
  "name": "MetadataChangeProposal",
  "namespace": "com.linkedin.pegasus2avro.mxe",
  "fields": [
    {"name": "entityType", "type": "string"},
    {"name": "entityUrn", "type": ["null", "string"], "default": null},
    {"name": "changeType", "type": {"type": "enum", "name": "ChangeType", "namespace": "com.linkedin.pegasus2avro.events.metadata",
      "symbols": ["UPSERT", "CREATE", "UPDATE", "DELETE", "PATCH", "RESTATE"]}},
    {"name": "aspectName", "type": ["null", "string"], "default": null},
    {"name": "aspect", "type": ["null", {"type": "record", "name": "GenericAspect", "fields": [
      {"name": "value", "type": "bytes"},
      {"name": "contentType", "type": "string"}
    ]}], "default": null}
  ]
}`

const genericAspectName = "com.linkedin.pegasus2avro.mxe.GenericAspect"

// confluentHeader is a zero magic byte followed by the big endian schema id.
func confluentHeader(schemaID int) []byte {
	buf := make([]byte, 5, 1000)
	binary.BigEndian.PutUint32(buf[1:], uint32(schemaID))
	return buf
}

// encodeProposal serializes w in the Confluent wire format.
func encodeProposal(codec *liavro.Codec, schemaID int, w *mdk.ChangeProposalWrapper) ([]byte, error) {
	native, err := proposalToNative(w)
	if err != nil {
		return nil, err
	}
	buf, err := codec.BinaryFromNative(confluentHeader(schemaID), native)
	return buf, errors.Wrapf(err, "avro encoding proposal for '%s'", w.EntityURN)
}

func proposalToNative(w *mdk.ChangeProposalWrapper) (map[string]interface{}, error) {
	data, err := w.MarshalJSON()
	if err != nil {
		return nil, err
	}
	p := &mdk.ChangeProposal{}
	if err := p.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	native := map[string]interface{}{
		"entityType": p.EntityType,
		"entityUrn":  liavro.Union("string", p.EntityURN),
		"changeType": string(p.ChangeType),
		"aspectName": nil,
		"aspect":     nil,
	}
	if p.AspectName != "" {
		native["aspectName"] = liavro.Union("string", p.AspectName)
	}
	if p.Aspect != nil {
		native["aspect"] = liavro.Union(genericAspectName, map[string]interface{}{
			"value":       p.Aspect.Value,
			"contentType": p.Aspect.ContentType,
		})
	}
	return native, nil
}

// proposalFromNative builds a proposal from a decoded Avro record. It accepts
// both the union wrapped maps goavro produces and the bare values of
// elodina/go-avro generic records.
func proposalFromNative(m map[string]interface{}) (*mdk.ChangeProposalWrapper, error) {
	p := &mdk.ChangeProposal{}
	var err error
	if p.EntityURN, err = nativeString(m, "entityUrn"); err != nil {
		return nil, err
	}
	if p.EntityURN == "" {
		return nil, errors.New("avro proposal has no entityUrn")
	}
	if p.EntityType, err = nativeString(m, "entityType"); err != nil {
		return nil, err
	}
	changeType, err := nativeString(m, "changeType")
	if err != nil {
		return nil, err
	}
	p.ChangeType = mdk.ChangeType(changeType)
	if p.AspectName, err = nativeString(m, "aspectName"); err != nil {
		return nil, err
	}
	if aspect := unwrapUnion(m["aspect"]); aspect != nil {
		am, ok := nativeMap(aspect)
		if !ok {
			return nil, errors.Errorf("avro proposal aspect is a %T", aspect)
		}
		value, ok := am["value"].([]byte)
		if !ok {
			return nil, errors.Errorf("avro aspect value is a %T", am["value"])
		}
		contentType, err := nativeString(am, "contentType")
		if err != nil {
			return nil, err
		}
		p.Aspect = &mdk.GenericAspect{Value: value, ContentType: contentType}
	}
	props, err := mdk.NewWorkUnit("", p).Proposals()
	if err != nil {
		return nil, errors.Wrap(err, "decoding avro proposal")
	}
	return props[0], nil
}

func unwrapUnion(v interface{}) interface{} {
	m, ok := v.(map[string]interface{})
	if !ok || len(m) != 1 {
		return v
	}
	for k, inner := range m {
		if k == "string" || k == "bytes" || strings.HasSuffix(k, "GenericAspect") {
			return inner
		}
	}
	return v
}

type mapper interface {
	Map() map[string]interface{}
}

func nativeMap(v interface{}) (map[string]interface{}, bool) {
	switch v := v.(type) {
	case map[string]interface{}:
		return v, true
	case mapper:
		return v.Map(), true
	}
	return nil, false
}

func nativeString(m map[string]interface{}, key string) (string, error) {
	switch v := unwrapUnion(m[key]).(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case interface{ Get() string }:
		return v.Get(), nil
	default:
		return "", errors.Errorf("avro field '%s' is a %T", key, v)
	}
}
