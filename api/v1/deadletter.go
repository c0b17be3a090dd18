package api

import (
	proto "github.com/gogo/protobuf/proto"
)

// Messages of deadletter.proto. The struct tags drive the reflection based
// codec of gogo/protobuf, keep them in sync with the field numbers of the schema.

type Location_Kind int32

const (
	Location_INLINE Location_Kind = 0
	Location_MINIO  Location_Kind = 1
)

var Location_Kind_name = map[int32]string{
	0: "INLINE",
	1: "MINIO",
}

var Location_Kind_value = map[string]int32{
	"INLINE": 0,
	"MINIO":  1,
}

func (x Location_Kind) String() string {
	return proto.EnumName(Location_Kind_name, int32(x))
}

// Location points to a stored payload.
type Location struct {
	Kind       Location_Kind `protobuf:"varint,1,opt,name=kind,proto3,enum=smartmeter.api.v1.Location_Kind" json:"kind,omitempty"`
	Bucket     string        `protobuf:"bytes,2,opt,name=bucket,proto3" json:"bucket,omitempty"`
	ObjectName string        `protobuf:"bytes,3,opt,name=object_name,json=objectName,proto3" json:"object_name,omitempty"`
}

func (m *Location) Reset()         { *m = Location{} }
func (m *Location) String() string { return proto.CompactTextString(m) }
func (*Location) ProtoMessage()    {}

func (m *Location) GetKind() Location_Kind {
	if m != nil {
		return m.Kind
	}
	return Location_INLINE
}

func (m *Location) GetBucket() string {
	if m != nil {
		return m.Bucket
	}
	return ""
}

func (m *Location) GetObjectName() string {
	if m != nil {
		return m.ObjectName
	}
	return ""
}

// DeadLetter is a record that could not be decoded.
type DeadLetter struct {
	RecordId string `protobuf:"bytes,1,opt,name=record_id,json=recordId,proto3" json:"record_id,omitempty"`
	JobName  string `protobuf:"bytes,2,opt,name=job_name,json=jobName,proto3" json:"job_name,omitempty"`

	SourceTopic     string `protobuf:"bytes,3,opt,name=source_topic,json=sourceTopic,proto3" json:"source_topic,omitempty"`
	SourcePartition int32  `protobuf:"varint,4,opt,name=source_partition,json=sourcePartition,proto3" json:"source_partition,omitempty"`
	SourceOffset    int64  `protobuf:"varint,5,opt,name=source_offset,json=sourceOffset,proto3" json:"source_offset,omitempty"`
	SourceKey       []byte `protobuf:"bytes,6,opt,name=source_key,json=sourceKey,proto3" json:"source_key,omitempty"`

	Reason string `protobuf:"bytes,7,opt,name=reason,proto3" json:"reason,omitempty"`

	Payload         []byte    `protobuf:"bytes,8,opt,name=payload,proto3" json:"payload,omitempty"`
	PayloadLocation *Location `protobuf:"bytes,9,opt,name=payload_location,json=payloadLocation,proto3" json:"payload_location,omitempty"`

	DeadLetteredAtUnixNano int64 `protobuf:"varint,10,opt,name=dead_lettered_at_unix_nano,json=deadLetteredAtUnixNano,proto3" json:"dead_lettered_at_unix_nano,omitempty"`
}

func (m *DeadLetter) Reset()         { *m = DeadLetter{} }
func (m *DeadLetter) String() string { return proto.CompactTextString(m) }
func (*DeadLetter) ProtoMessage()    {}

func (m *DeadLetter) GetRecordId() string {
	if m != nil {
		return m.RecordId
	}
	return ""
}

func (m *DeadLetter) GetPayload() []byte {
	if m != nil {
		return m.Payload
	}
	return nil
}

func (m *DeadLetter) GetPayloadLocation() *Location {
	if m != nil {
		return m.PayloadLocation
	}
	return nil
}

func init() {
	proto.RegisterEnum("smartmeter.api.v1.Location_Kind", Location_Kind_name, Location_Kind_value)
	proto.RegisterType((*Location)(nil), "smartmeter.api.v1.Location")
	proto.RegisterType((*DeadLetter)(nil), "smartmeter.api.v1.DeadLetter")
}
