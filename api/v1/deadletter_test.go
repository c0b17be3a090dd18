package api

import (
	"testing"

	proto "github.com/gogo/protobuf/proto"
	"github.com/stretchr/testify/require"
)

func TestDeadLetterWireFormat(t *testing.T) {
	letter := &DeadLetter{
		RecordId:        "1f0c",
		JobName:         "smartmeter-preprocess",
		SourceTopic:     "readings",
		SourcePartition: 3,
		SourceOffset:    4096,
		SourceKey:       []byte("meter-7"),
		Reason:          "malformed input: payload is not valid json",
		PayloadLocation: &Location{
			Kind:       Location_MINIO,
			Bucket:     "staging",
			ObjectName: "temp/deadletter/smartmeter-preprocess/1f0c.bin",
		},
		DeadLetteredAtUnixNano: 1700000000000000000,
	}

	b, err := proto.Marshal(letter)
	require.NoError(t, err)

	decoded := &DeadLetter{}
	require.NoError(t, proto.Unmarshal(b, decoded))
	require.Equal(t, letter, decoded)
	require.Equal(t, Location_MINIO, decoded.GetPayloadLocation().GetKind())
}

func TestNilGetters(t *testing.T) {
	var letter *DeadLetter
	require.Equal(t, "", letter.GetRecordId())
	require.Nil(t, letter.GetPayload())
	require.Nil(t, letter.GetPayloadLocation())
	require.Equal(t, Location_INLINE, letter.GetPayloadLocation().GetKind())
	require.Equal(t, "MINIO", Location_MINIO.String())
}
