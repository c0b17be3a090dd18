package deadletter

import (
	"context"
	"errors"
	"testing"
	"time"

	proto "github.com/gogo/protobuf/proto"
	kafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	api "github.com/weak-head/smartmeter-pipe/api/v1"
	"github.com/weak-head/smartmeter-pipe/internal/logger"
)

func TestReplayerCreation(t *testing.T) {
	log, _ := logger.NewNullLogger()

	r, err := NewReplayer(ReplayConfig{}, nil, &writerMock{}, nil, log)
	require.Nil(t, r)
	require.Equal(t, ErrNoReaderProvided, err)

	r, err = NewReplayer(ReplayConfig{}, &readerMock{}, nil, nil, log)
	require.Nil(t, r)
	require.Equal(t, ErrNoWriterProvided, err)

	r, err = NewReplayer(ReplayConfig{}, &readerMock{}, &writerMock{}, nil, log)
	require.NoError(t, err)
	require.Equal(t, defaultDrainTimeout, r.config.DrainTimeout)
}

func TestReplayerFlow(t *testing.T) {
	for scenario, fn := range map[string]func(
		t *testing.T,
		r *readerMock,
		w *writerMock,
		s *storageMock,
		h *logtest.Hook,
		rp *replayer,
	){
		"replays archived and inline payloads":          testReplaysPayloads,
		"stops on canceled context":                     testReplayStopsOnContext,
		"fails on archived payload without storage":     testReplayFailsWithoutStorage,
		"fails on a corrupted dead letter":              testReplayFailsOnCorruptedLetter,
		"fails on a dead letter without source topic":   testReplayFailsWithoutSourceTopic,
		"does not commit if the payload is not written": testReplayNoCommitOnWriteError,
		"fails on fetch error":                          testReplayFailsOnFetchError,
	} {
		t.Run(scenario, func(t *testing.T) {
			reader := &readerMock{}
			writer := &writerMock{}
			store := &storageMock{objects: map[string][]byte{}}
			log, hook := logger.NewNullLogger()

			rp, err := NewReplayer(
				ReplayConfig{DrainTimeout: 10 * time.Millisecond},
				reader,
				writer,
				store,
				log,
			)
			require.NoError(t, err)

			fn(t, reader, writer, store, hook, rp)
		})
	}
}

type readerMock struct {
	msgs      []kafka.Message
	fetchErr  error
	committed []kafka.Message
}

func (r *readerMock) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r.fetchErr != nil {
		return kafka.Message{}, r.fetchErr
	}

	if len(r.msgs) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}

	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *readerMock) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

// deadLetters dead-letters the message through a real dead-letterer
// and returns the published envelopes.
func deadLetters(t *testing.T, store Storage) []kafka.Message {
	log, _ := logger.NewNullLogger()
	w := &writerMock{}

	d, err := NewDeadLetterer(config, w, store, log)
	require.NoError(t, err)
	require.NoError(t, d.DeadLetter(context.Background(), message, cause))

	return w.msgs
}

func envelope(t *testing.T, letter *api.DeadLetter) kafka.Message {
	b, err := proto.Marshal(letter)
	require.NoError(t, err)
	return kafka.Message{Value: b}
}

func testReplaysPayloads(t *testing.T, r *readerMock, w *writerMock, s *storageMock, h *logtest.Hook, rp *replayer) {
	r.msgs = append(r.msgs, deadLetters(t, s)...)
	r.msgs = append(r.msgs, deadLetters(t, nil)...)
	letters := append([]kafka.Message{}, r.msgs...)

	replayed, err := rp.Replay(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, replayed)

	require.Len(t, w.msgs, 2)
	for _, m := range w.msgs {
		require.Equal(t, message.Topic, m.Topic)
		require.Equal(t, message.Key, m.Key)
		require.Equal(t, message.Value, m.Value)
	}
	require.Equal(t, letters, r.committed)

	require.Equal(t, logrus.InfoLevel, h.LastEntry().Level)
	require.Equal(t, "Dead-letter topic has been drained, 2 records replayed.", h.LastEntry().Message)
}

func testReplayStopsOnContext(t *testing.T, r *readerMock, w *writerMock, s *storageMock, h *logtest.Hook, rp *replayer) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	replayed, err := rp.Replay(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, replayed)
	require.Equal(t, "Replay has been stopped.", h.LastEntry().Message)
}

func testReplayFailsWithoutStorage(t *testing.T, r *readerMock, w *writerMock, s *storageMock, h *logtest.Hook, rp *replayer) {
	r.msgs = deadLetters(t, s)
	rp.storage = nil

	replayed, err := rp.Replay(context.Background())
	require.Equal(t, ErrNoStorageProvided, err)
	require.Equal(t, 0, replayed)
	require.Empty(t, w.msgs)
	require.Empty(t, r.committed)

	require.Equal(t, logrus.ErrorLevel, h.LastEntry().Level)
	require.Equal(t, "Failed to retrieve the record payload.", h.LastEntry().Message)
}

func testReplayFailsOnCorruptedLetter(t *testing.T, r *readerMock, w *writerMock, s *storageMock, h *logtest.Hook, rp *replayer) {
	r.msgs = []kafka.Message{{Value: []byte{0xff, 0xff}}}

	_, err := rp.Replay(context.Background())
	require.Error(t, err)
	require.Empty(t, w.msgs)
	require.Empty(t, r.committed)
	require.Equal(t, "Failed to unmarshal the dead letter.", h.LastEntry().Message)
}

func testReplayFailsWithoutSourceTopic(t *testing.T, r *readerMock, w *writerMock, s *storageMock, h *logtest.Hook, rp *replayer) {
	r.msgs = []kafka.Message{envelope(t, &api.DeadLetter{
		RecordId:        "record-1",
		Payload:         []byte("{}"),
		PayloadLocation: &api.Location{Kind: api.Location_INLINE},
	})}

	_, err := rp.Replay(context.Background())
	require.Equal(t, ErrNoSourceTopic, err)
	require.Empty(t, w.msgs)
	require.Empty(t, r.committed)
}

func testReplayNoCommitOnWriteError(t *testing.T, r *readerMock, w *writerMock, s *storageMock, h *logtest.Hook, rp *replayer) {
	r.msgs = deadLetters(t, nil)
	w.err = errors.New("leader not available")

	replayed, err := rp.Replay(context.Background())
	require.Equal(t, w.err, err)
	require.Equal(t, 0, replayed)
	require.Empty(t, r.committed)
	require.Equal(t, "Failed to republish the record.", h.LastEntry().Message)
}

func testReplayFailsOnFetchError(t *testing.T, r *readerMock, w *writerMock, s *storageMock, h *logtest.Hook, rp *replayer) {
	r.fetchErr = errors.New("group coordinator not available")

	_, err := rp.Replay(context.Background())
	require.Equal(t, r.fetchErr, err)
	require.Equal(t, logrus.ErrorLevel, h.LastEntry().Level)
	require.Equal(t, "Failed to fetch a dead letter.", h.LastEntry().Message)
}
