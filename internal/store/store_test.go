package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	s := New()
	s.Set("k", "v", 0)
	v, ok, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestSetOverwritesAcrossTypes(t *testing.T) {
	s := New()
	_, err := s.RPush("k", "a")
	require.NoError(t, err)
	s.Set("k", "v", 0)
	v, ok, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestGetExpiredIsAbsent(t *testing.T) {
	s := New()
	s.Set("k", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, ok, err := s.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIncrFromMissingStartsAtOne(t *testing.T) {
	s := New()
	n, err := s.Incr("counter")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = s.Incr("counter")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestIncrNonIntegerErrors(t *testing.T) {
	s := New()
	s.Set("k", "notanumber", 0)
	_, err := s.Incr("k")
	assert.ErrorIs(t, err, ErrNotInteger)
}

func TestWrongTypeErrors(t *testing.T) {
	s := New()
	s.Set("k", "v", 0)
	_, err := s.LLen("k")
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestLPushReversesBatch(t *testing.T) {
	s := New()
	_, err := s.LPush("k", "a", "b", "c")
	require.NoError(t, err)
	got, err := s.LRange("k", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, got)
}

func TestRPushKeepsOrder(t *testing.T) {
	s := New()
	_, err := s.RPush("k", "a", "b", "c")
	require.NoError(t, err)
	got, err := s.LRange("k", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestLPopOnAbsentReturnsAbsentNotEmptyArray(t *testing.T) {
	s := New()
	elems, ok, err := s.LPop("missing", 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, elems)
}

func TestLSetOutOfRange(t *testing.T) {
	s := New()
	s.RPush("k", "a")
	err := s.LSet("k", 5, "x")
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestLSetMissingKey(t *testing.T) {
	s := New()
	err := s.LSet("missing", 0, "x")
	assert.ErrorIs(t, err, ErrNoSuchKey)
}

func TestBLPopWakesOnPush(t *testing.T) {
	s := New()
	done := make(chan struct{})
	go func() {
		defer close(done)
		var elems []string
		var ok bool
		for {
			chans := s.ArmWaiters([]string{"k"})
			elems, ok, _ = s.LPop("k", 1)
			if ok {
				break
			}
			s.Wait(chans, time.Now().Add(time.Second))
		}
		assert.Equal(t, []string{"v"}, elems)
	}()

	time.Sleep(20 * time.Millisecond)
	_, err := s.RPush("k", "v")
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("blocked pop never woke up")
	}
}

// TestBLPopNoLostWakeupUnderRace hammers the push against the
// arm-then-check loop with no synchronizing sleep, so the push lands
// right in the window a "check first, arm after" ordering would miss:
// a push completing (mutate + broadcast) between a failed check and
// the subsequent channel grab. With a finite deadline, a lost wakeup
// here surfaces as a false "no data" result well inside the timeout,
// not a hang, matching how the production BLPOP dispatcher has no
// retry-after-timeout.
func TestBLPopNoLostWakeupUnderRace(t *testing.T) {
	for i := 0; i < 200; i++ {
		s := New()
		popped := make(chan bool, 1)
		go func() {
			deadline := time.Now().Add(200 * time.Millisecond)
			for {
				chans := s.ArmWaiters([]string{"k"})
				_, ok, _ := s.LPop("k", 1)
				if ok {
					popped <- true
					return
				}
				if !s.Wait(chans, deadline) {
					popped <- false
					return
				}
			}
		}()

		_, err := s.RPush("k", "v")
		require.NoError(t, err)

		if !<-popped {
			t.Fatalf("iteration %d: push landed but waiter reported no data", i)
		}
	}
}

func TestZAddReturnsTrueOnlyWhenNew(t *testing.T) {
	s := New()
	isNew, err := s.ZAdd("z", 1, "m")
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = s.ZAdd("z", 2, "m")
	require.NoError(t, err)
	assert.False(t, isNew)
}

func TestZRangeOrdersByScoreThenMember(t *testing.T) {
	s := New()
	s.ZAdd("z", 1, "b")
	s.ZAdd("z", 1, "a")
	s.ZAdd("z", 0, "c")
	got, err := s.ZRange("z", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, got)
}

func TestZRankAbsentMember(t *testing.T) {
	s := New()
	s.ZAdd("z", 1, "a")
	_, ok, err := s.ZRank("z", "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestXAddRejectsZeroZero(t *testing.T) {
	s := New()
	_, err := s.XAdd("stream", "0-0", []string{"f", "v"})
	assert.ErrorIs(t, err, ErrInvalidStreamID)
}

func TestXAddRejectsNonIncreasingID(t *testing.T) {
	s := New()
	_, err := s.XAdd("stream", "5-5", []string{"f", "v"})
	require.NoError(t, err)
	_, err = s.XAdd("stream", "5-5", []string{"f", "v"})
	assert.ErrorIs(t, err, ErrStreamIDTooSmall)
	_, err = s.XAdd("stream", "4-0", []string{"f", "v"})
	assert.ErrorIs(t, err, ErrStreamIDTooSmall)
}

func TestXAddAutoSeq(t *testing.T) {
	s := New()
	id1, err := s.XAdd("stream", "5-*", []string{"f", "v"})
	require.NoError(t, err)
	assert.Equal(t, StreamID{5, 0}, id1)
	id2, err := s.XAdd("stream", "5-*", []string{"f", "v"})
	require.NoError(t, err)
	assert.Equal(t, StreamID{5, 1}, id2)
}

func TestXRangeInclusiveWithOpenSentinels(t *testing.T) {
	s := New()
	s.XAdd("stream", "1-1", []string{"f", "v1"})
	s.XAdd("stream", "2-1", []string{"f", "v2"})
	s.XAdd("stream", "3-1", []string{"f", "v3"})

	entries, err := s.XRange("stream", "-", "+")
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	entries, err = s.XRange("stream", "2-0", "2-5")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StreamID{2, 1}, entries[0].ID)
}

func TestXReadAfterOmitsStreamsWithNothingNew(t *testing.T) {
	s := New()
	s.XAdd("stream", "1-1", []string{"f", "v"})
	result, err := s.XReadAfter([]string{"stream"}, []StreamID{{1, 1}}, 0)
	require.NoError(t, err)
	assert.Empty(t, result)

	s.XAdd("stream", "2-1", []string{"f", "v2"})
	result, err = s.XReadAfter([]string{"stream"}, []StreamID{{1, 1}}, 0)
	require.NoError(t, err)
	require.Contains(t, result, "stream")
	assert.Len(t, result["stream"], 1)
}

type fakeSubscriber struct {
	got []string
}

func (f *fakeSubscriber) Deliver(channel, message string) {
	f.got = append(f.got, channel+":"+message)
}

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	s := New()
	a, b := &fakeSubscriber{}, &fakeSubscriber{}
	_, err := s.Subscribe("ch", "a", a)
	require.NoError(t, err)
	_, err = s.Subscribe("ch", "b", b)
	require.NoError(t, err)

	n := s.Publish("ch", "hello")
	assert.EqualValues(t, 2, n)
	assert.Equal(t, []string{"ch:hello"}, a.got)
	assert.Equal(t, []string{"ch:hello"}, b.got)

	remaining := s.Unsubscribe("ch", "a")
	assert.Equal(t, 1, remaining)
	s.Publish("ch", "again")
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 2)
}

func TestTTLReportsAbsentAndNoExpiry(t *testing.T) {
	s := New()
	assert.EqualValues(t, -2, s.TTL("missing"))
	s.Set("k", "v", 0)
	assert.EqualValues(t, -1, s.TTL("k"))
}

func TestExpireAndDel(t *testing.T) {
	s := New()
	s.Set("k", "v", 0)
	ok := s.Expire("k", time.Hour)
	assert.True(t, ok)
	assert.Greater(t, s.TTL("k"), int64(0))

	n := s.Del("k", "nope")
	assert.EqualValues(t, 1, n)
	assert.EqualValues(t, 0, s.Exists("k"))
}
