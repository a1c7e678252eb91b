package broadcast

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zhouzirui/aituber/backend/internal/model/live"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPublishReachesSessionSubscribersOnly(t *testing.T) {
	hub := NewHub(4)
	defer hub.Close()

	a := hub.Subscribe("s1")
	b := hub.Subscribe("s1")
	other := hub.Subscribe("s2")

	n := hub.Publish(live.ReplyOutput{SessionID: "s1", Response: "やあ"})
	assert.Equal(t, 2, n)

	assert.Equal(t, "やあ", (<-a.C()).Response)
	assert.Equal(t, "やあ", (<-b.C()).Response)
	select {
	case got := <-other.C():
		t.Fatalf("unexpected reply on s2: %+v", got)
	default:
	}
}

func TestFullQueueDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(1)
	defer hub.Close()

	sub := hub.Subscribe("s1")
	assert.Equal(t, 1, hub.Publish(live.ReplyOutput{SessionID: "s1", Response: "1"}))
	assert.Equal(t, 0, hub.Publish(live.ReplyOutput{SessionID: "s1", Response: "2"}))
	assert.Equal(t, "1", (<-sub.C()).Response)
}

func TestCloseUnsubscribes(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe("s1")
	require.Equal(t, 1, hub.Subscribers("s1"))

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Subscribers("s1"))
	_, ok := <-sub.C()
	assert.False(t, ok)

	hub.Close()
	late := hub.Subscribe("s1")
	_, ok = <-late.C()
	assert.False(t, ok)
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	hub := NewHub(64)

	var readers sync.WaitGroup
	for i := 0; i < 4; i++ {
		sub := hub.Subscribe("s1")
		readers.Add(1)
		go func() {
			defer readers.Done()
			for range sub.C() {
			}
		}()
	}

	var writers sync.WaitGroup
	for i := 0; i < 8; i++ {
		writers.Add(1)
		go func() {
			defer writers.Done()
			for j := 0; j < 20; j++ {
				hub.Publish(live.ReplyOutput{SessionID: "s1"})
			}
		}()
	}
	writers.Wait()

	hub.Close()
	readers.Wait()
}
