package registry

import (
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPublicKey = "0x04abc0000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000"

func testUsername(seed string) string {
	return "user-" + seed[len(seed)-4:]
}

func TestJoinAndLeaveChannel(t *testing.T) {
	r := New(testUsername)

	ch := r.JoinChannel("general", "sym-1", "0x12345678")
	assert.Equal(t, "general", ch.Name)
	assert.Equal(t, "sym-1", ch.SymKeyID)
	assert.Equal(t, "0x12345678", ch.Topic)
	assert.Equal(t, int64(0), ch.LastClockValue)
	assert.True(t, r.HasChannel("general"))

	require.NoError(t, r.LeaveChannel("general"))
	assert.False(t, r.HasChannel("general"))

	err := r.LeaveChannel("general")
	assert.True(t, errors.Is(err, ErrChannelNotFound))
}

func TestRejoinResetsClock(t *testing.T) {
	r := New(testUsername)
	r.JoinChannel("general", "sym-1", "0x12345678")
	_, err := r.ObserveChannelClock("general", 99)
	require.NoError(t, err)

	r.JoinChannel("general", "sym-1", "0x12345678")
	ch, ok := r.Channel("general")
	require.True(t, ok)
	assert.Equal(t, int64(0), ch.LastClockValue)
}

func TestChannelClockOperations(t *testing.T) {
	r := New(testUsername)
	r.JoinChannel("general", "sym", "0x01020304")

	clock, err := r.NextChannelClock("general")
	require.NoError(t, err)
	assert.Equal(t, int64(1), clock)

	clock, err = r.ObserveChannelClock("general", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), clock)

	clock, err = r.ObserveChannelClock("general", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(10), clock, "observing an older value must not move the clock back")

	clock, err = r.NextChannelClock("general")
	require.NoError(t, err)
	assert.Equal(t, int64(11), clock)

	_, err = r.NextChannelClock("missing")
	assert.True(t, errors.Is(err, ErrChannelNotFound))
	_, err = r.ObserveChannelClock("missing", 1)
	assert.True(t, errors.Is(err, ErrChannelNotFound))
}

func TestClockEqualsMaxOfSendsAndObservations(t *testing.T) {
	r := New(testUsername)
	r.JoinChannel("general", "sym", "0x01020304")

	rng := rand.New(rand.NewSource(7))
	var expected, previous int64
	for i := 0; i < 500; i++ {
		var got int64
		var err error
		if rng.Intn(2) == 0 {
			got, err = r.NextChannelClock("general")
			expected++
		} else {
			observed := rng.Int63n(1000)
			got, err = r.ObserveChannelClock("general", observed)
			if observed > expected {
				expected = observed
			}
		}
		require.NoError(t, err)
		require.GreaterOrEqual(t, got, previous)
		require.Equal(t, expected, got)
		previous = got
	}
}

func TestConcurrentObservationsKeepMaximum(t *testing.T) {
	r := New(testUsername)
	r.JoinChannel("general", "sym", "0x01020304")
	r.AddContact(testPublicKey)

	var wg sync.WaitGroup
	for i := 1; i <= 200; i++ {
		wg.Add(1)
		go func(v int64) {
			defer wg.Done()
			_, _ = r.ObserveChannelClock("general", v)
			_, _ = r.ObserveContactClock(testPublicKey, v)
		}(int64(i))
	}
	wg.Wait()

	ch, _ := r.Channel("general")
	c, _ := r.Contact(testPublicKey)
	assert.Equal(t, int64(200), ch.LastClockValue)
	assert.Equal(t, int64(200), c.LastClockValue)
}

func TestContactLifecycle(t *testing.T) {
	r := New(testUsername)

	c := r.AddContact(testPublicKey)
	assert.Equal(t, testPublicKey, c.PublicKey)
	assert.Equal(t, testUsername(testPublicKey), c.Username)
	assert.False(t, c.HasProfile())

	clock, err := r.NextContactClock(testPublicKey)
	require.NoError(t, err)
	assert.Equal(t, int64(1), clock)

	updated, err := r.SetContactProfile(testPublicKey, "Bob", "data:image/png;base64,AA")
	require.NoError(t, err)
	assert.Equal(t, "Bob", updated.DisplayName)
	assert.True(t, updated.HasProfile())

	require.NoError(t, r.RemoveContact(testPublicKey))
	_, ok := r.Contact(testPublicKey)
	assert.False(t, ok)

	err = r.RemoveContact(testPublicKey)
	assert.True(t, errors.Is(err, ErrContactNotFound))
	_, err = r.SetContactProfile(testPublicKey, "Bob", "")
	assert.True(t, errors.Is(err, ErrContactNotFound))
	_, err = r.NextContactClock(testPublicKey)
	assert.True(t, errors.Is(err, ErrContactNotFound))
}

func TestEnsureContactCreatesOnce(t *testing.T) {
	r := New(testUsername)

	c, created := r.EnsureContact(testPublicKey)
	assert.True(t, created)
	_, err := r.ObserveContactClock(testPublicKey, 3)
	require.NoError(t, err)

	c, created = r.EnsureContact(testPublicKey)
	assert.False(t, created)
	assert.Equal(t, int64(3), c.LastClockValue)
}

func TestContactKeyNormalization(t *testing.T) {
	upper := strings.ToUpper(strings.TrimPrefix(testPublicKey, "0x"))
	assert.Equal(t, testPublicKey, ContactKey(upper))
	assert.Equal(t, testPublicKey, ContactKey(" "+testPublicKey+" "))

	r := New(testUsername)
	r.AddContact(upper)
	_, ok := r.Contact(testPublicKey)
	assert.True(t, ok)
}

func TestListingsAreSortedCopies(t *testing.T) {
	r := New(nil)
	r.JoinChannel("b", "s2", "0x02")
	r.JoinChannel("a", "s1", "0x01")
	r.AddContact("0x02")
	r.AddContact("0x01")

	channels := r.Channels()
	require.Len(t, channels, 2)
	assert.Equal(t, "a", channels[0].Name)
	channels[0].LastClockValue = 100

	ch, _ := r.Channel("a")
	assert.Equal(t, int64(0), ch.LastClockValue)

	contacts := r.Contacts()
	require.Len(t, contacts, 2)
	assert.Equal(t, "0x01", contacts[0].PublicKey)
	assert.Equal(t, "", contacts[0].Username)
}

func TestUsernameDoesNotRegister(t *testing.T) {
	r := New(testUsername)

	assert.Equal(t, testUsername(testPublicKey), r.Username(strings.ToUpper(testPublicKey[2:])))
	assert.Empty(t, r.Contacts())
}
