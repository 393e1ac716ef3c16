package thermal

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wangshicheng1995/phonetemp/internal/errors"
)

type fakeSource struct {
	mu  sync.Mutex
	raw int
	err error
}

func (f *fakeSource) ReadRawLevel() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.raw, f.err
}

func (f *fakeSource) set(raw int) {
	f.mu.Lock()
	f.raw = raw
	f.mu.Unlock()
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type notifyingFakeSource struct {
	fakeSource
	notify chan struct{}
}

func (f *notifyingFakeSource) Notifications() <-chan struct{} {
	return f.notify
}

func waitTransition(t *testing.T, s *Sampler) Transition {
	t.Helper()
	select {
	case tr := <-s.Transitions():
		return tr
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transition")
		return Transition{}
	}
}

func assertNoTransition(t *testing.T, s *Sampler, d time.Duration) {
	t.Helper()
	select {
	case tr := <-s.Transitions():
		t.Fatalf("unexpected transition %v -> %v", tr.From, tr.To)
	case <-time.After(d):
	}
}

func TestLevelOrdering(t *testing.T) {
	assert.True(t, Normal < Fair)
	assert.True(t, Fair < Serious)
	assert.True(t, Serious < Critical)
}

func TestLevelFromRawUnknownMapsToNormal(t *testing.T) {
	assert.Equal(t, Normal, LevelFromRaw(-1))
	assert.Equal(t, Normal, LevelFromRaw(4))
	assert.Equal(t, Normal, LevelFromRaw(99))
	assert.Equal(t, Serious, LevelFromRaw(2))
}

func TestLevelFromStringRoundTrip(t *testing.T) {
	for level := Normal; level <= Critical; level++ {
		assert.Equal(t, level, LevelFromString(level.String()))
	}
	assert.Equal(t, Normal, LevelFromString("melting"))
}

func TestSamplerEmitsTransitionOnChange(t *testing.T) {
	source := &fakeSource{raw: int(Normal)}
	s := NewSampler(source, 10*time.Millisecond)
	s.Start()
	defer s.Stop()

	source.set(int(Serious))

	tr := waitTransition(t, s)
	assert.Equal(t, Normal, tr.From)
	assert.Equal(t, Serious, tr.To)
	assert.Equal(t, Serious, s.Current())
}

func TestSamplerNoTransitionWhenStateUnchanged(t *testing.T) {
	source := &fakeSource{raw: int(Fair)}
	s := NewSampler(source, 10*time.Millisecond)
	s.Start()
	defer s.Stop()

	assertNoTransition(t, s, 100*time.Millisecond)
	assert.Equal(t, Fair, s.Current())
}

func TestSamplerHoldsStateOnReadError(t *testing.T) {
	source := &fakeSource{raw: int(Fair)}
	s := NewSampler(source, 10*time.Millisecond)
	s.Start()
	defer s.Stop()

	source.fail(errors.New().New(ErrSourceRead))

	assertNoTransition(t, s, 100*time.Millisecond)
	assert.Equal(t, Fair, s.Current())

	// Recovery on the next tick after the source comes back.
	source.fail(nil)
	source.set(int(Critical))
	tr := waitTransition(t, s)
	assert.Equal(t, Critical, tr.To)
}

func TestSamplerPushAndPollSingleFire(t *testing.T) {
	source := &notifyingFakeSource{notify: make(chan struct{}, 1)}
	source.raw = int(Normal)

	s := NewSampler(source, 20*time.Millisecond)
	s.Start()
	defer s.Stop()

	// Change arrives via push; the following poll ticks must not re-emit it.
	source.set(int(Critical))
	source.notify <- struct{}{}

	tr := waitTransition(t, s)
	assert.Equal(t, Critical, tr.To)
	assertNoTransition(t, s, 100*time.Millisecond)
}

func TestSamplerStartIdempotent(t *testing.T) {
	source := &fakeSource{raw: int(Normal)}
	s := NewSampler(source, 10*time.Millisecond)
	s.Start()
	s.Start()
	defer s.Stop()

	source.set(int(Fair))
	tr := waitTransition(t, s)
	assert.Equal(t, Fair, tr.To)
	assertNoTransition(t, s, 100*time.Millisecond)
}

func TestSamplerStopIdempotent(t *testing.T) {
	source := &fakeSource{raw: int(Normal)}
	s := NewSampler(source, 10*time.Millisecond)
	s.Start()

	s.Stop()
	s.Stop()

	// No further ticks after stop.
	source.set(int(Critical))
	assertNoTransition(t, s, 100*time.Millisecond)
}

func TestSamplerStopBeforeStart(t *testing.T) {
	s := NewSampler(&fakeSource{}, 10*time.Millisecond)
	require.NotPanics(t, func() { s.Stop() })
}

func TestSysfsSourceBuckets(t *testing.T) {
	cases := []struct {
		milli string
		want  Level
	}{
		{"45000\n", Normal},
		{"60000\n", Fair},
		{"75000\n", Serious},
		{"91000\n", Critical},
	}

	for _, tc := range cases {
		path := t.TempDir() + "/temp"
		require.NoError(t, os.WriteFile(path, []byte(tc.milli), 0o600))

		source := NewSysfsSource(path)
		raw, err := source.ReadRawLevel()
		require.NoError(t, err)
		assert.Equal(t, tc.want, LevelFromRaw(raw), "milli=%s", tc.milli)
	}
}

func TestSysfsSourceMissingFile(t *testing.T) {
	source := NewSysfsSource(t.TempDir() + "/nonexistent")
	_, err := source.ReadRawLevel()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrSourceRead))
}
