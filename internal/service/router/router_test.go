package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sandevgo/lexibot/internal/core"
	"github.com/sandevgo/lexibot/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memDedup struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemDedup() *memDedup {
	return &memDedup{keys: make(map[string]bool)}
}

func (m *memDedup) IsDuplicate(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], nil
}

func (m *memDedup) MarkProcessed(_ context.Context, key, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return core.ErrAlreadyProcessed
	}
	m.keys[key] = true
	return nil
}

func (m *memDedup) Unmark(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type fakeItems struct {
	mu          sync.Mutex
	byThread    map[string]*core.Item
	latest      *core.Item
	resolutions map[int64][]core.Resolution

	// afterFind, when set, runs after each FindByThread snapshot is
	// taken. Lets a test hold several lookups at the same point.
	afterFind func()
}

func newFakeItems() *fakeItems {
	return &fakeItems{
		byThread:    make(map[string]*core.Item),
		resolutions: make(map[int64][]core.Resolution),
	}
}

func (f *fakeItems) add(item *core.Item) {
	f.byThread[item.ThreadRef] = item
	f.latest = item
}

func (f *fakeItems) Create(context.Context, string, string) (core.Item, error) {
	return core.Item{}, nil
}
func (f *fakeItems) FindByThread(_ context.Context, threadRef string) (*core.Item, error) {
	f.mu.Lock()
	var snapshot *core.Item
	if item := f.byThread[threadRef]; item != nil {
		c := *item
		snapshot = &c
	}
	f.mu.Unlock()
	if f.afterFind != nil {
		f.afterFind()
	}
	return snapshot, nil
}
func (f *fakeItems) FindLatest(context.Context) (*core.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latest == nil {
		return nil, nil
	}
	c := *f.latest
	return &c, nil
}
func (f *fakeItems) LastResolution(context.Context) (core.Resolution, bool, error) {
	return "", false, nil
}
func (f *fakeItems) SetResolution(_ context.Context, id int64, res core.Resolution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.byThread {
		if it.ID == id {
			if it.Resolution != core.ResolutionPending {
				return core.ErrAlreadyResolved
			}
			it.Resolution = res
			f.resolutions[id] = append(f.resolutions[id], res)
			return nil
		}
	}
	return fmt.Errorf("item %d not found", id)
}
func (f *fakeItems) List(context.Context, core.ListFilter) ([]core.Item, error) { return nil, nil }
func (f *fakeItems) DeleteAll(context.Context) error                            { return nil }

type fakeSettings struct {
	mu          sync.Mutex
	theme       string
	themeSet    bool
	themeThread string
}

func (f *fakeSettings) Theme(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.theme, nil
}
func (f *fakeSettings) SetTheme(_ context.Context, t string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.theme, f.themeSet = t, true
	return nil
}
func (f *fakeSettings) ClearTheme(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.theme, f.themeSet = "", false
	return nil
}
func (f *fakeSettings) ThemeThread(context.Context) (string, error) {
	return f.themeThread, nil
}
func (f *fakeSettings) SetThemeThread(context.Context, string) error { return nil }

type fakePlatform struct {
	mu      sync.Mutex
	posts   map[string][]string
	postErr error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{posts: make(map[string][]string)}
}

func (f *fakePlatform) CreateThread(context.Context, string) (string, error) { return "", nil }
func (f *fakePlatform) PostToThread(_ context.Context, threadRef, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return "", f.postErr
	}
	f.posts[threadRef] = append(f.posts[threadRef], text)
	return "msg", nil
}
func (f *fakePlatform) GetThreadMessages(context.Context, string) ([]core.ThreadMessage, error) {
	return nil, nil
}

func (f *fakePlatform) totalPosts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.posts {
		n += len(p)
	}
	return n
}

type fakeTutor struct {
	mu    sync.Mutex
	calls []string
	reply string
}

func (f *fakeTutor) Respond(_ context.Context, _ string, userMessage string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userMessage)
	if f.reply != "" {
		return f.reply
	}
	return "tutor says hi"
}

type fakePoster struct {
	mu   sync.Mutex
	runs int
	err  error
}

func (f *fakePoster) Run(context.Context) (core.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	return core.Item{}, f.err
}

func (f *fakePoster) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

type fixture struct {
	router   *Router
	dedup    *memDedup
	items    *fakeItems
	settings *fakeSettings
	platform *fakePlatform
	tutor    *fakeTutor
	poster   *fakePoster
}

func newFixture() *fixture {
	f := &fixture{
		dedup:    newMemDedup(),
		items:    newFakeItems(),
		settings: &fakeSettings{},
		platform: newFakePlatform(),
		tutor:    &fakeTutor{},
		poster:   &fakePoster{},
	}
	f.router = New(f.dedup, f.items, f.settings, f.platform, f.tutor, f.poster, ratelimit.PerMinute("platform", 1000))
	return f
}

func event(threadRef, text string) core.InboundEvent {
	return core.InboundEvent{ThreadRef: threadRef, UserID: "u1", Text: text}
}

func TestHandle_PendingKnew(t *testing.T) {
	f := newFixture()
	f.items.add(&core.Item{ID: 1, Word: "ephemeral", Resolution: core.ResolutionPending, ThreadRef: "t1"})

	out, err := f.router.Handle(context.Background(), event("t1", " 1 "), "k1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeKnown, out)

	assert.Equal(t, []core.Resolution{core.ResolutionKnown}, f.items.resolutions[1])
	require.Len(t, f.platform.posts["t1"], 1)
	assert.Equal(t, ackKnownMessage, f.platform.posts["t1"][0])
	assert.Equal(t, 1, f.poster.runCount())
	assert.Empty(t, f.tutor.calls)
}

func TestHandle_PendingLearning(t *testing.T) {
	f := newFixture()
	f.items.add(&core.Item{ID: 1, Word: "ephemeral", Resolution: core.ResolutionPending, ThreadRef: "t1"})

	out, err := f.router.Handle(context.Background(), event("t1", "I will use it in ephemeral beauty"), "k1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeLearning, out)

	assert.Equal(t, []core.Resolution{core.ResolutionLearning}, f.items.resolutions[1])
	assert.Equal(t, []string{"I will use it in ephemeral beauty"}, f.tutor.calls)
	require.Len(t, f.platform.posts["t1"], 1)
	assert.Equal(t, "tutor says hi", f.platform.posts["t1"][0])
	assert.Zero(t, f.poster.runCount(), "no new word while tutoring")
}

func TestHandle_ResolvedRequestsNewWordWhilePending(t *testing.T) {
	f := newFixture()
	f.items.add(&core.Item{ID: 1, Word: "ephemeral", Resolution: core.ResolutionKnown, ThreadRef: "t1"})
	f.items.add(&core.Item{ID: 2, Word: "ubiquitous", Resolution: core.ResolutionPending, ThreadRef: "t2"})

	out, err := f.router.Handle(context.Background(), event("t1", "1"), "k1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRedirected, out)

	require.Len(t, f.platform.posts["t1"], 1)
	assert.Contains(t, f.platform.posts["t1"][0], "ubiquitous")
	assert.Zero(t, f.poster.runCount(), "no generation while another word is pending")
}

func TestHandle_ResolvedRequestsNewWord(t *testing.T) {
	f := newFixture()
	f.items.add(&core.Item{ID: 1, Word: "ephemeral", Resolution: core.ResolutionLearning, ThreadRef: "t1"})

	out, err := f.router.Handle(context.Background(), event("t1", "1"), "k1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNewWord, out)

	require.Len(t, f.platform.posts["t1"], 1)
	assert.Equal(t, ackNewWordMessage, f.platform.posts["t1"][0])
	assert.Equal(t, 1, f.poster.runCount())
}

func TestHandle_ResolvedContinuesTutoring(t *testing.T) {
	f := newFixture()
	f.items.add(&core.Item{ID: 1, Word: "ephemeral", Resolution: core.ResolutionLearning, ThreadRef: "t1"})

	out, err := f.router.Handle(context.Background(), event("t1", "give me another example"), "k1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeTutored, out)

	assert.Empty(t, f.items.resolutions[1], "resolution never changes after the first response")
	assert.Equal(t, []string{"give me another example"}, f.tutor.calls)
}

func TestHandle_DuplicateEventIsNoOp(t *testing.T) {
	f := newFixture()
	f.items.add(&core.Item{ID: 1, Word: "ephemeral", Resolution: core.ResolutionPending, ThreadRef: "t1"})

	out, err := f.router.Handle(context.Background(), event("t1", "1"), "k1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeKnown, out)

	out, err = f.router.Handle(context.Background(), event("t1", "1"), "k1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, out)

	assert.Len(t, f.items.resolutions[1], 1, "resolution updated once")
	assert.Equal(t, 1, f.platform.totalPosts(), "no duplicate platform post")
	assert.Equal(t, 1, f.poster.runCount())
}

func TestHandle_UnrecognizedThreadIgnored(t *testing.T) {
	f := newFixture()

	out, err := f.router.Handle(context.Background(), event("random-thread", "hello"), "k1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, out)
	assert.Zero(t, f.platform.totalPosts())
}

func TestHandle_ThemeUpdate(t *testing.T) {
	f := newFixture()
	f.settings.themeThread = "theme-thread"

	out, err := f.router.Handle(context.Background(), event("theme-thread", "  space exploration "), "k1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeThemeSet, out)
	assert.Equal(t, "space exploration", f.settings.theme)
	require.Len(t, f.platform.posts["theme-thread"], 1)
	assert.Contains(t, f.platform.posts["theme-thread"][0], "space exploration")
}

func TestHandle_ThemeClearPhrases(t *testing.T) {
	for _, phrase := range []string{"clear", "None", "RESET", "no theme", "Clear Theme"} {
		t.Run(phrase, func(t *testing.T) {
			f := newFixture()
			f.settings.themeThread = "theme-thread"
			f.settings.theme = "cooking"
			f.settings.themeSet = true

			out, err := f.router.Handle(context.Background(), event("theme-thread", phrase), "k1")
			require.NoError(t, err)
			assert.Equal(t, OutcomeThemeCleared, out)
			assert.Empty(t, f.settings.theme)
		})
	}
}

func TestHandle_ThemeLengthBoundary(t *testing.T) {
	t.Run("exactly 100 accepted", func(t *testing.T) {
		f := newFixture()
		f.settings.themeThread = "theme-thread"
		theme := strings.Repeat("a", 100)

		out, err := f.router.Handle(context.Background(), event("theme-thread", theme), "k1")
		require.NoError(t, err)
		assert.Equal(t, OutcomeThemeSet, out)
		assert.Equal(t, theme, f.settings.theme)
	})

	t.Run("101 rejected", func(t *testing.T) {
		f := newFixture()
		f.settings.themeThread = "theme-thread"

		out, err := f.router.Handle(context.Background(), event("theme-thread", strings.Repeat("a", 101)), "k1")
		require.NoError(t, err)
		assert.Equal(t, OutcomeThemeRejected, out)
		assert.False(t, f.settings.themeSet, "rejected theme must not be stored")
		require.Len(t, f.platform.posts["theme-thread"], 1)
		assert.Equal(t, themeTooLongMessage, f.platform.posts["theme-thread"][0])
	})
}

func TestHandle_RateLimitedNotMarked(t *testing.T) {
	f := newFixture()
	f.items.add(&core.Item{ID: 1, Word: "ephemeral", Resolution: core.ResolutionPending, ThreadRef: "t1"})
	f.router.gate = ratelimit.NewGate("platform", 1, time.Hour) // one slot, then dry

	_, err := f.router.Handle(context.Background(), event("t1", "1"), "k1")
	require.NoError(t, err)

	f.items.add(&core.Item{ID: 2, Word: "ubiquitous", Resolution: core.ResolutionPending, ThreadRef: "t2"})
	_, err = f.router.Handle(context.Background(), event("t2", "1"), "k2")
	assert.ErrorIs(t, err, core.ErrRateLimited)

	dup, _ := f.dedup.IsDuplicate(context.Background(), "k2")
	assert.False(t, dup, "denied event must stay unmarked so a retry can succeed")
}

func TestHandle_FatalFailureReleasesClaim(t *testing.T) {
	f := newFixture()
	f.items.add(&core.Item{ID: 1, Word: "ephemeral", Resolution: core.ResolutionLearning, ThreadRef: "t1"})
	f.platform.postErr = errors.New("platform down")

	_, err := f.router.Handle(context.Background(), event("t1", "question"), "k1")
	require.Error(t, err)

	dup, _ := f.dedup.IsDuplicate(context.Background(), "k1")
	assert.False(t, dup, "failed action must release the dedup claim")

	// Redelivery succeeds once the platform recovers.
	f.platform.postErr = nil
	out, err := f.router.Handle(context.Background(), event("t1", "question"), "k1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeTutored, out)
}

func TestHandle_ConcurrentSameKeySingleAction(t *testing.T) {
	f := newFixture()
	f.items.add(&core.Item{ID: 1, Word: "ephemeral", Resolution: core.ResolutionPending, ThreadRef: "t1"})

	const workers = 8
	var wg sync.WaitGroup
	outcomes := make(chan Outcome, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := f.router.Handle(context.Background(), event("t1", "1"), "same-key")
			if err == nil {
				outcomes <- out
			}
		}()
	}
	wg.Wait()
	close(outcomes)

	known := 0
	for out := range outcomes {
		if out == OutcomeKnown {
			known++
		}
	}
	assert.Equal(t, 1, known, "exactly one worker performs the state change")
	assert.Len(t, f.items.resolutions[1], 1)
	assert.Equal(t, 1, f.poster.runCount())
}

func TestHandle_ConcurrentDistinctKeysSingleTransition(t *testing.T) {
	f := newFixture()
	f.items.add(&core.Item{ID: 1, Word: "ephemeral", Resolution: core.ResolutionPending, ThreadRef: "t1"})

	// Hold both lookups until each has seen the item as pending, so
	// both events race for the same first-response transition.
	var mu sync.Mutex
	arrived := 0
	release := make(chan struct{})
	f.items.afterFind = func() {
		mu.Lock()
		arrived++
		if arrived == 2 {
			close(release)
		}
		mu.Unlock()
		<-release
	}

	events := []core.InboundEvent{event("t1", "1"), event("t1", "what does it mean?")}
	var wg sync.WaitGroup
	outcomes := make(chan Outcome, len(events))
	errs := make(chan error, len(events))
	for i, ev := range events {
		wg.Add(1)
		go func(ev core.InboundEvent, key string) {
			defer wg.Done()
			out, err := f.router.Handle(context.Background(), ev, key)
			outcomes <- out
			errs <- err
		}(ev, fmt.Sprintf("k%d", i))
	}
	wg.Wait()
	close(outcomes)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	assert.Len(t, f.items.resolutions[1], 1, "resolution transitions exactly once")

	transitions := 0
	for out := range outcomes {
		if out == OutcomeKnown || out == OutcomeLearning {
			transitions++
		}
	}
	assert.Equal(t, 1, transitions, "the race loser is handled as a resolved-thread message")
}

func TestHandle_PosterFailureDoesNotFailEvent(t *testing.T) {
	f := newFixture()
	f.items.add(&core.Item{ID: 1, Word: "ephemeral", Resolution: core.ResolutionPending, ThreadRef: "t1"})
	f.poster.err = fmt.Errorf("generation broke")

	out, err := f.router.Handle(context.Background(), event("t1", "1"), "k1")
	require.NoError(t, err, "the resolution update already committed")
	assert.Equal(t, OutcomeKnown, out)
	assert.Equal(t, []core.Resolution{core.ResolutionKnown}, f.items.resolutions[1])
}
