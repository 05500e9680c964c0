package optimistic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DoyleJ11/matchmaking-client/internal/engine"
	"github.com/DoyleJ11/matchmaking-client/internal/session"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("503 service unavailable")

type pendingCall struct {
	race  engine.Race
	ctx   context.Context
	reply chan error
}

type fakeRequester struct {
	mu          sync.Mutex
	acceptErrs  []error // consumed per call; nil when exhausted
	acceptCalls int
	chatErr     error
	findErr     error
	onAccept    func(call int) // runs before the canned error is returned

	raceStarted chan *pendingCall
	lockStarted chan *pendingCall
}

func newFakeRequester() *fakeRequester {
	return &fakeRequester{
		raceStarted: make(chan *pendingCall, 8),
		lockStarted: make(chan *pendingCall, 8),
	}
}

func (f *fakeRequester) FindMatch(ctx context.Context, _ string, _ engine.Race) error {
	return f.findErr
}

func (f *fakeRequester) CancelFind(ctx context.Context) error { return nil }

func (f *fakeRequester) AcceptMatch(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acceptCalls++
	if f.onAccept != nil {
		f.onAccept(f.acceptCalls)
	}
	if len(f.acceptErrs) == 0 {
		return nil
	}
	err := f.acceptErrs[0]
	f.acceptErrs = f.acceptErrs[1:]
	return err
}

func (f *fakeRequester) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acceptCalls
}

func block(ctx context.Context, ch chan *pendingCall, race engine.Race) error {
	pc := &pendingCall{race: race, ctx: ctx, reply: make(chan error, 1)}
	ch <- pc
	select {
	case err := <-pc.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeRequester) ChangeDraftRace(ctx context.Context, race engine.Race) error {
	return block(ctx, f.raceStarted, race)
}

func (f *fakeRequester) LockInDraftRace(ctx context.Context, race engine.Race) error {
	return block(ctx, f.lockStarted, race)
}

func (f *fakeRequester) SendDraftChat(ctx context.Context, _ string) error { return f.chatErr }

type noticeRecorder struct {
	mu      sync.Mutex
	notices []session.Notice
}

func (n *noticeRecorder) Notify(notice session.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *noticeRecorder) kinds() []session.NoticeKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []session.NoticeKind
	for _, x := range n.notices {
		out = append(out, x.Kind)
	}
	return out
}

func recvCall(t *testing.T, ch <-chan *pendingCall) *pendingCall {
	t.Helper()
	select {
	case pc := <-ch:
		return pc
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for request")
		return nil
	}
}

func recvErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for result")
		return nil
	}
}

// myTurnStore puts the viewer (user "1", own slot 0) on the clock.
func myTurnStore(t *testing.T) *session.Store {
	t.Helper()
	store := session.NewStore(nil)
	d, err := engine.NewDraftState("m", 0,
		[]engine.PlayerSlot{{UserID: "1"}},
		[]engine.PlayerSlot{{NameIndex: 0}},
		[]engine.TeamSlot{{Team: 0, Slot: 0}, {Team: 1, Slot: 0}},
		"1")
	require.NoError(t, err)
	d, err = engine.Apply(d, engine.Command{Type: engine.CmdPickStarted, Team: 0, Slot: 0})
	require.NoError(t, err)

	store.Update(func(s *session.State) bool {
		s.Draft = &d
		return true
	})
	return store
}

func foundMatchStore() *session.Store {
	store := session.NewStore(nil)
	store.Update(func(s *session.State) bool {
		s.FoundMatch = &session.FoundMatch{NumPlayers: 2, AcceptTimeTotal: 15 * time.Second}
		return true
	})
	return store
}

func newController(req Requester, store *session.Store, notes session.Notifier, opts Options) *Controller {
	return NewController(req, store, notes, clockwork.NewRealClock(), nil, opts)
}

func TestSetRace_NewerSupersedesOlder(t *testing.T) {
	store := myTurnStore(t)
	req := newFakeRequester()
	c := newController(req, store, nil, DefaultOptions())

	zDone := make(chan error, 1)
	go func() { zDone <- c.SetRace(context.Background(), engine.RaceZerg) }()
	z := recvCall(t, req.raceStarted)

	pDone := make(chan error, 1)
	go func() { pDone <- c.SetRace(context.Background(), engine.RaceProtoss) }()
	p := recvCall(t, req.raceStarted)

	// Exactly one outstanding request.
	assert.Error(t, z.ctx.Err(), "first request should be aborted")
	assert.NoError(t, p.ctx.Err())

	assert.ErrorIs(t, recvErr(t, zDone), ErrSuperseded)
	assert.Equal(t, engine.RaceProtoss, store.Snapshot().State.DisplayRace())

	// A late answer for z changes nothing.
	z.reply <- nil
	assert.Equal(t, engine.RaceProtoss, store.Snapshot().State.DisplayRace())

	// Server confirms p, then the response lands.
	store.Update(func(s *session.State) bool {
		next, err := engine.Apply(*s.Draft, engine.Command{Type: engine.CmdProvisionalPick, Team: 0, Slot: 0, Race: engine.RaceProtoss})
		require.NoError(t, err)
		s.Draft = &next
		return true
	})
	p.reply <- nil
	require.NoError(t, recvErr(t, pDone))

	st := store.Snapshot().State
	assert.Equal(t, engine.Race(""), st.Local.OptimisticRace)
	assert.Equal(t, engine.RaceProtoss, st.DisplayRace())
}

func TestSetRace_FailureRevealsServerRace(t *testing.T) {
	store := myTurnStore(t)
	req := newFakeRequester()
	c := newController(req, store, nil, DefaultOptions())

	done := make(chan error, 1)
	go func() { done <- c.SetRace(context.Background(), engine.RaceTerran) }()
	call := recvCall(t, req.raceStarted)
	assert.Equal(t, engine.RaceTerran, store.Snapshot().State.DisplayRace())

	call.reply <- errFlaky
	assert.ErrorIs(t, recvErr(t, done), errFlaky)
	assert.Equal(t, engine.Race(""), store.Snapshot().State.DisplayRace())
}

func TestSetRace_Preconditions(t *testing.T) {
	req := newFakeRequester()

	c := newController(req, session.NewStore(nil), nil, DefaultOptions())
	assert.ErrorIs(t, c.SetRace(context.Background(), engine.RaceZerg), ErrNotInDraft)

	store := myTurnStore(t)
	c = newController(req, store, nil, DefaultOptions())
	assert.ErrorIs(t, c.SetRace(context.Background(), "x"), ErrInvalidRace)

	store.Update(func(s *session.State) bool {
		s.Draft.CurrentPicker = &engine.TeamSlot{Team: 1, Slot: 0}
		return true
	})
	assert.ErrorIs(t, c.SetRace(context.Background(), engine.RaceZerg), ErrNotYourTurn)
}

func TestCancelPending_DropsRaceResult(t *testing.T) {
	store := myTurnStore(t)
	req := newFakeRequester()
	c := newController(req, store, nil, DefaultOptions())

	done := make(chan error, 1)
	go func() { done <- c.SetRace(context.Background(), engine.RaceZerg) }()
	call := recvCall(t, req.raceStarted)

	c.CancelPending()
	assert.Error(t, call.ctx.Err())
	assert.ErrorIs(t, recvErr(t, done), ErrSuperseded)
	assert.Equal(t, RolledBack, c.race.State())
}

func TestLockIn_TimeoutRollsBackAndNotifies(t *testing.T) {
	store := myTurnStore(t)
	req := newFakeRequester()
	notes := &noticeRecorder{}
	opts := DefaultOptions()
	opts.LockInTimeout = 30 * time.Millisecond
	c := newController(req, store, notes, opts)

	done := make(chan error, 1)
	go func() { done <- c.LockIn(context.Background(), engine.RaceZerg) }()
	recvCall(t, req.lockStarted)

	local := store.Snapshot().State.Local
	assert.True(t, local.OptimisticLocked)
	assert.Equal(t, engine.RaceZerg, local.OptimisticRace)

	err := recvErr(t, done)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	local = store.Snapshot().State.Local
	assert.False(t, local.OptimisticLocked)
	assert.Equal(t, engine.Race(""), local.OptimisticRace)
	assert.Equal(t, []session.NoticeKind{session.NoticeLockInFailed}, notes.kinds())
}

func TestLockIn_SupersedesPendingRaceChange(t *testing.T) {
	store := myTurnStore(t)
	req := newFakeRequester()
	c := newController(req, store, nil, DefaultOptions())

	raceDone := make(chan error, 1)
	go func() { raceDone <- c.SetRace(context.Background(), engine.RaceTerran) }()
	raceCall := recvCall(t, req.raceStarted)

	lockDone := make(chan error, 1)
	go func() { lockDone <- c.LockIn(context.Background(), engine.RaceProtoss) }()
	lockCall := recvCall(t, req.lockStarted)

	assert.Error(t, raceCall.ctx.Err())
	assert.ErrorIs(t, recvErr(t, raceDone), ErrSuperseded)

	lockCall.reply <- nil
	require.NoError(t, recvErr(t, lockDone))
	assert.Equal(t, Committed, c.lock.State())
}

func TestLockIn_SuccessStaysLockedUntilServerEvent(t *testing.T) {
	store := myTurnStore(t)
	req := newFakeRequester()
	c := newController(req, store, nil, DefaultOptions())

	done := make(chan error, 1)
	go func() { done <- c.LockIn(context.Background(), engine.RaceTerran) }()
	recvCall(t, req.lockStarted).reply <- nil
	require.NoError(t, recvErr(t, done))

	local := store.Snapshot().State.Local
	assert.True(t, local.OptimisticLocked)
	assert.Equal(t, engine.RaceTerran, store.Snapshot().State.DisplayRace())

	// No second lock while the server's confirmation is on its way.
	assert.ErrorIs(t, c.LockIn(context.Background(), engine.RaceZerg), ErrAlreadyLocked)
	assert.ErrorIs(t, c.SetRace(context.Background(), engine.RaceZerg), ErrAlreadyLocked)
}

func TestLockIn_RefusedWhenOvertime(t *testing.T) {
	store := myTurnStore(t)
	store.Update(func(s *session.State) bool {
		s.Local.DraftOvertime = true
		return true
	})
	c := newController(newFakeRequester(), store, nil, DefaultOptions())

	assert.ErrorIs(t, c.LockIn(context.Background(), engine.RaceZerg), ErrPickOvertime)
}

func TestAcceptMatch_RetryBound(t *testing.T) {
	store := foundMatchStore()
	req := newFakeRequester()
	for i := 0; i < 11; i++ {
		req.acceptErrs = append(req.acceptErrs, errFlaky)
	}
	opts := DefaultOptions()
	opts.AcceptRetryDelay = time.Millisecond
	c := newController(req, store, nil, opts)

	err := c.AcceptMatch(context.Background())
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 10, req.calls())

	st := store.Snapshot().State
	require.NotNil(t, st.FoundMatch, "generic failures leave the match alone")
	assert.False(t, st.FoundMatch.HasAccepted)
}

func TestAcceptMatch_NoActiveMatchClearsSession(t *testing.T) {
	store := foundMatchStore()
	store.Update(func(s *session.State) bool {
		s.ResumeSearch = &session.SearchInfo{MatchmakingType: "1v1"}
		return true
	})
	req := newFakeRequester()
	req.acceptErrs = []error{ErrNoActiveMatch}
	opts := DefaultOptions()
	opts.AcceptRetryDelay = time.Millisecond
	c := newController(req, store, nil, opts)

	err := c.AcceptMatch(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveMatch)
	assert.Equal(t, 1, req.calls())

	st := store.Snapshot().State
	assert.Nil(t, st.FoundMatch)
	assert.Nil(t, st.ResumeSearch)
	assert.False(t, st.IsMatchmaking())
}

func TestAcceptMatch_SucceedsAfterRetries(t *testing.T) {
	store := foundMatchStore()
	req := newFakeRequester()
	req.acceptErrs = []error{errFlaky, errFlaky}
	opts := DefaultOptions()
	opts.AcceptRetryDelay = time.Millisecond
	c := newController(req, store, nil, opts)

	require.NoError(t, c.AcceptMatch(context.Background()))
	assert.Equal(t, 3, req.calls())
	assert.True(t, store.Snapshot().State.HasAccepted())

	assert.ErrorIs(t, c.AcceptMatch(context.Background()), ErrAlreadyAccepted)
}

func TestAcceptMatch_StaleNoActiveMatchKeepsRequeuedSearch(t *testing.T) {
	store := foundMatchStore()
	req := newFakeRequester()
	req.acceptErrs = []error{errFlaky, ErrNoActiveMatch}
	req.onAccept = func(call int) {
		if call != 1 {
			return
		}
		// The server requeues the player while the first attempt is out.
		store.Update(func(s *session.State) bool {
			s.ClearFoundMatch()
			s.SearchInfo = &session.SearchInfo{MatchmakingType: "1v1", Race: engine.RaceZerg}
			return true
		})
	}
	opts := DefaultOptions()
	opts.AcceptRetryDelay = time.Millisecond
	c := newController(req, store, nil, opts)

	err := c.AcceptMatch(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveMatch)
	assert.Equal(t, 2, req.calls())

	st := store.Snapshot().State
	require.NotNil(t, st.SearchInfo, "the restored search must survive")
	assert.Equal(t, "1v1", st.SearchInfo.MatchmakingType)
}

func TestAcceptMatch_StaleSuccessLeavesNewMatchAlone(t *testing.T) {
	store := foundMatchStore()
	req := newFakeRequester()
	req.onAccept = func(int) {
		// A different match replaces the one being accepted.
		store.Update(func(s *session.State) bool {
			s.FoundMatch = &session.FoundMatch{NumPlayers: 4, AcceptStart: time.Unix(100, 0), AcceptTimeTotal: 15 * time.Second}
			return true
		})
	}
	c := newController(req, store, nil, DefaultOptions())

	require.NoError(t, c.AcceptMatch(context.Background()))
	st := store.Snapshot().State
	require.NotNil(t, st.FoundMatch)
	assert.Equal(t, 4, st.FoundMatch.NumPlayers)
	assert.False(t, st.FoundMatch.HasAccepted)
}

func TestCancelAccept_StopsRetries(t *testing.T) {
	store := foundMatchStore()
	req := newFakeRequester()
	for i := 0; i < 10; i++ {
		req.acceptErrs = append(req.acceptErrs, errFlaky)
	}
	opts := DefaultOptions()
	opts.AcceptRetryDelay = time.Hour
	c := newController(req, store, nil, opts)

	done := make(chan error, 1)
	go func() { done <- c.AcceptMatch(context.Background()) }()

	require.Eventually(t, func() bool { return req.calls() == 1 }, time.Second, 5*time.Millisecond)
	c.CancelAccept()

	assert.ErrorIs(t, recvErr(t, done), ErrSuperseded)
	assert.Equal(t, 1, req.calls())
	assert.NotNil(t, store.Snapshot().State.FoundMatch)
}

func TestAcceptMatch_Preconditions(t *testing.T) {
	c := newController(newFakeRequester(), session.NewStore(nil), nil, DefaultOptions())
	assert.ErrorIs(t, c.AcceptMatch(context.Background()), ErrNoFoundMatch)

	store := foundMatchStore()
	store.Update(func(s *session.State) bool {
		s.Local.AcceptExpired = true
		return true
	})
	c = newController(newFakeRequester(), store, nil, DefaultOptions())
	assert.ErrorIs(t, c.AcceptMatch(context.Background()), ErrAcceptWindowClosed)
}

func TestFindAndCancel(t *testing.T) {
	store := session.NewStore(nil)
	c := newController(newFakeRequester(), store, nil, DefaultOptions())

	require.NoError(t, c.FindMatch(context.Background(), "1v1", engine.RaceZerg))
	si := store.Snapshot().State.SearchInfo
	require.NotNil(t, si)
	assert.Equal(t, "1v1", si.MatchmakingType)

	require.NoError(t, c.CancelFind(context.Background()))
	assert.Nil(t, store.Snapshot().State.SearchInfo)
}

func TestFindMatch_FailureLeavesIdle(t *testing.T) {
	store := session.NewStore(nil)
	req := newFakeRequester()
	req.findErr = errFlaky
	c := newController(req, store, nil, DefaultOptions())

	assert.ErrorIs(t, c.FindMatch(context.Background(), "1v1", engine.RaceZerg), errFlaky)
	assert.Nil(t, store.Snapshot().State.SearchInfo)
}

func TestSendChat(t *testing.T) {
	store := myTurnStore(t)
	req := newFakeRequester()
	notes := &noticeRecorder{}
	c := newController(req, store, notes, DefaultOptions())

	assert.ErrorIs(t, c.SendChat(context.Background(), "   "), ErrEmptyMessage)
	require.NoError(t, c.SendChat(context.Background(), "glhf"))

	req.chatErr = errFlaky
	assert.ErrorIs(t, c.SendChat(context.Background(), "glhf"), errFlaky)
	assert.Equal(t, []session.NoticeKind{session.NoticeChatFailed}, notes.kinds())
}

func TestSetFocus(t *testing.T) {
	store := session.NewStore(nil)
	c := newController(newFakeRequester(), store, nil, DefaultOptions())

	c.SetFocus(true)
	v := store.Snapshot().Version
	c.SetFocus(true)
	assert.Equal(t, v, store.Snapshot().Version)
	assert.True(t, store.Snapshot().State.Local.WindowFocused)
}
