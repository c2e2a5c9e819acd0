package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExecutor calls fn for every job.
type fakeExecutor struct {
	fn func(ctx context.Context, device *Device, job *Job) (string, error)
}

func (f *fakeExecutor) Execute(ctx context.Context, device *Device, job *Job) (string, error) {
	return f.fn(ctx, device, job)
}

func echoExecutor() *fakeExecutor {
	return &fakeExecutor{fn: func(_ context.Context, device *Device, job *Job) (string, error) {
		return device.Name + ":" + job.Payload, nil
	}}
}

type recordingStore struct {
	mu   sync.Mutex
	jobs []uint64
	err  error
}

func (s *recordingStore) SaveResult(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job.ID)
	return s.err
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *recordingNotifier) Notify(_ context.Context, job *Job) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, job.ResultDestination)
	return errors.New("smtp down")
}

type fixture struct {
	pending   *Queue
	completed *Queue
	inflight  *Inflight
	svc       *Service
}

func newFixture(devices ...*Device) *fixture {
	f := &fixture{
		pending:   NewQueue("pending"),
		completed: NewQueue("completed"),
		inflight:  NewInflight(),
	}
	f.svc = NewService(f.pending, f.completed, f.inflight, NewRegistry(devices...))
	return f
}

func (f *fixture) dispatcher(device *Device, exec Executor) *Dispatcher {
	return NewDispatcher(device, DispatcherDeps{
		Pending:      f.pending,
		Completed:    f.completed,
		Inflight:     f.inflight,
		Executor:     exec,
		PollInterval: 5 * time.Millisecond,
	})
}

func (f *fixture) submit(t *testing.T, board, payload string) uint64 {
	t.Helper()
	id, err := f.svc.Submit(Submission{TargetBoard: board, Payload: payload})
	require.NoError(t, err)
	return id
}

func TestDispatcher_StepCompletesJob(t *testing.T) {
	device := NewDevice("dev-1", "b1", "http://unused", "")
	f := newFixture(device)
	id := f.submit(t, "b1", "prog")

	require.True(t, f.dispatcher(device, echoExecutor()).Step(context.Background()))

	report, err := f.svc.StatusOf(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, report.Status)
	assert.Equal(t, "dev-1:prog", report.Result)
	assert.Equal(t, "dev-1", report.Device)
	assert.Equal(t, DeviceFree, device.State())

	// A terminal result is returned once.
	_, err = f.svc.StatusOf(id)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestDispatcher_StepIgnoresOtherBoards(t *testing.T) {
	device := NewDevice("dev-1", "b1", "http://unused", "")
	f := newFixture(device)
	f.submit(t, "b2", "prog")

	assert.False(t, f.dispatcher(device, echoExecutor()).Step(context.Background()))
	assert.Equal(t, 1, f.pending.Len())
}

func TestDispatcher_SameBoardIsFIFO(t *testing.T) {
	device := NewDevice("dev-1", "b1", "http://unused", "")
	f := newFixture(device)
	first := f.submit(t, "b1", "one")
	second := f.submit(t, "b1", "two")

	d := f.dispatcher(device, echoExecutor())
	require.True(t, d.Step(context.Background()))

	pos, err := f.svc.PositionOf(second)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	report, err := f.svc.StatusOf(first)
	require.NoError(t, err)
	assert.Equal(t, "dev-1:one", report.Result)
}

func TestDispatcher_FailureReachesCompletedAsError(t *testing.T) {
	device := NewDevice("dev-1", "b1", "http://unused", "")
	f := newFixture(device)
	id := f.submit(t, "b1", "prog")

	exec := &fakeExecutor{fn: func(context.Context, *Device, *Job) (string, error) {
		return "", &DispatchError{Device: "dev-1", Endpoint: "http://unused/job", Err: errors.New("connection refused")}
	}}
	require.True(t, f.dispatcher(device, exec).Step(context.Background()))

	report, err := f.svc.StatusOf(id)
	require.NoError(t, err)
	assert.Equal(t, StatusError, report.Status)
	assert.Contains(t, report.Error, "connection refused")
	assert.Equal(t, report.Error, report.Result)
	assert.Equal(t, DeviceFree, device.State())
}

func TestDispatcher_PanicIsRecovered(t *testing.T) {
	device := NewDevice("dev-1", "b1", "http://unused", "")
	f := newFixture(device)
	id := f.submit(t, "b1", "prog")

	exec := &fakeExecutor{fn: func(context.Context, *Device, *Job) (string, error) {
		panic("agent client blew up")
	}}
	assert.NotPanics(t, func() { f.dispatcher(device, exec).Step(context.Background()) })

	report, err := f.svc.StatusOf(id)
	require.NoError(t, err)
	assert.Equal(t, StatusError, report.Status)
	assert.Contains(t, report.Error, "agent client blew up")
	assert.Equal(t, DeviceFree, device.State())
	assert.Equal(t, 0, f.inflight.Len())
}

func TestDispatcher_SinkFailuresDoNotBlockCompletion(t *testing.T) {
	device := NewDevice("dev-1", "b1", "http://unused", "")
	f := newFixture(device)
	id, err := f.svc.Submit(Submission{TargetBoard: "b1", Payload: "prog", ResultDestination: "dev@example.com"})
	require.NoError(t, err)
	f.submit(t, "b1", "no mail")

	store := &recordingStore{err: errors.New("disk full")}
	notifier := &recordingNotifier{}
	d := NewDispatcher(device, DispatcherDeps{
		Pending:   f.pending,
		Completed: f.completed,
		Inflight:  f.inflight,
		Executor:  echoExecutor(),
		Store:     store,
		Notifier:  notifier,
	})
	require.True(t, d.Step(context.Background()))
	require.True(t, d.Step(context.Background()))

	report, err := f.svc.StatusOf(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, report.Status)
	assert.Len(t, store.jobs, 2)
	assert.Equal(t, []string{"dev@example.com"}, notifier.sent, "jobs without destination are not notified")
}

func TestDispatcher_BusyWhileRunningAndCancelAfterDispatch(t *testing.T) {
	device := NewDevice("dev-1", "b1", "http://unused", "")
	f := newFixture(device)
	id := f.submit(t, "b1", "prog")

	release := make(chan struct{})
	started := make(chan struct{})
	exec := &fakeExecutor{fn: func(context.Context, *Device, *Job) (string, error) {
		close(started)
		<-release
		return "done", nil
	}}

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.dispatcher(device, exec).Step(context.Background())
	}()
	<-started

	assert.Equal(t, DeviceBusy, device.State())

	var nf *NotFoundError
	assert.ErrorAs(t, f.svc.Cancel(id), &nf, "a dispatched job cannot be cancelled")

	report, err := f.svc.StatusOf(id)
	require.NoError(t, err)
	assert.Equal(t, StatusDispatched, report.Status)
	assert.Equal(t, "dev-1", report.Device)

	close(release)
	<-done

	assert.Equal(t, DeviceFree, device.State())
	report, err = f.svc.StatusOf(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, report.Status)
	assert.Equal(t, "done", report.Result)
}

func TestDispatcher_StalledBoardDoesNotBlockOthers(t *testing.T) {
	slow := NewDevice("dev-slow", "b1", "http://unused", "")
	fast := NewDevice("dev-fast", "b2", "http://unused", "")
	f := newFixture(slow, fast)

	stalled := make(chan struct{})
	stallExec := &fakeExecutor{fn: func(ctx context.Context, _ *Device, _ *Job) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-stalled:
			return "late", nil
		}
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer close(stalled)

	f.submit(t, "b1", "hangs")
	id := f.submit(t, "b2", "quick")

	go func() { _ = f.dispatcher(slow, stallExec).Run(ctx) }()
	go func() { _ = f.dispatcher(fast, echoExecutor()).Run(ctx) }()

	require.Eventually(t, func() bool {
		report, err := f.svc.StatusOf(id)
		return err == nil && report.Status == StatusCompleted
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDispatcher_RunStopsOnCancel(t *testing.T) {
	device := NewDevice("dev-1", "b1", "http://unused", "")
	f := newFixture(device)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- f.dispatcher(device, echoExecutor()).Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}
