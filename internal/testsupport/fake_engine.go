package testsupport

import (
	"context"
	"fmt"
	"sync"

	"linkhaul/internal/engine"
)

// FakeEngine is an in-memory stand-in for the aria2 client. Every handle it
// returns stays live until removed, so tests can assert on leaked transfers.
type FakeEngine struct {
	mu          sync.Mutex
	next        int
	live        map[string]*FakeTransfer
	failNext    map[string]error
	unavailable bool
	calls       map[string]int
	global      engine.GlobalStats
}

// FakeTransfer is one download known to the fake engine.
type FakeTransfer struct {
	Handle  string
	URIs    []string
	Options engine.Options
	Status  engine.Status
}

// NewFakeEngine returns an empty, reachable engine.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{
		live:     make(map[string]*FakeTransfer),
		failNext: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// SetUnavailable makes every call fail with engine.ErrUnavailable.
func (f *FakeEngine) SetUnavailable(down bool) {
	f.mu.Lock()
	f.unavailable = down
	f.mu.Unlock()
}

// FailNext makes the next call of method ("AddURI", "Status", "Pause",
// "Resume", "Remove", "GlobalStats", "Connect", "Version") return err.
func (f *FakeEngine) FailNext(method string, err error) {
	f.mu.Lock()
	f.failNext[method] = err
	f.mu.Unlock()
}

// SetState updates the engine-side view of handle.
func (f *FakeEngine) SetState(handle string, update func(*engine.Status)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.live[handle]; ok {
		update(&t.Status)
	}
}

// SetGlobalStats overrides what GlobalStats reports.
func (f *FakeEngine) SetGlobalStats(stats engine.GlobalStats) {
	f.mu.Lock()
	f.global = stats
	f.mu.Unlock()
}

// LiveHandles returns the number of transfers not yet removed.
func (f *FakeEngine) LiveHandles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

// Transfer returns a copy of the transfer for handle.
func (f *FakeEngine) Transfer(handle string) (FakeTransfer, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.live[handle]
	if !ok {
		return FakeTransfer{}, false
	}
	return *t, true
}

// Calls returns how many times method was invoked.
func (f *FakeEngine) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *FakeEngine) begin(method string) error {
	f.calls[method]++
	if f.unavailable {
		return fmt.Errorf("%w: fake engine offline", engine.ErrUnavailable)
	}
	if err, ok := f.failNext[method]; ok {
		delete(f.failNext, method)
		return err
	}
	return nil
}

func (f *FakeEngine) lookup(handle string) (*FakeTransfer, error) {
	t, ok := f.live[handle]
	if !ok {
		return nil, &engine.RPCError{Code: 1, Message: fmt.Sprintf("GID %s is not found", handle)}
	}
	return t, nil
}

func (f *FakeEngine) AddURI(_ context.Context, uris []string, opts engine.Options) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("AddURI"); err != nil {
		return "", err
	}
	f.next++
	handle := fmt.Sprintf("%016x", f.next)
	cp := make(engine.Options, len(opts))
	for k, v := range opts {
		cp[k] = v
	}
	f.live[handle] = &FakeTransfer{
		Handle:  handle,
		URIs:    append([]string(nil), uris...),
		Options: cp,
		Status:  engine.Status{Handle: handle, State: engine.StateWaiting},
	}
	return handle, nil
}

func (f *FakeEngine) Status(_ context.Context, handle string) (*engine.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("Status"); err != nil {
		return nil, err
	}
	t, err := f.lookup(handle)
	if err != nil {
		return nil, err
	}
	status := t.Status
	status.Files = append([]engine.File(nil), t.Status.Files...)
	return &status, nil
}

func (f *FakeEngine) Pause(_ context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("Pause"); err != nil {
		return err
	}
	t, err := f.lookup(handle)
	if err != nil {
		return err
	}
	t.Status.State = engine.StatePaused
	return nil
}

func (f *FakeEngine) Resume(_ context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("Resume"); err != nil {
		return err
	}
	t, err := f.lookup(handle)
	if err != nil {
		return err
	}
	t.Status.State = engine.StateWaiting
	return nil
}

func (f *FakeEngine) Remove(_ context.Context, handle string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("Remove"); err != nil {
		return err
	}
	if _, err := f.lookup(handle); err != nil {
		return err
	}
	delete(f.live, handle)
	return nil
}

func (f *FakeEngine) GlobalStats(context.Context) (*engine.GlobalStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("GlobalStats"); err != nil {
		return nil, err
	}
	stats := f.global
	return &stats, nil
}

// Connect reports the fake engine reachable unless SetUnavailable is on.
func (f *FakeEngine) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.begin("Connect")
}

// Connected mirrors SetUnavailable.
func (f *FakeEngine) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.unavailable
}

// Endpoint returns a placeholder RPC address.
func (f *FakeEngine) Endpoint() string {
	return "fake://aria2"
}

func (f *FakeEngine) Version(context.Context) (*engine.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("Version"); err != nil {
		return nil, err
	}
	return &engine.Version{Version: "1.37.0"}, nil
}
