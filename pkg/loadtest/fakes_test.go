package loadtest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/informalsystems/mq-load-test/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
)

var errFakeSend = errors.New("fake send failure")

// fakeTransport records every call made to it. It fails the send call with
// the given 1-based index if failOnCall > 0.
type fakeTransport struct {
	mtx        sync.Mutex
	failOnCall int
	calls      int
	singles    int
	batches    []int
	closes     int
	closedAt   time.Time
}

var _ transport.Transport = (*fakeTransport)(nil)

func (t *fakeTransport) SendOne(_ context.Context, _ *transport.Message) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.calls++
	if t.calls == t.failOnCall {
		return errFakeSend
	}
	t.singles++
	return nil
}

func (t *fakeTransport) SendBatch(_ context.Context, msgs []*transport.Message) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.calls++
	if t.calls == t.failOnCall {
		return errFakeSend
	}
	t.batches = append(t.batches, len(msgs))
	return nil
}

func (t *fakeTransport) Close(_ context.Context) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.closes++
	t.closedAt = time.Now()
	return nil
}

func (t *fakeTransport) sentInBatches() int {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	total := 0
	for _, n := range t.batches {
		total += n
	}
	return total
}

// fakeFactory hands out fake transports. newTransport decides how the n-th
// (1-based) connection attempt behaves; the attempt fails when it returns nil.
type fakeFactory struct {
	mtx          sync.Mutex
	calls        int // Every NewTransport call, including failed connections.
	transports   []*fakeTransport
	newTransport func(n int) *fakeTransport
}

var _ transport.Factory = (*fakeFactory)(nil)

func (f *fakeFactory) ValidateParams(_ transport.Params) error { return nil }

func (f *fakeFactory) NewTransport(_ context.Context, _ transport.Params) (transport.Transport, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.calls++
	t := &fakeTransport{}
	if f.newTransport != nil {
		t = f.newTransport(f.calls)
	}
	if t == nil {
		return nil, errors.New("fake connection failure")
	}
	f.transports = append(f.transports, t)
	return t, nil
}

func (f *fakeFactory) connectAttempts() int {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.calls
}

func (f *fakeFactory) all() []*fakeTransport {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return append([]*fakeTransport(nil), f.transports...)
}

// recordingReporter keeps every event it receives.
type recordingReporter struct {
	mtx      sync.Mutex
	started  []int
	finished []int
	progress []Progress
	summary  *RunResult
}

var _ Reporter = (*recordingReporter)(nil)

func (r *recordingReporter) WorkerStarted(id int) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.started = append(r.started, id)
}

func (r *recordingReporter) Progress(p Progress) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recordingReporter) WorkerFinished(id int) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.finished = append(r.finished, id)
}

func (r *recordingReporter) Summary(res RunResult) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.summary = &res
}

func newTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

func testConfig(mutate func(*Config)) *Config {
	cfg := DefaultConfig()
	cfg.Transport = "discard"
	cfg.MessageSize = 16
	if mutate != nil {
		mutate(&cfg)
	}
	return &cfg
}
