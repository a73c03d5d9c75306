package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu         sync.Mutex
	batches    [][]tgbotapi.Update
	errs       []error
	offsets    []int
	deleteErr  error
	deleteHook int
}

func (f *fakeSource) DeleteWebhook(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteHook++
	return f.deleteErr
}

func (f *fakeSource) GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]tgbotapi.Update, error) {
	f.mu.Lock()
	f.offsets = append(f.offsets, offset)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		f.mu.Unlock()
		return nil, err
	}
	if len(f.batches) > 0 {
		batch := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return batch, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeSource) seenOffsets() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.offsets...)
}

type fakeBatchProcessor struct {
	mu      sync.Mutex
	batches [][]tgbotapi.Update
	err     error
}

func (f *fakeBatchProcessor) ProcessUpdates(ctx context.Context, updates []tgbotapi.Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, updates)
	return f.err
}

func (f *fakeBatchProcessor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

type fakeReporter struct {
	mu   sync.Mutex
	errs []error
}

func (f *fakeReporter) Report(ctx context.Context, err error, stack []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, err)
}

func (f *fakeReporter) reported() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.errs...)
}

func runPoller(t *testing.T, p *Poller, until func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, until, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestPoller_AdvancesOffset(t *testing.T) {
	source := &fakeSource{batches: [][]tgbotapi.Update{
		{{UpdateID: 10}, {UpdateID: 11}},
		{{UpdateID: 12}},
	}}
	processor := &fakeBatchProcessor{}
	p := NewPoller(source, processor, &fakeReporter{}, 30*time.Second)

	runPoller(t, p, func() bool { return len(source.seenOffsets()) == 3 })

	assert.Equal(t, 1, source.deleteHook)
	assert.Equal(t, 2, processor.count())
	assert.Equal(t, []int{0, 12, 13}, source.seenOffsets())
}

func TestPoller_ReportsEachFailedUpdate(t *testing.T) {
	source := &fakeSource{batches: [][]tgbotapi.Update{{{UpdateID: 1}, {UpdateID: 2}}}}
	first, second := errors.New("first"), errors.New("second")
	processor := &fakeBatchProcessor{err: errors.Join(first, second)}
	reporter := &fakeReporter{}
	p := NewPoller(source, processor, reporter, time.Second)

	runPoller(t, p, func() bool { return len(reporter.reported()) == 2 })

	assert.Equal(t, []error{first, second}, reporter.reported())
}

func TestPoller_BacksOffOnError(t *testing.T) {
	source := &fakeSource{
		errs:    []error{errors.New("bad gateway")},
		batches: [][]tgbotapi.Update{{{UpdateID: 5}}},
	}
	processor := &fakeBatchProcessor{}
	p := NewPoller(source, processor, &fakeReporter{}, time.Second)
	p.backoff = 10 * time.Millisecond

	runPoller(t, p, func() bool { return processor.count() == 1 })

	assert.Equal(t, []int{0, 0}, source.seenOffsets()[:2])
}

func TestPoller_DeleteWebhookFails(t *testing.T) {
	source := &fakeSource{deleteErr: errors.New("unauthorized")}
	p := NewPoller(source, &fakeBatchProcessor{}, &fakeReporter{}, time.Second)

	err := p.Run(context.Background())

	assert.ErrorContains(t, err, "delete webhook")
	assert.Empty(t, source.seenOffsets())
}
