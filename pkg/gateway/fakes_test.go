package gateway_test

import (
	"context"
	"sync"
	"time"

	"github.com/mnemohq/mnemo/pkg/memstore"
	"github.com/mnemohq/mnemo/pkg/statestore"
)

// fakeClient is a scriptable memory service client.
type fakeClient struct {
	mu          sync.Mutex
	payload     *memstore.Context
	fetchErr    error
	appendErr   error
	fetchDelay  time.Duration
	appendDelay time.Duration
	fetchCalls  int
	appendCalls int
	appended    []appendedTurn
}

type appendedTurn struct {
	conversationID string
	role           string
	text           string
}

func (f *fakeClient) Fetch(ctx context.Context, conversationID, mode string) (*memstore.Context, error) {
	f.mu.Lock()
	f.fetchCalls++
	delay := f.fetchDelay
	err := f.fetchErr
	payload := f.payload
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &memstore.TimeoutError{Err: ctx.Err()}
		}
	}

	if err != nil {
		return nil, err
	}
	if payload != nil {
		clone := *payload
		clone.ConversationID = conversationID
		return &clone, nil
	}
	return &memstore.Context{ConversationID: conversationID}, nil
}

func (f *fakeClient) Append(ctx context.Context, conversationID, role, text string, _ map[string]string) error {
	f.mu.Lock()
	delay := f.appendDelay
	err := f.appendErr
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return &memstore.TimeoutError{Err: ctx.Err()}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendCalls++
	if err != nil {
		return err
	}
	f.appended = append(f.appended, appendedTurn{conversationID, role, text})
	return nil
}

func (f *fakeClient) setFetchErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = err
}

func (f *fakeClient) setPayload(payload *memstore.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payload = payload
}

func (f *fakeClient) fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

func (f *fakeClient) appendedTurns() []appendedTurn {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]appendedTurn, len(f.appended))
	copy(out, f.appended)
	return out
}

// downDriver simulates an unreachable coordination store.
type downDriver struct{}

func (downDriver) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, statestore.UnavailableError{Op: "get"}
}

func (downDriver) Set(context.Context, string, []byte, time.Duration) error {
	return statestore.UnavailableError{Op: "set"}
}

func (downDriver) SetIfAbsent(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, statestore.UnavailableError{Op: "setifabsent"}
}

func (downDriver) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, statestore.UnavailableError{Op: "incr"}
}

func (downDriver) Delete(context.Context, string) error {
	return statestore.UnavailableError{Op: "delete"}
}

func (downDriver) Close() error { return nil }
