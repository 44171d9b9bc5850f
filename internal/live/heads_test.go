package live

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"landScope/internal/chain"
	"landScope/internal/chain/chaintest"
)

func TestPollingHeadsEmitsIncreases(t *testing.T) {
	fake := chaintest.New(1, 100)
	source := NewPollingHeads(fake, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	heads, err := source.Heads(ctx)
	require.NoError(t, err)

	fake.SetHead(101)
	require.Equal(t, uint64(101), receive(t, heads))
	fake.SetHead(105)
	require.Equal(t, uint64(105), receive(t, heads))

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-heads:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

type fakeSubscription struct {
	errs chan error
}

func (f *fakeSubscription) Unsubscribe()      {}
func (f *fakeSubscription) Err() <-chan error { return f.errs }

type fakeHeadSubscriber struct {
	subs    chan *fakeSubscription
	headers chan chan<- *types.Header
}

func (f *fakeHeadSubscriber) SubscribeNewHead(_ context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	sub := &fakeSubscription{errs: make(chan error, 1)}
	f.subs <- sub
	f.headers <- ch
	return sub, nil
}

func TestNewHeadsResubscribes(t *testing.T) {
	fake := &fakeHeadSubscriber{subs: make(chan *fakeSubscription, 4), headers: make(chan chan<- *types.Header, 4)}
	source := NewNewHeads(fake, chain.RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	heads, err := source.Heads(ctx)
	require.NoError(t, err)

	first := <-fake.subs
	ch := <-fake.headers
	ch <- &types.Header{Number: big.NewInt(7)}
	require.Equal(t, uint64(7), receive(t, heads))

	first.errs <- context.DeadlineExceeded
	<-fake.subs
	ch = <-fake.headers
	ch <- &types.Header{Number: big.NewInt(8)}
	require.Equal(t, uint64(8), receive(t, heads))
}

func receive(t *testing.T, heads <-chan uint64) uint64 {
	t.Helper()
	select {
	case head, ok := <-heads:
		require.True(t, ok)
		return head
	case <-time.After(2 * time.Second):
		t.Fatal("no head received")
	}
	return 0
}
