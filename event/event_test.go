// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package event_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/blinklabs-io/thorn/event"
)

const testMintEvent event.EventType = "ledger.tx.mint"

// txPayload mimics the shape the ledger publishes after a commit
type txPayload struct {
	TxID   string
	Kind   string
	Amount int64
}

func recvEvent(t *testing.T, ch <-chan event.Event) event.Event {
	t.Helper()
	select {
	case evt, ok := <-ch:
		require.True(t, ok, "event channel closed unexpectedly")
		return evt
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return event.Event{}
}

func TestEventBusSingleSubscriber(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	payload := txPayload{TxID: "mint-1", Kind: "mint", Amount: 1_000_000}
	_, subCh := eb.Subscribe(testMintEvent)
	eb.Publish(testMintEvent, event.NewEvent(testMintEvent, payload))
	evt := recvEvent(t, subCh)
	assert.Equal(t, testMintEvent, evt.Type)
	got, ok := evt.Data.(txPayload)
	require.True(t, ok, "unexpected event data type %T", evt.Data)
	assert.Equal(t, payload, got)
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	payload := txPayload{TxID: "mint-1", Kind: "mint", Amount: 1_000_000}
	_, sub1Ch := eb.Subscribe(testMintEvent)
	_, sub2Ch := eb.Subscribe(testMintEvent)
	eb.Publish(testMintEvent, event.NewEvent(testMintEvent, payload))
	// Every subscriber of the type gets its own copy
	for _, subCh := range []<-chan event.Event{sub1Ch, sub2Ch} {
		evt := recvEvent(t, subCh)
		got, ok := evt.Data.(txPayload)
		require.True(t, ok, "unexpected event data type %T", evt.Data)
		assert.Equal(t, payload, got)
	}
}

func TestEventBusTypeIsolation(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	_, mintCh := eb.Subscribe(testMintEvent)
	_, burnCh := eb.Subscribe("ledger.tx.burn")
	eb.Publish(
		testMintEvent,
		event.NewEvent(testMintEvent, txPayload{TxID: "mint-1"}),
	)
	recvEvent(t, mintCh)
	select {
	case evt := <-burnCh:
		t.Fatalf("burn subscriber received unexpected event: %v", evt)
	case <-time.After(100 * time.Millisecond):
		// nothing delivered, as expected
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	subId, subCh := eb.Subscribe(testMintEvent)
	eb.Unsubscribe(testMintEvent, subId)
	eb.Publish(
		testMintEvent,
		event.NewEvent(testMintEvent, txPayload{TxID: "mint-1"}),
	)
	select {
	case evt, ok := <-subCh:
		// Unsubscribe closes the subscriber channel; anything else is a
		// stray delivery
		require.False(t, ok, "received unexpected event: %v", evt)
	case <-time.After(1 * time.Second):
		t.Fatal("subscriber channel was not closed after Unsubscribe")
	}
}

func TestEventBusStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	eb := event.NewEventBus(nil, nil)
	_, subCh := eb.Subscribe(testMintEvent)
	handlerCh := make(chan bool, 1)
	eb.SubscribeFunc(testMintEvent, func(evt event.Event) {
		handlerCh <- true
	})

	eb.Publish(
		testMintEvent,
		event.NewEvent(testMintEvent, txPayload{TxID: "before-stop"}),
	)
	select {
	case <-handlerCh:
	case <-time.After(1 * time.Second):
		t.Fatal("handler did not receive event before Stop")
	}

	eb.Stop()

	// Drain buffered events until the channel closes
	for {
		_, ok := <-subCh
		if !ok {
			break
		}
	}

	// Handlers are detached after Stop
	eb.Publish(
		testMintEvent,
		event.NewEvent(testMintEvent, txPayload{TxID: "after-stop"}),
	)
	select {
	case <-handlerCh:
		t.Fatal("handler received event after Stop")
	case <-time.After(100 * time.Millisecond):
	}

	// The bus remains usable for new subscribers after Stop
	_, newCh := eb.Subscribe(testMintEvent)
	eb.Publish(
		testMintEvent,
		event.NewEvent(testMintEvent, txPayload{TxID: "resubscribe"}),
	)
	recvEvent(t, newCh)
	eb.Stop()
	for {
		_, ok := <-newCh
		if !ok {
			break
		}
	}
}

func TestSubscribeFuncPanicRecovery(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()

	var received atomic.Int32
	// Panics on the first event, then succeeds
	eb.SubscribeFunc(testMintEvent, func(evt event.Event) {
		if received.Add(1) == 1 {
			panic("intentional test panic")
		}
	})

	// The delivery goroutine must survive the panic and keep processing
	eb.Publish(
		testMintEvent,
		event.NewEvent(testMintEvent, txPayload{TxID: "mint-1"}),
	)
	eb.Publish(
		testMintEvent,
		event.NewEvent(testMintEvent, txPayload{TxID: "mint-2"}),
	)
	require.Eventually(t, func() bool {
		return received.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond,
		"handler should continue processing events after a panic",
	)
}
