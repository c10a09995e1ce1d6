package app

import (
	"sync"

	"github.com/calehh/propvote/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
)

// eventBuffer collects registry events until the tx handler attaches them
// to its result.
type eventBuffer struct {
	mtx    sync.Mutex
	events []abcitypes.Event
}

func (b *eventBuffer) Notify(ev types.Event) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.events = append(b.events, ev.Encode())
}

func (b *eventBuffer) Drain() []abcitypes.Event {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	evs := b.events
	b.events = nil
	return evs
}
