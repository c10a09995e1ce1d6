package registry

import (
	"github.com/calehh/propvote/types"
)

// Notifier receives lifecycle events after the registry has committed the
// change that produced them. Notify runs under the registry lock and must
// not call back into the registry.
type Notifier interface {
	Notify(ev types.Event)
}

// Notifiers fans an event out to every notifier in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(ev types.Event) {
	for _, n := range ns {
		if n != nil {
			n.Notify(ev)
		}
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(types.Event) {}
