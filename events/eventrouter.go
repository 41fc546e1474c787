package events

import (
	"github.com/mezonai/sequencer/block"
	"github.com/mezonai/sequencer/logx"
)

// EventRouter fans block level outcomes out into per transaction events.
// A nil router drops everything, so callers need no nil checks.
type EventRouter struct {
	eventBus *EventBus
}

func NewEventRouter(eventBus *EventBus) *EventRouter {
	return &EventRouter{eventBus: eventBus}
}

// PublishBlockProduced publishes BlockProduced followed by one
// TransactionIncludedInBlock per transaction in block order.
func (er *EventRouter) PublishBlockProduced(b *block.Block) {
	if er == nil || b == nil {
		return
	}
	logx.Debug("EVENTROUTER", "Publishing block ", b.Slot, " with ", len(b.Transactions), " transactions")
	er.eventBus.Publish(NewBlockProduced(b.Slot, b.BlockHash, len(b.Transactions)))
	for _, tx := range b.Transactions {
		er.eventBus.Publish(NewTransactionIncludedInBlock(tx.Signature, b.Slot, b.BlockHash))
	}
}

func (er *EventRouter) PublishBlockReplayed(b *block.Block, applied bool) {
	if er == nil || b == nil {
		return
	}
	er.eventBus.Publish(NewBlockReplayed(b.Slot, b.BlockHash, applied))
}

func (er *EventRouter) PublishTransactionEvent(event SequencerEvent) {
	if er == nil {
		return
	}
	er.eventBus.Publish(event)
}

func (er *EventRouter) Subscribe() (SubscriberID, <-chan SequencerEvent) {
	return er.eventBus.Subscribe()
}

func (er *EventRouter) Unsubscribe(id SubscriberID) bool {
	return er.eventBus.Unsubscribe(id)
}
