package types

import (
	"fmt"
	"strconv"

	abci "github.com/cometbft/cometbft/abci/types"
)

const (
	EventProposalCreatedType  = "proposal_created"
	EventProposalActiveType   = "proposal_active"
	EventProposalApprovedType = "proposal_approved"
)

// Event is a lifecycle notification emitted by the proposal registry.
type Event interface {
	Type() string
	Encode() abci.Event
}

var (
	_ Event = &EventProposalCreated{}
	_ Event = &EventProposalActive{}
	_ Event = &EventProposalApproved{}
)

type EventProposalCreated struct {
	Proposal uint64 `json:"proposal"`
	Name     string `json:"name"`
	Quorum   int64  `json:"quorum"`
}

func (e *EventProposalCreated) Type() string { return EventProposalCreatedType }

func (e *EventProposalCreated) Encode() abci.Event {
	return abci.Event{
		Type: EventProposalCreatedType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", e.Proposal), Index: true},
			{Key: "name", Value: e.Name, Index: false},
			{Key: "quorum", Value: fmt.Sprintf("%v", e.Quorum), Index: false},
		},
	}
}

func DecodeEventProposalCreated(originEvent abci.Event) *EventProposalCreated {
	if originEvent.Type != EventProposalCreatedType {
		return nil
	}
	event := &EventProposalCreated{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Proposal = proposal
		case "name":
			event.Name = v.Value
		case "quorum":
			quorum, err := strconv.ParseInt(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Quorum = quorum
		}
	}
	return event
}

type EventProposalActive struct {
	Proposal uint64 `json:"proposal"`
	Name     string `json:"name"`
	Count    int64  `json:"count"`
}

func (e *EventProposalActive) Type() string { return EventProposalActiveType }

func (e *EventProposalActive) Encode() abci.Event {
	return encodeCountEvent(EventProposalActiveType, e.Proposal, e.Name, e.Count)
}

func DecodeEventProposalActive(originEvent abci.Event) *EventProposalActive {
	if originEvent.Type != EventProposalActiveType {
		return nil
	}
	proposal, name, count, ok := decodeCountEvent(originEvent)
	if !ok {
		return nil
	}
	return &EventProposalActive{Proposal: proposal, Name: name, Count: count}
}

type EventProposalApproved struct {
	Proposal uint64 `json:"proposal"`
	Name     string `json:"name"`
	Count    int64  `json:"count"`
}

func (e *EventProposalApproved) Type() string { return EventProposalApprovedType }

func (e *EventProposalApproved) Encode() abci.Event {
	return encodeCountEvent(EventProposalApprovedType, e.Proposal, e.Name, e.Count)
}

func DecodeEventProposalApproved(originEvent abci.Event) *EventProposalApproved {
	if originEvent.Type != EventProposalApprovedType {
		return nil
	}
	proposal, name, count, ok := decodeCountEvent(originEvent)
	if !ok {
		return nil
	}
	return &EventProposalApproved{Proposal: proposal, Name: name, Count: count}
}

func encodeCountEvent(typ string, proposal uint64, name string, count int64) abci.Event {
	return abci.Event{
		Type: typ,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", proposal), Index: true},
			{Key: "name", Value: name, Index: false},
			{Key: "count", Value: fmt.Sprintf("%v", count), Index: false},
		},
	}
}

func decodeCountEvent(originEvent abci.Event) (proposal uint64, name string, count int64, ok bool) {
	var err error
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err = strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return
			}
		case "name":
			name = v.Value
		case "count":
			count, err = strconv.ParseInt(v.Value, 10, 64)
			if err != nil {
				return
			}
		}
	}
	ok = true
	return
}
