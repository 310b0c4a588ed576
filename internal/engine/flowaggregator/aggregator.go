package flowaggregator

import (
	"sort"

	"NetGauntlet/internal/model"
)

// activeFlow accumulates packets for one flow key until the flow is closed by
// an idle gap or a drain.
type activeFlow struct {
	key        model.FlowKey
	timestamps []float64
	byteCount  uint64
	lastSeen   float64
	openSeq    int
}

// Aggregator correlates a chronological packet stream into flows. A flow is
// every packet sharing a unidirectional five-tuple key; an idle gap longer
// than the timeout closes the flow, and the next packet with the same key
// opens a fresh one. Closed flows are emitted in the order the idle gaps were
// observed, then drained flows in the order they were first opened.
//
// The aggregator is single-owner: one goroutine feeds it a batch and drains
// it. That keeps the output order a pure function of the input order.
type Aggregator struct {
	flowTimeout float64
	active      map[model.FlowKey]*activeFlow
	closed      []model.FlowRecord
	nextSeq     int
}

// NewAggregator creates an aggregator that splits flows on idle gaps strictly
// longer than flowTimeout seconds.
func NewAggregator(flowTimeout float64) *Aggregator {
	return &Aggregator{
		flowTimeout: flowTimeout,
		active:      make(map[model.FlowKey]*activeFlow),
	}
}

// ProcessPacket folds one packet into its flow, closing the previous
// incarnation of the flow first when the idle gap exceeded the timeout.
func (a *Aggregator) ProcessPacket(pkt model.PacketRecord) {
	key := pkt.Key()

	if flow, ok := a.active[key]; ok {
		if pkt.Timestamp-flow.lastSeen > a.flowTimeout {
			a.closed = append(a.closed, finalizeFlow(flow))
			delete(a.active, key)
		} else {
			flow.timestamps = append(flow.timestamps, pkt.Timestamp)
			flow.byteCount += uint64(pkt.Length)
			flow.lastSeen = pkt.Timestamp
			return
		}
	}

	a.active[key] = &activeFlow{
		key:        key,
		timestamps: []float64{pkt.Timestamp},
		byteCount:  uint64(pkt.Length),
		lastSeen:   pkt.Timestamp,
		openSeq:    a.nextSeq,
	}
	a.nextSeq++
}

// ActiveCount returns the number of flows still open.
func (a *Aggregator) ActiveCount() int {
	return len(a.active)
}

// Drain closes all remaining flows in the order they were opened and returns
// every flow record produced since the last drain. The aggregator is reset
// and can be reused for the next batch.
func (a *Aggregator) Drain() []model.FlowRecord {
	remaining := make([]*activeFlow, 0, len(a.active))
	for _, flow := range a.active {
		remaining = append(remaining, flow)
	}
	sort.Slice(remaining, func(i, j int) bool {
		return remaining[i].openSeq < remaining[j].openSeq
	})

	out := a.closed
	for _, flow := range remaining {
		out = append(out, finalizeFlow(flow))
	}

	a.active = make(map[model.FlowKey]*activeFlow)
	a.closed = nil
	a.nextSeq = 0
	return out
}

// PacketsToFlows correlates one batch of packets in input order. Every input
// packet is attributed to exactly one output flow record.
func PacketsToFlows(packets []model.PacketRecord, flowTimeout float64) []model.FlowRecord {
	agg := NewAggregator(flowTimeout)
	for _, pkt := range packets {
		agg.ProcessPacket(pkt)
	}
	return agg.Drain()
}
