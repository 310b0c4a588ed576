package extractor

import (
	"context"
	"fmt"
	"log"
	"time"

	"NetGauntlet/internal/config"
	"NetGauntlet/internal/detector"
	"NetGauntlet/internal/engine/flowaggregator"
	"NetGauntlet/internal/model"
	"NetGauntlet/internal/results"
)

// Submitter hands one flow batch to the detector and waits for its verdict.
// *detector.Client satisfies it.
type Submitter interface {
	SubmitAndAwait(ctx context.Context, payload interface{}, timeoutTotal, pollInterval time.Duration) detector.AwaitResult
}

// Pipeline runs capture cycles: read a fixed-size packet batch from the
// source, correlate it into flows, archive them, submit them to the detector
// and append the outcome to the submission log.
type Pipeline struct {
	source       model.PacketSource
	submitter    Submitter
	sink         *results.Writer
	archive      model.FlowWriter // optional

	batchSize     int
	flowTimeout   float64
	sleepBetween  time.Duration
	submitTimeout time.Duration
	submitPoll    time.Duration
}

// NewPipeline wires a pipeline from configuration. The archive writer may be
// nil when flow archiving is disabled.
func NewPipeline(captureCfg config.CaptureConfig, detectorCfg config.DetectorConfig,
	source model.PacketSource, submitter Submitter, sink *results.Writer, archive model.FlowWriter) (*Pipeline, error) {

	sleepBetween, err := time.ParseDuration(captureCfg.SleepBetween)
	if err != nil {
		return nil, fmt.Errorf("failed to parse capture sleep_between: %w", err)
	}
	submitTimeout, err := time.ParseDuration(detectorCfg.SubmitTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse detector submit_timeout: %w", err)
	}
	submitPoll, err := time.ParseDuration(detectorCfg.SubmitPoll)
	if err != nil {
		return nil, fmt.Errorf("failed to parse detector submit_poll: %w", err)
	}

	return &Pipeline{
		source:        source,
		submitter:     submitter,
		sink:          sink,
		archive:       archive,
		batchSize:     captureCfg.PacketCount,
		flowTimeout:   captureCfg.FlowTimeout,
		sleepBetween:  sleepBetween,
		submitTimeout: submitTimeout,
		submitPoll:    submitPoll,
	}, nil
}

// Run processes capture cycles until the context is cancelled or the source
// runs out of packets. A partial final batch is still processed, so offline
// captures account for every packet.
func (p *Pipeline) Run(ctx context.Context) error {
	for cycle := 1; ; cycle++ {
		batch, more := p.nextBatch(ctx)
		if len(batch) > 0 {
			p.processBatch(ctx, cycle, batch)
		}
		if !more {
			log.Printf("Packet source finished after %d cycles.", cycle)
			return nil
		}
		if err := sleepCtx(ctx, p.sleepBetween); err != nil {
			return nil
		}
	}
}

// nextBatch collects up to batchSize records. more=false means the source is
// closed or the context was cancelled.
func (p *Pipeline) nextBatch(ctx context.Context) (batch []model.PacketRecord, more bool) {
	batch = make([]model.PacketRecord, 0, p.batchSize)
	for len(batch) < p.batchSize {
		select {
		case rec, ok := <-p.source.Records():
			if !ok {
				return batch, false
			}
			batch = append(batch, rec)
		case <-ctx.Done():
			return batch, false
		}
	}
	return batch, true
}

func (p *Pipeline) processBatch(ctx context.Context, cycle int, batch []model.PacketRecord) {
	flows := flowaggregator.PacketsToFlows(batch, p.flowTimeout)

	if p.archive != nil {
		if err := p.archive.WriteFlows(ctx, flows); err != nil {
			log.Printf("Cycle %d: failed to archive flows: %v", cycle, err)
		}
	}
	if len(flows) == 0 {
		return
	}

	res := p.submitter.SubmitAndAwait(ctx, flows, p.submitTimeout, p.submitPoll)
	entry := model.SubmissionRecord{
		Timestamp:  results.NowISO(),
		FlowsCount: len(flows),
		Response:   res.LogValue(),
	}
	if err := p.sink.Append(entry); err != nil {
		log.Printf("Cycle %d: failed to append submission record: %v", cycle, err)
	}

	if res.OK() {
		log.Printf("Cycle %d: %d packets -> %d flows, verdict received (execId %s)", cycle, len(batch), len(flows), res.ExecutionID)
	} else {
		log.Printf("Cycle %d: %d packets -> %d flows, detector error %s", cycle, len(batch), len(flows), res.ErrKind)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
