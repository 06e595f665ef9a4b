// Package scan implements the partitioned scan engine: the partition queue,
// the per-round fan-out/gather orchestrator with leader-redirect handling,
// and the iterator surface callers drain with HasNext/Next.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vireodb/partscan/internal/checkpoint"
	"github.com/vireodb/partscan/internal/metrics"
	"github.com/vireodb/partscan/internal/wire"
)

// Iterator drives one scan of a label across all its partitions. Each Next
// call runs one round: one concurrent task per host owning pending
// partitions, a join barrier, then a verdict under the configured policy.
//
// Not safe for concurrent use; the calling goroutine is the only sequencer
// and rounds never overlap.
type Iterator struct {
	id    string
	cfg   Config
	queue *PartQueue
	log   *slog.Logger

	hasNext bool
}

// roundState accumulates the outcomes of one round's host tasks.
type roundState struct {
	mu        sync.Mutex
	datasets  []*wire.DataSet
	errs      []error
	succeeded int
}

func (r *roundState) success() {
	r.mu.Lock()
	r.succeeded++
	r.mu.Unlock()
}

func (r *roundState) collect(ds *wire.DataSet) {
	r.mu.Lock()
	r.datasets = append(r.datasets, ds)
	r.mu.Unlock()
}

func (r *roundState) fail(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

// New builds an iterator from an explicit configuration. When a checkpoint
// manager is configured and holds state for this space/label, the scan
// resumes: finished partitions are skipped and cursors are restored.
func New(ctx context.Context, cfg Config) (*Iterator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scan config: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.With("component", "scan", "space", cfg.Space, "label", cfg.Label)
	}

	it := &Iterator{
		id:  uuid.New().String(),
		cfg: cfg,
		log: log,
	}

	parts := cfg.Parts
	if cfg.Checkpoints != nil {
		restored, err := it.restore(ctx, parts)
		if err != nil {
			return nil, err
		}
		parts = restored
	}

	it.queue = NewPartQueue(parts)
	it.hasNext = it.queue.Size() > 0
	return it, nil
}

// restore filters the initial assignment down to the checkpoint's pending
// partitions and applies their saved cursors.
func (it *Iterator) restore(ctx context.Context, parts []PartState) ([]PartState, error) {
	cp, err := it.cfg.Checkpoints.Load(ctx, it.cfg.Space, it.cfg.Label)
	if errors.Is(err, checkpoint.ErrNoCheckpoint) {
		return parts, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load scan checkpoint: %w", err)
	}
	if cp.Kind != string(it.cfg.Template.Kind) {
		it.log.Info("checkpoint kind does not match scan, starting fresh")
		return parts, nil
	}

	resumed := make([]PartState, 0, len(cp.Cursors))
	for _, p := range parts {
		cursor, pending := cp.Cursors[p.PartID]
		if !pending {
			continue
		}
		p.Cursor = cursor
		resumed = append(resumed, p)
	}
	it.log.Info("resuming scan from checkpoint",
		"pending_parts", len(resumed),
		"skipped_parts", len(parts)-len(resumed),
	)
	return resumed, nil
}

// HasNext reports whether another Next call can make progress. Under the
// strict policy it turns false as soon as a round has failed.
func (it *Iterator) HasNext() bool {
	return it.hasNext
}

// Next runs one scan round and returns its result.
//
// The calling goroutine blocks until every host task of the round finishes;
// there is no per-round timeout, so a stuck transport call stalls the round
// (a known limitation of the protocol, not silently bounded here). When ctx
// is canceled at the barrier the error is returned, but in-flight tasks are
// not forcibly aborted and the queue may still be mutated by them.
func (it *Iterator) Next(ctx context.Context) (*Result, error) {
	if !it.hasNext {
		return nil, ErrExhausted
	}

	started := time.Now()
	hosts := it.queue.Hosts()
	round := &roundState{}

	var wg sync.WaitGroup
	for _, host := range hosts {
		wg.Add(1)
		go func(host wire.HostAddr) {
			defer wg.Done()
			it.scanHost(ctx, host, round)
		}(host)
	}

	barrier := make(chan struct{})
	go func() {
		wg.Wait()
		close(barrier)
	}()

	select {
	case <-barrier:
	case <-ctx.Done():
		return nil, fmt.Errorf("scan round interrupted: %w", ctx.Err())
	}

	res, err := it.verdict(hosts, round)

	if m := metrics.Get(); m != nil {
		labels := it.metricLabels()
		m.IncRounds(labels)
		m.ObserveRoundDuration(labels, time.Since(started).Seconds())
		m.SetPendingPartitions(labels, float64(it.queue.Size()))
	}

	if err != nil {
		return nil, err
	}
	it.saveCheckpoint(ctx)
	return res, nil
}

// scanHost is one round task: take a partition assigned to host, fetch its
// next chunk, classify the outcome, and update the queue.
func (it *Iterator) scanHost(ctx context.Context, host wire.HostAddr, round *roundState) {
	part, ok := it.queue.TakeAssigned(host)
	if !ok {
		// No partition left for this host; counts as an existing success
		// so an otherwise-empty round is not mistaken for total failure.
		round.success()
		return
	}

	log := it.log.With("host", host.String(), "part", part.PartID)

	conn, err := it.cfg.Conns.Get(ctx, host)
	if err != nil {
		// The partition stays pending: nothing was sent, a later round may
		// find the pool healthy again.
		log.Error("acquire storage connection", "error", err)
		round.fail(fmt.Errorf("acquire connection to %s: %w", host, err))
		it.countError("conn_acquire")
		it.queue.Requeue(part.PartID)
		return
	}
	defer it.cfg.Conns.Release(host, conn)

	req := it.cfg.Template.Clone(part.PartID, part.Cursor)
	resp, err := conn.Scan(ctx, req)
	if err != nil {
		// Transport failure is terminal for the partition in this scan.
		log.Error("scan request failed", "error", err)
		round.fail(fmt.Errorf("scan partition %d on %s: %w", part.PartID, host, err))
		it.countError("transport")
		it.queue.Drop(part.PartID)
		it.countDrop("transport_failure")
		return
	}

	resolved := false
	if resp.Succeeded() {
		round.success()
		resolved = true
		if resp.Data != nil {
			round.collect(resp.Data)
		}
		if resp.HasNext {
			it.queue.AdvanceCursor(part.PartID, resp.NextCursor)
		} else {
			it.queue.Drop(part.PartID)
			it.countDrop("exhausted")
		}
		if m := metrics.Get(); m != nil {
			m.AddRowsScanned(it.metricLabels(), float64(resp.Data.RowCount()))
		}
	}

	if resp.Result == nil {
		log.Error("scan response carries no result block")
		round.fail(fmt.Errorf("partition %d on %s: response missing result", part.PartID, host))
		it.countError("protocol")
		it.queue.Drop(part.PartID)
		it.countDrop("protocol_failure")
		return
	}

	for _, pe := range resp.Result.FailedParts {
		if pe.PartID == part.PartID {
			resolved = true
		}
		if pe.Code == wire.CodeLeaderChanged {
			it.redirect(ctx, pe, round, log)
			continue
		}
		log.Error("partition scan failed", "code", pe.Code.String())
		it.queue.Drop(pe.PartID)
		it.countDrop("storage_error")
		round.fail(&PartError{PartID: pe.PartID, Code: pe.Code})
		it.countError("storage")
	}

	// A response that neither succeeded for the taken partition nor
	// reported it failed would otherwise leak the partition in flight.
	if !resolved {
		it.queue.Requeue(part.PartID)
	}
}

// redirect refreshes the partition's leader and moves it for the next
// round. Not retried within the same round, which caps retry amplification
// on a flapping leader.
func (it *Iterator) redirect(ctx context.Context, pe wire.PartitionError, round *roundState, log *slog.Logger) {
	leader, err := it.cfg.Meta.Refresh(ctx, it.cfg.Space, pe.PartID, pe.Leader)
	if err != nil {
		log.Error("refresh partition leader", "error", err)
		round.fail(fmt.Errorf("refresh leader of partition %d: %w", pe.PartID, err))
		it.countError("meta")
		it.queue.Drop(pe.PartID)
		it.countDrop("meta_failure")
		return
	}
	log.Info("partition leader changed", "new_leader", leader.String())
	it.queue.Reassign(pe.PartID, leader)
	if m := metrics.Get(); m != nil {
		m.IncLeaderRedirects(it.metricLabels())
	}
}

// verdict computes the round outcome under the configured policy.
func (it *Iterator) verdict(hosts []wire.HostAddr, round *roundState) (*Result, error) {
	if it.cfg.PartialSuccess {
		it.hasNext = it.queue.Size() > 0
		if round.succeeded == 0 {
			return nil, &AggregateError{Errs: round.errs}
		}
		status := StatusAllSuccess
		if len(round.errs) > 0 {
			status = StatusPartSuccess
		}
		return it.result(round.datasets, status), nil
	}

	it.hasNext = it.queue.Size() > 0 && len(round.errs) == 0
	if len(round.errs) > 0 {
		return nil, &AggregateError{Errs: round.errs}
	}
	// Keeping the original protocol behavior: on this branch the status is
	// always ALL_SUCCESS and payloads are only carried when every host
	// task succeeded.
	var datasets []*wire.DataSet
	if round.succeeded == len(hosts) {
		datasets = round.datasets
	}
	return it.result(datasets, StatusAllSuccess), nil
}

func (it *Iterator) result(datasets []*wire.DataSet, status Status) *Result {
	return &Result{
		DataSets:  datasets,
		Columns:   it.cfg.Template.ReturnColumns,
		Status:    status,
		Label:     it.cfg.Label,
		Processor: it.cfg.Processor,
	}
}

// saveCheckpoint persists the pending cursors, or clears the checkpoint
// once the queue has drained. Checkpoint errors never fail the scan.
func (it *Iterator) saveCheckpoint(ctx context.Context) {
	if it.cfg.Checkpoints == nil {
		return
	}

	pending := it.queue.Snapshot()
	if len(pending) == 0 {
		if err := it.cfg.Checkpoints.Clear(ctx, it.cfg.Space, it.cfg.Label); err != nil {
			it.log.Warn("clear scan checkpoint", "error", err)
		}
		return
	}

	cursors := make(map[int32][]byte, len(pending))
	for _, p := range pending {
		cursors[p.PartID] = p.Cursor
	}
	cp := &checkpoint.Checkpoint{
		ScanID:  it.id,
		Space:   it.cfg.Space,
		Label:   it.cfg.Label,
		Kind:    string(it.cfg.Template.Kind),
		Cursors: cursors,
	}
	if err := it.cfg.Checkpoints.Save(ctx, cp); err != nil {
		it.log.Warn("save scan checkpoint", "error", err)
	}
}

func (it *Iterator) metricLabels() metrics.Labels {
	return metrics.Labels{Space: it.cfg.Space, Label: it.cfg.Label}
}

func (it *Iterator) countError(kind string) {
	if m := metrics.Get(); m != nil {
		m.IncScanErrors(it.metricLabels(), kind)
	}
}

func (it *Iterator) countDrop(reason string) {
	if m := metrics.Get(); m != nil {
		m.IncPartitionsDropped(it.metricLabels(), reason)
	}
}
