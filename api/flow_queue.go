package api

import (
	"context"
	"sync"
	"time"

	"github.com/evanrolfe/trayce_classifier/internal/logger"
	"github.com/evanrolfe/trayce_classifier/internal/sockets"
	"go.uber.org/zap"
)

const sendInterval = 100 * time.Millisecond

// FlowSender ships a batch of flows somewhere
type FlowSender interface {
	SendFlows(ctx context.Context, flows []*Flow) error
}

// FlowQueue collects flows from a channel and hands them to a FlowSender in batches of at most batchSize.
type FlowQueue struct {
	sender    FlowSender
	batchSize int

	mu    sync.Mutex
	flows []*Flow
	wg    sync.WaitGroup
	lg    *zap.SugaredLogger
}

func NewFlowQueue(ctx context.Context, sender FlowSender, batchSize int) *FlowQueue {
	if batchSize < 1 {
		batchSize = 1
	}

	return &FlowQueue{
		sender:    sender,
		batchSize: batchSize,
		lg:        logger.FromContext(ctx).Named("flow_queue"),
	}
}

// Start queues flows received on inputChan and sends them every 100ms until ctx is cancelled or inputChan is closed.
// Wait blocks until both go-routines have stopped.
func (fq *FlowQueue) Start(ctx context.Context, inputChan <-chan sockets.Flow) {
	done := make(chan struct{})

	// Listen to the input channel and queue any flows received from it
	fq.wg.Add(2)
	go func() {
		defer fq.wg.Done()
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				fq.lg.Debug("Stopping receiver go-routine")
				return
			case flow, ok := <-inputChan:
				if !ok {
					fq.lg.Debug("Input closed, stopping receiver go-routine")
					return
				}
				fq.lg.Debugf("Received flow %s", flow.UUID)
				fq.queue(convertToAPIFlow(flow))
			}
		}
	}()

	go func() {
		defer fq.wg.Done()
		ticker := time.NewTicker(sendInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fq.processQueue(ctx)
			case <-done:
				fq.lg.Debug("Stopping processQueue go-routine")
				return
			}
		}
	}()

	fq.lg.Debug("Running...")
}

// Wait blocks until the go-routines started by Start have returned
func (fq *FlowQueue) Wait() {
	fq.wg.Wait()
}

// Flush sends everything still queued, in batches.
func (fq *FlowQueue) Flush(ctx context.Context) error {
	for {
		flows := fq.shiftQueue(fq.batchSize)
		if len(flows) == 0 {
			return nil
		}
		if err := fq.send(ctx, flows); err != nil {
			return err
		}
	}
}

func (fq *FlowQueue) Len() int {
	fq.mu.Lock()
	defer fq.mu.Unlock()
	return len(fq.flows)
}

func (fq *FlowQueue) queue(flow *Flow) {
	fq.mu.Lock()
	defer fq.mu.Unlock()

	fq.flows = append(fq.flows, flow)
	if len(fq.flows)%100 == 0 {
		fq.lg.Debugf("Queued %d flows", len(fq.flows))
	}
}

func (fq *FlowQueue) processQueue(ctx context.Context) {
	flows := fq.shiftQueue(fq.batchSize)
	if len(flows) == 0 {
		return
	}

	if err := fq.send(ctx, flows); err != nil {
		fq.lg.Errorf("Could not send %d flows: %v", len(flows), err)
	}
}

func (fq *FlowQueue) send(ctx context.Context, flows []*Flow) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()

	fq.lg.Debugf("Sending %d flows", len(flows))
	return fq.sender.SendFlows(ctx, flows)
}

func (fq *FlowQueue) shiftQueue(n int) []*Flow {
	fq.mu.Lock()
	defer fq.mu.Unlock()

	if len(fq.flows) < n {
		n = len(fq.flows)
	}
	flows := fq.flows[0:n:n]
	fq.flows = fq.flows[n:]

	return flows
}
