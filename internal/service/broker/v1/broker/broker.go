// Package broker implements the payout status poller reconciling in-flight
// withdrawals against the provider when webhooks are lost.
package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/akarpov/ak-go-cashback/internal/api/rest/client"
	"github.com/akarpov/ak-go-cashback/internal/models/modelqueue"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Settler applies a provider-reported payout state to a withdrawal and
// reports whether the withdrawal reached a terminal state.
type Settler interface {
	SettleProviderStatus(ctx context.Context, withdrawalID, externalID, providerStatus, failureReason string) (bool, error)
}

type Broker struct {
	ctx          context.Context
	log          *zerolog.Logger
	queue        chan modelqueue.PayoutQueueEntry
	gateway      client.PayoutGateway
	settler      Settler
	workerNumber int
	retryNumber  int
	wg           *sync.WaitGroup
}

type payoutPollWorker struct {
	ID          int
	ctx         context.Context
	log         *zerolog.Logger
	queue       chan modelqueue.PayoutQueueEntry
	gateway     client.PayoutGateway
	settler     Settler
	retryNumber int
}

// InitBroker initializes the payout status poller.
func InitBroker(ctx context.Context, queue chan modelqueue.PayoutQueueEntry, gateway client.PayoutGateway,
	settler Settler, workerNumber, retryNumber int, log *zerolog.Logger, wg *sync.WaitGroup) *Broker {
	broker := Broker{
		ctx:          ctx,
		log:          log,
		queue:        queue,
		gateway:      gateway,
		settler:      settler,
		workerNumber: workerNumber,
		retryNumber:  retryNumber,
		wg:           wg,
	}
	return &broker
}

// ListenAndProcess spawns the polling workers and closes the queue on
// context cancellation.
func (b *Broker) ListenAndProcess() {
	b.wg.Add(1)
	go func() {
		b.log.Info().Msg("started listening to queue for in-flight payouts")
		defer b.wg.Done()
		g, _ := errgroup.WithContext(b.ctx)
		for i := 0; i < b.workerNumber; i++ {
			w := &payoutPollWorker{ID: i, ctx: b.ctx, queue: b.queue, gateway: b.gateway, settler: b.settler, retryNumber: b.retryNumber, log: b.log}
			g.Go(w.processAsync)
		}
		<-b.ctx.Done()
		close(b.queue)
		b.log.Info().Msg("closed queue for in-flight payouts")
		err := g.Wait()
		if err != nil {
			b.log.Fatal().Err(err).Msg("closing errgroup failed")
		}
		b.log.Info().Msg("stopped listening to queue for in-flight payouts")
	}()
}

func (w *payoutPollWorker) processAsync() error {
	for record := range w.queue {
		// wait for at least 10 seconds before querying the same payout again
		for time.Since(record.LastChecked) < 10*time.Second {
			select {
			case <-w.ctx.Done():
				return nil
			default:

			}
		}
		entity, err := w.gateway.GetPayout(w.ctx, record.ExternalID)
		if err != nil {
			if record.RetryCount >= w.retryNumber {
				// abandon polling, the provider webhook remains the only
				// settlement path for this payout
				w.log.Warn().Msg(fmt.Sprintf("WID %v, payout %v, abandonment due to retry limit exceeding", w.ID, record.ExternalID))
			} else {
				w.log.Warn().Msg(fmt.Sprintf("WID %v, payout %v, could not query, sending back to queue", w.ID, record.ExternalID))
				record.RetryCount += 1
				record.LastChecked = time.Now()
				w.requeue(record)
			}
			continue
		}
		terminal, err := w.settler.SettleProviderStatus(w.ctx, record.WithdrawalID, record.ExternalID, entity.Status, entity.FailureReason)
		if err != nil {
			w.log.Warn().Err(err).Msg(fmt.Sprintf("WID %v, payout %v, settlement attempt resolved without a transition", w.ID, record.ExternalID))
		}
		if terminal {
			w.log.Info().Msg(fmt.Sprintf("WID %v, payout %v, reached terminal state %s", w.ID, record.ExternalID, entity.Status))
			continue
		}
		w.log.Info().Msg(fmt.Sprintf("WID %v, payout %v, still in state %s, sending back to queue", w.ID, record.ExternalID, entity.Status))
		record.LastChecked = time.Now()
		w.requeue(record)
	}
	return nil
}

// requeue pushes a record back unless shutdown already closed the queue.
func (w *payoutPollWorker) requeue(record modelqueue.PayoutQueueEntry) {
	select {
	case <-w.ctx.Done():
	case w.queue <- record:
	}
}
