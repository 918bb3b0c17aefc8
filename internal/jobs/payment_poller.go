package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lawgate/consult-server-go/internal/config"
	"github.com/lawgate/consult-server-go/internal/service"
)

type Reconciler interface {
	ReconcilePending(ctx context.Context, onPaid func(context.Context, *service.PaymentCheck)) (int, error)
}

// PaymentPoller settles checkouts whose owners never pressed "check
// payment" and hands them the code word.
type PaymentPoller struct {
	payments      Reconciler
	notifier      service.Notifier
	lawyerContact string
	interval      time.Duration
	done          chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

func NewPaymentPoller(payments Reconciler, notifier service.Notifier, lawyerContact string, interval time.Duration) *PaymentPoller {
	if interval <= 0 {
		interval = config.DefaultPaymentPollInterval
	}
	return &PaymentPoller{
		payments:      payments,
		notifier:      notifier,
		lawyerContact: lawyerContact,
		interval:      interval,
		done:          make(chan struct{}),
	}
}

func (p *PaymentPoller) Start() {
	p.wg.Add(1)
	go p.run()
	log.Info().Dur("interval", p.interval).Msg("payment poller started")
}

// Stop waits for an in-flight pass to finish.
func (p *PaymentPoller) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
		log.Info().Msg("payment poller stopped")
	})
}

func (p *PaymentPoller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

func (p *PaymentPoller) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()

	count, err := p.payments.ReconcilePending(ctx, p.deliverCodeWord)
	if err != nil {
		log.Error().Err(err).Msg("failed to reconcile pending payments")
		return
	}
	if count > 0 {
		log.Info().Int("count", count).Msg("reconciled pending payments")
	}
}

func (p *PaymentPoller) deliverCodeWord(ctx context.Context, check *service.PaymentCheck) {
	if p.notifier == nil || check.ClientID == 0 || check.CodeWord == "" {
		return
	}

	chatID := service.ClientChatID(check.ClientID)
	messages := []string{
		service.PaymentSucceededText(check, p.lawyerContact),
		service.CodeWordText(check.CodeWord, check.ClientID),
	}
	for _, text := range messages {
		sendCtx, cancel := context.WithTimeout(ctx, config.TelegramAPITimeout)
		err := p.notifier.SendText(sendCtx, chatID, text)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("paymentRef", check.PaymentRef).Int64("clientId", check.ClientID).Msg("failed to deliver code word")
			return
		}
	}
	log.Info().Str("paymentRef", check.PaymentRef).Int64("clientId", check.ClientID).Msg("code word delivered by poller")
}
