package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"bankingservice/internal/services"
)

// AccrualRunner запускает начисление по таймеру. Состояния нет, кроме
// факта завершения последнего прогона; наложившиеся тики схлопываются
// (SkipIfStillRunning), так что за окно тика - максимум одно начисление.
type AccrualRunner struct {
	clients    *services.ClientService
	period     time.Duration
	startDelay time.Duration
	cron       *cron.Cron
	first      *time.Timer
	firstDone  sync.WaitGroup
	log        *zap.SugaredLogger
}

func NewAccrualRunner(clients *services.ClientService, period, startDelay time.Duration, log *zap.SugaredLogger) *AccrualRunner {
	return &AccrualRunner{
		clients:    clients,
		period:     period,
		startDelay: startDelay,
		log:        log,
	}
}

func (r *AccrualRunner) run() {
	start := time.Now()
	r.log.Infow("[accrual] cycle started")
	if err := r.clients.UpdateBalance(context.Background()); err != nil {
		r.log.Errorw("[accrual] cycle failed", "err", err)
		return
	}
	r.log.Infow("[accrual] cycle completed", "took", time.Since(start).Truncate(time.Millisecond).String())
}

// Start взводит таймер и первый прогон через startDelay после старта.
// Первый прогон идёт через ту же цепочку SkipIfStillRunning, что и тики:
// при startDelay больше периода он не наложится на очередной цикл.
func (r *AccrualRunner) Start() error {
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).
		Then(cron.FuncJob(r.run))
	r.cron = cron.New()
	if _, err := r.cron.AddJob("@every "+r.period.String(), job); err != nil {
		return err
	}
	r.cron.Start()

	r.firstDone.Add(1)
	r.first = time.AfterFunc(r.startDelay, func() {
		defer r.firstDone.Done()
		job.Run()
	})
	return nil
}

// Stop гасит таймер первого прогона и дожидается уже идущих циклов.
func (r *AccrualRunner) Stop() {
	if r.first != nil {
		if r.first.Stop() {
			r.firstDone.Done() // таймер не успел сработать
		}
		r.firstDone.Wait()
	}
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}
