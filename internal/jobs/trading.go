package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/internal/domain"
	"github.com/vadiminshakov/qrlbot/internal/metrics"
	"github.com/vadiminshakov/qrlbot/internal/services/workflow"
	"github.com/vadiminshakov/qrlbot/internal/storage/journal"
)

// TaskTradingCycle name of the decide-and-execute job.
const TaskTradingCycle = "trading/cycle"

// DefaultTradingPolicy two attempts of at most 20s each.
var DefaultTradingPolicy = Policy{Attempts: 2, Timeout: 20 * time.Second, Backoff: time.Second}

type decider interface {
	Execute(ctx context.Context) (workflow.Decision, error)
}

type tradeExecutor interface {
	Execute(ctx context.Context, d workflow.Decision) (domain.TradeRecord, error)
	Live() bool
}

// TradingData payload of the trading job.
type TradingData struct {
	Decision workflow.Decision   `json:"decision"`
	Trade    *domain.TradeRecord `json:"trade,omitempty"`
}

// TradingJob runs one workflow pass and hands proposed decisions to the executor.
type TradingJob struct {
	symbol   string
	workflow decider
	executor tradeExecutor
	journal  journalWriter
	policy   Policy
}

// NewTradingJob creates the job. jw may be nil.
func NewTradingJob(pair domain.Pair, wf decider, exec tradeExecutor, jw journalWriter, policy Policy) *TradingJob {
	return &TradingJob{
		symbol:   pair.Symbol(),
		workflow: wf,
		executor: exec,
		journal:  jw,
		policy:   policy,
	}
}

func (j *TradingJob) Name() string { return TaskTradingCycle }

func (j *TradingJob) RequiresCredentials() bool { return true }

func (j *TradingJob) Run(ctx context.Context, run *Run) domain.TaskResult {
	meta := run.Metadata()

	d, err := withRetry(ctx, run, j.policy, j.workflow.Execute)
	if err != nil {
		return failed(meta, domain.SourceExchange, err)
	}
	if j.journal != nil {
		if err := j.journal.Append(journal.KindDecision, j.symbol, d); err != nil {
			run.l.Warn("failed to journal decision", zap.Error(err))
		}
	}
	if d.Stage == workflow.StageRejected {
		metrics.RiskRejections.Inc()
	}

	meta.PriceSource = d.PriceSource
	meta.Source = domain.SourceExchange
	if d.PriceSource != domain.PriceSourceExchange {
		meta.Source = domain.SourceCache
	}
	meta.Extra = map[string]any{
		"stage":  string(d.Stage),
		"action": d.Action.String(),
		"live":   j.executor.Live(),
	}

	data := TradingData{Decision: d}
	status := domain.TaskStatusSuccess
	if meta.Source == domain.SourceCache {
		status = domain.TaskStatusPartial
	}

	if !d.Proposed() {
		return domain.TaskResult{Status: status, Reason: d.Reason, Data: data, Metadata: meta}
	}

	rec, err := j.executor.Execute(ctx, d)
	metrics.TradesTotal.WithLabelValues(d.Action.String(), string(rec.Status)).Inc()
	data.Trade = &rec
	if err != nil {
		res := failed(meta, meta.Source, err)
		res.Data = data
		return res
	}

	return domain.TaskResult{Status: status, Reason: d.Reason, Data: data, Metadata: meta}
}
