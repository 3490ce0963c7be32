package internal

import (
	"fmt"

	"github.com/vadiminshakov/qrlbot/config"
	"github.com/vadiminshakov/qrlbot/internal/clients"
	"github.com/vadiminshakov/qrlbot/internal/jobs"
)

// NewClient creates the exchange client for the configured platform. Missing
// credentials still yield a client: public endpoints keep working and the job
// runner skips the tasks that need signed calls.
func NewClient(conf config.Config) (any, error) {
	creds := conf.Credentials
	switch conf.Platform {
	case config.PlatformMEXC:
		return clients.NewMEXCClient(creds.APIKey, creds.APISecret), nil
	case config.PlatformBinance:
		return clients.NewBinanceClient(creds.APIKey, creds.APISecret), nil
	case config.PlatformBybit:
		return clients.NewBybitClient(creds.APIKey, creds.APISecret), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", conf.Platform)
	}
}

// jobDefault default retry policy and schedule of a configurable job.
type jobDefault struct {
	policy   jobs.Policy
	schedule string
}

var jobDefaults = map[string]jobDefault{
	config.JobBalance:     {policy: jobs.DefaultBalancePolicy, schedule: "0 * * * * *"},
	config.JobPrice:       {policy: jobs.DefaultPricePolicy, schedule: "0 */5 * * * *"},
	config.JobCost:        {policy: jobs.DefaultCostPolicy, schedule: "0 */15 * * * *"},
	config.JobRebalance:   {policy: jobs.DefaultRebalancePolicy, schedule: "30 */15 * * * *"},
	config.JobIntelligent: {policy: jobs.DefaultRebalancePolicy, schedule: "45 */15 * * * *"},
	config.JobTrading:     {policy: jobs.DefaultTradingPolicy, schedule: "15 */5 * * * *"},
}

// jobSettings merges the configured overrides into the job defaults.
func jobSettings(conf config.Config, name string) (jobs.Policy, string) {
	def := jobDefaults[name]
	o, ok := conf.Jobs[name]
	if !ok {
		return def.policy, def.schedule
	}
	p := def.policy
	if o.Attempts > 0 {
		p.Attempts = o.Attempts
	}
	if o.Timeout > 0 {
		p.Timeout = o.Timeout
	}
	if o.Backoff > 0 {
		p.Backoff = o.Backoff
	}
	schedule := def.schedule
	if o.Schedule != "" {
		schedule = o.Schedule
	}
	return p, schedule
}

