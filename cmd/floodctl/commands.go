package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"floodguard/internal/fixedpoint"
	"floodguard/internal/models"
	"floodguard/internal/repository"
	"floodguard/internal/risk"
	"floodguard/pkg/logging"
)

var commands = map[string]command{
	"evaluate": {
		usage: "<water> <tide> <current>  evaluate flood risk offline",
		run:   runEvaluate,
	},
	"encode": {
		usage: "<value>...  encode meters to contract fixed-point",
		run:   runEncode,
	},
	"decode": {
		usage: "<n>...  decode contract fixed-point to meters",
		run:   runDecode,
	},
	"thresholds": {
		usage: "print the risk thresholds",
		run: func(ctx context.Context, c *cli, args []string) (interface{}, error) {
			return risk.Thresholds(), nil
		},
	},
	"fetch": {
		usage:  "fetch current metrics from NOAA",
		online: true,
		run: func(ctx context.Context, c *cli, args []string) (interface{}, error) {
			return nilOnError(c.app.Flood.FetchMetrics(ctx, c.station, models.ParseProduct(c.product)))
		},
	},
	"sync": {
		usage:  "run one fetch, persist and submit cycle",
		online: true,
		run: func(ctx context.Context, c *cli, args []string) (interface{}, error) {
			if c.app.Config.Sync.SubmitOnChain {
				if err := c.app.ConnectSession(ctx); err != nil {
					return nil, err
				}
			}
			result, err := c.app.Sync.RunOnce(ctx, c.station)
			if result == nil {
				return nil, err
			}
			return result, err
		},
	},
	"submit": {
		usage:  "fetch metrics and submit them on-chain without persisting",
		online: true,
		write:  true,
		run: func(ctx context.Context, c *cli, args []string) (interface{}, error) {
			m, err := c.app.Flood.FetchMetrics(ctx, c.station, models.ProductAll)
			if err != nil {
				return nil, err
			}
			return nilOnError(c.app.Gateway.SubmitMetrics(ctx, c.app.Session, m))
		},
	},
	"metrics": {
		usage:  "read the metrics stored by the contract",
		online: true,
		run: func(ctx context.Context, c *cli, args []string) (interface{}, error) {
			if err := c.requireLedger(); err != nil {
				return nil, err
			}
			return nilOnError(c.app.Gateway.ReadMetrics(ctx))
		},
	},
	"balance": {
		usage:  "read the contract balance",
		online: true,
		run: func(ctx context.Context, c *cli, args []string) (interface{}, error) {
			if err := c.requireLedger(); err != nil {
				return nil, err
			}
			balance, err := c.app.Gateway.ReadBalance(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]string{"balance": balance}, nil
		},
	},
	"funds": {
		usage:  "read sponsor and investor totals",
		online: true,
		run: func(ctx context.Context, c *cli, args []string) (interface{}, error) {
			if err := c.requireLedger(); err != nil {
				return nil, err
			}
			return nilOnError(c.app.Gateway.ReadFundsInfo(ctx))
		},
	},
	"deposit": {
		usage:  "<address>  read an investor deposit",
		online: true,
		run: func(ctx context.Context, c *cli, args []string) (interface{}, error) {
			if err := requireArgs(args, 1, "address"); err != nil {
				return nil, err
			}
			if err := c.requireLedger(); err != nil {
				return nil, err
			}
			return nilOnError(c.app.Gateway.ReadDeposit(ctx, args[0]))
		},
	},
	"debug": {
		usage:  "inspect deployment, network and ownership",
		online: true,
		run: func(ctx context.Context, c *cli, args []string) (interface{}, error) {
			if err := c.requireLedger(); err != nil {
				return nil, err
			}
			c.connectBestEffort(ctx)
			return c.app.Gateway.Debug(ctx, c.app.Session), nil
		},
	},
	"sponsor": {
		usage:  "<amount>  deposit as sponsor",
		online: true,
		write:  true,
		run: func(ctx context.Context, c *cli, args []string) (interface{}, error) {
			if err := requireArgs(args, 1, "amount"); err != nil {
				return nil, err
			}
			return nilOnError(c.app.Gateway.DepositAsSponsor(ctx, c.app.Session, args[0]))
		},
	},
	"invest": {
		usage:  "<amount>  deposit as investor",
		online: true,
		write:  true,
		run: func(ctx context.Context, c *cli, args []string) (interface{}, error) {
			if err := requireArgs(args, 1, "amount"); err != nil {
				return nil, err
			}
			return nilOnError(c.app.Gateway.DepositAsInvestor(ctx, c.app.Session, args[0]))
		},
	},
	"add-beneficiary": {
		usage:  "<address>  register a relief beneficiary",
		online: true,
		write:  true,
		run: func(ctx context.Context, c *cli, args []string) (interface{}, error) {
			if err := requireArgs(args, 1, "address"); err != nil {
				return nil, err
			}
			return nilOnError(c.app.Gateway.AddBeneficiary(ctx, c.app.Session, args[0]))
		},
	},
	"withdraw": {
		usage:  "trigger investor withdrawals",
		online: true,
		write:  true,
		run: func(ctx context.Context, c *cli, args []string) (interface{}, error) {
			return nilOnError(c.app.Gateway.TriggerWithdrawals(ctx, c.app.Session))
		},
	},
	"snapshots": {
		usage:  "[limit]  list recent stored snapshots",
		online: true,
		run:    runSnapshots,
	},
	"stats": {
		usage:  "[window]  station statistics over a trailing window, e.g. 24h",
		online: true,
		run:    runStats,
	},
}

// nilOnError keeps typed nil pointers out of the printed result
func nilOnError[T any](v *T, err error) (interface{}, error) {
	if err != nil || v == nil {
		return nil, err
	}
	return v, nil
}

func (c *cli) requireLedger() error {
	if c.app.Gateway == nil {
		return fmt.Errorf("ledger is disabled: set ledger.enabled")
	}
	return nil
}

// connectBestEffort connects the session for debug output; debug still
// reports the signer when the connection is refused
func (c *cli) connectBestEffort(ctx context.Context) {
	if err := c.app.ConnectSession(ctx); err != nil {
		c.app.Logger.Debug(ctx, "[FLOODCTL_CONNECT] Session not connected, reporting without it", logging.Fields{
			"kind":  models.KindOf(err),
			"error": models.ReasonOf(err),
		})
	}
}

func (c *cli) requireHistory() error {
	if c.app.Stats == nil {
		return fmt.Errorf("history is disabled: set database.enabled")
	}
	return nil
}

func parseFloats(args []string) ([]float64, error) {
	values := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, &models.ValidationError{Value: a, Message: fmt.Sprintf("invalid number %q", a)}
		}
		values[i] = v
	}
	return values, nil
}

type evaluation struct {
	WaterLevel     float64           `json:"waterLevel" yaml:"waterLevel"`
	TidePrediction float64           `json:"tidePrediction" yaml:"tidePrediction"`
	CurrentSpeed   float64           `json:"currentSpeed" yaml:"currentSpeed"`
	FloodRisk      bool              `json:"floodRisk" yaml:"floodRisk"`
	Thresholds     risk.ThresholdSet `json:"thresholds" yaml:"thresholds"`
}

func runEvaluate(ctx context.Context, c *cli, args []string) (interface{}, error) {
	if err := requireArgs(args, 3, "water", "tide", "current"); err != nil {
		return nil, err
	}
	v, err := parseFloats(args)
	if err != nil {
		return nil, err
	}
	return evaluation{
		WaterLevel:     v[0],
		TidePrediction: v[1],
		CurrentSpeed:   v[2],
		FloodRisk:      risk.Evaluate(v[0], v[1], v[2]),
		Thresholds:     risk.Thresholds(),
	}, nil
}

type conversion struct {
	Value   float64 `json:"value" yaml:"value"`
	Encoded uint64  `json:"encoded" yaml:"encoded"`
}

func runEncode(ctx context.Context, c *cli, args []string) (interface{}, error) {
	if len(args) == 0 {
		return nil, &models.ValidationError{Message: "expected at least one value"}
	}
	values, err := parseFloats(args)
	if err != nil {
		return nil, err
	}
	out := make([]conversion, len(values))
	for i, v := range values {
		n, err := fixedpoint.Encode(v)
		if err != nil {
			return nil, err
		}
		out[i] = conversion{Value: v, Encoded: n}
	}
	return out, nil
}

func runDecode(ctx context.Context, c *cli, args []string) (interface{}, error) {
	if len(args) == 0 {
		return nil, &models.ValidationError{Message: "expected at least one value"}
	}
	out := make([]conversion, len(args))
	for i, a := range args {
		n, err := strconv.ParseUint(a, 10, 64)
		if err != nil {
			return nil, &models.ValidationError{Value: a, Message: fmt.Sprintf("invalid fixed-point integer %q", a)}
		}
		out[i] = conversion{Value: fixedpoint.Decode(n), Encoded: n}
	}
	return out, nil
}

func runSnapshots(ctx context.Context, c *cli, args []string) (interface{}, error) {
	if err := c.requireHistory(); err != nil {
		return nil, err
	}
	limit := 20
	if len(args) > 0 {
		l, err := strconv.Atoi(args[0])
		if err != nil || l <= 0 || l > 1000 {
			return nil, &models.ValidationError{Value: args[0], Message: "limit must be between 1 and 1000"}
		}
		limit = l
	}
	snapshots, _, err := c.app.Stats.GetSnapshots(ctx, repository.SnapshotFilter{StationID: &c.station, Limit: limit})
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

func runStats(ctx context.Context, c *cli, args []string) (interface{}, error) {
	if err := c.requireHistory(); err != nil {
		return nil, err
	}
	var window time.Duration
	if len(args) > 0 {
		d, err := time.ParseDuration(args[0])
		if err != nil || d <= 0 {
			return nil, &models.ValidationError{Value: args[0], Message: "window must be a positive duration such as 24h"}
		}
		window = d
	}
	return nilOnError(c.app.Stats.GetStationStatistics(ctx, c.station, window))
}
