package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"floodguard/internal/services"
	"floodguard/pkg/logging"
)

type fakeRunner struct {
	station     string
	hadDeadline bool
	err         error
	calls       int
}

func (f *fakeRunner) RunOnce(ctx context.Context, station string) (*services.SyncResult, error) {
	f.calls++
	f.station = station
	_, f.hadDeadline = ctx.Deadline()
	return &services.SyncResult{StationID: station}, f.err
}

func TestRunNow(t *testing.T) {
	tests := []struct {
		name         string
		timeout      time.Duration
		err          error
		wantDeadline bool
	}{
		{"no timeout", 0, nil, false},
		{"with timeout", time.Minute, nil, true},
		{"failure is returned", 0, errors.New("rpc down"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{err: tt.err}
			s := NewScheduler(runner, "8518750", tt.timeout, logging.NewNopLogger())

			result, err := s.RunNow()
			if !errors.Is(err, tt.err) {
				t.Errorf("err = %v, want %v", err, tt.err)
			}
			if result == nil || result.StationID != "8518750" || runner.station != "8518750" {
				t.Errorf("result = %+v, station = %q", result, runner.station)
			}
			if runner.hadDeadline != tt.wantDeadline {
				t.Errorf("deadline = %v, want %v", runner.hadDeadline, tt.wantDeadline)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	s := NewScheduler(&fakeRunner{}, "8518750", 0, logging.NewNopLogger())

	if err := s.Register("*/10 * * * *"); err != nil {
		t.Errorf("valid spec rejected: %v", err)
	}
	if err := s.Register("every ten minutes"); err == nil {
		t.Error("invalid spec accepted")
	}
	if got := len(s.cron.Entries()); got != 1 {
		t.Errorf("entries = %d, want 1", got)
	}

	s.Start()
	s.Stop()
	if s.ctx.Err() == nil {
		t.Error("Stop should cancel in-flight cycles")
	}
}

func TestKVFields(t *testing.T) {
	fields := kvFields([]interface{}{"entry", 3, "next", "soon", "dangling"})
	if len(fields) != 2 || fields["entry"] != 3 || fields["next"] != "soon" {
		t.Errorf("fields = %v", fields)
	}
}
