package app

import (
	"strings"
	"time"

	"timekeep/internal/config"
	"timekeep/internal/services/debughttp"
	"timekeep/internal/services/jobs"
	"timekeep/internal/storage"
	"timekeep/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Log.Level,
		Console: cfg.Log.Console,
		File: logx.FileConfig{
			Enabled:   cfg.Log.File.Enabled,
			Path:      cfg.Log.File.Path,
			MaxPerSec: cfg.Log.File.MaxPerSec,
		},
	}
}

func mapDebugConfig(cfg *config.Config) debughttp.Config {
	return debughttp.Config{
		Enabled:       cfg.Debug.Enabled,
		Addr:          strings.TrimSpace(cfg.Debug.Addr),
		Token:         cfg.Debug.Token,
		AllowInsecure: cfg.Debug.AllowInsecure,
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.TrimSpace(cfg.Storage.Driver),
		Path:        strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout: busy,
	}, nil
}

func mapJobsConfig(cfg *config.Config) (jobs.Config, []jobs.JobSpec, error) {
	defTimeout, err := config.ParseDurationOrDefault("jobs.timeout", cfg.Jobs.Timeout, time.Minute)
	if err != nil {
		return jobs.Config{}, nil, err
	}
	jc := jobs.Config{
		Enabled:        cfg.Jobs.Enabled,
		Workers:        cfg.Jobs.Workers,
		QueueSize:      cfg.Jobs.QueueSize,
		DefaultTimeout: defTimeout,
		HistorySize:    cfg.Jobs.HistorySize,
	}

	defs := make([]jobs.JobSpec, 0, len(cfg.Jobs.Defs))
	for _, j := range cfg.Jobs.Defs {
		if j.Disabled {
			continue
		}
		timeout, err := config.ParseDurationField("jobs.defs."+j.Name+".timeout", j.Timeout)
		if err != nil {
			return jobs.Config{}, nil, err
		}
		defs = append(defs, jobs.JobSpec{
			Name:     j.Name,
			Schedule: j.Schedule,
			Command:  append([]string(nil), j.Command...),
			Timeout:  timeout,
		})
	}
	return jc, defs, nil
}
