package executor

import (
	"fmt"

	"github.com/toolsascode/sqldatabase/internal/backendfactory"
	"github.com/toolsascode/sqldatabase/internal/config"
	lockEtcd "github.com/toolsascode/sqldatabase/internal/lock/etcd"
	"github.com/toolsascode/sqldatabase/internal/logger"
)

// NewRunnerFromConfig builds a runner for connection string connString, or
// for the configured database when it is empty
func NewRunnerFromConfig(cfg *config.Config, connString string) (*Runner, error) {
	adapter, err := backendfactory.NewAdapter(cfg.AdapterConfig(connString))
	if err != nil {
		return nil, err
	}

	mode, err := ParseTransactionMode(cfg.Transaction)
	if err != nil {
		return nil, err
	}

	runner := NewRunner(adapter, cfg.Scanner(), cfg.Sources)
	runner.SetTransaction(mode)
	if err := runner.SetVariables(cfg.Variables); err != nil {
		return nil, err
	}

	if cfg.LockEnabled() {
		locker, err := lockEtcd.NewLocker(cfg.EtcdLockConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create etcd locker: %w", err)
		}
		runner.SetLocker(locker)
		logger.Infof("runs are serialized through etcd %v", cfg.Lock.Endpoints)
	}

	return runner, nil
}

// Close releases the run lock client
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locker.Close()
}
