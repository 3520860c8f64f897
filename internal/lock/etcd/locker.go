package etcd

import (
	"context"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/toolsascode/sqldatabase/internal/logger"
)

// Config holds the etcd connection settings of the locker
type Config struct {
	Endpoints []string
	Username  string
	Password  string
	Prefix    string
	Timeout   time.Duration
	// TTL of the session lease in seconds; the lock is lost if the process dies
	TTL int
}

// Locker implements lock.Locker with an etcd session mutex
type Locker struct {
	client *clientv3.Client
	prefix string
	ttl    int
}

// NewLocker connects to etcd
func NewLocker(config Config) (*Locker, error) {
	if len(config.Endpoints) == 0 {
		return nil, fmt.Errorf("etcd endpoints are required")
	}

	endpoints := make([]string, 0, len(config.Endpoints))
	for _, ep := range config.Endpoints {
		if ep = strings.TrimSpace(ep); ep != "" {
			endpoints = append(endpoints, ep)
		}
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	prefix := config.Prefix
	if prefix == "" {
		prefix = "/sqldatabase/locks"
	}
	prefix = strings.TrimSuffix(prefix, "/") + "/"

	ttl := config.TTL
	if ttl <= 0 {
		ttl = 60
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		Username:    config.Username,
		Password:    config.Password,
		DialTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	return &Locker{client: client, prefix: prefix, ttl: ttl}, nil
}

// Acquire blocks until the mutex for key is held or ctx is done
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	session, err := concurrency.NewSession(l.client, concurrency.WithTTL(l.ttl), concurrency.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd session: %w", err)
	}

	mutex := concurrency.NewMutex(session, l.prefix+key)
	logger.Debugf("waiting for lock %s", l.prefix+key)
	if err := mutex.Lock(ctx); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	logger.Infof("lock %s acquired", l.prefix+key)

	release := func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mutex.Unlock(unlockCtx); err != nil {
			logger.Warnf("failed to release lock %s: %v", key, err)
		}
		_ = session.Close()
	}
	return release, nil
}

// Close closes the etcd client
func (l *Locker) Close() error {
	if l.client != nil {
		return l.client.Close()
	}
	return nil
}
