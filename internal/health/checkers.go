// SPDX-License-Identifier: MIT

package health

import (
	"context"

	"github.com/lumacast/lumacast/internal/push"
)

// PushChecker reports the push channel state. Disconnected is degraded, not
// unhealthy: the player keeps rendering cached content while reconnecting.
type PushChecker struct {
	status func() push.Status
}

// NewPushChecker creates a checker over a status accessor.
func NewPushChecker(status func() push.Status) *PushChecker {
	return &PushChecker{status: status}
}

func (c *PushChecker) Name() string { return "push_channel" }

func (c *PushChecker) Check(_ context.Context) CheckResult {
	s := c.status()
	switch s {
	case push.StatusConnected:
		return CheckResult{Status: StatusHealthy, Message: "connected"}
	case push.StatusConnecting:
		return CheckResult{Status: StatusDegraded, Message: "connecting"}
	default:
		return CheckResult{Status: StatusDegraded, Message: string(s)}
	}
}

// CacheChecker verifies the snapshot store is usable.
type CacheChecker struct {
	probe func() error
}

// NewCacheChecker creates a checker over a probe function.
func NewCacheChecker(probe func() error) *CacheChecker {
	return &CacheChecker{probe: probe}
}

func (c *CacheChecker) Name() string { return "playlist_cache" }

func (c *CacheChecker) Check(_ context.Context) CheckResult {
	if err := c.probe(); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "reachable"}
}
