package missioncli

import "context"

// Result mirrors one per-language duplication outcome.
type Result struct {
	Language string `json:"language"`
	ItemID   string `json:"item_id"`
}

// Status is a mission record as reported by the daemon.
type Status struct {
	ItemID      string   `json:"itemId"`
	Status      string   `json:"status"`
	Title       string   `json:"title,omitempty"`
	Results     []Result `json:"results,omitempty"`
	Error       string   `json:"error,omitempty"`
	CompletedAt string   `json:"completedAt,omitempty"`
}

// Notify submits an item for admission, as the webhook would.
func (c *Client) Notify(ctx context.Context, itemID string) (decision, status string, err error) {
	var res struct {
		Decision string `json:"decision"`
		Status   string `json:"status"`
	}
	err = c.invoke(ctx, "mission.notify", map[string]string{"itemId": itemID}, &res)
	return res.Decision, res.Status, err
}

// Duplicate runs a duplication synchronously, bypassing admission and
// quota. An empty languages slice means the daemon's configured targets.
func (c *Client) Duplicate(ctx context.Context, itemID string, languages []string) (*Status, error) {
	var res Status
	params := map[string]any{"itemId": itemID}
	if len(languages) > 0 {
		params["languages"] = languages
	}
	if err := c.invoke(ctx, "mission.duplicate", params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// MissionStatus fetches the mission record for an item.
func (c *Client) MissionStatus(ctx context.Context, itemID string) (*Status, error) {
	var res Status
	if err := c.invoke(ctx, "mission.status", map[string]string{"itemId": itemID}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Abort raises the global abort flag.
func (c *Client) Abort(ctx context.Context) error {
	return c.invoke(ctx, "mission.abort", nil, nil)
}

// Reset clears the abort flag, the failure counter and a wedged breaker.
func (c *Client) Reset(ctx context.Context) error {
	return c.invoke(ctx, "mission.reset", nil, nil)
}

// Log fetches the newest n mission log lines.
func (c *Client) Log(ctx context.Context, n int) ([]string, error) {
	var res struct {
		Lines []string `json:"lines"`
	}
	params := map[string]int{}
	if n > 0 {
		params["lines"] = n
	}
	if err := c.invoke(ctx, "mission.log", params, &res); err != nil {
		return nil, err
	}
	return res.Lines, nil
}

// DaemonStatus is the aggregate health banner reported by system.status.
type DaemonStatus struct {
	Health        string `json:"health"`
	DailyCount    int    `json:"dailyCount"`
	DailyLimit    int    `json:"dailyLimit"`
	FailureCount  int    `json:"failureCount"`
	BreakerHolder string `json:"breakerHolder,omitempty"`
	AbortFlag     bool   `json:"abortFlag"`
	EmergencyStop bool   `json:"emergencyStop"`
}

// Status fetches the daemon-wide health banner.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	var res DaemonStatus
	if err := c.invoke(ctx, "system.status", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Version reports the daemon version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var res struct {
		Version string `json:"version"`
	}
	if err := c.invoke(ctx, "system.getVersion", nil, &res); err != nil {
		return "", err
	}
	return res.Version, nil
}

// Stop asks the daemon to shut down.
func (c *Client) Stop(ctx context.Context) error {
	return c.invoke(ctx, "system.stop", nil, nil)
}
