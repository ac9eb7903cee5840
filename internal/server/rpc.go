// Package server exposes the daemon's JSON-RPC 2.0 endpoint over HTTP. The
// automation platform posts mission.notify here; the operator CLI talks to
// the rest of the methods. Every request must carry the bearer token.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/onwardseo/missiond/internal/admission"
	"github.com/onwardseo/missiond/internal/breaker"
	"github.com/onwardseo/missiond/internal/content"
	"github.com/onwardseo/missiond/internal/executor"
	"github.com/onwardseo/missiond/internal/mission"
	"github.com/onwardseo/missiond/internal/mlog"
	"github.com/onwardseo/missiond/internal/quota"
	"github.com/onwardseo/missiond/internal/retry"
	"github.com/onwardseo/missiond/internal/store"
)

// Custom JSON-RPC error codes for mission operations.
const (
	codeItemNotFound  = jrpc2.Code(-32001)
	codeEmergencyStop = jrpc2.Code(-32002)
	codeInvalidParams = jrpc2.Code(-32602)
)

// RPCConfig holds configuration for the JSON-RPC endpoint.
type RPCConfig struct {
	Secret        string // Auth token (required -- empty means RPC disabled)
	CallerSalt    string // HMAC key for caller address hashing
	Version       string // Daemon version
	EmergencyStop bool   // Refuse admission and execution, keep queries up
}

// RPCServer manages the JSON-RPC 2.0 bridge and method handlers.
type RPCServer struct {
	bridge    jhttp.Bridge
	secret    string
	salt      string
	version   string
	emergency bool

	items   content.Store
	gate    *admission.Gate
	records *mission.Records
	exec    *executor.Executor
	brk     *breaker.Breaker
	ledger  *quota.Ledger
	policy  *retry.Policy
	flags   *store.Store
	log     *mlog.Log
	stop    func()
}

// NotifyParams is the input for mission.notify.
type NotifyParams struct {
	ItemID string `json:"itemId"`
}

// NotifyResult is the response for mission.notify.
type NotifyResult struct {
	Decision string `json:"decision"`
	Status   string `json:"status,omitempty"`
}

// ItemParam is a common input with just an item id.
type ItemParam struct {
	ItemID string `json:"itemId"`
}

// DuplicateParams is the input for mission.duplicate.
type DuplicateParams struct {
	ItemID    string   `json:"itemId"`
	Languages []string `json:"languages,omitempty"`
}

// StatusResult is the response for mission.status.
type StatusResult struct {
	ItemID      string           `json:"itemId"`
	Status      string           `json:"status"`
	Title       string           `json:"title,omitempty"`
	Results     []mission.Result `json:"results,omitempty"`
	Error       string           `json:"error,omitempty"`
	CompletedAt string           `json:"completedAt,omitempty"`
}

// LogParams is the input for mission.log.
type LogParams struct {
	Lines int `json:"lines,omitempty"`
}

// LogResult is the response for mission.log.
type LogResult struct {
	Lines []string `json:"lines"`
}

// VersionResult is the response for system.getVersion.
type VersionResult struct {
	Version string `json:"version"`
}

// EmptyResult is a placeholder for methods that return no data.
type EmptyResult struct{}

// DaemonStatusResult is the response for system.status: the aggregate
// health banner an operator watches.
type DaemonStatusResult struct {
	Health        string `json:"health"` // NOMINAL or WARNINGS
	DailyCount    int    `json:"dailyCount"`
	DailyLimit    int    `json:"dailyLimit"`
	FailureCount  int    `json:"failureCount"`
	BreakerHolder string `json:"breakerHolder,omitempty"`
	AbortFlag     bool   `json:"abortFlag"`
	EmergencyStop bool   `json:"emergencyStop"`
}

// NewRPCServer creates a new RPCServer with method handlers and HTTP bridge.
// The stop callback shuts down the daemon when system.stop is called.
func NewRPCServer(cfg *RPCConfig, items content.Store, gate *admission.Gate,
	records *mission.Records, exec *executor.Executor, brk *breaker.Breaker,
	ledger *quota.Ledger, policy *retry.Policy, flags *store.Store,
	log *mlog.Log, stop func()) *RPCServer {
	rs := &RPCServer{
		secret:    cfg.Secret,
		salt:      cfg.CallerSalt,
		version:   cfg.Version,
		emergency: cfg.EmergencyStop,
		items:     items,
		gate:      gate,
		records:   records,
		exec:      exec,
		brk:       brk,
		ledger:    ledger,
		policy:    policy,
		flags:     flags,
		log:       log,
		stop:      stop,
	}

	methods := handler.Map{
		"system.getVersion": handler.New(rs.systemGetVersion),
		"system.status":     handler.New(rs.systemStatus),
		"system.stop":       handler.New(rs.systemStop),
		"mission.notify":    handler.New(rs.missionNotify),
		"mission.duplicate": handler.New(rs.missionDuplicate),
		"mission.status":    handler.New(rs.missionStatus),
		"mission.abort":     handler.New(rs.missionAbort),
		"mission.reset":     handler.New(rs.missionReset),
		"mission.log":       handler.New(rs.missionLog),
	}

	rs.bridge = jhttp.NewBridge(methods, nil)
	return rs
}

func (rs *RPCServer) systemGetVersion(_ context.Context) (*VersionResult, error) {
	return &VersionResult{Version: rs.version}, nil
}

// systemStatus reports the aggregate health signal: daily quota usage,
// outstanding failures, breaker occupancy and the abort flag.
func (rs *RPCServer) systemStatus(ctx context.Context) (*DaemonStatusResult, error) {
	count, err := rs.ledger.Count(ctx, rs.ledger.Today())
	if err != nil {
		return nil, err
	}
	failures, err := rs.policy.FailureCount(ctx)
	if err != nil {
		return nil, err
	}
	holder, err := rs.brk.Holder(ctx)
	if err != nil {
		return nil, err
	}
	aborted, err := rs.flags.AbortFlag(ctx)
	if err != nil {
		return nil, err
	}

	res := &DaemonStatusResult{
		Health:        "NOMINAL",
		DailyCount:    count,
		DailyLimit:    rs.ledger.Max(),
		FailureCount:  failures,
		AbortFlag:     aborted,
		EmergencyStop: rs.emergency,
	}
	if holder != nil {
		res.BreakerHolder = holder.Owner
	}
	if failures > 0 {
		res.Health = "WARNINGS"
	}
	return res, nil
}

func (rs *RPCServer) systemStop(_ context.Context) (*EmptyResult, error) {
	if rs.stop != nil {
		go rs.stop()
	}
	return &EmptyResult{}, nil
}

// missionNotify is the webhook entry point. Caller authenticity is judged
// from the HTTP request the bridge carried in: the automation platform is
// recognized by its user agent or its scenario-id headers.
func (rs *RPCServer) missionNotify(ctx context.Context, p *NotifyParams) (*NotifyResult, error) {
	if p.ItemID == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: itemId"}
	}
	if rs.emergency {
		return nil, &jrpc2.Error{Code: codeEmergencyStop, Message: "emergency stop active"}
	}

	req := admission.Request{ItemID: p.ItemID}
	if hr := jhttp.HTTPRequest(ctx); hr != nil {
		req.Authentic = authenticCaller(hr.UserAgent(), hr.Header)
		req.CallerHash = admission.HashCaller(rs.salt, remoteHost(hr.RemoteAddr))
	}

	out, err := rs.gate.Admit(ctx, req)
	if err != nil {
		if isNotFound(err) {
			return nil, &jrpc2.Error{Code: codeItemNotFound, Message: "item not found: " + p.ItemID}
		}
		return nil, err
	}
	return &NotifyResult{Decision: string(out.Decision), Status: string(out.Status)}, nil
}

// missionDuplicate runs a duplication synchronously for the operator CLI.
// It bypasses admission and quota but goes through the full execution state
// machine, breaker included.
func (rs *RPCServer) missionDuplicate(ctx context.Context, p *DuplicateParams) (*StatusResult, error) {
	if p.ItemID == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: itemId"}
	}
	if rs.emergency {
		return nil, &jrpc2.Error{Code: codeEmergencyStop, Message: "emergency stop active"}
	}
	if _, err := rs.items.Item(ctx, p.ItemID); err != nil {
		if isNotFound(err) {
			return nil, &jrpc2.Error{Code: codeItemNotFound, Message: "item not found: " + p.ItemID}
		}
		return nil, err
	}
	if err := rs.exec.ExecuteManual(ctx, p.ItemID, p.Languages); err != nil {
		return nil, err
	}
	return rs.missionStatus(ctx, &ItemParam{ItemID: p.ItemID})
}

func (rs *RPCServer) missionStatus(ctx context.Context, p *ItemParam) (*StatusResult, error) {
	if p.ItemID == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: itemId"}
	}
	rec, err := rs.records.Load(ctx, p.ItemID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &jrpc2.Error{Code: codeItemNotFound, Message: "no mission record for item: " + p.ItemID}
	}
	res := &StatusResult{
		ItemID:  rec.ItemID,
		Status:  string(rec.Status),
		Title:   rec.Snapshot.Title,
		Results: rec.Results,
		Error:   rec.Error,
	}
	if !rec.CompletedAt.IsZero() {
		res.CompletedAt = rec.CompletedAt.UTC().Format(time.RFC3339)
	}
	return res, nil
}

// missionAbort raises the global abort flag. Missions observe it between
// per-language steps and fail out.
func (rs *RPCServer) missionAbort(ctx context.Context) (*EmptyResult, error) {
	if err := rs.flags.SetAbortFlag(ctx); err != nil {
		return nil, err
	}
	_ = rs.log.Write(mlog.CatAbort, "Abort signal raised by operator")
	return &EmptyResult{}, nil
}

// missionReset clears all transient control state: the abort flag, the
// failure counter and a wedged circuit breaker.
func (rs *RPCServer) missionReset(ctx context.Context) (*EmptyResult, error) {
	if err := rs.flags.ClearAbortFlag(ctx); err != nil {
		return nil, err
	}
	if err := rs.policy.ClearFailures(ctx); err != nil {
		return nil, err
	}
	if err := rs.brk.Release(ctx); err != nil {
		return nil, err
	}
	_ = rs.log.Write(mlog.CatInfo, "Transient control state reset by operator")
	return &EmptyResult{}, nil
}

func (rs *RPCServer) missionLog(_ context.Context, p *LogParams) (*LogResult, error) {
	n := p.Lines
	if n <= 0 {
		n = 50
	}
	lines, err := rs.log.Tail(n)
	if err != nil {
		return nil, err
	}
	return &LogResult{Lines: lines}, nil
}

// Close shuts down the jrpc2 bridge, releasing internal goroutines.
func (rs *RPCServer) Close() {
	rs.bridge.Close()
}

func isNotFound(err error) bool {
	return errors.Is(err, content.ErrNotFound)
}
