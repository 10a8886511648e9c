package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/OFFIS-RIT/netswatch/pkg/graph"
	"github.com/OFFIS-RIT/netswatch/pkg/logger"
	"github.com/OFFIS-RIT/netswatch/pkg/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ErrUnexpectedShape is returned when the subnet namespace has no "nodes"
// listing at all, as opposed to an empty one.
var ErrUnexpectedShape = errors.New("unexpected tree shape")

// Orphan is a node entry whose IP has no subnet entry.
type Orphan struct {
	IP  string `json:"ip"`
	Key string `json:"key"`
}

// Plan is the outcome of comparing both namespaces, before anything is deleted.
type Plan struct {
	SubnetIPs map[string]struct{}
	// NodeKeys maps an IP to the full store key of its node entry.
	NodeKeys map[string]string
	Orphans  []Orphan
}

// FailedDelete is an orphan whose deletion was rejected by the store.
type FailedDelete struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// Report summarises one reconciliation pass.
type Report struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Orphans    []Orphan       `json:"orphans"`
	Deleted    []string       `json:"deleted"`
	Gone       []string       `json:"gone"`
	Failed     []FailedDelete `json:"failed"`
}

// Observer is notified after every pass, successful or not.
type Observer interface {
	ObserveReconcile(report *Report, err error)
}

// Reconciler removes node entries that lost their subnet.
//
// A pass holds no state beyond its own call, so overlapping passes only race
// on deleting the same key, which surfaces as a 404 and is tolerated.
type Reconciler struct {
	store       store.KeyValueStore
	subnetsPath string
	nodesPath   string
	log         *logger.Logger
	observer    Observer
}

// NewReconcilerParams contains configuration for creating a Reconciler.
type NewReconcilerParams struct {
	Store       store.KeyValueStore
	SubnetsPath string
	NodesPath   string
	Logger      *logger.Logger
	Observer    Observer
}

// NewReconciler creates a Reconciler over the two namespaces.
func NewReconciler(params NewReconcilerParams) (*Reconciler, error) {
	if params.Store == nil {
		return nil, errors.New("reconciler needs a store")
	}
	if params.SubnetsPath == "" || params.NodesPath == "" {
		return nil, errors.New("reconciler needs both a subnets and a nodes path")
	}
	return &Reconciler{
		store:       params.Store,
		subnetsPath: params.SubnetsPath,
		nodesPath:   params.NodesPath,
		log:         params.Logger,
		observer:    params.Observer,
	}, nil
}

// Plan reads both namespaces and computes the orphan set without deleting
// anything.
func (r *Reconciler) Plan(ctx context.Context) (*Plan, error) {
	subnetIPs, err := r.loadSubnetIPs(ctx)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		SubnetIPs: subnetIPs,
		NodeKeys:  map[string]string{},
		Orphans:   []Orphan{},
	}

	body, err := r.store.FetchTree(ctx, r.nodesPath)
	if err != nil {
		r.log.Error("[Reconcile] Error while loading nodes", "err", err)
		return nil, fmt.Errorf("failed to load nodes: %w", err)
	}
	resp, err := store.ParseResponse(body)
	if err != nil {
		r.log.Error("[Reconcile] Error while parsing nodes", "err", err)
		return nil, fmt.Errorf("failed to parse nodes: %w", err)
	}
	if len(resp.Children()) == 0 {
		r.log.Debug("[Reconcile] Node namespace is empty", "path", r.nodesPath)
		return plan, nil
	}

	for _, leaf := range resp.NestedLeaves(r.log) {
		ip, err := graph.ExtractIP(leaf.Key)
		if err != nil {
			r.log.Warn("[Reconcile] Node key without IP, ignoring", "key", leaf.Key)
			continue
		}
		plan.NodeKeys[ip] = leaf.Key
	}

	for ip, key := range plan.NodeKeys {
		if _, ok := subnetIPs[ip]; !ok {
			plan.Orphans = append(plan.Orphans, Orphan{IP: ip, Key: key})
		}
	}
	sort.Slice(plan.Orphans, func(i, j int) bool {
		return plan.Orphans[i].IP < plan.Orphans[j].IP
	})

	return plan, nil
}

func (r *Reconciler) loadSubnetIPs(ctx context.Context) (map[string]struct{}, error) {
	body, err := r.store.FetchTree(ctx, r.subnetsPath)
	if err != nil {
		r.log.Error("[Reconcile] Error while loading subnets", "err", err)
		return nil, fmt.Errorf("failed to load subnets: %w", err)
	}
	resp, err := store.ParseResponse(body)
	if err != nil {
		r.log.Error("[Reconcile] Error while parsing subnets", "err", err)
		return nil, fmt.Errorf("failed to parse subnets: %w", err)
	}
	if !resp.HasChildren() {
		r.log.Error("[Reconcile] Key error while processing subnets", "path", r.subnetsPath)
		r.log.Debug("[Reconcile] Subnet payload", "body", string(body))
		return nil, fmt.Errorf("subnets at %s: %w", r.subnetsPath, ErrUnexpectedShape)
	}

	ips := make(map[string]struct{}, len(resp.Children()))
	for _, leaf := range resp.Leaves() {
		ip, err := graph.ExtractIP(leaf.Key)
		if err != nil {
			// Dropping a subnet would turn its node into an orphan.
			r.log.Error("[Reconcile] Subnet key without IP", "key", leaf.Key)
			return nil, fmt.Errorf("failed to read subnet %s: %w", leaf.Key, err)
		}
		ips[ip] = struct{}{}
	}
	return ips, nil
}

// Run performs one reconciliation pass: plan, then one delete per orphan.
// Deletions are independent; a rejected delete is logged and recorded in
// the report without stopping the batch. Nothing is retried.
func (r *Reconciler) Run(ctx context.Context) (*Report, error) {
	runID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create run id: %w", err)
	}
	report := &Report{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		Orphans:   []Orphan{},
		Deleted:   []string{},
		Gone:      []string{},
		Failed:    []FailedDelete{},
	}
	log := r.log.With("run", runID)
	log.Info("[Reconcile] Synchronize nodes and subnets")

	err = r.run(ctx, log, report)
	report.FinishedAt = time.Now().UTC()
	if r.observer != nil {
		r.observer.ObserveReconcile(report, err)
	}
	if err != nil {
		return report, err
	}

	log.Info("[Reconcile] Pass finished",
		"orphans", len(report.Orphans),
		"deleted", len(report.Deleted),
		"gone", len(report.Gone),
		"failed", len(report.Failed),
	)
	return report, nil
}

func (r *Reconciler) run(ctx context.Context, log *logger.Logger, report *Report) error {
	plan, err := r.Plan(ctx)
	if err != nil {
		return err
	}
	report.Orphans = plan.Orphans

	for _, orphan := range plan.Orphans {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Info("[Reconcile] Found orphan node", "key", orphan.Key, "ip", orphan.IP)

		err := r.store.Delete(ctx, orphan.Key)
		switch {
		case err == nil:
			report.Deleted = append(report.Deleted, orphan.Key)
			log.Info("[Reconcile] Orphan node deleted", "key", orphan.Key)
		case store.IsNotFound(err):
			report.Gone = append(report.Gone, orphan.Key)
			log.Warn("[Reconcile] Orphan node already gone", "key", orphan.Key)
		default:
			report.Failed = append(report.Failed, FailedDelete{Key: orphan.Key, Error: err.Error()})
			log.Error("[Reconcile] Error while deleting orphan node", "key", orphan.Key, "err", err)
		}
	}
	return nil
}
