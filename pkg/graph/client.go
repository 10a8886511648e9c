package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/netswatch/pkg/common"
	"github.com/OFFIS-RIT/netswatch/pkg/logger"
	"github.com/OFFIS-RIT/netswatch/pkg/store"
)

// BuildObserver is notified once per topology build.
type BuildObserver interface {
	ObserveTopologyBuild(status string, info common.Summary, d time.Duration)
}

// GraphClient reads one namespace of the store and turns it into a topology.
//
// A GraphClient should be created using NewGraphClient. It holds no state
// between calls and is safe for concurrent use.
type GraphClient struct {
	store     store.KeyValueStore
	namespace string
	layout    Layout
	log       *logger.Logger
	observer  BuildObserver
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// Namespace is the store path that holds the nodes, Layout tells how its
// leaves are decoded.
type NewGraphClientParams struct {
	Store     store.KeyValueStore
	Namespace string
	Layout    Layout
	Logger    *logger.Logger
	Observer  BuildObserver
}

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters.
//
// Example:
//
//	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
//		Store:     etcdClient,
//		Namespace: "netswatch/network/subnets",
//		Layout:    graph.LayoutFlat,
//	})
func NewGraphClient(params NewGraphClientParams) (*GraphClient, error) {
	if params.Store == nil {
		return nil, errors.New("graph client needs a store")
	}
	if params.Namespace == "" {
		return nil, errors.New("graph client needs a namespace")
	}
	return &GraphClient{
		store:     params.Store,
		namespace: params.Namespace,
		layout:    params.Layout,
		log:       params.Logger,
		observer:  params.Observer,
	}, nil
}

// Topology loads the namespace and builds the graph document. When loading
// fails the error is logged and returned together with an empty document.
func (g *GraphClient) Topology(ctx context.Context) (common.Topology, error) {
	start := time.Now()

	raw, err := g.LoadNodes(ctx)
	if err != nil {
		g.log.Error("[Topology] Error loading nodes", "namespace", g.namespace, "err", err)
		g.observe("error", common.Summary{}, time.Since(start))
		return common.EmptyTopology(), err
	}

	topo := BuildGraph(raw)
	g.log.Debug("[Topology] Built graph", "nodes", len(topo.Nodes), "edges", len(topo.Edges))
	g.observe("ok", topo.Info, time.Since(start))
	return topo, nil
}

// LoadNodes fetches, parses and decodes the namespace into RawNodes with ids
// and groups assigned. Leaves that fail to decode are logged and skipped. A
// leaf without an IP aborts the load, the IP has no other source.
func (g *GraphClient) LoadNodes(ctx context.Context) ([]common.RawNode, error) {
	body, err := g.store.FetchTree(ctx, g.namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", g.namespace, err)
	}

	resp, err := store.ParseResponse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", g.namespace, err)
	}

	var leaves []store.Leaf
	switch g.layout {
	case LayoutNested:
		leaves = resp.NestedLeaves(g.log)
	default:
		leaves = resp.Leaves()
	}

	descriptors := make([]common.NodeDescriptor, 0, len(leaves))
	for _, leaf := range leaves {
		d, err := Extract(g.layout, leaf)
		if err != nil {
			var decodeErr *DecodeError
			if errors.As(err, &decodeErr) {
				g.log.Warn("[Topology] Skipping undecodable entry", "key", leaf.Key, "err", err)
				continue
			}
			return nil, fmt.Errorf("failed to extract %s: %w", leaf.Key, err)
		}
		descriptors = append(descriptors, d)
	}

	return AssignIDs(descriptors), nil
}

func (g *GraphClient) observe(status string, info common.Summary, d time.Duration) {
	if g.observer != nil {
		g.observer.ObserveTopologyBuild(status, info, d)
	}
}

// AssignIDs numbers descriptors 1..N in order and gives every organization
// a group number the first time it appears.
func AssignIDs(descriptors []common.NodeDescriptor) []common.RawNode {
	raw := make([]common.RawNode, 0, len(descriptors))
	groups := make(map[string]int)
	for i, nd := range descriptors {
		d := nd.Describe()
		grp, ok := groups[d.Org]
		if !ok {
			grp = len(groups) + 1
			groups[d.Org] = grp
		}
		raw = append(raw, common.RawNode{
			ID:       i + 1,
			IP:       d.IP,
			Org:      d.Org,
			Group:    grp,
			NodeType: d.NodeType,
			Meta:     d.Meta,
		})
	}
	return raw
}
