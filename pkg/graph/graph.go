package graph

import (
	"fmt"

	"github.com/OFFIS-RIT/netswatch/pkg/common"
)

const (
	routerSize       = 20
	routerBackground = "#1982C4"
	routerBorder     = "#8AC926"
	routerShape      = "square"

	meshEdgeWidth = 1
	meshScaleMin  = 1
	meshScaleMax  = 6
)

var internalBorderDashes = []int{5, 5}

// BuildGraph turns decoded nodes into the document served to the front end.
func BuildGraph(raw []common.RawNode) common.Topology {
	return common.Topology{
		Nodes: GenerateNodes(raw),
		Edges: GenerateEdges(raw),
		Info:  Summarize(raw),
	}
}

// GenerateNodes projects every RawNode to a GraphNode, styled by its type.
func GenerateNodes(raw []common.RawNode) []common.GraphNode {
	nodes := make([]common.GraphNode, 0, len(raw))
	for _, r := range raw {
		node := common.GraphNode{
			ID:       r.ID,
			Label:    r.Meta.Hostname,
			Group:    r.Group,
			Title:    fmt.Sprintf("<h4>Hostname: %s</h4><h4>Host IP: %s</h4><h4>Net: %s</h4>", r.Meta.Hostname, r.Meta.HostIP, r.IP),
			HostIP:   r.Meta.HostIP,
			Location: r.Org,
			Hostname: r.Meta.Hostname,
			Net:      r.IP,
			NodeType: r.NodeType,
		}

		switch r.NodeType {
		case common.NodeTypeRouter:
			node.Size = routerSize
			node.Color = &common.NodeColor{
				Background: routerBackground,
				Border:     routerBorder,
			}
			node.Label = fmt.Sprintf("%s(%s)", r.Org, r.IP)
			node.Shape = routerShape
		case common.NodeTypeInternal:
			dashes := make([]int, len(internalBorderDashes))
			copy(dashes, internalBorderDashes)
			node.ShapeProperties = &common.ShapeProperties{BorderDashes: dashes}
		}

		nodes = append(nodes, node)
	}
	return nodes
}

// Routers returns the router nodes in input order.
func Routers(raw []common.RawNode) []common.RawNode {
	var routers []common.RawNode
	for _, r := range raw {
		if r.IsRouter() {
			routers = append(routers, r)
		}
	}
	return routers
}

// GenerateEdges links every non-router node to its organization's router
// and fully meshes the routers, one edge per unordered router pair.
func GenerateEdges(raw []common.RawNode) []common.GraphEdge {
	edges := []common.GraphEdge{}
	routers := Routers(raw)

	for _, rt := range routers {
		for _, n := range raw {
			if n.IsRouter() {
				continue
			}
			if n.Org == rt.Org {
				edges = append(edges, common.GraphEdge{From: n.ID, To: rt.ID})
			}
		}
	}

	routerIDs := make([]int, 0, len(routers))
	for _, rt := range routers {
		routerIDs = append(routerIDs, rt.ID)
	}
	for _, p := range DedupePairs(Permutations(routerIDs)) {
		if p.A == p.B {
			continue
		}
		edges = append(edges, common.GraphEdge{
			From:  p.A,
			To:    p.B,
			Value: meshEdgeWidth,
			Scaling: &common.EdgeScaling{
				Min: meshScaleMin,
				Max: meshScaleMax,
			},
		})
	}
	return edges
}

// Summarize counts nodes by type in one pass. Any type other than router or
// node is counted as internal.
func Summarize(raw []common.RawNode) common.Summary {
	s := common.Summary{Total: len(raw)}
	for _, r := range raw {
		switch r.NodeType {
		case common.NodeTypeRouter:
			s.Router++
		case common.NodeTypeNode:
			s.Node++
		default:
			s.Internal++
		}
	}
	return s
}
