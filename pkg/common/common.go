package common

// NodeType classifies a host in the overlay network. Only "router" and
// "node" get dedicated handling; anything else is treated as internal.
type NodeType string

const (
	NodeTypeRouter   NodeType = "router"
	NodeTypeInternal NodeType = "internal"
	NodeTypeNode     NodeType = "node"
)

// NodeMeta is the host information shown in tooltips.
type NodeMeta struct {
	Hostname string `json:"hostname"`
	HostIP   string `json:"host_ip"`
}

// RawNode is a decoded store entry with its build-local identifiers.
//
// ID is assigned 1..N in the order entries were read. Group is assigned per
// organization the first time that organization is seen.
type RawNode struct {
	ID       int      `json:"id"`
	IP       string   `json:"ip"`
	Org      string   `json:"org"`
	Group    int      `json:"group"`
	NodeType NodeType `json:"node_type"`
	Meta     NodeMeta `json:"meta"`
}

// IsRouter reports whether the node is its organization's router.
func (n RawNode) IsRouter() bool {
	return n.NodeType == NodeTypeRouter
}

// NodeDescriptor is what a single store leaf decodes to, before ids and
// groups are assigned. The concrete type depends on the key layout of the
// namespace that was read.
type NodeDescriptor interface {
	Describe() Descriptor
}

// Descriptor is the layout-independent content of a NodeDescriptor.
type Descriptor struct {
	Org      string
	IP       string
	NodeType NodeType
	Meta     NodeMeta
}

// FlatDescriptor comes from a flat namespace: the IP is embedded in the key
// and everything else is in the value's Meta block.
type FlatDescriptor struct {
	Key string
	Descriptor
}

func (d FlatDescriptor) Describe() Descriptor { return d.Descriptor }

// NestedDescriptor comes from an org/ip namespace: organization and IP are
// the last two key segments.
type NestedDescriptor struct {
	Key string
	Descriptor
}

func (d NestedDescriptor) Describe() Descriptor { return d.Descriptor }

// Topology is the document served to the front end.
type Topology struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
	Info  Summary     `json:"info"`
}

// GraphNode is the visualization projection of a RawNode.
type GraphNode struct {
	ID       int      `json:"id"`
	Label    string   `json:"label"`
	Group    int      `json:"group"`
	Title    string   `json:"title" jsonschema_description:"HTML tooltip"`
	HostIP   string   `json:"hostip"`
	Location string   `json:"location" jsonschema_description:"Organization name"`
	Hostname string   `json:"hostname"`
	Net      string   `json:"net"`
	NodeType NodeType `json:"nodetype"`

	Size            int              `json:"size,omitempty"`
	Color           *NodeColor       `json:"color,omitempty"`
	Shape           string           `json:"shape,omitempty"`
	ShapeProperties *ShapeProperties `json:"shapeProperties,omitempty"`
}

// NodeColor styles router nodes.
type NodeColor struct {
	Background string `json:"background"`
	Border     string `json:"border"`
}

// ShapeProperties styles internal nodes.
type ShapeProperties struct {
	BorderDashes []int `json:"borderDashes"`
}

// GraphEdge connects two GraphNodes by id. Value and Scaling are only set on
// router mesh edges.
type GraphEdge struct {
	From    int          `json:"from"`
	To      int          `json:"to"`
	Value   int          `json:"value,omitempty"`
	Scaling *EdgeScaling `json:"scaling,omitempty"`
}

// EdgeScaling is the visual width range of an edge.
type EdgeScaling struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Summary counts nodes by type.
type Summary struct {
	Total    int `json:"total"`
	Router   int `json:"router"`
	Node     int `json:"node"`
	Internal int `json:"internal"`
}

// EmptyTopology is returned when nothing could be loaded. Slices are non-nil
// so the document serialises as [] rather than null.
func EmptyTopology() Topology {
	return Topology{Nodes: []GraphNode{}, Edges: []GraphEdge{}}
}
