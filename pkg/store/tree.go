package store

import (
	"encoding/json"

	"github.com/OFFIS-RIT/netswatch/pkg/logger"
)

// Response is the envelope of a v2 keys read, e.g.
//
//	{"action": "get", "node": {"key": "/netswatch/network/subnets", "dir": true, "nodes": [...]}}
type Response struct {
	Action string    `json:"action"`
	Node   *TreeNode `json:"node"`
}

// TreeNode is one entry of the hierarchical response. Directories carry
// Nodes, leaves carry Value. Nodes stays nil when the field is absent, which
// is how an empty directory and a missing listing are told apart.
type TreeNode struct {
	Key           string     `json:"key"`
	Value         string     `json:"value,omitempty"`
	Dir           bool       `json:"dir,omitempty"`
	Nodes         []TreeNode `json:"nodes"`
	CreatedIndex  uint64     `json:"createdIndex,omitempty"`
	ModifiedIndex uint64     `json:"modifiedIndex,omitempty"`
}

// Leaf is a terminal key/value record flattened out of a tree.
type Leaf struct {
	Key   string
	Value string
}

// ParseResponse decodes a raw response body. A body that is not JSON, or
// that has no top-level "node", is a *MalformedPayloadError.
func ParseResponse(body []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &MalformedPayloadError{Reason: "body is not a JSON tree", Err: err}
	}
	if resp.Node == nil {
		return nil, &MalformedPayloadError{Reason: `missing top-level "node"`}
	}
	return &resp, nil
}

// HasChildren reports whether the root carries a "nodes" field at all,
// including an empty one.
func (r *Response) HasChildren() bool {
	return r != nil && r.Node != nil && r.Node.Nodes != nil
}

// Children returns the root's direct children in response order.
func (r *Response) Children() []TreeNode {
	if r == nil || r.Node == nil {
		return nil
	}
	return r.Node.Nodes
}

// Leaves flattens the single-level layout where leaves sit directly under
// the root. A missing "nodes" yields an empty slice.
func (r *Response) Leaves() []Leaf {
	children := r.Children()
	leaves := make([]Leaf, 0, len(children))
	for _, child := range children {
		leaves = append(leaves, Leaf{Key: child.Key, Value: child.Value})
	}
	return leaves
}

// NestedLeaves flattens the two-level layout (organization directory, then
// one leaf per IP). A child without its own "nodes" is logged and skipped.
func (r *Response) NestedLeaves(log *logger.Logger) []Leaf {
	var leaves []Leaf
	for _, child := range r.Children() {
		if child.Nodes == nil {
			log.Error("[Store] Child has no nested nodes, skipping", "key", child.Key)
			continue
		}
		for _, leaf := range child.Nodes {
			leaves = append(leaves, Leaf{Key: leaf.Key, Value: leaf.Value})
		}
	}
	if leaves == nil {
		leaves = []Leaf{}
	}
	return leaves
}
