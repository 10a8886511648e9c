package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/OFFIS-RIT/netswatch/pkg/common"
	"github.com/OFFIS-RIT/netswatch/pkg/store"
)

// Layout selects how leaves of a namespace are decoded. It is chosen by the
// namespace being read, never by looking at the data.
type Layout int

const (
	// LayoutFlat: leaves sit directly under the namespace, the key embeds the
	// IP and the value carries a Meta block.
	LayoutFlat Layout = iota
	// LayoutNested: leaves sit under one directory per organization and the
	// key ends in <org>/<ip>.
	LayoutNested
)

func (l Layout) String() string {
	switch l {
	case LayoutFlat:
		return "flat"
	case LayoutNested:
		return "nested"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// ParseLayout converts the configuration value into a Layout.
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "flat":
		return LayoutFlat, nil
	case "nested":
		return LayoutNested, nil
	default:
		return 0, fmt.Errorf("unknown topology layout %q", s)
	}
}

// ErrPatternNotFound is returned when no IPv4 address occurs in a text that
// must contain one.
var ErrPatternNotFound = errors.New("no IPv4 address found")

// DecodeError reports a single leaf that could not be turned into a node.
// Callers skip the leaf and continue with the rest.
type DecodeError struct {
	Key    string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot decode %s: %s: %v", e.Key, e.Reason, e.Err)
	}
	return fmt.Sprintf("cannot decode %s: %s", e.Key, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var ipv4Pattern = regexp.MustCompile(`((25[0-5]|2[0-4][0-9]|[0-1]?[0-9][0-9]?)\.){3}(25[0-5]|2[0-4][0-9]|[0-1]?[0-9][0-9]?)`)

// ExtractIP returns the first IPv4-shaped substring of text, e.g.
// "/netswatch/network/subnets/10.14.192.0-20" -> "10.14.192.0".
func ExtractIP(text string) (string, error) {
	ip := ipv4Pattern.FindString(text)
	if ip == "" {
		return "", fmt.Errorf("%w in %q", ErrPatternNotFound, text)
	}
	return ip, nil
}

// Extract decodes leaf according to layout.
func Extract(layout Layout, leaf store.Leaf) (common.NodeDescriptor, error) {
	switch layout {
	case LayoutFlat:
		return ExtractFlat(leaf)
	case LayoutNested:
		return ExtractNested(leaf)
	default:
		return nil, fmt.Errorf("unsupported layout %s", layout)
	}
}

type flatValue struct {
	Meta *struct {
		OrgName  *string `json:"OrgName"`
		NodeType *string `json:"NodeType"`
		NodeName *string `json:"NodeName"`
		HostIP   *string `json:"HostIP"`
	} `json:"Meta"`
}

// ExtractFlat decodes a leaf of the flat layout, e.g.
//
//	key:   /netswatch/network/subnets/10.14.128.0-20
//	value: {"Meta": {"OrgName": "telecom", "NodeType": "router", "NodeName": "gw-1", "HostIP": "192.168.1.10"}}
func ExtractFlat(leaf store.Leaf) (common.FlatDescriptor, error) {
	ip, err := ExtractIP(leaf.Key)
	if err != nil {
		return common.FlatDescriptor{}, err
	}

	var v flatValue
	if err := json.Unmarshal([]byte(leaf.Value), &v); err != nil {
		return common.FlatDescriptor{}, &DecodeError{Key: leaf.Key, Reason: "value is not JSON", Err: err}
	}
	if v.Meta == nil {
		return common.FlatDescriptor{}, &DecodeError{Key: leaf.Key, Reason: "missing Meta"}
	}
	m := v.Meta
	switch {
	case m.OrgName == nil:
		return common.FlatDescriptor{}, &DecodeError{Key: leaf.Key, Reason: "missing Meta.OrgName"}
	case m.NodeType == nil:
		return common.FlatDescriptor{}, &DecodeError{Key: leaf.Key, Reason: "missing Meta.NodeType"}
	case m.NodeName == nil:
		return common.FlatDescriptor{}, &DecodeError{Key: leaf.Key, Reason: "missing Meta.NodeName"}
	case m.HostIP == nil:
		return common.FlatDescriptor{}, &DecodeError{Key: leaf.Key, Reason: "missing Meta.HostIP"}
	}

	return common.FlatDescriptor{
		Key: leaf.Key,
		Descriptor: common.Descriptor{
			Org:      *m.OrgName,
			IP:       ip,
			NodeType: common.NodeType(*m.NodeType),
			Meta: common.NodeMeta{
				Hostname: *m.NodeName,
				HostIP:   *m.HostIP,
			},
		},
	}, nil
}

type nestedValue struct {
	NodeType *string `json:"node_type"`
	Meta     *struct {
		Hostname *string `json:"hostname"`
		HostIP   *string `json:"host_ip"`
	} `json:"meta"`
}

// ExtractNested decodes a leaf of the org/ip layout, e.g.
//
//	key:   /netswatch/network/nodes/telecom/10.15.224.0
//	value: {"node_type": "node", "meta": {"hostname": "edge-3", "host_ip": "192.168.7.3"}}
func ExtractNested(leaf store.Leaf) (common.NestedDescriptor, error) {
	segments := strings.Split(strings.Trim(leaf.Key, "/"), "/")
	if len(segments) < 2 {
		return common.NestedDescriptor{}, &DecodeError{Key: leaf.Key, Reason: "key has no <org>/<ip> suffix"}
	}
	org := segments[len(segments)-2]
	ip, err := ExtractIP(segments[len(segments)-1])
	if err != nil {
		return common.NestedDescriptor{}, err
	}
	if org == "" {
		return common.NestedDescriptor{}, &DecodeError{Key: leaf.Key, Reason: "empty organization segment"}
	}

	var v nestedValue
	if err := json.Unmarshal([]byte(leaf.Value), &v); err != nil {
		return common.NestedDescriptor{}, &DecodeError{Key: leaf.Key, Reason: "value is not JSON", Err: err}
	}
	switch {
	case v.NodeType == nil:
		return common.NestedDescriptor{}, &DecodeError{Key: leaf.Key, Reason: "missing node_type"}
	case v.Meta == nil:
		return common.NestedDescriptor{}, &DecodeError{Key: leaf.Key, Reason: "missing meta"}
	case v.Meta.Hostname == nil:
		return common.NestedDescriptor{}, &DecodeError{Key: leaf.Key, Reason: "missing meta.hostname"}
	case v.Meta.HostIP == nil:
		return common.NestedDescriptor{}, &DecodeError{Key: leaf.Key, Reason: "missing meta.host_ip"}
	}

	return common.NestedDescriptor{
		Key: leaf.Key,
		Descriptor: common.Descriptor{
			Org:      org,
			IP:       ip,
			NodeType: common.NodeType(*v.NodeType),
			Meta: common.NodeMeta{
				Hostname: *v.Meta.Hostname,
				HostIP:   *v.Meta.HostIP,
			},
		},
	}, nil
}
