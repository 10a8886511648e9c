// Package storetest provides an in-memory store.KeyValueStore for tests.
package storetest

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/OFFIS-RIT/netswatch/pkg/store"
)

// Fake serves canned tree bodies per namespace and records deletions.
type Fake struct {
	mu sync.Mutex

	Bodies     map[string][]byte
	FetchErrs  map[string]error
	DeleteErrs map[string]error

	fetches []string
	deletes []string
}

var _ store.KeyValueStore = (*Fake)(nil)

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{
		Bodies:     map[string][]byte{},
		FetchErrs:  map[string]error{},
		DeleteErrs: map[string]error{},
	}
}

// Seed sets the body returned for namespace.
func (f *Fake) Seed(namespace string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Bodies[clean(namespace)] = body
}

func (f *Fake) FetchTree(_ context.Context, apiPath string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ns := clean(apiPath)
	f.fetches = append(f.fetches, ns)
	if err, ok := f.FetchErrs[ns]; ok {
		return nil, err
	}
	body, ok := f.Bodies[ns]
	if !ok {
		return nil, &store.HTTPStatusError{Op: http.MethodGet, URL: ns, StatusCode: http.StatusNotFound, Body: "Key not found"}
	}
	return body, nil
}

func (f *Fake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, key)
	if err, ok := f.DeleteErrs[key]; ok {
		return err
	}
	return nil
}

// Deletes returns the keys passed to Delete, in call order.
func (f *Fake) Deletes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes...)
}

// Fetches returns the namespaces passed to FetchTree, in call order.
func (f *Fake) Fetches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetches...)
}

// Reset forgets recorded calls but keeps seeded data.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = nil
	f.deletes = nil
}

func clean(p string) string {
	return strings.Trim(p, "/")
}

// Dir is one organization directory of a nested tree.
type Dir struct {
	Key    string
	Leaves []store.Leaf
}

// FlatTree renders a response body with leaves directly under namespace.
func FlatTree(namespace string, leaves ...store.Leaf) []byte {
	root := store.TreeNode{Key: "/" + clean(namespace), Dir: true, Nodes: []store.TreeNode{}}
	for i, l := range leaves {
		root.Nodes = append(root.Nodes, store.TreeNode{Key: l.Key, Value: l.Value, CreatedIndex: uint64(i + 1), ModifiedIndex: uint64(i + 1)})
	}
	return mustMarshal(store.Response{Action: "get", Node: &root})
}

// NestedTree renders a response body with one directory per organization.
func NestedTree(namespace string, dirs ...Dir) []byte {
	root := store.TreeNode{Key: "/" + clean(namespace), Dir: true, Nodes: []store.TreeNode{}}
	for _, d := range dirs {
		dir := store.TreeNode{Key: d.Key, Dir: true, Nodes: []store.TreeNode{}}
		for _, l := range d.Leaves {
			dir.Nodes = append(dir.Nodes, store.TreeNode{Key: l.Key, Value: l.Value})
		}
		root.Nodes = append(root.Nodes, dir)
	}
	return mustMarshal(store.Response{Action: "get", Node: &root})
}

// EmptyTree renders a namespace without a "nodes" field.
func EmptyTree(namespace string) []byte {
	return mustMarshal(store.Response{Action: "get", Node: &store.TreeNode{Key: "/" + clean(namespace), Dir: true}})
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
