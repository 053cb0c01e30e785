// Package snapshot defines the complete, serializable state of an ER
// diagram: its table/note nodes, relation edges and viewport.
package snapshot

import (
	"encoding/json"
	"reflect"
	"strings"

	appErr "github.com/erdstudio/engine/pkg/errors"
)

// Node kinds.
const (
	KindTable = "table"
	KindNote  = "note"
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Column is one field of a table node.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
	Nullable   bool   `json:"nullable,omitempty"`
	Unique     bool   `json:"unique,omitempty"`
}

type NodeData struct {
	Label   string   `json:"label"`
	Columns []Column `json:"columns,omitempty"`
	Color   string   `json:"color,omitempty"`
	Note    string   `json:"note,omitempty"`
}

type Node struct {
	ID       string   `json:"id"`
	Kind     string   `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Edge is a relation between two nodes. Handles name the columns it binds.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"source_handle,omitempty"`
	TargetHandle string `json:"target_handle,omitempty"`
	Cardinality  string `json:"cardinality,omitempty"`
	Label        string `json:"label,omitempty"`
}

type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Snapshot is the full diagram state at one instant. Snapshots are values:
// holders clone before mutating.
type Snapshot struct {
	Nodes    []Node   `json:"nodes"`
	Edges    []Edge   `json:"edges"`
	Viewport Viewport `json:"viewport"`
}

// Empty returns the state of a new project.
func Empty() *Snapshot {
	return &Snapshot{Nodes: []Node{}, Edges: []Edge{}, Viewport: Viewport{Zoom: 1}}
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		Nodes:    make([]Node, len(s.Nodes)),
		Edges:    make([]Edge, len(s.Edges)),
		Viewport: s.Viewport,
	}
	for i, n := range s.Nodes {
		if n.Data.Columns != nil {
			n.Data.Columns = append([]Column(nil), n.Data.Columns...)
		}
		out.Nodes[i] = n
	}
	copy(out.Edges, s.Edges)
	return out
}

// Equal reports whether both snapshots hold the same nodes and edges by
// value, ignoring order, and the same viewport.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	if len(s.Nodes) != len(o.Nodes) || len(s.Edges) != len(o.Edges) || s.Viewport != o.Viewport {
		return false
	}
	nodes := make(map[string]Node, len(s.Nodes))
	for _, n := range s.Nodes {
		nodes[n.ID] = n
	}
	for _, n := range o.Nodes {
		m, ok := nodes[n.ID]
		if !ok || !nodeEqual(m, n) {
			return false
		}
	}
	edges := make(map[string]Edge, len(s.Edges))
	for _, e := range s.Edges {
		edges[e.ID] = e
	}
	for _, e := range o.Edges {
		if m, ok := edges[e.ID]; !ok || m != e {
			return false
		}
	}
	return true
}

func nodeEqual(a, b Node) bool {
	if len(a.Data.Columns) == 0 && len(b.Data.Columns) == 0 {
		a.Data.Columns, b.Data.Columns = nil, nil
	}
	return reflect.DeepEqual(a, b)
}

// NodeIndex returns the position of node id, or -1.
func (s *Snapshot) NodeIndex(id string) int {
	for i := range s.Nodes {
		if s.Nodes[i].ID == id {
			return i
		}
	}
	return -1
}

// EdgeIndex returns the position of edge id, or -1.
func (s *Snapshot) EdgeIndex(id string) int {
	for i := range s.Edges {
		if s.Edges[i].ID == id {
			return i
		}
	}
	return -1
}

// Validate checks id uniqueness and that every edge joins existing nodes.
func (s *Snapshot) Validate() error {
	ids := make(map[string]bool, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.ID == "" {
			return appErr.New(appErr.CodeInvalid, "node id is required")
		}
		if ids[n.ID] {
			return appErr.Newf(appErr.CodeInvalid, "duplicate node id %q", n.ID)
		}
		ids[n.ID] = true
	}
	seen := make(map[string]bool, len(s.Edges))
	for _, e := range s.Edges {
		if e.ID == "" {
			return appErr.New(appErr.CodeInvalid, "edge id is required")
		}
		if seen[e.ID] {
			return appErr.Newf(appErr.CodeInvalid, "duplicate edge id %q", e.ID)
		}
		seen[e.ID] = true
		if !ids[e.Source] || !ids[e.Target] {
			return appErr.Newf(appErr.CodeInvalid, "edge %q references a missing node", e.ID)
		}
	}
	return nil
}

// Marshal serializes the snapshot into the opaque form stored by the ledger.
func (s *Snapshot) Marshal() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeInternal, "marshal snapshot")
	}
	return string(b), nil
}

// Parse decodes stored project data. Blank data is a new project.
func Parse(data string) (*Snapshot, error) {
	if strings.TrimSpace(data) == "" {
		return Empty(), nil
	}
	var s Snapshot
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "malformed snapshot data")
	}
	if s.Nodes == nil {
		s.Nodes = []Node{}
	}
	if s.Edges == nil {
		s.Edges = []Edge{}
	}
	if s.Viewport.Zoom == 0 {
		s.Viewport.Zoom = 1
	}
	return &s, nil
}
