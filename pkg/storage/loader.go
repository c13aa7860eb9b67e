package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"

	"github.com/google/uuid"
)

// Neo4jExport is a combined Neo4j JSON export: one document holding both
// nodes and relationships.
//
//	{
//	  "nodes": [{"id":"0","labels":["Person"],"properties":{"name":"Alice"}}],
//	  "relationships": [{"id":"0","type":"KNOWS","startNode":"0","endNode":"1"}]
//	}
type Neo4jExport struct {
	Nodes         []Neo4jNode         `json:"nodes"`
	Relationships []Neo4jRelationship `json:"relationships"`
}

type Neo4jNode struct {
	ID         string         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
}

// Neo4jNodeRef is the endpoint object used by apoc.export.json.
type Neo4jNodeRef struct {
	ID     string   `json:"id"`
	Labels []string `json:"labels,omitempty"`
}

// Neo4jRelationship accepts both endpoint encodings: flat startNode/endNode
// strings and APOC start/end objects. The APOC form wins when both are set.
type Neo4jRelationship struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`

	StartNode string `json:"startNode,omitempty"`
	EndNode   string `json:"endNode,omitempty"`

	Start Neo4jNodeRef `json:"start,omitempty"`
	End   Neo4jNodeRef `json:"end,omitempty"`
}

// Endpoints returns the start and end node ids of the relationship.
func (r *Neo4jRelationship) Endpoints() (start, end NodeID) {
	start, end = NodeID(r.StartNode), NodeID(r.EndNode)
	if r.Start.ID != "" {
		start = NodeID(r.Start.ID)
	}
	if r.End.ID != "" {
		end = NodeID(r.End.ID)
	}
	return start, end
}

// FromNeo4jExport converts an export into storable nodes and edges.
// Relationships without an id get a random UUID.
func FromNeo4jExport(export *Neo4jExport) ([]*Node, []*Edge) {
	nodes := make([]*Node, 0, len(export.Nodes))
	for _, n := range export.Nodes {
		nodes = append(nodes, &Node{ID: NodeID(n.ID), Labels: n.Labels, Properties: maps.Clone(n.Properties)})
	}

	edges := make([]*Edge, 0, len(export.Relationships))
	for _, r := range export.Relationships {
		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}
		start, end := r.Endpoints()
		edges = append(edges, &Edge{
			ID:         EdgeID(id),
			StartNode:  start,
			EndNode:    end,
			Type:       r.Type,
			Properties: maps.Clone(r.Properties),
		})
	}
	return nodes, edges
}

// DecodeNeo4jExport reads a combined export document.
func DecodeNeo4jExport(r io.Reader) (*Neo4jExport, error) {
	var export Neo4jExport
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}
	return &export, nil
}

// LoadNeo4jExport decodes an export from r and bulk-loads it into engine,
// nodes first. It returns how many nodes and edges were written.
func LoadNeo4jExport(engine Engine, r io.Reader) (int, int, error) {
	export, err := DecodeNeo4jExport(r)
	if err != nil {
		return 0, 0, err
	}

	nodes, edges := FromNeo4jExport(export)
	if err := engine.BulkCreateNodes(nodes); err != nil {
		return 0, 0, fmt.Errorf("failed to load nodes: %w", err)
	}
	if err := engine.BulkCreateEdges(edges); err != nil {
		return len(nodes), 0, fmt.Errorf("failed to load relationships: %w", err)
	}
	return len(nodes), len(edges), nil
}

// LoadFromNeo4jExport is LoadNeo4jExport for a file on disk.
func LoadFromNeo4jExport(engine Engine, path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open export file: %w", err)
	}
	defer f.Close()

	return LoadNeo4jExport(engine, f)
}
