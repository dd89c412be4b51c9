// Package scene loads node/connection documents and keeps them in an
// in-memory registry the engine reads from.
package scene

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/msalah0e/ripple/internal/energy"
)

// DefaultViewer is used for nodes that do not name one.
const DefaultViewer energy.ViewerID = "main"

//go:embed scene.schema.json
var schemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("scene.schema.json", schemaJSON)
	})
	return schema, schemaErr
}

// Doc is the on-disk scene format.
type Doc struct {
	Name        string          `yaml:"name" json:"name"`
	Description string          `yaml:"description,omitempty" json:"description,omitempty"`
	Nodes       []NodeDoc       `yaml:"nodes" json:"nodes"`
	Connections []ConnectionDoc `yaml:"connections,omitempty" json:"connections,omitempty"`
}

// NodeDoc describes one node. An empty activation means activated.
type NodeDoc struct {
	ID         string   `yaml:"id" json:"id"`
	Viewer     string   `yaml:"viewer,omitempty" json:"viewer,omitempty"`
	X          float64  `yaml:"x" json:"x"`
	Y          float64  `yaml:"y" json:"y"`
	Activation string   `yaml:"activation,omitempty" json:"activation,omitempty"`
	Energy     []string `yaml:"energy,omitempty" json:"energy,omitempty"`
}

// ConnectionDoc describes one explicit link. An empty id becomes "from-to".
type ConnectionDoc struct {
	ID          string `yaml:"id,omitempty" json:"id,omitempty"`
	From        string `yaml:"from" json:"from"`
	To          string `yaml:"to" json:"to"`
	Directional bool   `yaml:"directional,omitempty" json:"directional,omitempty"`
}

// Validate checks raw YAML against the scene schema.
func Validate(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("yaml: %w", err)
	}
	// The validator wants JSON-shaped values.
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("yaml to json: %w", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}

	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile scene schema: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

// Parse validates and decodes a scene document.
func Parse(data []byte) (*Doc, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var d Doc
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	return &d, nil
}

// LoadFile reads and parses a scene from disk.
func LoadFile(p string) (*Doc, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return d, nil
}

// LoadFromFS loads every .yaml file in dir, sorted by scene name.
func LoadFromFS(fsys fs.FS, dir string) ([]*Doc, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading embedded scenes: %w", err)
	}

	var docs []*Doc
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		d, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", entry.Name(), err)
		}
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

// Find returns the scene called name.
func Find(docs []*Doc, name string) (*Doc, bool) {
	for _, d := range docs {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// Build turns the document into a populated registry.
func (d *Doc) Build() (*Registry, error) {
	reg := NewRegistry()
	for _, nd := range d.Nodes {
		n, err := nd.node()
		if err != nil {
			return nil, err
		}
		if err := reg.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, cd := range d.Connections {
		if err := reg.Connect(cd.connection()); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (nd NodeDoc) node() (energy.Node, error) {
	n := energy.Node{
		ID:         energy.NodeID(nd.ID),
		Viewer:     energy.ViewerID(nd.Viewer),
		X:          nd.X,
		Y:          nd.Y,
		Activation: energy.Activated,
	}
	if n.Viewer == "" {
		n.Viewer = DefaultViewer
	}
	if nd.Activation != "" {
		a, err := energy.ParseActivation(nd.Activation)
		if err != nil {
			return n, fmt.Errorf("node %s: %w", nd.ID, err)
		}
		n.Activation = a
	}
	for _, s := range nd.Energy {
		et, err := energy.ParseEnergyType(s)
		if err != nil {
			return n, fmt.Errorf("node %s: %w", nd.ID, err)
		}
		n.Types = append(n.Types, et)
	}
	return n, nil
}

func (cd ConnectionDoc) connection() energy.Connection {
	id := cd.ID
	if id == "" {
		id = cd.From + "-" + cd.To
	}
	return energy.Connection{
		ID:          energy.ConnectionID(id),
		A:           energy.NodeID(cd.From),
		B:           energy.NodeID(cd.To),
		Directional: cd.Directional,
	}
}

// FromRegistry captures the registry's current state as a document.
func FromRegistry(name string, r *Registry) *Doc {
	d := &Doc{Name: name}
	for _, v := range r.Viewers() {
		for _, n := range r.NodesForViewer(v) {
			nd := NodeDoc{
				ID:         string(n.ID),
				Viewer:     string(n.Viewer),
				X:          n.X,
				Y:          n.Y,
				Activation: n.Activation.String(),
			}
			for _, et := range n.Types {
				nd.Energy = append(nd.Energy, string(et))
			}
			d.Nodes = append(d.Nodes, nd)
		}
		for _, c := range r.ConnectionsForViewer(v) {
			d.Connections = append(d.Connections, ConnectionDoc{
				ID:          string(c.ID),
				From:        string(c.A),
				To:          string(c.B),
				Directional: c.Directional,
			})
		}
	}
	return d
}

// Encode writes the document as YAML.
func (d *Doc) Encode() ([]byte, error) {
	return yaml.Marshal(d)
}
