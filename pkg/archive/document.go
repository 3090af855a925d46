package archive

import (
	"time"

	"github.com/vango-dev/flix/pkg/node"
)

// Version is the current document format version.
const Version = 1

// Document is the JSON form of a snapshot.
type Document struct {
	Version    int          `json:"version"`
	Seq        uint64       `json:"seq,omitempty"`
	Generation uint64       `json:"generation,omitempty"`
	SavedAt    time.Time    `json:"saved_at"`
	Sections   []SectionDoc `json:"sections"`
}

// SectionDoc is the JSON form of a section.
type SectionDoc struct {
	ID         string    `json:"id"`
	Descriptor any       `json:"descriptor,omitempty"`
	Header     *NodeDoc  `json:"header,omitempty"`
	Footer     *NodeDoc  `json:"footer,omitempty"`
	Rows       []NodeDoc `json:"rows"`
}

// NodeDoc is the JSON form of a node.
type NodeDoc struct {
	Provider string `json:"provider"`
	Key      string `json:"key"`
	Value    any    `json:"value"`
}

// NewDocument converts a snapshot.
func NewDocument(snap node.Snapshot) *Document {
	doc := &Document{
		Version:  Version,
		SavedAt:  time.Now().UTC(),
		Sections: make([]SectionDoc, len(snap.Sections)),
	}
	for i, sec := range snap.Sections {
		sd := SectionDoc{
			ID:         sec.Key,
			Descriptor: sec.Value,
			Header:     nodeDoc(sec.Header),
			Footer:     nodeDoc(sec.Footer),
			Rows:       make([]NodeDoc, len(sec.Rows)),
		}
		for j, r := range sec.Rows {
			sd.Rows[j] = NodeDoc{Provider: r.Provider, Key: r.Key, Value: r.Value}
		}
		doc.Sections[i] = sd
	}
	return doc
}

// Snapshot converts the document back to a snapshot. Values keep their
// decoded JSON form.
func (d *Document) Snapshot() node.Snapshot {
	sections := make([]node.Section, len(d.Sections))
	for i, sd := range d.Sections {
		rows := make([]node.Node, len(sd.Rows))
		for j, r := range sd.Rows {
			rows[j] = node.New(r.Provider, r.Key, r.Value)
		}
		sections[i] = node.NewSection(sd.ID, sd.Descriptor, sd.Header.node(), sd.Footer.node(), rows...)
	}
	return node.NewSnapshot(sections...)
}

func nodeDoc(n *node.Node) *NodeDoc {
	if n == nil {
		return nil
	}
	return &NodeDoc{Provider: n.Provider, Key: n.Key, Value: n.Value}
}

func (d *NodeDoc) node() *node.Node {
	if d == nil {
		return nil
	}
	n := node.New(d.Provider, d.Key, d.Value)
	return &n
}
