package medication

// Anchor node names of the flow graph.
const (
	AnchorPreAdmission  = "Pre-Admission"
	AnchorPostDischarge = "Post-Discharge"
	AnchorDiscontinued  = "Discontinued"
)

type NodeKind string

const (
	NodeAnchor NodeKind = "anchor"
	NodeDrug   NodeKind = "drug"
)

// Node is a vertex of the reconciliation flow graph. Index is its position
// in FlowGraph.Nodes and is what edges refer to.
type Node struct {
	Index int      `json:"index"`
	Name  string   `json:"name"`
	Kind  NodeKind `json:"kind"`
}

// Edge connects two nodes by index. Value 0 marks the placeholder inbound
// edge of a newly started drug.
type Edge struct {
	Source int `json:"source"`
	Target int `json:"target"`
	Value  int `json:"value"`
}

// FlowGraph is a three-layer DAG: Pre-Admission, drugs, then either
// Post-Discharge or Discontinued.
type FlowGraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

type Summary struct {
	New          int `json:"new"`
	Changed      int `json:"changed"`
	Unchanged    int `json:"unchanged"`
	Discontinued int `json:"discontinued"`
}

// Reconciliation is the result of diffing a pre-admission list against a
// post-discharge list.
type Reconciliation struct {
	PostDischarge []Medication `json:"post_discharge"`
	Discontinued  []Medication `json:"discontinued"`
	Graph         FlowGraph    `json:"graph"`
	Summary       Summary      `json:"summary"`
}

// Reconcile classifies every post-discharge entry as New, Changed or
// Unchanged against the pre-admission list, synthesizes a Discontinued record
// for every pre-admission entry whose name no longer appears, and builds the
// flow graph.
//
// Names are matched exactly and case-sensitively. When a name repeats in pre
// its first occurrence is the counterpart. Neither input is modified and the
// output depends only on the inputs and their order.
func Reconcile(pre, post []Medication) Reconciliation {
	preByName := make(map[string]Medication, len(pre))
	for _, m := range pre {
		if _, ok := preByName[m.Name]; !ok {
			preByName[m.Name] = m
		}
	}
	postNames := make(map[string]bool, len(post))
	for _, m := range post {
		postNames[m.Name] = true
	}

	r := Reconciliation{
		PostDischarge: make([]Medication, 0, len(post)),
		Discontinued:  []Medication{},
	}

	for _, m := range post {
		m.Status = classify(m, preByName)
		switch m.Status {
		case StatusNew:
			r.Summary.New++
		case StatusChanged:
			r.Summary.Changed++
		default:
			r.Summary.Unchanged++
		}
		r.PostDischarge = append(r.PostDischarge, m)
	}

	for _, m := range pre {
		if postNames[m.Name] {
			continue
		}
		m.Status = StatusDiscontinued
		r.Discontinued = append(r.Discontinued, m)
		r.Summary.Discontinued++
	}

	r.Graph = buildGraph(pre, post, preByName, postNames)
	return r
}

func classify(m Medication, preByName map[string]Medication) Status {
	prev, ok := preByName[m.Name]
	if !ok {
		return StatusNew
	}
	if prev.Dosage != m.Dosage || prev.Frequency != m.Frequency {
		return StatusChanged
	}
	return StatusUnchanged
}

type graphBuilder struct {
	g       FlowGraph
	drugs   map[string]int
	seen    map[[2]int]bool
	preIdx  int
	postIdx int
	discIdx int
}

func buildGraph(pre, post []Medication, preByName map[string]Medication, postNames map[string]bool) FlowGraph {
	b := &graphBuilder{
		g: FlowGraph{
			Nodes: make([]Node, 0, 3+len(pre)+len(post)),
			Edges: []Edge{},
		},
		drugs: make(map[string]int),
		seen:  make(map[[2]int]bool),
	}
	b.preIdx = b.addNode(AnchorPreAdmission, NodeAnchor)
	b.postIdx = b.addNode(AnchorPostDischarge, NodeAnchor)
	b.discIdx = b.addNode(AnchorDiscontinued, NodeAnchor)

	for _, m := range pre {
		b.drug(m.Name)
	}
	for _, m := range post {
		b.drug(m.Name)
	}

	for _, m := range pre {
		idx := b.drugs[m.Name]
		b.link(b.preIdx, idx, 1)
		if postNames[m.Name] {
			b.link(idx, b.postIdx, 1)
		} else {
			b.link(idx, b.discIdx, 1)
		}
	}
	for _, m := range post {
		if _, ok := preByName[m.Name]; ok {
			continue
		}
		idx := b.drugs[m.Name]
		b.link(b.preIdx, idx, 0)
		b.link(idx, b.postIdx, 1)
	}
	return b.g
}

func (b *graphBuilder) addNode(name string, kind NodeKind) int {
	idx := len(b.g.Nodes)
	b.g.Nodes = append(b.g.Nodes, Node{Index: idx, Name: name, Kind: kind})
	return idx
}

func (b *graphBuilder) drug(name string) {
	if _, ok := b.drugs[name]; ok {
		return
	}
	b.drugs[name] = b.addNode(name, NodeDrug)
}

func (b *graphBuilder) link(source, target, value int) {
	key := [2]int{source, target}
	if b.seen[key] {
		return
	}
	b.seen[key] = true
	b.g.Edges = append(b.g.Edges, Edge{Source: source, Target: target, Value: value})
}
