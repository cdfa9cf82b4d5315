// Package model holds the data types shared across the merger: callable
// identifiers, the invocation-site wire format, the partial call graph
// the focal artifact is loaded into, and the operational knobs the merge
// pipeline is configured with.
package model

import "fmt"

// CallableId is the opaque 64-bit identifier the dependency store assigns
// to a callable. It is unique across the whole closure.
type CallableId uint64

// TypeURI is a string of the form "/<namespace>/<ClassName>".
type TypeURI string

// Signature is a string "<methodName>(<arg1>,<arg2>,...)<returnType>".
type Signature string

// InvocationKind distinguishes the four CHA-relevant dispatch forms plus
// the unresolved "dynamic" catch-all.
type InvocationKind uint8

const (
	Virtual InvocationKind = iota
	Interface
	Special
	Static
	Dynamic
)

// String renders the invocation kind the way it appears in logs.
func (k InvocationKind) String() string {
	switch k {
	case Virtual:
		return "virtual"
	case Interface:
		return "interface"
	case Special:
		return "special"
	case Static:
		return "static"
	case Dynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseInvocationKind decodes the wire enum (virtual=0, interface=1,
// special=2, static=3, dynamic=4). Unknown values map to Static with the
// caller expected to log a warning, per spec.
func ParseInvocationKind(wire uint8) InvocationKind {
	switch wire {
	case 0:
		return Virtual
	case 1:
		return Interface
	case 2:
		return Special
	case 3:
		return Static
	case 4:
		return Dynamic
	default:
		return Static
	}
}

// InvocationSite is one call site within a caller: its source line, the
// dispatch kind observed there, and the statically declared receiver type.
type InvocationSite struct {
	SourceLine   int32
	Kind         InvocationKind
	ReceiverType TypeURI
}

// Node is a callable decomposed into its declaring type and signature.
type Node struct {
	TypeURI   TypeURI
	Signature Signature
}

// IsConstructor reports whether the node's signature is an instance
// constructor ("<init>...") as opposed to an ordinary method or the
// class initializer ("<clinit>").
func (n Node) IsConstructor() bool {
	const initPrefix = "<init>"
	return len(n.Signature) >= len(initPrefix) && string(n.Signature[:len(initPrefix)]) == initPrefix
}

// PartialGraph is the call graph the focal artifact analyzer produced:
// a set of internal nodes, a set of external (symbolic) nodes, and a
// successor relation over the union of both.
type PartialGraph struct {
	InternalNodes map[CallableId]struct{}
	ExternalNodes map[CallableId]struct{}
	Successors    map[CallableId]map[CallableId]struct{}
}

// NewPartialGraph returns an empty partial graph ready for population.
func NewPartialGraph() *PartialGraph {
	return &PartialGraph{
		InternalNodes: make(map[CallableId]struct{}),
		ExternalNodes: make(map[CallableId]struct{}),
		Successors:    make(map[CallableId]map[CallableId]struct{}),
	}
}

// IsExternal reports whether id was recorded as an external node.
func (g *PartialGraph) IsExternal(id CallableId) bool {
	_, ok := g.ExternalNodes[id]
	return ok
}

// AddEdge records a successor edge and ensures both endpoints are present
// in the appropriate node set (internal unless already marked external).
func (g *PartialGraph) AddEdge(source, target CallableId) {
	g.ensureNode(source)
	g.ensureNode(target)
	if _, ok := g.Successors[source]; !ok {
		g.Successors[source] = make(map[CallableId]struct{})
	}
	g.Successors[source][target] = struct{}{}
}

// ensureNode registers id as internal unless it is already marked
// external.
func (g *PartialGraph) ensureNode(id CallableId) {
	if _, ok := g.ExternalNodes[id]; ok {
		return
	}
	g.InternalNodes[id] = struct{}{}
}

// Nodes returns the union of internal and external node ids.
func (g *PartialGraph) Nodes() []CallableId {
	out := make([]CallableId, 0, len(g.InternalNodes)+len(g.ExternalNodes))
	for id := range g.InternalNodes {
		out = append(out, id)
	}
	for id := range g.ExternalNodes {
		out = append(out, id)
	}
	return out
}

// DynamicSitePolicy controls how an unresolved "dynamic" invocation site
// is handled.
type DynamicSitePolicy string

const (
	DynamicWarn DynamicSitePolicy = "warn"
	DynamicDrop DynamicSitePolicy = "drop"
	DynamicFail DynamicSitePolicy = "fail"
)

// MissingDepPolicy controls how a dependency that could not be fetched is
// handled.
type MissingDepPolicy string

const (
	MissingDepSkip MissingDepPolicy = "skip"
	MissingDepFail MissingDepPolicy = "fail"
)

// Options carries the operational knobs spec.md §6 enumerates.
type Options struct {
	DynamicSitePolicy DynamicSitePolicy
	MissingDepPolicy  MissingDepPolicy
	InternTypeURIs    bool
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		DynamicSitePolicy: DynamicWarn,
		MissingDepPolicy:  MissingDepSkip,
		InternTypeURIs:    true,
	}
}

// MergeReport carries the non-fatal counters the merge surfaces on its
// side channel.
type MergeReport struct {
	DependenciesDropped    int
	CallablesDropped       int
	DynamicSitesUnresolved int
	SitesResolvedZero      int
}
