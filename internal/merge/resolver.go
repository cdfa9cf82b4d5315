package merge

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/opencallgraph/merger/internal/cha"
	"github.com/opencallgraph/merger/internal/graph"
	"github.com/opencallgraph/merger/internal/model"
	"github.com/opencallgraph/merger/internal/typedict"
)

// Arc is one harvested edge from the focal partial graph: either
// endpoint external, or a self-loop, together with its invocation sites.
type Arc struct {
	Source model.CallableId
	Target model.CallableId
	Sites  []model.InvocationSite
}

// resolver runs the hot loop of spec.md §4.6 against a built universal
// CHA and type dictionary.
type resolver struct {
	universalCHA *cha.CHA
	typeDict     *typedict.Dictionary
	nodeOf       map[model.CallableId]model.Node
	isExternal   func(model.CallableId) bool
	logger       *slog.Logger
	options      model.Options
	report       *model.MergeReport
	out          *graph.Builder
}

// resolveArcs runs every harvested arc (in a deterministic order: source
// ascending, then target, then site index) through the resolver, adding
// the resolved arcs to r.out. It returns model.ErrCancelled if
// shouldAbort reports true between arcs, and nil otherwise.
func (r *resolver) resolveArcs(arcs []Arc, shouldAbort func() bool) error {
	sortArcs(arcs)
	for _, arc := range arcs {
		if shouldAbort != nil && shouldAbort() {
			return model.ErrCancelled
		}
		r.resolveOne(arc)
	}
	return nil
}

func sortArcs(arcs []Arc) {
	sort.Slice(arcs, func(i, j int) bool {
		if arcs[i].Source != arcs[j].Source {
			return arcs[i].Source < arcs[j].Source
		}
		return arcs[i].Target < arcs[j].Target
	})
}

// resolveOne implements spec.md §4.6 steps 1-4 for a single harvested arc.
func (r *resolver) resolveOne(arc Arc) {
	var node model.Node
	var isCallback bool

	if r.isExternal(arc.Target) {
		node = r.nodeOf[arc.Target]
		isCallback = false
	} else {
		node = r.nodeOf[arc.Source]
		isCallback = r.isExternal(arc.Source)
	}

	if node.IsConstructor() {
		r.resolveConstructorChain(arc, node, isCallback)
	}

	resolvedAny := false
	for _, site := range arc.Sites {
		if r.resolveSite(arc, node, isCallback, site) > 0 {
			resolvedAny = true
		}
	}
	if len(arc.Sites) > 0 && !resolvedAny {
		r.report.SitesResolvedZero++
	}
}

// resolveSite dispatches on the invocation kind and returns the number
// of edges it emitted.
func (r *resolver) resolveSite(arc Arc, node model.Node, isCallback bool, site model.InvocationSite) int {
	switch site.Kind {
	case model.Virtual, model.Interface:
		count := 0
		for _, t := range r.universalCHA.Descendants(site.ReceiverType) {
			for target := range r.typeDict.Lookup(t, node.Signature) {
				r.emit(arc.Source, target, isCallback)
				count++
			}
		}
		return count
	case model.Special:
		return r.resolveConstructorChain(arc, node, isCallback)
	case model.Dynamic:
		r.handleDynamic(arc, site)
		return 0
	default: // static, and unknown kinds already normalized to static upstream
		count := 0
		for target := range r.typeDict.Lookup(site.ReceiverType, node.Signature) {
			r.emit(arc.Source, target, isCallback)
			count++
		}
		return count
	}
}

func (r *resolver) handleDynamic(arc Arc, site model.InvocationSite) {
	r.report.DynamicSitesUnresolved++
	switch r.options.DynamicSitePolicy {
	case model.DynamicDrop:
		// no log, no edges: silent per configuration
	case model.DynamicFail:
		r.logger.Error("dynamic invocation site left unresolved under fail policy",
			"source", arc.Source, "target", arc.Target, "line", site.SourceLine)
	default: // warn
		r.logger.Warn("dynamic invocation site could not be resolved by CHA",
			"source", arc.Source, "target", arc.Target, "line", site.SourceLine)
	}
}

// resolveConstructorChain implements spec.md §4.6's
// resolveConstructorChain: for every ancestor of node's declaring type,
// emit edges to that ancestor's same-signature callable (the
// super-constructor) and to its class initializer. It returns the
// number of edges emitted.
func (r *resolver) resolveConstructorChain(arc Arc, node model.Node, isCallback bool) int {
	count := 0
	clinitSignature := model.Signature(strings.Replace(string(node.Signature), "<init>", "<clinit>", 1))
	for _, super := range r.universalCHA.Ancestors(node.TypeURI) {
		for target := range r.typeDict.Lookup(super, node.Signature) {
			r.emit(arc.Source, target, isCallback)
			count++
		}
		for target := range r.typeDict.Lookup(super, clinitSignature) {
			r.emit(arc.Source, target, isCallback)
			count++
		}
	}
	return count
}

// emit records a resolved edge, inverting direction for callback arcs.
func (r *resolver) emit(source, target model.CallableId, isCallback bool) {
	if isCallback {
		r.out.AddArc(target, source)
	} else {
		r.out.AddArc(source, target)
	}
}
