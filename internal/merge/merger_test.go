package merge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencallgraph/merger/internal/cha"
	"github.com/opencallgraph/merger/internal/fastenuri"
	"github.com/opencallgraph/merger/internal/model"
	"github.com/opencallgraph/merger/internal/store"
)

func uri(t model.TypeURI, sig model.Signature) string {
	return fastenuri.Build(t, sig)
}

// newFixture returns an empty in-memory store wired as all three backends
// plus a Merger pointed at it, so each scenario only has to populate data.
func newFixture() (*store.Memory, *Merger) {
	mem := store.NewMemory()
	m := &Merger{
		Dependencies: mem,
		Graphs:       mem,
		EdgeMeta:     mem,
		Options:      model.DefaultOptions(),
	}
	return mem, m
}

func TestMerge_VirtualDispatchOverTwoSubclasses(t *testing.T) {
	mem, m := newFixture()

	const (
		base model.TypeURI = "/app/Base"
		sub1 model.TypeURI = "/app/Sub1"
		sub2 model.TypeURI = "/app/Sub2"
	)
	const sig model.Signature = "foo()V"

	mem.Coordinates["g:a:1.0"] = 1
	sub1Callable := model.CallableId(101)
	sub2Callable := model.CallableId(102)
	mem.Callables[1] = []model.CallableId{sub1Callable, sub2Callable}
	mem.Uris[sub1Callable] = uri(sub1, sig)
	mem.Uris[sub2Callable] = uri(sub2, sig)
	mem.Hierarchy[1] = []cha.HierarchyRow{
		{TypeNamespace: string(sub1), SuperClasses: []model.TypeURI{base}},
		{TypeNamespace: string(sub2), SuperClasses: []model.TypeURI{base}},
	}

	callerID := model.CallableId(1)
	baseCallID := model.CallableId(2)
	mem.Uris[baseCallID] = uri(base, sig)

	focal := model.NewPartialGraph()
	focal.InternalNodes[callerID] = struct{}{}
	focal.ExternalNodes[baseCallID] = struct{}{}
	focal.AddEdge(callerID, baseCallID)
	mem.Graphs[99] = focal
	mem.Coordinates["g:focal:1.0"] = 99
	mem.Callables[99] = []model.CallableId{}
	mem.EdgeSites[store.Pair{Source: callerID, Target: baseCallID}] = []model.InvocationSite{
		{SourceLine: 10, Kind: model.Virtual, ReceiverType: base},
	}

	res, err := m.Merge(context.Background(), "g:focal:1.0", []string{"g:a:1.0"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []model.CallableId{sub1Callable, sub2Callable}, res.Graph.Successors(callerID))
}

func TestMerge_InterfaceDispatch(t *testing.T) {
	mem, m := newFixture()

	const (
		iface model.TypeURI = "/app/Runnable"
		impl  model.TypeURI = "/app/Job"
	)
	const sig model.Signature = "run()V"

	mem.Coordinates["g:a:1.0"] = 1
	implCallable := model.CallableId(201)
	mem.Callables[1] = []model.CallableId{implCallable}
	mem.Uris[implCallable] = uri(impl, sig)
	mem.Hierarchy[1] = []cha.HierarchyRow{
		{TypeNamespace: string(impl), SuperInterfaces: []model.TypeURI{iface}},
	}

	callerID := model.CallableId(1)
	ifaceCallID := model.CallableId(2)
	mem.Uris[ifaceCallID] = uri(iface, sig)

	focal := model.NewPartialGraph()
	focal.InternalNodes[callerID] = struct{}{}
	focal.ExternalNodes[ifaceCallID] = struct{}{}
	focal.AddEdge(callerID, ifaceCallID)
	mem.Graphs[99] = focal
	mem.Coordinates["g:focal:1.0"] = 99
	mem.Callables[99] = []model.CallableId{}
	mem.EdgeSites[store.Pair{Source: callerID, Target: ifaceCallID}] = []model.InvocationSite{
		{SourceLine: 5, Kind: model.Interface, ReceiverType: iface},
	}

	res, err := m.Merge(context.Background(), "g:focal:1.0", []string{"g:a:1.0"})
	require.NoError(t, err)

	assert.Equal(t, []model.CallableId{implCallable}, res.Graph.Successors(callerID))
}

func TestMerge_StaticCall(t *testing.T) {
	mem, m := newFixture()

	const util model.TypeURI = "/app/Util"
	const sig model.Signature = "helper()V"

	mem.Coordinates["g:a:1.0"] = 1
	helperCallable := model.CallableId(301)
	mem.Callables[1] = []model.CallableId{helperCallable}
	mem.Uris[helperCallable] = uri(util, sig)
	mem.Hierarchy[1] = []cha.HierarchyRow{{TypeNamespace: string(util)}}

	callerID := model.CallableId(1)
	targetCallID := model.CallableId(2)
	mem.Uris[targetCallID] = uri(util, sig)

	focal := model.NewPartialGraph()
	focal.InternalNodes[callerID] = struct{}{}
	focal.ExternalNodes[targetCallID] = struct{}{}
	focal.AddEdge(callerID, targetCallID)
	mem.Graphs[99] = focal
	mem.Coordinates["g:focal:1.0"] = 99
	mem.Callables[99] = []model.CallableId{}
	mem.EdgeSites[store.Pair{Source: callerID, Target: targetCallID}] = []model.InvocationSite{
		{SourceLine: 7, Kind: model.Static, ReceiverType: util},
	}

	res, err := m.Merge(context.Background(), "g:focal:1.0", []string{"g:a:1.0"})
	require.NoError(t, err)

	assert.Equal(t, []model.CallableId{helperCallable}, res.Graph.Successors(callerID))
}

func TestMerge_ConstructorChainResolvesSuperInitAndClinit(t *testing.T) {
	mem, m := newFixture()

	const (
		parent model.TypeURI = "/app/Parent"
		child  model.TypeURI = "/app/Child"
	)
	const initSig model.Signature = "<init>()V"
	const clinitSig model.Signature = "<clinit>()V"

	mem.Coordinates["g:a:1.0"] = 1
	parentInit := model.CallableId(401)
	parentClinit := model.CallableId(402)
	mem.Callables[1] = []model.CallableId{parentInit, parentClinit}
	mem.Uris[parentInit] = uri(parent, initSig)
	mem.Uris[parentClinit] = uri(parent, clinitSig)
	// Parent is a dependency-owned class with no further ancestors; it
	// contributes no hierarchy row of its own.

	callerID := model.CallableId(1)
	childInitCallID := model.CallableId(2)
	mem.Uris[childInitCallID] = uri(child, initSig)

	// child is the focal artifact's own subclass of the dependency's
	// Parent, so its hierarchy row and callable are owned by the focal
	// artifact (id 99), not by the dependency (id 1).
	mem.Callables[99] = []model.CallableId{childInitCallID}
	mem.Hierarchy[99] = []cha.HierarchyRow{
		{TypeNamespace: string(child), SuperClasses: []model.TypeURI{parent}},
	}

	focal := model.NewPartialGraph()
	focal.InternalNodes[callerID] = struct{}{}
	focal.ExternalNodes[childInitCallID] = struct{}{}
	focal.AddEdge(callerID, childInitCallID)
	mem.Graphs[99] = focal
	mem.Coordinates["g:focal:1.0"] = 99
	mem.EdgeSites[store.Pair{Source: callerID, Target: childInitCallID}] = []model.InvocationSite{
		{SourceLine: 1, Kind: model.Special, ReceiverType: child},
	}

	res, err := m.Merge(context.Background(), "g:focal:1.0", []string{"g:a:1.0"})
	require.NoError(t, err)

	// Ancestors are reflexive, so Child's own <init> (registered in the
	// dictionary through the focal's callables) is reached alongside
	// Parent's <init> and <clinit>.
	assert.ElementsMatch(t, []model.CallableId{childInitCallID, parentInit, parentClinit}, res.Graph.Successors(callerID))
}

func TestMerge_DynamicSitePolicies(t *testing.T) {
	for _, policy := range []model.DynamicSitePolicy{model.DynamicWarn, model.DynamicDrop, model.DynamicFail} {
		t.Run(string(policy), func(t *testing.T) {
			mem, m := newFixture()
			m.Options.DynamicSitePolicy = policy

			callerID := model.CallableId(1)
			targetCallID := model.CallableId(2)
			mem.Uris[targetCallID] = uri("/app/Unknown", "invoke()V")

			focal := model.NewPartialGraph()
			focal.InternalNodes[callerID] = struct{}{}
			focal.ExternalNodes[targetCallID] = struct{}{}
			focal.AddEdge(callerID, targetCallID)
			mem.Graphs[99] = focal
			mem.Coordinates["g:focal:1.0"] = 99
			mem.Callables[99] = []model.CallableId{}
			mem.EdgeSites[store.Pair{Source: callerID, Target: targetCallID}] = []model.InvocationSite{
				{SourceLine: 3, Kind: model.Dynamic, ReceiverType: "/app/Unknown"},
			}

			res, err := m.Merge(context.Background(), "g:focal:1.0", nil)
			require.NoError(t, err)

			assert.Empty(t, res.Graph.Successors(callerID))
			assert.Equal(t, 1, res.Report.DynamicSitesUnresolved)
			assert.Equal(t, 1, res.Report.SitesResolvedZero)
		})
	}
}

func TestMerge_CallbackEdgeDirectionInverted(t *testing.T) {
	mem, m := newFixture()

	const (
		frameworkIface model.TypeURI = "/ext/Comparator"
		override       model.TypeURI = "/app/ByLength"
	)
	const sig model.Signature = "compare(/java/lang/Object,/java/lang/Object)I"

	// g:a:1.0 is a nominal dependency that contributes nothing; override
	// is the focal artifact's own class, so its hierarchy row and
	// callable are owned by the focal (id 99), not by the dependency.
	mem.Coordinates["g:a:1.0"] = 1
	mem.Callables[1] = []model.CallableId{}

	overrideCallable := model.CallableId(501)
	mem.Callables[99] = []model.CallableId{overrideCallable}
	mem.Uris[overrideCallable] = uri(override, sig)
	mem.Hierarchy[99] = []cha.HierarchyRow{
		{TypeNamespace: string(override), SuperInterfaces: []model.TypeURI{frameworkIface}},
	}

	frameworkCallID := model.CallableId(1) // external: the library's dispatch point
	internalCallID := model.CallableId(2)  // internal: the focal code invoked back into
	mem.Uris[frameworkCallID] = uri(frameworkIface, sig)
	mem.Uris[internalCallID] = uri(override, sig)

	focal := model.NewPartialGraph()
	focal.ExternalNodes[frameworkCallID] = struct{}{}
	focal.InternalNodes[internalCallID] = struct{}{}
	focal.AddEdge(frameworkCallID, internalCallID)
	mem.Graphs[99] = focal
	mem.Coordinates["g:focal:1.0"] = 99
	mem.EdgeSites[store.Pair{Source: frameworkCallID, Target: internalCallID}] = []model.InvocationSite{
		{SourceLine: 2, Kind: model.Virtual, ReceiverType: frameworkIface},
	}

	res, err := m.Merge(context.Background(), "g:focal:1.0", []string{"g:a:1.0"})
	require.NoError(t, err)

	// The resolved call runs from the dependency-closure override back to
	// the external dispatch point, not the other way round.
	assert.Equal(t, []model.CallableId{frameworkCallID}, res.Graph.Successors(overrideCallable))
	assert.Empty(t, res.Graph.Successors(frameworkCallID))
}

func TestMerge_UnfetchableDependencyDroppedUnderSkipPolicy(t *testing.T) {
	mem, m := newFixture()
	mem.Coordinates["g:broken:1.0"] = 7 // resolves, but has no registered callables

	callerID := model.CallableId(1)
	focal := model.NewPartialGraph()
	focal.InternalNodes[callerID] = struct{}{}
	mem.Graphs[99] = focal
	mem.Coordinates["g:focal:1.0"] = 99
	mem.Callables[99] = []model.CallableId{} // focal itself fetches cleanly, just empty

	res, err := m.Merge(context.Background(), "g:focal:1.0", []string{"g:broken:1.0"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Report.DependenciesDropped)
}

func TestMerge_UnfetchableDependencyFailsUnderFailPolicy(t *testing.T) {
	mem, m := newFixture()
	m.Options.MissingDepPolicy = model.MissingDepFail
	mem.Coordinates["g:broken:1.0"] = 7

	focal := model.NewPartialGraph()
	mem.Graphs[99] = focal
	mem.Coordinates["g:focal:1.0"] = 99
	mem.Callables[99] = []model.CallableId{} // focal itself fetches cleanly, just empty

	_, err := m.Merge(context.Background(), "g:focal:1.0", []string{"g:broken:1.0"})
	require.Error(t, err)
	var fetchErr *model.DependencyFetchFailedError
	require.ErrorAs(t, err, &fetchErr)
}
