package merge

import "github.com/opencallgraph/merger/internal/model"

// newReport returns a zeroed report ready for a single merge run.
func newReport() *model.MergeReport {
	return &model.MergeReport{}
}

// recordDependencyDropped increments the report's dependency-fetch-failure
// counter. Called from the fetch phase, never from the resolver.
func recordDependencyDropped(r *model.MergeReport) {
	r.DependenciesDropped++
}

// recordCallableDropped increments the report's malformed-URI counter.
func recordCallableDropped(r *model.MergeReport) {
	r.CallablesDropped++
}
