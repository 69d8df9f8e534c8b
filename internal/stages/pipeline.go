package stages

import "github.com/voltpipe/voltpipe/internal/pipeline"

// BuildGraph assembles the full pipeline DAG from constructed stages.
func BuildGraph(w *Weather, m *Model, d *Decision, c *Catalogs, a *Analytics) (*pipeline.Graph, error) {
	return pipeline.NewGraph(w.Stage(), m.Stage(), d.Stage(), c.Stage(), a.Stage())
}
