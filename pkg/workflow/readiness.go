// Package workflow contains the execution engine: readiness evaluation over
// the workflow graph, input resolution, step execution and the poll-driven
// run driver.
package workflow

import "github.com/dukex/operand/pkg/models"

// NextSteps returns the IDs of all nodes that are ready to execute: nodes
// that have not started yet and whose every incoming edge originates from a
// step in success. Entry points (no incoming edges) are ready immediately.
// The graph is assumed acyclic; cycles are rejected at workflow save time.
func NextSteps(run *models.WorkflowRun, workflow *models.Workflow) []string {
	edgesByTarget := workflow.EdgesByTarget()

	var executable []string

	for _, node := range workflow.Nodes {
		if step := run.Step(node.ID); step != nil && step.Status != models.StepStatusPending {
			continue
		}

		ready := true

		for _, edge := range edgesByTarget[node.ID] {
			source := run.Step(edge.Source)
			if source == nil || source.Status != models.StepStatusSuccess {
				ready = false

				break
			}
		}

		if ready {
			executable = append(executable, node.ID)
		}
	}

	return executable
}
