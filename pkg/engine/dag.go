package engine

import (
	"fmt"
	"sort"
	"strings"
)

// TaskGraph is the dependency-ordered set of tasks derived from a Profile.
type TaskGraph struct {
	// order is the deterministic topological order of task ids
	order []string

	// tasks maps task ids to their task
	tasks map[string]*Task

	// dependencies maps task ids to the tasks they depend on (declared order, deduplicated)
	dependencies map[string][]string

	// dependents maps task ids to the tasks that depend on them (declaration order)
	dependents map[string][]string

	// waves groups task ids that may run concurrently
	waves [][]string

	// wave maps task ids to their wave
	wave map[string]int
}

// TaskGraphBuilder builds a TaskGraph from tasks in declaration order.
type TaskGraphBuilder struct {
	// tasks are the tasks in declaration order
	tasks []Task

	// index maps task ids to their declaration index
	index map[string]int

	// dependencies maps task ids to their deduplicated dependencies
	dependencies map[string][]string

	// dependents maps task ids to the tasks depending on them
	dependents map[string][]string
}

// NewTaskGraphBuilder creates a new task graph builder.
func NewTaskGraphBuilder() *TaskGraphBuilder {
	return &TaskGraphBuilder{
		index:        make(map[string]int),
		dependencies: make(map[string][]string),
		dependents:   make(map[string][]string),
	}
}

// BuildTaskGraph builds the task graph of a profile.
func BuildTaskGraph(profile *Profile) (*TaskGraph, error) {
	return NewTaskGraphBuilder().Build(profile.Tasks())
}

// Build constructs the task graph. Tasks must be given in declaration order
// (component order, then task order); that order breaks ties between tasks with no
// ordering constraint, so identical input always yields the identical graph.
func (b *TaskGraphBuilder) Build(tasks []Task) (*TaskGraph, error) {
	if err := b.initialize(tasks); err != nil {
		return nil, err
	}

	order, residual := b.sort()
	if len(residual) > 0 {
		return nil, NewCyclicDependencyError(b.minimalCycle(residual))
	}

	graph := &TaskGraph{
		order:        order,
		tasks:        make(map[string]*Task, len(b.tasks)),
		dependencies: b.dependencies,
		dependents:   b.dependents,
		wave:         make(map[string]int, len(b.tasks)),
	}
	for i := range b.tasks {
		graph.tasks[b.tasks[i].ID] = &b.tasks[i]
	}
	graph.computeWaves()

	return graph, nil
}

// initialize indexes tasks and validates dependency references.
func (b *TaskGraphBuilder) initialize(tasks []Task) error {
	b.tasks = make([]Task, len(tasks))
	copy(b.tasks, tasks)

	for i, task := range b.tasks {
		if task.ID == "" {
			return NewSchemaViolationError(fmt.Sprintf("tasks[%d].id", i), "task id is required")
		}
		if _, exists := b.index[task.ID]; exists {
			return NewSchemaViolationError("", fmt.Sprintf("duplicate task id %q", task.ID)).
				WithIdentifier(task.ID)
		}
		b.index[task.ID] = i
		b.dependencies[task.ID] = make([]string, 0, len(task.DependsOn))
	}

	for _, task := range b.tasks {
		seen := make(map[string]bool, len(task.DependsOn))
		for _, dep := range task.DependsOn {
			if _, exists := b.index[dep]; !exists {
				return NewUnknownDependencyError(task.ID, dep)
			}
			if seen[dep] {
				continue
			}
			seen[dep] = true
			b.dependencies[task.ID] = append(b.dependencies[task.ID], dep)
			b.dependents[dep] = append(b.dependents[dep], task.ID)
		}
	}

	return nil
}

// sort runs Kahn's algorithm, always releasing the ready task with the smallest
// declaration index. It returns the order and the tasks left unresolved by cycles.
func (b *TaskGraphBuilder) sort() ([]string, map[string]bool) {
	inDegree := make([]int, len(b.tasks))
	ready := make([]int, 0)
	for i, task := range b.tasks {
		inDegree[i] = len(b.dependencies[task.ID])
		if inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]string, 0, len(b.tasks))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		id := b.tasks[next].ID
		order = append(order, id)

		for _, dependent := range b.dependents[id] {
			di := b.index[dependent]
			inDegree[di]--
			if inDegree[di] == 0 {
				pos := sort.SearchInts(ready, di)
				ready = append(ready, 0)
				copy(ready[pos+1:], ready[pos:])
				ready[pos] = di
			}
		}
	}

	var residual map[string]bool
	if len(order) != len(b.tasks) {
		residual = make(map[string]bool)
		for i, task := range b.tasks {
			if inDegree[i] > 0 {
				residual[task.ID] = true
			}
		}
	}
	return order, residual
}

// minimalCycle returns the shortest cycle among the unresolved tasks. Ties are broken
// by declaration order of the cycle's first task.
func (b *TaskGraphBuilder) minimalCycle(residual map[string]bool) []string {
	var best []string
	for _, task := range b.tasks {
		if !residual[task.ID] {
			continue
		}
		cycle := b.shortestCycleThrough(task.ID, residual)
		if cycle != nil && (best == nil || len(cycle) < len(best)) {
			best = cycle
		}
	}
	return best
}

// shortestCycleThrough finds the shortest dependency path from start back to start
// using breadth-first search over the unresolved tasks.
func (b *TaskGraphBuilder) shortestCycleThrough(start string, residual map[string]bool) []string {
	parent := make(map[string]string)
	visited := map[string]bool{start: true}
	queue := []string{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range b.dependencies[current] {
			if !residual[next] {
				continue
			}
			if next == start {
				var reversed []string
				for n := current; n != start; n = parent[n] {
					reversed = append(reversed, n)
				}
				cycle := []string{start}
				for i := len(reversed) - 1; i >= 0; i-- {
					cycle = append(cycle, reversed[i])
				}
				return append(cycle, start)
			}
			if !visited[next] {
				visited[next] = true
				parent[next] = current
				queue = append(queue, next)
			}
		}
	}

	return nil
}

// computeWaves assigns execution waves. A task runs one wave after its latest
// dependency and after the previous task of the same component, so no wave holds two
// tasks of one component or two tasks related by dependency.
func (g *TaskGraph) computeWaves() {
	lastInComponent := make(map[string]string)
	for _, id := range g.order {
		task := g.tasks[id]
		w := 0
		for _, dep := range g.dependencies[id] {
			if g.wave[dep]+1 > w {
				w = g.wave[dep] + 1
			}
		}
		if prev, ok := lastInComponent[task.ComponentID]; ok && g.wave[prev]+1 > w {
			w = g.wave[prev] + 1
		}
		lastInComponent[task.ComponentID] = id

		g.wave[id] = w
		for len(g.waves) <= w {
			g.waves = append(g.waves, make([]string, 0))
		}
		g.waves[w] = append(g.waves[w], id)
	}
}

// Order returns the task ids in execution order.
func (g *TaskGraph) Order() []string {
	order := make([]string, len(g.order))
	copy(order, g.order)
	return order
}

// Len returns the number of tasks.
func (g *TaskGraph) Len() int {
	return len(g.order)
}

// Task returns the task with the given id.
func (g *TaskGraph) Task(id string) (*Task, bool) {
	t, ok := g.tasks[id]
	return t, ok
}

// Dependencies returns the ids a task depends on.
func (g *TaskGraph) Dependencies(id string) []string {
	return g.dependencies[id]
}

// Dependents returns the ids of tasks that depend on a task.
func (g *TaskGraph) Dependents(id string) []string {
	return g.dependents[id]
}

// Wave returns the execution wave of a task.
func (g *TaskGraph) Wave(id string) int {
	return g.wave[id]
}

// Waves returns the task ids grouped by execution wave.
func (g *TaskGraph) Waves() [][]string {
	waves := make([][]string, len(g.waves))
	for i, w := range g.waves {
		waves[i] = append([]string(nil), w...)
	}
	return waves
}

// ToDOT generates a DOT representation of the graph, one cluster per wave.
// The output can be rendered with Graphviz tools.
func (g *TaskGraph) ToDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph TaskGraph {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for wave, ids := range g.waves {
		sb.WriteString(fmt.Sprintf("  subgraph cluster_wave_%d {\n", wave))
		sb.WriteString(fmt.Sprintf("    label=\"Wave %d\";\n", wave+1))
		sb.WriteString("    style=dashed;\n")
		for _, id := range ids {
			task := g.tasks[id]
			label := fmt.Sprintf("%s\\n%s (%s)", task.ID, task.ComponentID, task.Action)
			sb.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\", fillcolor=\"%s\", style=\"filled,rounded\"];\n",
				id, label, getActionColor(task.Action)))
		}
		sb.WriteString("  }\n\n")
	}

	for _, id := range g.order {
		for _, dep := range g.dependencies[id] {
			sb.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\";\n", dep, id))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

// getActionColor returns a color for visualizing action kinds.
func getActionColor(action ActionKind) string {
	switch action {
	case ActionDeploy:
		return "lightgreen"
	case ActionConfigure:
		return "lightblue"
	case ActionRotateSecret:
		return "khaki"
	case ActionDiscover:
		return "lightgray"
	default:
		return "white"
	}
}
