package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/ralf-homelab/ralf/pkg/engine"
)

// ProfileSummary describes a validated profile and its task graph.
type ProfileSummary struct {
	Profile    string     `json:"profile"`
	Source     string     `json:"source,omitempty"`
	Components int        `json:"components"`
	Tasks      int        `json:"tasks"`
	Workflows  int        `json:"workflows"`
	Backups    int        `json:"backups"`
	Order      []string   `json:"order"`
	Waves      [][]string `json:"waves"`
	Loops      []string   `json:"loops"`
	Valid      bool       `json:"valid"`
}

// Summarize builds the summary of a profile and its graph.
func Summarize(profile *engine.Profile, graph *engine.TaskGraph, loops []string) *ProfileSummary {
	if loops == nil {
		loops = []string{}
	}
	return &ProfileSummary{
		Profile:    profile.Name,
		Source:     profile.Source,
		Components: len(profile.Components),
		Tasks:      graph.Len(),
		Workflows:  len(profile.Workflows),
		Backups:    len(profile.Backups),
		Order:      graph.Order(),
		Waves:      graph.Waves(),
		Loops:      loops,
		Valid:      true,
	}
}

// Summary renders a profile summary.
func Summary(w io.Writer, s *ProfileSummary, format Format) error {
	switch format {
	case FormatText:
	case FormatMarkdown:
		return summaryMarkdown(w, s)
	default:
		return structured(w, s, format)
	}

	fmt.Fprintf(w, "Profile %q is valid", s.Profile)
	if s.Source != "" {
		fmt.Fprintf(w, " (%s)", s.Source)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  components:  %d\n", s.Components)
	fmt.Fprintf(w, "  tasks:       %d in %d waves\n", s.Tasks, len(s.Waves))
	fmt.Fprintf(w, "  workflows:   %d (%s)\n", s.Workflows, joinOrDash(s.Loops, ", "))
	fmt.Fprintf(w, "  backups:     %d\n", s.Backups)
	fmt.Fprintf(w, "  order:       %s\n", joinOrDash(s.Order, " -> "))
	for i, wave := range s.Waves {
		fmt.Fprintf(w, "  wave %d:      %s\n", i+1, strings.Join(wave, ", "))
	}

	return nil
}
