package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/ferry/internal/config"
	"github.com/steveyegge/ferry/internal/remote"
	"github.com/steveyegge/ferry/internal/ui"
	"github.com/steveyegge/ferry/internal/workflow"
)

// findWorkflow builds the graph of the workflow with the given codename. An
// empty codename selects the only workflow, or the one named "default".
func findWorkflow(workflows []remote.Workflow, codename string) (*workflow.Graph, error) {
	if codename == "" && len(workflows) == 1 {
		return workflow.New(workflows[0]), nil
	}
	if codename == "" {
		codename = "default"
	}
	names := make([]string, 0, len(workflows))
	for _, w := range workflows {
		if w.Codename == codename {
			return workflow.New(w), nil
		}
		names = append(names, w.Codename)
	}
	return nil, fmt.Errorf("workflow %q not found (have: %s)", codename, strings.Join(names, ", "))
}

type workflowPath struct {
	Workflow string   `json:"workflow"`
	From     string   `json:"from"`
	To       string   `json:"to"`
	Path     []string `json:"path"`
}

func printWorkflow(w io.Writer, g *workflow.Graph) {
	fmt.Fprintln(w, ui.RenderCategory("Workflow "+g.Codename))
	for _, s := range g.Steps() {
		marker := " "
		if s.Codename == g.First() {
			marker = "*"
		}
		next := g.Next(s.Codename)
		fmt.Fprintf(w, "%s %s %s %s\n", marker, s.Codename, ui.RenderMuted("->"), strings.Join(next, ", "))
	}
}

var workflowCmd = &cobra.Command{
	Use:     "workflow",
	GroupID: "setup",
	Short:   "Inspect workflows in the target environment",
}

var workflowFlag string

var workflowShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List the steps and transitions of a workflow",
	Run: func(cmd *cobra.Command, args []string) {
		g := loadWorkflow()
		if jsonOutput {
			type step struct {
				Codename string   `json:"codename"`
				Name     string   `json:"name"`
				Next     []string `json:"next"`
			}
			var out []step
			for _, s := range g.Steps() {
				out = append(out, step{Codename: s.Codename, Name: s.Name, Next: g.Next(s.Codename)})
			}
			outputJSON(out)
			return
		}
		printWorkflow(os.Stdout, g)
	},
}

var workflowPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the transitions an import makes to reach a step",
	Long: `Path resolves the shortest sequence of transitions from one step to another,
the same way an import moves each variant to its source step.

Example:
  ferry workflow path --workflow default --to published`,
	Run: func(cmd *cobra.Command, args []string) {
		g := loadWorkflow()
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		if from == "" {
			from = g.First()
		}
		path, err := g.ShortestPath(from, to)
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(workflowPath{Workflow: g.Codename, From: from, To: to, Path: path})
			return
		}
		if len(path) == 0 {
			fmt.Printf("%s is already at %s\n", from, to)
			return
		}
		fmt.Println(strings.Join(append([]string{from}, path...), " -> "))
	},
}

func loadWorkflow() *workflow.Graph {
	client, _ := mustClient(config.RoleTarget)
	workflows, err := client.ListWorkflows(getRootContext())
	if err != nil {
		FatalError("listing workflows: %v", err)
	}
	g, err := findWorkflow(workflows, workflowFlag)
	if err != nil {
		FatalError("%v", err)
	}
	return g
}

func init() {
	workflowCmd.PersistentFlags().StringVar(&workflowFlag, "workflow", "", "Workflow codename (default: the only workflow, or \"default\")")
	workflowPathCmd.Flags().String("from", "", "Starting step (default: the first step)")
	workflowPathCmd.Flags().String("to", "", "Step to reach")
	_ = workflowPathCmd.MarkFlagRequired("to")
	for _, c := range []*cobra.Command{workflowShowCmd, workflowPathCmd} {
		addEnvironmentFlag(c, config.RoleTarget)
		workflowCmd.AddCommand(c)
	}
	rootCmd.AddCommand(workflowCmd)
}
