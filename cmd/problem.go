package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/codecoach/internal/problem"
	"github.com/abhisek/codecoach/internal/reorder"
)

var problemCmd = &cobra.Command{
	Use:     "problem",
	Aliases: []string{"problems"},
	Short:   "Manage problems on the server",
}

var problemListCmd = &cobra.Command{
	Use:   "list",
	Short: "List problems in solve order",
	RunE: func(cmd *cobra.Command, args []string) error {
		problems, err := newClient().ListProblems(cmd.Context())
		if err != nil {
			return fmt.Errorf("list problems: %w", err)
		}
		if len(problems) == 0 {
			fmt.Println("No problems found.")
			return nil
		}
		problem.SortByOrder(problems)

		fmt.Printf("%-5s  %-36s  %s\n", "Order", "ID", "Title")
		fmt.Println(strings.Repeat("\u2500", 80))
		for _, p := range problems {
			fmt.Printf("%-5d  %-36s  %s\n", p.Order, p.ID, p.Title)
		}
		return nil
	},
}

var problemShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one problem, including its reference solution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newClient().GetProblem(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get problem: %w", err)
		}

		sep := strings.Repeat("\u2500", 60)
		fmt.Printf("ID:       %s\n", p.ID)
		fmt.Printf("Title:    %s\n", p.Title)
		fmt.Printf("Order:    %d\n", p.Order)
		fmt.Println()
		fmt.Println(sep)
		fmt.Println("DESCRIPTION")
		fmt.Println(sep)
		fmt.Println(orNone(p.Description))
		fmt.Println(sep)
		fmt.Println("SOLUTION")
		fmt.Println(sep)
		fmt.Println(orNone(p.SolutionCode))
		return nil
	},
}

var problemAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a problem at the end of the list",
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := problemFields(cmd)
		if err != nil {
			return err
		}
		var in problem.CreateInput
		if fields.Title != nil {
			in.Title = *fields.Title
		}
		if fields.Description != nil {
			in.Description = *fields.Description
		}
		if fields.SolutionCode != nil {
			in.SolutionCode = *fields.SolutionCode
		}
		if strings.TrimSpace(in.Title) == "" {
			return fmt.Errorf("--title is required")
		}

		id, err := newClient().CreateProblem(cmd.Context(), in)
		if err != nil {
			return fmt.Errorf("create problem: %w", err)
		}
		fmt.Println(id)
		return nil
	},
}

var problemEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change the fields given as flags",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := problemFields(cmd)
		if err != nil {
			return err
		}
		if patch.Empty() {
			return fmt.Errorf("nothing to change: pass --title, --description or --solution")
		}
		if err := newClient().UpdateProblem(cmd.Context(), args[0], patch); err != nil {
			return fmt.Errorf("update problem: %w", err)
		}
		fmt.Println("Updated", args[0])
		return nil
	},
}

var problemRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a problem",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().DeleteProblem(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("delete problem: %w", err)
		}
		fmt.Println("Deleted", args[0])
		return nil
	},
}

var problemMoveCmd = &cobra.Command{
	Use:   "move <id> <target-id>",
	Short: "Move a problem to the position of another one",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl := reorder.New(newClient())
		if err := ctrl.Refresh(cmd.Context()); err != nil {
			return err
		}
		if err := ctrl.Move(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		for i, p := range ctrl.Items() {
			fmt.Printf("%3d. %s\n", i+1, p.Title)
		}
		return nil
	},
}

// problemFields collects the content flags that were set.
func problemFields(cmd *cobra.Command) (problem.Patch, error) {
	var patch problem.Patch
	flags := cmd.Flags()

	if flags.Changed("title") {
		v, _ := flags.GetString("title")
		patch.Title = &v
	}
	if flags.Changed("description") {
		v, _ := flags.GetString("description")
		patch.Description = &v
	}
	if flags.Changed("solution") {
		v, _ := flags.GetString("solution")
		patch.SolutionCode = &v
	}
	if flags.Changed("solution-file") {
		path, _ := flags.GetString("solution-file")
		data, err := os.ReadFile(path)
		if err != nil {
			return patch, fmt.Errorf("read solution: %w", err)
		}
		v := string(data)
		patch.SolutionCode = &v
	}
	return patch, nil
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

func init() {
	for _, c := range []*cobra.Command{problemAddCmd, problemEditCmd} {
		c.Flags().StringP("title", "t", "", "Problem title")
		c.Flags().StringP("description", "d", "", "Problem description shown to the learner")
		c.Flags().StringP("solution", "s", "", "Reference solution code")
		c.Flags().String("solution-file", "", "Read the reference solution from a file")
		c.MarkFlagsMutuallyExclusive("solution", "solution-file")
	}

	problemCmd.AddCommand(problemListCmd)
	problemCmd.AddCommand(problemShowCmd)
	problemCmd.AddCommand(problemAddCmd)
	problemCmd.AddCommand(problemEditCmd)
	problemCmd.AddCommand(problemRmCmd)
	problemCmd.AddCommand(problemMoveCmd)
}
