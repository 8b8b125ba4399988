package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/codecoach/internal/conversation"
	"github.com/abhisek/codecoach/internal/prompt"
	"github.com/abhisek/codecoach/internal/tutor"
)

var askCmd = &cobra.Command{
	Use:   "ask <problem-id> <message>...",
	Short: "Send one message to the tutor and print the reply",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		grade, _ := cmd.Flags().GetBool("grade")
		noStream, _ := cmd.Flags().GetBool("no-stream")

		c, svc, state, err := newTutor(stderrLogger())
		if err != nil {
			return err
		}
		defer state.Close()

		p, err := c.GetProblem(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get problem: %w", err)
		}

		mode := prompt.Tutor
		if grade {
			mode = prompt.Grading
		}

		err = svc.Send(cmd.Context(), tutor.Request{
			Problem:   *p,
			Message:   strings.Join(args[1:], " "),
			Mode:      mode,
			Streaming: !noStream,
			OnDelta: func(delta string) {
				fmt.Print(delta)
			},
		})
		fmt.Println()

		var persist *conversation.PersistError
		if errors.As(err, &persist) {
			return fmt.Errorf("reply not saved: %w", err)
		}
		return err
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the local conversation history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List problems that have a conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := openClientState(stderrLogger())
		if err != nil {
			return err
		}
		defer state.Close()

		ids := state.convs.ProblemIDs()
		if len(ids) == 0 {
			fmt.Println("No conversations yet.")
			return nil
		}
		for _, id := range ids {
			fmt.Printf("%-36s  %d turns\n", id, len(state.convs.Turns(id)))
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <problem-id>",
	Short: "Print one conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := openClientState(stderrLogger())
		if err != nil {
			return err
		}
		defer state.Close()

		turns := state.convs.Turns(args[0])
		if len(turns) == 0 {
			fmt.Println("No conversation for", args[0])
			return nil
		}
		for _, t := range turns {
			label := "Tutor"
			if t.Role == conversation.RoleUser {
				label = "You"
			}
			fmt.Printf("%s:\n%s\n\n", label, t.Content)
		}
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear <problem-id>",
	Short: "Delete one conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := openClientState(stderrLogger())
		if err != nil {
			return err
		}
		defer state.Close()

		if err := state.convs.Clear(args[0]); err != nil {
			return err
		}
		fmt.Println("Cleared", args[0])
		return nil
	},
}

func init() {
	askCmd.Flags().BoolP("grade", "g", false, "Grade the message as a code submission")
	askCmd.Flags().Bool("no-stream", false, "Wait for the whole reply instead of streaming it")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyClearCmd)
}
