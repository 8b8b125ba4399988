package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/codecoach/internal/llm"
	"github.com/abhisek/codecoach/internal/store"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect completion requests recorded by the server",
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent completion requests, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		route, _ := cmd.Flags().GetString("route")
		failed, _ := cmd.Flags().GetBool("failed")
		if route != "" && !llm.ValidPurpose(route) {
			return fmt.Errorf("unknown route %q (want one of %s)", route, strings.Join(llm.Purposes, ", "))
		}

		s, err := openServerStore()
		if err != nil {
			return err
		}
		defer s.Close()

		// Failed requests are filtered client side, so fetch a wider window.
		query := store.QueryOpts{Limit: limit, Purpose: route}
		if failed {
			query.Limit = 0
		}
		events, err := s.EventRepo().QueryLLMEvents(cmd.Context(), query)
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}
		if failed {
			events = failedOnly(events, limit)
		}

		printEvents(cmd.OutOrStdout(), events)
		return nil
	},
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show the prompt and reply of one completion request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}

		s, err := openServerStore()
		if err != nil {
			return err
		}
		defer s.Close()

		e, err := s.EventRepo().GetLLMEvent(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		if e == nil {
			return fmt.Errorf("event %d not found", id)
		}

		printEvent(cmd.OutOrStdout(), e)
		return nil
	},
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show token usage and estimated cost per chat route",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openServerStore()
		if err != nil {
			return err
		}
		defer s.Close()

		usage, err := s.EventRepo().LLMUsageByRoute(cmd.Context())
		if err != nil {
			return fmt.Errorf("query usage: %w", err)
		}

		printRouteStats(cmd.OutOrStdout(), usage)
		return nil
	},
}

func failedOnly(events []store.LLMRequestEventRecord, limit int) []store.LLMRequestEventRecord {
	var out []store.LLMRequestEventRecord
	for _, e := range events {
		if e.Success {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func printEvents(w io.Writer, events []store.LLMRequestEventRecord) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No completion requests recorded.")
		return
	}

	fmt.Fprintf(w, "%-5s  %-19s  %-11s  %-24s  %7s  %9s  %s\n",
		"ID", "Time", "Route", "Model", "Ms", "Cost", "Result")
	fmt.Fprintln(w, strings.Repeat("─", 96))
	for _, e := range events {
		result := "ok"
		if !e.Success {
			result = "failed: " + truncate(e.ErrorMessage, 24)
		}
		fmt.Fprintf(w, "%-5d  %-19s  %-11s  %-24s  %7d  %9s  %s\n",
			e.ID,
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Purpose,
			truncate(e.Model, 24),
			e.LatencyMs,
			eventCost(e.Model, e.InputTokens, e.OutputTokens),
			result,
		)
	}
}

func printEvent(w io.Writer, e *store.LLMRequestEventRecord) {
	fmt.Fprintf(w, "ID:        %d\n", e.ID)
	fmt.Fprintf(w, "Time:      %s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Route:     %s\n", e.Purpose)
	fmt.Fprintf(w, "Provider:  %s (%s)\n", e.Provider, e.Model)
	fmt.Fprintf(w, "Tokens:    %d in / %d out, %s\n", e.InputTokens, e.OutputTokens, eventCost(e.Model, e.InputTokens, e.OutputTokens))
	fmt.Fprintf(w, "Latency:   %dms\n", e.LatencyMs)
	if e.ErrorMessage != "" {
		fmt.Fprintf(w, "Error:     %s\n", e.ErrorMessage)
	}

	section(w, "PROMPT", e.RequestBody)
	reply := e.ResponseBody
	if e.Purpose == llm.PurposeChatStream && !e.Success && reply != "" {
		reply += "\n(stream ended early)"
	}
	section(w, "REPLY", reply)
}

func section(w io.Writer, title, body string) {
	sep := strings.Repeat("─", 60)
	fmt.Fprintln(w)
	fmt.Fprintln(w, sep)
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, sep)
	if body == "" {
		body = "(not captured)"
	}
	fmt.Fprintln(w, body)
}

// printRouteStats renders one row per route and model, with a subtotal per
// route. Rows for models without known pricing are left out of the cost
// totals and named at the end.
func printRouteStats(w io.Writer, usage []store.LLMUsageStat) {
	if len(usage) == 0 {
		fmt.Fprintln(w, "No completion requests recorded.")
		return
	}

	rule := strings.Repeat("─", 84)
	fmt.Fprintf(w, "%-13s  %-24s  %6s  %9s  %9s  %7s  %9s\n",
		"Route", "Model", "Calls", "Input", "Output", "Avg Ms", "Cost")
	fmt.Fprintln(w, rule)

	type subtotal struct {
		calls, in, out int
		cost           float64
	}
	var (
		order    []string
		byRoute  = map[string]*subtotal{}
		unpriced []string
		total    subtotal
	)
	for _, u := range usage {
		st, ok := byRoute[u.Purpose]
		if !ok {
			st = &subtotal{}
			byRoute[u.Purpose] = st
			order = append(order, u.Purpose)
		}
		cost := "?"
		if c := llm.LookupCost(u.Model); c != nil {
			usd := c.Cost(u.InputTokens, u.OutputTokens)
			st.cost += usd
			total.cost += usd
			cost = formatCost(usd)
		} else {
			unpriced = append(unpriced, u.Model)
		}
		st.calls += u.Calls
		st.in += u.InputTokens
		st.out += u.OutputTokens
		total.calls += u.Calls
		total.in += u.InputTokens
		total.out += u.OutputTokens

		fmt.Fprintf(w, "%-13s  %-24s  %6d  %9d  %9d  %7d  %9s\n",
			u.Purpose, truncate(u.Model, 24), u.Calls, u.InputTokens, u.OutputTokens, u.AvgLatencyMs, cost)
	}

	fmt.Fprintln(w, rule)
	for _, route := range order {
		st := byRoute[route]
		fmt.Fprintf(w, "%-13s  %-24s  %6d  %9d  %9d  %7s  %9s\n",
			route, "(all models)", st.calls, st.in, st.out, "", formatCost(st.cost))
	}
	label := "TOTAL"
	if len(unpriced) > 0 {
		label = "TOTAL (partial)"
	}
	fmt.Fprintf(w, "%-39s  %6d  %9d  %9d  %7s  %9s\n",
		label, total.calls, total.in, total.out, "", formatCost(total.cost))

	if len(unpriced) > 0 {
		fmt.Fprintf(w, "\nPricing unavailable for: %s\n", strings.Join(unpriced, ", "))
	}
}

func eventCost(model string, in, out int) string {
	c := llm.LookupCost(model)
	if c == nil {
		return "?"
	}
	return formatCost(c.Cost(in, out))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of requests to show")
	llmListCmd.Flags().StringP("route", "r", "", "Only show one route (chat or chat-stream)")
	llmListCmd.Flags().Bool("failed", false, "Only show failed requests")

	llmCmd.AddCommand(llmListCmd)
	llmCmd.AddCommand(llmViewCmd)
	llmCmd.AddCommand(llmStatsCmd)
}
