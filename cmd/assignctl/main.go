// Command assignctl runs the assignment engine once from the command line: for a
// single ticket, for every unassigned ticket, or as a read-only preview.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/assignment-engine/internal/api/dto"
	"github.com/spec-kit/assignment-engine/internal/app"
	"github.com/spec-kit/assignment-engine/internal/config"
	"github.com/spec-kit/assignment-engine/internal/domain"
	"github.com/spec-kit/assignment-engine/internal/observability"
)

type options struct {
	ticketID      string
	allUnassigned bool
	limit         int
	preview       bool
	category      string
	listRules     bool
	timeout       time.Duration
}

func main() {
	var opts options
	flags := pflag.NewFlagSet("assignctl", pflag.ExitOnError)
	flags.StringVar(&opts.ticketID, "ticket", "", "ticket id to assign (or preview with --preview)")
	flags.BoolVar(&opts.allUnassigned, "all-unassigned", false, "assign every unassigned open ticket")
	flags.IntVar(&opts.limit, "limit", 100, "maximum tickets for --all-unassigned")
	flags.BoolVar(&opts.preview, "preview", false, "evaluate rules without assigning")
	flags.StringVar(&opts.category, "category", "", "ticket category for a --preview without --ticket")
	flags.BoolVar(&opts.listRules, "list-rules", false, "print enabled rules in evaluation order")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall deadline")
	_ = flags.Parse(os.Args[1:])

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "assignctl:", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	if !opts.preview && !opts.allUnassigned && !opts.listRules && opts.ticketID == "" {
		return fmt.Errorf("one of --ticket, --all-unassigned, --preview or --list-rules is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	switch {
	case opts.listRules:
		rules, err := rt.Assignments.ListRules(ctx)
		if err != nil {
			return err
		}
		items := make([]dto.RuleResponse, 0, len(rules))
		for _, rule := range rules {
			items = append(items, dto.NewRuleResponse(rule))
		}
		return printJSON(items)
	case opts.preview && opts.ticketID != "":
		result, err := rt.Assignments.PreviewTicket(ctx, opts.ticketID)
		if err != nil {
			return err
		}
		return printJSON(dto.NewPreviewResponse(result))
	case opts.preview:
		result, err := rt.Assignments.Preview(ctx, domain.Ticket{Category: opts.category, Status: domain.TicketStatusOpen})
		if err != nil {
			return err
		}
		return printJSON(dto.NewPreviewResponse(result))
	case opts.allUnassigned:
		items, err := rt.Assignments.AssignUnassigned(ctx, opts.limit)
		if err != nil {
			return err
		}
		assigned := 0
		for _, item := range items {
			if item.Err != nil {
				fmt.Printf("%s\terror\t%v\n", item.TicketID, item.Err)
				continue
			}
			if item.Result.Assigned {
				assigned++
				fmt.Printf("%s\tassigned\t%s\t%s\n", item.TicketID, item.Result.AgentID, item.Result.RuleName)
				continue
			}
			fmt.Printf("%s\tskipped\t%s\n", item.TicketID, item.Result.Reason)
		}
		logger.Info("batch finished", zap.Int("tickets", len(items)), zap.Int("assigned", assigned))
		return nil
	default:
		result, err := rt.Assignments.Assign(ctx, opts.ticketID)
		if err != nil {
			return err
		}
		return printJSON(dto.NewAssignmentResponse(result))
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
