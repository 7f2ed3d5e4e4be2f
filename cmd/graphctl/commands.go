package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"districtgraph/application/services"
	"districtgraph/domain/core/entities"
	"districtgraph/domain/core/valueobjects"

	"github.com/spf13/cobra"
)

// Engine is the part of the engine the commands drive
type Engine interface {
	GetUnit(ctx context.Context, id string) (*entities.Unit, error)
	GetGroup(ctx context.Context, id string) (*entities.Group, error)
	DeleteUnit(ctx context.Context, id string) error
	ReconcileUnit(ctx context.Context, incoming *entities.Unit) (*services.ReconcileResult, error)
	MergeUnits(ctx context.Context, req services.MergeRequest) (*services.MergeResult, error)
	Audit(ctx context.Context) (*services.AuditReport, error)
}

// EngineFactory opens an engine for one command invocation
type EngineFactory func(ctx context.Context) (Engine, func(), error)

// errAuditFailed makes audit --strict exit non-zero
var errAuditFailed = errors.New("audit found adjacency violations")

func newRootCmd(open EngineFactory) *cobra.Command {
	root := &cobra.Command{
		Use:           "graphctl",
		Short:         "Inspect and edit the precinct adjacency graph",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newGetCmd(open),
		newGroupCmd(open),
		newDeleteCmd(open),
		newReconcileCmd(open),
		newMergeCmd(open),
		newAuditCmd(open),
	)
	return root
}

// withEngine opens the engine, runs fn and prints its result as JSON
func withEngine(cmd *cobra.Command, open EngineFactory, fn func(ctx context.Context, engine Engine) (interface{}, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	engine, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	out, err := fn(ctx, engine)
	if err == nil || errors.Is(err, errAuditFailed) {
		if encErr := printJSON(cmd.OutOrStdout(), out); encErr != nil && err == nil {
			err = encErr
		}
	}
	return err
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newGetCmd(open EngineFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "get <unit-id>",
		Short: "Print a unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, open, func(ctx context.Context, engine Engine) (interface{}, error) {
				return engine.GetUnit(ctx, args[0])
			})
		},
	}
}

func newGroupCmd(open EngineFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "group <group-id>",
		Short: "Print a group and its demographic totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, open, func(ctx context.Context, engine Engine) (interface{}, error) {
				return engine.GetGroup(ctx, args[0])
			})
		},
	}
}

func newDeleteCmd(open EngineFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <unit-id>",
		Short: "Delete a unit without repairing its neighbours",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, open, func(ctx context.Context, engine Engine) (interface{}, error) {
				if err := engine.DeleteUnit(ctx, args[0]); err != nil {
					return nil, err
				}
				return map[string]string{"deleted": args[0]}, nil
			})
		},
	}
}

func newReconcileCmd(open EngineFactory) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Save an edited unit read as JSON and repair its neighbours",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			unit, err := readUnit(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			return withEngine(cmd, open, func(ctx context.Context, engine Engine) (interface{}, error) {
				return engine.ReconcileUnit(ctx, unit)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON unit file, - for stdin")
	return cmd
}

func readUnit(stdin io.Reader, file string) (*entities.Unit, error) {
	r := stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var unit entities.Unit
	if err := json.NewDecoder(r).Decode(&unit); err != nil {
		return nil, fmt.Errorf("failed to decode unit: %w", err)
	}
	return &unit, nil
}

func newMergeCmd(open EngineFactory) *cobra.Command {
	var demographics map[string]int

	cmd := &cobra.Command{
		Use:   "merge <primary-id> <absorbed-id>",
		Short: "Fold the absorbed unit into the primary",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := services.MergeRequest{PrimaryID: args[0], AbsorbedID: args[1]}
			if cmd.Flags().Changed("demographics") {
				req.Demographics = valueobjects.Demographics(demographics)
			}
			return withEngine(cmd, open, func(ctx context.Context, engine Engine) (interface{}, error) {
				return engine.MergeUnits(ctx, req)
			})
		},
	}
	cmd.Flags().StringToIntVar(&demographics, "demographics", nil, "merged unit snapshot, e.g. white=10,asian=3")
	return cmd
}

func newAuditCmd(open EngineFactory) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report asymmetric, self-referencing and dangling adjacency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, open, func(ctx context.Context, engine Engine) (interface{}, error) {
				report, err := engine.Audit(ctx)
				if err != nil {
					return nil, err
				}
				if strict && !report.Clean() {
					return report, errAuditFailed
				}
				return report, nil
			})
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when the audit is not clean")
	return cmd
}
