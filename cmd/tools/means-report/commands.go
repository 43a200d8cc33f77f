package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bankruptcy-workers/internal/casefile"
	"bankruptcy-workers/internal/common/errors"
	"bankruptcy-workers/internal/models"
	"bankruptcy-workers/internal/report"
)

// CaseService is the part of the case file service the CLI drives.
type CaseService interface {
	IncomeSummary(ctx context.Context, caseID string) (models.IncomeSummary, error)
	RecomputeIncome(ctx context.Context, caseID string, opts casefile.RecomputeOptions) (casefile.RecomputeResult, error)
	MeansTest(ctx context.Context, caseID string, asOf time.Time) (models.MeansTestResult, error)
}

// Opener builds the service from the config file named by --config. The
// returned func releases its connections.
type Opener func(ctx context.Context, configPath string) (CaseService, func(), error)

type options struct {
	configPath string
	format     string
	out        string
	asOf       string
	documents  []string
	now        func() time.Time
}

func newRootCmd(open Opener) *cobra.Command {
	opts := &options{now: func() time.Time { return time.Now().UTC() }}

	root := &cobra.Command{
		Use:           "means-report",
		Short:         "Recompute case income and export means test compliance reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default configs/config.yaml)")
	root.PersistentFlags().StringVar(&opts.format, "format", "table", "output format: table or xlsx")
	root.PersistentFlags().StringVarP(&opts.out, "out", "o", "", "write the report to this file instead of stdout")

	withService := func(cmd *cobra.Command, fn func(ctx context.Context, svc CaseService) error) error {
		if _, err := report.ParseFormat(opts.format); err != nil {
			return err
		}
		svc, closeFn, err := open(cmd.Context(), opts.configPath)
		if err != nil {
			return err
		}
		defer closeFn()
		return fn(cmd.Context(), svc)
	}

	recompute := &cobra.Command{
		Use:   "recompute <caseId>",
		Short: "Re-derive reconciled income from stored evidence and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc CaseService) error {
				result, err := svc.RecomputeIncome(ctx, args[0], casefile.RecomputeOptions{CollectDocuments: opts.documents})
				if err != nil {
					return err
				}
				for _, o := range result.UnmatchedOverrides {
					fmt.Fprintf(cmd.ErrOrStderr(), "override %q matched no source\n", o.SourceKey)
				}
				summary := result.Summary
				return opts.emit(cmd, report.Report{CaseID: args[0], Income: &summary, GeneratedAt: opts.now()})
			})
		},
	}
	recompute.Flags().StringSliceVar(&opts.documents, "documents", nil, "document ids to collect before reconciling")

	incomeCmd := &cobra.Command{
		Use:   "income <caseId>",
		Short: "Print the persisted income summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc CaseService) error {
				summary, err := svc.IncomeSummary(ctx, args[0])
				if err != nil {
					return err
				}
				return opts.emit(cmd, report.Report{CaseID: args[0], Income: &summary, GeneratedAt: opts.now()})
			})
		},
	}

	meansTest := &cobra.Command{
		Use:   "means-test <caseId>",
		Short: "Calculate the means test and print the full compliance report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var asOf time.Time
			if opts.asOf != "" {
				t, err := time.Parse("2006-01-02", opts.asOf)
				if err != nil {
					return fmt.Errorf("--as-of must be YYYY-MM-DD: %w", err)
				}
				asOf = t
			}
			return withService(cmd, func(ctx context.Context, svc CaseService) error {
				means, err := svc.MeansTest(ctx, args[0], asOf)
				if err != nil {
					return err
				}
				r := report.Report{CaseID: args[0], MeansTest: &means, GeneratedAt: opts.now()}
				summary, err := svc.IncomeSummary(ctx, args[0])
				switch {
				case err == nil:
					r.Income = &summary
				case !errors.HasCode(err, errors.ErrCodeIncomeNotComputed):
					return err
				}
				return opts.emit(cmd, r)
			})
		},
	}
	meansTest.Flags().StringVar(&opts.asOf, "as-of", "", "measurement date (default: the filing date)")

	root.AddCommand(recompute, incomeCmd, meansTest)
	return root
}

func (o *options) emit(cmd *cobra.Command, r report.Report) error {
	format, err := report.ParseFormat(o.format)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if o.out != "" {
		f, err := os.Create(o.out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", o.out, err)
		}
		defer f.Close()
		w = f
	}

	if format == report.FormatXLSX {
		if o.out == "" {
			return fmt.Errorf("--format xlsx needs --out")
		}
		data, err := report.XLSX(r)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	return report.WriteText(w, r)
}

// describe renders err for the terminal, including StandardError details.
func describe(err error) string {
	if stdErr, ok := errors.AsStandardError(err); ok {
		b, _ := json.Marshal(stdErr)
		return string(b)
	}
	return err.Error()
}
