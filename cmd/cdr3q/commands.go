package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cdr3q/internal/analytics"
	"cdr3q/internal/base"
	"cdr3q/internal/cmdlog"
	"cdr3q/internal/config"
	"cdr3q/internal/feature"
	"cdr3q/internal/jobs"
	"cdr3q/internal/metrics"
	"cdr3q/internal/model"
	"cdr3q/internal/qerr"
	"cdr3q/internal/qmodel"
	"cdr3q/internal/seqio"
	"cdr3q/internal/store/sqlitestore"
	"cdr3q/internal/theme"
)

func newInitCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("init", func() error {
				if err := config.Save(path, config.Default()); err != nil {
					return err
				}
				abs, _ := filepath.Abs(path)
				theme.PrintBanner(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), "Config written to:", abs)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&path, "path", "./cdr3q.yaml", "path to write config")
	return cmd
}

type sequenceFlags struct {
	data string
	gen  string
}

func (f *sequenceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.data, "data", "", "data set (csv/tsv: cdr3[,v,j])")
	cmd.Flags().StringVar(&f.gen, "gen", "", "generated set (csv/tsv: cdr3[,v,j])")
	_ = cmd.MarkFlagRequired("data")
	_ = cmd.MarkFlagRequired("gen")
}

func (f *sequenceFlags) read() (data, gen []model.Sequence, err error) {
	if data, err = seqio.ReadFile(f.data); err != nil {
		return nil, nil, err
	}
	if gen, err = seqio.ReadFile(f.gen); err != nil {
		return nil, nil, err
	}
	return data, gen, nil
}

// buildModel loads both sets and installs them in a fresh model with seeded
// parameters.
func buildModel(cfg config.Config, seqs *sequenceFlags) (*qmodel.Model, *base.Model, error) {
	data, gen, err := seqs.read()
	if err != nil {
		return nil, nil, err
	}
	b := base.New()
	m, err := qmodel.New(b, jobs.NewGenes(cfg), data, gen, qmodel.Options{
		MinL:         cfg.Model.MinL,
		MaxL:         cfg.Model.MaxL,
		Alphabet:     cfg.Model.Alphabet,
		IncludeGenes: cfg.Model.IncludeGenes,
		Chain:        cfg.Model.ChainType,
		Workers:      cfg.Oracle.Workers,
		Seed:         cfg.Sampling.Seed,
	})
	if err != nil {
		return nil, nil, err
	}
	b.SeedParams(cfg.Model.Pseudocount)
	return m, b, nil
}

func newFeaturesCmd() *cobra.Command {
	var seqs sequenceFlags
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Print the feature space built from the sequence sets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("features", func() error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				m, b, err := buildModel(cfg, &seqs)
				if err != nil {
					return err
				}
				idx := m.Index()
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintf(w, "chain\t%s\n", m.Chain())
				fmt.Fprintf(w, "lengths\t%d..%d\n", idx.MinL(), idx.MaxL())
				fmt.Fprintf(w, "alphabet\t%s\n", idx.Alphabet())
				fmt.Fprintf(w, "features\t%d\n", idx.Len())
				fmt.Fprintf(w, "position groups\t%d\n", len(idx.Groups()))
				fmt.Fprintf(w, "gene pairs\t%d\n", len(idx.VFamilies())*len(idx.JFamilies()))
				fmt.Fprintf(w, "data sequences\t%d\n", len(b.Sequences(model.SetData)))
				fmt.Fprintf(w, "gen sequences\t%d\n", len(b.Sequences(model.SetGen)))
				return w.Flush()
			})
		},
	}
	seqs.register(cmd)
	return cmd
}

func newRunCmd() *cobra.Command {
	var (
		seqs sequenceFlags
		out  string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sample the generated set and write pgen/ppost per sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("run", func() error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				data, gen, err := seqs.read()
				if err != nil {
					return err
				}
				metrics.StartServer(cfg.Metrics.Addr)

				var db *sqlitestore.DB
				if cfg.Storage.DBPath != "" {
					if db, err = sqlitestore.Open(cfg.Storage.DBPath); err != nil {
						return err
					}
					defer db.Close()
				}
				o, err := jobs.NewOracle(cfg, db)
				if err != nil {
					return err
				}
				deps := jobs.Deps{Oracle: o, Genes: jobs.NewGenes(cfg)}
				if db != nil {
					deps.Store = db
				}

				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				res, runErr := jobs.RunSelection(ctx, cfg, data, gen, deps)
				if runErr != nil && !errors.Is(runErr, qerr.ErrAllRejected) {
					return runErr
				}
				if err := writeOut(cmd.OutOrStdout(), out, res.Rows()); err != nil {
					return err
				}
				return runErr
			})
		},
	}
	seqs.register(cmd)
	cmd.Flags().StringVar(&out, "out", "-", "output TSV path (- for stdout)")
	return cmd
}

func writeOut(stdout io.Writer, path string, rows []seqio.Row) error {
	if path == "-" || path == "" {
		return seqio.WriteTable(stdout, rows)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := seqio.WriteTable(f, rows); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func newReportCmd() *cobra.Command {
	var (
		seqs   sequenceFlags
		length int
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print P(L), P(V) and P(J) for the data, generated and model marginals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("report", func() error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				m, b, err := buildModel(cfg, &seqs)
				if err != nil {
					return err
				}
				if err := m.ComputeEnergies(); err != nil {
					return err
				}
				if err := b.UpdateModelMarginals(m.EnergiesGen()); err != nil {
					return err
				}
				sets := []struct {
					name string
					marg []float64
				}{
					{"data", b.DataMarginals()},
					{"gen", b.GenMarginals()},
					{"model", b.ModelMarginals()},
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, s := range sets {
					sum, err := analytics.Summarize(s.name, s.marg, m.Index())
					if err != nil {
						return err
					}
					writeSummary(w, sum)
				}
				if length > 0 {
					for _, s := range sets {
						tab, err := analytics.PositionTable(s.marg, m.Index(), length)
						if err != nil {
							return err
						}
						writePositionTable(w, s.name, m.Index(), length, tab)
					}
				}
				return w.Flush()
			})
		},
	}
	seqs.register(cmd)
	cmd.Flags().IntVar(&length, "length", 0, "also print the amino-acid table for this CDR3 length")
	return cmd
}

func writeSummary(w io.Writer, s analytics.Summary) {
	for _, group := range [][]analytics.Bin{s.Lengths, s.V, s.J} {
		for _, bin := range group {
			fmt.Fprintf(w, "%s\t%s\t%.6g\n", s.Name, bin.Label, bin.P)
		}
	}
}

func writePositionTable(w io.Writer, name string, idx *feature.Index, l int, tab [][]float64) {
	fmt.Fprintf(w, "%s l%d", name, l)
	for _, aa := range idx.Alphabet() {
		fmt.Fprintf(w, "\t%c", aa)
	}
	fmt.Fprintln(w)
	for pos, row := range tab {
		fmt.Fprintf(w, "%d", pos)
		for _, p := range row {
			fmt.Fprintf(w, "\t%.4f", p)
		}
		fmt.Fprintln(w)
	}
}

func newRunsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored sampling runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("runs", func() error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				if cfg.Storage.DBPath == "" {
					return fmt.Errorf("%w: no storage.dbPath configured", qerr.ErrConfiguration)
				}
				db, err := sqlitestore.Open(cfg.Storage.DBPath)
				if err != nil {
					return err
				}
				defer db.Close()
				runs, err := db.LoadRuns(context.Background(), limit)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "id\ttime\tchain\tupper_bound\tz\taccepted\ttotal")
				for _, r := range runs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%s\t%d\t%d\n", r.ID, r.TS.Format("2006-01-02T15:04:05Z"), r.Chain,
						r.UpperBound, strconv.FormatFloat(r.Z, 'g', 6, 64), r.Accepted, len(r.Mask))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to list")
	return cmd
}
