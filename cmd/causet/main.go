package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cognicore/causet/pkg/causet"
	"github.com/cognicore/causet/pkg/causet/config"
	"github.com/cognicore/causet/pkg/causet/internalerr"
	"github.com/cognicore/causet/pkg/causet/model"
	"github.com/cognicore/causet/pkg/causet/store/sqlite"
)

// Exit codes, stable for scripting.
const (
	exitOK             = 0
	exitMalformedModel = 1
	exitQueryParse     = 2
	exitDoCalculus     = 3
	exitIO             = 4
)

type cliOptions struct {
	graphFile  string
	configFile string
	cacheFile  string
	seed       int64
	minimal    bool
	policy     string
	depthBound int
}

func main() {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "causet",
		Short:         "Causal inference over discrete Bayesian networks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.graphFile, "graph-file", "", "Path to a model file (.json/.yml/.yaml)")
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to an engine config file")
	root.PersistentFlags().StringVar(&opts.cacheFile, "cache-file", "", "Optional SQLite result cache")
	root.PersistentFlags().Int64Var(&opts.seed, "seed", 0, "RNG seed")
	root.PersistentFlags().BoolVar(&opts.minimal, "minimal-sets", false, "Report only minimal deconfounding sets")
	root.PersistentFlags().StringVar(&opts.policy, "deconfounding-policy", "", "Deconfounding policy: ask, random or all")
	root.PersistentFlags().IntVar(&opts.depthBound, "depth-bound", 0, "Do-calculus search depth bound")

	root.AddCommand(
		newPCmd(opts),
		newBackdoorsCmd(opts),
		newDeconfoundCmd(opts),
		newJDTCmd(opts),
		newTopologyCmd(opts),
		newSwitchFileCmd(opts),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(classify(err))
	}
}

func classify(err error) int {
	switch {
	case errors.Is(err, internalerr.ErrMalformedModel),
		errors.Is(err, internalerr.ErrCyclicGraph),
		errors.Is(err, internalerr.ErrMalformedTable),
		errors.Is(err, internalerr.ErrInvalidConfig):
		return exitMalformedModel
	case errors.Is(err, internalerr.ErrQueryShape):
		return exitQueryParse
	case errors.Is(err, internalerr.ErrDoCalculusFailed),
		errors.Is(err, internalerr.ErrIndeterminable),
		errors.Is(err, internalerr.ErrZeroProbability),
		errors.Is(err, internalerr.ErrNumericDrift),
		errors.Is(err, internalerr.ErrInconsistentDeconfounding):
		return exitDoCalculus
	default:
		return exitIO
	}
}

// loadConfig merges the config file, if any, with flag overrides.
func loadConfig(cmd *cobra.Command, opts *cliOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.configFile != "" {
		loaded, err := config.Load(opts.configFile)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = opts.seed
	}
	if cmd.Flags().Changed("minimal-sets") {
		cfg.MinimalSets = opts.minimal
	}
	if opts.policy != "" {
		cfg.DeconfoundingPolicy = config.Policy(opts.policy)
	}
	if opts.depthBound > 0 {
		cfg.DepthBound = opts.depthBound
	}
	return cfg, cfg.Validate()
}

// resolveGraphFile picks the model file: the flag, the configured file,
// or the single model file in the configured folder.
func resolveGraphFile(opts *cliOptions, cfg config.Config) (string, error) {
	if opts.graphFile != "" {
		return opts.graphFile, nil
	}
	if cfg.GraphFile != "" {
		return filepath.Join(cfg.GraphFileFolder, cfg.GraphFile), nil
	}
	files, err := listModelFiles(cfg.GraphFileFolder)
	if err != nil {
		return "", err
	}
	if len(files) != 1 {
		return "", fmt.Errorf("%d model files in %s; pass --graph-file or run switch-file", len(files), cfg.GraphFileFolder)
	}
	return filepath.Join(cfg.GraphFileFolder, files[0]), nil
}

func listModelFiles(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yml", ".yaml":
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func newEngine(cmd *cobra.Command, opts *cliOptions) (*causet.Engine, config.Config, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, cfg, err
	}
	path, err := resolveGraphFile(opts, cfg)
	if err != nil {
		return nil, cfg, err
	}
	m, err := model.Load(path)
	if err != nil {
		return nil, cfg, err
	}

	engineOpts := causet.Options{
		Model:   m,
		Config:  cfg,
		Chooser: promptChooser(cmd),
	}
	if opts.cacheFile != "" {
		st, err := sqlite.Open(cmd.Context(), opts.cacheFile)
		if err != nil {
			return nil, cfg, err
		}
		engineOpts.Store = st
	}

	engine, err := causet.New(engineOpts)
	if err != nil {
		return nil, cfg, err
	}
	return engine, cfg, nil
}

// promptChooser asks the user to pick a deconfounding set.
func promptChooser(cmd *cobra.Command) causet.Chooser {
	return func(sets [][]string) (int, error) {
		fmt.Fprintln(cmd.OutOrStdout(), "Select a deconfounding set:")
		for i, set := range sets {
			fmt.Fprintf(cmd.OutOrStdout(), "  %d) {%s}\n", i+1, strings.Join(set, ", "))
		}
		reader := bufio.NewReader(cmd.InOrStdin())
		for {
			fmt.Fprint(cmd.OutOrStdout(), " Selection: ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return 0, err
			}
			n, err := strconv.Atoi(strings.TrimSpace(line))
			if err == nil && n >= 1 && n <= len(sets) {
				return n - 1, nil
			}
		}
	}
}

func newPCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "p <query>",
		Short: "Compute a probability, e.g. 'Y = y | do(X = x), Z = z'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, cfg, err := newEngine(cmd, opts)
			if err != nil {
				return err
			}
			defer engine.Close()

			head, body, err := causet.ParseQuery(args[0])
			if err != nil {
				return err
			}
			p, err := engine.P(context.Background(), head, body)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %.*f\n", model.QueryKey(head, body), cfg.Precision, p)
			if d, ok := engine.LastDerivation(); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "derivation %s (%d steps)\n", d.ID, len(d.Steps))
			}
			return nil
		},
	}
}

func newBackdoorsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backdoors <src> <dst> [blockers]",
		Short: "List unblocked backdoor paths between comma-separated vertex sets",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := newEngine(cmd, opts)
			if err != nil {
				return err
			}
			defer engine.Close()

			var blockers []string
			if len(args) == 3 {
				blockers = splitNames(args[2])
			}
			paths, err := engine.BackdoorPaths(splitNames(args[0]), splitNames(args[1]), blockers)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no unblocked backdoor paths")
				return nil
			}
			for _, path := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(path, " - "))
			}
			return nil
		},
	}
}

func newDeconfoundCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deconfound <src> <dst>",
		Short: "List deconfounding sets between comma-separated vertex sets",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := newEngine(cmd, opts)
			if err != nil {
				return err
			}
			defer engine.Close()

			sets, err := engine.DeconfoundingSets(splitNames(args[0]), splitNames(args[1]))
			if err != nil {
				return err
			}
			for _, set := range sets {
				fmt.Fprintf(cmd.OutOrStdout(), "{%s}\n", strings.Join(set, ", "))
			}
			return nil
		},
	}
}

func newJDTCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "jdt",
		Short: "Print the joint distribution table over observable variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, cfg, err := newEngine(cmd, opts)
			if err != nil {
				return err
			}
			defer engine.Close()

			rows, err := engine.JointDistributionTable(context.Background())
			if err != nil {
				return err
			}
			for _, row := range rows {
				parts := make([]string, len(row.Assignment))
				for i, a := range row.Assignment {
					parts[i] = a.String()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %.*f\n", strings.Join(parts, ", "), cfg.Precision, row.P)
			}
			return nil
		},
	}
}

func newTopologyCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "topology",
		Short: "Print the canonical topological order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := newEngine(cmd, opts)
			if err != nil {
				return err
			}
			defer engine.Close()

			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(engine.TopologicalOrder(), " "))
			return nil
		},
	}
}

func newSwitchFileCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "switch-file [name-or-index]",
		Short: "List model files in the graph folder and record a selection",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			files, err := listModelFiles(cfg.GraphFileFolder)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				for i, name := range files {
					marker := " "
					if name == cfg.GraphFile {
						marker = "*"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %d) %s\n", marker, i+1, name)
				}
				return nil
			}

			selected := args[0]
			if n, err := strconv.Atoi(selected); err == nil {
				if n < 1 || n > len(files) {
					return fmt.Errorf("selection %d out of range", n)
				}
				selected = files[n-1]
			} else if !contains(files, selected) {
				return fmt.Errorf("no model file %q in %s", selected, cfg.GraphFileFolder)
			}

			cfg.GraphFile = selected
			if opts.configFile == "" {
				return errors.New("--config required to record the selection")
			}
			if err := cfg.Save(opts.configFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "switched to %s\n", selected)
			return nil
		},
	}
}

func splitNames(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func contains(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}
