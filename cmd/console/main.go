// Command console parses, compiles and runs nodlang programs from a
// terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"nodlang/pkg/asm"
	"nodlang/pkg/config"
	"nodlang/pkg/ctxlog"
	"nodlang/pkg/graph"
	"nodlang/pkg/lang"
	"nodlang/pkg/nodlang"
	"nodlang/pkg/session"
	"nodlang/pkg/utils"
)

var rootCmd = &cobra.Command{
	Use:               "nodlang",
	Short:             "Parse, compile and run nodlang programs",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run a program and print its variables",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

var debugCmd = &cobra.Command{
	Use:   "debug <file>",
	Short: "Run a program node by node, printing each result",
	Args:  cobra.ExactArgs(1),
	RunE:  runDebug,
}

var asmCmd = &cobra.Command{
	Use:   "asm <file>",
	Short: "Print the assembly of a program",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsm,
}

var fmtCmd = &cobra.Command{
	Use:   "fmt <file>",
	Short: "Print a program rebuilt from its graph",
	Args:  cobra.ExactArgs(1),
	RunE:  runFmt,
}

var tokensCmd = &cobra.Command{
	Use:   "tokens <file>",
	Short: "Print the token ribbon of a program",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokens,
}

var checkCmd = &cobra.Command{
	Use:   "check <path>...",
	Short: "Parse and compile every program under the given files, directories or patterns",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

var (
	configPath string
	logLevel   string
	strictFlag bool
	maxSteps   int
	showAsm    bool
	writeFlag  bool
	annotate   bool

	cfg config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.FileName, "Path to the settings file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&strictFlag, "strict", false, "Fail on unresolved identifiers instead of keeping abstract nodes")
	runCmd.Flags().IntVar(&maxSteps, "max-steps", 0, "Abort after this many instructions (0 keeps the configured budget)")
	runCmd.Flags().BoolVar(&showAsm, "show-asm", false, "Print the assembly before running")
	asmCmd.Flags().BoolVar(&annotate, "annotate", false, "Show the source line of each instruction")
	fmtCmd.Flags().BoolVarP(&writeFlag, "write", "w", false, "Write the result back to the file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(asmCmd)
	rootCmd.AddCommand(fmtCmd)
	rootCmd.AddCommand(tokensCmd)
	rootCmd.AddCommand(checkCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the settings, applies the flags over them and puts the
// logger in the command context.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("strict") {
		cfg.Strict = strictFlag
	}
	if flags.Changed("max-steps") {
		cfg.MaxSteps = maxSteps
	}
	if flags.Changed("show-asm") {
		cfg.ShowAsm = showAsm
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.Level()}))
	cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))
	return nil
}

// open reads path into a new session.
func open(ctx context.Context, path string) (*session.Session, error) {
	src, _, err := utils.ReadSource(path)
	if err != nil {
		return nil, err
	}
	s := session.New(ctx, session.WithStrict(cfg.Strict), session.WithMaxSteps(cfg.MaxSteps))
	s.SetSource(src)
	return s, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := open(ctx, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if cfg.ShowAsm {
		code, err := s.Compile(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Generated Assembly:\n%s\n", code)
	}
	if err := s.Run(ctx); err != nil {
		return fmt.Errorf("run %s: %w", args[0], err)
	}
	printVariables(out, s.Graph())
	fmt.Fprintf(out, "result: %s\n", s.VM().LastResult())
	return nil
}

// printVariables lists the variables of the root scope in declaration
// order.
func printVariables(w io.Writer, g *graph.Graph) {
	sc := g.RootScope()
	if sc == nil {
		return
	}
	for _, v := range sc.Variables() {
		p := v.Value()
		if p.Value.Type() == lang.String {
			fmt.Fprintf(w, "%s %s = %q\n", p.Type, v.Name, p.Value.AsString())
			continue
		}
		fmt.Fprintf(w, "%s %s = %s\n", p.Type, v.Name, p.Value)
	}
}

func runDebug(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := open(ctx, args[0])
	if err != nil {
		return err
	}
	if err := s.Debug(ctx); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	g := s.Graph()
	for step := 1; ; step++ {
		more, err := s.StepOver()
		if err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}
		if !more {
			break
		}
		in, _ := s.VM().NextInstr()
		label := in.Comment
		if n := g.Node(s.VM().NextNode()); n != nil && label == "" {
			label = n.Name
		}
		fmt.Fprintf(out, "%4d  %-24s rax=%s\n", step, label, s.VM().LastResult())
	}
	printVariables(out, g)
	return nil
}

func runAsm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := open(ctx, args[0])
	if err != nil {
		return err
	}
	code, err := s.Compile(ctx)
	if err != nil {
		return err
	}
	if annotate {
		fmt.Fprint(cmd.OutOrStdout(), asm.Annotate(code, s.Source()))
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), code)
	return nil
}

func runFmt(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := open(ctx, args[0])
	if err != nil {
		return err
	}
	if err := s.Tick(ctx); err != nil {
		return err
	}
	text, err := nodlang.Serialize(s.Language(), s.Graph())
	if err != nil {
		return err
	}
	if !writeFlag {
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	}
	full, _, err := utils.GetPathInfo(args[0])
	if err != nil {
		return err
	}
	return os.WriteFile(full, []byte(text), 0o644)
}

func runTokens(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := open(ctx, args[0])
	if err != nil {
		return err
	}
	// A parse error still leaves the ribbon for inspection.
	if err := s.Tick(ctx); err != nil {
		ctxlog.FromContext(ctx).Warn("parse failed", "file", args[0], "error", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), s.Parser().Ribbon())
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	files, err := utils.ExpandSources(args)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	failed := 0
	for _, f := range files {
		s, err := open(ctx, f)
		if err == nil {
			_, err = s.Compile(ctx)
		}
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", filepath.ToSlash(f), err)
			continue
		}
		fmt.Fprintf(out, "ok   %s\n", filepath.ToSlash(f))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d programs failed", failed, len(files))
	}
	return nil
}
