package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/ftl/cwskim/audio"
	"github.com/ftl/cwskim/skim"
	"github.com/ftl/cwskim/trace"
)

var rootFlags = struct {
	sampleRate   int
	printChars   int
	int16Input   bool
	float32Input bool
	showSymbols  bool
	diagnostic   bool
	debug        bool

	traceSpectrum string
	estimator     string
}{}

var rootCmd = &cobra.Command{
	Use:   "cwskim [input] [output]",
	Short: "cwskim decodes Morse code on many channels of a wideband audio stream at once",
	Args:  cobra.MaximumNArgs(2),
	RunE:  run,
}

func init() {
	flags := rootCmd.Flags()
	flags.IntVarP(&rootFlags.sampleRate, "rate", "r", 48000, "input sample rate in Hz, clamped to [8000, 48000]")
	flags.IntVarP(&rootFlags.printChars, "chars", "n", 8, "characters buffered per channel before printing, clamped to [1, 32]")
	flags.BoolVarP(&rootFlags.int16Input, "int16", "i", false, "input is 16-bit signed little-endian integers")
	flags.BoolVarP(&rootFlags.float32Input, "float32", "f", false, "input is 32-bit little-endian floats (default)")
	flags.BoolVarP(&rootFlags.showSymbols, "symbols", "c", false, "decoder also emits a dit/dah trace to standard output")
	flags.BoolVarP(&rootFlags.diagnostic, "diagnostic", "d", false, "emit a per-frame diagnostic line to standard error")
	flags.BoolVar(&rootFlags.debug, "debug", false, "enable debug logging")

	flags.StringVar(&rootFlags.traceSpectrum, "trace-spectrum", "", "write raw spectrum diagnostics to this file")
	flags.StringVar(&rootFlags.estimator, "estimator", "populated", "ground-noise estimator variant: populated or maxhold")

	flags.MarkHidden("debug")
	flags.MarkHidden("trace-spectrum")
	flags.MarkHidden("estimator")

	rootCmd.SetOut(os.Stderr)
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

// Execute runs the CLI and returns the process exit code, per spec.md §7:
// 0 success or help, 1 I/O open failure, 2 argument error.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	fmt.Fprintln(os.Stderr, err)

	var ioErr *IOOpenError
	if errors.As(err, &ioErr) {
		return 1
	}
	return 2
}

func run(cmd *cobra.Command, args []string) error {
	if !rootFlags.debug {
		log.SetOutput(&nopWriter{})
	}

	cfg := skim.DefaultConfig()
	cfg.SampleRate = rootFlags.sampleRate
	cfg.PrintChars = rootFlags.printChars
	cfg.ShowSymbols = rootFlags.showSymbols
	cfg.Diagnostic = rootFlags.diagnostic
	if rootFlags.int16Input {
		cfg.Encoding = audio.Int16LE
	} else {
		cfg.Encoding = audio.Float32LE
	}
	switch rootFlags.estimator {
	case "maxhold":
		cfg.Estimator = skim.EstimatorMaxHold
	case "populated", "":
		cfg.Estimator = skim.EstimatorPopulated
	default:
		return newConfigError("unknown estimator variant %q", rootFlags.estimator)
	}

	in, inCloser, err := openInput(args)
	if err != nil {
		return err
	}
	defer inCloser()

	out, outCloser, err := openOutput(args)
	if err != nil {
		return err
	}
	defer outCloser()

	var symbolTrace *os.File
	if rootFlags.showSymbols {
		symbolTrace = os.Stdout
	}

	tracer := openSpectrumTracer(rootFlags.traceSpectrum)
	tracer.Start()
	defer tracer.Stop()

	engine := skim.NewEngine(cfg, in, out, os.Stderr, symbolTrace)
	engine.SetTracer(tracer)
	return engine.Run()
}

func openInput(args []string) (*os.File, func(), error) {
	if len(args) < 1 || args[0] == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, func() {}, newIOOpenError(args[0], err)
	}
	return f, func() { f.Close() }, nil
}

func openOutput(args []string) (*os.File, func(), error) {
	if len(args) < 2 || args[1] == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(args[1])
	if err != nil {
		return nil, func() {}, newIOOpenError(args[1], err)
	}
	return f, func() { f.Close() }, nil
}

func openSpectrumTracer(filename string) trace.Tracer {
	if filename == "" {
		return &trace.NoTracer{}
	}
	return trace.NewFileTracer(trace.SpectrumContext, filename)
}

type nopWriter struct{}

func (w *nopWriter) Write(p []byte) (n int, err error) { return len(p), nil }
