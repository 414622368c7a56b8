package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"

	"weakref_go/pkg/object"
	"weakref_go/pkg/scenario"
	"weakref_go/pkg/weakref"
)

var (
	scenarioFile = flag.String("f", "", "Run the scenarios in a YAML file")
	evalSteps    = flag.String("e", "", "Run semicolon-separated steps from the command line")
	verbose      = flag.Bool("v", false, "Verbose output (debug logging)")
	showStats    = flag.Bool("stats", false, "Print weak reference statistics on exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "weakref - weak reference playground\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [file.yaml]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -e 'new x; ref r x; decref x; deref r'   # Run steps\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s scenarios.yaml                          # Check a scenario file\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -stats                                  # Interactive session\n", os.Args[0])
	}
	flag.Parse()

	logger := newLogger(os.Stderr, *verbose)
	mgr := weakref.New(weakref.Config{Logger: logger})
	heap := object.NewHeap(object.HeapConfig{Logger: logger, Manager: mgr})
	runner := scenario.NewRunner(heap)

	code := 0
	switch {
	case *evalSteps != "":
		code = runSteps(runner, strings.Split(*evalSteps, ";"))
	case *scenarioFile != "" || flag.NArg() > 0:
		filename := *scenarioFile
		if filename == "" {
			filename = flag.Arg(0)
		}
		code = runFile(logger, mgr, filename)
	default:
		runREPL(runner, os.Stdin)
	}

	if *showStats {
		fmt.Print(mgr.Stats())
		st := heap.Stats()
		fmt.Printf("\nHeap:\n  Objects created:     %d\n  Objects freed:       %d\n", st.ObjectsCreated, st.ObjectsFreed)
	}
	os.Exit(code)
}

func newLogger(w io.Writer, verbose bool) *logiface.Logger[logiface.Event] {
	level := logiface.LevelWarning
	if verbose {
		level = logiface.LevelDebug
	}
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}

func runSteps(runner *scenario.Runner, steps []string) int {
	trace, err := runner.Run(&scenario.Scenario{Steps: steps})
	for _, line := range trace {
		fmt.Println(line)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// runFile runs each scenario on a fresh heap and checks its expected trace
func runFile(logger *logiface.Logger[logiface.Event], mgr *weakref.Manager, filename string) int {
	f, err := os.Open(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		return 1
	}
	defer f.Close()

	scenarios, err := scenario.Load(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	failed := 0
	for i := range scenarios {
		s := &scenarios[i]
		heap := object.NewHeap(object.HeapConfig{Logger: logger, Manager: mgr})
		trace, err := scenario.NewRunner(heap).Run(s)
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("scenario %d", i+1)
		}
		switch {
		case err != nil:
			failed++
			fmt.Printf("FAIL %s: %v\n", name, err)
		case s.Expect != nil && !cmp.Equal(s.Expect, trace):
			failed++
			fmt.Printf("FAIL %s (-want +got):\n%s", name, cmp.Diff(s.Expect, trace))
		default:
			fmt.Printf("ok   %s\n", name)
			if *verbose || s.Expect == nil {
				for _, line := range trace {
					fmt.Printf("     %s\n", line)
				}
			}
		}
	}
	if failed > 0 {
		fmt.Printf("%d of %d scenarios failed\n", failed, len(scenarios))
		return 1
	}
	return 0
}

func runREPL(runner *scenario.Runner, in io.Reader) {
	fmt.Println("Weak reference REPL")
	fmt.Println()
	fmt.Println("Type 'help' for commands, 'quit' to exit")
	fmt.Println()

	scanner := bufio.NewScanner(in)
	for {
		fmt.Print("weakref> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "quit", "exit":
			fmt.Println("Goodbye!")
			return
		case "help":
			printREPLHelp()
			continue
		}

		cmd, ok, err := scenario.ParseCommand(line)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		if !ok {
			continue
		}
		trace, err := runner.Exec(cmd)
		for _, l := range trace {
			fmt.Println(l)
		}
		if err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

func printREPLHelp() {
	fmt.Println("Commands:")
	fmt.Println("  quit     - exit the REPL")
	fmt.Println("  help     - show this help")
	fmt.Println()
	fmt.Println("Steps:")
	for _, u := range scenario.Usage() {
		fmt.Printf("  %s\n", u)
	}
	fmt.Println()
	fmt.Println("Callable objects (type func) record each call; names starting")
	fmt.Println("with 'fail' make the call fail.")
	fmt.Println()
	fmt.Println("Example:")
	fmt.Println("  new x")
	fmt.Println("  new cb func")
	fmt.Println("  proxy p x cb")
	fmt.Println("  decref x                 => callback cb alive=false")
	fmt.Println("  check p                  => check p: weakref: weakly-referenced object no longer exists")
}
