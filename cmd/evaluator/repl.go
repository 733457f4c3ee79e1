package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/atisu/evaluator/internal/config"
	"github.com/atisu/evaluator/internal/sandbox"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive session against a persistent symbol table",
	Long: `Start an interactive session. Bindings persist across lines, print is
enabled, and the configured capability restrictions apply to everything
you type.

The REPL runs in-process without a deadline; it is a workbench for
trusted experimentation, not a sandbox for untrusted input. Use
'evaluator run' for that.`,
	RunE: runRepl,
}

func init() {
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return err
	}

	policy := cfg.Sandbox
	policy.AllowPrint = true

	in, err := sandbox.NewInterpreter(policy, nil)
	if err != nil {
		return err
	}
	in.Print = func(msg string) { fmt.Println(msg) }

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36m>>>\033[0m ",
		HistoryFile:     "/tmp/evaluator_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("Evaluator REPL. One statement per line; /help for commands.")

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("Goodbye!")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := handleReplCommand(line, &in, policy); quit {
				return nil
			}
			continue
		}

		if err := in.Exec(line); err != nil {
			fmt.Printf("\033[31merror: %s\033[0m\n", err)
		}
	}
}

// handleReplCommand processes a slash command, returning true on /quit.
func handleReplCommand(line string, in **sandbox.Interpreter, policy sandbox.Policy) bool {
	switch strings.ToLower(strings.Fields(line)[0]) {
	case "/quit", "/exit", "/q":
		fmt.Println("Goodbye!")
		return true
	case "/reset":
		fresh, err := sandbox.NewInterpreter(policy, nil)
		if err != nil {
			fmt.Printf("error: %s\n", err)
			return false
		}
		fresh.Print = (*in).Print
		*in = fresh
		fmt.Println("Symbol table reset.")
	case "/vars":
		bindings := (*in).Bindings()
		names := make([]string, 0, len(bindings))
		for name := range bindings {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("%s = %v\n", name, bindings[name])
		}
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /help   - Show this help")
		fmt.Println("  /vars   - List current bindings")
		fmt.Println("  /reset  - Clear the symbol table")
		fmt.Println("  /quit   - Exit")
	default:
		fmt.Printf("Unknown command: %s (try /help)\n", line)
	}
	return false
}
