package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/wudi/gza/engine"
)

// runREPL is the interactive shell: every line is compiled and run against
// the same long-lived Engine, so globals and function definitions from
// earlier lines stay visible — the same
// global-state-persists-across-LoadScript behavior a host embedding the
// runtime gets, just driven one REPL line at a time. Grounded on the
// teacher's runInteractiveShell loop (cmd/hey/main.go), swapping its
// bufio.Scanner prompt for chzyer/readline so history and line-editing work.
func runREPL(eng *engine.Engine) error {
	rl, err := readline.New("gza> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Println("gza interactive shell. Ctrl-D or \"exit\" to quit.")

	var buf strings.Builder
	for {
		prompt := "gza> "
		if buf.Len() > 0 {
			prompt = "...> "
		}
		rl.SetPrompt(prompt)

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			buf.Reset()
			continue
		}
		if err == io.EOF {
			fmt.Println()
			return nil
		}
		if err != nil {
			return err
		}

		trimmed := strings.TrimSpace(line)
		if buf.Len() == 0 && (trimmed == "exit" || trimmed == "quit") {
			return nil
		}

		buf.WriteString(line)
		buf.WriteString("\n")

		if needsMoreInput(buf.String()) {
			continue
		}

		source := buf.String()
		buf.Reset()
		if strings.TrimSpace(source) == "" {
			continue
		}

		result, err := eng.RunSource(source)
		if err != nil {
			fmt.Fprintf(rl.Stderr(), "error: %v\n", err)
			continue
		}
		if !result.IsNil() {
			fmt.Fprintln(rl.Stdout(), result.ToDisplayString())
		}
	}
}

// needsMoreInput is the same unclosed-brace/paren/bracket/quote heuristic
// the teacher's cmd/hey/main.go uses to decide whether to keep reading
// continuation lines.
func needsMoreInput(code string) bool {
	openBraces, openParens, openBrackets := 0, 0, 0
	inSingle, inDouble, escaped := false, false, false

	for _, ch := range code {
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if !inSingle && !inDouble {
			switch ch {
			case '{':
				openBraces++
			case '}':
				openBraces--
			case '(':
				openParens++
			case ')':
				openParens--
			case '[':
				openBrackets++
			case ']':
				openBrackets--
			case '\'':
				inSingle = true
			case '"':
				inDouble = true
			}
		} else if inSingle && ch == '\'' {
			inSingle = false
		} else if inDouble && ch == '"' {
			inDouble = false
		}
	}

	return openBraces > 0 || openParens > 0 || openBrackets > 0 || inSingle || inDouble
}
