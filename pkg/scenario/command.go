package scenario

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// Command is one parsed step.
type Command struct {
	Op   string
	Args []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Op}, c.Args...), " ")
}

type opSpec struct {
	min, max int
	usage    string
}

var ops = map[string]opSpec{
	"new":     {1, 3, "new <obj> [plain|sealed|external|func] [value]"},
	"ref":     {2, 3, "ref <handle> <obj> [callback-obj]"},
	"proxy":   {2, 3, "proxy <handle> <obj> [callback-obj]"},
	"incref":  {1, 1, "incref <obj>"},
	"decref":  {1, 1, "decref <obj>"},
	"deref":   {1, 1, "deref <handle>"},
	"check":   {1, 1, "check <handle>"},
	"call":    {1, 2, "call <handle> [arg]"},
	"hash":    {1, 1, "hash <handle>"},
	"eq":      {2, 2, "eq <handle> <handle>"},
	"release": {1, 1, "release <handle>"},
	"count":   {1, 1, "count <obj>"},
	"gc":      {1, 1, "gc <handle>"},
	"show":    {1, 1, "show <handle>"},
}

// ParseCommand splits a line into a command using shell quoting rules.
// Blank lines and # comments yield ok == false.
func ParseCommand(line string) (cmd Command, ok bool, err error) {
	words, err := shlex.Split(line)
	if err != nil {
		return Command{}, false, fmt.Errorf("parsing %q: %w", line, err)
	}
	if len(words) == 0 {
		return Command{}, false, nil
	}
	cmd = Command{Op: strings.ToLower(words[0]), Args: words[1:]}
	spec, known := ops[cmd.Op]
	if !known {
		return Command{}, false, fmt.Errorf("unknown command %q", words[0])
	}
	if n := len(cmd.Args); n < spec.min || n > spec.max {
		return Command{}, false, fmt.Errorf("usage: %s", spec.usage)
	}
	return cmd, true, nil
}

// Usage lists every command's syntax.
func Usage() []string {
	out := make([]string, 0, len(ops))
	for _, name := range []string{"new", "ref", "proxy", "incref", "decref", "deref", "check", "call", "hash", "eq", "release", "count", "gc", "show"} {
		out = append(out, ops[name].usage)
	}
	return out
}
