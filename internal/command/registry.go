package command

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Definition describes one chat command.
type Definition struct {
	Name        string
	Aliases     []string
	Usage       string // shown verbatim after "Usage: " when arguments are wrong
	Description string // completes "Use <usage> to ..."; empty hides the command from the help text
	MinArgs     int
	MaxArgs     int // -1 means unbounded
}

// Executor runs a command whose arguments already passed the count check.
type Executor func(ctx context.Context, req Request) (string, error)

// Registry manages available commands and their execution.
type Registry struct {
	mu        sync.RWMutex
	defs      map[string]Definition
	executors map[string]Executor
	aliases   map[string]string
	order     []string
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:      make(map[string]Definition),
		executors: make(map[string]Executor),
		aliases:   make(map[string]string),
	}
}

// Register adds a command. Names and aliases share one namespace.
func (r *Registry) Register(def Definition, exec Executor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := append([]string{def.Name}, def.Aliases...)
	for _, n := range names {
		if _, exists := r.defs[n]; exists {
			return fmt.Errorf("command %q already registered", n)
		}
		if _, exists := r.aliases[n]; exists {
			return fmt.Errorf("command %q already registered", n)
		}
	}

	r.defs[def.Name] = def
	r.executors[def.Name] = exec
	for _, a := range def.Aliases {
		r.aliases[a] = def.Name
	}
	r.order = append(r.order, def.Name)
	return nil
}

// Get returns a command definition by name or alias.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[r.resolve(name)]
	return def, ok
}

func (r *Registry) resolve(name string) string {
	if canonical, ok := r.aliases[name]; ok {
		return canonical
	}
	return name
}

// List returns all definitions in registration order.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.defs[name])
	}
	return defs
}

// HasCommand checks if a name or alias is registered.
func (r *Registry) HasCommand(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Count returns the number of registered commands.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.defs)
}

// Execute checks the argument count and runs the command.
func (r *Registry) Execute(ctx context.Context, req Request) (string, error) {
	r.mu.RLock()
	name := r.resolve(req.Command)
	def, ok := r.defs[name]
	exec := r.executors[name]
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, req.Command)
	}
	if len(req.Args) < def.MinArgs || (def.MaxArgs >= 0 && len(req.Args) > def.MaxArgs) {
		return "", &UsageError{Usage: def.Usage}
	}
	return exec(ctx, req)
}

// HelpText renders greeting followed by one line per described command.
func (r *Registry) HelpText(greeting string) string {
	var b strings.Builder
	b.WriteString(greeting)
	for _, def := range r.List() {
		if def.Description == "" {
			continue
		}
		fmt.Fprintf(&b, "\nUse %s to %s.", def.Usage, def.Description)
	}
	return b.String()
}

// Normalize turns "/Tag@MediaBot" into "tag".
func Normalize(raw string) string {
	name := strings.TrimPrefix(strings.TrimSpace(raw), "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

// Split breaks a message text into a normalized command and its arguments.
// ok is false when text is not a slash command.
func Split(text string) (name string, args []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	name = Normalize(fields[0])
	if name == "" {
		return "", nil, false
	}
	return name, fields[1:], true
}
