// Package processor runs a list of commands against one property store and
// one resource registry.
//
// Execution has two phases. Validate checks every command's parameters and
// pairs control-flow blocks; Run then executes the list in order, expanding
// ${Property} references before each command. A failing command records a
// Run-phase Failure and the run continues with the next command unless the
// command carries OnFailure="Halt" or the processor is set to stop on failure.
//
// A Processor is single-threaded: commands run one at a time, and the
// property store and resource registry are not safe for concurrent use while
// a run is in progress.
package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ormasoftchile/geoproc/pkg/ctxlog"
	"github.com/ormasoftchile/geoproc/pkg/kernel/cmdfile"
	"github.com/ormasoftchile/geoproc/pkg/kernel/command"
	"github.com/ormasoftchile/geoproc/pkg/kernel/props"
	"github.com/ormasoftchile/geoproc/pkg/kernel/resource"
	"github.com/ormasoftchile/geoproc/pkg/kernel/status"
	"github.com/ormasoftchile/geoproc/pkg/kernel/trace"
)

// State is the lifecycle state of a Processor.
type State int

const (
	StateIdle State = iota
	StateLoaded
	StateValidated
	StateRunning
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateLoaded:
		return "Loaded"
	case StateValidated:
		return "Validated"
	case StateRunning:
		return "Running"
	case StateCompleted:
		return "Completed"
	case StateAborted:
		return "Aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrNoCommands is returned when Validate or Run is called before Load.
	ErrNoCommands = errors.New("no commands loaded")
	// ErrBusy is returned when a run is already in progress.
	ErrBusy = errors.New("processor is running")
	// ErrFinished is returned by Run after a completed or aborted run; Load
	// a command list again to run it anew.
	ErrFinished = errors.New("run already finished; load commands again")
	// ErrCancelled wraps the context error of a cancelled run.
	ErrCancelled = errors.New("run cancelled")
)

// Result summarizes one run.
type Result struct {
	RunID     string          `json:"run_id"`
	State     State           `json:"-"`
	Worst     status.Severity `json:"worst"`
	Halted    bool            `json:"halted,omitempty"`
	Cancelled bool            `json:"cancelled,omitempty"`
	Executed  int             `json:"executed"`
	Duration  time.Duration   `json:"duration"`
}

// Option configures a Processor.
type Option func(*Processor)

// WithRegistry sets the registry used by LoadFile and RunLine.
func WithRegistry(reg *command.Registry) Option {
	return func(p *Processor) { p.reg = reg }
}

// WithOutput sets where commands such as Message print.
func WithOutput(w io.Writer) Option {
	return func(p *Processor) { p.out = w }
}

// WithTrace enables JSONL trace events.
func WithTrace(tw *trace.Writer) Option {
	return func(p *Processor) { p.trace = tw }
}

// WithStopOnFailure halts every run at the first Run-phase Failure.
func WithStopOnFailure(stop bool) Option {
	return func(p *Processor) { p.stopOnFailure = stop }
}

// WithProperties seeds the property store. The values are restored by Reset.
func WithProperties(values map[string]any) Option {
	return func(p *Processor) {
		for k, v := range values {
			p.initial[k] = v
		}
	}
}

// Processor owns the command list, the property store and the resource
// registry of one workflow.
type Processor struct {
	reg           *command.Registry
	out           io.Writer
	trace         *trace.Writer
	stopOnFailure bool
	initial       map[string]any

	props  *props.Store
	res    *resource.Registry
	cmds   []command.Command
	blocks []blockInfo
	source string
	state  State
	// stopDirective is set by a #@stopOnFailure comment in the loaded list.
	stopDirective bool
}

// New creates an idle processor.
func New(opts ...Option) *Processor {
	p := &Processor{
		reg:     command.DefaultRegistry(),
		out:     io.Discard,
		initial: make(map[string]any),
		res:     resource.NewRegistry(),
	}
	for _, o := range opts {
		o(p)
	}
	p.props = props.NewStore(p.initial)
	return p
}

// Properties returns the property store.
func (p *Processor) Properties() *props.Store { return p.props }

// Resources returns the processed resource registry.
func (p *Processor) Resources() *resource.Registry { return p.res }

// Output returns the writer commands print to.
func (p *Processor) Output() io.Writer { return p.out }

// Registry returns the command registry.
func (p *Processor) Registry() *command.Registry { return p.reg }

// Commands returns the loaded command list.
func (p *Processor) Commands() []command.Command { return p.cmds }

// State returns the lifecycle state.
func (p *Processor) State() State { return p.state }

// Source returns the path given to LoadFile, or "" for in-memory lists.
func (p *Processor) Source() string { return p.source }

// Worst returns the worst severity recorded by any loaded command.
func (p *Processor) Worst() status.Severity {
	logs := make([]*status.Log, len(p.cmds))
	for i, c := range p.cmds {
		logs[i] = c.Status()
	}
	return status.WorstOf(logs...)
}

// Reset drops the command list, restores the initial properties and clears
// the resource registry.
func (p *Processor) Reset() {
	p.cmds, p.blocks, p.source = nil, nil, ""
	p.props = props.NewStore(p.initial)
	p.res.Reset()
	p.stopDirective = false
	p.state = StateIdle
}

// Load replaces the command list. Properties and resources are kept.
func (p *Processor) Load(cmds []command.Command) error {
	if p.state == StateRunning {
		return ErrBusy
	}
	p.cmds = cmds
	p.blocks = nil
	p.source = ""
	// Invalid directive values are recorded on their comment by Validate.
	d, _ := cmdfile.DirectivesOf(cmds)
	p.stopDirective = d.StopOnFailure
	p.state = StateLoaded
	return nil
}

// LoadFile reads a command file and loads it. The WorkingDir property is set
// to the file's directory so relative paths resolve next to the file.
func (p *Processor) LoadFile(path string) error {
	cmds, err := cmdfile.Read(path, p.reg)
	if err != nil {
		return err
	}
	if err := p.Load(cmds); err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	p.source = path
	p.props.Set(command.PropertyWorkingDir, filepath.Dir(abs))
	return nil
}

// Validate runs the Initialization phase: every command validates its
// parameters and control-flow blocks are paired. Validation happens once per
// Load; later calls return the same result. The returned severity is the
// worst Initialization severity.
func (p *Processor) Validate(ctx context.Context) (status.Severity, error) {
	switch p.state {
	case StateIdle:
		return status.Success, ErrNoCommands
	case StateRunning:
		return status.Success, ErrBusy
	case StateLoaded:
		for _, c := range p.cmds {
			initialize(c)
		}
		p.blocks = matchBlocks(p.cmds)
		invalidatePairs(p.cmds, p.blocks)
		p.state = StateValidated
	}

	worst := status.Success
	for _, c := range p.cmds {
		worst = status.Max(worst, c.Status().WorstFor(status.PhaseInitialization))
	}
	ctxlog.FromContext(ctx).Debug("validated commands", "commands", len(p.cmds), "worst", worst.String())
	return worst, nil
}

type duplicater interface {
	Duplicates() []string
}

// initialize records a command's Initialization-phase entries. An invalid
// directive comment gets a Warning; the directive keeps its default.
func initialize(c command.Command) {
	if cm, ok := c.(*command.Comment); ok {
		if err := cmdfile.CheckDirective(cm); err != nil {
			c.Status().Add(status.Warningf(status.PhaseInitialization,
				"Fix the directive value; the default is used.", "%v", err))
		}
		return
	}
	c.Status().Add(c.Validate(c.Params())...)
	if d, ok := c.(duplicater); ok {
		for _, name := range d.Duplicates() {
			c.Status().Add(status.Warningf(status.PhaseInitialization,
				"Remove the repeated parameter.",
				"%s: parameter %s given more than once; the last value is used", c.Name(), name))
		}
	}
}

// Run validates the command list if needed and then executes it.
//
// A cancelled context stops the run at the next command boundary; commands
// not reached get a Run-phase Warning and the state becomes Aborted. In that
// case the returned error wraps ErrCancelled and the Result is still valid.
func (p *Processor) Run(ctx context.Context) (*Result, error) {
	switch p.state {
	case StateIdle:
		return nil, ErrNoCommands
	case StateRunning:
		return nil, ErrBusy
	case StateCompleted, StateAborted:
		return nil, ErrFinished
	}
	if _, err := p.Validate(ctx); err != nil {
		return nil, err
	}

	r := &run{
		p:      p,
		result: &Result{RunID: uuid.NewString()},
		logger: ctxlog.FromContext(ctx),
		stop:   p.stopOnFailure || p.stopDirective,
	}
	r.logger = r.logger.With("run_id", r.result.RunID)
	if p.trace != nil {
		p.trace.SetRunID(r.result.RunID)
		p.trace.EmitRunStart(p.source, len(p.cmds), p.props.Snapshot())
	}
	r.logger.Info("run started", "source", p.source, "commands", len(p.cmds))

	p.state = StateRunning
	start := time.Now()
	r.exec(ctx)
	r.result.Duration = time.Since(start)
	r.result.Worst = p.Worst()

	if r.result.Cancelled {
		p.state = StateAborted
	} else {
		p.state = StateCompleted
	}
	r.result.State = p.state
	if p.trace != nil {
		p.trace.EmitRunComplete(p.state.String(), r.result.Worst.String(), r.result.Executed, r.result.Duration)
	}
	r.logger.Info("run finished",
		"state", p.state.String(),
		"worst", r.result.Worst.String(),
		"executed", r.result.Executed,
		"halted", r.result.Halted,
		"duration", r.result.Duration)

	if r.result.Cancelled {
		return r.result, fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
	}
	return r.result, nil
}

// RunLine parses one line, appends it to the command list, validates it and
// runs it immediately. It is meant for interactive use: control-flow
// commands are rejected because their blocks span several lines.
func (p *Processor) RunLine(ctx context.Context, text string) (command.Command, error) {
	if p.state == StateRunning {
		return nil, ErrBusy
	}
	c := p.reg.FromLine(text)
	p.cmds = append(p.cmds, c)

	switch command.KindOf(c) {
	case command.KindComment, command.KindBlank:
		return c, nil
	case command.KindBlockStart, command.KindBlockEnd:
		c.Status().Add(status.Failuref(status.PhaseInitialization,
			"Put the block in a command file and run it with :load.",
			"%s cannot be run one line at a time", c.Name()))
		return c, nil
	}
	initialize(c)
	if c.Status().WorstFor(status.PhaseInitialization) < status.Failure {
		r := &run{p: p, result: &Result{}, logger: ctxlog.FromContext(ctx)}
		r.execute(ctx, len(p.cmds)-1, c)
	}
	p.state = StateCompleted
	return c, nil
}
