package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/ormasoftchile/geoproc/pkg/kernel/command"
	"github.com/ormasoftchile/geoproc/pkg/kernel/parse"
	"github.com/ormasoftchile/geoproc/pkg/kernel/status"
)

// blockInfo pairs control-flow commands. For a matched start or end,
// partner is the index of the other half. For an unmatched start, partner is
// where execution resumes: the end of the enclosing block, or len(cmds).
// For an unmatched end, partner is -1.
type blockInfo struct {
	partner int
	matched bool
}

// matchBlocks pairs block starts and ends by type and name using a stack.
// Mismatches are recorded as Initialization Failures on the offending
// commands.
func matchBlocks(cmds []command.Command) []blockInfo {
	info := make([]blockInfo, len(cmds))
	for i := range info {
		info[i].partner = -1
	}
	var stack []int

	unmatched := func(i, resume int) {
		b := cmds[i].(command.Block)
		info[i] = blockInfo{partner: resume}
		cmds[i].Status().Add(status.Failuref(status.PhaseInitialization,
			fmt.Sprintf("Add End%s(Name=%q) to close the block.", b.BlockType(), b.BlockName()),
			"%s(Name=%q) has no matching End%s; the block is skipped", b.BlockType(), b.BlockName(), b.BlockType()))
	}

	for i, c := range cmds {
		b, ok := c.(command.Block)
		if !ok {
			continue
		}
		if b.Opens() {
			stack = append(stack, i)
			continue
		}
		// Find the nearest open block of the same type and name. Blocks
		// opened above it were never closed.
		found := -1
		for j := len(stack) - 1; j >= 0; j-- {
			open := cmds[stack[j]].(command.Block)
			if open.BlockType() == b.BlockType() && open.BlockName() == b.BlockName() {
				found = j
				break
			}
		}
		if found < 0 {
			c.Status().Add(status.Failuref(status.PhaseInitialization,
				fmt.Sprintf("Remove the line or add %s(Name=%q) before it.", b.BlockType(), b.BlockName()),
				"End%s(Name=%q) has no matching %s", b.BlockType(), b.BlockName(), b.BlockType()))
			continue
		}
		for _, j := range stack[found+1:] {
			unmatched(j, i)
		}
		start := stack[found]
		info[start] = blockInfo{partner: i, matched: true}
		info[i] = blockInfo{partner: start, matched: true}
		stack = stack[:found]
	}
	for _, j := range stack {
		unmatched(j, len(cmds))
	}
	return info
}

// invalidatePairs extends an Initialization Failure on one half of a
// matched block to the other half, so the block is skipped as a whole.
func invalidatePairs(cmds []command.Command, info []blockInfo) {
	invalid := func(c command.Command) bool {
		return c.Status().WorstFor(status.PhaseInitialization) == status.Failure
	}
	for i, b := range info {
		if !b.matched || b.partner < i {
			continue
		}
		start, end := cmds[i], cmds[b.partner]
		switch {
		case invalid(start) && !invalid(end):
			end.Status().Add(status.Failuref(status.PhaseInitialization,
				fmt.Sprintf("Fix the errors on line %d.", i+1),
				"%s on line %d is invalid; the block is skipped", start.Name(), i+1))
		case invalid(end) && !invalid(start):
			start.Status().Add(status.Failuref(status.PhaseInitialization,
				fmt.Sprintf("Fix the errors on line %d.", b.partner+1),
				"%s on line %d is invalid; the block is skipped", end.Name(), b.partner+1))
		}
	}
}

// frame is one active For loop.
type frame struct {
	start, end int
	items      []any
	pos        int
	loop       string
	iterator   string
}

// run holds the state of a single Run call.
type run struct {
	p      *Processor
	result *Result
	logger *slog.Logger
	stop   bool
	frames []*frame
}

// exec interprets the flat command list.
func (r *run) exec(ctx context.Context) {
	cmds := r.p.cmds
	for i := 0; i < len(cmds); {
		if err := ctx.Err(); err != nil {
			r.result.Cancelled = true
			r.notRun(i, "run cancelled")
			return
		}
		c := cmds[i]
		kind := command.KindOf(c)
		if kind == command.KindComment || kind == command.KindBlank {
			i++
			continue
		}

		if c.Status().WorstFor(status.PhaseInitialization) == status.Failure {
			i = r.skipInvalid(i, c, kind)
			continue
		}

		cur := i
		var (
			failed bool
			params *parse.Params
		)
		switch v := c.(type) {
		case *command.For:
			i, params, failed = r.enterFor(i, v)
		case *command.EndFor:
			i = r.endFor(i)
		case *command.If:
			i = r.enterIf(i, v)
		case *command.EndIf:
			i++
		default:
			params, failed = r.execute(ctx, i, c)
			i++
		}

		if failed && (r.stop || command.HaltsOnFailure(params)) {
			r.result.Halted = true
			r.logger.Warn("run halted", "line", cur+1, "command", c.Name())
			r.notRun(cur+1, fmt.Sprintf("workflow halted after %s on line %d failed", c.Name(), cur+1))
			return
		}
	}
}

// skipInvalid moves past a command whose Initialization phase failed. A
// block start with a matching end skips the whole block; an unmatched start
// skips to the end of the enclosing region.
func (r *run) skipInvalid(i int, c command.Command, kind command.Kind) int {
	if kind != command.KindBlockStart {
		return i + 1
	}
	b := r.p.blocks[i]
	r.traceSkip(i, c, "invalid block")
	if b.matched {
		return b.partner + 1
	}
	return b.partner
}

// enterFor starts a loop and returns the next index with the expanded
// parameters.
func (r *run) enterFor(i int, c *command.For) (int, *parse.Params, bool) {
	end := r.p.blocks[i].partner
	params := r.expand(i, c)
	items, err := c.Items(r.p, params)
	if err != nil {
		r.fail(i, c, err)
		return end + 1, params, true
	}
	if len(items) == 0 {
		r.traceSkip(i, c, "no items")
		r.logger.Debug("loop has no items", "loop", c.BlockName())
		return end + 1, params, false
	}
	f := &frame{start: i, end: end, items: items, loop: c.BlockName(), iterator: c.IteratorName(params)}
	r.frames = append(r.frames, f)
	r.iterate(f)
	return i + 1, params, false
}

// endFor advances the innermost loop, jumping back to the first body command
// while items remain. An unmatched EndFor is ignored.
func (r *run) endFor(i int) int {
	b := r.p.blocks[i]
	if !b.matched || len(r.frames) == 0 {
		return i + 1
	}
	f := r.frames[len(r.frames)-1]
	if f.start != b.partner {
		return i + 1
	}
	f.pos++
	if f.pos < len(f.items) {
		r.iterate(f)
		return f.start + 1
	}
	r.frames = r.frames[:len(r.frames)-1]
	return i + 1
}

func (r *run) iterate(f *frame) {
	item := f.items[f.pos]
	r.p.props.Set(f.iterator, item)
	if r.p.trace != nil {
		r.p.trace.EmitLoopIteration(f.loop, f.iterator, f.pos+1, item)
	}
	r.logger.Debug("loop iteration", "loop", f.loop, "index", f.pos+1, "item", item)
}

func (r *run) enterIf(i int, c *command.If) int {
	r.expand(i, c)
	ok, err := c.Evaluate(r.p.props.Expand)
	if err != nil {
		addOnce(c.Status(), status.Warningf(status.PhaseRun,
			"Define the referenced properties or fix the condition syntax.",
			"%v; condition treated as false", err))
	}
	if ok {
		return i + 1
	}
	r.traceSkip(i, c, "condition false")
	return r.p.blocks[i].partner + 1
}

// execute runs one operation with expanded parameters. It returns those
// parameters and reports whether the command failed.
func (r *run) execute(ctx context.Context, i int, c command.Command) (*parse.Params, bool) {
	params := r.expand(i, c)
	if r.p.trace != nil {
		r.p.trace.EmitCommandStart(i+1, c.Name(), params.Map())
	}
	start := time.Now()

	entries, err := safeExecute(ctx, c, r.p, params)
	c.Status().Add(entries...)
	worst := status.Success
	for _, e := range entries {
		worst = status.Max(worst, e.Severity)
	}
	msg := ""
	if err != nil {
		r.fail(i, c, err)
		worst = status.Failure
		msg = err.Error()
	}
	r.result.Executed++

	elapsed := time.Since(start)
	if r.p.trace != nil {
		r.p.trace.EmitCommandComplete(i+1, c.Name(), worst.String(), elapsed, msg)
	}
	r.logger.Debug("command complete", "line", i+1, "command", c.Name(), "severity", worst.String(), "duration", elapsed)
	return params, worst == status.Failure
}

type panicError struct {
	name  string
	value any
	stack []byte
}

func (e *panicError) Error() string { return fmt.Sprintf("%s panicked: %v", e.name, e.value) }

// safeExecute calls Execute, converting a panic into an error.
func safeExecute(ctx context.Context, c command.Command, env command.Env, params *parse.Params) (entries []status.Entry, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &panicError{name: c.Name(), value: rec, stack: debug.Stack()}
		}
	}()
	return c.Execute(ctx, env, params)
}

// fail records err as a Run-phase Failure on c.
func (r *run) fail(i int, c command.Command, err error) {
	rec := ""
	var ce *command.Error
	if errors.As(err, &ce) {
		rec = ce.Recommendation
	}
	var pe *panicError
	if errors.As(err, &pe) {
		r.logger.Error("command panicked", "line", i+1, "command", c.Name(), "panic", pe.value, "stack", string(pe.stack))
	}
	c.Status().Add(status.Entry{Phase: status.PhaseRun, Severity: status.Failure, Message: err.Error(), Recommendation: rec})
}

// expand returns a copy of c's parameters with ${...} references resolved.
// Each unresolved reference adds one Run-phase Warning to c.
func (r *run) expand(i int, c command.Command) *parse.Params {
	params := c.Params().Clone()
	for _, name := range params.Names() {
		v, unresolved := r.p.props.Expand(params.Value(name))
		params.Set(name, v)
		for _, ref := range unresolved {
			addOnce(c.Status(), status.Warningf(status.PhaseRun,
				"Set the property before this command runs.",
				"%s: parameter %s references undefined property ${%s}", c.Name(), name, ref))
		}
	}
	return params
}

// notRun marks every operation from index i on as not run.
func (r *run) notRun(i int, reason string) {
	for _, c := range r.p.cmds[i:] {
		switch command.KindOf(c) {
		case command.KindComment, command.KindBlank:
			continue
		}
		c.Status().Add(status.Warningf(status.PhaseRun, "", "not run: %s", reason))
	}
}

func (r *run) traceSkip(i int, c command.Command, reason string) {
	if r.p.trace == nil {
		return
	}
	name := c.Name()
	if b, ok := c.(command.Block); ok {
		name = b.BlockType() + ":" + b.BlockName()
	}
	r.p.trace.EmitBlockSkipped(i+1, name, reason)
}

// addOnce appends e unless an identical entry is already in the log, so that
// loop bodies do not repeat the same diagnostic on every iteration.
func addOnce(log *status.Log, e status.Entry) {
	for _, have := range log.Entries() {
		if have == e {
			return
		}
	}
	log.Add(e)
}
