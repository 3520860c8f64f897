package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/toolsascode/sqldatabase/internal/errs"
	"github.com/toolsascode/sqldatabase/internal/logger"
	"github.com/toolsascode/sqldatabase/internal/scripts"
	"github.com/toolsascode/sqldatabase/internal/version"
)

// SequenceError is returned when no pending module has a step whose
// dependencies are met
type SequenceError struct {
	// Scheduled holds the steps ordered before the run got stuck
	Scheduled []*Step
	// Blocked holds the next step of every module still pending
	Blocked []*Step
}

func (e *SequenceError) Error() string {
	var b strings.Builder
	b.WriteString("not possible to build the upgrade sequence, current sequence: ")

	if len(e.Scheduled) == 0 {
		b.WriteString("empty")
	} else {
		b.WriteString(e.Scheduled[0].From.String())
		for _, step := range e.Scheduled {
			b.WriteString(" => ")
			b.WriteString(step.To.String())
		}
	}

	if len(e.Blocked) > 1 {
		b.WriteString("; next candidates: ")
	} else {
		b.WriteString("; next candidate: ")
	}
	for i, step := range e.Blocked {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(step.DisplayName())
	}

	return b.String()
}

// Is makes errors.Is(err, errs.ErrSequence) hold
func (e *SequenceError) Is(target error) bool {
	return target == errs.ErrSequence
}

// BuildSequence turns the upgrade scripts found by the scanner into the order
// they must run in. Scripts that are not named <from>-<to> are ignored.
func BuildSequence(ctx context.Context, found []*scripts.Script, resolver VersionResolver) ([]*Step, error) {
	collection := NewCollection()
	for _, script := range found {
		if script.IsUpgrade() {
			collection.Add(script)
		}
	}

	names := collection.KnownModuleNames()
	if len(names) == 0 {
		return nil, nil
	}

	for _, name := range names {
		logger.Infof("get current version of module [%s]", name)
		current, err := resolver.GetCurrentVersion(ctx, name)
		if err != nil {
			return nil, err
		}
		logger.Debugf("module [%s] is at version %s", name, current)

		if err := collection.BuildModuleSequence(name, current); err != nil {
			return nil, err
		}
	}

	pending := collection.ModuleNames()
	switch {
	case len(pending) == 0:
		return nil, nil
	case len(pending) == 1 && pending[0] == "":
		return collection.GetSteps(""), nil
	}

	if err := collection.LoadDependencies(); err != nil {
		return nil, err
	}

	if len(pending) == 1 {
		return collection.GetSteps(pending[0]), nil
	}

	return newSequencer(collection).run()
}

// sequencer merges the pending chains of several modules. Its state belongs
// to a single run.
type sequencer struct {
	modules         []string
	queues          map[string][]*Step
	versionByModule map[string]version.Version
}

func newSequencer(collection *Collection) *sequencer {
	s := &sequencer{
		queues:          make(map[string][]*Step),
		versionByModule: make(map[string]version.Version),
	}

	for _, name := range collection.KnownModuleNames() {
		current, _ := collection.CurrentVersion(name)
		s.versionByModule[moduleKey(name)] = current
	}

	for _, name := range collection.ModuleNames() {
		key := moduleKey(name)
		s.modules = append(s.modules, key)
		s.queues[key] = collection.GetSteps(name)
	}

	return s
}

// run schedules the first eligible step in module discovery order until every
// queue is empty. It never backtracks.
func (s *sequencer) run() ([]*Step, error) {
	var sequence []*Step

	for {
		pending := s.pendingModules()
		if len(pending) == 0 {
			return sequence, nil
		}

		scheduled := false
		for _, key := range pending {
			step := s.queues[key][0]
			if !s.eligible(step) {
				continue
			}

			sequence = append(sequence, step)
			s.queues[key] = s.queues[key][1:]
			s.versionByModule[key] = step.To
			scheduled = true
			break
		}

		if !scheduled {
			blocked := make([]*Step, len(pending))
			for i, key := range pending {
				blocked[i] = s.queues[key][0]
			}
			return nil, &SequenceError{Scheduled: sequence, Blocked: blocked}
		}
	}
}

func (s *sequencer) pendingModules() []string {
	var result []string
	for _, key := range s.modules {
		if len(s.queues[key]) > 0 {
			result = append(result, key)
		}
	}
	return result
}

func (s *sequencer) eligible(step *Step) bool {
	for _, dep := range step.Dependencies {
		current, ok := s.versionByModule[moduleKey(dep.Module)]
		if !ok {
			// unknown modules are rejected by LoadDependencies
			continue
		}
		if !current.AtLeast(dep.Version) {
			return false
		}
	}
	return true
}

// BuildCreateSequence returns the scripts named [<module>.]<version> grouped
// by module in discovery order and sorted by version within a module
func BuildCreateSequence(found []*scripts.Script) ([]*Step, error) {
	var order []string
	byModule := make(map[string][]*Step)

	for _, script := range found {
		if !script.IsCreation() {
			continue
		}
		key := moduleKey(script.ModuleName)
		if _, ok := byModule[key]; !ok {
			order = append(order, key)
		}
		for _, existing := range byModule[key] {
			if existing.To.Equal(script.To) {
				return nil, errs.Config("module [%s]: scripts %s and %s both create version %s",
					script.ModuleName, existing.DisplayName(), script.DisplayName, script.To)
			}
		}
		byModule[key] = append(byModule[key], &Step{ModuleName: script.ModuleName, To: script.To, Script: script})
	}

	if len(order) == 0 {
		return nil, errs.Config("no creation scripts found")
	}

	var sequence []*Step
	for _, key := range order {
		steps := byModule[key]
		sort.SliceStable(steps, func(i, j int) bool {
			return steps[i].To.Less(steps[j].To)
		})
		sequence = append(sequence, steps...)
	}
	return sequence, nil
}

// BuildExecuteSequence returns every script in scan order as an unversioned step
func BuildExecuteSequence(found []*scripts.Script) ([]*Step, error) {
	if len(found) == 0 {
		return nil, errs.Config("no scripts found")
	}
	sequence := make([]*Step, len(found))
	for i, script := range found {
		sequence[i] = &Step{ModuleName: script.ModuleName, Script: script}
	}
	return sequence, nil
}

// FormatSequence renders steps as "module: from => to" lines for logs
func FormatSequence(steps []*Step) string {
	lines := make([]string, len(steps))
	for i, step := range steps {
		switch {
		case step.Versioned():
			lines[i] = fmt.Sprintf("%s: %s => %s (%s)", displayModule(step.ModuleName), step.From, step.To, step.DisplayName())
		case !step.To.IsZero():
			lines[i] = fmt.Sprintf("%s: %s (%s)", displayModule(step.ModuleName), step.To, step.DisplayName())
		default:
			lines[i] = step.DisplayName()
		}
	}
	return strings.Join(lines, "\n")
}

func displayModule(name string) string {
	if name == "" {
		return "[default]"
	}
	return "[" + name + "]"
}
