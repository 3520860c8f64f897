package registry

import (
	"sort"
	"strings"

	"github.com/toolsascode/sqldatabase/internal/errs"
	"github.com/toolsascode/sqldatabase/internal/logger"
	"github.com/toolsascode/sqldatabase/internal/scripts"
	"github.com/toolsascode/sqldatabase/internal/version"
)

type module struct {
	name    string
	steps   []*Step
	current version.Version
	built   bool
}

// Collection groups upgrade steps by module and turns each group into the
// chain of steps still pending for that module
type Collection struct {
	modules map[string]*module
	order   []string
}

// NewCollection creates an empty collection
func NewCollection() *Collection {
	return &Collection{modules: make(map[string]*module)}
}

func moduleKey(name string) string {
	return strings.ToLower(name)
}

// Add registers an upgrade script. Module names are case-insensitive and
// modules keep the order they were first added in.
func (c *Collection) Add(script *scripts.Script) {
	key := moduleKey(script.ModuleName)
	m, ok := c.modules[key]
	if !ok {
		m = &module{name: script.ModuleName}
		c.modules[key] = m
		c.order = append(c.order, key)
	}

	m.steps = append(m.steps, &Step{
		ModuleName: m.name,
		From:       script.From,
		To:         script.To,
		Script:     script,
	})
}

// ModuleNames returns the modules with pending steps in discovery order
func (c *Collection) ModuleNames() []string {
	var names []string
	for _, key := range c.order {
		if m := c.modules[key]; len(m.steps) > 0 {
			names = append(names, m.name)
		}
	}
	return names
}

// KnownModuleNames returns every module added, including up to date ones
func (c *Collection) KnownModuleNames() []string {
	names := make([]string, len(c.order))
	for i, key := range c.order {
		names[i] = c.modules[key].name
	}
	return names
}

// CurrentVersion returns the version passed to BuildModuleSequence
func (c *Collection) CurrentVersion(moduleName string) (version.Version, bool) {
	m, ok := c.modules[moduleKey(moduleName)]
	if !ok || !m.built {
		return version.Version{}, false
	}
	return m.current, true
}

// GetSteps returns the pending steps of a module in version order
func (c *Collection) GetSteps(moduleName string) []*Step {
	m, ok := c.modules[moduleKey(moduleName)]
	if !ok {
		return nil
	}
	steps := make([]*Step, len(m.steps))
	copy(steps, m.steps)
	return steps
}

// BuildModuleSequence sorts the steps of a module, drops the ones already
// applied at current and checks that the rest form one contiguous chain
// starting at current. A module with nothing left is up to date.
func (c *Collection) BuildModuleSequence(moduleName string, current version.Version) error {
	m, ok := c.modules[moduleKey(moduleName)]
	if !ok {
		return errs.Config("module [%s] not found", moduleName)
	}
	m.current = current
	m.built = true

	sort.SliceStable(m.steps, func(i, j int) bool {
		return m.steps[i].From.Less(m.steps[j].From)
	})

	for i := 1; i < len(m.steps); i++ {
		if m.steps[i].From.Equal(m.steps[i-1].From) {
			return errs.Config("module [%s]: scripts %s and %s both upgrade from version %s",
				m.name, m.steps[i-1].DisplayName(), m.steps[i].DisplayName(), m.steps[i].From)
		}
	}

	pending := m.steps[:0:0]
	for _, step := range m.steps {
		if current.Less(step.To) {
			pending = append(pending, step)
		}
	}
	m.steps = pending

	if len(m.steps) == 0 {
		logger.Debugf("module [%s] is up to date at version %s", m.name, current)
		return nil
	}

	if first := m.steps[0]; !first.From.Equal(current) {
		return errs.Config("module [%s]: upgrade from version %s not found, the next script %s upgrades from version %s",
			m.name, current, first.DisplayName(), first.From)
	}

	for i := 1; i < len(m.steps); i++ {
		prev, next := m.steps[i-1], m.steps[i]
		if !next.From.Equal(prev.To) {
			return errs.Config("module [%s]: upgrade from version %s not found, %s is followed by %s",
				m.name, prev.To, prev.DisplayName(), next.DisplayName())
		}
	}

	return nil
}

// LoadDependencies reads the dependency declarations of every pending step and
// fails if one can never be satisfied: the referenced module must be known and
// either be at the required version already or reach it with its own pending
// steps.
func (c *Collection) LoadDependencies() error {
	for _, key := range c.order {
		m := c.modules[key]
		for _, step := range m.steps {
			dependencies, err := step.Script.Dependencies()
			if err != nil {
				return err
			}

			for _, dep := range dependencies {
				if moduleKey(dep.Module) == key {
					return errs.Config("script %s declares a dependency on its own module [%s]", step.DisplayName(), m.name)
				}

				target, ok := c.modules[moduleKey(dep.Module)]
				if !ok {
					return errs.Config("script %s depends on module [%s] which is not found", step.DisplayName(), dep.Module)
				}

				if !target.reaches(dep.Version) {
					return errs.Config("script %s depends on module [%s] version %s which is never reached",
						step.DisplayName(), target.name, dep.Version)
				}
			}

			step.Dependencies = dependencies
		}
	}

	return nil
}

func (m *module) reaches(v version.Version) bool {
	if m.current.AtLeast(v) {
		return true
	}
	if len(m.steps) == 0 {
		return false
	}
	return m.steps[len(m.steps)-1].To.AtLeast(v)
}
