package suite

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/chromedp/cdproto/input"
	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/specto/internal/common"
	"github.com/ternarybob/specto/internal/harness"
)

// SuiteFile is the on-disk shape of a declarative suite. TOML and YAML
// carry the same structure; the extension picks the decoder.
type SuiteFile struct {
	Name      string         `toml:"name" yaml:"name" validate:"required"`
	Scenarios []ScenarioFile `toml:"scenario" yaml:"scenarios" validate:"required,min=1,dive"`
}

// ScenarioFile declares one scenario: a page path, tolerances and steps.
type ScenarioFile struct {
	Name            string      `toml:"name" yaml:"name" validate:"required"`
	Path            string      `toml:"path" yaml:"path" validate:"required"`
	Timeout         string      `toml:"timeout" yaml:"timeout"`
	Required        []string    `toml:"required" yaml:"required"` // candidate selectors for the prerequisite control
	AllowPageErrors bool        `toml:"allow_page_errors" yaml:"allow_page_errors"`
	AllowedErrors   []string    `toml:"allowed_errors" yaml:"allowed_errors"`
	Dialog          *DialogFile `toml:"dialog" yaml:"dialog"`
	Steps           []StepFile  `toml:"step" yaml:"steps" validate:"required,min=1,dive"`
}

// DialogFile declares the default native-dialog response.
type DialogFile struct {
	Accept     bool   `toml:"accept" yaml:"accept"`
	PromptText string `toml:"prompt_text" yaml:"prompt_text"`
}

// StepFile declares one step. Action and Expect are both optional, matching
// the in-code Step shape.
type StepFile struct {
	Name        string      `toml:"name" yaml:"name" validate:"required"`
	Action      *ActionFile `toml:"action" yaml:"action"`
	Expect      *ExpectFile `toml:"expect" yaml:"expect"`
	WaitSignals bool        `toml:"wait_signals" yaml:"wait_signals"`
}

// ActionFile declares one page interaction.
type ActionFile struct {
	Type      string   `toml:"type" yaml:"type" validate:"required,oneof=fill click commit slider press drag"`
	Selector  string   `toml:"selector" yaml:"selector"`
	Button    string   `toml:"button" yaml:"button"` // visible text, resolved through button-shaped candidates
	Value     string   `toml:"value" yaml:"value"`
	Key       string   `toml:"key" yaml:"key"`
	Modifiers []string `toml:"modifiers" yaml:"modifiers"`
	Repeat    int      `toml:"repeat" yaml:"repeat"`
	FromX     float64  `toml:"from_x" yaml:"from_x"`
	FromY     float64  `toml:"from_y" yaml:"from_y"`
	ToX       float64  `toml:"to_x" yaml:"to_x"`
	ToY       float64  `toml:"to_y" yaml:"to_y"`
}

// ExpectFile declares one expected observable.
type ExpectFile struct {
	Type      string   `toml:"type" yaml:"type" validate:"required,oneof=text exact_text count at_least monotonic console exception forbid_exception dialog"`
	Label     string   `toml:"label" yaml:"label" validate:"required"`
	Selectors []string `toml:"selectors" yaml:"selectors"`
	Patterns  []string `toml:"patterns" yaml:"patterns"`
	Exact     string   `toml:"exact" yaml:"exact"`
	Pattern   string   `toml:"pattern" yaml:"pattern"`
	Level     string   `toml:"level" yaml:"level"`
	Min       float64  `toml:"min" yaml:"min"`
	Optional  bool     `toml:"optional" yaml:"optional"`
}

// Loader reads suite files from a directory and compiles them into
// runnable suites.
type Loader struct {
	config   common.SuitesConfig
	logger   arbor.ILogger
	validate *validator.Validate
}

// NewLoader creates a suite file loader.
func NewLoader(config common.SuitesConfig, logger arbor.ILogger) *Loader {
	return &Loader{
		config:   config,
		logger:   logger,
		validate: validator.New(),
	}
}

// LoadDir loads every suite file in the configured directory. A missing
// directory yields no suites, not an error: file-defined suites are an
// optional supplement to the built-ins.
func (l *Loader) LoadDir() (map[string]Suite, error) {
	suites := make(map[string]Suite)
	if l.config.Dir == "" {
		return suites, nil
	}

	entries, err := os.ReadDir(l.config.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Debug().Str("dir", l.config.Dir).Msg("Suite directory absent, using built-in suites only")
			return suites, nil
		}
		return nil, fmt.Errorf("failed to read suite directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".toml" || ext == ".yaml" || ext == ".yml" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(l.config.Dir, name)
		s, err := l.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("suite file %s: %w", name, err)
		}
		if _, exists := suites[s.Name]; exists {
			return nil, fmt.Errorf("suite file %s: duplicate suite name %q", name, s.Name)
		}
		suites[s.Name] = s
		l.logger.Info().
			Str("suite", s.Name).
			Str("file", name).
			Int("scenarios", len(s.Scenarios)).
			Msg("Loaded suite file")
	}
	return suites, nil
}

// LoadFile loads and compiles a single suite file.
func (l *Loader) LoadFile(path string) (Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Suite{}, fmt.Errorf("failed to read file: %w", err)
	}

	var file SuiteFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &file); err != nil {
			return Suite{}, fmt.Errorf("failed to parse TOML: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return Suite{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		return Suite{}, fmt.Errorf("unsupported suite file extension %q", filepath.Ext(path))
	}

	if err := l.validate.Struct(&file); err != nil {
		return Suite{}, fmt.Errorf("suite validation failed: %w", err)
	}

	return l.compile(file)
}

func (l *Loader) compile(file SuiteFile) (Suite, error) {
	s := Suite{Name: file.Name}
	for i, sf := range file.Scenarios {
		scenario, err := l.compileScenario(sf)
		if err != nil {
			return Suite{}, fmt.Errorf("scenario %d (%s): %w", i+1, sf.Name, err)
		}
		s.Scenarios = append(s.Scenarios, scenario)
	}
	return s, nil
}

func (l *Loader) compileScenario(sf ScenarioFile) (harness.Scenario, error) {
	scenario := harness.Scenario{
		Name:            sf.Name,
		Path:            sf.Path,
		AllowPageErrors: sf.AllowPageErrors,
	}

	if sf.Timeout != "" {
		scenario.Timeout = common.Duration(sf.Timeout, 0)
		if scenario.Timeout <= 0 {
			return scenario, fmt.Errorf("invalid timeout %q", sf.Timeout)
		}
	}

	if sf.Dialog != nil {
		scenario.DefaultDialog = harness.DialogResponse{
			Accept:     sf.Dialog.Accept,
			PromptText: sf.Dialog.PromptText,
		}
	}

	if len(sf.Required) > 0 {
		scenario.Required = selectorConcept("required control", sf.Required)
	}

	for _, expr := range sf.AllowedErrors {
		pattern, err := regexp.Compile(expr)
		if err != nil {
			return scenario, fmt.Errorf("invalid allowed_errors pattern %q: %w", expr, err)
		}
		scenario.AllowedErrors = append(scenario.AllowedErrors, pattern)
	}

	for i, stepFile := range sf.Steps {
		step, err := l.compileStep(stepFile)
		if err != nil {
			return scenario, fmt.Errorf("step %d (%s): %w", i+1, stepFile.Name, err)
		}
		scenario.Steps = append(scenario.Steps, step)
	}
	return scenario, nil
}

func (l *Loader) compileStep(sf StepFile) (harness.Step, error) {
	step := harness.Step{Name: sf.Name, WaitSignals: sf.WaitSignals}

	if sf.Action != nil {
		action, err := compileAction(*sf.Action)
		if err != nil {
			return step, err
		}
		step.Action = action
	}

	if sf.Expect != nil {
		check, err := compileExpect(*sf.Expect)
		if err != nil {
			return step, err
		}
		step.Check = check
	}

	if step.Action == nil && step.Check == nil {
		return step, fmt.Errorf("step declares neither an action nor an expectation")
	}
	return step, nil
}

func compileAction(af ActionFile) (func(sc *harness.ScenarioContext) error, error) {
	repeat := af.Repeat
	if repeat <= 0 {
		repeat = 1
	}

	once, err := compileSingleAction(af)
	if err != nil {
		return nil, err
	}

	return func(sc *harness.ScenarioContext) error {
		for i := 0; i < repeat; i++ {
			if err := once(sc); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

func compileSingleAction(af ActionFile) (func(sc *harness.ScenarioContext) error, error) {
	switch af.Type {
	case "fill":
		if af.Selector == "" {
			return nil, fmt.Errorf("fill action requires a selector")
		}
		return func(sc *harness.ScenarioContext) error {
			return sc.Actions.SetValue(af.Selector, af.Value)
		}, nil

	case "click":
		switch {
		case af.Selector != "":
			return func(sc *harness.ScenarioContext) error {
				return sc.Actions.Click(af.Selector)
			}, nil
		case af.Button != "":
			return func(sc *harness.ScenarioContext) error {
				res := sc.ResolveControl(buttonConcept(af.Button))
				if !res.Found {
					return fmt.Errorf("button %q not found through any candidate", af.Button)
				}
				return sc.Actions.Click(res.First().Selector)
			}, nil
		default:
			return nil, fmt.Errorf("click action requires a selector or a button text")
		}

	case "commit":
		if af.Selector == "" {
			return nil, fmt.Errorf("commit action requires a selector")
		}
		return func(sc *harness.ScenarioContext) error {
			return sc.Actions.Commit(af.Selector)
		}, nil

	case "slider":
		if af.Selector == "" {
			return nil, fmt.Errorf("slider action requires a selector")
		}
		return func(sc *harness.ScenarioContext) error {
			return sc.Actions.SetSlider(af.Selector, af.Value)
		}, nil

	case "press":
		if af.Key == "" {
			return nil, fmt.Errorf("press action requires a key")
		}
		modifiers, err := parseModifiers(af.Modifiers)
		if err != nil {
			return nil, err
		}
		return func(sc *harness.ScenarioContext) error {
			return sc.Actions.Press(af.Key, modifiers)
		}, nil

	case "drag":
		return func(sc *harness.ScenarioContext) error {
			return sc.Actions.Drag(af.FromX, af.FromY, af.ToX, af.ToY)
		}, nil

	default:
		return nil, fmt.Errorf("unknown action type %q", af.Type)
	}
}

func parseModifiers(names []string) (input.Modifier, error) {
	var modifiers input.Modifier
	for _, name := range names {
		switch strings.ToLower(name) {
		case "alt":
			modifiers |= input.ModifierAlt
		case "ctrl", "control":
			modifiers |= input.ModifierCtrl
		case "shift":
			modifiers |= input.ModifierShift
		case "meta", "cmd", "command":
			modifiers |= input.ModifierMeta
		default:
			return 0, fmt.Errorf("unknown modifier %q", name)
		}
	}
	return modifiers, nil
}

func compileExpect(ef ExpectFile) (harness.Expectation, error) {
	switch ef.Type {
	case "text":
		if len(ef.Selectors) == 0 || len(ef.Patterns) == 0 {
			return nil, fmt.Errorf("text expectation requires selectors and patterns")
		}
		for _, expr := range ef.Patterns {
			if _, err := regexp.Compile(expr); err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", expr, err)
			}
		}
		e := harness.ExpectText(ef.Label, *selectorConcept(ef.Label, ef.Selectors), ef.Patterns...)
		if ef.Optional {
			e.MarkOptional()
		}
		return e, nil

	case "exact_text":
		if len(ef.Selectors) == 0 || ef.Exact == "" {
			return nil, fmt.Errorf("exact_text expectation requires selectors and an exact value")
		}
		e := harness.ExpectExactText(ef.Label, *selectorConcept(ef.Label, ef.Selectors), ef.Exact)
		if ef.Optional {
			e.MarkOptional()
		}
		return e, nil

	case "count":
		if len(ef.Selectors) == 0 {
			return nil, fmt.Errorf("count expectation requires selectors")
		}
		return harness.ExpectCount(ef.Label, *selectorConcept(ef.Label, ef.Selectors), int(ef.Min)), nil

	case "at_least":
		if len(ef.Selectors) == 0 {
			return nil, fmt.Errorf("at_least expectation requires selectors")
		}
		e := harness.ExpectAtLeast(ef.Label, *selectorConcept(ef.Label, ef.Selectors), ef.Min)
		if ef.Optional {
			e.MarkOptional()
		}
		return e, nil

	case "monotonic":
		if len(ef.Selectors) == 0 {
			return nil, fmt.Errorf("monotonic expectation requires selectors")
		}
		e := harness.ExpectMonotonic(ef.Label, *selectorConcept(ef.Label, ef.Selectors))
		if ef.Optional {
			e.MarkOptional()
		}
		return e, nil

	case "console":
		if ef.Pattern == "" {
			return nil, fmt.Errorf("console expectation requires a pattern")
		}
		if _, err := regexp.Compile(ef.Pattern); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", ef.Pattern, err)
		}
		min := int(ef.Min)
		if min <= 0 {
			min = 1
		}
		return harness.ExpectConsole(ef.Label, ef.Level, ef.Pattern, min), nil

	case "exception":
		if ef.Pattern == "" {
			return nil, fmt.Errorf("exception expectation requires a pattern")
		}
		if _, err := regexp.Compile(ef.Pattern); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", ef.Pattern, err)
		}
		return harness.ExpectException(ef.Label, ef.Pattern), nil

	case "forbid_exception":
		pattern := ef.Pattern
		if pattern == "" {
			pattern = `.`
		}
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		return harness.ForbidException(ef.Label, pattern), nil

	case "dialog":
		if ef.Pattern == "" {
			return nil, fmt.Errorf("dialog expectation requires a pattern")
		}
		if _, err := regexp.Compile(ef.Pattern); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", ef.Pattern, err)
		}
		return harness.ExpectDialog(ef.Label, ef.Pattern), nil

	default:
		return nil, fmt.Errorf("unknown expectation type %q", ef.Type)
	}
}

// selectorConcept builds a concept from an ordered selector list.
func selectorConcept(name string, selectors []string) *harness.Concept {
	concept := &harness.Concept{Name: name}
	for _, selector := range selectors {
		concept.Candidates = append(concept.Candidates, harness.Candidate{Selector: selector})
	}
	return concept
}

// buttonConcept builds button-shaped candidates for a visible label.
func buttonConcept(label string) harness.Concept {
	return harness.Concept{
		Name: fmt.Sprintf("button %q", label),
		Candidates: []harness.Candidate{
			{Selector: "button", Text: label},
			{Selector: "input[type=button]", Attr: "value", AttrValue: label},
			{Selector: "input[type=submit]", Attr: "value", AttrValue: label},
			{Selector: "[role=button]", Text: label},
		},
	}
}
