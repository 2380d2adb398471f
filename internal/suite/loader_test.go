package suite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/specto/internal/common"
	"github.com/ternarybob/specto/internal/harness"
)

const tomlSuite = `
name = "custom-sorting"

[[scenario]]
name = "renders custom array"
path = "/sorting.html"
timeout = "45s"
required = ["#arrayInput", "input[type=text]"]
allowed_errors = ["ResizeObserver loop"]

[scenario.dialog]
accept = true

[[scenario.step]]
name = "enter values"

[scenario.step.action]
type = "fill"
selector = "#arrayInput"
value = "9,1,4"

[[scenario.step]]
name = "apply"
wait_signals = true

[scenario.step.action]
type = "click"
button = "Apply"

[scenario.step.expect]
type = "count"
label = "tiles rendered"
selectors = [".tile", "#array-container > div"]
min = 3.0
`

const yamlSuite = `
name: custom-queue
scenarios:
  - name: overflow raises dialog
    path: /queue.html
    dialog:
      accept: true
    steps:
      - name: fill beyond capacity
        action:
          type: click
          button: Enqueue
          repeat: 11
      - name: dialog observed
        wait_signals: true
        expect:
          type: dialog
          label: full queue dialog
          pattern: queue is full
      - name: nothing thrown
        expect:
          type: forbid_exception
          label: no exceptions
`

func writeSuiteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestLoader(dir string) *Loader {
	return NewLoader(common.SuitesConfig{Dir: dir}, common.GetLogger())
}

func TestLoadFileTOML(t *testing.T) {
	dir := t.TempDir()
	path := writeSuiteFile(t, dir, "sorting.toml", tomlSuite)

	s, err := newTestLoader(dir).LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "custom-sorting", s.Name)
	require.Len(t, s.Scenarios, 1)

	scenario := s.Scenarios[0]
	assert.Equal(t, "renders custom array", scenario.Name)
	assert.Equal(t, "/sorting.html", scenario.Path)
	assert.Equal(t, 45*time.Second, scenario.Timeout)
	assert.True(t, scenario.DefaultDialog.Accept)
	require.NotNil(t, scenario.Required)
	assert.Len(t, scenario.Required.Candidates, 2)
	require.Len(t, scenario.AllowedErrors, 1)
	assert.True(t, scenario.AllowedErrors[0].MatchString("ResizeObserver loop limit exceeded"))

	require.Len(t, scenario.Steps, 2)
	assert.NotNil(t, scenario.Steps[0].Action)
	assert.Nil(t, scenario.Steps[0].Check)
	assert.True(t, scenario.Steps[1].WaitSignals)
	require.NotNil(t, scenario.Steps[1].Check)
	assert.Equal(t, "tiles rendered", scenario.Steps[1].Check.Name())
}

func TestLoadFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeSuiteFile(t, dir, "queue.yaml", yamlSuite)

	s, err := newTestLoader(dir).LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "custom-queue", s.Name)
	require.Len(t, s.Scenarios, 1)

	scenario := s.Scenarios[0]
	assert.True(t, scenario.DefaultDialog.Accept)
	require.Len(t, scenario.Steps, 3)
	assert.Equal(t, "full queue dialog", scenario.Steps[1].Check.Name())
	assert.Equal(t, "no exceptions", scenario.Steps[2].Check.Name())
}

func TestLoadDirMergesAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeSuiteFile(t, dir, "a-sorting.toml", tomlSuite)
	writeSuiteFile(t, dir, "b-queue.yaml", yamlSuite)
	writeSuiteFile(t, dir, "notes.txt", "not a suite file")

	suites, err := newTestLoader(dir).LoadDir()
	require.NoError(t, err)
	assert.Len(t, suites, 2)
	assert.Contains(t, suites, "custom-sorting")
	assert.Contains(t, suites, "custom-queue")
}

func TestLoadDirMissingDirectoryIsEmpty(t *testing.T) {
	suites, err := newTestLoader(filepath.Join(t.TempDir(), "absent")).LoadDir()
	require.NoError(t, err)
	assert.Empty(t, suites)
}

func TestLoadDirRejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	writeSuiteFile(t, dir, "one.toml", tomlSuite)
	writeSuiteFile(t, dir, "two.toml", tomlSuite)

	_, err := newTestLoader(dir).LoadDir()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate suite name")
}

func TestLoadFileValidation(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{
			name:    "missing suite name",
			file:    "unnamed.yaml",
			content: "scenarios:\n  - name: s\n    path: /p\n    steps:\n      - name: step\n        action: {type: click, selector: 'button'}\n",
			want:    "validation failed",
		},
		{
			name:    "no scenarios",
			file:    "empty.yaml",
			content: "name: empty\n",
			want:    "validation failed",
		},
		{
			name:    "unknown action type",
			file:    "badaction.yaml",
			content: "name: bad\nscenarios:\n  - name: s\n    path: /p\n    steps:\n      - name: step\n        action: {type: hover, selector: 'button'}\n",
			want:    "validation failed",
		},
		{
			name:    "unknown expectation type",
			file:    "badexpect.yaml",
			content: "name: bad\nscenarios:\n  - name: s\n    path: /p\n    steps:\n      - name: step\n        expect: {type: visible, label: l}\n",
			want:    "validation failed",
		},
		{
			name:    "invalid pattern",
			file:    "badpattern.yaml",
			content: "name: bad\nscenarios:\n  - name: s\n    path: /p\n    steps:\n      - name: step\n        expect: {type: console, label: l, pattern: '['}\n",
			want:    "invalid pattern",
		},
		{
			name:    "invalid timeout",
			file:    "badtimeout.yaml",
			content: "name: bad\nscenarios:\n  - name: s\n    path: /p\n    timeout: soon\n    steps:\n      - name: step\n        action: {type: click, selector: 'button'}\n",
			want:    "invalid timeout",
		},
		{
			name:    "empty step",
			file:    "emptystep.yaml",
			content: "name: bad\nscenarios:\n  - name: s\n    path: /p\n    steps:\n      - name: step\n",
			want:    "neither an action nor an expectation",
		},
		{
			name:    "click without target",
			file:    "clicknowhere.yaml",
			content: "name: bad\nscenarios:\n  - name: s\n    path: /p\n    steps:\n      - name: step\n        action: {type: click}\n",
			want:    "selector or a button text",
		},
		{
			name:    "unknown modifier",
			file:    "badmod.yaml",
			content: "name: bad\nscenarios:\n  - name: s\n    path: /p\n    steps:\n      - name: step\n        action: {type: press, key: Enter, modifiers: [hyper]}\n",
			want:    "unknown modifier",
		},
	}

	loader := newTestLoader(dir)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeSuiteFile(t, dir, tc.file, tc.content)
			_, err := loader.LoadFile(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestCompileExpectDefaults(t *testing.T) {
	// forbid_exception without a pattern forbids every exception.
	e, err := compileExpect(ExpectFile{Type: "forbid_exception", Label: "clean page"})
	require.NoError(t, err)
	sig, ok := e.(*harness.SignalExpectation)
	require.True(t, ok)
	assert.True(t, sig.Forbid)
	assert.True(t, sig.Pattern.MatchString("anything at all"))

	// console min below 1 is raised to 1.
	e, err = compileExpect(ExpectFile{Type: "console", Label: "warned", Pattern: "Overflow"})
	require.NoError(t, err)
	sig, ok = e.(*harness.SignalExpectation)
	require.True(t, ok)
	assert.Equal(t, 1, sig.MinCount)
}

func TestCompileMonotonicExpectation(t *testing.T) {
	e, err := compileExpect(ExpectFile{
		Type:      "monotonic",
		Label:     "comparison counter",
		Selectors: []string{"#comparisons", ".comparisons"},
		Optional:  true,
	})
	require.NoError(t, err)
	num, ok := e.(*harness.NumericExpectation)
	require.True(t, ok)
	assert.True(t, num.Monotonic)
	assert.True(t, num.Opt)
	assert.Len(t, num.Concept.Candidates, 2)

	_, err = compileExpect(ExpectFile{Type: "monotonic", Label: "no selectors"})
	require.Error(t, err)
}

func TestParseModifiers(t *testing.T) {
	mods, err := parseModifiers([]string{"ctrl", "Shift"})
	require.NoError(t, err)
	assert.NotZero(t, mods)

	none, err := parseModifiers(nil)
	require.NoError(t, err)
	assert.Zero(t, none)
}

func TestButtonConceptShapes(t *testing.T) {
	concept := buttonConcept("Apply")
	require.Len(t, concept.Candidates, 4)
	assert.Equal(t, "button", concept.Candidates[0].Selector)
	assert.Equal(t, "Apply", concept.Candidates[0].Text)
	assert.Equal(t, "value", concept.Candidates[1].Attr)
	assert.Equal(t, "Apply", concept.Candidates[1].AttrValue)
}
