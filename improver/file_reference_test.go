package improver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/meysamhadeli/scaffai/artifact_store"
	"github.com/meysamhadeli/scaffai/languages"
	"github.com/meysamhadeli/scaffai/test_runner/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScanner(t *testing.T, language string, files map[string]string) (*referenceScanner, *artifact_store.Store) {
	t.Helper()
	profile, err := languages.Lookup(language)
	require.NoError(t, err)
	store, err := artifact_store.NewStore(t.TempDir(), "calc", profile.Extension, nil)
	require.NoError(t, err)
	_, err = store.EnsureWorkspace()
	require.NoError(t, err)
	for name, content := range files {
		require.NoError(t, store.WriteUnit(name, content))
	}
	return &referenceScanner{
		marker:    profile.FileMarker,
		fallback:  profile.QuotedFallback,
		extension: profile.Extension,
		workspace: store,
	}, store
}

func TestReferenceScanner_Python(t *testing.T) {
	tests := []struct {
		name   string
		files  map[string]string
		detail func(root string) string
		want   fileReference
	}{
		{
			name: "library frame before workspace frame",
			detail: func(root string) string {
				return "Traceback (most recent call last):\n" +
					"  File \"/usr/lib/python3/site-packages/_pytest/python.py\", line 12, in call\n" +
					"  File \"" + filepath.Join(root, "calculator.py") + "\", line 3, in subtract\n" +
					"AssertionError"
			},
			want: fileReference{Unit: "calculator"},
		},
		{
			name:   "relative path",
			detail: func(string) string { return "  File \"pkg/calculator.py\", line 3, in add" },
			want:   fileReference{Unit: "pkg/calculator"},
		},
		{
			name:   "escape outside workspace",
			detail: func(string) string { return "  File \"../x.py\", line 1, in <module>" },
			want:   fileReference{Unit: UnknownFile},
		},
		{
			name:   "quoted fallback only",
			detail: func(string) string { return "ImportError: cannot import name 'add' from \"calculator.py\"" },
			want:   fileReference{Unit: "calculator"},
		},
		{
			name:   "no marker",
			detail: func(string) string { return "AssertionError: assert 5 == -1" },
			want:   fileReference{Unit: UnknownFile},
		},
		{
			name:   "other file type",
			detail: func(string) string { return "  File \"conftest.cfg\", line 1" },
			want:   fileReference{Unit: UnknownFile},
		},
		{
			name:   "existing file keeps its case",
			files:  map[string]string{"Sub/Calc.py": "class Calc:\n    pass\n"},
			detail: func(string) string { return "  File \"Sub/Calc.py\", line 2, in add" },
			want:   fileReference{Unit: "Sub/Calc", File: "Sub/Calc.py"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner, store := newScanner(t, "python", tt.files)
			assert.Equal(t, tt.want, scanner.unitFor(tt.detail(store.Root())))
		})
	}
}

func TestReferenceScanner_Go(t *testing.T) {
	files := map[string]string{
		"go.mod":                "module example.com/calc\n\ngo 1.22\n",
		"calc.go":               "package calc\n",
		"pkg/calc/calc_test.go": "package calc\n",
	}

	tests := []struct {
		name   string
		detail string
		dirs   []string
		want   fileReference
	}{
		{
			name:   "build error",
			detail: "# example.com/calc\n./calc.go:5:2: undefined: sub",
			want:   fileReference{Unit: "calc", File: "calc.go"},
		},
		{
			name:   "test failure in root package",
			detail: "=== RUN   TestAdd\n    calc_test.go:12: got 5, want -1",
			want:   fileReference{Unit: "calc_test"},
		},
		{
			name:   "test failure in nested package",
			detail: "=== RUN   TestAdd\n    calc_test.go:12: got 5, want -1",
			dirs:   []string{"pkg/calc"},
			want:   fileReference{Unit: "pkg/calc/calc_test", File: "pkg/calc/calc_test.go"},
		},
		{
			name:   "standard library frame skipped",
			detail: "/usr/local/go/src/testing/testing.go:1689 +0x10\n./calc.go:9 +0x2",
			want:   fileReference{Unit: "calc", File: "calc.go"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner, _ := newScanner(t, "go", files)
			assert.Equal(t, tt.want, scanner.unitFor(tt.detail, tt.dirs...))
		})
	}
}

func TestGoPackageDir(t *testing.T) {
	_, store := newScanner(t, "go", map[string]string{"go.mod": "module example.com/calc\n"})

	tests := []struct {
		failureID string
		want      string
		ok        bool
	}{
		{failureID: "example.com/calc/pkg/calc::TestAdd", want: "pkg/calc", ok: true},
		{failureID: "example.com/calc/pkg/calc [example.com/calc/pkg/calc.test]", want: "pkg/calc", ok: true},
		{failureID: "example.com/calc::TestAdd", ok: false},
		{failureID: "example.com/calculator/x::TestAdd", ok: false},
		{failureID: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.failureID, func(t *testing.T) {
			dir, ok := goPackageDir(store, tt.failureID)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, dir)
		})
	}

	_, bare := newScanner(t, "go", nil)
	_, ok := goPackageDir(bare, "example.com/calc/pkg/calc::TestAdd")
	assert.False(t, ok)
}

func TestImprove_PatchesExistingFileAsNamed(t *testing.T) {
	f := newFixture(t)
	original := "class Calc:\n    def add(self, a, b):\n        return a - b\n"
	require.NoError(t, f.store.WriteUnit("Sub/Calc.py", original))
	f.runner.outcomes = []*models.TestOutcome{
		failing(traceback("Sub/Calc.py", 3)),
		models.Passed(),
	}

	result, err := f.improver(t, Options{MaxIterations: 2}).Improve(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Patches, 1)
	assert.Equal(t, "Sub/Calc.py", result.Patches[0].File)
	assert.Equal(t, "Sub/Calc.py", f.fixer.requests[0].File)

	content, err := f.store.ReadUnit("Sub/Calc.py")
	require.NoError(t, err)
	assert.Equal(t, original+"\ndef fixed_function():\n    return 1", content)
	assert.False(t, f.store.Exists("sub/calc.py"))
}

func TestImprove_GoFailureInNestedPackage(t *testing.T) {
	store, err := artifact_store.NewStore(t.TempDir(), "calc", ".go", nil)
	require.NoError(t, err)
	_, err = store.EnsureWorkspace()
	require.NoError(t, err)
	require.NoError(t, store.WriteUnit("go.mod", "module example.com/calc\n"))
	require.NoError(t, store.WriteUnit("pkg/calc/calc_test.go", "package calc\n"))

	log := &eventLog{}
	runner := &scriptedRunner{log: log, outcomes: []*models.TestOutcome{
		models.Failed(models.FailureRecord{
			ID:     "example.com/calc/pkg/calc::TestAdd",
			Detail: "=== RUN   TestAdd\n    calc_test.go:12: got 5, want -1\n--- FAIL: TestAdd (0.00s)",
		}),
		models.Passed(),
	}}
	fixer := &scriptedFixer{log: log}
	profile, err := languages.Lookup("go")
	require.NoError(t, err)

	result, err := NewImprover(store, runner, fixer, profile, Options{MaxIterations: 2}).Improve(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Patches, 1)
	assert.Equal(t, "pkg/calc/calc_test.go", result.Patches[0].File)
	assert.Equal(t, "pkg/calc/calc_test", result.Patches[0].Unit)
	assert.False(t, store.Exists("calc_test.go"))
}
