package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"single quotes", `fill e7 'hello world'`, []string{"fill", "e7", "hello world"}},
		{"double quotes", `fill e7 "hello world"`, []string{"fill", "e7", "hello world"}},
		{"other quote kind inside span", `eval "document.title = 'x'"`, []string{"eval", "document.title = 'x'"}},
		{"quote inside token", `fill e7 a"b c"d`, []string{"fill", "e7", "ab cd"}},
		{"unterminated quote runs to end", `fill e7 "hello   world`, []string{"fill", "e7", "hello   world"}},
		{"empty quoted value", `fill e7 ""`, []string{"fill", "e7", ""}},
		{"extra whitespace", "  click \t e5  ", []string{"click", "e5"}},
		{"only whitespace", "   \t ", nil},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.line))
		})
	}
}

func TestResolve(t *testing.T) {
	assert.Equal(t, "click", Resolve("c"))
	assert.Equal(t, "click", Resolve("C"))
	assert.Equal(t, "snapshot", Resolve("Snap"))
	assert.Equal(t, "click", Resolve("click"))
	assert.Equal(t, "Frobnicate", Resolve("Frobnicate"), "unknown names pass through unchanged")
}

func TestParse_Empty(t *testing.T) {
	_, ok := Parse("")
	assert.False(t, ok)
	_, ok = Parse("   ")
	assert.False(t, ok)
}

func TestParse_BooleanFlagsOnlyWhenSupplied(t *testing.T) {
	cmd, ok := Parse("click e5")
	require.True(t, ok)
	assert.Equal(t, "click", cmd.Name)
	assert.Equal(t, []string{"e5"}, cmd.Positional)
	assert.Empty(t, cmd.Flags)
	for name := range booleanFlags {
		assert.NotContains(t, cmd.Args(), name)
	}

	cmd, ok = Parse("open --no-headed")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"headed": false}, cmd.Flags)
	assert.Equal(t, false, cmd.Args()["headed"])

	cmd, ok = Parse("open --headed https://example.com")
	require.True(t, ok)
	assert.Equal(t, true, cmd.Flags["headed"])
	assert.Equal(t, []string{"https://example.com"}, cmd.Positional, "a boolean flag never swallows a positional")
}

func TestParse_ExplicitValueOnBooleanFlag(t *testing.T) {
	cmd, _ := Parse("open --headed false")
	assert.Equal(t, false, cmd.Flags["headed"])
	assert.Empty(t, cmd.Positional)

	cmd, _ = Parse("open --headed=true")
	assert.Equal(t, true, cmd.Flags["headed"])

	cmd, _ = Parse("open --persistent=maybe")
	assert.Equal(t, "maybe", cmd.Flags["persistent"])
}

func TestParse_BooleanSpellings(t *testing.T) {
	tests := []struct {
		line string
		want map[string]any
	}{
		{"open --headed yes", map[string]any{"headed": true}},
		{"open --headed=off", map[string]any{"headed": false}},
		{"open --headed --no-persistent", map[string]any{"headed": true, "persistent": false}},
		{"open --no-headed --headed", map[string]any{"headed": true}},
		{"snapshot --no-trace", map[string]any{"trace": false}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, ok := Parse(tt.line)
			require.True(t, ok)
			assert.Equal(t, tt.want, cmd.Flags)
			assert.Empty(t, cmd.Positional)
		})
	}
}

func TestParse_ValuesAreStrings(t *testing.T) {
	cmd, ok := Parse(`screenshot --filename "out 1.png" --quality 80 --full-page`)
	require.True(t, ok)
	assert.Equal(t, "out 1.png", cmd.Flags["filename"])
	assert.Equal(t, "80", cmd.Flags["quality"])
	assert.Equal(t, true, cmd.Flags["full-page"])

	cmd, _ = Parse("resize 1280 720")
	assert.Equal(t, []string{"1280", "720"}, cmd.Positional)
	assert.Equal(t, []string{"resize", "1280", "720"}, cmd.Args()["_"])
}

func TestParse_UndeclaredFlagWithoutValue(t *testing.T) {
	cmd, _ := Parse("snapshot --verbose --depth 3")
	assert.Equal(t, true, cmd.Flags["verbose"])
	assert.Equal(t, "3", cmd.Flags["depth"])
}

func TestParse_DoubleDashEndsFlags(t *testing.T) {
	cmd, _ := Parse("fill e7 -- --not-a-flag")
	assert.Equal(t, []string{"e7", "--not-a-flag"}, cmd.Positional)
	assert.Empty(t, cmd.Flags)
}

func TestParse_AliasAndArgs(t *testing.T) {
	cmd, ok := Parse(`F e7 'hello world' --submit`)
	require.True(t, ok)
	assert.Equal(t, "fill", cmd.Name)
	assert.Equal(t, `F e7 'hello world' --submit`, cmd.Raw)
	assert.Equal(t, map[string]any{
		"_":      []string{"fill", "e7", "hello world"},
		"submit": true,
	}, cmd.Args())
}

func TestValidate(t *testing.T) {
	cmd, _ := Parse("click")
	err := cmd.Validate()
	var inputErr *UserInputError
	require.ErrorAs(t, err, &inputErr)
	assert.Contains(t, inputErr.Error(), "click requires 1 argument")

	cmd, _ = Parse("fill e7 text")
	assert.NoError(t, cmd.Validate())

	cmd, _ = Parse("some-future-command")
	assert.NoError(t, cmd.Validate(), "unknown commands are left to the backend")
}

func TestNamesSorted(t *testing.T) {
	names := Names()
	require.NotEmpty(t, names)
	assert.IsIncreasing(t, names)
	for alias, target := range Aliases() {
		assert.True(t, Known(target), "alias %s points to unknown command %s", alias, target)
	}
}
