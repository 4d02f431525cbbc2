package template

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthurguyader/sec-lsm-manager/internal/apperr"
)

func TestExpandLineOrderAndRepeat(t *testing.T) {
	replacements := []Replacement{
		{Token: "~ID~", Value: "myapp_id"},
		{Token: "~APP~", Value: "myapp"},
	}
	out, err := ExpandLine("allow ~ID~ ~APP~ ~APP~;", replacements)
	require.NoError(t, err)
	assert.Equal(t, "allow myapp_id myapp myapp;", out)
}

func TestExpandToFileSelinuxKeepsCommentsAndBlanks(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/tmpl.te", []byte("# header\n\npolicy_module(~ID~, 1.0)\n"), 0644))

	eng := New(fs)
	replacements := []Replacement{{Token: "~ID~", Value: "myapp"}}

	require.NoError(t, eng.ExpandToFile("/tmpl.te", "/out.te", replacements, 0, KeepLine))

	out, err := afero.ReadFile(fs, "/out.te")
	require.NoError(t, err)
	assert.Equal(t, "# header\n\npolicy_module(myapp, 1.0)\n", string(out))
}

func TestExpandSmackSkipsCommentsAndBlanks(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/tmpl.smack", []byte("# comment\n\n~APP~ System rwx\n"), 0644))

	eng := New(fs)
	replacements := []Replacement{{Token: "~APP~", Value: "myapp"}}

	var lines []string
	err := eng.Expand("/tmpl.smack", replacements, '#', SkipLine, func(line string) error {
		lines = append(lines, line)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"myapp System rwx"}, lines)
}

func TestExpandLineTooLong(t *testing.T) {
	fs := afero.NewMemMapFs()
	longLine := make([]byte, DefaultMaxLineLength+10)
	for i := range longLine {
		longLine[i] = 'a'
	}
	require.NoError(t, afero.WriteFile(fs, "/tmpl", longLine, 0644))

	eng := New(fs)
	err := eng.Expand("/tmpl", nil, 0, KeepLine, func(string) error { return nil })
	require.Error(t, err)
	assert.Equal(t, apperr.LineTooLong, apperr.KindOf(err))
}

func TestExpandMissingTemplate(t *testing.T) {
	fs := afero.NewMemMapFs()
	eng := New(fs)
	err := eng.Expand("/does-not-exist", nil, 0, KeepLine, func(string) error { return nil })
	require.Error(t, err)
	assert.Equal(t, apperr.IO, apperr.KindOf(err))
}
