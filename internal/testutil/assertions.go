// Package testutil provides assertions shared by package tests.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/reglet-dev/scripthost/domain/entities"
	domainerrors "github.com/reglet-dev/scripthost/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertValue compares script values structurally and prints both in
// script notation on failure.
func AssertValue(t *testing.T, want, got entities.Value, msgAndArgs ...any) bool {
	t.Helper()
	if want.Equal(got) {
		return true
	}
	return assert.Fail(t, "values differ\nwant: "+want.Debug()+"\ngot:  "+got.Debug(), msgAndArgs...)
}

// RequireRuntimeError asserts err is a *RuntimeError with the given code and
// returns it.
func RequireRuntimeError(t *testing.T, err error, code string) *domainerrors.RuntimeError {
	t.Helper()
	var re *domainerrors.RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, code, re.Code, "error: %v", err)
	return re
}

// AssertJSONEqual compares two JSON strings for equality, ignoring formatting
func AssertJSONEqual(t *testing.T, expected, actual string, msgAndArgs ...any) {
	t.Helper()

	var expectedJSON, actualJSON any
	require.NoError(t, json.Unmarshal([]byte(expected), &expectedJSON), "expected JSON is invalid")
	require.NoError(t, json.Unmarshal([]byte(actual), &actualJSON), "actual JSON is invalid")

	assert.Equal(t, expectedJSON, actualJSON, msgAndArgs...)
}

// WriteFile writes content to name under dir and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
