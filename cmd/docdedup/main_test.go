package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ZaguanLabs/docdedup"
	"github.com/ZaguanLabs/docdedup/index"
)

// testEnv isolates configuration to a fresh data directory.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, kv := range os.Environ() {
		if name, _, _ := strings.Cut(kv, "="); strings.HasPrefix(name, "DOCDEDUP_") {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("DOCDEDUP_DATA_DIR", dir)
	t.Setenv("DOCDEDUP_LOG_LEVEL", "none")
	return dir
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

// translated splits "status\tpath" output.
func translated(t *testing.T, out string) (string, string) {
	t.Helper()
	status, path, ok := strings.Cut(strings.TrimSpace(out), "\t")
	require.True(t, ok, "unexpected output %q", out)
	return status, path
}

func TestRun_Version(t *testing.T) {
	stdout, _, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "docdedup")
	assert.Contains(t, stdout, docdedup.Version)
}

func TestRun_TranslateTextTwice(t *testing.T) {
	dir := testEnv(t)

	out, _, err := runCLI(t, "translate", "--text", "Hello world", "--to", "zh", "--service", "mock")
	require.NoError(t, err)
	status, path := translated(t, out)
	assert.Equal(t, "translated", status)
	assert.Equal(t, filepath.Join(dir, "outputs"), filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[Hello world]", string(data))

	out, _, err = runCLI(t, "translate", "--text", "  Hello world\n", "--to", "zh", "--service", "mock")
	require.NoError(t, err)
	status, again := translated(t, out)
	assert.Equal(t, "cached", status)
	assert.Equal(t, path, again)

	_, err = os.Stat(filepath.Join(dir, "index.json"))
	assert.NoError(t, err, "index should be persisted in the data directory")
}

func TestRun_TranslateFileRegeneratesDeletedOutput(t *testing.T) {
	testEnv(t)
	in := filepath.Join(t.TempDir(), "doc.html")
	require.NoError(t, os.WriteFile(in, []byte("<html><body><p>Hello</p></body></html>"), 0o644))

	out, _, err := runCLI(t, "translate", in, "--to", "es", "--service", "mock")
	require.NoError(t, err)
	_, path := translated(t, out)
	assert.Equal(t, ".html", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Hola")

	require.NoError(t, os.Remove(path))

	out, _, err = runCLI(t, "translate", in, "--to", "es", "--service", "mock")
	require.NoError(t, err)
	status, regenerated := translated(t, out)
	assert.Equal(t, "translated", status)
	assert.NotEqual(t, path, regenerated)
}

func TestRun_TranslateJSON(t *testing.T) {
	testEnv(t)

	out, _, err := runCLI(t, "translate", "--text", "Hello", "--to", "es", "--service", "mock", "--json")
	require.NoError(t, err)

	var res struct {
		Key        string `json:"key"`
		OutputPath string `json:"output_path"`
		Cached     bool   `json:"cached"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Len(t, res.Key, 64)
	assert.False(t, res.Cached)
	assert.FileExists(t, res.OutputPath)
}

func TestRun_TranslateErrors(t *testing.T) {
	testEnv(t)

	_, _, err := runCLI(t, "translate", "--text", "Hello", "--service", "mock")
	assert.ErrorContains(t, err, "target language")

	_, _, err = runCLI(t, "translate", "--text", "Hello", "--to", "es")
	assert.ErrorContains(t, err, "API key")

	_, _, err = runCLI(t, "translate", "--to", "es", "--service", "mock")
	assert.ErrorContains(t, err, "nothing to translate")

	_, _, err = runCLI(t, "translate", filepath.Join(t.TempDir(), "missing.txt"), "--to", "es", "--service", "mock")
	var nf *docdedup.NotFoundError
	assert.ErrorAs(t, err, &nf)

	_, _, err = runCLI(t, "translate", "a.txt", "--text", "Hello", "--to", "es", "--service", "mock")
	assert.ErrorContains(t, err, "not both")
}

func TestRun_Key(t *testing.T) {
	testEnv(t)

	out, _, err := runCLI(t, "key", "--text", "Hello world", "--from", "en", "--to", "zh", "--service", "mock")
	require.NoError(t, err)

	want, err := docdedup.DeriveKey(context.Background(), docdedup.Request{
		Mode: docdedup.ModeText, Input: "Hello world", ServiceID: "mock;text", SourceLang: "en", TargetLang: "zh",
	})
	require.NoError(t, err)
	assert.Equal(t, want.String(), strings.TrimSpace(out))

	keyWith := func(extra ...string) string {
		args := append([]string{"key", "--text", "Hello world", "--to", "zh", "--service", "mock"}, extra...)
		out, _, err := runCLI(t, args...)
		require.NoError(t, err)
		return strings.TrimSpace(out)
	}
	base := keyWith()
	assert.NotEqual(t, base, keyWith("--context", "Legal contract"))
	assert.NotEqual(t, base, keyWith("--exclude", "ACME"))
	assert.NotEqual(t, base, keyWith("--style", "formal"))
	assert.NotEqual(t, base, keyWith("--glossary", "world=mundo"))
	assert.Equal(t, keyWith("--exclude", "a,b"), keyWith("--exclude", "b, a"))

	_, _, err = runCLI(t, "key", "--text", "Hello", "--style", "pirate")
	assert.ErrorContains(t, err, "unknown style")
}

func TestRun_SameBytesAsHTMLAndText(t *testing.T) {
	testEnv(t)
	dir := t.TempDir()
	body := []byte("<p>Hello</p>")
	html := filepath.Join(dir, "a.html")
	txt := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(html, body, 0o644))
	require.NoError(t, os.WriteFile(txt, body, 0o644))

	out, _, err := runCLI(t, "translate", html, "--to", "es", "--service", "mock")
	require.NoError(t, err)
	_, htmlOut := translated(t, out)

	out, _, err = runCLI(t, "translate", txt, "--to", "es", "--service", "mock")
	require.NoError(t, err)
	status, txtOut := translated(t, out)

	assert.Equal(t, "translated", status, "text request must not reuse the html output")
	assert.Equal(t, ".html", filepath.Ext(htmlOut))
	assert.Equal(t, ".txt", filepath.Ext(txtOut))
}

func TestRun_LookupByRequest(t *testing.T) {
	testEnv(t)

	out, _, err := runCLI(t, "translate", "--text", "Hello", "--to", "es", "--service", "mock")
	require.NoError(t, err)
	_, path := translated(t, out)

	out, _, err = runCLI(t, "lookup", "--text", "Hello", "--to", "es", "--service", "mock")
	require.NoError(t, err)
	assert.Equal(t, path, strings.TrimSpace(out))

	_, _, err = runCLI(t, "lookup", "--text", "Hello", "--to", "es", "--service", "mock", "--style", "formal")
	assert.ErrorContains(t, err, "no output registered")

	_, _, err = runCLI(t, "lookup", "--file", filepath.Join(t.TempDir(), "missing.txt"), "--to", "es")
	var nf *docdedup.NotFoundError
	assert.ErrorAs(t, err, &nf)

	_, _, err = runCLI(t, "lookup", strings.Repeat("A", 64), "--text", "Hello")
	assert.ErrorContains(t, err, "not both")
}

func TestRun_IndexCommands(t *testing.T) {
	dir := testEnv(t)
	key := strings.Repeat("ab", 32)
	upper := strings.ToUpper(key)

	output := filepath.Join(t.TempDir(), "existing.txt")
	require.NoError(t, os.WriteFile(output, []byte("done"), 0o644))

	_, _, err := runCLI(t, "lookup", key)
	assert.ErrorContains(t, err, "no output registered")

	_, _, err = runCLI(t, "register", key, output)
	require.NoError(t, err)

	out, _, err := runCLI(t, "lookup", key)
	require.NoError(t, err)
	assert.Equal(t, output, strings.TrimSpace(out))

	out, _, err = runCLI(t, "list", "--format", "json")
	require.NoError(t, err)
	var entries []index.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, upper, entries[0].Key)
	assert.Equal(t, output, entries[0].OutputPath)

	out, _, err = runCLI(t, "list", "--format", "yaml")
	require.NoError(t, err)
	var fromYAML []map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &fromYAML))
	require.Len(t, fromYAML, 1)
	assert.Equal(t, upper, fromYAML[0]["key"])

	out, _, err = runCLI(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, upper[:16])
	assert.Contains(t, out, output)

	out, _, err = runCLI(t, "evict", key)
	require.NoError(t, err)
	assert.Contains(t, out, "evicted")

	out, _, err = runCLI(t, "evict", key)
	require.NoError(t, err)
	assert.Contains(t, out, "not in index")

	_, err = os.Stat(filepath.Join(dir, "index.json"))
	assert.NoError(t, err)
}

func TestRun_Prune(t *testing.T) {
	testEnv(t)
	output := filepath.Join(t.TempDir(), "gone.txt")
	require.NoError(t, os.WriteFile(output, []byte("x"), 0o644))

	_, _, err := runCLI(t, "register", strings.Repeat("C", 64), output)
	require.NoError(t, err)
	require.NoError(t, os.Remove(output))

	out, _, err := runCLI(t, "prune")
	require.NoError(t, err)
	assert.Equal(t, "removed 1 dangling entries", strings.TrimSpace(out))
}

func TestRun_ArgumentValidation(t *testing.T) {
	testEnv(t)

	_, _, err := runCLI(t, "lookup", "not-a-key")
	assert.Error(t, err)

	_, _, err = runCLI(t, "register", strings.Repeat("A", 64), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorContains(t, err, "output file")

	_, _, err = runCLI(t, "register", strings.Repeat("A", 64), t.TempDir())
	assert.ErrorContains(t, err, "not a regular file")

	_, _, err = runCLI(t, "list", "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestRun_CustomIndexFlag(t *testing.T) {
	testEnv(t)
	indexPath := filepath.Join(t.TempDir(), "nested", "custom.json")

	_, _, err := runCLI(t, "translate", "--index", indexPath, "--text", "Hello", "--to", "es", "--service", "mock")
	require.NoError(t, err)
	assert.FileExists(t, indexPath)
}
