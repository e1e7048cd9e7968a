package terraform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/opslens/internal/util"
)

func names(files []File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Name)
	}
	return out
}

func TestParseFiles_Markers(t *testing.T) {
	raw := `Here is your code:

### main.tf ###
# Main infrastructure configuration
resource "aws_s3_bucket" "logs" {
  bucket = var.bucket_name
}

### Notes ###
lifecycle rules are optional

### variables.tf ###
` + "```hcl" + `
variable "bucket_name" {
  type = string
}
` + "```" + `

### outputs.tf ###
output "bucket_arn" {
  value = aws_s3_bucket.logs.arn
}

### terraform.tfvars.example ###
bucket_name = "my-logs"
`

	files := ParseFiles(raw)
	require.Equal(t, []string{"main.tf", "variables.tf", "outputs.tf", "terraform.tfvars.example"}, names(files))

	assert.True(t, strings.HasPrefix(files[0].Content, "# Main infrastructure configuration"))
	assert.Contains(t, files[0].Content, "# notes\nlifecycle rules are optional")
	assert.NotContains(t, files[1].Content, "```")
	assert.Equal(t, "variable \"bucket_name\" {\n  type = string\n}", files[1].Content)
	assert.Equal(t, `bucket_name = "my-logs"`, files[3].Content)
	assert.Equal(t, 3, files[1].Lines())
}

func TestParseFiles_MarkerNamesAreSanitized(t *testing.T) {
	raw := "### File: ../../etc/main.tf ###\nresource \"x\" \"y\" {}\n### `modules/vpc/VARS.TF` ###\nvariable \"a\" {}\n"
	files := ParseFiles(raw)
	assert.Equal(t, []string{"main.tf", "vars.tf"}, names(files))
}

func TestParseFiles_KnownNameFallback(t *testing.T) {
	raw := "main.tf:\n```hcl\nresource \"aws_instance\" \"web\" {}\n```\n\nvariables.tf:\n```terraform\nvariable \"region\" {}\n```\nThe main.tfvars file is optional."
	files := ParseFiles(raw)
	require.Equal(t, []string{"main.tf", "variables.tf"}, names(files))
	assert.Equal(t, `resource "aws_instance" "web" {}`, files[0].Content)
	assert.True(t, strings.HasPrefix(files[1].Content, `variable "region" {}`))

	// case changes that alter byte length must not shift file boundaries
	files = ParseFiles(strings.Repeat("İ", 100) + "MAIN.TF\nx\nvariables.tf\ny")
	require.Equal(t, []string{"main.tf", "variables.tf"}, names(files))
	assert.Equal(t, "x", files[0].Content)
	assert.Equal(t, "y", files[1].Content)
	for _, f := range files {
		assert.True(t, utf8.ValidString(f.Content))
	}

	raw = strings.Repeat("Ⱥ", 10) + "main.tf"
	assert.NotPanics(t, func() { files = ParseFiles(raw) })
	require.Len(t, files, 1)
	assert.Equal(t, raw, files[0].Content)
}

func TestParseFiles_LastResort(t *testing.T) {
	files := ParseFiles("```\nresource \"null_resource\" \"x\" {}\n```")
	require.Len(t, files, 1)
	assert.Equal(t, DefaultFile, files[0].Name)
	assert.Equal(t, `resource "null_resource" "x" {}`, files[0].Content)

	assert.Empty(t, ParseFiles("   "))
}

func TestProviderName(t *testing.T) {
	name, err := ProviderName("GCP")
	require.NoError(t, err)
	assert.Equal(t, "google", name)

	_, err = ProviderName("oracle")
	assert.Error(t, err)
}

func TestSaveAndDiff(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "generated")
	files := []File{{Name: "main.tf", Content: "a\nb"}, {Name: "outputs.tf", Content: "o"}}

	diffs, err := Diff(dir, files)
	require.NoError(t, err)
	assert.Empty(t, diffs)

	paths, err := Save(dir, files)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(data))

	diffs, err = Diff(dir, files)
	require.NoError(t, err)
	assert.Empty(t, diffs, "unchanged files produce no diff")

	diffs, err = Diff(dir, []File{{Name: "main.tf", Content: "a\nc"}})
	require.NoError(t, err)
	require.Contains(t, diffs, "main.tf")
	assert.Contains(t, diffs["main.tf"], "--- a/main.tf")
	assert.Contains(t, diffs["main.tf"], "-b")
	assert.Contains(t, diffs["main.tf"], "+c")
}

type fakeRunner struct {
	missing bool
	fail    string
	calls   []string
}

func (f *fakeRunner) LookPath(name string) error {
	if f.missing {
		return util.Invalid("%s is not installed", name)
	}
	return nil
}

func (f *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, dir+": "+name+" "+args[0])
	if args[0] == f.fail {
		return []byte("partial"), &util.CommandError{Command: name, ExitCode: 1, Stderr: "Error: Unsupported argument", Err: errors.New("exit status 1")}
	}
	return []byte("Success! The configuration is valid."), nil
}

func TestValidate(t *testing.T) {
	r := &fakeRunner{}
	v, err := Validate(context.Background(), r, "out")
	require.NoError(t, err)
	assert.True(t, v.Passed)
	assert.Equal(t, "passed", v.String())
	assert.Equal(t, []string{"out: terraform init", "out: terraform validate"}, r.calls)

	r = &fakeRunner{fail: "validate"}
	v, err = Validate(context.Background(), r, "out")
	require.NoError(t, err)
	assert.False(t, v.Passed)
	assert.Equal(t, "validate", v.Step)
	assert.Contains(t, v.Output, "Unsupported argument")
	assert.Equal(t, "failed at terraform validate", v.String())

	r = &fakeRunner{fail: "init"}
	v, _ = Validate(context.Background(), r, "out")
	assert.Equal(t, "init", v.Step)
	assert.Len(t, r.calls, 1)

	v, err = Validate(context.Background(), &fakeRunner{missing: true}, "out")
	require.NoError(t, err)
	assert.False(t, v.Ran)
	assert.Equal(t, "skipped (terraform not installed)", v.String())
}

func TestNextSteps(t *testing.T) {
	assert.Equal(t, "cd generated", NextSteps("generated")[0])
}

func TestSave_WaitsForLock(t *testing.T) {
	dir := t.TempDir()
	old := lockTimeout
	lockTimeout = 200 * time.Millisecond
	t.Cleanup(func() { lockTimeout = old })

	unlock, err := lockDir(dir)
	require.NoError(t, err)

	_, err = Save(dir, []File{{Name: "main.tf", Content: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked by another opslens run")

	unlock()
	paths, err := Save(dir, []File{{Name: "main.tf", Content: "x"}})
	require.NoError(t, err)
	assert.Len(t, paths, 1)
}
