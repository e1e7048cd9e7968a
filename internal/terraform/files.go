// Package terraform turns a generated response into Terraform files and
// checks them with the terraform CLI.
package terraform

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/opslens/internal/response"
)

// KnownFiles are the files the generation prompt asks for, in order.
var KnownFiles = []string{"main.tf", "variables.tf", "outputs.tf", "terraform.tfvars.example"}

// DefaultFile receives the whole response when no file can be told apart.
const DefaultFile = "main.tf"

var fileExtensions = []string{".tf", ".tfvars", ".hcl"}

// File is one generated file.
type File struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Lines counts the lines of the content.
func (f File) Lines() int {
	if f.Content == "" {
		return 0
	}
	return strings.Count(f.Content, "\n") + 1
}

// Providers maps the supported clouds to their Terraform provider names.
var Providers = map[string]string{
	"aws":   "aws",
	"azure": "azurerm",
	"gcp":   "google",
}

// ProviderName returns the Terraform provider for cloud.
func ProviderName(cloud string) (string, error) {
	name, ok := Providers[strings.ToLower(cloud)]
	if !ok {
		return "", fmt.Errorf("unsupported provider %q (choose aws, azure or gcp)", cloud)
	}
	return name, nil
}

// ParseFiles splits a generation response into files.
//
// Blocks introduced by "### name ###" markers whose name looks like a
// Terraform file become files; blocks with other names are appended to the
// file before them. Without such markers the known file names are searched
// in the text, and as a last resort the whole response becomes main.tf.
// Markdown fences are removed from every file.
func ParseFiles(raw string) []File {
	if files := markedFiles(raw); len(files) > 0 {
		return files
	}
	if files := knownFiles(raw); len(files) > 0 {
		return files
	}
	content := response.StripCodeFences(raw)
	if content == "" {
		return nil
	}
	return []File{{Name: DefaultFile, Content: content}}
}

func markedFiles(raw string) []File {
	parsed := response.Parse(raw, response.BlockMarker)

	var (
		files []File
		index = map[string]int{}
	)
	for _, s := range parsed.Sections() {
		if s.Key == response.UntaggedKey {
			continue
		}
		name, ok := fileName(s.Key)
		if !ok {
			if len(files) > 0 {
				last := &files[len(files)-1]
				last.Content = strings.TrimSpace(last.Content + "\n\n# " + s.Key + "\n" + response.StripCodeFences(s.Value))
			}
			continue
		}
		content := response.StripCodeFences(s.Value)
		if i, seen := index[name]; seen {
			if files[i].Content == "" {
				files[i].Content = content
			}
			continue
		}
		index[name] = len(files)
		files = append(files, File{Name: name, Content: content})
	}

	out := files[:0]
	for _, f := range files {
		if f.Content != "" {
			out = append(out, f)
		}
	}
	return out
}

// fileName extracts a safe file name from a marker such as "main.tf" or
// "file: modules/vpc/main.tf".
func fileName(marker string) (string, bool) {
	fields := strings.Fields(marker)
	for i := len(fields) - 1; i >= 0; i-- {
		f := strings.Trim(fields[i], "`'\"*:")
		if !hasFileExtension(f) {
			continue
		}
		base := filepath.Base(filepath.Clean(f))
		if base == "." || base == ".." || base == string(filepath.Separator) {
			return "", false
		}
		return base, true
	}
	return "", false
}

func hasFileExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range fileExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}

// knownFiles finds the known file names in free text; each file runs from
// its name to the next known name.
func knownFiles(raw string) []File {
	lower := asciiLower(raw)

	type hit struct {
		name string
		pos  int
	}
	var hits []hit
	for _, name := range KnownFiles {
		if pos := indexWord(lower, name); pos >= 0 {
			hits = append(hits, hit{name: name, pos: pos})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	var files []File
	for i, h := range hits {
		end := len(raw)
		if i+1 < len(hits) {
			end = hits[i+1].pos
		}
		content := raw[h.pos+len(h.name) : end]
		content = strings.TrimLeft(content, " \t:*`")
		content = response.StripCodeFences(content)
		if content != "" {
			files = append(files, File{Name: h.name, Content: content})
		}
	}
	return files
}

// indexWord finds name where it is not part of a longer file name, so that
// "main.tf" does not match inside "main.tfvars".
func indexWord(s, name string) int {
	from := 0
	for {
		i := strings.Index(s[from:], name)
		if i < 0 {
			return -1
		}
		i += from
		end := i + len(name)
		if end == len(s) || !isNameByte(s[end]) {
			return i
		}
		from = end
	}
}

// asciiLower lower-cases ASCII letters only, so byte offsets in the result
// are valid in s.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

func isNameByte(b byte) bool {
	return b == '.' || b == '_' || b == '-' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
