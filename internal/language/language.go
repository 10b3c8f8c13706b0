// Package language holds the static descriptions of every language the
// service can execute: file extension, compile/run command templates, and
// how the staged source file is named. Adding a language is a pure data
// change; orchestration logic never switches on a language id.
package language

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sakif/runbox/internal/apperror"
)

// Naming selects how the staged source file gets its name.
type Naming int

const (
	// NamingRequestScoped names the source file after the profile id
	// ("main.py"). Uniqueness comes entirely from the per-request directory.
	NamingRequestScoped Naming = iota
	// NamingEntryPoint derives the file name from an entry-point symbol
	// parsed out of the source (Java's public class). The file still lives
	// inside the per-request directory, so two concurrent requests using
	// the same class name never share a path.
	NamingEntryPoint
)

// Profile describes how to stage, compile, and run one language.
// Profiles are immutable and shared read-only across concurrent requests.
type Profile struct {
	ID        string
	Aliases   []string
	Extension string

	HasCompile bool
	// CompileCmd and RunCmd are argv templates. Placeholders:
	//   {source} staged source file path
	//   {binary} compiled artifact path
	//   {dir}    workspace directory
	//   {entry}  entry-point symbol (NamingEntryPoint profiles only)
	CompileCmd []string
	RunCmd     []string

	Naming       Naming
	DefaultEntry string

	// SweepGlobs match secondary compiler artifacts (object files, class
	// files) that the compiler drops next to the source. They are removed
	// during workspace release without being individually tracked.
	SweepGlobs []string
}

// Vars carries the concrete values substituted into a command template.
type Vars struct {
	Source string
	Binary string
	Dir    string
	Entry  string
}

func expand(tpl []string, v Vars) []string {
	r := strings.NewReplacer(
		"{source}", v.Source,
		"{binary}", v.Binary,
		"{dir}", v.Dir,
		"{entry}", v.Entry,
	)
	argv := make([]string, len(tpl))
	for i, arg := range tpl {
		argv[i] = r.Replace(arg)
	}
	return argv
}

// CompileArgv renders the compile command template for one request.
func (p Profile) CompileArgv(v Vars) []string {
	return expand(p.CompileCmd, v)
}

// RunArgv renders the run command template for one request.
func (p Profile) RunArgv(v Vars) []string {
	return expand(p.RunCmd, v)
}

// entryRe matches the first class declaration in a Java-like source file.
// "public class Foo" is preferred; a bare "class Foo" also counts.
var entryRe = regexp.MustCompile(`(?m)^\s*(?:public\s+(?:final\s+|abstract\s+)?)?class\s+([A-Za-z_$][A-Za-z0-9_$]*)`)

var publicEntryRe = regexp.MustCompile(`public\s+(?:final\s+|abstract\s+)?class\s+([A-Za-z_$][A-Za-z0-9_$]*)`)

// EntryPoint extracts the entry-point symbol from the source, falling back
// to the profile's default when nothing can be parsed. Only meaningful for
// NamingEntryPoint profiles.
func (p Profile) EntryPoint(source string) string {
	if p.Naming != NamingEntryPoint {
		return ""
	}
	if m := publicEntryRe.FindStringSubmatch(source); m != nil {
		return m[1]
	}
	if m := entryRe.FindStringSubmatch(source); m != nil {
		return m[1]
	}
	return p.DefaultEntry
}

// Registry resolves language identifiers to profiles. It is built once at
// startup and never mutated afterwards.
type Registry struct {
	byID     map[string]Profile
	profiles []Profile
}

// NewRegistry builds a registry from the given profiles. Ids and aliases
// are indexed case-insensitively.
func NewRegistry(profiles ...Profile) *Registry {
	r := &Registry{byID: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		r.byID[strings.ToLower(p.ID)] = p
		for _, alias := range p.Aliases {
			r.byID[strings.ToLower(alias)] = p
		}
		r.profiles = append(r.profiles, p)
	}
	sort.Slice(r.profiles, func(i, j int) bool { return r.profiles[i].ID < r.profiles[j].ID })
	return r
}

// Resolve looks up a profile by id or alias, case-insensitively.
func (r *Registry) Resolve(id string) (Profile, error) {
	p, ok := r.byID[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return Profile{}, apperror.UnsupportedLanguage(id)
	}
	return p, nil
}

// List returns all registered profiles sorted by id.
func (r *Registry) List() []Profile {
	out := make([]Profile, len(r.profiles))
	copy(out, r.profiles)
	return out
}

// Default returns the registry of built-in languages.
func Default() *Registry {
	return NewRegistry(
		Profile{
			ID:        "python",
			Aliases:   []string{"py", "python3"},
			Extension: ".py",
			RunCmd:    []string{"python3", "{source}"},
		},
		Profile{
			ID:        "javascript",
			Aliases:   []string{"js", "node"},
			Extension: ".js",
			RunCmd:    []string{"node", "{source}"},
		},
		Profile{
			ID:         "c",
			Extension:  ".c",
			HasCompile: true,
			CompileCmd: []string{"gcc", "-O2", "-o", "{binary}", "{source}"},
			RunCmd:     []string{"{binary}"},
			SweepGlobs: []string{"*.o"},
		},
		Profile{
			ID:         "cpp",
			Aliases:    []string{"c++"},
			Extension:  ".cpp",
			HasCompile: true,
			CompileCmd: []string{"g++", "-O2", "-o", "{binary}", "{source}"},
			RunCmd:     []string{"{binary}"},
			SweepGlobs: []string{"*.o"},
		},
		Profile{
			ID:         "go",
			Aliases:    []string{"golang"},
			Extension:  ".go",
			HasCompile: true,
			CompileCmd: []string{"go", "build", "-o", "{binary}", "{source}"},
			RunCmd:     []string{"{binary}"},
		},
		Profile{
			ID:           "java",
			Extension:    ".java",
			HasCompile:   true,
			CompileCmd:   []string{"javac", "-d", "{dir}", "{source}"},
			RunCmd:       []string{"java", "-cp", "{dir}", "{entry}"},
			Naming:       NamingEntryPoint,
			DefaultEntry: "Main",
			SweepGlobs:   []string{"*.class"},
		},
	)
}
