// SPDX-License-Identifier: MPL-2.0

package pack

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Entrypoint ranks, lowest wins. Kept as explicit policy so new rules can
// be added without touching the selection logic.
const (
	// RankMainGuard is a Python file containing a __main__ guard.
	RankMainGuard = 0
	// RankShebang is a file whose first line is a shebang.
	RankShebang = 1
	// RankPlainScript is a script file with neither guard nor shebang.
	RankPlainScript = 2
)

// Directory names excluded from traversal in addition to dot-prefixed paths.
var ignoredDirs = map[string]bool{
	"node_modules": true,
	"__pycache__":  true,
}

type (
	// Candidate is a possible entrypoint discovered during analysis.
	Candidate struct {
		// Path is the candidate file, relative to the analyzed root, in
		// slash form.
		Path string
		// Interpreter is the interpreter this candidate would run under.
		Interpreter string
		// Rank orders candidates; lower is more likely.
		Rank int
	}

	// Analysis is the outcome of classifying a directory. It is recomputed
	// on every generate request and discarded unless persisted.
	Analysis struct {
		// Root is the analyzed directory.
		Root string
		// Type is the classified project type.
		Type Type
		// Candidates holds entrypoint candidates in selection order.
		Candidates []Candidate
		// DepFile is the dependency declaration file relative to Root,
		// empty when none was found.
		DepFile string
		// NeedsDepGeneration is set for Python projects without a
		// requirements.txt: an external generator must supply one.
		NeedsDepGeneration bool
	}

	// rankRule inspects one file and either produces a candidate or passes.
	// Rules are tried in order; the first match wins for that file.
	rankRule func(relPath, firstLine string, content []byte) (Candidate, bool)
)

// entrypointRules is the ordered ranking policy. Selection is a stable sort
// over (rank, path depth, lexical path) with the first element taken.
var entrypointRules = []rankRule{
	rulePythonMainGuard,
	ruleShebang,
	rulePythonPlain,
}

func rulePythonMainGuard(relPath, _ string, content []byte) (Candidate, bool) {
	if filepath.Ext(relPath) != ".py" {
		return Candidate{}, false
	}
	code := string(content)
	if !strings.Contains(code, `if __name__ == "__main__"`) && !strings.Contains(code, `if __name__ == '__main__'`) {
		return Candidate{}, false
	}
	return Candidate{Path: relPath, Interpreter: DefaultInterpreter(TypePython), Rank: RankMainGuard}, true
}

func ruleShebang(relPath, firstLine string, _ []byte) (Candidate, bool) {
	if !strings.HasPrefix(firstLine, "#!") {
		return Candidate{}, false
	}
	interp := strings.TrimSpace(strings.TrimPrefix(firstLine, "#!"))
	if interp == "" {
		return Candidate{}, false
	}
	return Candidate{Path: relPath, Interpreter: interp, Rank: RankShebang}, true
}

func rulePythonPlain(relPath, _ string, _ []byte) (Candidate, bool) {
	if filepath.Ext(relPath) != ".py" {
		return Candidate{}, false
	}
	return Candidate{Path: relPath, Interpreter: DefaultInterpreter(TypePython), Rank: RankPlainScript}, true
}

// Analyze classifies the directory rooted at root. The traversal is
// read-only and deterministic: analyzing an unchanged directory always
// yields an identical Analysis.
func Analyze(root string) (*Analysis, error) {
	a := &Analysis{Root: root, Type: TypeOther}

	var sawPython, sawShebang bool

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if path != root && (strings.HasPrefix(name, ".") || (d.IsDir() && ignoredDirs[name])) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		firstLine := firstLineOf(content)

		switch {
		case strings.HasSuffix(rel, ".py"):
			sawPython = true
		case strings.HasPrefix(firstLine, "#!"):
			sawShebang = true
		}

		for _, rule := range entrypointRules {
			if c, ok := rule(rel, firstLine, content); ok {
				a.Candidates = append(a.Candidates, c)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk project directory: %w", err)
	}

	sortCandidates(a.Candidates)

	switch {
	case fileExists(filepath.Join(root, "package.json")):
		a.Type = TypeNode
		if err := a.analyzeNode(); err != nil {
			return a, err
		}
	case sawPython:
		a.Type = TypePython
		a.analyzePython()
	case sawShebang:
		a.Type = TypeShell
		a.keepShebangCandidates()
	default:
		a.Type = TypeOther
		a.Candidates = nil
		return a, &AnalysisError{Root: root, Reason: "no recognizable project shape"}
	}

	if a.Selected() == nil {
		return a, &AnalysisError{Root: root, Reason: "no entrypoint candidate found"}
	}
	return a, nil
}

// analyzeNode resolves the single entrypoint from the package.json main field.
func (a *Analysis) analyzeNode() error {
	a.DepFile = "package.json"

	raw, err := os.ReadFile(filepath.Join(a.Root, "package.json"))
	if err != nil {
		return &AnalysisError{Root: a.Root, Reason: fmt.Sprintf("unreadable package.json: %v", err)}
	}
	var manifest struct {
		Main string `json:"main"`
	}
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return &AnalysisError{Root: a.Root, Reason: fmt.Sprintf("malformed package.json: %v", err)}
	}
	if manifest.Main == "" {
		a.Candidates = nil
		return &AnalysisError{Root: a.Root, Reason: "package.json has no main field"}
	}
	a.Candidates = []Candidate{{
		Path:        filepath.ToSlash(manifest.Main),
		Interpreter: DefaultInterpreter(TypeNode),
		Rank:        RankMainGuard,
	}}
	return nil
}

func (a *Analysis) analyzePython() {
	if fileExists(filepath.Join(a.Root, "requirements.txt")) {
		a.DepFile = "requirements.txt"
	} else {
		a.NeedsDepGeneration = true
	}
}

// keepShebangCandidates drops non-shebang candidates for shell projects so
// the selected entrypoint always carries a verbatim interpreter line.
func (a *Analysis) keepShebangCandidates() {
	kept := a.Candidates[:0]
	for _, c := range a.Candidates {
		if c.Rank == RankShebang {
			kept = append(kept, c)
		}
	}
	a.Candidates = kept
}

// Selected returns the top-ranked candidate, or nil if none exist.
func (a *Analysis) Selected() *Candidate {
	if len(a.Candidates) == 0 {
		return nil
	}
	return &a.Candidates[0]
}

// Package folds the analysis into a persistable decision record.
func (a *Analysis) Package() *Package {
	p := &Package{
		Name: filepath.Base(a.Root),
		Type: a.Type,
	}
	if sel := a.Selected(); sel != nil {
		p.Entrypoint = sel.Path
		p.Interpreter = sel.Interpreter
	}
	if p.Interpreter == "" {
		p.Interpreter = DefaultInterpreter(a.Type)
	}
	return p
}

// sortCandidates orders by (rank, path depth, lexical path). The depth and
// lexical tie-breaks are a documented policy, not a traversal artifact.
func sortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Rank != cs[j].Rank {
			return cs[i].Rank < cs[j].Rank
		}
		di, dj := pathDepth(cs[i].Path), pathDepth(cs[j].Path)
		if di != dj {
			return di < dj
		}
		return cs[i].Path < cs[j].Path
	})
}

func pathDepth(p string) int {
	return strings.Count(p, "/")
}

func firstLineOf(content []byte) string {
	sc := bufio.NewScanner(strings.NewReader(string(content)))
	sc.Buffer(make([]byte, 64*1024), 64*1024)
	if sc.Scan() {
		return strings.TrimSpace(sc.Text())
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
