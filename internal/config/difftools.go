package config

import "strings"

// DiffTool is a known external diff program and its argument template.
// Templates may use {left}, {right}, {left_title} and {right_title}.
type DiffTool struct {
	Name string
	Args []string
}

// DefaultDiffTools returns the curated list of diff tools revsearch knows
// how to launch without extra configuration.
func DefaultDiffTools() []DiffTool {
	return []DiffTool{
		// Terminal
		{Name: "git-diff", Args: []string{"git", "diff", "--no-index", "--", "{left}", "{right}"}},
		{Name: "diff", Args: []string{"diff", "-u", "--label", "{left_title}", "--label", "{right_title}", "{left}", "{right}"}},
		{Name: "vimdiff", Args: []string{"vimdiff", "{left}", "{right}"}},
		{Name: "nvim", Args: []string{"nvim", "-d", "{left}", "{right}"}},

		// Graphical
		{Name: "meld", Args: []string{"meld", "--label={left_title}", "--label={right_title}", "{left}", "{right}"}},
		{Name: "kdiff3", Args: []string{"kdiff3", "--L1", "{left_title}", "--L2", "{right_title}", "{left}", "{right}"}},
		{Name: "tkdiff", Args: []string{"tkdiff", "-L", "{left_title}", "-L", "{right_title}", "{left}", "{right}"}},
		{Name: "opendiff", Args: []string{"opendiff", "{left}", "{right}"}},
		{Name: "p4merge", Args: []string{"p4merge", "-nl", "{left_title}", "-nr", "{right_title}", "{left}", "{right}"}},
		{Name: "bcompare", Args: []string{"bcompare", "{left}", "{right}", "-lefttitle={left_title}", "-righttitle={right_title}"}},
		{Name: "winmerge", Args: []string{"WinMergeU", "/e", "/u", "/dl", "{left_title}", "/dr", "{right_title}", "{left}", "{right}"}},

		// Editors
		{Name: "vscode", Args: []string{"code", "--wait", "--diff", "{left}", "{right}"}},
		{Name: "idea", Args: []string{"idea", "diff", "{left}", "{right}"}},
	}
}

// LookupDiffTool finds a known diff tool by name, ignoring case.
func LookupDiffTool(name string) (DiffTool, bool) {
	for _, t := range DefaultDiffTools() {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return DiffTool{}, false
}
