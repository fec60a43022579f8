// Package logfinder locates input files in a log directory.
package logfinder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Sentinel errors.
var (
	ErrDirNotFound = errors.New("log directory not found")
	ErrNoFiles     = errors.New("no matching files found")
)

// FindDir validates dir and returns it with symlinks resolved.
// Returns ErrDirNotFound if dir is empty, missing, or not a directory.
func FindDir(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("%w: no directory given", ErrDirNotFound)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrDirNotFound, dir)
	}

	// Resolve symlinks (works with Windows Junctions in Go 1.20+)
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		// Treat broken or malicious symlinks as an invalid directory.
		return "", fmt.Errorf("%w: %s cannot be resolved", ErrDirNotFound, dir)
	}
	return resolved, nil
}

// candidate holds a file path and its cached modification time.
// This avoids race conditions where files are deleted between stat and sort.
type candidate struct {
	path    string
	modTime int64
}

// FindFiles returns the regular files in dir whose names match glob,
// oldest first. Files with equal modification times are ordered by name.
//
// Returns ErrNoFiles if nothing matches.
func FindFiles(dir, glob string) ([]string, error) {
	candidates, err := scan(dir, glob)
	if err != nil {
		return nil, err
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].modTime != candidates[j].modTime {
			return candidates[i].modTime < candidates[j].modTime
		}
		return candidates[i].path < candidates[j].path
	})

	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.path
	}
	return out, nil
}

// FindLatestFile returns the most recently modified file in dir whose name
// matches glob.
//
// Returns ErrNoFiles if nothing matches.
func FindLatestFile(dir, glob string) (string, error) {
	files, err := FindFiles(dir, glob)
	if err != nil {
		return "", err
	}
	return files[len(files)-1], nil
}

// scan stats every match once. Files that cannot be stat'd and non-regular
// files (directories, symlinks, etc.) are skipped.
func scan(dir, glob string) ([]candidate, error) {
	if glob == "" {
		glob = "*"
	}
	matches, err := filepath.Glob(filepath.Join(dir, glob))
	if err != nil {
		return nil, fmt.Errorf("globbing %q: %w", glob, err)
	}

	candidates := make([]candidate, 0, len(matches))
	for _, m := range matches {
		info, err := os.Lstat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		candidates = append(candidates, candidate{
			path:    m,
			modTime: info.ModTime().UnixNano(),
		})
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrNoFiles, glob, dir)
	}
	return candidates, nil
}
