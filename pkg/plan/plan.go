// Package plan implements the diff planner and delete-extras policy: given
// a remote and local manifest plus a listing of on-disk files, it produces
// an ordered plan of download, skip, and delete-extra actions.
package plan

import (
	"path/filepath"
	"strings"

	"github.com/kaktoslabs/kaktos/pkg/manifest"
)

// ActionKind identifies what a Plan entry does.
type ActionKind string

const (
	Download    ActionKind = "download"
	Skip        ActionKind = "skip"
	DeleteExtra ActionKind = "delete_extra"
)

// Action is a single planned step.
type Action struct {
	Kind        ActionKind
	Path        string
	FromVersion string
	ToVersion   string
	MD5         string
}

// Plan is the ordered sequence of actions: all Download/Skip actions (in
// manifest order) followed by all DeleteExtra actions.
type Plan struct {
	Actions []Action
}

// Downloads returns only the Download actions, in plan order.
func (p Plan) Downloads() []Action {
	out := make([]Action, 0, len(p.Actions))
	for _, a := range p.Actions {
		if a.Kind == Download {
			out = append(out, a)
		}
	}
	return out
}

// DeleteExtras returns only the DeleteExtra actions, in plan order.
func (p Plan) DeleteExtras() []Action {
	out := make([]Action, 0, len(p.Actions))
	for _, a := range p.Actions {
		if a.Kind == DeleteExtra {
			out = append(out, a)
		}
	}
	return out
}

// FileActions returns the Download and Skip actions, in plan order,
// excluding DeleteExtra. This is the per-remote-file diff result Build
// composed the plan from, with its original indexing over every remote
// file preserved.
func (p Plan) FileActions() []Action {
	out := make([]Action, 0, len(p.Actions))
	for _, a := range p.Actions {
		if a.Kind != DeleteExtra {
			out = append(out, a)
		}
	}
	return out
}

// Diff compares remote against local and returns Download/Skip actions for
// every remote file, iterated in the manifest's stable serialization order.
func Diff(remote, local manifest.Manifest) []Action {
	actions := make([]Action, 0, len(remote.Files))
	for _, path := range remote.SortedPaths() {
		entry := remote.Files[path]
		localEntry, exists := local.Files[path]
		if !exists || localEntry.Version != entry.Version {
			fromVersion := ""
			if exists {
				fromVersion = localEntry.Version
			}
			actions = append(actions, Action{
				Kind:        Download,
				Path:        path,
				FromVersion: fromVersion,
				ToVersion:   entry.Version,
				MD5:         entry.MD5,
			})
			continue
		}
		actions = append(actions, Action{Kind: Skip, Path: path})
	}
	return actions
}

// CandidateExtras returns every on-disk path not present in remote.Files.
func CandidateExtras(remote manifest.Manifest, onDisk []string) []string {
	out := make([]string, 0)
	for _, p := range onDisk {
		if _, ok := remote.Files[p]; !ok {
			out = append(out, p)
		}
	}
	return out
}

// RemoteExtensions collects the lowercase extensions present in remote's
// file paths, used by the manifest_extensions delete policy.
func RemoteExtensions(remote manifest.Manifest) map[string]struct{} {
	exts := make(map[string]struct{})
	for path := range remote.Files {
		if ext := extensionOf(path); ext != "" {
			exts[ext] = struct{}{}
		}
	}
	return exts
}

func extensionOf(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// Build assembles the full Plan: the diff against remote/local, followed by
// the delete-extra candidates filtered through policy.
func Build(remote, local manifest.Manifest, onDisk []string, policy Policy) Plan {
	actions := Diff(remote, local)

	candidates := CandidateExtras(remote, onDisk)
	kept := policy.Filter(candidates, RemoteExtensions(remote))
	for _, path := range kept {
		actions = append(actions, Action{Kind: DeleteExtra, Path: path})
	}

	return Plan{Actions: actions}
}
