package plan

import "github.com/kaktoslabs/kaktos/pkg/fsutil"

// Mode names a delete-extras strategy.
type Mode string

const (
	Never              Mode = "never"
	ManifestExtensions Mode = "manifest_extensions"
	CustomExtensions   Mode = "custom_extensions"
	All                Mode = "all"
)

// Policy decides which on-disk files not present in the remote manifest are
// eligible for deletion. Both ManifestExtensions and CustomExtensions require
// a non-empty Extensions allowlist; when empty they degrade to Never,
// matching a misconfigured allowlist being treated as "nothing is safe to
// delete" rather than "delete everything".
type Policy struct {
	Mode       Mode
	Extensions []string // a leading dot is added when missing; matched against lowercased file extensions; used by ManifestExtensions and CustomExtensions
	Root       string   // containment root; candidates escaping it are always dropped
}

// Filter applies the policy to a set of on-disk candidate paths not present
// in the remote manifest. remoteExts is the extension set derived from the
// remote manifest, used by ManifestExtensions.
func (p Policy) Filter(candidates []string, remoteExts map[string]struct{}) []string {
	mode := p.Mode
	if (mode == CustomExtensions || mode == ManifestExtensions) && len(p.Extensions) == 0 {
		mode = Never
	}

	allowlist := make(map[string]struct{}, len(p.Extensions))
	for _, ext := range p.Extensions {
		allowlist[normalizeExtension(ext)] = struct{}{}
	}

	allow := func(string) bool { return false }
	switch mode {
	case Never:
		allow = func(string) bool { return false }
	case All:
		allow = func(string) bool { return true }
	case ManifestExtensions:
		// A file is only extraneous-deletable if its extension both belongs
		// to the remote manifest's own file types and is explicitly
		// allowlisted.
		allow = func(path string) bool {
			ext := extensionOf(path)
			_, inManifest := remoteExts[ext]
			_, allowed := allowlist[ext]
			return inManifest && allowed
		}
	case CustomExtensions:
		allow = func(path string) bool {
			_, ok := allowlist[extensionOf(path)]
			return ok
		}
	}

	kept := make([]string, 0, len(candidates))
	for _, path := range candidates {
		if p.Root != "" {
			if _, err := fsutil.WithinRoot(p.Root, path); err != nil {
				continue
			}
		}
		if allow(path) {
			kept = append(kept, path)
		}
	}
	return kept
}

func normalizeExtension(ext string) string {
	if ext == "" {
		return ext
	}
	if ext[0] != '.' {
		return "." + ext
	}
	return ext
}
