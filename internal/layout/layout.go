// Package layout maps fingerprints onto the on-disk store tree and owns
// the reserved filenames inside an artifact directory.
//
// The persistent layout is:
//
//	<root>/fs-data/<storeVersion>/<kind>/<shard>/<fingerprint>/
//	  .manifest.json   descriptor (reserved; existence predicate)
//	  entry            symlink -> workspace/<entry> (reserved)
//	  workspace/       user files + dependency mounts (reserved)
//
// Scratch directories are siblings of the final artifact path named
// .tmp-<fingerprint>-<nonce>; they are skipped by discovery and never
// outlive a successful publish.
package layout

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

const (
	// StoreDirName is the directory under the configured root that holds
	// all versioned store trees.
	StoreDirName = "fs-data"

	// StoreVersion governs on-disk compatibility. Bump on any change to
	// the layout, the descriptor format, or the fingerprint scheme.
	StoreVersion = "v1"

	// DescriptorFileName is the reserved descriptor filename. Hidden so a
	// workspace listing of the artifact dir leads with user content.
	DescriptorFileName = ".manifest.json"

	// EntryLinkName is the reserved name of the entry symlink.
	EntryLinkName = "entry"

	// WorkspaceDirName is the reserved name of the workspace directory.
	WorkspaceDirName = "workspace"

	// ScratchPrefix marks staging directories awaiting publish.
	ScratchPrefix = ".tmp-"
)

// reservedNames are the filenames an artifact directory owns. User entry
// paths live under workspace/ and cannot collide. IsReserved exposes the
// set.
var reservedNames = map[string]bool{
	DescriptorFileName: true,
	EntryLinkName:      true,
	WorkspaceDirName:   true,
}

// IsReserved reports whether name is one of the reserved artifact members
// or carries the scratch prefix.
func IsReserved(name string) bool {
	return reservedNames[name] || strings.HasPrefix(name, ScratchPrefix)
}

// StoreRoot returns the versioned store tree under root.
func StoreRoot(root string) string {
	return filepath.Join(root, StoreDirName, StoreVersion)
}

// Shard returns the fan-out subdirectory for a fingerprint: its first two
// hex characters.
func Shard(fingerprint string) string {
	return fingerprint[:2]
}

// ArtifactDir returns the final artifact path for (kind, fingerprint).
func ArtifactDir(root, kind, fingerprint string) string {
	return filepath.Join(StoreRoot(root), kind, Shard(fingerprint), fingerprint)
}

// ScratchDir returns a staging path for (kind, fingerprint) with the given
// nonce. It shares a parent with the artifact path so the publish rename
// stays within one filesystem.
func ScratchDir(root, kind, fingerprint, nonce string) string {
	name := ScratchPrefix + fingerprint + "-" + nonce
	return filepath.Join(StoreRoot(root), kind, Shard(fingerprint), name)
}

// ValidateKind checks that kind is usable as a store directory name:
// non-empty, no path separators, no leading or trailing whitespace, and
// not "." or "..".
func ValidateKind(kind string) error {
	if kind == "" {
		return fmt.Errorf("kind must not be empty")
	}
	if kind == "." || kind == ".." {
		return fmt.Errorf("kind must not be %q", kind)
	}
	if strings.ContainsAny(kind, `/\`) {
		return fmt.Errorf("kind %q must not contain path separators", kind)
	}
	if strings.TrimSpace(kind) != kind {
		return fmt.Errorf("kind %q must not have leading or trailing whitespace", kind)
	}
	for _, r := range kind {
		if unicode.IsControl(r) {
			return fmt.Errorf("kind %q must not contain control characters", kind)
		}
	}
	return nil
}
