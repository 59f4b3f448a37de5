// Package linker creates and validates dependency mounts.
//
// A mount is a symlink inside a workspace whose target is the relative path
// from the symlink's parent to the dependency artifact's entry link.
// Dereferencing the mount resolves transitively through the entry link into
// the dependency's workspace, so consumers see the dependency as if its
// entry had been copied in.
package linker

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/roach88/casket/internal/manifest"
)

// MountState classifies an on-disk mount against its expected target.
type MountState int

const (
	// MountValid means the symlink exists, its literal target matches the
	// expected string, and the target resolves.
	MountValid MountState = iota

	// MountStale means the symlink is absent or its literal target differs
	// from the expected string (dependency config drift).
	MountStale

	// MountBroken means the literal target matches but dereferencing it
	// fails: the dependency artifact was removed out-of-band.
	MountBroken
)

func (s MountState) String() string {
	switch s {
	case MountValid:
		return "valid"
	case MountStale:
		return "stale"
	case MountBroken:
		return "broken"
	default:
		return fmt.Sprintf("MountState(%d)", int(s))
	}
}

// ValidateMountPath checks that mountPath is a safe relative path under the
// workspace root: non-empty, relative, and free of "..".
func ValidateMountPath(mountPath string) error {
	if mountPath == "" {
		return fmt.Errorf("mount path must not be empty")
	}
	if filepath.IsAbs(mountPath) || strings.HasPrefix(mountPath, "/") {
		return fmt.Errorf("mount path %q must be relative", mountPath)
	}
	clean := path.Clean(filepath.ToSlash(mountPath))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("mount path %q escapes the workspace", mountPath)
	}
	for _, part := range strings.Split(filepath.ToSlash(mountPath), "/") {
		if part == ".." {
			return fmt.Errorf("mount path %q must not contain %q", mountPath, "..")
		}
	}
	return nil
}

// ExpectedTarget returns the canonical relative string a valid mount
// symlink at workspaceDir/mountPath must carry: the relative path from the
// symlink's parent directory to the target artifact's entry link.
func ExpectedTarget(workspaceDir, mountPath, targetArtifactDir string) (string, error) {
	if err := ValidateMountPath(mountPath); err != nil {
		return "", err
	}
	linkParent := filepath.Dir(filepath.Join(workspaceDir, filepath.FromSlash(mountPath)))
	rel, err := filepath.Rel(linkParent, manifest.EntryLinkPath(targetArtifactDir))
	if err != nil {
		return "", fmt.Errorf("relative target for mount %q: %w", mountPath, err)
	}
	return rel, nil
}

// Mount creates the symlink for mountPath inside workspaceDir, creating
// parent directories as needed. The link target is relative so the
// workspace stays relocatable together with the store.
func Mount(workspaceDir, mountPath, targetArtifactDir string) error {
	target, err := ExpectedTarget(workspaceDir, mountPath, targetArtifactDir)
	if err != nil {
		return err
	}
	link := filepath.Join(workspaceDir, filepath.FromSlash(mountPath))
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return fmt.Errorf("create mount parent: %w", err)
	}
	if err := os.Symlink(target, link); err != nil {
		return fmt.Errorf("create mount %q: %w", mountPath, err)
	}
	return nil
}

// Unmount removes the mount symlink, tolerating absence.
func Unmount(workspaceDir, mountPath string) error {
	link := filepath.Join(workspaceDir, filepath.FromSlash(mountPath))
	if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove mount %q: %w", mountPath, err)
	}
	return nil
}

// Check classifies the mount at workspaceDir/mountPath against expected.
//
// The literal symlink target string is compared, not the resolved path: a
// matching string with an unresolvable target means the dependency was
// deleted out-of-band, while any other string means the declared dependency
// config has drifted since the artifact was published.
func Check(workspaceDir, mountPath, expected string) MountState {
	link := filepath.Join(workspaceDir, filepath.FromSlash(mountPath))
	target, err := os.Readlink(link)
	if err != nil {
		return MountStale
	}
	if target != expected {
		return MountStale
	}
	if _, err := os.Stat(link); err != nil {
		return MountBroken
	}
	return MountValid
}
