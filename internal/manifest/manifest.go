// Package manifest reads and writes artifact descriptors and entry links.
//
// The descriptor file is the artifact's existence predicate: a directory in
// the store is an artifact iff its descriptor parses. The entry link is a
// relative symlink to workspace/<entry> so artifacts stay relocatable.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/roach88/casket/internal/layout"
)

// Version is the descriptor format version recorded in every descriptor.
const Version = "1.0.0"

// Descriptor is the stable wire record stored as .manifest.json.
// CreatedAt is immutable across republish; UpdatedAt is rewritten on every
// publish. Timestamps are RFC 3339 UTC strings.
type Descriptor struct {
	ManifestVersion string         `json:"manifestVersion"`
	Kind            string         `json:"kind"`
	Input           any            `json:"input"`
	Metadata        map[string]any `json:"metadata"`
	CreatedAt       string         `json:"createdAt"`
	UpdatedAt       string         `json:"updatedAt"`
}

// ErrCorrupt reports a descriptor file that exists but does not parse.
// Callers must decide whether to delete and rebuild; Read never treats a
// corrupt descriptor as absent.
var ErrCorrupt = errors.New("corrupt descriptor")

// ErrEntryEscape reports an entry link that resolves outside workspace/.
var ErrEntryEscape = errors.New("entry link escapes workspace")

// Write serializes the descriptor into dir. The output is pretty-printed;
// the descriptor is read far more often by humans than by machines, and
// identity never derives from these bytes.
func Write(dir string, d Descriptor) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal descriptor: %w", err)
	}
	data = append(data, '\n')
	p := filepath.Join(dir, layout.DescriptorFileName)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("write descriptor: %w", err)
	}
	return nil
}

// Read parses the descriptor in dir. A missing file returns the underlying
// fs.ErrNotExist; invalid JSON returns an error wrapping ErrCorrupt.
func Read(dir string) (Descriptor, error) {
	p := filepath.Join(dir, layout.DescriptorFileName)
	data, err := os.ReadFile(p)
	if err != nil {
		return Descriptor{}, fmt.Errorf("read descriptor: %w", err)
	}
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return Descriptor{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, p, err)
	}
	return d, nil
}

// Exists reports whether dir holds a readable descriptor file. This is the
// cache probe: presence of the file, not validity of its contents.
func Exists(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, layout.DescriptorFileName))
	return err == nil && info.Mode().IsRegular()
}

// ValidateEntry checks that entry is a safe relative path under the
// workspace: non-empty, relative, and not escaping via "..".
func ValidateEntry(entry string) error {
	if entry == "" {
		return fmt.Errorf("entry must not be empty")
	}
	if filepath.IsAbs(entry) || strings.HasPrefix(entry, "/") {
		return fmt.Errorf("entry %q must be relative", entry)
	}
	clean := path.Clean(filepath.ToSlash(entry))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("entry %q escapes the workspace", entry)
	}
	return nil
}

// CreateEntryLink creates the reserved entry symlink in dir pointing at
// workspace/<entry>. The target is relative, never absolute, so a published
// artifact can be moved or mounted elsewhere without breaking.
func CreateEntryLink(dir, entry string) error {
	if err := ValidateEntry(entry); err != nil {
		return err
	}
	target := filepath.Join(layout.WorkspaceDirName, filepath.FromSlash(entry))
	link := filepath.Join(dir, layout.EntryLinkName)
	if err := os.Symlink(target, link); err != nil {
		return fmt.Errorf("create entry link: %w", err)
	}
	return nil
}

// ResolveEntryLink reads the entry link in dir and returns the absolute
// path it resolves to, after verifying the resolved path lies strictly
// within dir's workspace. A link pointing anywhere else returns an error
// wrapping ErrEntryEscape.
func ResolveEntryLink(dir string) (string, error) {
	link := filepath.Join(dir, layout.EntryLinkName)
	target, err := os.Readlink(link)
	if err != nil {
		return "", fmt.Errorf("read entry link: %w", err)
	}
	if filepath.IsAbs(target) {
		return "", fmt.Errorf("%w: absolute target %q", ErrEntryEscape, target)
	}
	resolved := filepath.Clean(filepath.Join(dir, target))
	ws := filepath.Join(dir, layout.WorkspaceDirName)
	if resolved != ws && !strings.HasPrefix(resolved, ws+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q resolves to %q", ErrEntryEscape, target, resolved)
	}
	if resolved == ws {
		return "", fmt.Errorf("%w: target %q names the workspace itself", ErrEntryEscape, target)
	}
	return resolved, nil
}

// EntryLinkPath returns the path of the reserved entry symlink in dir.
func EntryLinkPath(dir string) string {
	return filepath.Join(dir, layout.EntryLinkName)
}
