// Package graph reconstructs the DAG of artifacts currently on disk.
//
// Discovery is advisory: it reads the store without locks while writers
// may be publishing, so a node or edge can be missing for a moment. A
// mount symlink that leaves the store, or a directory whose descriptor
// does not parse, is skipped rather than reported as an error.
package graph

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/casket/internal/layout"
	"github.com/roach88/casket/internal/manifest"
)

// Edge points from an artifact to a dependency it mounts. MountPath is the
// workspace-relative path of the mount symlink.
type Edge struct {
	MountPath   string `json:"mountPath"`
	Kind        string `json:"kind"`
	Fingerprint string `json:"fingerprint"`
}

// Node is one discovered artifact. EntryPath is empty when the entry link
// is missing or broken. Size is the total bytes of regular files in the
// workspace, excluding mounted dependencies.
type Node struct {
	Kind        string              `json:"kind"`
	Fingerprint string              `json:"fingerprint"`
	Descriptor  manifest.Descriptor `json:"descriptor"`
	EntryPath   string              `json:"entryPath,omitempty"`
	Size        int64               `json:"size"`
	Edges       []Edge              `json:"edges,omitempty"`
}

// Discover walks the store under root and returns every artifact with its
// outgoing dependency edges, ordered by (kind, fingerprint). Scratch
// directories (.tmp- prefix) are never reported.
func Discover(root string) ([]Node, error) {
	storeRoot := layout.StoreRoot(root)
	kinds, err := os.ReadDir(storeRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read store root: %w", err)
	}

	var nodes []Node
	for _, kindEnt := range kinds {
		if !kindEnt.IsDir() {
			continue
		}
		kind := kindEnt.Name()
		shards, err := os.ReadDir(filepath.Join(storeRoot, kind))
		if err != nil {
			return nil, fmt.Errorf("read kind %s: %w", kind, err)
		}
		for _, shardEnt := range shards {
			if !shardEnt.IsDir() || strings.HasPrefix(shardEnt.Name(), layout.ScratchPrefix) {
				continue
			}
			dirs, err := os.ReadDir(filepath.Join(storeRoot, kind, shardEnt.Name()))
			if err != nil {
				return nil, fmt.Errorf("read shard %s/%s: %w", kind, shardEnt.Name(), err)
			}
			for _, ent := range dirs {
				if !ent.IsDir() || strings.HasPrefix(ent.Name(), layout.ScratchPrefix) {
					continue
				}
				dir := filepath.Join(storeRoot, kind, shardEnt.Name(), ent.Name())
				node, ok := readNode(storeRoot, dir, kind, ent.Name())
				if ok {
					nodes = append(nodes, node)
				}
			}
		}
	}

	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Kind != nodes[j].Kind {
			return nodes[i].Kind < nodes[j].Kind
		}
		return nodes[i].Fingerprint < nodes[j].Fingerprint
	})
	return nodes, nil
}

// readNode builds the Node for one artifact directory. A directory whose
// descriptor does not parse is not an artifact and yields ok=false.
func readNode(storeRoot, dir, kind, fingerprint string) (Node, bool) {
	desc, err := manifest.Read(dir)
	if err != nil {
		return Node{}, false
	}
	node := Node{
		Kind:        kind,
		Fingerprint: fingerprint,
		Descriptor:  desc,
	}
	if entry, err := manifest.ResolveEntryLink(dir); err == nil {
		node.EntryPath = entry
	}

	ws := filepath.Join(dir, layout.WorkspaceDirName)
	_ = filepath.WalkDir(ws, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			if edge, ok := edgeFor(storeRoot, ws, path); ok {
				node.Edges = append(node.Edges, edge)
			}
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				node.Size += info.Size()
			}
		}
		return nil
	})

	sort.Slice(node.Edges, func(i, j int) bool {
		return node.Edges[i].MountPath < node.Edges[j].MountPath
	})
	return node, true
}

// edgeFor classifies one workspace symlink. It is an edge when its target,
// resolved lexically against the link's parent, lies within the store and
// names another artifact's entry link: .../<kind>/<shard>/<fingerprint>/<entry>.
// Lexical resolution keeps edges visible even when the target artifact's
// own entry link is broken.
func edgeFor(storeRoot, ws, link string) (Edge, bool) {
	target, err := os.Readlink(link)
	if err != nil {
		return Edge{}, false
	}
	resolved := target
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(link), resolved)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(storeRoot, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Edge{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 4 || parts[3] != layout.EntryLinkName {
		return Edge{}, false
	}
	kind, shard, fingerprint := parts[0], parts[1], parts[2]
	if len(fingerprint) < 2 || strings.HasPrefix(fingerprint, layout.ScratchPrefix) || layout.Shard(fingerprint) != shard {
		return Edge{}, false
	}

	mount, err := filepath.Rel(ws, link)
	if err != nil {
		return Edge{}, false
	}
	return Edge{
		MountPath:   filepath.ToSlash(mount),
		Kind:        kind,
		Fingerprint: fingerprint,
	}, true
}
