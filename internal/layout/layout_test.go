package layout

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateKind(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		wantErr bool
	}{
		{"simple", "echo", false},
		{"with dash", "fetch-page", false},
		{"with dot", "v1.build", false},
		{"empty", "", true},
		{"dot", ".", true},
		{"dotdot", "..", true},
		{"slash", "a/b", true},
		{"backslash", `a\b`, true},
		{"leading space", " echo", true},
		{"trailing space", "echo ", true},
		{"newline", "e\ncho", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKind(tt.kind)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestArtifactDir(t *testing.T) {
	fp := "0123456789abcdef0123456789abcdef"
	dir := ArtifactDir("/store", "echo", fp)
	assert.Equal(t, filepath.Join("/store", "fs-data", "v1", "echo", "01", fp), dir)
}

func TestScratchDir_SiblingOfArtifact(t *testing.T) {
	fp := "0123456789abcdef0123456789abcdef"
	artifact := ArtifactDir("/store", "echo", fp)
	scratch := ScratchDir("/store", "echo", fp, "nonce1")

	require.Equal(t, filepath.Dir(artifact), filepath.Dir(scratch))
	name := filepath.Base(scratch)
	assert.True(t, strings.HasPrefix(name, ScratchPrefix))
	assert.Contains(t, name, fp)
	assert.Contains(t, name, "nonce1")
}

func TestShard(t *testing.T) {
	assert.Equal(t, "ab", Shard("abcdef0123456789abcdef0123456789"))
}

func TestIsReserved(t *testing.T) {
	assert.True(t, IsReserved(DescriptorFileName))
	assert.True(t, IsReserved(EntryLinkName))
	assert.True(t, IsReserved(WorkspaceDirName))
	assert.True(t, IsReserved(".tmp-anything"))
	assert.False(t, IsReserved("out.txt"))
}
