package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtensionFilter_Allow(t *testing.T) {
	f := NewExtensionFilter(ExtensionModeAllow, []string{"go", ".MD"})
	assert.True(t, f.Allowed("main.go"))
	assert.True(t, f.Allowed("README.md"))
	assert.False(t, f.Allowed("main.py"))
}

func TestExtensionFilter_Block(t *testing.T) {
	f := NewExtensionFilter(ExtensionModeBlock, []string{".png", ".jpg"})
	assert.False(t, f.Allowed("photo.PNG"))
	assert.True(t, f.Allowed("main.go"))
}

func TestCanonicalize(t *testing.T) {
	assert.Equal(t, ".go", Canonicalize("go"))
	assert.Equal(t, ".go", Canonicalize(".GO"))
	assert.Equal(t, "", Canonicalize(""))
}

func TestSkipFilter_FilenameOnly(t *testing.T) {
	f := NewSkipFilter([]string{"*.test.go"})
	assert.True(t, f.Skipped("pkg/sub/foo.test.go"))
	assert.False(t, f.Skipped("pkg/sub/foo.go"))
}

func TestSkipFilter_SuffixForm(t *testing.T) {
	f := NewSkipFilter([]string{"**/*_generated.go"})
	assert.True(t, f.Skipped("internal/pb/api_generated.go"))
	assert.True(t, f.Skipped("api_generated.go"))
}

func TestIncludeFilter_EmptyAdmitsAll(t *testing.T) {
	f := NewIncludeFilter(nil)
	assert.True(t, f.Included("anything/here.go"))
}

func TestIncludeFilter_Roots(t *testing.T) {
	f := NewIncludeFilter([]string{"src", "../shared"})
	assert.True(t, f.Included("src/main.go"))
	assert.True(t, f.Included("../shared/lib.go"))
	assert.False(t, f.Included("docs/readme.md"))
}
