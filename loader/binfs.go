package loader

import (
	"io/fs"
	"path"
	"sort"
	"strings"
)

// DefaultMount is where executables are looked up.
const DefaultMount = "/bin"

// Ext is the file extension of a module image inside the backing FS.
const Ext = ".wasm"

// BinFS maps executable paths under a read-only mount point onto module
// images in a backing filesystem: /bin/ls is ls.wasm.
type BinFS struct {
	mount string
	files fs.FS
}

// NewBinFS mounts files at mount. An empty mount selects DefaultMount.
func NewBinFS(files fs.FS, mount string) *BinFS {
	if mount == "" {
		mount = DefaultMount
	}
	return &BinFS{mount: path.Clean("/" + mount), files: files}
}

// Mount returns the mount point.
func (b *BinFS) Mount() string {
	return b.mount
}

// Resolve returns the backing file name for id, or false when id does not
// name something under the mount point.
func (b *BinFS) Resolve(id string) (string, bool) {
	if id == "" || !strings.HasPrefix(id, "/") {
		return "", false
	}
	clean := path.Clean(id)
	rel, ok := strings.CutPrefix(clean, b.mount+"/")
	if !ok || rel == "" || strings.Contains(rel, "/") {
		return "", false
	}
	name := rel + Ext
	if !fs.ValidPath(name) {
		return "", false
	}
	return name, true
}

// List returns the executable paths the mount can resolve, sorted.
func (b *BinFS) List() ([]string, error) {
	entries, err := fs.ReadDir(b.files, ".")
	if err != nil {
		return nil, err
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Ext) {
			continue
		}
		out = append(out, path.Join(b.mount, strings.TrimSuffix(e.Name(), Ext)))
	}
	sort.Strings(out)
	return out, nil
}
