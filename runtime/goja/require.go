package goja

import (
	"path/filepath"
	"strings"

	"github.com/dop251/goja_nodejs/require"
	"github.com/yaoapp/kun/log"
)

// load the require source loader, the defined files win over the files of
// the working directory
func (interp *Interpreter) load(name string) ([]byte, error) {
	file := normalize(name)
	if source, has := interp.files[file]; has {
		log.Trace("[goja] require %s (defined)", file)
		return []byte(source), nil
	}

	if interp.root == "" || file == "" {
		return nil, require.ModuleFileDoesNotExistError
	}

	return require.DefaultSourceLoader(filepath.Join(interp.root, filepath.FromSlash(file)))
}

func normalize(name string) string {
	name = filepath.ToSlash(strings.TrimSpace(name))
	for {
		switch {
		case strings.HasPrefix(name, "/"):
			name = strings.TrimPrefix(name, "/")
		case strings.HasPrefix(name, "./"):
			name = strings.TrimPrefix(name, "./")
		case strings.HasPrefix(name, "node_modules/"):
			name = strings.TrimPrefix(name, "node_modules/")
		default:
			return name
		}
	}
}
