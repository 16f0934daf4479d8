package sandbox

import (
	"hash/fnv"
	"strings"
	"sync"

	esbuild "github.com/evanw/esbuild/pkg/api"
)

const maxDiagnostics = 3

// Normalizer turns strategy source text into a form that runs without any
// module loader: TypeScript is down-compiled to plain JavaScript, then
// import/export syntax is rewritten out.
//
// Normalization is a pure function of the source text, so results are
// memoized; the cache is read-only from the invoker's perspective and a
// changed source hashes to a new key.
type Normalizer struct {
	mu    sync.RWMutex
	cache map[uint64]string
}

func NewNormalizer() *Normalizer {
	return &Normalizer{cache: make(map[uint64]string)}
}

// Normalize compiles and de-modularizes source. Compile errors return a
// *CompileError carrying up to the first three diagnostics.
func (n *Normalizer) Normalize(source string) (string, error) {
	key := sourceKey(source)

	n.mu.RLock()
	cached, ok := n.cache[key]
	n.mu.RUnlock()
	if ok {
		return cached, nil
	}

	js, err := downCompile(source)
	if err != nil {
		return "", err
	}
	out := Demodularize(js)

	n.mu.Lock()
	n.cache[key] = out
	n.mu.Unlock()
	return out, nil
}

func sourceKey(source string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(source))
	return h.Sum64()
}

// downCompile strips static type annotations by running the source through
// esbuild as TypeScript, targeting a stable language edition.
func downCompile(source string) (string, error) {
	res := esbuild.Transform(source, esbuild.TransformOptions{
		Loader: esbuild.LoaderTS,
		Target: esbuild.ES2017,
	})
	if len(res.Errors) > 0 {
		diags := make([]string, 0, maxDiagnostics)
		for i, msg := range res.Errors {
			if i >= maxDiagnostics {
				break
			}
			diags = append(diags, msg.Text)
		}
		return "", &CompileError{Diagnostics: diags}
	}
	return string(res.Code), nil
}

// exportedDecls are the declaration forms the upstream code generator emits
// behind an `export` keyword.
var exportedDecls = []string{
	"export function ",
	"export async function ",
	"export class ",
	"export const ",
	"export let ",
	"export var ",
}

// Demodularize rewrites module-system syntax line by line so the text runs in
// a context with no module loader. It only handles the syntactic shapes the
// upstream generator produces; it is not a bundler. The transformation is
// idempotent: already-normalized text passes through byte-identical.
func Demodularize(source string) string {
	lines := strings.Split(source, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import "), strings.HasPrefix(trimmed, "import{"):
			lines[i] = ""
		case strings.HasPrefix(trimmed, "export default "):
			lines[i] = strings.Replace(line, "export default ", "", 1)
		case strings.HasPrefix(trimmed, "export {"), strings.HasPrefix(trimmed, "export{"), strings.HasPrefix(trimmed, "export *"):
			lines[i] = ""
		case hasExportedDecl(trimmed):
			lines[i] = strings.Replace(line, "export ", "", 1)
		}
	}
	return strings.Join(lines, "\n")
}

func hasExportedDecl(trimmed string) bool {
	for _, prefix := range exportedDecls {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}
