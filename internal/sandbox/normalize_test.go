package sandbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemodularize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "import lines blanked",
			in:   "import { rsi } from './indicators';\nconst x = 1;",
			want: "\nconst x = 1;",
		},
		{
			name: "import without space",
			in:   "import{rsi} from './indicators';\nconst x = 1;",
			want: "\nconst x = 1;",
		},
		{
			name: "export function keeps declaration",
			in:   "export function tradingStrategy(ctx) { return { signal: 'hold' }; }",
			want: "function tradingStrategy(ctx) { return { signal: 'hold' }; }",
		},
		{
			name: "export const keeps declaration",
			in:   "export const threshold = 30;",
			want: "const threshold = 30;",
		},
		{
			name: "export default stripped",
			in:   "export default function strategy(ctx) { return { signal: 'hold' }; }",
			want: "function strategy(ctx) { return { signal: 'hold' }; }",
		},
		{
			name: "export list blanked",
			in:   "function f() {}\nexport { f };",
			want: "function f() {}\n",
		},
		{
			name: "export star blanked",
			in:   "export * from './helpers';",
			want: "",
		},
		{
			name: "indented code untouched",
			in:   "  const importantValue = 2;",
			want: "  const importantValue = 2;",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Demodularize(tc.in))
		})
	}
}

func TestDemodularizeIdempotent(t *testing.T) {
	src := strings.Join([]string{
		"import { sma } from './lib';",
		"export function tradingStrategy(ctx) {",
		"  return { signal: 'hold' };",
		"}",
		"export { tradingStrategy };",
	}, "\n")

	once := Demodularize(src)
	assert.Equal(t, once, Demodularize(once))
}

func TestNormalizeStripsTypes(t *testing.T) {
	n := NewNormalizer()

	src := `
interface Ctx { currentPrice: number }
function tradingStrategy(ctx: Ctx): { signal: string } {
  const price: number = ctx.currentPrice;
  return { signal: price > 0 ? 'buy' : 'hold' };
}`

	out, err := n.Normalize(src)
	require.NoError(t, err)
	assert.NotContains(t, out, "interface")
	assert.NotContains(t, out, ": Ctx")
	assert.NotContains(t, out, ": number")
	assert.Contains(t, out, "function tradingStrategy")
}

func TestNormalizeExportedEntryPoint(t *testing.T) {
	n := NewNormalizer()

	out, err := n.Normalize("export function evaluate(ctx) { return { signal: 'hold' }; }")
	require.NoError(t, err)
	assert.NotContains(t, out, "export")
	assert.Contains(t, out, "function evaluate")
}

func TestNormalizeCompileError(t *testing.T) {
	n := NewNormalizer()

	_, err := n.Normalize("function broken( {")
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.NotEmpty(t, ce.Diagnostics)
	assert.LessOrEqual(t, len(ce.Diagnostics), 3)
}

func TestNormalizeMemoizes(t *testing.T) {
	n := NewNormalizer()
	src := "function strategy(ctx) { return { signal: 'hold' }; }"

	first, err := n.Normalize(src)
	require.NoError(t, err)
	second, err := n.Normalize(src)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	n.mu.RLock()
	defer n.mu.RUnlock()
	assert.Len(t, n.cache, 1)
}
