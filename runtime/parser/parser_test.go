package parser

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellify/stellify/core/ast"
)

func parseExpr(t *testing.T, src string) ast.Expr {
	t.Helper()
	x, err := New().ParseExpr(src)
	require.NoError(t, err, "parse %q", src)
	return x
}

func parseFile(t *testing.T, src string) *ast.File {
	t.Helper()
	f, err := New().ParseFile("test.php", []byte(src))
	require.NoError(t, err)
	return f
}

func TestExpressionPrecedence(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"$a = $b = 3", "$a = $b = 3"},
		{"$a += 1", "$a += 1"},
		{"!$a instanceof B", "(!($a instanceof B))"},
		{"$x instanceof $y", "($x instanceof $y)"},
		{"$a ?? $b ?? $c", "($a ?? ($b ?? $c))"},
		{"-$a ** 2", "(-($a ** 2))"},
		{"2 ** 3 ** 2", "(2 ** (3 ** 2))"},
		{"$a . $b + $c", "($a . ($b + $c))"},
		{"$a - $b - $c", "(($a - $b) - $c)"},
		{"$x ? 1 : 2", "($x ? 1 : 2)"},
		{"$x ?: 2", "($x ?: 2)"},
		{"$a and $b || $c", "($a and ($b || $c))"},
		{"!$a = f()", "(!$a = f())"},
		{"$i++ + --$j", "(($i++) + (--$j))"},
		{"(int) $x", "((int) $x)"},
		{"(integer) $x", "((int) $x)"},
		{"clone $a->b", "(clone $a->b)"},
		{"print 'x'", "(print 'x')"},
		{"($a + $b) * $c", "((($a + $b)) * $c)"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseExpr(t, tt.input).String())
		})
	}
}

func TestPostfixChains(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"$user->profile?->name", "$user->profile?->name"},
		{"User::where('id', $id)->first()", "User::where('id', $id)->first()"},
		{`\App\Models\User::class`, `\App\Models\User::class`},
		{"static::$cache", "static::$cache"},
		{"$this->{$name}", "$this->{$name}"},
		{"$this->$name", "$this->$name"},
		{"$this->{$name}()", "$this->{$name}()"},
		{"$this->$name()", "$this->$name()"},
		{"$a[0]['k']", "$a[0]['k']"},
		{"$a[]", "$a[]"},
		{"new Post(title: $t)", "new Post(title: $t)"},
		{"(new Post)->save()", "(new Post())->save()"},
		{"f(...$args)", "f(...$args)"},
		{"strlen(...)", "strlen()"},
		{"isset($a, $b)", "isset($a, $b)"},
		{"PHP_EOL", "PHP_EOL"},
		{"null", "null"},
		{"TRUE", "true"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseExpr(t, tt.input).String())
		})
	}
}

func TestArraysAndClosures(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"[1, 'a' => $b]", "[1, 'a' => $b]"},
		{"array(1, 2)", "array(1, 2)"},
		{"[$a, $b] = $pair", "[$a, $b] = $pair"},
		{"list(, $b) = $pair", "list(, $b) = $pair"},
		{"[...$a, &$b]", "[...$a, &$b]"},
		{"fn($x) => $x * 2", "fn($x) => ($x * 2)"},
		{"function ($x) use (&$total) { $total += $x; }", "function($x) {...}"},
		{"match($x) { 1, 2 => 'a', default => 'b' }", "match ($x) {...}"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseExpr(t, tt.input).String())
		})
	}
}

func TestClosureDetails(t *testing.T) {
	x := parseExpr(t, "static function (int $x) use ($a, &$b): ?int { return $x; }")
	c, ok := x.(*ast.Closure)
	require.True(t, ok, "got %T", x)

	assert.True(t, c.Static)
	assert.False(t, c.Arrow)
	assert.Equal(t, []ast.ClosureUse{{Name: "a"}, {Name: "b", ByRef: true}}, c.Uses)
	assert.Equal(t, "?int", c.ReturnType.String())
	require.Len(t, c.Body, 1)
	assert.IsType(t, &ast.Return{}, c.Body[0])
}

func TestLiteralValues(t *testing.T) {
	t.Run("integers", func(t *testing.T) {
		for src, want := range map[string]int64{
			"0x1F":  31,
			"1_000": 1000,
			"017":   15,
			"0o17":  15,
			"0b101": 5,
			"42":    42,
		} {
			lit, ok := parseExpr(t, src).(*ast.IntLit)
			require.True(t, ok, src)
			assert.Equal(t, want, lit.Value, src)
			assert.Equal(t, src, lit.Raw)
		}
	})

	t.Run("integer overflow becomes float", func(t *testing.T) {
		lit, ok := parseExpr(t, "9223372036854775808").(*ast.FloatLit)
		require.True(t, ok)
		assert.Equal(t, 9223372036854775808.0, lit.Value)
	})

	t.Run("strings", func(t *testing.T) {
		tests := []struct {
			input        string
			value        string
			interpolated bool
		}{
			{`'it\'s'`, "it's", false},
			{`'C:\path'`, `C:\path`, false},
			{`"a\tb"`, "a\tb", false},
			{`"\x41\u{263A}"`, "A\u263a", false},
			{`"\q"`, `\q`, false},
			{`"hi $name"`, "hi $name", true},
			{`"{$user->name}"`, "{$user->name}", true},
			{`"cost: \$5"`, "cost: $5", false},
		}
		for _, tt := range tests {
			lit, ok := parseExpr(t, tt.input).(*ast.StringLit)
			require.True(t, ok, tt.input)
			assert.Equal(t, tt.value, lit.Value, tt.input)
			assert.Equal(t, tt.interpolated, lit.Interpolated, tt.input)
			assert.Equal(t, tt.input, lit.Raw)
		}
	})

	t.Run("heredoc", func(t *testing.T) {
		lit, ok := parseExpr(t, "<<<EOT\n    one\n      two\n    EOT").(*ast.StringLit)
		require.True(t, ok)
		assert.Equal(t, "one\n  two", lit.Value)

		now, ok := parseExpr(t, "<<<'EOT'\n$raw\\n\nEOT").(*ast.StringLit)
		require.True(t, ok)
		assert.Equal(t, `$raw\n`, now.Value)
		assert.False(t, now.Interpolated)
	})
}

const controller = `<?php

namespace App\Http\Controllers;

use App\Models\User;
use Illuminate\Http\{Request, Response as R};

class UserController extends Controller implements HasMiddleware
{
    use AuthorizesRequests;

    private const LIMIT = 10;

    protected ?string $name = null;

    public function __construct(private readonly UserRepository $users) {}

    public static function index(Request $request, int ...$ids): array
    {
        if ($request->has('q')) {
            $q = $request->input('q');
        } elseif ($x) {
            return [];
        } else {
            $q = null;
        }
        foreach ($ids as $k => $id) {
            $total += $id;
        }
        return compact('q');
    }
}
`

func TestParseController(t *testing.T) {
	f := parseFile(t, controller)
	require.Len(t, f.Stmts, 1)

	ns, ok := f.Stmts[0].(*ast.Namespace)
	require.True(t, ok)
	assert.Equal(t, `App\Http\Controllers`, ns.Name)
	assert.False(t, ns.Braced)
	require.Len(t, ns.Stmts, 3)

	group := ns.Stmts[1].(*ast.Use)
	want := []ast.UseItem{
		{Name: `Illuminate\Http\Request`},
		{Name: `Illuminate\Http\Response`, Alias: "R"},
	}
	if diff := cmp.Diff(want, group.Items); diff != "" {
		t.Errorf("group use mismatch (-want +got):\n%s", diff)
	}

	class := ns.Stmts[2].(*ast.ClassLike)
	assert.Equal(t, ast.KindClass, class.Kind)
	assert.Equal(t, "UserController", class.Name)
	assert.Equal(t, []string{"Controller"}, class.Extends)
	assert.Equal(t, []string{"HasMiddleware"}, class.Implements)
	require.Len(t, class.Members, 5)

	assert.IsType(t, &ast.TraitUse{}, class.Members[0])
	assert.Equal(t, "private", class.Members[1].(*ast.ClassConst).Visibility)

	prop := class.Members[2].(*ast.Property)
	assert.Equal(t, "protected", prop.Visibility)
	assert.Equal(t, "?string", prop.Type.String())

	ctor := class.Members[3].(*ast.Method)
	assert.Equal(t, "__construct", ctor.Name)
	require.Len(t, ctor.Params, 1)
	assert.Equal(t, "private", ctor.Params[0].Promoted)
	assert.Equal(t, "UserRepository", ctor.Params[0].Type.String())
	assert.True(t, ctor.HasBody)
	assert.Empty(t, ctor.Body)

	index := class.Members[4].(*ast.Method)
	assert.True(t, index.Static)
	assert.Equal(t, "public", index.Visibility)
	assert.Equal(t, "array", index.ReturnType.String())
	require.Len(t, index.Params, 2)
	assert.True(t, index.Params[1].Variadic)
	require.Len(t, index.Body, 3)

	cond := index.Body[0].(*ast.If)
	assert.Len(t, cond.ElseIfs, 1)
	require.NotNil(t, cond.Else)
	assert.Len(t, cond.Else.Body, 1)

	loop := index.Body[1].(*ast.Foreach)
	assert.Equal(t, "$k", loop.Key.String())
	assert.Equal(t, "$id", loop.Value.String())

	assert.Equal(t, "return compact('q');", index.Body[2].String())
}

func TestParseAlternativeSyntax(t *testing.T) {
	src := "<?php if ($a): ?>\n<p>yes</p>\n<?php else: ?>\n<p>no</p>\n<?php endif; ?>\n"
	f := parseFile(t, src)
	require.Len(t, f.Stmts, 1)

	n := f.Stmts[0].(*ast.If)
	require.Len(t, n.Then, 1)
	assert.Equal(t, "<p>yes</p>\n", n.Then[0].(*ast.InlineHTML).Text)
	require.NotNil(t, n.Else)
	require.Len(t, n.Else.Body, 1)
	assert.Equal(t, "<p>no</p>\n", n.Else.Body[0].(*ast.InlineHTML).Text)
}

func TestParseTopLevelFunctions(t *testing.T) {
	f := parseFile(t, "<?php\nfunction add($a, $b) { return $a + $b; }\n$x = add(1, 2);\n")
	require.Len(t, f.Stmts, 2)

	fn := f.Stmts[0].(*ast.Function)
	assert.Equal(t, "function add($a, $b)", fn.String())
	assert.Equal(t, "$x = add(1, 2);", f.Stmts[1].String())
}

func TestParseControlFlow(t *testing.T) {
	src := `<?php
while ($i < 10) { $i++; }
do { $j--; } while ($j > 0);
for ($i = 0; $i < 3; $i++) echo $i;
switch ($x) { case 1: break; default: $y = 2; }
try { risky(); } catch (A|B $e) { report($e); } finally { done(); }
`
	f := parseFile(t, src)
	require.Len(t, f.Stmts, 5)

	assert.IsType(t, &ast.While{}, f.Stmts[0])
	assert.IsType(t, &ast.DoWhile{}, f.Stmts[1])

	loop := f.Stmts[2].(*ast.For)
	assert.Len(t, loop.Init, 1)
	assert.Len(t, loop.Body, 1)

	sw := f.Stmts[3].(*ast.Switch)
	require.Len(t, sw.Cases, 2)
	assert.Nil(t, sw.Cases[1].Cond)

	try := f.Stmts[4].(*ast.Try)
	require.Len(t, try.Catches, 1)
	assert.Equal(t, []string{"A", "B"}, try.Catches[0].Types)
	assert.Equal(t, "e", try.Catches[0].Var)
	assert.True(t, try.HasFinally)
}

func TestParseErrors(t *testing.T) {
	t.Run("missing parenthesis", func(t *testing.T) {
		_, err := New().ParseFile("routes.php", []byte("<?php function greet($name {"))
		require.Error(t, err)

		var list ErrorList
		require.True(t, errors.As(err, &list))
		require.Len(t, list, 1)
		assert.Equal(t, "function parameters", list[0].Context)
		assert.Equal(t, "')'", list[0].Expected)
		assert.Equal(t, "'{'", list[0].Got)
		assert.Equal(t, 28, list[0].Position.Column)
		assert.Equal(t, "routes.php:1:28: expected ')', got '{' in function parameters", err.Error())
	})

	t.Run("incomplete expression", func(t *testing.T) {
		_, err := New().ParseExpr("$a +")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expected expression, got end of file")
	})

	t.Run("trailing tokens", func(t *testing.T) {
		_, err := New().ParseExpr("1 2")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected '2' after expression")
	})

	t.Run("empty expression", func(t *testing.T) {
		_, err := New().ParseExpr("   ")
		require.Error(t, err)
	})

	t.Run("trailing semicolon is fine", func(t *testing.T) {
		x, err := New().ParseExpr("$a;")
		require.NoError(t, err)
		assert.Equal(t, "$a", x.String())
	})

	t.Run("too deep", func(t *testing.T) {
		src := ""
		for range maxExprDepth + 10 {
			src += "("
		}
		_, err := New().ParseExpr(src + "1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nested too deeply")
	})

	t.Run("error cap", func(t *testing.T) {
		src := "<?php\n"
		for range 20 {
			src += "function ( {}\n"
		}
		_, err := New(WithMaxErrors(3)).ParseFile("x.php", []byte(src))
		var list ErrorList
		require.True(t, errors.As(err, &list))
		assert.LessOrEqual(t, len(list), 3)
	})
}

func FuzzParseFile(f *testing.F) {
	f.Add([]byte(""))
	f.Add([]byte("<?php echo 1;"))
	f.Add([]byte(controller))
	f.Add([]byte("<?php if ($a): ?>x<?php endif; ?>"))
	f.Add([]byte("<?php $a = [1, 2, fn($x) => $x];"))
	f.Add([]byte("<?php function ("))

	p := New()
	f.Fuzz(func(t *testing.T, src []byte) {
		file, err := p.ParseFile("fuzz.php", src)
		if err == nil && file == nil {
			t.Fatal("nil file without error")
		}
		if err != nil && file != nil {
			t.Fatal("file returned alongside error")
		}
	})
}
