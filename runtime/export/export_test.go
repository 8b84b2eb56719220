package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellify/stellify/core/canon"
	"github.com/stellify/stellify/core/graph"
	"github.com/stellify/stellify/core/recordfmt"
	"github.com/stellify/stellify/runtime/lowering"
	"github.com/stellify/stellify/runtime/parser"
)

const controllerSrc = `<?php
namespace App\Http\Controllers;

class HomeController extends Controller
{
    public function index($request)
    {
        $name = $request->input('name');
        return view('home', $name);
    }
}
`

const modelSrc = `<?php
namespace App\Models;

class User extends Model
{
    protected function casts()
    {
        return [];
    }
}
`

const viewSrc = `<div class="home">
@if($user)
  <p>{{ $user->name }}</p>
@endif
</div>
`

// app writes files (relative path -> contents) below a fresh root.
func app(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, src := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
	return root
}

func newExporter(t *testing.T, opts ...Opt) *Exporter {
	t.Helper()
	e, err := NewExporter(lowering.New(parser.New()), opts...)
	require.NoError(t, err)
	return e
}

func rel(t *testing.T, root string, units []Unit) []string {
	t.Helper()
	var out []string
	for _, u := range units {
		r, err := filepath.Rel(root, u.Path)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(r))
	}
	return out
}

func TestDiscover(t *testing.T) {
	root := app(t, map[string]string{
		"app/Models/User.php":                           modelSrc,
		"app/Http/Controllers/HomeController.php":       controllerSrc,
		"app/Http/Controllers/Admin/UserController.php": controllerSrc,
		"app/Http/Controllers/README.md":                "notes",
		"app/Http/Controllers/Legacy/OldController.php": controllerSrc,
		"resources/views/home.blade.php":                viewSrc,
		"resources/views/partials/nav.blade.php":        "<nav></nav>",
		"resources/views/raw.php":                       "<?php echo 1;",
	})

	units, err := Discover(Options{Root: root, Exclude: []string{"Legacy/"}})
	require.NoError(t, err)

	want := []string{
		"app/Http/Controllers/Admin/UserController.php",
		"app/Http/Controllers/HomeController.php",
		"app/Models/User.php",
		"resources/views/home.blade.php",
		"resources/views/partials/nav.blade.php",
	}
	if diff := cmp.Diff(want, rel(t, root, units)); diff != "" {
		t.Errorf("Discover mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, Controllers, units[0].Kind)
	assert.Equal(t, Models, units[2].Kind)
	assert.False(t, units[2].Template)
	assert.True(t, units[3].Template)
	assert.Equal(t, "home", units[3].Name)
	assert.Equal(t, "partials.nav", units[4].Name)
}

func TestDiscoverOnlyAndPathOverride(t *testing.T) {
	root := app(t, map[string]string{
		"app/Models/User.php":         modelSrc,
		"src/Domain/Order.php":        modelSrc,
		"resources/views/a.blade.php": "<p></p>",
	})

	units, err := Discover(Options{
		Root:  root,
		Only:  []Kind{Models},
		Paths: map[Kind]string{Models: "src/Domain"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/Domain/Order.php"}, rel(t, root, units))

	units, err = Discover(Options{Root: root, Only: []Kind{Services}})
	require.NoError(t, err)
	assert.Empty(t, units, "a missing directory contributes nothing")
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Views ")
	require.NoError(t, err)
	assert.Equal(t, Views, k)

	_, err = ParseKind("controller")
	assert.Error(t, err)
}

func TestExportReportsMalformedUnit(t *testing.T) {
	root := app(t, map[string]string{
		"app/Http/Controllers/HomeController.php": controllerSrc,
		"app/Http/Controllers/Broken.php":         `<?php function (`,
		"app/Models/User.php":                     modelSrc,
		"resources/views/home.blade.php":          viewSrc,
	})
	units, err := Discover(Options{Root: root})
	require.NoError(t, err)
	require.Len(t, units, 4)

	rep, err := newExporter(t, WithConcurrency(2)).Export(context.Background(), units)
	require.NoError(t, err)

	require.Len(t, rep.Failures, 1)
	f := rep.Failures[0]
	assert.Equal(t, filepath.Join(root, "app/Http/Controllers/Broken.php"), f.Path)
	assert.True(t, strings.HasPrefix(f.Error(), "Error parsing "+f.Path+": "), f.Error())

	var list parser.ErrorList
	require.True(t, errors.As(f, &list))
	assert.NotEmpty(t, list)

	assert.Equal(t, 2, rep.Stats.Files)
	assert.Equal(t, 2, rep.Stats.Routines)
	assert.Positive(t, rep.Stats.Elements)
	assert.Equal(t, rep.Stats, rep.Bundle.Stats())
	require.Len(t, rep.Views, 1)
	assert.Equal(t, "home", rep.Views[0].Name)

	var paths []string
	for _, file := range rep.Bundle.Files {
		paths = append(paths, file.Path)
	}
	assert.Equal(t, []string{
		filepath.Join(root, "app/Http/Controllers/HomeController.php"),
		filepath.Join(root, "app/Models/User.php"),
	}, paths, "files keep discovery order")

	store, err := rep.Bundle.Store(canon.Default())
	require.NoError(t, err)
	assert.NoError(t, graph.Validate(store))
	require.NoError(t, recordfmt.Validate(rep.Bundle))
}

func TestExportShapeIndependentOfConcurrency(t *testing.T) {
	files := map[string]string{
		"resources/views/home.blade.php": viewSrc,
	}
	for _, name := range []string{"A", "B", "C", "D", "E", "F"} {
		files["app/Services/"+name+"Service.php"] = strings.Replace(modelSrc, "User", name+"Service", 1)
	}
	root := app(t, files)
	units, err := Discover(Options{Root: root})
	require.NoError(t, err)

	shape := func(n int) recordfmt.Fingerprint {
		rep, err := newExporter(t, WithConcurrency(n)).Export(context.Background(), units)
		require.NoError(t, err)
		fp, err := recordfmt.Shape(rep.Bundle, canon.Default())
		require.NoError(t, err)
		return fp
	}
	assert.Equal(t, shape(1), shape(8))
}

func TestExportHonoursCancellation(t *testing.T) {
	root := app(t, map[string]string{"app/Models/User.php": modelSrc})
	units, err := Discover(Options{Root: root})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newExporter(t).Export(ctx, units)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunWritesBundleToSink(t *testing.T) {
	root := app(t, map[string]string{"app/Models/User.php": modelSrc})

	var got *recordfmt.Bundle
	sink := SinkFunc(func(_ context.Context, b *recordfmt.Bundle) error {
		got = b
		return nil
	})
	rep, err := newExporter(t).Run(context.Background(), Options{Root: root}, sink)
	require.NoError(t, err)
	assert.Same(t, rep.Bundle, got)
	assert.Equal(t, recordfmt.Version, got.Format)

	boom := errors.New("boom")
	_, err = newExporter(t).Run(context.Background(), Options{Root: root},
		SinkFunc(func(context.Context, *recordfmt.Bundle) error { return boom }))
	assert.ErrorIs(t, err, boom)
}

func TestWatchReexportsOnChange(t *testing.T) {
	if testing.Short() {
		t.Skip("watches the file system")
	}
	root := app(t, map[string]string{"app/Models/User.php": modelSrc})

	bundles := make(chan *recordfmt.Bundle, 8)
	sink := SinkFunc(func(_ context.Context, b *recordfmt.Bundle) error {
		bundles <- b
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- newExporter(t).Watch(ctx, Options{Root: root, Only: []Kind{Models}}, sink, 20*time.Millisecond)
	}()

	next := func() *recordfmt.Bundle {
		select {
		case b := <-bundles:
			return b
		case <-time.After(10 * time.Second):
			t.Fatal("no export")
			return nil
		}
	}

	first := next()
	assert.Len(t, first.Files, 1)

	path := filepath.Join(root, "app/Models/Post.php")
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(modelSrc, "User", "Post", 1)), 0o644))

	var second *recordfmt.Bundle
	for second == nil || len(second.Files) < 2 {
		second = next()
	}
	assert.Len(t, second.Files, 2)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestTeeStopsAtFirstFailure(t *testing.T) {
	var calls []string
	record := func(name string, err error) Sink {
		return SinkFunc(func(context.Context, *recordfmt.Bundle) error {
			calls = append(calls, name)
			return err
		})
	}
	boom := errors.New("boom")
	err := Tee(record("a", nil), record("b", boom), record("c", nil)).Write(context.Background(), &recordfmt.Bundle{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b"}, calls)
}
