package mongo

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/stellify/stellify/core/canon"
	"github.com/stellify/stellify/core/graph"
	"github.com/stellify/stellify/core/recordfmt"
	"github.com/stellify/stellify/runtime/lowering"
	"github.com/stellify/stellify/runtime/parser"
	"github.com/stellify/stellify/runtime/template"
)

var (
	testClient *mongo.Client
	skipMongo  bool
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	var container testcontainers.Container
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("docker not available: %v", r)
			}
		}()
		container, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "mongo:7",
				ExposedPorts: []string{"27017/tcp"},
				WaitingFor:   wait.ForLog("Waiting for connections"),
				Tmpfs:        map[string]string{"/data/db": "rw"},
			},
			Started: true,
		})
	}()
	if err == nil {
		err = connect(ctx, container)
	}
	if err != nil {
		fmt.Printf("MongoDB tests will be skipped: %v\n", err)
		skipMongo = true
	}

	code := m.Run()

	if testClient != nil {
		_ = testClient.Disconnect(ctx)
	}
	_ = testcontainers.TerminateContainer(container)
	os.Exit(code)
}

func connect(ctx context.Context, c testcontainers.Container) error {
	host, err := c.Host(ctx)
	if err != nil {
		return err
	}
	port, err := c.MappedPort(ctx, "27017")
	if err != nil {
		return err
	}
	testClient, err = Connect(ctx, fmt.Sprintf("mongodb://%s:%s", host, port.Port()))
	return err
}

func newSink(t *testing.T, replace bool) *Sink {
	t.Helper()
	if skipMongo {
		t.Skip("Docker not available, skipping MongoDB test")
	}
	s, err := New(Options{Client: testClient, Database: "stellify_test", Prefix: t.Name() + "_", Replace: replace})
	require.NoError(t, err)
	require.NoError(t, s.Drop(context.Background()))
	t.Cleanup(func() { _ = s.Drop(context.Background()) })
	return s
}

// lowered exports one PHP unit and one template with deterministic ids.
func lowered(t *testing.T, prefix string) *recordfmt.Bundle {
	t.Helper()
	l := lowering.New(parser.New(), lowering.WithIDs(&graph.SequenceSource{Prefix: prefix}))
	store := graph.NewStore()
	_, err := l.LowerFile(store, "app/Services/Greeter.php", []byte(`<?php
class Greeter {
    public function greet($name) {
        $msg = 'hi ' . $name;
        return $msg;
    }
}`))
	require.NoError(t, err)
	_, err = template.Lower(l, store, "welcome", []byte(`<ul>@foreach($items as $item)<li class="row">{{ $item }}</li>@endforeach</ul>`))
	require.NoError(t, err)
	return recordfmt.FromStore(store)
}

func TestWriteThenLoad(t *testing.T) {
	s := newSink(t, false)
	ctx := context.Background()
	want := lowered(t, "a")

	require.NoError(t, s.Write(ctx, want))
	got, err := s.Load(ctx)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
	store, err := got.Store(canon.Default())
	require.NoError(t, err)
	assert.NoError(t, graph.Validate(store))
}

func TestWriteIsIdempotent(t *testing.T) {
	s := newSink(t, false)
	ctx := context.Background()
	b := lowered(t, "a")

	require.NoError(t, s.Write(ctx, b))
	require.NoError(t, s.Write(ctx, b))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.Stats(), got.Stats())
}

func TestReplaceDropsPreviousRecords(t *testing.T) {
	ctx := context.Background()
	merging := newSink(t, false)
	require.NoError(t, merging.Write(ctx, lowered(t, "a")))
	require.NoError(t, merging.Write(ctx, lowered(t, "b")))
	got, err := merging.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stats().Files)

	replacing, err := New(Options{Client: testClient, Database: "stellify_test", Prefix: t.Name() + "_", Replace: true})
	require.NoError(t, err)
	require.NoError(t, replacing.Write(ctx, lowered(t, "c")))
	got, err = replacing.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stats().Files)
}

func TestNewRequiresClientAndDatabase(t *testing.T) {
	_, err := New(Options{Database: "x"})
	assert.Error(t, err)
	_, err = New(Options{Client: &mongo.Client{}})
	assert.Error(t, err)
}
