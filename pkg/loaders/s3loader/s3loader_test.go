package s3loader

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/reflow-dev/reflow/pkg/reactive"
	"github.com/reflow-dev/reflow/pkg/resource"
	"github.com/reflow-dev/reflow/pkg/rtest"
)

// stubClient serves objects from a map and records requested keys.
type stubClient struct {
	objects map[string]string
	keys    []string
}

func (c *stubClient) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := *params.Key
	c.keys = append(c.keys, key)
	body, ok := c.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestBytesFetchesObject(t *testing.T) {
	client := &stubClient{objects: map[string]string{"greeting.txt": "hello"}}
	l := New(client, "test-bucket")

	data, err := l.Bytes()(context.Background(), "greeting.txt")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("expected hello, got %q", data)
	}
}

func TestBytesMissingKey(t *testing.T) {
	l := New(&stubClient{objects: map[string]string{}}, "test-bucket")

	if _, err := l.Bytes()(context.Background(), "absent"); err == nil {
		t.Error("expected error for missing key")
	}
}

func TestMaxSizeRejectsOversizedObject(t *testing.T) {
	client := &stubClient{objects: map[string]string{"big": strings.Repeat("x", 100)}}
	l := New(client, "test-bucket", WithMaxSize(10))

	if _, err := l.Bytes()(context.Background(), "big"); err == nil {
		t.Error("expected error for oversized object")
	}
}

func TestJSONDecodesObject(t *testing.T) {
	type flags struct {
		DarkMode bool `json:"dark_mode"`
	}
	client := &stubClient{objects: map[string]string{"flags.json": `{"dark_mode":true}`}}
	l := New(client, "test-bucket")

	out, err := JSON[flags](l)(context.Background(), "flags.json")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !out.DarkMode {
		t.Error("expected dark_mode true")
	}
}

func TestJSONDecodeError(t *testing.T) {
	client := &stubClient{objects: map[string]string{"flags.json": "not json"}}
	l := New(client, "test-bucket")

	if _, err := JSON[map[string]any](l)(context.Background(), "flags.json"); err == nil {
		t.Error("expected decode error")
	}
}

func TestLoaderDrivesResource(t *testing.T) {
	g := rtest.NewGraph(t)

	client := &stubClient{objects: map[string]string{
		"configs/a.json": `{"name":"a"}`,
		"configs/b.json": `{"name":"b"}`,
	}}
	l := New(client, "test-bucket")

	type cfg struct {
		Name string `json:"name"`
	}
	key := reactive.NewCell(g, "configs/a.json")
	r := resource.New(g, resource.Config[string, cfg]{
		Request: func() (string, bool) { return key.Get(), true },
		Loader:  JSON[cfg](l),
	})
	defer r.Dispose()

	rtest.Eventually(t, "first object", func() bool {
		return r.Status() == resource.StatusResolved
	})
	rtest.ExpectValue(t, r.Value().Name, "a")

	key.Set("configs/b.json")
	g.FlushSync()
	rtest.Eventually(t, "second object", func() bool {
		return r.Value().Name == "b"
	})
}
