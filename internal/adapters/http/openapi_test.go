package http_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	handler "github.com/samirrijal/baenkli/internal/adapters/http"
)

// findOpenAPISpec locates api/openapi.yaml by walking up from the test directory.
func findOpenAPISpec(t *testing.T) string {
	t.Helper()
	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "api", "openapi.yaml")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		dir = filepath.Dir(dir)
	}
	t.Fatalf("could not find api/openapi.yaml")
	return ""
}

func loadSpec(t *testing.T) *openapi3.T {
	t.Helper()
	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	spec, err := loader.LoadFromFile(findOpenAPISpec(t))
	require.NoError(t, err)
	require.NoError(t, spec.Validate(context.Background()))
	return spec
}

func TestOpenAPISpec(t *testing.T) {
	spec := loadSpec(t)

	for _, path := range []string{"/v1/health", "/v1/ready", "/v1/benches", "/v1/benches/nearby", "/v1/benches/{id}", "/graphql"} {
		assert.NotNil(t, spec.Paths.Find(path), "path %s", path)
	}
	for _, name := range []string{"Bench", "BenchInput", "BenchPage", "Rating", "APIError", "Pagination"} {
		assert.NotNil(t, spec.Components.Schemas[name], "schema %s", name)
	}

	item := spec.Paths.Find("/v1/benches/{id}")
	require.NotNil(t, item)
	require.NotNil(t, item.Put)
	require.NotNil(t, item.Delete)
	assert.NotNil(t, item.Delete.Responses.Value("428"))

	rating := spec.Components.Schemas["Rating"].Value
	require.NotNil(t, rating.Min)
	require.NotNil(t, rating.Max)
	assert.Equal(t, 1.0, *rating.Min)
	assert.Equal(t, 5.0, *rating.Max)
	assert.EqualValues(t, 3, rating.Default)
}

func TestOpenAPIInfo(t *testing.T) {
	spec := loadSpec(t)

	assert.Equal(t, "Bänkli API", spec.Info.Title)
	assert.Equal(t, "1.0.0", spec.Info.Version)
	assert.NotEmpty(t, spec.Info.Description)
	assert.NotEmpty(t, spec.Servers)
}

var routeParam = regexp.MustCompile(`:(\w+)`)

// Every versioned route the router serves is documented.
func TestOpenAPICoversRoutes(t *testing.T) {
	spec := loadSpec(t)
	app := setupApp(makeDeps())

	for _, r := range app.GetRoutes(true) {
		if !strings.HasPrefix(r.Path, "/v1/") || r.Method == "HEAD" {
			continue
		}
		path := routeParam.ReplaceAllString(r.Path, "{$1}")
		item := spec.Paths.Find(path)
		if !assert.NotNil(t, item, "%s %s undocumented", r.Method, r.Path) {
			continue
		}
		assert.NotNil(t, item.GetOperation(r.Method), "%s %s undocumented", r.Method, r.Path)
	}
}

func TestDocsEndpoints(t *testing.T) {
	old := handler.DocsSpecPath
	handler.DocsSpecPath = findOpenAPISpec(t)
	t.Cleanup(func() { handler.DocsSpecPath = old })

	app := setupApp(makeDeps())

	resp, err := app.Test(httptest.NewRequest("GET", "/docs", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(readBody(t, resp.Body)), "swagger-ui")

	resp, err = app.Test(httptest.NewRequest("GET", "/docs/openapi.yaml", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(readBody(t, resp.Body)), "openapi: 3.0.3")

	resp, err = app.Test(httptest.NewRequest("GET", "/docs/openapi.json", nil), -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
	}
	require.NoError(t, json.Unmarshal(readBody(t, resp.Body), &doc))
	assert.Equal(t, "Bänkli API", doc.Info.Title)
}
