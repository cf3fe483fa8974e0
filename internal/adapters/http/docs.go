package http

import (
	"context"
	"os"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
)

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="de">
<head>
  <meta charset="UTF-8">
  <title>Bänkli API · Swagger UI</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
  <style>body{margin:0}</style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/docs/openapi.json',
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [SwaggerUIBundle.presets.apis],
    });
  </script>
</body>
</html>`

// DocsSpecPath is where the OpenAPI document is read from, relative to the
// working directory.
var DocsSpecPath = "api/openapi.yaml"

// apiDoc loads and validates the OpenAPI document once.
type apiDoc struct {
	once sync.Once
	json []byte
	err  error
}

func (d *apiDoc) load() ([]byte, error) {
	d.once.Do(func() {
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromFile(DocsSpecPath)
		if err != nil {
			d.err = err
			return
		}
		if err := doc.Validate(context.Background()); err != nil {
			d.err = err
			return
		}
		d.json, d.err = doc.MarshalJSON()
	})
	return d.json, d.err
}

// SetupDocs registers Swagger UI at /docs, the YAML source at
// /docs/openapi.yaml and its validated JSON form at /docs/openapi.json.
func SetupDocs(app *fiber.App) {
	doc := &apiDoc{}

	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(swaggerUIHTML)
	})

	app.Get("/docs/openapi.yaml", func(c *fiber.Ctx) error {
		data, err := os.ReadFile(DocsSpecPath)
		if err != nil {
			return errNotFound(c, "openapi.yaml not found")
		}
		c.Set(fiber.HeaderContentType, "application/yaml")
		return c.Send(data)
	})

	app.Get("/docs/openapi.json", func(c *fiber.Ctx) error {
		data, err := doc.load()
		if err != nil {
			LoggerFromCtx(c.UserContext()).Error("openapi document unavailable", "path", DocsSpecPath, "error", err)
			return errNotFound(c, "openapi document unavailable")
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(data)
	})
}
