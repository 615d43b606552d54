package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
)

func registerDocs(r chi.Router, basePath string) {
	page := docsPage(path.Join("/", basePath, "openapi.json"))
	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	})
}

// registerOpenAPI serves the generated document under the base path. It is rendered on
// first request, after every operation has been registered.
func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		doc  []byte
		err  error
	)
	r.Get(path.Join(basePath, "openapi.json"), func(w http.ResponseWriter, _ *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			decorateOpenAPI(oas, basePath)
			doc, err = json.Marshal(oas)
		})
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusInternalServerError, "internal_error", "openapi: "+err.Error(), nil))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	})
}

// decorateOpenAPI adds the shared error response and the bearer scheme. Guest routes get
// an empty security requirement.
func decorateOpenAPI(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	bearer := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = bearer
	errResponse := &huma.Response{
		Description: "Error",
		Content: map[string]*huma.MediaType{
			"application/json": {Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"}},
		},
	}
	for route, item := range oas.Paths {
		eachOperation(item, func(method string, op *huma.Operation) {
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = errResponse
			if guestRoute(basePath, method, route) {
				op.Security = []map[string][]string{}
			} else {
				op.Security = bearer
			}
		})
	}
}

func eachOperation(item *huma.PathItem, fn func(method string, op *huma.Operation)) {
	if item == nil {
		return
	}
	for _, m := range []struct {
		method string
		op     *huma.Operation
	}{
		{http.MethodGet, item.Get},
		{http.MethodPost, item.Post},
		{http.MethodPut, item.Put},
		{http.MethodPatch, item.Patch},
		{http.MethodDelete, item.Delete},
	} {
		if m.op != nil {
			fn(m.method, m.op)
		}
	}
}

func docsPage(specURL string) []byte {
	return []byte(fmt.Sprintf(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8"/>
<title>Tableside API</title>
<link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css"/>
</head>
<body>
<div id="ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
<script>SwaggerUIBundle({url: %q, dom_id: "#ui"});</script>
</body>
</html>`, specURL))
}
