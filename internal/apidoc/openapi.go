// Package apidoc describes the echo HTTP surface as an OpenAPI 3 document.
package apidoc

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

// Document builds the OpenAPI description of the echo routes.
func Document(version string) *openapi3.T {
	echoGet := echoOperation("Echo a status after a delay")
	echoPost := echoOperation("Echo the request body with a status after a delay")
	echoPost.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().
		WithDescription("Returned verbatim").
		WithContent(openapi3.NewContentWithSchema(openapi3.NewStringSchema(), []string{"*/*"}))}
	echoPut := echoOperation("Echo the request body with a status after a delay")
	echoPut.RequestBody = echoPost.RequestBody

	health := openapi3.NewOperation()
	health.Summary = "Liveness check"
	health.Responses = openapi3.NewResponses(
		openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("alive")}),
	)

	help := openapi3.NewOperation()
	help.Summary = "Query and header contract"
	help.Responses = openapi3.NewResponses(
		openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{Value: openapi3.NewResponse().
			WithDescription("help document").
			WithJSONSchema(openapi3.NewObjectSchema())}),
	)

	return &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "echo",
			Description: "Returns a chosen status after a chosen delay, with diagnostic headers.",
			Version:     version,
		},
		Paths: openapi3.NewPaths(
			openapi3.WithPath("/", &openapi3.PathItem{Get: echoGet, Post: echoPost, Put: echoPut}),
			openapi3.WithPath("/healthz", &openapi3.PathItem{Get: health}),
			openapi3.WithPath("/help", &openapi3.PathItem{Get: help}),
		),
	}
}

func echoOperation(summary string) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.Summary = summary
	op.Parameters = openapi3.Parameters{
		{Value: openapi3.NewQueryParameter("status").
			WithDescription("Response status, default 200; below 200 or above 600 yields 500").
			WithSchema(openapi3.NewInt32Schema())},
		{Value: openapi3.NewQueryParameter("timeout").
			WithDescription("Delay in milliseconds, clamped to [0, 120000]").
			WithSchema(openapi3.NewInt64Schema())},
		{Value: openapi3.NewQueryParameter("delay").
			WithDescription("Delay in milliseconds, ignored when timeout is present").
			WithSchema(openapi3.NewInt64Schema())},
		{Value: openapi3.NewHeaderParameter("X-Request-Id").
			WithDescription("Propagated to the response; generated when absent").
			WithSchema(openapi3.NewStringSchema())},
	}

	ok := openapi3.NewResponse().WithDescription("the requested status")
	ok.Headers = openapi3.Headers{
		"X-Request-Id":        stringHeader("Request id"),
		"X-Response-Time":     stringHeader("Response time in milliseconds"),
		"X-Client-iP":         stringHeader("Client IP"),
		"X-Client-User-Agent": stringHeader("Client user agent"),
	}
	op.Responses = openapi3.NewResponses(
		openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{Value: ok}),
		openapi3.WithStatus(http.StatusBadRequest, &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("malformed query parameter")}),
		openapi3.WithStatus(http.StatusServiceUnavailable, &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("admission queue full")}),
	)
	return op
}

func stringHeader(desc string) *openapi3.HeaderRef {
	return &openapi3.HeaderRef{Value: &openapi3.Header{Parameter: openapi3.Parameter{
		Description: desc,
		Schema:      openapi3.NewSchemaRef("", openapi3.NewStringSchema()),
	}}}
}

// Handler serves the document as JSON, encoding it once.
func Handler(doc *openapi3.T) http.Handler {
	var (
		once sync.Once
		body []byte
		err  error
	)
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		once.Do(func() { body, err = json.Marshal(doc) })
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	})
}
