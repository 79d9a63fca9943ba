package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the document service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>docflow - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "docflow", "version": "v1.0.0" },
  "components": {
    "schemas": {
      "Error": { "type": "object", "properties": { "code": {"type":"string","enum":["VALIDATION_ERROR","NOT_FOUND","INTERNAL_ERROR","RATE_LIMITED"]}, "message": {"type":"string"} } },
      "BatchRequest": { "type": "object", "required": ["ids","initiator"], "properties": { "ids": {"type":"array","minItems":1,"maxItems":1000,"items":{"type":"integer","format":"int64"}}, "initiator": {"type":"string"}, "comment": {"type":"string"} } },
      "Result": { "type": "object", "properties": { "id": {"type":"integer","format":"int64"}, "result": {"type":"string","enum":["SUCCESS","NOT_FOUND","CONFLICT","REGISTRY_ERROR"]}, "message": {"type":"string"} } }
    }
  },
  "paths": {
    "/api/documents": {
      "post": { "summary": "Create a DRAFT document", "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["author","title"],"properties":{"author":{"type":"string"},"title":{"type":"string"}}}}}}, "responses": { "201": { "description": "created" }, "400": { "description": "validation error" } } },
      "get": { "summary": "Page of documents by ids", "parameters": [ {"name":"ids","in":"query","required":true,"schema":{"type":"string"}}, {"name":"page","in":"query","schema":{"type":"integer"}}, {"name":"size","in":"query","schema":{"type":"integer"}} ], "responses": { "200": { "description": "page" } } }
    },
    "/api/documents/search": {
      "get": { "summary": "Search by status, author and creation range", "parameters": [ {"name":"status","in":"query","schema":{"type":"string"}}, {"name":"author","in":"query","schema":{"type":"string"}}, {"name":"from","in":"query","schema":{"type":"string"}}, {"name":"to","in":"query","schema":{"type":"string"}} ], "responses": { "200": { "description": "page" } } }
    },
    "/api/documents/{id}": {
      "get": { "summary": "Document with history", "responses": { "200": { "description": "document" }, "404": { "description": "not found" } } }
    },
    "/api/documents/submit": {
      "post": { "summary": "Submit documents (DRAFT to SUBMITTED)", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/BatchRequest"}}}}, "responses": { "200": { "description": "one result per id" } } }
    },
    "/api/documents/approve": {
      "post": { "summary": "Approve documents (SUBMITTED to APPROVED)", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/BatchRequest"}}}}, "responses": { "200": { "description": "one result per id" } } }
    },
    "/api/documents/{id}/concurrent-approval-test": {
      "post": { "summary": "Race concurrent approvals against one document", "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["initiator"],"properties":{"threads":{"type":"integer","minimum":1,"maximum":50},"attempts":{"type":"integer","minimum":1,"maximum":100},"initiator":{"type":"string"}}}}}}, "responses": { "200": { "description": "report" }, "404": { "description": "not found" } } }
    },
    "/api/documents/{id}/concurrent-approval-test/reports/{runId}": {
      "get": { "summary": "Fetch an archived concurrency report", "parameters": [{"name":"link","in":"query","schema":{"type":"boolean"},"description":"return a presigned download link instead"}], "responses": { "200": { "description": "report or link" }, "404": { "description": "not archived" }, "503": { "description": "archive not configured" } } }
    },
    "/live": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "alive" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`
