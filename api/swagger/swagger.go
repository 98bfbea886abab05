package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Enrollment Insight API",
        "description": "Mirrors enrollment spreadsheets into a record store and serves same-day cohort comparisons",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Imports", "description": "Spreadsheet uploads mirrored into the record store"},
        {"name": "Comparison", "description": "Same-day enrollment comparison across terms"},
        {"name": "Insights", "description": "Dashboard filters and indicators"},
        {"name": "System", "description": "Probes and metrics"}
    ],
    "paths": {
        "/units/{unitId}/imports": {
            "post": {
                "tags": ["Imports"],
                "summary": "Replace a unit's enrollment records with a spreadsheet",
                "description": "The upload is acknowledged immediately; the records are replaced in the background.",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "unitId", "in": "path", "required": true, "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ImportAckEnvelope"}},
                    "400": {"description": "Invalid upload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "413": {"description": "File too large", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Import queue full", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/units/{unitId}/temporal-comparison": {
            "get": {
                "tags": ["Comparison"],
                "summary": "Same-day enrollment comparison across four terms",
                "parameters": [
                    {"name": "unitId", "in": "path", "required": true, "type": "string"},
                    {"name": "semester", "in": "query", "required": true, "type": "string"},
                    {"name": "ref_date", "in": "query", "required": true, "type": "string", "format": "date"},
                    {"name": "tipo_captacao", "in": "query", "type": "string", "enum": ["all", "captacao", "rematricula"]},
                    {"name": "curso", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "turno", "in": "query", "type": "string"},
                    {"name": "modalidade", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ComparisonEnvelope"}},
                    "400": {"description": "Invalid query", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/units/{unitId}/temporal-comparison/export": {
            "get": {
                "tags": ["Comparison"],
                "summary": "Download the comparison as a file",
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"name": "unitId", "in": "path", "required": true, "type": "string"},
                    {"name": "semester", "in": "query", "required": true, "type": "string"},
                    {"name": "ref_date", "in": "query", "required": true, "type": "string", "format": "date"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf", "xlsx"]}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}},
                    "400": {"description": "Invalid query", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/units/{unitId}/facets": {
            "get": {
                "tags": ["Insights"],
                "summary": "Distinct filter values of a unit",
                "parameters": [
                    {"name": "unitId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/units/{unitId}/kpis": {
            "get": {
                "tags": ["Insights"],
                "summary": "Headline indicators for a semester",
                "parameters": [
                    {"name": "unitId", "in": "path", "required": true, "type": "string"},
                    {"name": "semester", "in": "query", "required": true, "type": "string"},
                    {"name": "tipo_captacao", "in": "query", "type": "string", "enum": ["all", "captacao", "rematricula"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/units/{unitId}/distribution": {
            "get": {
                "tags": ["Insights"],
                "summary": "Semester records grouped by shift, course or period",
                "parameters": [
                    {"name": "unitId", "in": "path", "required": true, "type": "string"},
                    {"name": "semester", "in": "query", "required": true, "type": "string"},
                    {"name": "by", "in": "query", "type": "string", "enum": ["shift", "course", "period"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/units/{unitId}/evolution": {
            "get": {
                "tags": ["Insights"],
                "summary": "Per-term totals for terms sharing the semester suffix",
                "parameters": [
                    {"name": "unitId", "in": "path", "required": true, "type": "string"},
                    {"name": "semester", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/units/{unitId}/top-dates": {
            "get": {
                "tags": ["Insights"],
                "summary": "Busiest enrollment days of a semester",
                "parameters": [
                    {"name": "unitId", "in": "path", "required": true, "type": "string"},
                    {"name": "semester", "in": "query", "required": true, "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["System"],
                "summary": "JSON snapshot of process metrics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ImportAck": {
            "type": "object",
            "properties": {
                "job_id": {"type": "string"},
                "unit_id": {"type": "string"},
                "filename": {"type": "string"},
                "status": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "ImportAckEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/ImportAck"}
            }
        },
        "ComparisonRow": {
            "type": "object",
            "properties": {
                "ref_day_month": {"type": "string"},
                "weekday_name": {"type": "string"},
                "semester_id": {"type": "string"},
                "student_count": {"type": "integer"},
                "sort_date": {"type": "string", "format": "date"}
            }
        },
        "ComparisonEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/ComparisonRow"}
                },
                "meta": {"type": "object"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
