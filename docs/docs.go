// Package docs registra el documento OpenAPI que sirve /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["ops"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/metrics": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["ops"],
                "summary": "Prometheus metrics",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/country-codes": {
            "get": {
                "produces": ["application/json"],
                "tags": ["patients"],
                "summary": "Dialing codes offered by the patient form",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/sessions": {
            "post": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Open a roster session",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/snapshot"}}
                }
            }
        },
        "/sessions/{sessionID}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Current snapshot of a session",
                "parameters": [{"type": "string", "name": "sessionID", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/snapshot"}},
                    "404": {"description": "session not found"}
                }
            },
            "delete": {
                "tags": ["sessions"],
                "summary": "Close a session",
                "parameters": [{"type": "string", "name": "sessionID", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}, "404": {"description": "session not found"}}
            }
        },
        "/sessions/{sessionID}/stream": {
            "get": {
                "produces": ["application/x-ndjson"],
                "tags": ["sessions"],
                "summary": "Snapshot stream, one JSON document per line",
                "parameters": [{"type": "string", "name": "sessionID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/sessions/{sessionID}/foreground": {
            "post": {
                "tags": ["sessions"],
                "summary": "Mark the session visible and reload the listing",
                "parameters": [{"type": "string", "name": "sessionID", "in": "path", "required": true}],
                "responses": {"202": {"description": "Accepted"}, "404": {"description": "session not found"}}
            }
        },
        "/sessions/{sessionID}/background": {
            "post": {
                "tags": ["sessions"],
                "summary": "Mark the session hidden",
                "parameters": [{"type": "string", "name": "sessionID", "in": "path", "required": true}],
                "responses": {"202": {"description": "Accepted"}, "404": {"description": "session not found"}}
            }
        },
        "/sessions/{sessionID}/dialogs/{dialog}/open": {
            "post": {
                "tags": ["sessions"],
                "summary": "Open the add or filters dialog",
                "parameters": [
                    {"type": "string", "name": "sessionID", "in": "path", "required": true},
                    {"type": "string", "enum": ["add", "filters"], "name": "dialog", "in": "path", "required": true}
                ],
                "responses": {"202": {"description": "Accepted"}, "404": {"description": "unknown dialog"}}
            }
        },
        "/sessions/{sessionID}/dialogs/{dialog}/dismiss": {
            "post": {
                "tags": ["sessions"],
                "summary": "Dismiss a dialog",
                "parameters": [
                    {"type": "string", "name": "sessionID", "in": "path", "required": true},
                    {"type": "string", "enum": ["add", "filters", "edit", "delete_confirmation"], "name": "dialog", "in": "path", "required": true}
                ],
                "responses": {"202": {"description": "Accepted"}, "404": {"description": "unknown dialog"}}
            }
        },
        "/sessions/{sessionID}/filter": {
            "put": {
                "consumes": ["application/json"],
                "tags": ["sessions"],
                "summary": "Replace the active filter",
                "parameters": [
                    {"type": "string", "name": "sessionID", "in": "path", "required": true},
                    {"name": "filter", "in": "body", "required": true, "schema": {"$ref": "#/definitions/filter"}}
                ],
                "responses": {"202": {"description": "Accepted"}, "400": {"description": "invalid filter"}}
            },
            "delete": {
                "tags": ["sessions"],
                "summary": "Clear the active filter",
                "parameters": [{"type": "string", "name": "sessionID", "in": "path", "required": true}],
                "responses": {"202": {"description": "Accepted"}}
            }
        },
        "/sessions/{sessionID}/patients": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["patients"],
                "summary": "Add a patient",
                "parameters": [
                    {"type": "string", "name": "sessionID", "in": "path", "required": true},
                    {"name": "patient", "in": "body", "required": true, "schema": {"$ref": "#/definitions/patientRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted"},
                    "400": {"description": "validation failed", "schema": {"$ref": "#/definitions/validation"}}
                }
            }
        },
        "/sessions/{sessionID}/patients/{patientID}": {
            "put": {
                "consumes": ["application/json"],
                "tags": ["patients"],
                "summary": "Update a listed patient or the one open in the edit dialog",
                "parameters": [
                    {"type": "string", "name": "sessionID", "in": "path", "required": true},
                    {"type": "integer", "name": "patientID", "in": "path", "required": true},
                    {"name": "patient", "in": "body", "required": true, "schema": {"$ref": "#/definitions/patientRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted"},
                    "400": {"description": "validation failed", "schema": {"$ref": "#/definitions/validation"}},
                    "404": {"description": "patient not listed"}
                }
            }
        },
        "/sessions/{sessionID}/patients/{patientID}/edit": {
            "post": {
                "tags": ["patients"],
                "summary": "Open the edit dialog for a listed patient",
                "parameters": [
                    {"type": "string", "name": "sessionID", "in": "path", "required": true},
                    {"type": "integer", "name": "patientID", "in": "path", "required": true}
                ],
                "responses": {"202": {"description": "Accepted"}, "404": {"description": "patient not listed"}}
            }
        },
        "/sessions/{sessionID}/patients/{patientID}/delete": {
            "post": {
                "tags": ["patients"],
                "summary": "Ask for confirmation before deleting a listed patient",
                "parameters": [
                    {"type": "string", "name": "sessionID", "in": "path", "required": true},
                    {"type": "integer", "name": "patientID", "in": "path", "required": true}
                ],
                "responses": {"202": {"description": "Accepted"}, "404": {"description": "patient not listed"}}
            }
        },
        "/sessions/{sessionID}/delete/confirm": {
            "post": {
                "tags": ["patients"],
                "summary": "Delete the patient pending confirmation",
                "parameters": [{"type": "string", "name": "sessionID", "in": "path", "required": true}],
                "responses": {"202": {"description": "Accepted"}}
            }
        },
        "/sessions/{sessionID}/delete/cancel": {
            "post": {
                "tags": ["patients"],
                "summary": "Cancel the pending delete confirmation",
                "parameters": [{"type": "string", "name": "sessionID", "in": "path", "required": true}],
                "responses": {"202": {"description": "Accepted"}}
            }
        }
    },
    "definitions": {
        "patient": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "family_name": {"type": "string"},
                "given_name": {"type": "string"},
                "full_name": {"type": "string"},
                "sex": {"type": "string", "enum": ["MALE", "FEMALE"]},
                "birth_date": {"type": "string", "example": "1980-05-01"},
                "age": {"type": "integer"},
                "profession": {"type": "string"},
                "email": {"type": "string"},
                "phone_number": {"type": "string"}
            }
        },
        "patientRequest": {
            "type": "object",
            "properties": {
                "family_name": {"type": "string"},
                "given_name": {"type": "string"},
                "sex": {"type": "string", "enum": ["MALE", "FEMALE"]},
                "birth_date": {"type": "string", "example": "1980-05-01"},
                "profession": {"type": "string"},
                "email": {"type": "string"},
                "phone_number": {"type": "string"},
                "country_code": {"type": "string", "example": "+237"},
                "phone_local": {"type": "string"}
            }
        },
        "filter": {
            "type": "object",
            "properties": {
                "family_name": {"type": "string"},
                "given_name": {"type": "string"},
                "sex": {"type": "string", "enum": ["MALE", "FEMALE"]},
                "birth_date": {"type": "string"}
            }
        },
        "snapshot": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "version": {"type": "integer"},
                "patients": {"type": "array", "items": {"$ref": "#/definitions/patient"}},
                "loading": {"type": "boolean"},
                "filter": {"$ref": "#/definitions/filter"},
                "error_message": {"type": "string"},
                "dialog": {"type": "string", "enum": ["none", "add", "filters", "edit", "delete_confirmation"]},
                "patient_to_delete": {"$ref": "#/definitions/patient"},
                "patient_to_edit": {"$ref": "#/definitions/patient"}
            }
        },
        "validation": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "fields": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        }
    }
}`

// SwaggerInfo contiene los datos exportados del documento.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Patient Roster API",
	Description:      "Clinic patient roster: sessions, filters, dialogs and patient mutations.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
