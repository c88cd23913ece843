// Package docs registers the agent's OpenAPI document with swag so the
// Swagger UI at /docs can serve it.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "Nutricomm"
        },
        "license": {
            "name": "MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/duty/today": {
            "get": {
                "description": "Returns the participant on duty. With user_id, also reports whether that participant is on duty.",
                "produces": ["application/json"],
                "tags": ["duty"],
                "summary": "Today's duty assignment",
                "parameters": [
                    {"type": "string", "description": "Reference date (YYYY-MM-DD), defaults to today", "name": "date", "in": "query"},
                    {"type": "string", "description": "Participant to check", "name": "user_id", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/duty/schedule": {
            "get": {
                "description": "Returns consecutive duty assignments; the first is today, the rest future.",
                "produces": ["application/json"],
                "tags": ["duty"],
                "summary": "Duty schedule",
                "parameters": [
                    {"type": "string", "description": "Reference date (YYYY-MM-DD), defaults to today", "name": "date", "in": "query"},
                    {"type": "integer", "description": "Number of days (default 30, max 366)", "name": "days", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/handler.assignmentView"}}},
                    "304": {"description": "Not modified"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/duty/export": {
            "get": {
                "description": "Renders the schedule window as xlsx or pdf.",
                "produces": ["application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "tags": ["duty"],
                "summary": "Export duty calendar",
                "parameters": [
                    {"type": "string", "description": "xlsx or pdf (default pdf)", "name": "format", "in": "query"},
                    {"type": "string", "description": "Reference date (YYYY-MM-DD), defaults to today", "name": "date", "in": "query"},
                    {"type": "integer", "description": "Number of days (default 30, max 366)", "name": "days", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/duty/reload": {
            "post": {
                "description": "Re-reads the roster file. An invalid file is rejected and the previous roster stays active.",
                "produces": ["application/json"],
                "tags": ["duty"],
                "summary": "Reload roster",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/duty/{participantID}": {
            "get": {
                "description": "Returns the days in the window assigned to one participant.",
                "produces": ["application/json"],
                "tags": ["duty"],
                "summary": "Participant duty days",
                "parameters": [
                    {"type": "string", "description": "Participant ID", "name": "participantID", "in": "path", "required": true},
                    {"type": "string", "description": "Reference date (YYYY-MM-DD), defaults to today", "name": "date", "in": "query"},
                    {"type": "integer", "description": "Number of days (default 30, max 366)", "name": "days", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/readings/latest": {
            "get": {
                "description": "Returns {state, reading}. state is loading, live or unavailable.",
                "produces": ["application/json"],
                "tags": ["readings"],
                "summary": "Latest sensor reading",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/cache.Snapshot"}},
                    "304": {"description": "Not modified"}
                }
            }
        },
        "/readings/refresh": {
            "post": {
                "description": "Pulls the latest reading over HTTP right away without changing the transport state.",
                "produces": ["application/json"],
                "tags": ["readings"],
                "summary": "Refresh reading",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/cache.Snapshot"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/alerts/thresholds": {
            "get": {
                "description": "Returns the threshold bands used to derive notification candidates.",
                "produces": ["application/json"],
                "tags": ["readings"],
                "summary": "Alert thresholds",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/alerts.Thresholds"}}
                }
            }
        },
        "/backend": {
            "get": {
                "produces": ["application/json"],
                "tags": ["backend"],
                "summary": "Current backend",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.backendView"}}
                }
            },
            "put": {
                "description": "Validates and pings host:port, then switches the REST client and live channel to it.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["backend"],
                "summary": "Change backend",
                "parameters": [
                    {"description": "New backend address", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.setBackendRequest"}},
                    {"type": "boolean", "description": "Skip the reachability check", "name": "force", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.backendView"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "alerts.Thresholds": {
            "type": "object",
            "properties": {
                "co2_high": {"type": "number"},
                "light_high": {"type": "number"},
                "light_low": {"type": "number"},
                "soil_high": {"type": "number"},
                "soil_low": {"type": "number"},
                "temp_high": {"type": "number"},
                "temp_low": {"type": "number"}
            }
        },
        "cache.Snapshot": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "reading": {"$ref": "#/definitions/sensor.Reading"},
                "state": {"type": "string", "enum": ["loading", "live", "unavailable"]},
                "updated_at": {"type": "string"}
            }
        },
        "handler.assignmentView": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "display_name": {"type": "string"},
                "participant_id": {"type": "string"},
                "slot": {"type": "integer"},
                "status": {"type": "string", "enum": ["past", "today", "future"]}
            }
        },
        "handler.backendView": {
            "type": "object",
            "properties": {
                "host": {"type": "string"},
                "port": {"type": "integer"},
                "url": {"type": "string"},
                "websocket": {"type": "string"}
            }
        },
        "handler.setBackendRequest": {
            "type": "object",
            "properties": {
                "host": {"type": "string"},
                "port": {"type": "integer"}
            }
        },
        "respond.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "code": {"type": "string"},
                        "detail": {"type": "string"},
                        "message": {"type": "string"}
                    }
                }
            }
        },
        "sensor.Reading": {
            "type": "object",
            "properties": {
                "air_humidity_pct": {"type": "number"},
                "co2_ppm": {"type": "number"},
                "garden_id": {"type": "string"},
                "light_lux": {"type": "number"},
                "observed_at": {"type": "string"},
                "soil_moisture_pct": {"type": "number"},
                "temperature_c": {"type": "number"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http"},
	Title:            "Kebun Gizi Agent API",
	Description:      "Local API of the community garden agent: duty rotation, latest live sensor reading and backend settings.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
