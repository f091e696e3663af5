// Package docs registers the OpenAPI document served under /swagger/.
// Keep it in step with the @-annotations on the handlers.
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
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "Healthy", "schema": {"type": "object", "additionalProperties": true}},
                    "503": {"description": "Secret store unreachable", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/apps/{appid}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["apps"],
                "summary": "Check an app",
                "parameters": [{"type": "string", "description": "App id", "name": "appid", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.AppResponse"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["apps"],
                "summary": "Store an app secret",
                "parameters": [
                    {"type": "string", "description": "App id", "name": "appid", "in": "path", "required": true},
                    {"description": "Secret", "name": "app", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.PutAppRequest"}}
                ],
                "responses": {
                    "200": {"description": "Secret replaced", "schema": {"$ref": "#/definitions/handlers.AppResponse"}},
                    "201": {"description": "App created", "schema": {"$ref": "#/definitions/handlers.AppResponse"}},
                    "400": {"description": "Invalid appid or secret", "schema": {"$ref": "#/definitions/handlers.ErrorBody"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["apps"],
                "summary": "Delete an app",
                "parameters": [{"type": "string", "description": "App id", "name": "appid", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Unknown app", "schema": {"$ref": "#/definitions/handlers.ErrorBody"}}
                }
            }
        },
        "/api/signatures": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["signatures"],
                "summary": "Sign a request",
                "parameters": [{"description": "Request to sign", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateSignatureRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/signature.SignedRequest"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/handlers.ErrorBody"}},
                    "404": {"description": "Unknown app", "schema": {"$ref": "#/definitions/handlers.ErrorBody"}}
                }
            }
        },
        "/api/verifications": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["signatures"],
                "summary": "Verify a signature header",
                "parameters": [{"description": "Received request", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.VerificationRequest"}}],
                "responses": {
                    "200": {"description": "Outcome", "schema": {"$ref": "#/definitions/handlers.VerificationResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/handlers.ErrorBody"}}
                }
            }
        },
        "/api/settings": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["settings"],
                "summary": "Effective configuration with secrets redacted",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/v1/{path}": {
            "get": {
                "security": [{"SignatureAuth": []}],
                "produces": ["application/json"],
                "tags": ["signed"],
                "summary": "Echo an authenticated request",
                "parameters": [{"type": "string", "description": "Any path", "name": "path", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.EchoResponse"}},
                    "400": {"description": "Missing or malformed header", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}},
                    "401": {"description": "Signature rejected", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}},
                    "403": {"description": "Stale timestamp or reused nonce", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}},
                    "429": {"description": "Rate limit exceeded"}
                }
            }
        }
    },
    "definitions": {
        "handlers.AppResponse": {
            "type": "object",
            "properties": {
                "appid": {"type": "string"},
                "created": {"type": "boolean"},
                "exists": {"type": "boolean"}
            }
        },
        "handlers.PutAppRequest": {
            "type": "object",
            "required": ["secret_key"],
            "properties": {
                "secret_key": {"type": "string", "maxLength": 4096}
            }
        },
        "handlers.ErrorBody": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
            }
        },
        "handlers.CreateSignatureRequest": {
            "type": "object",
            "required": ["appid", "url"],
            "properties": {
                "appid": {"type": "string", "maxLength": 128},
                "url": {"type": "string"},
                "method": {"type": "string"},
                "body": {},
                "query": {"type": "string", "description": "Raw query string or a list of key/value pairs"},
                "with_hash_name": {"type": "boolean"},
                "pair_value": {"type": "boolean"},
                "ends_with_secret_key": {"type": "boolean"}
            }
        },
        "handlers.VerificationRequest": {
            "type": "object",
            "properties": {
                "header_value": {"type": "string"},
                "url": {"type": "string"},
                "method": {"type": "string"},
                "body": {},
                "query": {"type": "string"}
            }
        },
        "handlers.VerificationResponse": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean"},
                "code": {"type": "integer"},
                "code_name": {"type": "string"},
                "message": {"type": "string"},
                "appid": {"type": "string"}
            }
        },
        "handlers.EchoResponse": {
            "type": "object",
            "properties": {
                "appid": {"type": "string"},
                "method": {"type": "string"},
                "path": {"type": "string"},
                "query": {"type": "array", "items": {"type": "object"}}
            }
        },
        "middleware.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "message": {"type": "string"}
            }
        },
        "signature.SignedRequest": {
            "type": "object",
            "properties": {
                "url": {"type": "string"},
                "timestamp": {"type": "integer"},
                "nonce": {"type": "string"},
                "raw_signature_string": {"type": "string"},
                "signature": {"type": "string"},
                "header_value": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"},
        "SignatureAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "sigauth API",
	Description:      "HMAC-SHA256 request signing and verification service.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
