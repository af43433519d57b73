package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "StageFlow API",
        "description": "Internship management API: demandes, approval workflow, evaluations and documents",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Login, token refresh and session management"},
        {"name": "Users", "description": "Account administration"},
        {"name": "Stagiaires", "description": "Internship profiles and tuteur assignment"},
        {"name": "Demandes", "description": "Demande lifecycle and approval workflow"},
        {"name": "Evaluations", "description": "Tuteur assessments"},
        {"name": "Documents", "description": "File uploads and signed downloads"},
        {"name": "Notifications", "description": "Per-user notification feed"},
        {"name": "Dashboard", "description": "Scoped demande summaries"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid refresh token"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Logout current session",
                "security": [{"BearerAuth": []}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/auth/change-password": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Change password",
                "security": [{"BearerAuth": []}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user info",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List users",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "role", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Users"],
                "summary": "Create user",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/users/{id}": {
            "get": {
                "tags": ["Users"],
                "summary": "Get user",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            },
            "put": {
                "tags": ["Users"],
                "summary": "Update user",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "tags": ["Users"],
                "summary": "Deactivate user",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/stagiaires": {
            "get": {
                "tags": ["Stagiaires"],
                "summary": "List stagiaires",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Stagiaires"],
                "summary": "Create stagiaire profile",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/stagiaires/{id}/tuteur": {
            "put": {
                "tags": ["Stagiaires"],
                "summary": "Assign or clear the supervising tuteur",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/demandes": {
            "get": {
                "tags": ["Demandes"],
                "summary": "List demandes in the caller's scope",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Demandes"],
                "summary": "Submit a demande",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateDemandeRequest"}}
                ],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/demandes/{id}/approve": {
            "post": {
                "tags": ["Demandes"],
                "summary": "Approve the pending workflow step",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DecideStepRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Not the caller's step"},
                    "409": {"description": "Step already decided or chain terminal"}
                }
            }
        },
        "/demandes/{id}/reject": {
            "post": {
                "tags": ["Demandes"],
                "summary": "Reject the pending workflow step",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DecideStepRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Comments required"},
                    "409": {"description": "Step already decided or chain terminal"}
                }
            }
        },
        "/demandes/{id}/workflow": {
            "get": {
                "tags": ["Demandes"],
                "summary": "Workflow step history",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/demandes/{id}/attestation": {
            "get": {
                "tags": ["Demandes"],
                "summary": "Download attestation PDF",
                "security": [{"BearerAuth": []}],
                "produces": ["application/pdf"],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "PDF payload"}}
            }
        },
        "/demandes/export": {
            "get": {
                "tags": ["Demandes"],
                "summary": "Export demandes as CSV",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv"],
                "responses": {"200": {"description": "CSV payload"}}
            }
        },
        "/evaluations": {
            "get": {
                "tags": ["Evaluations"],
                "summary": "List evaluations",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Evaluations"],
                "summary": "Create evaluation",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/documents": {
            "get": {
                "tags": ["Documents"],
                "summary": "List documents",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Documents"],
                "summary": "Upload document",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "required": true, "type": "file"},
                    {"name": "demandeId", "in": "formData", "type": "string"},
                    {"name": "public", "in": "formData", "type": "boolean"}
                ],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/documents/download": {
            "get": {
                "tags": ["Documents"],
                "summary": "Download via signed token",
                "parameters": [{"name": "token", "in": "query", "required": true, "type": "string"}],
                "responses": {"200": {"description": "File payload"}, "401": {"description": "Invalid or expired token"}}
            }
        },
        "/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List notifications",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Demande summary for the caller's scope",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "CreateDemandeRequest": {
            "type": "object",
            "required": ["type", "titre", "description"],
            "properties": {
                "type": {"type": "string", "enum": ["CONGE", "PROLONGATION", "ATTESTATION", "AUTRE"]},
                "titre": {"type": "string"},
                "description": {"type": "string"}
            }
        },
        "DecideStepRequest": {
            "type": "object",
            "required": ["currentStep"],
            "properties": {
                "currentStep": {"type": "string", "enum": ["STAGIAIRE", "TUTEUR", "RH", "FINANCE"]},
                "comments": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "pageSize": {"type": "integer"},
                "totalCount": {"type": "integer"}
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
