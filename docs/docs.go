// Package docs contains the swagger document served under /swagger.
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
				"produces": [
					"application/json"
				],
				"tags": [
					"health"
				],
				"summary": "Liveness probe",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/handler.HealthResponse"
						}
					}
				}
			}
		},
		"/readyz": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"health"
				],
				"summary": "Readiness probe, checks database connectivity",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"503": {
						"description": "Service Unavailable",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				}
			}
		},
		"/upload": {
			"post": {
				"consumes": [
					"multipart/form-data"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"documents"
				],
				"summary": "Upload a PDF or image as a document",
				"parameters": [
					{
						"type": "file",
						"description": "PDF or image (max 10 MiB)",
						"name": "file",
						"in": "formData",
						"required": true
					},
					{
						"type": "string",
						"description": "Title, 1-200 characters",
						"name": "titulo",
						"in": "formData"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/handler.UploadDocumentResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					},
					"429": {
						"description": "Too Many Requests",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				}
			}
		},
		"/upload-image": {
			"post": {
				"consumes": [
					"multipart/form-data"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"images"
				],
				"summary": "Upload an image",
				"parameters": [
					{
						"type": "file",
						"description": "JPEG, PNG or WebP image (max 10 MiB)",
						"name": "file",
						"in": "formData",
						"required": true
					},
					{
						"type": "string",
						"description": "Display name, 1-200 characters",
						"name": "nombre",
						"in": "formData"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/handler.UploadImageResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					},
					"429": {
						"description": "Too Many Requests",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				}
			}
		},
		"/files": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"files"
				],
				"summary": "List blobs present in storage",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/service.FileListing"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				}
			}
		},
		"/documentos": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"documents"
				],
				"summary": "List documents, newest first",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/model.Document"
							}
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				}
			}
		},
		"/documentos/{id}": {
			"delete": {
				"produces": [
					"application/json"
				],
				"tags": [
					"documents"
				],
				"summary": "Delete a document and its file",
				"parameters": [
					{
						"type": "integer",
						"description": "Document ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/handler.DeleteResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				}
			}
		},
		"/imagenes": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"images"
				],
				"summary": "List images, newest first",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/model.Image"
							}
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				}
			}
		},
		"/imagenes/{id}": {
			"delete": {
				"produces": [
					"application/json"
				],
				"tags": [
					"images"
				],
				"summary": "Delete an image and its file",
				"parameters": [
					{
						"type": "integer",
						"description": "Image ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/handler.DeleteResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				}
			}
		},
		"/login": {
			"post": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"auth"
				],
				"summary": "Check a username and password",
				"parameters": [
					{
						"description": "Credentials",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.LoginRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				}
			}
		}
	},
	"definitions": {
		"handler.errorPayload": {
			"type": "object",
			"properties": {
				"error": {
					"type": "string"
				},
				"kind": {
					"type": "string"
				},
				"request_id": {
					"type": "string"
				}
			}
		},
		"handler.HealthResponse": {
			"type": "object",
			"properties": {
				"status": {
					"type": "string"
				},
				"timestamp": {
					"type": "string"
				},
				"uptime": {
					"type": "number"
				}
			}
		},
		"handler.UploadDocumentResponse": {
			"type": "object",
			"properties": {
				"message": {
					"type": "string"
				},
				"id": {
					"type": "integer"
				},
				"url": {
					"type": "string"
				},
				"type": {
					"type": "string"
				},
				"filename": {
					"type": "string"
				},
				"titulo": {
					"type": "string"
				},
				"estado": {
					"type": "string"
				},
				"fecha": {
					"type": "string"
				},
				"size": {
					"type": "integer"
				}
			}
		},
		"handler.UploadImageResponse": {
			"type": "object",
			"properties": {
				"message": {
					"type": "string"
				},
				"id": {
					"type": "integer"
				},
				"nombre": {
					"type": "string"
				},
				"filename": {
					"type": "string"
				},
				"url": {
					"type": "string"
				},
				"fecha": {
					"type": "string"
				}
			}
		},
		"handler.DeleteResponse": {
			"type": "object",
			"properties": {
				"message": {
					"type": "string"
				},
				"deletedFile": {
					"type": "string"
				}
			}
		},
		"handler.LoginRequest": {
			"type": "object",
			"properties": {
				"username": {
					"type": "string"
				},
				"password": {
					"type": "string"
				}
			}
		},
		"model.Document": {
			"type": "object",
			"properties": {
				"id": {
					"type": "integer"
				},
				"titulo": {
					"type": "string"
				},
				"filename": {
					"type": "string"
				},
				"url": {
					"type": "string"
				},
				"estado": {
					"type": "string"
				},
				"fecha_subida": {
					"type": "string"
				}
			}
		},
		"model.Image": {
			"type": "object",
			"properties": {
				"id": {
					"type": "integer"
				},
				"nombre": {
					"type": "string"
				},
				"filename": {
					"type": "string"
				},
				"url": {
					"type": "string"
				},
				"fecha_subida": {
					"type": "string"
				}
			}
		},
		"model.StoredFile": {
			"type": "object",
			"properties": {
				"filename": {
					"type": "string"
				},
				"type": {
					"type": "string"
				},
				"url": {
					"type": "string"
				}
			}
		},
		"service.FileListing": {
			"type": "object",
			"properties": {
				"files": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/model.StoredFile"
					}
				},
				"total": {
					"type": "integer"
				},
				"images": {
					"type": "integer"
				},
				"pdfs": {
					"type": "integer"
				}
			}
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "docvault API",
	Description:      "Document and image upload service.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
