package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "IMS Console API",
        "description": "Console backend for the institute management system: enquiries, admissions and the enquiry to admission conversion.",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {
            "name": "Enquiries",
            "description": "Enquiry leads and conversion entry points"
        },
        {
            "name": "Admissions",
            "description": "Admission form and records"
        },
        {
            "name": "Setup",
            "description": "Admission vocabulary"
        },
        {
            "name": "Conversions",
            "description": "Enquiry conversion ledger"
        },
        {
            "name": "Exports",
            "description": "Asynchronous roster exports"
        },
        {
            "name": "Ops",
            "description": "Health and metrics"
        }
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": [
                    "Ops"
                ],
                "summary": "Liveness check",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/health/ready": {
            "get": {
                "tags": [
                    "Ops"
                ],
                "summary": "Readiness check",
                "responses": {
                    "200": {
                        "description": "Ready"
                    },
                    "503": {
                        "description": "A dependency is down"
                    }
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": [
                    "Ops"
                ],
                "summary": "Prometheus metrics",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/api/v1/enquiries": {
            "get": {
                "tags": [
                    "Enquiries"
                ],
                "summary": "List enquiries",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "search",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "status",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "type": "integer",
                        "required": false
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "type": "integer",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/enquiries/{id}": {
            "get": {
                "tags": [
                    "Enquiries"
                ],
                "summary": "Get enquiry",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/enquiries/{id}/status": {
            "put": {
                "tags": [
                    "Enquiries"
                ],
                "summary": "Change enquiry status",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdateEnquiryStatusRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Transition not allowed",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/enquiries/{id}/stage": {
            "post": {
                "tags": [
                    "Enquiries"
                ],
                "summary": "Stage an enquiry for conversion",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Staged",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Enquiry cannot be converted",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/enquiries/{id}/convert": {
            "post": {
                "tags": [
                    "Enquiries"
                ],
                "summary": "Convert an enquiry in one backend call",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/AdmissionForm"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation failed",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Enquiry cannot be converted",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/admissions": {
            "get": {
                "tags": [
                    "Admissions"
                ],
                "summary": "List admissions",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "search",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "status",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "source",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "course",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "type": "integer",
                        "required": false
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "type": "integer",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            },
            "post": {
                "tags": [
                    "Admissions"
                ],
                "summary": "Submit the admission form",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SubmitAdmissionRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation failed",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Enquiry no longer convertible or conversion expired",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "502": {
                        "description": "IMS backend unavailable",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/admissions/form": {
            "get": {
                "tags": [
                    "Admissions"
                ],
                "summary": "Admission form initial state",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "fromEnquiry",
                        "in": "query",
                        "type": "boolean",
                        "required": false
                    },
                    {
                        "name": "token",
                        "in": "query",
                        "type": "string",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/admissions/form/normalize": {
            "post": {
                "tags": [
                    "Admissions"
                ],
                "summary": "Normalise one form field",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/NormalizeFieldRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/admissions/form/validate": {
            "post": {
                "tags": [
                    "Admissions"
                ],
                "summary": "Validate the whole form",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/AdmissionForm"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/admissions/{id}": {
            "get": {
                "tags": [
                    "Admissions"
                ],
                "summary": "Get admission",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/admissions/{id}/status": {
            "put": {
                "tags": [
                    "Admissions"
                ],
                "summary": "Change admission status",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdateAdmissionStatusRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/admissions/{id}/slip": {
            "get": {
                "tags": [
                    "Admissions"
                ],
                "summary": "Admission acknowledgement PDF",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "PDF document"
                    }
                },
                "produces": [
                    "application/pdf"
                ]
            }
        },
        "/api/v1/setup": {
            "get": {
                "tags": [
                    "Setup"
                ],
                "summary": "Active setup vocabulary",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/setup/form-options": {
            "get": {
                "tags": [
                    "Setup"
                ],
                "summary": "Admission form option lists",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/setup/cache": {
            "delete": {
                "tags": [
                    "Setup"
                ],
                "summary": "Drop cached vocabulary",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                }
            }
        },
        "/api/v1/conversions": {
            "get": {
                "tags": [
                    "Conversions"
                ],
                "summary": "List enquiry conversions",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "enquiryId",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "mode",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "reconcileStatus",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "type": "integer",
                        "required": false
                    },
                    {
                        "name": "pageSize",
                        "in": "query",
                        "type": "integer",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/exports/admissions": {
            "post": {
                "tags": [
                    "Exports"
                ],
                "summary": "Queue an admission roster export",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ExportRequest"
                        }
                    }
                ],
                "responses": {
                    "202": {
                        "description": "Accepted",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/exports/conversions": {
            "post": {
                "tags": [
                    "Exports"
                ],
                "summary": "Queue a conversion ledger export",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ExportRequest"
                        }
                    }
                ],
                "responses": {
                    "202": {
                        "description": "Accepted",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/exports/{id}": {
            "get": {
                "tags": [
                    "Exports"
                ],
                "summary": "Export job status",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/export/{token}": {
            "get": {
                "tags": [
                    "Exports"
                ],
                "summary": "Download a finished export",
                "parameters": [
                    {
                        "name": "token",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "File"
                    },
                    "401": {
                        "description": "Link expired or invalid"
                    }
                },
                "produces": [
                    "application/octet-stream"
                ]
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {
                    "type": "integer"
                },
                "page_size": {
                    "type": "integer"
                },
                "total_count": {
                    "type": "integer"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                },
                "fields": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "string"
                    }
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "pagination": {
                    "$ref": "#/definitions/Pagination"
                },
                "meta": {
                    "type": "object"
                }
            }
        },
        "AdmissionForm": {
            "type": "object",
            "properties": {
                "fullName": {
                    "type": "string"
                },
                "gender": {
                    "type": "string"
                },
                "dateOfBirth": {
                    "type": "string"
                },
                "mobileNumber": {
                    "type": "string"
                },
                "fatherName": {
                    "type": "string"
                },
                "fatherNumber": {
                    "type": "string"
                },
                "motherName": {
                    "type": "string"
                },
                "aadharNumber": {
                    "type": "string"
                },
                "address": {
                    "type": "string"
                },
                "city": {
                    "type": "string"
                },
                "state": {
                    "type": "string"
                },
                "pincode": {
                    "type": "string"
                },
                "place": {
                    "type": "string"
                },
                "lastQualification": {
                    "type": "string"
                },
                "yearOfPassing": {
                    "type": "string"
                },
                "schoolCollege": {
                    "type": "string"
                },
                "course": {
                    "type": "string"
                },
                "preferredBatch": {
                    "type": "string"
                },
                "facultyAllotted": {
                    "type": "string"
                },
                "category": {
                    "type": "string"
                },
                "source": {
                    "type": "string"
                },
                "email": {
                    "type": "string"
                },
                "motherNumber": {
                    "type": "string"
                },
                "referenceName": {
                    "type": "string"
                },
                "referenceNumber": {
                    "type": "string"
                },
                "remarks": {
                    "type": "string"
                },
                "courseName": {
                    "type": "string"
                },
                "batchId": {
                    "type": "string"
                },
                "facultyId": {
                    "type": "string"
                },
                "enquiryNo": {
                    "type": "string"
                },
                "enquiryId": {
                    "type": "string"
                }
            }
        },
        "SubmitAdmissionRequest": {
            "type": "object",
            "properties": {
                "fullName": {
                    "type": "string"
                },
                "gender": {
                    "type": "string"
                },
                "dateOfBirth": {
                    "type": "string"
                },
                "mobileNumber": {
                    "type": "string"
                },
                "fatherName": {
                    "type": "string"
                },
                "fatherNumber": {
                    "type": "string"
                },
                "motherName": {
                    "type": "string"
                },
                "aadharNumber": {
                    "type": "string"
                },
                "address": {
                    "type": "string"
                },
                "city": {
                    "type": "string"
                },
                "state": {
                    "type": "string"
                },
                "pincode": {
                    "type": "string"
                },
                "place": {
                    "type": "string"
                },
                "lastQualification": {
                    "type": "string"
                },
                "yearOfPassing": {
                    "type": "string"
                },
                "schoolCollege": {
                    "type": "string"
                },
                "course": {
                    "type": "string"
                },
                "preferredBatch": {
                    "type": "string"
                },
                "facultyAllotted": {
                    "type": "string"
                },
                "category": {
                    "type": "string"
                },
                "source": {
                    "type": "string"
                },
                "email": {
                    "type": "string"
                },
                "motherNumber": {
                    "type": "string"
                },
                "referenceName": {
                    "type": "string"
                },
                "referenceNumber": {
                    "type": "string"
                },
                "remarks": {
                    "type": "string"
                },
                "courseName": {
                    "type": "string"
                },
                "batchId": {
                    "type": "string"
                },
                "facultyId": {
                    "type": "string"
                },
                "enquiryNo": {
                    "type": "string"
                },
                "enquiryId": {
                    "type": "string"
                },
                "conversionToken": {
                    "type": "string"
                }
            }
        },
        "NormalizeFieldRequest": {
            "type": "object",
            "required": [
                "field"
            ],
            "properties": {
                "field": {
                    "type": "string"
                },
                "value": {
                    "type": "string"
                },
                "event": {
                    "type": "string",
                    "enum": [
                        "change",
                        "blur"
                    ]
                }
            }
        },
        "UpdateEnquiryStatusRequest": {
            "type": "object",
            "required": [
                "status"
            ],
            "properties": {
                "status": {
                    "type": "string",
                    "enum": [
                        "new",
                        "contacted",
                        "follow_up",
                        "converted",
                        "rejected",
                        "lost"
                    ]
                },
                "notes": {
                    "type": "string"
                }
            }
        },
        "UpdateAdmissionStatusRequest": {
            "type": "object",
            "required": [
                "status"
            ],
            "properties": {
                "status": {
                    "type": "string",
                    "enum": [
                        "admitted",
                        "active",
                        "completed",
                        "dropped",
                        "cancelled"
                    ]
                },
                "remarks": {
                    "type": "string"
                }
            }
        },
        "ExportRequest": {
            "type": "object",
            "required": [
                "format"
            ],
            "properties": {
                "format": {
                    "type": "string",
                    "enum": [
                        "csv",
                        "pdf"
                    ]
                },
                "status": {
                    "type": "string"
                },
                "source": {
                    "type": "string"
                },
                "course": {
                    "type": "string"
                },
                "search": {
                    "type": "string"
                },
                "reconcileStatus": {
                    "type": "string"
                }
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
