package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Grading Engine",
        "description": "Grade computation, ranking and promotion for the school gradebook",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {
            "name": "Grades",
            "description": "Subject grades and term reports"
        },
        {
            "name": "Classes",
            "description": "Class-wide recomputation"
        },
        {
            "name": "Scores",
            "description": "Score entry with audit trail"
        },
        {
            "name": "Promotion",
            "description": "Promotion evaluation"
        },
        {
            "name": "Grading Config",
            "description": "Grading systems and cache"
        }
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {
                        "description": "Ready"
                    },
                    "503": {
                        "description": "Database unreachable"
                    }
                }
            }
        },
        "/metrics": {
            "get": {
                "summary": "Prometheus metrics",
                "produces": [
                    "text/plain"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/api/v1/grades": {
            "get": {
                "tags": [
                    "Grades"
                ],
                "summary": "Get a stored subject grade",
                "parameters": [
                    {
                        "name": "student_id",
                        "in": "query",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "subject_id",
                        "in": "query",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "term_id",
                        "in": "query",
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
                    },
                    "404": {
                        "description": "Grade not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/grades/recompute": {
            "post": {
                "tags": [
                    "Grades"
                ],
                "summary": "Recompute one subject grade",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/RecomputeGradeRequest"
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
                    "404": {
                        "description": "Unknown student, subject or term",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "422": {
                        "description": "No active grading system",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "423": {
                        "description": "Grades locked",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/term-reports/recompute": {
            "post": {
                "tags": [
                    "Grades"
                ],
                "summary": "Recompute a student's term report summary",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/RecomputeReportRequest"
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
                    "404": {
                        "description": "Student not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "423": {
                        "description": "Grades locked",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/classes/{id}/recompute": {
            "post": {
                "tags": [
                    "Classes"
                ],
                "summary": "Recompute every grade, rank and report of a class for a term",
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
                            "$ref": "#/definitions/RecomputeClassRequest"
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
                    "400": {
                        "description": "Missing term or grading system",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "412": {
                        "description": "Class has no students or subjects",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "423": {
                        "description": "Grades locked",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/promotion/evaluate": {
            "post": {
                "tags": [
                    "Promotion"
                ],
                "summary": "Evaluate promotion for a stored term report",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/EvaluatePromotionRequest"
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
                    "404": {
                        "description": "Term report not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/scores": {
            "put": {
                "tags": [
                    "Scores"
                ],
                "summary": "Create or update a score",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SaveScoreRequest"
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
                    "400": {
                        "description": "Points outside 0..max",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "423": {
                        "description": "Grades locked",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            },
            "delete": {
                "tags": [
                    "Scores"
                ],
                "summary": "Delete a score",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/DeleteScoreRequest"
                        }
                    }
                ],
                "responses": {
                    "204": {
                        "description": "Deleted"
                    },
                    "404": {
                        "description": "Score not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/scores/bulk": {
            "post": {
                "tags": [
                    "Scores"
                ],
                "summary": "Save many scores in one transaction",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/BulkSaveScoresRequest"
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
                    "400": {
                        "description": "Invalid entry",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "423": {
                        "description": "Grades locked",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/grading-systems/{id}": {
            "get": {
                "tags": [
                    "Grading Config"
                ],
                "summary": "Get a grading system with its scales",
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
                    },
                    "404": {
                        "description": "Grading system not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/grading-config/cache/invalidate": {
            "post": {
                "tags": [
                    "Grading Config"
                ],
                "summary": "Drop cached grading systems and categories",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "RecomputeGradeRequest": {
            "type": "object",
            "required": [
                "student_id",
                "subject_id",
                "term_id"
            ],
            "properties": {
                "student_id": {
                    "type": "string"
                },
                "subject_id": {
                    "type": "string"
                },
                "term_id": {
                    "type": "string"
                }
            }
        },
        "RecomputeReportRequest": {
            "type": "object",
            "required": [
                "student_id",
                "term_id"
            ],
            "properties": {
                "student_id": {
                    "type": "string"
                },
                "term_id": {
                    "type": "string"
                }
            }
        },
        "RecomputeClassRequest": {
            "type": "object",
            "required": [
                "term_id",
                "grading_system_id"
            ],
            "properties": {
                "term_id": {
                    "type": "string"
                },
                "grading_system_id": {
                    "type": "string"
                }
            }
        },
        "EvaluatePromotionRequest": {
            "type": "object",
            "required": [
                "student_id",
                "term_id",
                "grading_system_id"
            ],
            "properties": {
                "student_id": {
                    "type": "string"
                },
                "term_id": {
                    "type": "string"
                },
                "grading_system_id": {
                    "type": "string"
                }
            }
        },
        "SaveScoreRequest": {
            "type": "object",
            "required": [
                "student_id",
                "assignment_id",
                "points"
            ],
            "properties": {
                "student_id": {
                    "type": "string"
                },
                "assignment_id": {
                    "type": "string"
                },
                "points": {
                    "type": "number"
                },
                "actor_id": {
                    "type": "string"
                }
            }
        },
        "DeleteScoreRequest": {
            "type": "object",
            "required": [
                "student_id",
                "assignment_id"
            ],
            "properties": {
                "student_id": {
                    "type": "string"
                },
                "assignment_id": {
                    "type": "string"
                },
                "actor_id": {
                    "type": "string"
                }
            }
        },
        "BulkScoreItem": {
            "type": "object",
            "required": [
                "student_id",
                "assignment_id",
                "points"
            ],
            "properties": {
                "student_id": {
                    "type": "string"
                },
                "assignment_id": {
                    "type": "string"
                },
                "points": {
                    "type": "number"
                }
            }
        },
        "BulkSaveScoresRequest": {
            "type": "object",
            "required": [
                "scores"
            ],
            "properties": {
                "actor_id": {
                    "type": "string"
                },
                "scores": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/BulkScoreItem"
                    }
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
                "meta": {
                    "type": "object"
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
