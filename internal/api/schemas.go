package api

import "docgen-workers/internal/common/validation"

var generateSchema = validation.MustCompile("generate request", `{
	"type": "object",
	"required": ["message"],
	"properties": {
		"message": {"type": "string", "minLength": 1, "maxLength": 4000},
		"agentId": {"type": "string", "maxLength": 128},
		"context": {
			"type": "object",
			"additionalProperties": {"type": "string"}
		}
	}
}`)

var generateMultipleSchema = validation.MustCompile("generate-multiple request", `{
	"type": "object",
	"required": ["requests"],
	"properties": {
		"requests": {
			"type": "array",
			"minItems": 1,
			"maxItems": 10,
			"items": {
				"type": "object",
				"required": ["message"],
				"properties": {
					"message": {"type": "string"},
					"agentId": {"type": "string"},
					"context": {
						"type": "object",
						"additionalProperties": {"type": "string"}
					}
				}
			}
		}
	}
}`)

var classifySchema = validation.MustCompile("classify request", `{
	"type": "object",
	"required": ["message"],
	"properties": {
		"message": {"type": "string", "maxLength": 4000}
	}
}`)
