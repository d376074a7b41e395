package learning

import "github.com/ssfxx0923/Learning-Studio/internal/entitystore"

const messageSchema = `{
	"type": "object",
	"required": ["role", "content", "timestamp"],
	"properties": {
		"role": {"enum": ["user", "assistant"]},
		"content": {"type": "string"},
		"timestamp": {"type": "string"}
	}
}`

var (
	planValidator = entitystore.MustCompileSchema("plan", `{
		"type": "object",
		"required": ["id", "title", "createdAt"],
		"properties": {
			"id": {"type": "string", "minLength": 1},
			"title": {"type": "string", "minLength": 1},
			"description": {"type": "string"},
			"priority": {"type": "number"},
			"progress": {"type": "number", "minimum": 0, "maximum": 100},
			"createdAt": {"type": "string", "minLength": 1},
			"tasks": {
				"type": ["array", "null"],
				"items": {
					"type": "object",
					"required": ["id", "title"],
					"properties": {
						"id": {"type": "string"},
						"title": {"type": "string"},
						"completed": {"type": "boolean"}
					}
				}
			},
			"chatHistory": {"type": ["array", "null"], "items": ` + messageSchema + `}
		}
	}`)

	sessionValidator = entitystore.MustCompileSchema("session", `{
		"type": "object",
		"required": ["id", "messages", "createdAt", "updatedAt"],
		"properties": {
			"id": {"type": "string", "minLength": 1},
			"title": {"type": "string"},
			"topic": {"type": "string"},
			"messages": {"type": "array", "items": ` + messageSchema + `},
			"createdAt": {"type": "string"},
			"updatedAt": {"type": "string"}
		}
	}`)

	noteValidator = entitystore.MustCompileSchema("note", `{
		"type": "object",
		"required": ["id", "title", "content", "tags", "createdAt", "updatedAt"],
		"properties": {
			"id": {"type": "string", "minLength": 1},
			"title": {"type": "string", "minLength": 1},
			"content": {"type": "string"},
			"tags": {"type": "array", "items": {"type": "string"}},
			"category": {"type": "string"}
		}
	}`)
)
