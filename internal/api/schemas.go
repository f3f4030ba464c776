package api

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Request bodies are validated against JSON Schemas before they reach a
// handler; schema violations are the only malformed-request surface.

const chatRequestSchema = `{
	"type": "object",
	"required": ["message", "chatbot_id"],
	"properties": {
		"message": {"type": "string", "minLength": 1},
		"chatbot_id": {"type": "string", "minLength": 1},
		"context": {"type": "string"}
	},
	"additionalProperties": false
}`

const analysisRequestSchema = `{
	"type": "object",
	"required": ["text"],
	"properties": {
		"text": {"type": "string", "minLength": 1}
	},
	"additionalProperties": false
}`

const chatbotCreateSchema = `{
	"type": "object",
	"required": ["name"],
	"properties": {
		"name": {"type": "string", "minLength": 1, "maxLength": 200},
		"description": {"type": "string"},
		"industry": {"type": "string"}
	},
	"additionalProperties": false
}`

const chatbotUpdateSchema = `{
	"type": "object",
	"minProperties": 1,
	"properties": {
		"name": {"type": "string", "minLength": 1, "maxLength": 200},
		"description": {"type": "string"},
		"industry": {"type": "string"},
		"status": {"type": "string", "enum": ["draft", "active", "archived"]},
		"deployment_url": {"type": "string"}
	},
	"additionalProperties": false
}`

const profileUpsertSchema = `{
	"type": "object",
	"properties": {
		"full_name": {"type": "string", "maxLength": 200},
		"business_name": {"type": "string", "maxLength": 200},
		"industry": {"type": "string", "maxLength": 100}
	},
	"additionalProperties": false
}`

const knowledgeItemSchema = `{
	"type": "object",
	"required": ["content"],
	"properties": {
		"content": {"type": "string", "minLength": 1},
		"source": {"type": "string"},
		"category": {"type": "string"}
	},
	"additionalProperties": false
}`

var (
	chatSchema          = jsonschema.MustCompileString("chat.json", chatRequestSchema)
	analysisSchema      = jsonschema.MustCompileString("analysis.json", analysisRequestSchema)
	createChatbotSchema = jsonschema.MustCompileString("chatbot_create.json", chatbotCreateSchema)
	updateChatbotSchema = jsonschema.MustCompileString("chatbot_update.json", chatbotUpdateSchema)
	knowledgeSchema     = jsonschema.MustCompileString("knowledge_item.json", knowledgeItemSchema)
	profileSchema       = jsonschema.MustCompileString("profile.json", profileUpsertSchema)
)

// decodeValidated reads the body, checks it against the schema and then
// unmarshals it into dst.
func decodeValidated(body io.Reader, schema *jsonschema.Schema, dst any) error {
	raw, err := io.ReadAll(io.LimitReader(body, 1<<20))
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return errors.New("empty request body")
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return errors.New("invalid json")
	}
	if err := schema.Validate(generic); err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
