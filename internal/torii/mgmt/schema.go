package mgmt

import "github.com/santhosh-tekuri/jsonschema/v5"

// moduleSpecSchema gates POST /modules payloads before they are decoded
// into a runtime.ModuleSpec. It checks shape only; semantic rules (type
// match, label injection) stay in the runtime.
const moduleSpecSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "type", "config"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "type": {"type": "string", "minLength": 1},
    "config": {
      "type": "object",
      "required": ["image"],
      "properties": {
        "image": {"type": "string", "minLength": 1},
        "createOptions": {
          "type": "object",
          "properties": {
            "env": {"type": "array", "items": {"type": "string"}},
            "labels": {"type": "object", "additionalProperties": {"type": "string"}}
          }
        },
        "auth": {
          "type": "object",
          "properties": {
            "username": {"type": "string"},
            "password": {"type": "string"},
            "serveraddress": {"type": "string"}
          }
        }
      }
    },
    "env": {"type": "object", "additionalProperties": {"type": "string"}}
  }
}`

var compiledModuleSpecSchema = jsonschema.MustCompileString("modulespec.json", moduleSpecSchema)
