package config

// settingsSchema is the JSON schema for vaultmig.yaml. Unknown keys are
// rejected so misspellings surface at startup.
const settingsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "ansible_dir": {"type": "string", "minLength": 1},
    "output_dir": {"type": "string", "minLength": 1},
    "environment": {"type": "string", "minLength": 1},
    "project_id": {"type": "string"},
    "vault_password_file": {"type": "string"},
    "timeout_seconds": {"type": "integer", "minimum": 1},
    "retry_attempts": {"type": "integer", "minimum": 1},
    "name_patterns": {
      "type": "array",
      "items": {"type": "string", "minLength": 1},
      "minItems": 1
    },
    "flatten_prefix": {"type": "string"}
  }
}`
