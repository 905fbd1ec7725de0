package config

const schemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "workers":     { "type": "integer", "minimum": 1, "maximum": 64 },
    "cache_dir":   { "type": "string" },
    "storage_dir": { "type": "string" },
    "temp_dir":    { "type": "string" },
    "report_dir":  { "type": "string" },
    "logging": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "level": { "type": "string", "enum": ["debug", "info", "warn", "error"] }
      }
    },
    "download": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "url_template":     { "type": "string", "pattern": "\\{id\\}" },
        "prod_version":     { "type": "string", "pattern": "^[0-9]+(\\.[0-9]+)*$" },
        "timeout":          { "type": "string" },
        "fetch_signatures": { "type": "boolean" },
        "progress":         { "type": "boolean" }
      }
    },
    "auto_update": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "interval": { "type": "string" }
      }
    },
    "verify": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "keyring": { "type": "string" }
      }
    }
  }
}`
