/*
Package httpserver implements the object store HTTP service of the content market.

The service is a thin key/value front end over any storage backend the factory
can build (S3 or MinIO, file, Vault, IPFS, LevelDB). It never sees plaintext:
clients upload cipher text produced by their own passphrase keys.

# Object API

  - PUT /api/objects/{key} with a JSON stored object stores or fully replaces it (204)
  - GET /api/objects/{key} returns the JSON stored object (200) or 404

Stored objects have the form:

	{"originalName": "report.pdf", "mimeType": "application/pdf", "content": "<base64 cipher text>"}

# Upload API

The upload routes keep the shape used by browser clients of the first
deployment, where content is an opaque string:

  - POST /api/upload/{key} with {"originalname", "type", "content"} returns {"etag"}
  - GET /api/upload/{key} returns {"originalname", "type", "content"}

# Operations

  - /livez and /readyz health checks
  - /drain and /undrain toggle readiness for load balancers
  - /debug profiling endpoints when pprof is enabled
  - Prometheus metrics on a separate listener

Keys are limited to [A-Za-z0-9._-]; invalid keys are rejected with 400.
*/
package httpserver
