// Package handlers contains HTTP handlers for the forgebuild API.
//
// Every successful response is wrapped in responses.Envelope; failures go
// through the foundation/errors HTTP adapter, which answers 422 with the
// same envelope shape and a non-zero errCode.
package handlers
