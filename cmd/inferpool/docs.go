package main

// General API documentation for swaggo. Regenerate docs/ with:
//
//	swag init -g cmd/inferpool/docs.go -o docs
//
// @title           inferpool API
// @version         1.0
// @description     Slot broker and OpenAI-compatible gateway in front of a fleet of inference servers.
//
// @contact.name   inferpool maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
