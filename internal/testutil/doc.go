// Package testutil contains helper builders and utilities used across tests
// to reduce boilerplate when constructing kernel objects (components,
// payloads, patches) and asserting behaviors. These helpers are intentionally
// minimal and avoid adding third-party dependencies. They are not intended
// for production usage.
package testutil
