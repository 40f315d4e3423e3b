// Package conditions provides ready-made requirements and postconditions for
// contract.Wrap: authentication, ownership, rate limiting, JSON-schema and
// text normalization validators, CEL business rules and auditing.
//
// Every failure is a *contract.Error carrying a specific code and category,
// so the engine's retry policy and response mapping see the right class.
package conditions
