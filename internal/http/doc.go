// Package http provides HTTP handlers and middleware for the library API.
//
// The router exposes the following endpoints:
//   - POST /auth/register, POST /auth/login, POST /auth/logout: account and
//     token lifecycle. Login responds with a bearer token that every other
//     endpoint (except the public catalog reads and /health) requires in the
//     Authorization header.
//   - POST /borrowed: creates a borrow record and takes a copy off the shelf.
//     GET /borrowed lists the caller's records (active ones unless a status
//     filter is given), GET /borrowed/pending lists records waiting for an
//     administrator to confirm the return, and GET /borrowed/all lists every
//     record.
//   - PATCH /borrowed/{id}/return flags a record for return, PATCH
//     /borrowed/{id}/return-date moves the planned return date, PATCH
//     /borrowed/{id} is the administrator status override, and DELETE
//     /borrowed/{id} removes a record.
//   - GET /books, GET /books/{id}: public catalog reads. POST /books,
//     PUT /books/{id}, DELETE /books/{id}: administrator catalog management.
//   - GET /suggestions, POST /suggestions, PATCH /suggestions/{id}, DELETE
//     /suggestions/{id}: reader suggestion queue with admin moderation.
//   - GET /users, GET /users/{id}, GET /users/admin/{email}, PATCH
//     /users/{id}/role, DELETE /users/{id}: account management.
//
// Every response, success or failure, uses the envelope defined in
// responder.go. Request/response DTOs live alongside their respective
// handlers so tests and documentation share the same ground truth.
package http
