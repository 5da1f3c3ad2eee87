// Package auth provides operator authentication for the USB Power Flow
// API: Argon2id password verification and short-lived JWT access tokens.
//
// The service has a single operator identity. There is no user database;
// the operator password lives in configuration, either as plaintext for
// development or as an Argon2id PHC hash for real deployments.
package auth
