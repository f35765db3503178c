// Package secret resolves secret references in configuration values.
//
// A value of the form "secretref:<provider>:<ref>" is replaced by what the
// named Provider returns for ref. References may also appear inline, as in
// "Bearer secretref:env:API_TOKEN". Before resolution, ${VAR} references
// are expanded strictly: a missing variable is an error, and $$ yields a
// literal dollar sign.
//
// EnvProvider ("env") and FileProvider ("file") are built in.
package secret
