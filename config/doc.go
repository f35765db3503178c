// Package config loads netguard settings.
//
// Values come from, in increasing precedence: built-in defaults, a YAML file,
// a .env file, and NETGUARD_ prefixed environment variables. Nested keys map
// to variables by upper-casing and replacing dots with underscores, so
// queue.max_size is read from NETGUARD_QUEUE_MAX_SIZE.
//
// String values that hold secrets may be written as secret references, for
// example auth.signing_key: secretref:env:JWT_KEY, and are resolved with a
// secret.Resolver after loading.
package config
