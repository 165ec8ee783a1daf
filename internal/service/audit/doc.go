// Package audit keeps the security log: rate limit hits, rejected input,
// logins and access failures.
package audit
