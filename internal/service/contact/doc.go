// Package contact handles the marketing site's contact form: leads are
// sanitized, stored and forwarded to the agency inbox, and the visitor
// gets an automatic reply.
package contact
