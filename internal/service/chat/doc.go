// Package chat is the marketing site's assistant: it cleans the visitor's
// message and recent history and forwards them to the language model with
// the agency system prompt.
package chat
