// Package blog publishes articles on the marketing site.
//
// Staff write articles in the portal or import them from RSS/Atom feeds;
// visitors only ever see published articles. Article bodies are sanitized
// HTML, titles and excerpts are plain text.
package blog
