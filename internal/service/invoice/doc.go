// Package invoice bills clients for project work.
//
// Invoices start as drafts that only staff can see. Sending one assigns
// its issue date and emails the client; the worker marks sent invoices
// overdue once their due date has passed.
package invoice
