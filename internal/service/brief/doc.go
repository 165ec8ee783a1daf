// Package brief runs the project brief wizard.
//
// A visitor chats with the language model, which asks about the project
// until it can emit a structured summary inside a <brief>{...}</brief>
// block. The conversation lives in a DraftStore (memory, Redis or DynamoDB)
// until the visitor submits their contact details; the finished brief is
// then persisted and forwarded to the agency.
package brief
