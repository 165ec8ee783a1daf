// Package profile manages portal users: agency staff who sign in with
// Google and client contacts invited to the portal.
//
// Roles are stored on the profile and are the only source of truth for
// authorization. Repository implementations live in repository/postgres/.
package profile
