// Package project tracks client projects, their milestones and the time
// logged against them.
//
// Clients only ever see their own projects; everything that changes a
// project is reserved for agency staff. Status changes follow the
// transition table on domain.ProjectStatus.
package project
