// Package dashboard builds the overview cards shown on the portal's landing
// page: business totals for staff and project progress for clients.
package dashboard
