// Package schema declares the quiz database model and compares it with
// the schema found in a live database.
//
// Models returns the tables the quiz service expects. Diff turns the
// difference between those tables and a Snapshot of the live database
// into a list of Changes, and Render writes the SQL that applies (Up) or
// reverts (Down) them for a given driver. Type changes of existing columns
// are not detected.
package schema
