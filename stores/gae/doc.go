// Package gae provides a Cloud Datastore backed UserStore for secretwall.
// Usernames and provider ids are reserved through keyed mapping entities
// written in the same transaction as the user record, which is how
// Datastore expresses uniqueness.
package gae
