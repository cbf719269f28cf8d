// Package store persists scheduler job definitions across restarts.
package store
