// Package model defines the primitive types shared by the index, the query
// engine and the public API.
package model
