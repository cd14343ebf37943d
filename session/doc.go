// Package session tracks which identity the process acts as.
//
// A Session is created from a Source, optionally polls it for account switches
// and notifies registered handlers when the identity changes. It implements the
// identity provider of the transfer orchestrator.
package session
