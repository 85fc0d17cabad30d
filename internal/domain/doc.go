// Package domain defines the shared vocabulary of the core: typed
// identities, the error taxonomy, and the observer/audit contracts consumed
// by the presentation and logging collaborators.
package domain
