package storage

// ApiStore defines the set of non-privileged operations needed by the public API.
type ApiStore interface {
	AccountStore
	IntentReader
	IntentManager
}
