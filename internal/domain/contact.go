package domain

// Contact is a subscriber of a list. IDs grow with insertion order, which is
// the order warm-up batches walk a list in.
type Contact struct {
	ID           int64
	ListID       string
	Email        string
	Name         string
	Unsubscribed bool
}
