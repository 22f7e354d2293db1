package suppliers

// Supplier is the counterparty of a purchase order.
type Supplier struct {
	ID             int64  `json:"id"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	Identification string `json:"identification,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
}
