package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldError         = "error"
	FieldWalletID      = "wallet_id"
	FieldCategoryID    = "category_id"
	FieldTransactionID = "transaction_id"
	FieldPersonID      = "person_id"
	FieldGroupID       = "group_id"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentState   = "state"
	ComponentBackend = "backend"
)
