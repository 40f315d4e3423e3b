package contract

// LoginPath is where presentation-layer violations redirect.
const LoginPath = "/login"

// Response is the caller-facing shape of a violation.
type Response struct {
	Success  bool   `json:"success"`
	Error    string `json:"error"`
	Redirect string `json:"redirect,omitempty"`
}

// ResponseFor maps a layer and the original error message to a response.
// The table is fixed; only the action layer exposes the message.
func ResponseFor(layer Layer, message string) Response {
	switch layer {
	case LayerPresentation:
		return Response{Redirect: LoginPath, Error: "Authentication required"}
	case LayerAction:
		return Response{Error: message}
	case LayerBusiness:
		return Response{Error: "Permission denied"}
	case LayerData:
		return Response{Error: "Operation failed"}
	default:
		return Response{Error: "An error occurred"}
	}
}

// AppropriateResponse maps the violation to a response for its layer.
func (v *ViolationError) AppropriateResponse() Response {
	return ResponseFor(v.layer, v.Message())
}
