package api

// Response is the success envelope returned by every handler.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// Success wraps data in a success envelope.
func Success(data any, message string) Response {
	return Response{Success: true, Message: message, Data: data}
}

// Welcome is the body of the API index route.
type Welcome struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

// Version is the public API version.
const Version = "1.0.0"
