package models

// Response is the invocation result returned by every storage-triggered
// stage. Per-record failures are logged and the invocation still reports
// 200, so the event source does not redeliver a batch for one bad record.
type Response struct {
	StatusCode int          `json:"statusCode"`
	Body       ResponseBody `json:"body"`
}

type ResponseBody struct {
	Message string `json:"message"`
}

// OK builds the standard success envelope for a stage.
func OK(message string) *Response {
	return &Response{StatusCode: 200, Body: ResponseBody{Message: message}}
}
